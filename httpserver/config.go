package httpserver

import (
	"log"
	"time"

	"github.com/fenwick-labs/netcore/reactorpool"
)

// StartTransactionCallback runs when a request's headers have been
// fully parsed and a Transaction has been minted for it.
type StartTransactionCallback func(tx *Transaction)

// EndTransactionCallback runs once a transaction's response has been
// fully sent, or the connection failed before that happened.
type EndTransactionCallback func(tx *Transaction, failed bool)

// Config is the static, construction-time configuration for a Server:
// what must be fixed before the listening socket opens.
type Config struct {
	Address string

	// TLS; both must be set together to serve HTTPS.
	Secure          bool
	CertificateFile string
	PrivateKeyFile  string

	OnStartTransaction StartTransactionCallback
	OnEndTransaction   EndTransactionCallback

	// IdleTimeout is stored on the Config but Server does not read it:
	// connections are not closed for sitting idle between requests.
	IdleTimeout time.Duration

	Logger *log.Logger

	// ReactorWorkers sizes the reactorpool.Pool the server creates to
	// multiplex plaintext connections. Zero defaults to 4. Ignored if
	// Pool is set.
	ReactorWorkers int

	// Pool, if set, is used instead of creating a new reactorpool.Pool,
	// so an http.Server and the WebSocket sockets it upgrades share the
	// same fixed set of reactor threads.
	Pool *reactorpool.Pool
}

// DefaultConfig returns a Config with a default logger and a 60 second
// idle timeout; callers still need to set Address.
func DefaultConfig() Config {
	return Config{
		IdleTimeout: 60 * time.Second,
		Logger:      log.Default(),
	}
}

func (c *Config) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

// reactorPool returns Config.Pool if set, otherwise builds a fresh pool
// sized by ReactorWorkers (default 4). A pool that fails to start (no
// platform poll backend available) falls back to nil, in which case the
// server runs every connection on the older per-connection goroutine
// path.
func (c *Config) reactorPool() *reactorpool.Pool {
	if c.Pool != nil {
		return c.Pool
	}
	n := c.ReactorWorkers
	if n <= 0 {
		n = 4
	}
	pool, err := reactorpool.New(n)
	if err != nil {
		return nil
	}
	return pool
}
