// Package wsserver owns the socket table for a WebSocket server: it
// validates and completes HTTP Upgrade requests into protocol.Socket
// values, keeps a registry of live sockets keyed by id, and runs a
// periodic sweep that releases sockets once they reach
// protocol.StateClosed.
package wsserver

import (
	"log"
	"time"

	"github.com/fenwick-labs/netcore/control"
	"github.com/fenwick-labs/netcore/protocol"
)

// Config configures a Server.
type Config struct {
	MaxMessageSize    int64
	FragmentThreshold int
	PingInterval      time.Duration

	// SweepInterval controls how often the lifecycle sweeper looks for
	// Closed sockets to evict. Zero uses a 10 second default.
	SweepInterval time.Duration

	Metrics *control.MetricsRegistry
	Logger  *log.Logger

	// OnMessage, OnPong and OnClose are passed unchanged to every socket;
	// the socket table is maintained by the periodic sweep, not by them.
	OnMessage protocol.MessageCallback
	OnPong    protocol.PongCallback
	OnClose   protocol.CloseCallback
}

func (c Config) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

func (c Config) sweepInterval() time.Duration {
	if c.SweepInterval > 0 {
		return c.SweepInterval
	}
	return 10 * time.Second
}
