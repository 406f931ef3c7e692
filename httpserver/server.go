// Package httpserver implements an HTTP/1.1 transaction engine: it
// accepts connections, parses requests preserving on-wire header order,
// dispatches each to a path-specific or default pair of start/end
// callbacks as a Transaction, and streams responses including chunked
// transfer encoding. Protocol upgrade (WebSocket in particular) is
// supported by detaching the connection from the transaction via
// Transaction.Upgraded.
package httpserver

import (
	"bufio"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/fenwick-labs/netcore/ioengine"
	"github.com/fenwick-labs/netcore/reactor"
	"github.com/fenwick-labs/netcore/reactorpool"
)

var ErrAlreadyRunning = errors.New("httpserver: already running")
var ErrNotRunning = errors.New("httpserver: not running")

type pathCallbacks struct {
	onStart StartTransactionCallback
	onEnd   EndTransactionCallback
}

// Server owns a listening socket and the set of path-specific
// transaction callback overrides registered on top of Config's default
// pair.
type Server struct {
	cfg Config

	mu       sync.RWMutex
	paths    map[string]pathCallbacks
	listener net.Listener
	running  bool
	nextID   uint64
	wg       sync.WaitGroup

	pool *reactorpool.Pool
}

// NewServer constructs a Server from cfg. Start must be called to begin
// accepting connections. Plaintext connections are pumped through a
// reactorpool.Pool (sized by Config.ReactorWorkers, or reused from
// Config.Pool if the caller wants to share one pool across servers) so
// their I/O is multiplexed by reactor.Reactor instead of a dedicated
// blocking goroutine per connection; TLS connections, which can't
// safely take over their own fd out from under crypto/tls, keep the
// older per-connection goroutine.
func NewServer(cfg Config) *Server {
	return &Server{
		cfg:   cfg,
		paths: make(map[string]pathCallbacks),
		pool:  cfg.reactorPool(),
	}
}

// AddPath registers a path-specific override of the default start/end
// transaction callbacks. The path is matched against the canonicalized
// request target.
func (s *Server) AddPath(path string, onStart StartTransactionCallback, onEnd EndTransactionCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths[path] = pathCallbacks{onStart: onStart, onEnd: onEnd}
}

// RemovePath removes a previously registered path override.
func (s *Server) RemovePath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.paths, path)
}

func (s *Server) callbacksFor(target string) (StartTransactionCallback, EndTransactionCallback) {
	canon, ok := Canonicalize(target)
	if ok {
		s.mu.RLock()
		cb, found := s.paths[canon]
		s.mu.RUnlock()
		if found {
			return cb.onStart, cb.onEnd
		}
	}
	return s.cfg.OnStartTransaction, s.cfg.OnEndTransaction
}

// Start binds the listening socket (optionally with TLS, per Config)
// and begins accepting connections on a background goroutine. It
// returns once the socket is bound.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}

	var ln net.Listener
	var err error
	if s.cfg.Secure {
		cert, certErr := tls.LoadX509KeyPair(s.cfg.CertificateFile, s.cfg.PrivateKeyFile)
		if certErr != nil {
			s.mu.Unlock()
			return certErr
		}
		ln, err = tls.Listen("tcp", s.cfg.Address, &tls.Config{Certificates: []tls.Certificate{cert}})
	} else {
		ln, err = net.Listen("tcp", s.cfg.Address)
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.listener = ln
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.acceptLoop(ln)
	return nil
}

// Stop closes the listening socket. In-flight connections finish their
// current transaction before their goroutines exit.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()

	err := ln.Close()
	s.wg.Wait()
	if s.pool != nil && s.cfg.Pool == nil {
		s.pool.Close()
	}
	return err
}

// Addr returns the bound listening address, valid after Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(c)
		}()
	}
}

type conn struct {
	raw     net.Conn
	reader  *bufio.Reader
	writer  *bufio.Writer
	secure  bool
	bridge  *ioengine.Bridge
	reactor *reactor.Reactor
}

func (c *conn) Close() error {
	if c.bridge != nil {
		return c.bridge.Close()
	}
	return c.raw.Close()
}

// serveConn runs one connection's request/response loop. When s.pool is
// available and raw exposes a real fd (plaintext TCP, not TLS), the fd
// is handed to ioengine.Bridge over a reactor picked from s.pool: every
// read and write below still looks like a blocking bufio call, but the
// bytes now cross the reactor thread through ioengine.Pump rather than
// a direct blocking syscall against raw. TLS connections, and any
// connection whose fd can't be taken over (net.Pipe in tests), keep
// using raw's own blocking Read/Write.
func (s *Server) serveConn(raw net.Conn) {
	_, secure := raw.(*tls.Conn)
	c := &conn{raw: raw, secure: secure}

	if !secure && s.pool != nil {
		if fd, ok := ioengine.FD(raw); ok {
			rct := s.pool.Next()
			if bridge, err := ioengine.NewBridge(rct, fd); err == nil {
				c.bridge = bridge
				c.reactor = rct
			}
		}
	}

	defer c.Close()

	if c.bridge != nil {
		c.reader = bufio.NewReader(c.bridge)
		c.writer = bufio.NewWriter(c.bridge)
	} else {
		c.reader = bufio.NewReader(raw)
		c.writer = bufio.NewWriter(raw)
	}

	logger := s.cfg.logger()

	for {
		method, target, version, err := readRequestLine(c.reader)
		if err != nil {
			if err != io.EOF {
				logger.Printf("httpserver: request line: %v", err)
			}
			return
		}

		fields, err := readHeaderFields(c.reader)
		if err != nil {
			logger.Printf("httpserver: headers: %v", err)
			writeSimpleError(c.writer, StatusBadRequest)
			return
		}

		contentLength, err := requestContentLength(fields)
		if err != nil {
			logger.Printf("httpserver: content length: %v", err)
			writeSimpleError(c.writer, StatusBadRequest)
			return
		}

		tx := &Transaction{
			Server:               s,
			ID:                   atomic.AddUint64(&s.nextID, 1),
			RequestMethod:        method,
			RequestTarget:        target,
			RequestVersion:       version,
			RequestContentLength: contentLength,
			requestFields:        fields,
			conn:                 c,
		}
		if contentLength != ChunkedTransferEncoding {
			tx.bodyRemaining = contentLength
		}

		onStart, onEnd := s.callbacksFor(target)

		failed := s.runTransaction(tx, onStart)

		if tx.upgraded {
			return
		}
		if onEnd != nil {
			onEnd(tx, failed)
		}
		if failed {
			return
		}
		if keepAliveDisabled(version, fields) {
			return
		}
	}
}

// runTransaction calls the start callback and reports whether the
// transaction failed (handler panic, or headers never sent).
func (s *Server) runTransaction(tx *Transaction, onStart StartTransactionCallback) (failed bool) {
	defer func() {
		if r := recover(); r != nil {
			s.cfg.logger().Printf("httpserver: transaction %d panicked: %v", tx.ID, r)
			failed = true
		}
	}()
	if onStart != nil {
		onStart(tx)
	}
	if !tx.upgraded && !tx.respondedHeaders {
		writeSimpleError(tx.conn.writer, StatusInternalServerError)
		return true
	}
	return tx.failed
}

func keepAliveDisabled(version string, fields []HeaderField) bool {
	if headerContainsToken(fields, "Connection", "close", ",") {
		return true
	}
	if version == "HTTP/1.0" && !headerContainsToken(fields, "Connection", "keep-alive", ",") {
		return true
	}
	return false
}

func writeSimpleError(w *bufio.Writer, status StatusCode) {
	body := status.String()
	_, _ = w.WriteString("HTTP/1.1 " + itoa(int(status)) + " " + status.String() + "\r\n")
	_, _ = w.WriteString("Content-Length: " + itoa(len(body)) + "\r\n")
	_, _ = w.WriteString("Connection: close\r\n\r\n")
	_, _ = w.WriteString(body)
	_ = w.Flush()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}
