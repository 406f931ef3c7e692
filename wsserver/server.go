package wsserver

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fenwick-labs/netcore/protocol"
)

// Server keeps the table of live WebSocket sockets produced by
// successful upgrades and runs the periodic sweep that evicts entries
// once their socket reaches protocol.StateClosed.
type Server struct {
	cfg Config

	mu      sync.Mutex
	sockets map[string]*protocol.Socket

	nextID    uint64
	stopSweep chan struct{}
	sweepOnce sync.Once
	wg        sync.WaitGroup
}

// NewServer constructs a Server and starts its lifecycle sweeper.
func NewServer(cfg Config) *Server {
	s := &Server{
		cfg:       cfg,
		sockets:   make(map[string]*protocol.Socket),
		stopSweep: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.sweepLoop()
	return s
}

// Stop halts the lifecycle sweeper. It does not close any live sockets.
func (s *Server) Stop() {
	s.sweepOnce.Do(func() { close(s.stopSweep) })
	s.wg.Wait()
}

// Sockets returns a snapshot of the currently tracked sockets.
func (s *Server) Sockets() []*protocol.Socket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*protocol.Socket, 0, len(s.sockets))
	for _, sock := range s.sockets {
		out = append(out, sock)
	}
	return out
}

func (s *Server) nextSocketID() string {
	n := atomic.AddUint64(&s.nextID, 1)
	return fmt.Sprintf("ws-%d", n)
}

func (s *Server) register(id string, sock *protocol.Socket) {
	s.mu.Lock()
	s.sockets[id] = sock
	s.mu.Unlock()
}

func (s *Server) socketConfig(id string) protocol.SocketConfig {
	return protocol.SocketConfig{
		MaxMessageSize:    s.cfg.MaxMessageSize,
		FragmentThreshold: s.cfg.FragmentThreshold,
		PingInterval:      s.cfg.PingInterval,
		Metrics:           s.cfg.Metrics,
		MetricsPrefix:     "wsserver.socket.",
		OnMessage:         s.cfg.OnMessage,
		OnPong:            s.cfg.OnPong,
		OnClose:           s.cfg.OnClose,
	}
}

// sweepLoop periodically removes sockets that have reached
// StateClosed from the table, on a fixed tick rather than reacting to
// individual events.
func (s *Server) sweepLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.sweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-s.stopSweep:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Server) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sock := range s.sockets {
		if sock.State() == protocol.StateClosed {
			delete(s.sockets, id)
			removed++
		}
	}
	if removed > 0 && s.cfg.Metrics != nil {
		s.cfg.Metrics.Set("wsserver.sockets.live", len(s.sockets))
	}
	if removed > 0 {
		s.cfg.logger().Printf("wsserver: swept %d closed socket(s), %d live", removed, len(s.sockets))
	}
}
