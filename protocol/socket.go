// File: protocol/socket.go
// Package protocol: Socket owns one side of an RFC 6455 conversation
// over a connection obtained from an HTTP Upgrade. It reassembles
// fragmented messages, answers Ping with Pong, runs the close
// handshake, and serializes outbound frames (including large-message
// fragmentation) through a FIFO drained by its own goroutine, so
// concurrent callers can enqueue sends without racing the wire.
package protocol

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fenwick-labs/netcore/control"
	"github.com/fenwick-labs/netcore/fsm"
	"github.com/fenwick-labs/netcore/ioengine"
	"github.com/fenwick-labs/netcore/reactor"
)

// wireConn is the minimal surface Socket needs from its transport: a
// plain net.Conn satisfies it directly; NewSocketOnReactor instead
// passes an *ioengine.Bridge, so the same recv/send loops below read
// and write through a reactor.Reactor rather than a blocking fd.
type wireConn interface {
	io.Reader
	io.Writer
	io.Closer
}

// SocketState models the lifecycle a Socket moves through exactly once,
// start to finish.
type SocketState int

const (
	StateConnecting SocketState = iota
	StateOpen
	StateClosing
	StateClosed
)

type socketEvent int

const (
	eventOpened socketEvent = iota
	eventStartClose
	eventCloseComplete
)

var ErrProtocolViolation = errors.New("protocol: violation, closing abnormally")

// MessageCallback delivers one complete application message (all
// fragments already reassembled).
type MessageCallback func(opcode byte, data []byte)

// PongCallback fires when a Pong frame arrives; callers use it for
// keepalive liveness tracking.
type PongCallback func(data []byte)

// CloseCallback fires once, when the socket reaches StateClosed.
// clean is true for a negotiated close handshake, false for an abnormal
// close: code is then 1002 (protocol error), 1009 (message too big) or
// 1006 (transport failure).
type CloseCallback func(code uint16, reason string, clean bool)

// SocketConfig configures a Socket's behavior. Zero values fall back to
// sane defaults via withDefaults.
type SocketConfig struct {
	MaxMessageSize    int64
	FragmentThreshold int
	PingInterval      time.Duration

	Metrics       *control.MetricsRegistry
	MetricsPrefix string

	OnMessage MessageCallback
	OnPong    PongCallback
	OnClose   CloseCallback
}

func (c SocketConfig) withDefaults() SocketConfig {
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4 << 20
	}
	if c.FragmentThreshold <= 0 {
		c.FragmentThreshold = 32 << 10
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	return c
}

// Socket is the rewritten, fragmentation-aware WebSocket connection.
type Socket struct {
	id   string
	conn wireConn
	rd   *bufio.Reader
	cfg  SocketConfig

	// rct and pingTimer are set only by NewSocketOnReactor: pingLoop's
	// goroutine+ticker is replaced by a callback fired from rct's own
	// Dispatch loop, so keepalive scheduling runs on the reactor thread
	// fd already lives on instead of a dedicated per-socket goroutine.
	rct       *reactor.Reactor
	pingTimer uint64

	machine *fsm.FSM[SocketState, socketEvent]

	// stateMu serializes every machine.Apply/CanApply call. recvLoop
	// drives the machine from its own goroutine as frames arrive; Close
	// and Send* are callable from any goroutine, so without a lock a
	// Close racing an inbound Close frame is a data race on the FSM's
	// unsynchronized state field.
	stateMu sync.Mutex

	writeMu    sync.Mutex
	writeQueue []*WSFrame
	wake       chan struct{}
	done       chan struct{}
	closeOnce  sync.Once

	fragActive bool
	fragOpcode byte
	fragBuf    []byte

	bytesReceived  int64
	bytesSent      int64
	framesReceived int64
	framesSent     int64
}

// NewSocket wraps conn (typically an httpserver.Upgrade.Conn) as a
// Socket identified by id, used only to namespace metrics. Its
// recv/send/ping loops each run on their own goroutine; use
// NewSocketOnReactor instead when conn came from a reactor-pumped
// httpserver.Upgrade.Bridge.
func NewSocket(id string, conn net.Conn, cfg SocketConfig) *Socket {
	return newSocket(id, conn, nil, cfg)
}

// NewSocketOnReactor wraps bridge, an ioengine.Bridge already registered
// on rct by httpserver (see httpserver.Upgrade.Bridge/Reactor), as a
// Socket. Keepalive pings are scheduled via rct.AddTimer instead of a
// dedicated ticker goroutine, keeping the connection's timer callback on
// the same reactor thread its fd is pinned to, per the single-threaded
// per-connection scheduling model the rest of the reactor stack follows.
func NewSocketOnReactor(id string, bridge *ioengine.Bridge, rct *reactor.Reactor, cfg SocketConfig) *Socket {
	return newSocket(id, bridge, rct, cfg)
}

func newSocket(id string, conn wireConn, rct *reactor.Reactor, cfg SocketConfig) *Socket {
	s := &Socket{
		id:   id,
		conn: conn,
		rd:   bufio.NewReader(conn),
		cfg:  cfg.withDefaults(),
		rct:  rct,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	s.machine = fsm.New(StateConnecting, []fsm.Transition[SocketState, socketEvent]{
		{From: StateConnecting, Event: eventOpened, To: StateOpen},
		{From: StateOpen, Event: eventStartClose, To: StateClosing},
		{From: StateClosing, Event: eventCloseComplete, To: StateClosed},
	})
	return s
}

// State returns the socket's current lifecycle state.
func (s *Socket) State() SocketState {
	return s.stateLocked()
}

// Start transitions the socket to Open and launches its receive and send
// goroutines (and, absent a reactor, a keepalive goroutine). The caller
// must not use conn directly after this.
func (s *Socket) Start() {
	s.applyLocked(eventOpened)
	go s.recvLoop()
	go s.sendLoop()
	if s.rct != nil {
		s.pingTimer = s.rct.AddTimer(s.cfg.PingInterval, func() { s.SendPing(nil) })
	} else {
		go s.pingLoop()
	}
}

// applyLocked and canApplyLocked serialize every FSM transition behind
// stateMu: recvLoop drives the machine from its own goroutine while
// Close (callable from any goroutine per its documented contract) drives
// it too, and fsm.FSM's state field has no synchronization of its own.
func (s *Socket) applyLocked(e socketEvent) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.machine.Apply(e)
}

func (s *Socket) canApplyLocked(e socketEvent) bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.machine.CanApply(e)
}

func (s *Socket) stateLocked() SocketState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.machine.State()
}

// SendMessage enqueues a Text or Binary message, splitting it across
// Continuation frames if it exceeds FragmentThreshold.
func (s *Socket) SendMessage(opcode byte, data []byte) error {
	threshold := s.cfg.FragmentThreshold
	if len(data) <= threshold {
		return s.enqueue(&WSFrame{IsFinal: true, Opcode: opcode, PayloadLen: int64(len(data)), Payload: data})
	}

	for offset := 0; offset < len(data); offset += threshold {
		end := offset + threshold
		if end > len(data) {
			end = len(data)
		}
		chunk := data[offset:end]
		final := end == len(data)
		frameOpcode := OpcodeContinuation
		if offset == 0 {
			frameOpcode = opcode
		}
		if err := s.enqueue(&WSFrame{IsFinal: final, Opcode: frameOpcode, PayloadLen: int64(len(chunk)), Payload: chunk}); err != nil {
			return err
		}
	}
	return nil
}

// SendPing enqueues a one-shot Ping control frame.
func (s *Socket) SendPing(data []byte) error {
	return s.enqueueControl(OpcodePing, data)
}

// Close starts the close handshake: it enqueues a Close frame carrying
// code and reason and moves the socket to Closing. The socket finishes
// closing (and invokes CloseCallback) once the peer's echo arrives or
// the connection fails.
func (s *Socket) Close(code uint16, reason string) error {
	if !s.canApplyLocked(eventStartClose) {
		return nil
	}
	s.applyLocked(eventStartClose)
	return s.enqueueControl(OpcodeClose, encodeClosePayload(code, reason))
}

// GetStats returns a snapshot of frame/byte counters for metrics.
func (s *Socket) GetStats() map[string]int64 {
	return map[string]int64{
		"bytes_received":  atomic.LoadInt64(&s.bytesReceived),
		"bytes_sent":      atomic.LoadInt64(&s.bytesSent),
		"frames_received": atomic.LoadInt64(&s.framesReceived),
		"frames_sent":     atomic.LoadInt64(&s.framesSent),
	}
}

func (s *Socket) enqueue(f *WSFrame) error {
	s.writeMu.Lock()
	s.writeQueue = append(s.writeQueue, f)
	s.writeMu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

func (s *Socket) enqueueControl(opcode byte, payload []byte) error {
	return s.enqueue(&WSFrame{IsFinal: true, Opcode: opcode, PayloadLen: int64(len(payload)), Payload: payload})
}

func (s *Socket) recvLoop() {
	defer s.shutdown(1006, "", false)
	for {
		frame, err := ReadFrame(s.rd, MaxFramePayload)
		if err != nil {
			return
		}
		atomic.AddInt64(&s.framesReceived, 1)
		atomic.AddInt64(&s.bytesReceived, frame.PayloadLen)
		s.recordMetrics()

		clean, code, reason, violation := s.handleFrame(frame)
		if violation {
			s.shutdown(code, reason, false)
			return
		}
		if s.stateLocked() == StateClosed {
			s.shutdown(code, reason, clean)
			return
		}
	}
}

// handleFrame applies one frame to the reassembly/close state machine.
// violation reports a protocol error the caller must close abnormally
// for; otherwise the caller checks State() to see whether the close
// handshake just finished.
func (s *Socket) handleFrame(frame *WSFrame) (clean bool, code uint16, reason string, violation bool) {
	switch frame.Opcode {
	case OpcodeText, OpcodeBinary:
		if s.fragActive {
			return false, 1002, "", true
		}
		if int64(len(frame.Payload)) > s.cfg.MaxMessageSize {
			return false, 1009, "", true
		}
		if frame.IsFinal {
			s.deliver(frame.Opcode, frame.Payload)
			return false, 0, "", false
		}
		s.fragActive = true
		s.fragOpcode = frame.Opcode
		s.fragBuf = append([]byte{}, frame.Payload...)
		return false, 0, "", false

	case OpcodeContinuation:
		if !s.fragActive {
			return false, 1002, "", true
		}
		if int64(len(s.fragBuf)+len(frame.Payload)) > s.cfg.MaxMessageSize {
			return false, 1009, "", true
		}
		s.fragBuf = append(s.fragBuf, frame.Payload...)
		if frame.IsFinal {
			s.deliver(s.fragOpcode, s.fragBuf)
			s.fragActive = false
			s.fragBuf = nil
		}
		return false, 0, "", false

	case OpcodePing:
		s.enqueueControl(OpcodePong, frame.Payload)
		return false, 0, "", false

	case OpcodePong:
		if s.cfg.OnPong != nil {
			s.cfg.OnPong(frame.Payload)
		}
		return false, 0, "", false

	case OpcodeClose:
		code, reason := decodeClosePayload(frame.Payload)
		alreadyClosing := s.stateLocked() == StateClosing
		if !alreadyClosing {
			s.applyLocked(eventStartClose)
			s.enqueueControl(OpcodeClose, frame.Payload)
		}
		s.applyLocked(eventCloseComplete)
		return true, code, reason, false

	default:
		return false, 1002, "", true
	}
}

func (s *Socket) deliver(opcode byte, data []byte) {
	if s.cfg.OnMessage != nil {
		s.cfg.OnMessage(opcode, data)
	}
}

func (s *Socket) sendLoop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			s.writeMu.Lock()
			if len(s.writeQueue) == 0 {
				s.writeMu.Unlock()
				break
			}
			frame := s.writeQueue[0]
			s.writeQueue = s.writeQueue[1:]
			s.writeMu.Unlock()

			if err := s.writeFrame(frame); err != nil {
				s.shutdown(1006, "", false)
				return
			}
		}
	}
}

func (s *Socket) writeFrame(f *WSFrame) error {
	data, err := EncodeFrameToBytesWithMask(f, false)
	if err != nil {
		return err
	}
	if _, err := s.conn.Write(data); err != nil {
		return err
	}
	atomic.AddInt64(&s.framesSent, 1)
	atomic.AddInt64(&s.bytesSent, f.PayloadLen)
	s.recordMetrics()
	return nil
}

func (s *Socket) pingLoop() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.SendPing(nil)
		}
	}
}

func (s *Socket) shutdown(code uint16, reason string, clean bool) {
	s.closeOnce.Do(func() {
		if s.stateLocked() != StateClosed {
			for s.canApplyLocked(eventStartClose) {
				s.applyLocked(eventStartClose)
			}
			for s.canApplyLocked(eventCloseComplete) {
				s.applyLocked(eventCloseComplete)
			}
		}
		if s.rct != nil {
			s.rct.RemoveTimer(s.pingTimer)
		}
		close(s.done)
		s.conn.Close()
		if s.cfg.OnClose != nil {
			s.cfg.OnClose(code, reason, clean)
		}
	})
}

func (s *Socket) recordMetrics() {
	if s.cfg.Metrics == nil {
		return
	}
	prefix := s.cfg.MetricsPrefix + s.id
	stats := s.GetStats()
	for k, v := range stats {
		s.cfg.Metrics.Set(prefix+"."+k, v)
	}
}

func decodeClosePayload(payload []byte) (uint16, string) {
	if len(payload) < 2 {
		return 1005, ""
	}
	return binary.BigEndian.Uint16(payload[:2]), string(payload[2:])
}

func encodeClosePayload(code uint16, reason string) []byte {
	out := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(out[:2], code)
	copy(out[2:], reason)
	return out
}
