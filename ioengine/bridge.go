package ioengine

import (
	"io"
	"sync"

	"github.com/fenwick-labs/netcore/reactor"
)

const bridgeReadChunk = 16 << 10

// Bridge adapts a reactor-driven Pump to a blocking io.Reader/io.Writer/
// io.Closer, for call sites written against a synchronous
// request/response or frame-read loop (httpserver.Transaction,
// protocol.Socket). The loop keeps running on its own goroutine, but
// every byte it reads or writes now crosses the reactor thread through
// Pump instead of a direct blocking syscall against the fd, so the fd's
// actual I/O is multiplexed by reactor.Reactor like any other
// registration.
type Bridge struct {
	pump *Pump

	mu        sync.Mutex
	cond      *sync.Cond
	buf       []byte
	delivered int
	rdErr     error
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewBridge registers fd with rct and returns a Bridge ready to read
// and write. Ownership of fd passes to the Bridge: Close is the only
// correct way to release it afterward.
func NewBridge(rct *reactor.Reactor, fd int) (*Bridge, error) {
	b := &Bridge{closeCh: make(chan struct{})}
	b.cond = sync.NewCond(&b.mu)
	pump, err := NewPump(rct, fd, b.onClose)
	if err != nil {
		return nil, err
	}
	b.pump = pump
	b.armRead()
	return b, nil
}

// armRead starts (or restarts, once the previous sink fills) a read
// pass into a fresh bounded sink. delivered tracks how much of that
// sink's accumulated bytes this Bridge has already handed to Read, so a
// sink that fills across several readiness events is never redelivered.
func (b *Bridge) armRead() {
	b.delivered = 0
	sink := NewSink(NewSliceResizer(bridgeReadChunk), bridgeReadChunk)
	b.pump.Read(sink, b.onRead)
}

// onRead runs on the reactor thread that owns this fd.
func (b *Bridge) onRead(sink *Sink) {
	data := sink.Bytes()
	fresh := data[b.delivered:]
	b.delivered = len(data)

	if len(fresh) > 0 {
		cp := make([]byte, len(fresh))
		copy(cp, fresh)
		b.mu.Lock()
		b.buf = append(b.buf, cp...)
		b.cond.Broadcast()
		b.mu.Unlock()
	}

	if sink.Full() {
		b.armRead()
	}
}

// onClose runs on the reactor thread once the Pump observes EOF or an
// I/O error; it unblocks any Read waiting for more bytes.
func (b *Bridge) onClose(err error) {
	if err == nil {
		err = io.EOF
	}
	b.mu.Lock()
	if b.rdErr == nil {
		b.rdErr = err
	}
	b.cond.Broadcast()
	b.mu.Unlock()
	b.closeOnce.Do(func() { close(b.closeCh) })
}

// Read blocks until at least one byte has arrived from the reactor
// thread, the connection has closed, or it has failed.
func (b *Bridge) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.buf) == 0 && b.rdErr == nil {
		b.cond.Wait()
	}
	if len(b.buf) > 0 {
		n := copy(p, b.buf)
		b.buf = b.buf[n:]
		return n, nil
	}
	return 0, b.rdErr
}

// Write queues p to the Pump and blocks until it has been fully drained
// to the fd or the connection fails.
func (b *Bridge) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	cp := make([]byte, len(p))
	copy(cp, p)

	done := make(chan struct{})
	if err := b.pump.Write(NewCursor(BytesSource(cp)), func() { close(done) }); err != nil {
		return 0, err
	}

	select {
	case <-done:
		return len(p), nil
	case <-b.closeCh:
		b.mu.Lock()
		err := b.rdErr
		b.mu.Unlock()
		if err == nil {
			err = io.ErrClosedPipe
		}
		return 0, err
	}
}

// Close deregisters fd from its reactor and closes it. Idempotent.
func (b *Bridge) Close() error {
	err := b.pump.Close()
	b.onClose(io.ErrClosedPipe)
	return err
}

var _ io.ReadWriteCloser = (*Bridge)(nil)
