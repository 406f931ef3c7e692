// File: ioengine/pump.go
//
// Pump drives non-blocking reads and writes against a raw file descriptor,
// registered with a reactor.Reactor. Reads fill a Sink until it is full or
// the kernel has no more data ready; writes drain a FIFO of Cursors one at
// a time. All reactor-thread callbacks here run unlocked, per the
// package's single-thread-per-fd invariant; only Write and Close are safe
// to call from other goroutines.
package ioengine

import (
	"fmt"
	"sync"

	"github.com/fenwick-labs/netcore/reactor"
)

// OnRead is invoked after a read pass, whether or not the sink became full.
type OnRead func(sink *Sink)

// OnWritten is invoked once a queued Cursor has been fully drained.
type OnWritten func()

// OnClose is invoked once, with a nil error on a clean EOF/Close and a
// non-nil error on an I/O failure.
type OnClose func(err error)

type writeItem struct {
	cursor    *Cursor
	onWritten OnWritten
}

// Pump binds one fd to one Reactor and pumps non-blocking I/O against it.
type Pump struct {
	fd  int
	rct *reactor.Reactor

	mu         sync.Mutex
	interests  reactor.Mask
	closed     bool
	readSink   *Sink
	onRead     OnRead
	writeQueue []writeItem
	onClose    OnClose
}

// NewPump registers fd with rct and returns a Pump ready to read and
// write. The caller retains ownership of fd; Close closes it.
func NewPump(rct *reactor.Reactor, fd int, onClose OnClose) (*Pump, error) {
	p := &Pump{fd: fd, rct: rct, onClose: onClose}
	if err := rct.Add(fd, 0, p.onEvent); err != nil {
		return nil, fmt.Errorf("ioengine: register fd %d: %w", fd, err)
	}
	return p, nil
}

// Read arms sink to receive inbound bytes. callback runs after each read
// pass: when the sink fills, when the peer closes, or when an error
// occurs. Read interest is re-armed automatically as long as sink has
// headroom; the caller should call Read again with a fresh (or resized)
// sink once callback reports Full.
func (p *Pump) Read(sink *Sink, callback OnRead) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("ioengine: read on closed pump")
	}
	p.readSink = sink
	p.onRead = callback
	return p.setInterestLocked(p.interests | reactor.Read)
}

// Write enqueues cursor to be drained to the fd. onWritten, if non-nil,
// runs once cursor is fully consumed. Safe from any goroutine.
func (p *Pump) Write(cursor *Cursor, onWritten OnWritten) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("ioengine: write on closed pump")
	}
	p.writeQueue = append(p.writeQueue, writeItem{cursor: cursor, onWritten: onWritten})
	return p.setInterestLocked(p.interests | reactor.Write)
}

func (p *Pump) setInterestLocked(mask reactor.Mask) error {
	if mask == p.interests {
		return nil
	}
	if err := p.rct.Modify(p.fd, mask); err != nil {
		return fmt.Errorf("ioengine: modify fd %d: %w", p.fd, err)
	}
	p.interests = mask
	return nil
}

func (p *Pump) onEvent(fd int, mask reactor.Mask) {
	if mask&reactor.Error != 0 || mask&reactor.Hup != 0 {
		p.fail(fmt.Errorf("ioengine: fd %d reported error/hangup", fd))
		return
	}
	if mask&reactor.Read != 0 {
		p.pumpRead()
	}
	if mask&reactor.Write != 0 {
		p.pumpWrite()
	}
}

func (p *Pump) pumpRead() {
	for {
		p.mu.Lock()
		if p.closed || p.readSink == nil {
			p.mu.Unlock()
			return
		}
		sink := p.readSink
		room := sink.Headroom()
		p.mu.Unlock()

		if room == 0 {
			p.finishReadPass()
			return
		}

		region := sink.Extend(room)
		if region == nil {
			p.finishReadPass()
			return
		}

		n, err := rawRead(p.fd, region)
		if n > 0 {
			sink.r.Resize(sink.Size() - (room - n))
		} else {
			sink.r.Resize(sink.Size() - room)
		}

		if err == errWouldBlock {
			p.finishReadPass()
			return
		}
		if err != nil {
			p.finishReadPass()
			p.fail(fmt.Errorf("ioengine: read fd %d: %w", p.fd, err))
			return
		}
		if n == 0 {
			p.finishReadPass()
			p.closeClean()
			return
		}
		if sink.Full() {
			p.finishReadPass()
			return
		}
	}
}

func (p *Pump) finishReadPass() {
	p.mu.Lock()
	sink := p.readSink
	cb := p.onRead
	if sink != nil && sink.Full() {
		p.readSink = nil
		p.onRead = nil
		p.setInterestLocked(p.interests &^ reactor.Read)
	}
	p.mu.Unlock()

	if cb != nil && sink != nil {
		cb(sink)
	}
}

func (p *Pump) pumpWrite() {
	for {
		p.mu.Lock()
		if p.closed || len(p.writeQueue) == 0 {
			p.mu.Unlock()
			return
		}
		item := p.writeQueue[0]
		p.mu.Unlock()

		chunk := item.cursor.Peek()
		if len(chunk) == 0 {
			p.dequeueWritten()
			continue
		}

		n, err := rawWrite(p.fd, chunk)
		if n > 0 {
			item.cursor.ConsumeN(n)
		}
		if err == errWouldBlock {
			return
		}
		if err != nil {
			p.fail(fmt.Errorf("ioengine: write fd %d: %w", p.fd, err))
			return
		}
		if item.cursor.Empty() {
			p.dequeueWritten()
		}
	}
}

func (p *Pump) dequeueWritten() {
	p.mu.Lock()
	if len(p.writeQueue) == 0 {
		p.mu.Unlock()
		return
	}
	item := p.writeQueue[0]
	p.writeQueue = p.writeQueue[1:]
	if len(p.writeQueue) == 0 {
		p.setInterestLocked(p.interests &^ reactor.Write)
	}
	p.mu.Unlock()

	if item.onWritten != nil {
		item.onWritten()
	}
}

func (p *Pump) fail(err error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.rct.Remove(p.fd)
	if p.onClose != nil {
		p.onClose(err)
	}
	rawClose(p.fd) //nolint:errcheck // the pump is already failed; nothing to report to
}

func (p *Pump) closeClean() {
	p.fail(nil)
}

// Close cancels any queued write operations without invoking their
// onWritten callbacks, deregisters the fd from the reactor, and closes
// it. Idempotent; the OnClose callback is never invoked by Close itself.
func (p *Pump) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.writeQueue = nil
	p.mu.Unlock()

	p.rct.Remove(p.fd)
	return rawClose(p.fd)
}
