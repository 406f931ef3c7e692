// Package ioengine implements non-blocking file-descriptor I/O pumped by a
// reactor.Reactor: a Sink that accumulates inbound bytes up to a maximum
// size, a Source/Cursor pair that exposes outbound bytes as an immutable
// view with a progress cursor, and a Pump that drives read/write readiness
// against a raw fd.
package ioengine

import (
	"math"

	"github.com/fenwick-labs/netcore/api"
)

// Resizer is the growable byte storage behind a Sink. Resize grows or
// shrinks the storage to exactly size bytes and returns the full backing
// slice (len(result) == size), or nil if the resize cannot be satisfied.
type Resizer interface {
	Size() int
	Resize(size int) []byte
}

// SliceResizer is a Resizer backed by a plain Go slice. New bytes created
// by growing are zeroed.
type SliceResizer struct {
	buf []byte
}

// NewSliceResizer returns a SliceResizer with the given initial capacity.
func NewSliceResizer(capacity int) *SliceResizer {
	return &SliceResizer{buf: make([]byte, 0, capacity)}
}

// Size reports the current length of the backing slice.
func (s *SliceResizer) Size() int { return len(s.buf) }

// Resize grows or truncates the backing slice to size bytes.
func (s *SliceResizer) Resize(size int) []byte {
	if size <= cap(s.buf) {
		s.buf = s.buf[:size]
		return s.buf
	}
	grown := make([]byte, size)
	copy(grown, s.buf)
	s.buf = grown
	return s.buf
}

// Bytes returns the current contents of the backing slice.
func (s *SliceResizer) Bytes() []byte { return s.buf }

// PooledResizer is a Resizer backed by an api.BufferPool: every growth
// acquires a fresh Buffer sized to fit and releases the previous one,
// so repeated resizing of a connection's Sink recycles pool memory
// instead of growing a private slice forever.
type PooledResizer struct {
	pool api.BufferPool
	numa int
	buf  api.Buffer
	size int
}

// NewPooledResizer returns a PooledResizer drawing from pool, preferring
// NUMA node numaPreferred (-1 for no preference).
func NewPooledResizer(pool api.BufferPool, numaPreferred int) *PooledResizer {
	return &PooledResizer{pool: pool, numa: numaPreferred}
}

// Size reports the number of bytes currently in use (not the pooled
// buffer's full capacity).
func (p *PooledResizer) Size() int { return p.size }

// Resize acquires a buffer of at least size bytes from the pool,
// copying over any existing contents, and releases the prior buffer.
func (p *PooledResizer) Resize(size int) []byte {
	if size <= p.buf.Capacity() {
		p.size = size
		return p.buf.Bytes()[:size]
	}
	next := p.pool.Get(size, p.numa)
	copy(next.Data, p.buf.Bytes()[:p.size])
	prev := p.buf
	p.buf = next
	p.size = size
	prev.Release()
	return p.buf.Bytes()[:size]
}

// Release returns the backing buffer to its pool. Callers must not use
// the Resizer afterward.
func (p *PooledResizer) Release() {
	p.buf.Release()
	p.buf = api.Buffer{}
	p.size = 0
}

// Sink is a bounded, resizable write target. Produce appends bytes up to
// Maximum; beyond that Full reports true and further Produce calls fail.
// The zero value is not usable; construct with NewSink.
type Sink struct {
	r       Resizer
	maximum int
}

// NewSink wraps r with a maximum size. A maximum of 0 means unbounded
// (math.MaxInt).
func NewSink(r Resizer, maximum int) *Sink {
	if maximum == 0 {
		maximum = math.MaxInt
	}
	return &Sink{r: r, maximum: maximum}
}

// Size reports the number of bytes currently held.
func (s *Sink) Size() int { return s.r.Size() }

// Maximum reports the configured size ceiling.
func (s *Sink) Maximum() int { return s.maximum }

// SetMaximum changes the size ceiling.
func (s *Sink) SetMaximum(maximum int) { s.maximum = maximum }

// Full reports whether the sink has reached its maximum size.
func (s *Sink) Full() bool { return s.Size() >= s.maximum }

// Headroom reports how many more bytes can be produced before Full.
func (s *Sink) Headroom() int {
	room := s.maximum - s.Size()
	if room < 0 {
		return 0
	}
	return room
}

// HeadroomLimit reports the smaller of Headroom and limit.
func (s *Sink) HeadroomLimit(limit int) int {
	room := s.Headroom()
	if room < limit {
		return room
	}
	return limit
}

// Extend grows the sink by size bytes and returns the newly available
// region, or nil if size exceeds the remaining headroom.
func (s *Sink) Extend(size int) []byte {
	if size > s.Headroom() {
		return nil
	}
	before := s.Size()
	full := s.r.Resize(before + size)
	if full == nil {
		return nil
	}
	return full[before:]
}

// Produce copies data into a newly extended region, returning the new
// total size, or 0 if there was insufficient headroom.
func (s *Sink) Produce(data []byte) int {
	region := s.Extend(len(data))
	if region == nil {
		return 0
	}
	copy(region, data)
	return s.Size()
}

// Bytes returns the full contents currently held, when the backing
// Resizer supports it directly (as SliceResizer does).
func (s *Sink) Bytes() []byte {
	if sr, ok := s.r.(*SliceResizer); ok {
		return sr.Bytes()
	}
	return nil
}
