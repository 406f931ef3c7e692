// File: pool/slab_pool.go
// Package pool implements lock-free slab allocation with size class support.
// License: Apache-2.0

package pool

import (
	"sync"
	"sync/atomic"

	"github.com/fenwick-labs/netcore/api"
)

// slabPool recycles api.Buffer values through a fixed-capacity ring;
// a Get that finds nothing reusable big enough simply allocates fresh.
type slabPool struct {
	newBuf  func(size, numaNode int) api.Buffer
	release func(api.Buffer)

	queue *RingBuffer[api.Buffer]

	totalAlloc atomic.Uint64
	totalFree  atomic.Uint64
	numaStats  atomic.Pointer[numaMap]
}

const defaultPoolCapacity = 4096

// newSlabPool builds a slabPool whose queue recycles up to
// defaultPoolCapacity buffers, allocated fresh via make([]byte, size)
// when the queue is empty or holds nothing big enough.
func newSlabPool() *slabPool {
	return &slabPool{
		newBuf: func(size, numaNode int) api.Buffer {
			return api.Buffer{Data: make([]byte, size), NUMA: numaNode}
		},
		queue: NewRingBuffer[api.Buffer](defaultPoolCapacity),
	}
}

// numaMap: allocation counters by NUMA node.
type numaMap struct {
	mu     sync.Mutex
	counts map[int]uint64
}

func newNumamap() *numaMap { return &numaMap{counts: make(map[int]uint64)} }
func (m *numaMap) record(n int) {
	m.mu.Lock()
	m.counts[n]++
	m.mu.Unlock()
}
func (m *numaMap) Get() map[int]uint64 {
	m.mu.Lock()
	out := make(map[int]uint64, len(m.counts))
	for k, v := range m.counts {
		out[k] = v
	}
	m.mu.Unlock()
	return out
}

func (sp *slabPool) Get(size int, numaNode int) api.Buffer {
	// Try to recycle a buffer large enough for the request.
	if buf, ok := sp.queue.Dequeue(); ok {
		if buf.Capacity() >= size {
			buf.Data = buf.Data[:size]
			return buf
		}
	}

	// Nothing reusable; allocate fresh at exactly the requested size.
	buf := sp.newBuf(size, numaNode)
	buf.Pool = sp
	buf.Class = size

	sp.totalAlloc.Add(1)
	mPtr := sp.numaStats.Load()
	if mPtr == nil {
		newMap := newNumamap()
		sp.numaStats.Store(newMap)
		mPtr = newMap
	}
	mPtr.record(numaNode)
	return buf
}

func (sp *slabPool) Put(buf api.Buffer) {
	// Try to enqueue to pool
	if sp.queue.Enqueue(buf) {
		sp.totalFree.Add(1)
		return
	}

	// Pool full, release
	if sp.release != nil {
		sp.release(buf)
	}
}

func (sp *slabPool) Stats() api.BufferPoolStats {
	totalAlloc := int64(sp.totalAlloc.Load())
	totalFree := int64(sp.totalFree.Load())
	inUse := totalAlloc - totalFree

	nm := sp.numaStats.Load()
	numaStats := make(map[int]int64)
	if nm != nil {
		raw := nm.Get()
		for node, cnt := range raw {
			numaStats[node] = int64(cnt)
		}
	}
	return api.BufferPoolStats{
		TotalAlloc: totalAlloc,
		TotalFree:  totalFree,
		InUse:      inUse,
		NUMAStats:  numaStats,
	}
}

var _ api.BufferPool = (*slabPool)(nil)
