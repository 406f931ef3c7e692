// File: pool/bufferpool.go
//
// BufferPoolManager segments api.BufferPool instances by NUMA node so
// io.httpserver/wsserver connections pinned to different nodes don't
// contend over the same recycled buffers.

package pool

import (
	"sync"

	"github.com/fenwick-labs/netcore/api"
)

// BufferPoolManager provides NUMA-segmented pools for each NUMA node.
type BufferPoolManager struct {
	mu    sync.RWMutex
	pools map[int]api.BufferPool // Key: NUMA node (-1 for system default)
}

// NewBufferPoolManager creates and initializes a new manager.
func NewBufferPoolManager() *BufferPoolManager {
	return &BufferPoolManager{
		pools: make(map[int]api.BufferPool),
	}
}

// GetPool obtains or creates a NUMA-specific BufferPool.
// NUMA node -1 means "system default"; other values refer to platform-specific ID.
func (m *BufferPoolManager) GetPool(numaNode int) api.BufferPool {
	m.mu.RLock()
	pool, ok := m.pools[numaNode]
	m.mu.RUnlock()
	if ok {
		return pool
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if pool, ok := m.pools[numaNode]; ok {
		return pool
	}
	pool = newBufferPool(numaNode)
	m.pools[numaNode] = pool
	return pool
}

// newBufferPool constructs the pool backing one NUMA segment. netcore
// does not pin allocations to physical NUMA nodes (see DESIGN.md); the
// numaNode argument is unused. BufferPoolStats.NUMAStats is keyed by the
// node passed to each Get.
func newBufferPool(numaNode int) api.BufferPool {
	return newSlabPool()
}
