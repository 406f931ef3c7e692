// File: pool/doc.go
// Package pool implements the buffer pooling, batching, and ring buffer
// layer ioengine and the servers allocate through: a recycling
// api.BufferPool segmented by NUMA-tag, generic object pools, and a
// lock-free ring buffer usable on its own.
// All core methods are thread-safe or explicitly document the concurrency contract.
package pool
