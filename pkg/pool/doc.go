// Package pool implements type-safe object pooling on top of sync.Pool.
//
// # Architecture
//
// Pool[T] adds statistics and a reset hook to sync.Pool. BufferPool keeps one
// Pool per size bucket so scratch buffers are reused by requests of a similar
// size. The table writer takes its compression scratch space from
// GlobalBufferPool, and the reader takes decompression targets from it when
// the decoded values are copied out of the page.
//
// # Usage Patterns
//
//	buf := pool.GetBuffer(compression.CompressBound(codec, len(raw)))
//	n, err := compression.Compress(codec, buf, raw, level)
//	...
//	pool.PutBuffer(buf)
//
// A buffer must not be used after it is returned. Buffers backing values
// handed to callers are never returned to the pool.
//
// # Metrics
//
// Stats reports allocations, checked-out objects, hits and misses per pool,
// which helps spot leaks (InUse that only grows) and undersized buckets.
package pool
