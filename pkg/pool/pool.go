package pool

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Pool is a typed sync.Pool that counts allocations and checkouts.
type Pool[T any] struct {
	inner sync.Pool
	reset func(T)

	allocs atomic.Int64
	gets   atomic.Int64
	out    atomic.Int64
}

// New returns a pool that allocates with alloc. reset, if non-nil, runs on
// every object handed back to Put.
func New[T any](alloc func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{reset: reset}
	p.inner.New = func() any {
		p.allocs.Add(1)
		return alloc()
	}
	return p
}

// Get checks an object out of the pool.
func (p *Pool[T]) Get() T {
	p.gets.Add(1)
	p.out.Add(1)
	return p.inner.Get().(T)
}

// Put checks v back in.
func (p *Pool[T]) Put(v T) {
	if p.reset != nil {
		p.reset(v)
	}
	p.out.Add(-1)
	p.inner.Put(v)
}

// Stats snapshots the pool counters.
func (p *Pool[T]) Stats() Stats {
	allocs := p.allocs.Load()
	return Stats{
		Allocated: allocs,
		InUse:     p.out.Load(),
		Hits:      max(p.gets.Load()-allocs, 0),
		Misses:    allocs,
	}
}

// Stats are pool counters.
type Stats struct {
	Allocated int64 // objects created by the pool
	InUse     int64 // objects checked out and not yet returned
	Hits      int64 // Get calls served by a recycled object
	Misses    int64 // Get calls that allocated
}

// DefaultBufferSizes are the buckets used by GlobalBufferPool: powers of
// four from 4KB to 64MB, the default maximum page size.
var DefaultBufferSizes = []int{
	4 << 10, 16 << 10, 64 << 10, 256 << 10,
	1 << 20, 4 << 20, 16 << 20, 64 << 20,
}

// BufferPool hands out byte slices from the smallest bucket that fits.
type BufferPool struct {
	sizes   []int // ascending
	buckets []*Pool[*[]byte]
}

// NewBufferPool builds a pool over the given bucket sizes, DefaultBufferSizes
// when none are given. Requests above the largest bucket are allocated
// directly and never pooled.
func NewBufferPool(sizes ...int) *BufferPool {
	if len(sizes) == 0 {
		sizes = DefaultBufferSizes
	}
	bp := &BufferPool{sizes: append([]int(nil), sizes...)}
	sort.Ints(bp.sizes)
	bp.buckets = make([]*Pool[*[]byte], len(bp.sizes))
	for i, n := range bp.sizes {
		n := n
		bp.buckets[i] = New(func() *[]byte {
			b := make([]byte, n)
			return &b
		}, nil)
	}
	return bp
}

// Get returns a slice of length n whose capacity is the bucket size. The
// contents are not zeroed.
func (bp *BufferPool) Get(n int) []byte {
	n = max(n, 0)
	i := sort.SearchInts(bp.sizes, n)
	if i == len(bp.sizes) {
		return make([]byte, n)
	}
	return (*bp.buckets[i].Get())[:n]
}

// Put returns a slice obtained from Get. Slices whose capacity is not a
// bucket size are dropped.
func (bp *BufferPool) Put(b []byte) {
	c := cap(b)
	i := sort.SearchInts(bp.sizes, c)
	if i == len(bp.sizes) || bp.sizes[i] != c {
		return
	}
	b = b[:c]
	bp.buckets[i].Put(&b)
}

// Stats returns per-bucket counters keyed by bucket size.
func (bp *BufferPool) Stats() map[int]Stats {
	out := make(map[int]Stats, len(bp.sizes))
	for i, n := range bp.sizes {
		out[n] = bp.buckets[i].Stats()
	}
	return out
}

// GlobalBufferPool holds page scratch buffers shared by readers and writers.
var GlobalBufferPool = NewBufferPool()

// GetBuffer takes a buffer of length n from GlobalBufferPool.
func GetBuffer(n int) []byte { return GlobalBufferPool.Get(n) }

// PutBuffer returns b to GlobalBufferPool.
func PutBuffer(b []byte) { GlobalBufferPool.Put(b) }
