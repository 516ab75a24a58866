package odbcarrow

import (
	"sync"
	"sync/atomic"
)

// getDataChunkSize is the buffer size handed to SQLGetData for variable
// length cells. Longer cells are read in several chunks.
const getDataChunkSize = 4 * 1024

// ChunkPool is a tiered pool of byte buffers used for SQLGetData chunks and
// the per-cell accumulators built from them.
type ChunkPool struct {
	// Tiered pools for common size ranges to reduce fragmentation
	smallPool  sync.Pool // For buffers <= 256 bytes
	mediumPool sync.Pool // For buffers <= 4KB
	largePool  sync.Pool // For buffers <= 64KB

	// General pool for anything up to 1MB
	generalPool sync.Pool

	// Statistics for monitoring - atomic counters
	gets   uint64
	puts   uint64
	misses uint64
}

// NewChunkPool creates an empty pool.
func NewChunkPool() *ChunkPool {
	return &ChunkPool{}
}

// Get returns a buffer of length n.
// This uses a tiered approach to better reuse common buffer sizes.
func (p *ChunkPool) Get(n int) []byte {
	atomic.AddUint64(&p.gets, 1)

	switch {
	case n <= 256:
		if buf, ok := p.smallPool.Get().([]byte); ok && cap(buf) >= n {
			return buf[:n]
		}
		atomic.AddUint64(&p.misses, 1)
		return make([]byte, n, 256)

	case n <= 4*1024:
		if buf, ok := p.mediumPool.Get().([]byte); ok && cap(buf) >= n {
			return buf[:n]
		}
		atomic.AddUint64(&p.misses, 1)
		return make([]byte, n, 4*1024)

	case n <= 64*1024:
		if buf, ok := p.largePool.Get().([]byte); ok && cap(buf) >= n {
			return buf[:n]
		}
		atomic.AddUint64(&p.misses, 1)
		return make([]byte, n, 64*1024)
	}

	if buf, ok := p.generalPool.Get().([]byte); ok && cap(buf) >= n {
		return buf[:n]
	}
	atomic.AddUint64(&p.misses, 1)

	// Power-of-2 sizing starting at 128KB
	capacity := 128 * 1024
	for capacity < n {
		capacity *= 2
	}
	return make([]byte, n, capacity)
}

// Put returns a buffer to the pool for reuse.
// Buffers are routed by capacity so exact tier sizes are reused first.
func (p *ChunkPool) Put(buf []byte) {
	if buf == nil {
		return
	}
	atomic.AddUint64(&p.puts, 1)

	switch c := cap(buf); {
	case c == 256:
		p.smallPool.Put(buf[:0]) //nolint:staticcheck
	case c == 4*1024:
		p.mediumPool.Put(buf[:0]) //nolint:staticcheck
	case c == 64*1024:
		p.largePool.Put(buf[:0]) //nolint:staticcheck
	case c >= 128 && c <= 1024*1024:
		p.generalPool.Put(buf[:0]) //nolint:staticcheck
	}
	// Buffers outside these ranges are left for garbage collection
}

// Stats returns statistics about the pool
func (p *ChunkPool) Stats() map[string]uint64 {
	return map[string]uint64{
		"gets":   atomic.LoadUint64(&p.gets),
		"puts":   atomic.LoadUint64(&p.puts),
		"misses": atomic.LoadUint64(&p.misses),
	}
}

// Global chunk pool shared by all cursors
var globalChunkPool = NewChunkPool()
