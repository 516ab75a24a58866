package odbcarrow

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkPoolTiers(t *testing.T) {
	p := NewChunkPool()

	for _, tt := range []struct {
		size    int
		wantCap int
	}{
		{10, 256},
		{256, 256},
		{257, 4 * 1024},
		{getDataChunkSize, 4 * 1024},
		{5000, 64 * 1024},
		{200 * 1024, 256 * 1024},
	} {
		buf := p.Get(tt.size)
		require.Len(t, buf, tt.size)
		require.Equal(t, tt.wantCap, cap(buf), "size %d", tt.size)
		p.Put(buf)
	}

	stats := p.Stats()
	require.Equal(t, uint64(6), stats["gets"])
	require.Equal(t, uint64(6), stats["puts"])
}

func TestChunkPoolReuse(t *testing.T) {
	p := NewChunkPool()

	buf := p.Get(getDataChunkSize)
	buf[0] = 42
	p.Put(buf)

	// sync.Pool may drop entries, so only the length is guaranteed.
	again := p.Get(100)
	require.Len(t, again, 100)

	p.Put(nil)
	require.Equal(t, uint64(1), p.Stats()["puts"])
}
