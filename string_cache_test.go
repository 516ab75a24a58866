package odbcarrow

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringCacheInterns(t *testing.T) {
	sc := NewStringCache()

	a := sc.GetFromBytes([]byte("SALES"))
	b := sc.GetFromBytes([]byte("SALES"))
	require.Equal(t, "SALES", a)
	require.Equal(t, a, b)
	require.Equal(t, 1, sc.Len())

	stats := sc.Stats()
	require.Equal(t, uint64(1), stats["hits"])
	require.Equal(t, uint64(1), stats["misses"])
}

func TestStringCacheSkipsLongAndEmpty(t *testing.T) {
	sc := NewStringCache()

	long := strings.Repeat("x", smallStringThreshold)
	require.Equal(t, long, sc.GetFromBytes([]byte(long)))
	require.Equal(t, "", sc.GetFromBytes(nil))
	require.Zero(t, sc.Len())
}

func TestStringCacheBounded(t *testing.T) {
	sc := NewStringCache()

	for i := 0; i < maxInternedStrings*3; i++ {
		s := strconv.Itoa(i)
		require.Equal(t, s, sc.GetFromBytes([]byte(s)))
	}
	require.LessOrEqual(t, sc.Len(), maxInternedStrings)
}

func TestStringCacheCopies(t *testing.T) {
	sc := NewStringCache()

	buf := []byte("abc")
	s := sc.GetFromBytes(buf)
	buf[0] = 'z'
	require.Equal(t, "abc", s)
	require.Equal(t, "abc", sc.GetFromBytes([]byte("abc")))
}
