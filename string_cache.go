package odbcarrow

// Strings shorter than this are interned; longer values are converted
// directly.
const (
	smallStringThreshold = 64
	maxInternedStrings   = 4096
)

// StringCache interns short text cells. Low cardinality columns (codes,
// flags, names) repeat the same few values on every row, and the lookup by
// []byte key does not allocate, so a hit costs no garbage.
//
// A StringCache is owned by one cursor and is not safe for concurrent use.
type StringCache struct {
	internMap map[string]string

	hits   uint64
	misses uint64
}

// NewStringCache creates an empty cache.
func NewStringCache() *StringCache {
	return &StringCache{
		internMap: make(map[string]string, 256),
	}
}

// GetFromBytes returns b as a string, reusing an earlier copy when possible.
func (sc *StringCache) GetFromBytes(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	if len(b) >= smallStringThreshold {
		sc.misses++
		return string(b)
	}
	if s, ok := sc.internMap[string(b)]; ok {
		sc.hits++
		return s
	}

	sc.misses++
	if len(sc.internMap) >= maxInternedStrings {
		// High cardinality column; start over rather than grow.
		sc.Reset()
	}
	s := string(b)
	sc.internMap[s] = s
	return s
}

// Reset drops every interned string.
func (sc *StringCache) Reset() {
	clear(sc.internMap)
}

// Len returns the number of interned strings.
func (sc *StringCache) Len() int {
	return len(sc.internMap)
}

// Stats returns hit and miss counts.
func (sc *StringCache) Stats() map[string]uint64 {
	return map[string]uint64{
		"hits":     sc.hits,
		"misses":   sc.misses,
		"interned": uint64(len(sc.internMap)),
	}
}
