package symmatch

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/wiisym/wiisym/pkg/mask"
)

// patternCache remembers scan results by pattern. The same function body
// usually ships in several libraries (or several builds of one library),
// only the first copy needs to scan the haystack.
type patternCache struct {
	entries *lru.Cache[uint64, cacheEntry]
}

type cacheEntry struct {
	code    []byte
	mask    mask.Mask
	offsets []int
}

func newPatternCache(size int) (*patternCache, error) {
	if size <= 0 {
		return &patternCache{}, nil
	}
	entries, err := lru.New[uint64, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &patternCache{entries: entries}, nil
}

func patternKey(code []byte, m mask.Mask) uint64 {
	d := xxhash.New()
	_, _ = d.Write(code)
	bits := make([]byte, len(m))
	for i, w := range m {
		if w {
			bits[i] = 1
		}
	}
	_, _ = d.Write(bits)
	return d.Sum64()
}

func (c *patternCache) get(key uint64, code []byte, m mask.Mask) ([]int, bool) {
	if c.entries == nil {
		return nil, false
	}
	e, ok := c.entries.Get(key)
	if !ok || !bytes.Equal(e.code, code) || !equalMasks(e.mask, m) {
		return nil, false
	}
	return e.offsets, true
}

func (c *patternCache) add(key uint64, code []byte, m mask.Mask, offsets []int) {
	if c.entries == nil {
		return
	}
	c.entries.Add(key, cacheEntry{code: code, mask: m, offsets: offsets})
}

func equalMasks(a, b mask.Mask) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
