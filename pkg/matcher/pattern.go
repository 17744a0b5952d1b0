package matcher

import (
	"bytes"

	"github.com/wiisym/wiisym/pkg/mask"
	"github.com/wiisym/wiisym/pkg/model"
)

// Pattern is a byte string where masked positions match any byte.
type Pattern struct {
	literal []byte
	wild    mask.Mask

	// anchor is the longest run of literal bytes, used to find candidates
	// before the whole pattern is verified.
	anchorAt int
	anchor   []byte
}

// Compile builds the pattern of code under m. m must have the same length as
// the code.
func Compile(code model.CodeBytes, m mask.Mask) *Pattern {
	if len(m) != code.Size() {
		panic("matcher: mask length does not match code size")
	}
	p := &Pattern{
		literal: code.Bytes,
		wild:    m,
	}
	bestAt, bestLen := 0, 0
	for i := 0; i < len(m); {
		if m[i] {
			i++
			continue
		}
		j := i
		for j < len(m) && !m[j] {
			j++
		}
		if j-i > bestLen {
			bestAt, bestLen = i, j-i
		}
		i = j
	}
	p.anchorAt = bestAt
	p.anchor = code.Bytes[bestAt : bestAt+bestLen]
	return p
}

func (p *Pattern) Len() int { return len(p.literal) }

// Literals returns the number of bytes that must match exactly.
func (p *Pattern) Literals() int { return len(p.literal) - p.wild.Wildcards() }

// MatchAt reports whether the pattern matches haystack at offset.
func (p *Pattern) MatchAt(haystack []byte, offset int) bool {
	if offset < 0 || offset+len(p.literal) > len(haystack) {
		return false
	}
	window := haystack[offset : offset+len(p.literal)]
	for i, b := range window {
		if !p.wild[i] && b != p.literal[i] {
			return false
		}
	}
	return true
}

// Find returns the start offsets of the non-overlapping occurrences of the
// pattern in haystack, scanning left to right. It stops after limit matches
// when limit is positive.
func (p *Pattern) Find(haystack []byte, limit int) []int {
	n := len(p.literal)
	if n == 0 {
		return nil
	}
	var offsets []int
	full := func() bool { return limit > 0 && len(offsets) >= limit }

	if len(p.anchor) == 0 {
		for pos := 0; pos+n <= len(haystack) && !full(); pos += n {
			offsets = append(offsets, pos)
		}
		return offsets
	}

	// from is the first haystack position where the anchor may start.
	from := p.anchorAt
	for !full() && from < len(haystack) {
		k := bytes.Index(haystack[from:], p.anchor)
		if k < 0 {
			break
		}
		k += from
		start := k - p.anchorAt
		if start+n > len(haystack) {
			break
		}
		if p.MatchAt(haystack, start) {
			offsets = append(offsets, start)
			from = start + n + p.anchorAt
			continue
		}
		from = k + 1
	}
	return offsets
}
