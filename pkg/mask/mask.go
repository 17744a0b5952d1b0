package mask

import (
	"github.com/wiisym/wiisym/pkg/model"
	"github.com/wiisym/wiisym/pkg/reloc"
)

const wordSize = 4

// Mask marks the bytes of a function body that may differ between the
// object file and the linked image. true means wildcard.
type Mask []bool

// Wildcards returns the number of wildcarded bytes.
func (m Mask) Wildcards() int {
	n := 0
	for _, w := range m {
		if w {
			n++
		}
	}
	return n
}

// Warning is produced for every relocation of a kind the builder does not
// understand. The whole word at Offset is wildcarded in that case.
type Warning struct {
	Offset uint64
	Kind   reloc.Kind
}

// Build derives the wildcard mask of code from the relocations overlapping
// it. Records outside the body are ignored and masked ranges are clipped to
// the body.
func Build(code model.CodeBytes, relocs []reloc.Record) (Mask, []Warning) {
	size := code.Size()
	m := make(Mask, size)
	var warnings []Warning
	for _, r := range relocs {
		if r.Offset < code.Base || r.Offset-code.Base >= uint64(size) {
			continue
		}
		ro := int(r.Offset - code.Base)
		from, to := span(r.Kind)
		if !r.Kind.Known() {
			warnings = append(warnings, Warning{Offset: r.Offset, Kind: r.Kind})
		}
		m.set(ro+from, ro+to)
	}
	return m, warnings
}

// span returns the wildcarded byte range of a relocated word, relative to
// the relocation offset.
func span(k reloc.Kind) (int, int) {
	switch k {
	case reloc.AddrLo:
		return 2, 4
	case reloc.AddrHi, reloc.AddrHa:
		return 0, 2
	case reloc.Rel24, reloc.SDA21:
		return 1, 4
	default:
		return 0, wordSize
	}
}

func (m Mask) set(from, to int) {
	if to > len(m) {
		to = len(m)
	}
	for i := from; i < to; i++ {
		m[i] = true
	}
}
