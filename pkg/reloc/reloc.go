package reloc

import (
	"debug/elf"
	"fmt"
	"sort"
)

// Kind is the ELF relocation type of a record. PowerPC kinds the mask
// builder understands have named constants, every other value is kept as is.
type Kind uint32

const (
	AddrLo = Kind(elf.R_PPC_ADDR16_LO)
	AddrHi = Kind(elf.R_PPC_ADDR16_HI)
	AddrHa = Kind(elf.R_PPC_ADDR16_HA)
	Rel24  = Kind(elf.R_PPC_REL24)
	SDA21  = Kind(elf.R_PPC_EMB_SDA21)
)

// Known reports whether k is one of the named kinds.
func (k Kind) Known() bool {
	switch k {
	case AddrLo, AddrHi, AddrHa, Rel24, SDA21:
		return true
	}
	return false
}

// Raw returns the ELF relocation type number.
func (k Kind) Raw() uint32 { return uint32(k) }

func (k Kind) String() string {
	if k.Known() {
		return elf.R_PPC(k).String()
	}
	return fmt.Sprintf("unknown(%d)", uint32(k))
}

type Record struct {
	Offset uint64
	Kind   Kind
}

// Index is a sorted view over the relocation records of one code section.
// It is read-only once built and safe for concurrent queries.
type Index struct {
	records []Record
}

// NewIndex copies and sorts records by offset.
func NewIndex(records []Record) *Index {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})
	return &Index{records: sorted}
}

func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.records)
}

// Query returns the records with an offset in [base, base+size), ordered by
// offset. The returned slice aliases the index and must not be modified.
func (idx *Index) Query(base, size uint64) []Record {
	if idx == nil || len(idx.records) == 0 || size == 0 {
		return nil
	}
	end := base + size
	if end < base {
		end = ^uint64(0)
	}
	i := idx.lowerBound(base)
	j := idx.lowerBound(end)
	if i >= j {
		return nil
	}
	return idx.records[i:j:j]
}

func (idx *Index) lowerBound(offset uint64) int {
	return sort.Search(len(idx.records), func(i int) bool {
		return idx.records[i].Offset >= offset
	})
}
