package objfile

import (
	"debug/elf"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/wiisym/wiisym/pkg/model"
	"github.com/wiisym/wiisym/pkg/reloc"
)

const textSection = ".text"

var (
	ErrNoText    = errors.New("no .text section")
	ErrTruncated = errors.New("symbol body truncated")
)

// Symbol is a function symbol defined in the code section.
type Symbol struct {
	Name  string
	Value uint64
	Size  uint64
}

// Object is the code section of one ELF file together with its function
// symbols and relocations.
type Object struct {
	TextIndex int
	TextAddr  uint64
	Text      []byte
	Symbols   []Symbol
	Relocs    *reloc.Index
}

// Open reads the code section, function symbols and code relocations of an
// ELF file.
func Open(r io.ReaderAt) (*Object, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, errors.Wrap(err, "parse elf")
	}
	defer f.Close()

	obj := &Object{TextIndex: -1}
	for i, s := range f.Sections {
		if s.Name == textSection && s.Type == elf.SHT_PROGBITS {
			obj.TextIndex = i
			obj.TextAddr = s.Addr
			if obj.Text, err = s.Data(); err != nil {
				return nil, errors.Wrap(err, "read .text")
			}
			break
		}
	}
	if obj.TextIndex < 0 {
		return nil, ErrNoText
	}

	syms, err := f.Symbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, errors.Wrap(err, "read symbols")
	}
	for _, s := range syms {
		if s.Name == "" || elf.ST_TYPE(s.Info) != elf.STT_FUNC || int(s.Section) != obj.TextIndex {
			continue
		}
		obj.Symbols = append(obj.Symbols, Symbol{Name: s.Name, Value: s.Value, Size: s.Size})
	}

	relocs, err := readRelocations(f, obj.TextIndex)
	if err != nil {
		return nil, err
	}
	obj.Relocs = reloc.NewIndex(relocs)
	return obj, nil
}

// Function returns the body of sym. Symbol values of linked files are
// addresses and get rebased onto the section, values of relocatable objects
// already are section offsets.
func (o *Object) Function(sym Symbol) (model.CodeBytes, error) {
	start := sym.Value
	if o.TextAddr != 0 && start >= o.TextAddr {
		start -= o.TextAddr
	}
	end := start + sym.Size
	if start > uint64(len(o.Text)) || end > uint64(len(o.Text)) || end < start {
		return model.CodeBytes{}, errors.Wrapf(ErrTruncated, "%s: [%#x, %#x) outside %d byte section", sym.Name, start, end, len(o.Text))
	}
	return model.CodeBytes{
		Name:  sym.Name,
		Base:  sym.Value,
		Bytes: o.Text[start:end:end],
	}, nil
}

// readRelocations collects the SHT_RELA and SHT_REL records applying to the
// section at index target.
func readRelocations(f *elf.File, target int) ([]reloc.Record, error) {
	var records []reloc.Record
	for _, s := range f.Sections {
		if (s.Type != elf.SHT_RELA && s.Type != elf.SHT_REL) || int(s.Info) != target {
			continue
		}
		data, err := s.Data()
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", s.Name)
		}
		rs, err := decodeRelocations(f.Class, f.ByteOrder, s.Type, data)
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s", s.Name)
		}
		records = append(records, rs...)
	}
	return records, nil
}

func decodeRelocations(class elf.Class, order binary.ByteOrder, typ elf.SectionType, data []byte) ([]reloc.Record, error) {
	var size int
	switch {
	case class == elf.ELFCLASS32 && typ == elf.SHT_RELA:
		size = 12
	case class == elf.ELFCLASS32:
		size = 8
	case class == elf.ELFCLASS64 && typ == elf.SHT_RELA:
		size = 24
	case class == elf.ELFCLASS64:
		size = 16
	default:
		return nil, errors.Errorf("unsupported elf class %s", class)
	}
	if len(data)%size != 0 {
		return nil, errors.Errorf("section size %d is not a multiple of %d", len(data), size)
	}
	records := make([]reloc.Record, 0, len(data)/size)
	for off := 0; off < len(data); off += size {
		entry := data[off : off+size]
		var r reloc.Record
		if class == elf.ELFCLASS32 {
			r.Offset = uint64(order.Uint32(entry[0:4]))
			r.Kind = reloc.Kind(elf.R_TYPE32(order.Uint32(entry[4:8])))
		} else {
			r.Offset = order.Uint64(entry[0:8])
			r.Kind = reloc.Kind(elf.R_TYPE64(order.Uint64(entry[8:16])))
		}
		records = append(records, r)
	}
	return records, nil
}
