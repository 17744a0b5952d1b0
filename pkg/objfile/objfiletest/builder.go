// Package objfiletest builds small big-endian PowerPC ELF files for tests.
package objfiletest

import (
	"bytes"
	"context"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"os"
)

type Func struct {
	Name  string
	Value uint32
	Size  uint32
	// Section overrides the defining section index, .text when zero.
	Section elf.SectionIndex
	Type    elf.SymType
}

type Reloc struct {
	Offset uint32
	Type   elf.R_PPC
}

// Object describes a relocatable (or, with TextAddr set, linked) ELF.
type Object struct {
	TextAddr uint32
	Text     []byte
	Funcs    []Func
	Relocs   []Reloc
}

const (
	secNull = iota
	secText
	secRela
	secSymtab
	secStrtab
	secShstrtab
	numSections
)

// Bytes encodes o as an ELF32 big-endian PowerPC file.
func (o Object) Bytes() []byte {
	order := binary.BigEndian

	shstrtab, shnames := stringTable([]string{"", ".text", ".rela.text", ".symtab", ".strtab", ".shstrtab"})
	names := make([]string, 0, len(o.Funcs)+1)
	names = append(names, "")
	for _, f := range o.Funcs {
		names = append(names, f.Name)
	}
	strtab, symnames := stringTable(names)

	var symtab bytes.Buffer
	binary.Write(&symtab, order, elf.Sym32{})
	for i, f := range o.Funcs {
		shndx := uint16(secText)
		if f.Section != 0 {
			shndx = uint16(f.Section)
		}
		typ := elf.STT_FUNC
		if f.Type != 0 {
			typ = f.Type
		}
		binary.Write(&symtab, order, elf.Sym32{
			Name:  symnames[i+1],
			Value: f.Value,
			Size:  f.Size,
			Info:  elf.ST_INFO(elf.STB_GLOBAL, typ),
			Shndx: shndx,
		})
	}

	var rela bytes.Buffer
	for _, r := range o.Relocs {
		binary.Write(&rela, order, elf.Rela32{
			Off:  r.Offset,
			Info: elf.R_INFO32(1, uint32(r.Type)),
		})
	}

	var out bytes.Buffer
	out.Write(make([]byte, 52))
	type blob struct {
		data []byte
		off  uint32
	}
	blobs := make([]blob, numSections)
	for i, data := range [][]byte{nil, o.Text, rela.Bytes(), symtab.Bytes(), strtab, shstrtab} {
		for out.Len()%4 != 0 {
			out.WriteByte(0)
		}
		blobs[i] = blob{data: data, off: uint32(out.Len())}
		out.Write(data)
	}
	for out.Len()%4 != 0 {
		out.WriteByte(0)
	}
	shoff := uint32(out.Len())

	headers := []elf.Section32{
		{},
		{Name: shnames[secText], Type: uint32(elf.SHT_PROGBITS), Flags: uint32(elf.SHF_ALLOC | elf.SHF_EXECINSTR), Addr: o.TextAddr, Addralign: 4},
		{Name: shnames[secRela], Type: uint32(elf.SHT_RELA), Link: secSymtab, Info: secText, Addralign: 4, Entsize: 12},
		{Name: shnames[secSymtab], Type: uint32(elf.SHT_SYMTAB), Link: secStrtab, Info: 1, Addralign: 4, Entsize: 16},
		{Name: shnames[secStrtab], Type: uint32(elf.SHT_STRTAB), Addralign: 1},
		{Name: shnames[secShstrtab], Type: uint32(elf.SHT_STRTAB), Addralign: 1},
	}
	for i := 1; i < numSections; i++ {
		headers[i].Off = blobs[i].off
		headers[i].Size = uint32(len(blobs[i].data))
	}
	binary.Write(&out, order, headers)

	typ := elf.ET_REL
	if o.TextAddr != 0 {
		typ = elf.ET_EXEC
	}
	var hdr elf.Header32
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2MSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	hdr.Type = uint16(typ)
	hdr.Machine = uint16(elf.EM_PPC)
	hdr.Version = uint32(elf.EV_CURRENT)
	hdr.Shoff = shoff
	hdr.Ehsize = 52
	hdr.Shentsize = 40
	hdr.Shnum = numSections
	hdr.Shstrndx = secShstrtab

	data := out.Bytes()
	var hb bytes.Buffer
	binary.Write(&hb, order, hdr)
	copy(data, hb.Bytes())
	return data
}

func stringTable(names []string) ([]byte, []uint32) {
	var buf bytes.Buffer
	offsets := make([]uint32, len(names))
	buf.WriteByte(0)
	for i, n := range names {
		if n == "" {
			continue
		}
		offsets[i] = uint32(buf.Len())
		buf.WriteString(n)
		buf.WriteByte(0)
	}
	return buf.Bytes(), offsets
}

// Archive is an in-memory static library.
type Archive struct {
	Names   []string
	Objects map[string][]byte
	// Err fails every call when set.
	Err error
}

func (a *Archive) Members(context.Context) ([]string, error) {
	if a.Err != nil {
		return nil, a.Err
	}
	return a.Names, nil
}

func (a *Archive) Member(_ context.Context, name string) ([]byte, error) {
	if a.Err != nil {
		return nil, a.Err
	}
	data, ok := a.Objects[name]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", name, os.ErrNotExist)
	}
	return data, nil
}
