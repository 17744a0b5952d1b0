// Package dumpdiff compares the bodies a symbol was matched to in several
// memory dumps, word by word.
package dumpdiff

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/wiisym/wiisym/pkg/disasm"
	"github.com/wiisym/wiisym/pkg/model"
)

const wordSize = 4

// Dump is a memory image with the symbol table matched against it.
type Dump struct {
	Name    string
	Bytes   []byte
	Symbols []model.MatchRecord
}

// Slice is the body of one symbol in one dump.
type Slice struct {
	Pos   uint64
	Bytes []byte
}

// Symbol holds the bodies of a symbol in the dumps it was found in.
type Symbol struct {
	Name   string
	Slices []Slice
}

type Word struct {
	// Offset of the word from the symbol start.
	Offset       int
	Bytes        [][]byte
	Instructions []disasm.Instruction
}

type Diff struct {
	Name  string
	Words []Word
}

// Collect slices every symbol out of the dumps it appears in, dumps being
// mapped at base. Symbols are returned in order of first appearance, with at
// most one slice per dump: when a table lists a symbol twice, its last record
// wins. Bodies running past the end of a dump are truncated, records before
// base are skipped.
func Collect(dumps []Dump, base uint64) []Symbol {
	type seen struct {
		index int // into symbols
		dump  int // last dump a slice was taken from
	}
	var (
		symbols []Symbol
		index   = make(map[string]*seen)
	)
	for di, d := range dumps {
		for _, rec := range d.Symbols {
			if rec.Position < base || rec.Length < 0 {
				continue
			}
			off := rec.Position - base
			end := off + uint64(rec.Length)
			size := uint64(len(d.Bytes))
			if off > size {
				off = size
			}
			if end > size {
				end = size
			}
			slice := Slice{Pos: rec.Position, Bytes: d.Bytes[off:end]}

			s, ok := index[rec.Symbol]
			if !ok {
				s = &seen{index: len(symbols), dump: -1}
				index[rec.Symbol] = s
				symbols = append(symbols, Symbol{Name: rec.Symbol})
			}
			sym := &symbols[s.index]
			if s.dump == di {
				sym.Slices[len(sym.Slices)-1] = slice
				continue
			}
			s.dump = di
			sym.Slices = append(sym.Slices, slice)
		}
	}
	return symbols
}

// Compare returns the words in which the slices disagree, over the length
// of the shortest slice. It returns nil when there are fewer than two
// slices to compare.
func Compare(name string, slices []Slice, dis disasm.Disassembler) *Diff {
	if len(slices) < 2 {
		return nil
	}
	n := len(slices[0].Bytes)
	for _, s := range slices[1:] {
		n = min(n, len(s.Bytes))
	}

	diff := &Diff{Name: name}
	for off := 0; off+wordSize <= n; off += wordSize {
		if agree(slices, off) {
			continue
		}
		w := Word{
			Offset:       off,
			Bytes:        make([][]byte, len(slices)),
			Instructions: make([]disasm.Instruction, len(slices)),
		}
		for i, s := range slices {
			code := s.Bytes[off : off+wordSize]
			w.Bytes[i] = code
			inst, err := dis.Disasm(code, s.Pos+uint64(off))
			if err != nil {
				inst = disasm.Instruction{Mnemonic: "??"}
			}
			w.Instructions[i] = inst
		}
		diff.Words = append(diff.Words, w)
	}
	return diff
}

func agree(slices []Slice, off int) bool {
	first := slices[0].Bytes[off : off+wordSize]
	for _, s := range slices[1:] {
		if string(s.Bytes[off:off+wordSize]) != string(first) {
			return false
		}
	}
	return true
}

// CompareAll compares every symbol found in more than one dump, dropping
// the ones whose bodies agree.
func CompareAll(symbols []Symbol, dis disasm.Disassembler) []*Diff {
	var diffs []*Diff
	for _, s := range symbols {
		d := Compare(s.Name, s.Slices, dis)
		if d == nil || len(d.Words) == 0 {
			continue
		}
		diffs = append(diffs, d)
	}
	return diffs
}

var header = color.New(color.Bold)

// Write prints each diff as its symbol name followed by one tab separated
// line per word: offset, the hex word of every dump, then the quoted
// disassembly of every dump.
func Write(w io.Writer, diffs []*Diff) error {
	for _, d := range diffs {
		if _, err := header.Fprintln(w, d.Name); err != nil {
			return err
		}
		for _, word := range d.Words {
			var b strings.Builder
			fmt.Fprintf(&b, "\t%08x", word.Offset)
			for _, code := range word.Bytes {
				b.WriteString("\t" + hex.EncodeToString(code))
			}
			for _, inst := range word.Instructions {
				fmt.Fprintf(&b, "\t%q", inst.String())
			}
			b.WriteByte('\n')
			if _, err := io.WriteString(w, b.String()); err != nil {
				return err
			}
		}
	}
	return nil
}
