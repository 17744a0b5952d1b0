package disasm

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/arch/ppc64/ppc64asm"
)

type Instruction struct {
	Mnemonic string
	Operands string
}

func (i Instruction) String() string {
	if i.Operands == "" {
		return i.Mnemonic
	}
	return i.Mnemonic + " " + i.Operands
}

// Disassembler decodes the instruction at the start of code, which is
// mapped at addr.
type Disassembler interface {
	Disasm(code []byte, addr uint64) (Instruction, error)
}

// PPC decodes big-endian 32-bit PowerPC words in GNU syntax.
type PPC struct{}

func NewPPC() *PPC { return &PPC{} }

func (*PPC) Disasm(code []byte, addr uint64) (Instruction, error) {
	if len(code) < 4 {
		return Instruction{}, fmt.Errorf("truncated instruction at %08x: %d bytes", addr, len(code))
	}
	inst, err := ppc64asm.Decode(code[:4], binary.BigEndian)
	if err != nil || inst.Op == 0 || inst.Enc == 0 {
		// Paired-single and other Broadway extensions are unknown to the
		// decoder; show them as data like objdump does.
		return Instruction{Mnemonic: ".long", Operands: fmt.Sprintf("0x%08x", binary.BigEndian.Uint32(code))}, nil
	}
	text := ppc64asm.GNUSyntax(inst, addr)
	mnemonic, operands, _ := strings.Cut(text, " ")
	return Instruction{Mnemonic: mnemonic, Operands: operands}, nil
}
