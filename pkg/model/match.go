package model

import "fmt"

// CodeBytes is one function body taken from a needle. Bytes must not be
// modified once the value is handed to the matcher.
type CodeBytes struct {
	Name  string
	Base  uint64
	Bytes []byte
}

func (c CodeBytes) Size() int { return len(c.Bytes) }

// MatchRecord claims that Symbol occupies [Position, Position+Length) in a
// haystack.
type MatchRecord struct {
	Position uint64
	Length   int
	Symbol   string
}

func (m MatchRecord) End() uint64 { return m.Position + uint64(m.Length) }

func (m MatchRecord) String() string {
	return fmt.Sprintf("pos=%08x len=%d sym=%s", m.Position, m.Length, m.Symbol)
}
