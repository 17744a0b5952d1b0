package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchRecord(t *testing.T) {
	m := MatchRecord{Position: 0x80004000, Length: 132, Symbol: "OSReport"}
	require.Equal(t, "pos=80004000 len=132 sym=OSReport", m.String())
	require.Equal(t, uint64(0x80004084), m.End())
	require.Equal(t, 3, CodeBytes{Bytes: []byte{1, 2, 3}}.Size())
}
