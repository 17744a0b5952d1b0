package symrecord

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/wiisym/wiisym/pkg/model"
)

func TestParse(t *testing.T) {
	r, err := Parse("pos=80004000 len=132  sym=OSReport\n")
	require.NoError(t, err)
	require.Equal(t, Record{
		{Key: "pos", Value: "80004000"},
		{Key: "len", Value: "132"},
		{Key: "sym", Value: "OSReport"},
	}, r)

	m, err := r.ToMatch()
	require.NoError(t, err)
	require.Equal(t, model.MatchRecord{Position: 0x80004000, Length: 132, Symbol: "OSReport"}, m)
}

func TestParse_Errors(t *testing.T) {
	for _, line := range []string{
		"pos=80004000 len",
		"pos=80004000 len=1=2 sym=a",
		"a==b",
	} {
		t.Run(line, func(t *testing.T) {
			_, err := Parse(line)
			require.ErrorIs(t, err, ErrInvalidField)
		})
	}

	r, err := Parse("")
	require.NoError(t, err)
	require.Empty(t, r)
}

func TestToMatch_Errors(t *testing.T) {
	for _, line := range []string{
		"len=4 sym=a",
		"pos=10 sym=a",
		"pos=10 len=4",
	} {
		r, err := Parse(line)
		require.NoError(t, err)
		_, err = r.ToMatch()
		require.ErrorIs(t, err, ErrMissingField, line)
	}
	for _, line := range []string{
		"pos=zz len=4 sym=a",
		"pos=10 len=four sym=a",
		"pos=10 len=-4 sym=a",
	} {
		r, err := Parse(line)
		require.NoError(t, err)
		_, err = r.ToMatch()
		require.Error(t, err, line)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, line := range []string{
		"pos=80004000 len=132 sym=OSReport",
		"sym=__start len=8 pos=80003100",
		"pos=8000abcd len=4 sym=a lib=libogc.a obj=os.o",
	} {
		r, err := Parse(line)
		require.NoError(t, err)
		again, err := Parse(r.String())
		require.NoError(t, err)
		require.Equal(t, r, again)
		require.Equal(t, line, r.String())
	}

	m := model.MatchRecord{Position: 0x1234, Length: 16, Symbol: "memcpy"}
	r := FromMatch(m)
	require.Equal(t, "pos=00001234 len=16 sym=memcpy", r.String())
	back, err := r.ToMatch()
	require.NoError(t, err)
	require.Equal(t, m, back)
}

func TestReadWrite(t *testing.T) {
	records := []model.MatchRecord{
		{Position: 0x80004000, Length: 132, Symbol: "OSReport"},
		{Position: 0x80003100, Length: 8, Symbol: "__start"},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, records))
	require.Equal(t, "pos=80004000 len=132 sym=OSReport\npos=80003100 len=8 sym=__start\n", buf.String())

	got, err := Read(strings.NewReader(buf.String()+"\n\n"), "mem")
	require.NoError(t, err)
	require.Equal(t, records, got)

	_, err = Read(strings.NewReader("pos=1 len=4 sym=a\nbroken\n"), "table.txt")
	require.ErrorIs(t, err, ErrInvalidField)
	require.Contains(t, err.Error(), "table.txt:2")
}

func TestWriteFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/out", 0o755))

	first := []model.MatchRecord{{Position: 0x100, Length: 4, Symbol: "a"}}
	second := []model.MatchRecord{{Position: 0x200, Length: 8, Symbol: "b"}}

	require.NoError(t, WriteFile(fs, "/out/syms.txt", first, true))
	require.NoError(t, WriteFile(fs, "/out/syms.txt", second, true))
	got, err := ReadFile(fs, "/out/syms.txt")
	require.NoError(t, err)
	require.Equal(t, append(first, second...), got)

	require.NoError(t, WriteFile(fs, "/out/syms.txt", second, false))
	got, err = ReadFile(fs, "/out/syms.txt")
	require.NoError(t, err)
	require.Equal(t, second, got)

	entries, err := afero.ReadDir(fs, "/out")
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestWriteFile_AppendToBrokenFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/syms.txt", []byte("garbage\n"), 0o644))

	err := WriteFile(fs, "/syms.txt", []model.MatchRecord{{Position: 1, Length: 4, Symbol: "a"}}, true)
	require.ErrorIs(t, err, ErrInvalidField)

	data, err := afero.ReadFile(fs, "/syms.txt")
	require.NoError(t, err)
	require.Equal(t, "garbage\n", string(data))
}

func TestWriteFile_KeepsExtraFields(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/syms.txt", []byte("sym=a len=4 pos=100 src=libos.a\n"), 0o644))

	entries, err := ReadEntriesFile(fs, "/syms.txt")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, model.MatchRecord{Position: 0x100, Length: 4, Symbol: "a"}, entries[0].Match)
	require.Equal(t, "sym=a len=4 pos=100 src=libos.a", entries[0].Record.String())

	require.NoError(t, WriteFile(fs, "/syms.txt", []model.MatchRecord{{Position: 0x200, Length: 8, Symbol: "b"}}, true))
	data, err := afero.ReadFile(fs, "/syms.txt")
	require.NoError(t, err)
	require.Equal(t, "sym=a len=4 pos=100 src=libos.a\npos=00000200 len=8 sym=b\n", string(data))
}
