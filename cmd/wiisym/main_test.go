package main

import (
	"bytes"
	"context"
	"debug/elf"
	"math"
	"testing"

	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/wiisym/wiisym/pkg/config"
	"github.com/wiisym/wiisym/pkg/objfile/objfiletest"
	"github.com/wiisym/wiisym/pkg/runctx"
)

func init() {
	color.NoColor = true
}

func testContext(t *testing.T) (context.Context, afero.Fs, *bytes.Buffer) {
	t.Helper()
	fs := afero.NewMemMapFs()
	var out bytes.Buffer
	ctx := runctx.WithFs(context.Background(), fs)
	ctx = runctx.WithLogger(ctx, log.NewNopLogger())
	ctx = withOutput(ctx, &out)
	return ctx, fs, &out
}

func TestMatch(t *testing.T) {
	ctx, fs, _ := testContext(t)
	text := []byte{
		0x94, 0x21, 0xff, 0xf0, 0x48, 0x00, 0x00, 0x01, 0x38, 0x60, 0x00, 0x05, 0x4e, 0x80, 0x00, 0x20,
	}
	obj := objfiletest.Object{
		Text:   text,
		Funcs:  []objfiletest.Func{{Name: "foo", Value: 0, Size: 16}},
		Relocs: []objfiletest.Reloc{{Offset: 4, Type: elf.R_PPC_REL24}},
	}.Bytes()
	dump := append(make([]byte, 0x100), 0x94, 0x21, 0xff, 0xf0, 0x48, 0x00, 0x10, 0x21, 0x38, 0x60, 0x00, 0x05, 0x4e, 0x80, 0x00, 0x20)
	require.NoError(t, afero.WriteFile(fs, "foo.o", obj, 0o644))
	require.NoError(t, afero.WriteFile(fs, "RMGE01.bin", dump, 0o644))
	require.NoError(t, afero.WriteFile(fs, "RMGE01.txt", []byte("pos=80000000 len=4 sym=earlier\n"), 0o644))

	params := &matchParams{
		haystack: "RMGE01.bin",
		needles:  []string{"foo.o", "missing.o"},
		output:   "RMGE01.txt",
		workers:  -1,
	}
	err := match(ctx, config.Default(), params)
	require.ErrorContains(t, err, "missing.o")

	data, err := afero.ReadFile(fs, "RMGE01.txt")
	require.NoError(t, err)
	require.Equal(t, "pos=80000000 len=4 sym=earlier\npos=80000100 len=16 sym=foo\n", string(data))

	// a different mapping moves the match
	require.NoError(t, params.haystackBase.Set("0x81000000"))
	params.needles = []string{"foo.o"}
	params.output = "-"
	ctx, fs2, out := testContext(t)
	require.NoError(t, afero.WriteFile(fs2, "foo.o", obj, 0o644))
	require.NoError(t, afero.WriteFile(fs2, "RMGE01.bin", dump, 0o644))
	require.NoError(t, match(ctx, config.Default(), params))
	require.Equal(t, "pos=81000100 len=16 sym=foo\n", out.String())
}

func TestFilter(t *testing.T) {
	ctx, fs, out := testContext(t)
	require.NoError(t, afero.WriteFile(fs, "a.txt", []byte(
		"pos=80004000 len=32 sym=OSReport\n"+
			"pos=80005000 len=16 sym=memcpy\n"+
			"pos=80006000 len=16 sym=memcpy\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "b.txt", []byte(
		"pos=80004000 len=32 sym=OSReport\n"+
			"pos=80003000 len=8 sym=__start\n"+
			"pos=80003000 len=8 sym=main\n"), 0o644))

	err := filter(ctx, config.Default(), &filterParams{tables: []string{"a.txt", "b.txt"}, output: "-"})
	require.NoError(t, err)
	require.Equal(t, "pos=80004000 len=32 sym=OSReport\n", out.String())

	require.NoError(t, filter(ctx, config.Default(), &filterParams{tables: []string{"a.txt"}, output: "out.txt"}))
	data, err := afero.ReadFile(fs, "out.txt")
	require.NoError(t, err)
	require.Equal(t, "pos=80004000 len=32 sym=OSReport\n", string(data))

	err = filter(ctx, config.Default(), &filterParams{tables: []string{"a.txt"}, stages: "name,bogus"})
	require.Error(t, err)
	require.NoError(t, filter(ctx, config.Default(), &filterParams{tables: []string{"a.txt"}, stages: "name, address"}))

	require.Error(t, filter(ctx, config.Default(), &filterParams{tables: []string{"missing.txt"}}))
}

func TestExport(t *testing.T) {
	ctx, fs, out := testContext(t)
	data := objfiletest.Object{
		TextAddr: 0x80004000,
		Text:     make([]byte, 0x20),
		Funcs: []objfiletest.Func{
			{Name: "__start", Value: 0x80004000, Size: 0x10},
			{Name: "main", Value: 0x80004010, Size: 0x10},
		},
	}.Bytes()
	require.NoError(t, afero.WriteFile(fs, "main.elf", data, 0o644))

	require.NoError(t, exportSymbols(ctx, &exportParams{elf: "main.elf", output: "-"}))
	require.Equal(t, "pos=80004000 len=16 sym=__start\npos=80004010 len=16 sym=main\n", out.String())

	require.Error(t, exportSymbols(ctx, &exportParams{elf: "missing.elf", output: "-"}))
}

func TestCompare(t *testing.T) {
	ctx, fs, out := testContext(t)
	require.NoError(t, afero.WriteFile(fs, "a.bin", []byte{0x7c, 0x68, 0x02, 0xa6, 0x2c, 0x03, 0x00, 0x01}, 0o644))
	require.NoError(t, afero.WriteFile(fs, "b.bin", []byte{0x7c, 0x68, 0x02, 0xa6, 0x88, 0xa7, 0x00, 0x02}, 0o644))
	require.NoError(t, afero.WriteFile(fs, "a.txt", []byte("pos=80000000 len=8 sym=foo\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "b.txt", []byte("pos=80000000 len=8 sym=foo\n"), 0o644))

	require.NoError(t, compare(ctx, config.Default(), &compareParams{pairs: []string{"a.bin:a.txt", "b.bin:b.txt"}}))
	require.Equal(t, "foo\n\t00000004\t2c030001\t88a70002\t\"cmpwi r3,1\"\t\"lbz r5,2(r7)\"\n", out.String())

	require.ErrorContains(t, compare(ctx, config.Default(), &compareParams{pairs: []string{"a.bin"}}), "expected DUMP:SYMBOLS")
}

func TestStat(t *testing.T) {
	ctx, fs, out := testContext(t)
	require.NoError(t, afero.WriteFile(fs, "wiitdb.txt", []byte("RMGE01 = Super Mario Galaxy\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "RMGE01.txt", []byte("pos=80004000 len=4 sym=a\n"), 0o644))

	require.NoError(t, statTables(ctx, &statParams{tables: []string{"RMGE01.txt"}, wiitdb: "wiitdb.txt"}))
	require.Contains(t, out.String(), "Super Mario Galaxy")
	require.Error(t, statTables(ctx, &statParams{tables: []string{"RMGE01.txt"}, wiitdb: "missing.txt"}))
}

func TestAddress(t *testing.T) {
	var a address
	require.Equal(t, uint64(7), a.or(7))
	require.NoError(t, a.Set("0x80000000"))
	require.Equal(t, uint64(0x80000000), a.or(7))
	require.NoError(t, a.Set("4096"))
	require.Equal(t, uint64(4096), a.value)
	require.Error(t, a.Set("lots"))
}

func TestMatch_HaystackSize(t *testing.T) {
	var params matchParams
	size, err := params.maxHaystackSize()
	require.NoError(t, err)
	require.Equal(t, 0, size)

	require.NoError(t, params.haystackSize.Set("0x100"))
	size, err = params.maxHaystackSize()
	require.NoError(t, err)
	require.Equal(t, 0x100, size)

	require.NoError(t, params.haystackSize.Set("0xffffffffffffffff"))
	size, err = params.maxHaystackSize()
	require.NoError(t, err)
	require.Equal(t, math.MaxInt, size)

	require.NoError(t, params.haystackSize.Set("0"))
	_, err = params.maxHaystackSize()
	require.ErrorContains(t, err, "must be positive")

	ctx, fs, _ := testContext(t)
	require.NoError(t, afero.WriteFile(fs, "RMGE01.bin", make([]byte, 16), 0o644))
	params.haystack = "RMGE01.bin"
	params.workers = -1
	require.Error(t, match(ctx, config.Default(), &params))
}

func TestFilter_SkipsBrokenTables(t *testing.T) {
	ctx, fs, out := testContext(t)
	require.NoError(t, afero.WriteFile(fs, "good.txt", []byte("pos=80004000 len=32 sym=OSReport src=os.a\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "bad.txt", []byte("sym=a=b\n"), 0o644))

	err := filter(ctx, config.Default(), &filterParams{tables: []string{"good.txt", "bad.txt", "missing.txt"}, output: "-"})
	require.ErrorContains(t, err, "bad.txt:1")
	require.ErrorContains(t, err, "missing.txt")
	require.Equal(t, "pos=80004000 len=32 sym=OSReport src=os.a\n", out.String())
}

func TestCompare_SkipsBrokenDumps(t *testing.T) {
	ctx, fs, out := testContext(t)
	require.NoError(t, afero.WriteFile(fs, "a.bin", []byte{0x2c, 0x03, 0x00, 0x01}, 0o644))
	require.NoError(t, afero.WriteFile(fs, "b.bin", []byte{0x88, 0xa7, 0x00, 0x02}, 0o644))
	require.NoError(t, afero.WriteFile(fs, "c.bin", []byte{0x88, 0xa7, 0x00, 0x02}, 0o644))
	require.NoError(t, afero.WriteFile(fs, "a.txt", []byte("pos=80000000 len=4 sym=foo\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "b.txt", []byte("pos=80000000 len=4 sym=foo\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "c.txt", []byte("broken\n"), 0o644))

	err := compare(ctx, config.Default(), &compareParams{pairs: []string{"a.bin:a.txt", "c.bin:c.txt", "missing.bin:a.txt", "b.bin:b.txt"}})
	require.ErrorContains(t, err, "c.txt:1")
	require.ErrorContains(t, err, "missing.bin")
	require.Equal(t, "foo\n\t00000000\t2c030001\t88a70002\t\"cmpwi r3,1\"\t\"lbz r5,2(r7)\"\n", out.String())
}
