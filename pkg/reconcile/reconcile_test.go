package reconcile

import (
	"flag"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wiisym/wiisym/pkg/model"
)

func rec(pos uint64, sym string) model.MatchRecord {
	return model.MatchRecord{Position: pos, Length: 4, Symbol: sym}
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name    string
		records []model.MatchRecord
		want    []model.MatchRecord
	}{
		{
			name:    "shared address",
			records: []model.MatchRecord{rec(100, "a"), rec(100, "b")},
			want:    []model.MatchRecord{},
		},
		{
			name:    "shared name",
			records: []model.MatchRecord{rec(100, "a"), rec(200, "a")},
			want:    []model.MatchRecord{},
		},
		{
			name:    "duplicates collapse",
			records: []model.MatchRecord{rec(100, "a"), rec(100, "a"), rec(200, "b")},
			want:    []model.MatchRecord{rec(100, "a"), rec(200, "b")},
		},
		{
			name: "address conflict removes claim before name stage",
			// a at 100 conflicts with b; a then only survives at 300.
			records: []model.MatchRecord{rec(300, "a"), rec(100, "a"), rec(100, "b"), rec(200, "c")},
			want:    []model.MatchRecord{rec(200, "c"), rec(300, "a")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, _ := Reconcile(tt.records, Config{})
			require.Equal(t, tt.want, table.Records)
		})
	}
}

func TestReconcile_StageOrder(t *testing.T) {
	records := []model.MatchRecord{rec(300, "a"), rec(100, "a"), rec(100, "b"), rec(200, "c")}

	table, stats := Reconcile(records, Config{Stages: []Stage{StageName, StageAddress}})
	// Name first drops a entirely, which leaves b alone at 100.
	require.Equal(t, []model.MatchRecord{rec(100, "b"), rec(200, "c")}, table.Records)
	require.Equal(t, Stats{Loaded: 4, Distinct: 4, Names: 3, ByName: 2, Addresses: 2, ByAddress: 2}, stats)
}

func TestReconcile_Stats(t *testing.T) {
	records := []model.MatchRecord{rec(300, "a"), rec(100, "a"), rec(100, "b"), rec(200, "c"), rec(200, "c")}
	_, stats := Reconcile(records, Config{})
	require.Equal(t, Stats{Loaded: 5, Distinct: 4, Addresses: 3, ByAddress: 2, Names: 2, ByName: 2}, stats)
}

func randomRecords(rnd *rand.Rand) []model.MatchRecord {
	records := make([]model.MatchRecord, rnd.Intn(60))
	for i := range records {
		records[i] = rec(uint64(rnd.Intn(20))*4, fmt.Sprintf("s%d", rnd.Intn(20)))
	}
	return records
}

func TestReconcile_Properties(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for iter := 0; iter < 500; iter++ {
		records := randomRecords(rnd)
		for _, stages := range [][]Stage{DefaultStages(), {StageName, StageAddress}} {
			cfg := Config{Stages: stages}
			table, _ := Reconcile(records, cfg)

			positions := map[uint64]bool{}
			names := map[string]bool{}
			for _, r := range table.Records {
				require.False(t, positions[r.Position], "duplicate position %x", r.Position)
				require.False(t, names[r.Symbol], "duplicate name %s", r.Symbol)
				positions[r.Position] = true
				names[r.Symbol] = true

				got, ok := table.ByPosition(r.Position)
				require.True(t, ok)
				require.Equal(t, r, got)
				got, ok = table.ByName(r.Symbol)
				require.True(t, ok)
				require.Equal(t, r, got)
			}

			again, _ := Reconcile(append([]model.MatchRecord(nil), table.Records...), cfg)
			require.Equal(t, table.Records, again.Records)

			shuffled := append([]model.MatchRecord(nil), records...)
			rnd.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
			reordered, _ := Reconcile(shuffled, cfg)
			require.Equal(t, table.Records, reordered.Records)
		}
	}
}

func TestConfig(t *testing.T) {
	var cfg Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	require.Equal(t, DefaultStages(), cfg.Stages)
	require.NoError(t, cfg.Validate())

	require.NoError(t, fs.Parse([]string{"-reconcile.stages=name, address"}))
	require.Equal(t, []Stage{StageName, StageAddress}, cfg.Stages)
	require.NoError(t, cfg.Validate())

	require.NoError(t, fs.Parse([]string{"-reconcile.stages=name"}))
	require.Error(t, cfg.Validate())
	cfg.Stages = []Stage{StageName, StageName}
	require.Error(t, cfg.Validate())
}
