package reconcile

import (
	"flag"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/wiisym/wiisym/pkg/model"
)

type Stage string

const (
	// StageAddress drops every address claimed by more than one record.
	StageAddress Stage = "address"
	// StageName drops every symbol claimed at more than one address.
	StageName Stage = "name"
)

type Config struct {
	Stages []Stage `yaml:"stages"`
}

func DefaultStages() []Stage { return []Stage{StageAddress, StageName} }

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.Stages = DefaultStages()
	f.Var((*stagesValue)(&cfg.Stages), "reconcile.stages", "Comma separated order of the reconciliation stages.")
}

func (cfg *Config) Validate() error {
	if len(cfg.Stages) != 2 || !lo.Contains(cfg.Stages, StageAddress) || !lo.Contains(cfg.Stages, StageName) {
		return fmt.Errorf("invalid reconcile stages %v, must be an ordering of %q and %q", cfg.Stages, StageAddress, StageName)
	}
	return nil
}

type stagesValue []Stage

func (v *stagesValue) String() string {
	return strings.Join(lo.Map(*v, func(s Stage, _ int) string { return string(s) }), ",")
}

func (v *stagesValue) Set(s string) error {
	*v = lo.Map(strings.Split(s, ","), func(p string, _ int) Stage { return Stage(strings.TrimSpace(p)) })
	return nil
}

// Stats describes how many records survived each step.
type Stats struct {
	Loaded    int
	Distinct  int
	Addresses int
	ByAddress int
	Names     int
	ByName    int
}

// Table is a set of match records where no two records share a position
// and no two records share a symbol name. Records are sorted by position.
type Table struct {
	Records []model.MatchRecord

	byPosition map[uint64]int
	byName     map[string]int
}

func newTable(records []model.MatchRecord) *Table {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Position < records[j].Position
	})
	t := &Table{
		Records:    records,
		byPosition: make(map[uint64]int, len(records)),
		byName:     make(map[string]int, len(records)),
	}
	for i, r := range records {
		t.byPosition[r.Position] = i
		t.byName[r.Symbol] = i
	}
	return t
}

func (t *Table) Len() int { return len(t.Records) }

func (t *Table) ByPosition(pos uint64) (model.MatchRecord, bool) {
	i, ok := t.byPosition[pos]
	if !ok {
		return model.MatchRecord{}, false
	}
	return t.Records[i], true
}

func (t *Table) ByName(name string) (model.MatchRecord, bool) {
	i, ok := t.byName[name]
	if !ok {
		return model.MatchRecord{}, false
	}
	return t.Records[i], true
}

// Reconcile merges match records harvested from any number of runs into a
// table. Conflicting claims are dropped, never resolved in favour of one
// side. The result does not depend on the order of records.
func Reconcile(records []model.MatchRecord, cfg Config) (*Table, Stats) {
	stages := cfg.Stages
	if len(stages) == 0 {
		stages = DefaultStages()
	}
	stats := Stats{Loaded: len(records)}
	kept := lo.Uniq(records)
	stats.Distinct = len(kept)

	for _, stage := range stages {
		switch stage {
		case StageAddress:
			groups := lo.GroupBy(kept, func(r model.MatchRecord) uint64 { return r.Position })
			stats.Addresses = len(groups)
			kept = singles(groups)
			stats.ByAddress = len(kept)
		case StageName:
			groups := lo.GroupBy(kept, func(r model.MatchRecord) string { return r.Symbol })
			stats.Names = len(groups)
			kept = singles(groups)
			stats.ByName = len(kept)
		}
	}
	return newTable(kept), stats
}

func singles[K comparable](groups map[K][]model.MatchRecord) []model.MatchRecord {
	out := make([]model.MatchRecord, 0, len(groups))
	for _, g := range groups {
		if len(g) == 1 {
			out = append(out, g[0])
		}
	}
	return out
}
