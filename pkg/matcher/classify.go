package matcher

import (
	"flag"
	"fmt"

	"github.com/wiisym/wiisym/pkg/model"
)

const DefaultAmbiguityCeiling = 16

type Config struct {
	// AmbiguityCeiling is the number of matches at which a symbol is
	// considered too generic to trust.
	AmbiguityCeiling int `yaml:"ambiguity_ceiling"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.IntVar(&cfg.AmbiguityCeiling, "matcher.ambiguity-ceiling", DefaultAmbiguityCeiling, "Number of haystack matches at which a symbol is discarded as ambiguous.")
}

func (cfg *Config) Validate() error {
	if cfg.AmbiguityCeiling < 2 {
		return fmt.Errorf("invalid ambiguity-ceiling value %d, must be at least 2", cfg.AmbiguityCeiling)
	}
	return nil
}

type Outcome int

const (
	Unresolved Outcome = iota
	Resolved
	Ambiguous
)

func (o Outcome) String() string {
	switch o {
	case Unresolved:
		return "unresolved"
	case Resolved:
		return "resolved"
	case Ambiguous:
		return "ambiguous"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

type Symbol struct {
	Name string
	Size int
}

type Result struct {
	Symbol  Symbol
	Outcome Outcome
	// Matches is the number of offsets the classification was based on.
	Matches int
	Records []model.MatchRecord
}

// Classify turns the match offsets of sym into a result. Offsets are
// relative to the haystack start, haystackBase is its address.
func Classify(sym Symbol, haystackBase uint64, offsets []int, ceiling int) Result {
	res := Result{Symbol: sym, Matches: len(offsets)}
	switch {
	case len(offsets) == 0:
		res.Outcome = Unresolved
	case len(offsets) >= ceiling:
		res.Outcome = Ambiguous
	default:
		res.Outcome = Resolved
		res.Records = make([]model.MatchRecord, len(offsets))
		for i, off := range offsets {
			res.Records[i] = model.MatchRecord{
				Position: haystackBase + uint64(off),
				Length:   sym.Size,
				Symbol:   sym.Name,
			}
		}
	}
	return res
}
