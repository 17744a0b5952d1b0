package symmatch

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Symbols            *prometheus.CounterVec
	UnknownRelocations *prometheus.CounterVec
	Malformed          *prometheus.CounterVec
	NeedleErrors       prometheus.Counter
	CacheHits          prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Symbols: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wiisym_symbols_total",
			Help: "Total number of needle symbols matched against the haystack, by outcome",
		}, []string{"outcome"}),
		UnknownRelocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wiisym_unknown_relocations_total",
			Help: "Total number of relocations of an unknown kind, wildcarded as a whole word",
		}, []string{"kind"}),
		Malformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wiisym_malformed_items_total",
			Help: "Total number of skipped malformed symbols, archive members and dump records",
		}, []string{"item"}),
		NeedleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wiisym_needle_errors_total",
			Help: "Total number of needles that could not be read",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wiisym_pattern_cache_hits_total",
			Help: "Total number of symbols whose pattern was already scanned",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Symbols,
			m.UnknownRelocations,
			m.Malformed,
			m.NeedleErrors,
			m.CacheHits,
		)
	}

	return m
}
