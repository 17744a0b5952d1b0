// Package symmatch runs the needle libraries of a matching session against
// one haystack memory dump.
package symmatch

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/wiisym/wiisym/pkg/haystack"
	"github.com/wiisym/wiisym/pkg/mask"
	"github.com/wiisym/wiisym/pkg/matcher"
	"github.com/wiisym/wiisym/pkg/model"
	"github.com/wiisym/wiisym/pkg/objfile"
	"github.com/wiisym/wiisym/pkg/reloc"
	"github.com/wiisym/wiisym/pkg/runctx"
	"github.com/wiisym/wiisym/pkg/symrecord"
	"github.com/wiisym/wiisym/pkg/util"
)

const DefaultCacheSize = 4096

type Config struct {
	Workers   util.Workers `yaml:"workers"`
	CacheSize int          `yaml:"cache_size"`
	// DumpBase is the load address of the dumps of DUMP:SYMBOLS needles.
	DumpBase uint64 `yaml:"dump_base"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.Workers = 0
	f.Var(&cfg.Workers, "match.workers", "Number of symbols matched concurrently, auto uses GOMAXPROCS.")
	f.IntVar(&cfg.CacheSize, "match.cache-size", DefaultCacheSize, "Number of scanned patterns remembered across needles. 0 disables the cache.")
	f.Uint64Var(&cfg.DumpBase, "match.dump-base", haystack.DefaultBase, "Load address of memory dumps given as DUMP:SYMBOLS needles.")
}

func (cfg *Config) Validate() error {
	if cfg.CacheSize < 0 {
		return fmt.Errorf("invalid cache-size value %d, must not be negative", cfg.CacheSize)
	}
	return nil
}

// Stats summarises a run.
type Stats struct {
	Needles    int
	Failed     int
	Symbols    int
	Resolved   int
	Unresolved int
	Ambiguous  int
	Malformed  int
	Records    int
}

type Runner struct {
	logger   log.Logger
	fs       afero.Fs
	cfg      Config
	ceiling  int
	haystack *haystack.Haystack
	metrics  *Metrics
	cache    *patternCache

	openArchive func(path string) objfile.Archive

	stats Stats
}

// New creates a runner matching against h. Its logger, filesystem and
// metrics registry are taken from ctx.
func New(ctx context.Context, h *haystack.Haystack, cfg Config, policy matcher.Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	cache, err := newPatternCache(cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Runner{
		logger:   runctx.Logger(ctx),
		fs:       runctx.Fs(ctx),
		cfg:      cfg,
		ceiling:  policy.AmbiguityCeiling,
		haystack: h,
		metrics:  NewMetrics(runctx.Registry(ctx)),
		cache:    cache,
		openArchive: func(path string) objfile.Archive {
			return objfile.NewArTool(path)
		},
	}, nil
}

func (r *Runner) Stats() Stats { return r.stats }

// Run matches every needle in order. A needle that cannot be read is
// logged and skipped, the failures are returned together once all needles
// have been processed, along with the records of the others.
func (r *Runner) Run(ctx context.Context, needles []string) ([]model.MatchRecord, error) {
	ctx = runctx.WithLogger(ctx, r.logger)
	var (
		records []model.MatchRecord
		errs    *multierror.Error
	)
	for _, needle := range needles {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		r.stats.Needles++
		recs, err := r.MatchNeedle(ctx, needle)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return records, err
			}
			r.stats.Failed++
			r.metrics.NeedleErrors.Inc()
			level.Error(r.logger).Log("msg", "failed to match needle", "needle", needle, "err", err)
			errs = multierror.Append(errs, errors.Wrap(err, needle))
			continue
		}
		records = append(records, recs...)
	}
	r.stats.Records = len(records)
	return records, errs.ErrorOrNil()
}

// MatchNeedle dispatches on the needle kind: a static library (.a), a
// single object (.o, .elf) or a prior DUMP:SYMBOLS pair.
func (r *Runner) MatchNeedle(ctx context.Context, needle string) ([]model.MatchRecord, error) {
	ctx = runctx.WrapNeedle(ctx, needle)
	if dump, symbols, ok := strings.Cut(needle, ":"); ok && dump != "" && symbols != "" {
		return r.matchDumpFiles(ctx, dump, symbols)
	}
	switch filepath.Ext(needle) {
	case ".a":
		return r.MatchArchive(ctx, r.openArchive(needle))
	case ".o", ".elf":
		data, err := afero.ReadFile(r.fs, needle)
		if err != nil {
			return nil, err
		}
		obj, err := objfile.Open(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		return r.MatchObject(ctx, obj)
	}
	level.Warn(runctx.Logger(ctx)).Log("msg", "skipping needle of unknown type")
	return nil, nil
}

// MatchArchive matches every member of a. Members that are not valid
// objects are skipped, failing to read the archive fails the needle.
func (r *Runner) MatchArchive(ctx context.Context, a objfile.Archive) ([]model.MatchRecord, error) {
	members, err := a.Members(ctx)
	if err != nil {
		return nil, err
	}
	var records []model.MatchRecord
	for _, name := range members {
		mctx := runctx.WithLogger(ctx, log.With(runctx.Logger(ctx), "member", name))
		level.Debug(runctx.Logger(mctx)).Log("msg", "crawling archive member")
		data, err := a.Member(ctx, name)
		if err != nil {
			return nil, err
		}
		obj, err := objfile.Open(bytes.NewReader(data))
		if err != nil {
			r.malformed(mctx, "member", err)
			continue
		}
		recs, err := r.MatchObject(mctx, obj)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	return records, nil
}

// MatchObject matches the function symbols of obj, each with the
// relocations that fall inside its body.
func (r *Runner) MatchObject(ctx context.Context, obj *objfile.Object) ([]model.MatchRecord, error) {
	jobs := make([]job, 0, len(obj.Symbols))
	for _, sym := range obj.Symbols {
		code, err := obj.Function(sym)
		if err != nil {
			r.malformed(ctx, "symbol", err)
			continue
		}
		jobs = append(jobs, job{
			code:   code,
			relocs: obj.Relocs.Query(code.Base, uint64(code.Size())),
		})
	}
	return r.matchJobs(ctx, jobs)
}

// MatchDump matches the bodies of symbols, sliced out of a previously
// matched dump. Dump bodies carry no relocations.
func (r *Runner) MatchDump(ctx context.Context, dump *haystack.Haystack, symbols []model.MatchRecord) ([]model.MatchRecord, error) {
	jobs := make([]job, 0, len(symbols))
	for _, s := range symbols {
		body, ok := dump.Slice(s.Position, s.Length)
		if !ok || len(body) == 0 {
			r.malformed(ctx, "dump_record", fmt.Errorf("%s: outside of dump %s", s, dump.Name))
			continue
		}
		jobs = append(jobs, job{code: model.CodeBytes{Name: s.Symbol, Base: s.Position, Bytes: body}})
	}
	return r.matchJobs(ctx, jobs)
}

func (r *Runner) matchDumpFiles(ctx context.Context, dumpPath, symbolsPath string) ([]model.MatchRecord, error) {
	dump, err := haystack.Load(r.fs, dumpPath, r.cfg.DumpBase, 0)
	if err != nil {
		return nil, err
	}
	symbols, err := symrecord.ReadFile(r.fs, symbolsPath)
	if err != nil {
		return nil, err
	}
	return r.MatchDump(ctx, dump, symbols)
}

func (r *Runner) malformed(ctx context.Context, item string, err error) {
	r.stats.Malformed++
	r.metrics.Malformed.WithLabelValues(item).Inc()
	level.Warn(runctx.Logger(ctx)).Log("msg", "skipping malformed "+strings.ReplaceAll(item, "_", " "), "err", err)
}

type job struct {
	code   model.CodeBytes
	relocs []reloc.Record
}

type jobResult struct {
	matcher.Result
	warnings []mask.Warning
}

// matchJobs scans the haystack for every job concurrently. Results are
// logged and merged in job order.
func (r *Runner) matchJobs(ctx context.Context, jobs []job) ([]model.MatchRecord, error) {
	results := make([]jobResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers.Count())
	for i := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.match(jobs[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger := runctx.Logger(ctx)
	var records []model.MatchRecord
	for _, res := range results {
		name := res.Symbol.Name
		for _, w := range res.warnings {
			r.metrics.UnknownRelocations.WithLabelValues(w.Kind.String()).Inc()
			level.Warn(logger).Log("msg", "unknown relocation kind, wildcarding whole word", "sym", name, "offset", fmt.Sprintf("%#x", w.Offset), "kind", w.Kind)
		}
		r.stats.Symbols++
		r.metrics.Symbols.WithLabelValues(res.Outcome.String()).Inc()
		switch res.Outcome {
		case matcher.Resolved:
			r.stats.Resolved++
			for _, rec := range res.Records {
				level.Info(logger).Log("msg", "symbol matched", "sym", name, "pos", fmt.Sprintf("%08x", rec.Position), "matches", res.Matches)
			}
		case matcher.Ambiguous:
			r.stats.Ambiguous++
			level.Info(logger).Log("msg", "too many matches, discarding symbol", "sym", name, "matches", res.Matches)
		default:
			r.stats.Unresolved++
			level.Debug(logger).Log("msg", "symbol not found", "sym", name)
		}
		records = append(records, res.Records...)
	}
	return records, nil
}

func (r *Runner) match(j job) jobResult {
	m, warnings := mask.Build(j.code, j.relocs)
	key := patternKey(j.code.Bytes, m)
	offsets, ok := r.cache.get(key, j.code.Bytes, m)
	if ok {
		r.metrics.CacheHits.Inc()
	} else {
		offsets = matcher.Compile(j.code, m).Find(r.haystack.Bytes, r.ceiling)
		r.cache.add(key, j.code.Bytes, m, offsets)
	}
	sym := matcher.Symbol{Name: j.code.Name, Size: j.code.Size()}
	return jobResult{
		Result:   matcher.Classify(sym, r.haystack.Base, offsets, r.ceiling),
		warnings: warnings,
	}
}
