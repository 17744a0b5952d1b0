package main

import (
	"context"
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wiisym/wiisym/pkg/config"
	"github.com/wiisym/wiisym/pkg/haystack"
	"github.com/wiisym/wiisym/pkg/runctx"
	"github.com/wiisym/wiisym/pkg/symmatch"
	"github.com/wiisym/wiisym/pkg/symrecord"
	"github.com/wiisym/wiisym/pkg/util"
)

type matchParams struct {
	haystack     string
	needles      []string
	haystackBase address
	haystackSize address
	output       string
	ceiling      int
	workers      util.Workers
	metricsFile  string
}

func addMatchParams(cmd commander) *matchParams {
	params := &matchParams{workers: -1}
	cmd.Arg("memdump", "Memory dump to search, optionally gzip or zstd compressed.").Required().StringVar(&params.haystack)
	cmd.Arg("lib", "Static libraries (.a), objects (.o, .elf) and DUMP:SYMBOLS pairs of already matched dumps.").Required().StringsVar(&params.needles)
	cmd.Flag("haystack-base", "Address the memory dump is mapped at.").PlaceHolder("0x80000000").SetValue(&params.haystackBase)
	cmd.Flag("haystack-size", "Only search the first bytes of the memory dump.").PlaceHolder("SIZE").SetValue(&params.haystackSize)
	cmd.Flag("output", "Append matched symbols to this file, '-' is stdout.").Short('o').Default("").StringVar(&params.output)
	cmd.Flag("ambiguity-ceiling", "Number of matches at which a symbol is discarded as ambiguous. Overrides the configuration.").Default("0").IntVar(&params.ceiling)
	cmd.Flag("workers", "Number of symbols matched concurrently, 'auto' uses all CPUs. Overrides the configuration.").SetValue(&params.workers)
	cmd.Flag("metrics-file", "Write the run metrics to this file in the Prometheus text format.").Default("").StringVar(&params.metricsFile)
	return params
}

// maxHaystackSize returns the --haystack-size limit, 0 when not given.
func (p *matchParams) maxHaystackSize() (int, error) {
	if !p.haystackSize.set {
		return 0, nil
	}
	if p.haystackSize.value == 0 {
		return 0, fmt.Errorf("invalid haystack size 0, must be positive")
	}
	return int(min(p.haystackSize.value, math.MaxInt)), nil
}

func match(ctx context.Context, conf *config.Config, params *matchParams) error {
	logger := runctx.Logger(ctx)
	if params.ceiling > 0 {
		conf.Matcher.AmbiguityCeiling = params.ceiling
	}
	if params.workers >= 0 {
		conf.Match.Workers = params.workers
	}

	size, err := params.maxHaystackSize()
	if err != nil {
		return err
	}
	h, err := haystack.Load(runctx.Fs(ctx), params.haystack, params.haystackBase.or(haystack.DefaultBase), size)
	if err != nil {
		return err
	}
	level.Info(logger).Log(
		"msg", "loaded haystack",
		"path", h.Name,
		"base", fmt.Sprintf("%08x", h.Base),
		"size", humanize.IBytes(uint64(len(h.Bytes))),
	)

	reg := prometheus.NewRegistry()
	ctx = runctx.WithRegistry(ctx, reg)
	runner, err := symmatch.New(ctx, h, conf.Match, conf.Matcher)
	if err != nil {
		return err
	}
	records, runErr := runner.Run(ctx, params.needles)

	stats := runner.Stats()
	level.Info(logger).Log(
		"msg", "matching finished",
		"needles", stats.Needles,
		"failed", stats.Failed,
		"symbols", stats.Symbols,
		"resolved", stats.Resolved,
		"ambiguous", stats.Ambiguous,
		"unresolved", stats.Unresolved,
		"malformed", stats.Malformed,
		"records", stats.Records,
	)

	var errs *multierror.Error
	if runErr != nil {
		errs = multierror.Append(errs, runErr)
	}
	if err := writeRecords(ctx, params.output, symrecord.FromMatches(records), true); err != nil {
		errs = multierror.Append(errs, err)
	}
	if params.metricsFile != "" {
		if err := prometheus.WriteToTextfile(params.metricsFile, reg); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
