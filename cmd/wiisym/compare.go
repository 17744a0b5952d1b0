package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"

	"github.com/wiisym/wiisym/pkg/config"
	"github.com/wiisym/wiisym/pkg/disasm"
	"github.com/wiisym/wiisym/pkg/dumpdiff"
	"github.com/wiisym/wiisym/pkg/haystack"
	"github.com/wiisym/wiisym/pkg/runctx"
	"github.com/wiisym/wiisym/pkg/symrecord"
)

type compareParams struct {
	pairs []string
	base  address
}

func addCompareParams(cmd commander) *compareParams {
	params := &compareParams{}
	cmd.Arg("dump:symbols", "Memory dump and symbol table pairs to compare.").Required().StringsVar(&params.pairs)
	cmd.Flag("base", "Address the memory dumps are mapped at, match.dump_base of the configuration by default.").PlaceHolder("0x80000000").SetValue(&params.base)
	return params
}

func compare(ctx context.Context, conf *config.Config, params *compareParams) error {
	var (
		logger = runctx.Logger(ctx)
		base   = params.base.or(conf.Match.DumpBase)
		dumps  = make([]dumpdiff.Dump, 0, len(params.pairs))
		errs   *multierror.Error
	)
	for _, pair := range params.pairs {
		d, err := loadDump(ctx, pair, base)
		if err != nil {
			level.Warn(logger).Log("msg", "skipping dump", "dump", pair, "err", err)
			errs = multierror.Append(errs, err)
			continue
		}
		dumps = append(dumps, d)
	}

	symbols := dumpdiff.Collect(dumps, base)
	diffs := dumpdiff.CompareAll(symbols, disasm.NewPPC())
	level.Debug(logger).Log("msg", "compared symbols", "dumps", len(dumps), "symbols", len(symbols), "differing", len(diffs))
	if err := dumpdiff.Write(output(ctx), diffs); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

func loadDump(ctx context.Context, pair string, base uint64) (dumpdiff.Dump, error) {
	fs := runctx.Fs(ctx)
	dumpPath, symbolsPath, ok := strings.Cut(pair, ":")
	if !ok || dumpPath == "" || symbolsPath == "" {
		return dumpdiff.Dump{}, fmt.Errorf("invalid dump %q, expected DUMP:SYMBOLS", pair)
	}
	h, err := haystack.Load(fs, dumpPath, base, 0)
	if err != nil {
		return dumpdiff.Dump{}, err
	}
	symbols, err := symrecord.ReadFile(fs, symbolsPath)
	if err != nil {
		return dumpdiff.Dump{}, err
	}
	return dumpdiff.Dump{Name: dumpPath, Bytes: h.Bytes, Symbols: symbols}, nil
}
