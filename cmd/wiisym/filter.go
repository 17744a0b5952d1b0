package main

import (
	"context"
	"strings"

	"github.com/go-kit/log/level"
	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"

	"github.com/wiisym/wiisym/pkg/config"
	"github.com/wiisym/wiisym/pkg/model"
	"github.com/wiisym/wiisym/pkg/reconcile"
	"github.com/wiisym/wiisym/pkg/runctx"
	"github.com/wiisym/wiisym/pkg/symrecord"
)

type filterParams struct {
	tables []string
	output string
	stages string
}

func addFilterParams(cmd commander) *filterParams {
	params := &filterParams{}
	cmd.Arg("symbols", "Symbol tables to reconcile.").Required().StringsVar(&params.tables)
	cmd.Flag("output", "Write the reconciled table to this file, '-' is stdout.").Short('o').Default("").StringVar(&params.output)
	cmd.Flag("stages", "Comma separated order of the reconciliation stages. Overrides the configuration.").PlaceHolder("address,name").Default("").StringVar(&params.stages)
	return params
}

func filter(ctx context.Context, conf *config.Config, params *filterParams) error {
	logger := runctx.Logger(ctx)
	if params.stages != "" {
		conf.Reconcile.Stages = lo.Map(strings.Split(params.stages, ","), func(s string, _ int) reconcile.Stage {
			return reconcile.Stage(strings.TrimSpace(s))
		})
	}
	if err := conf.Reconcile.Validate(); err != nil {
		return err
	}

	var (
		records []model.MatchRecord
		// the first line read for a match is written back with all its fields
		lines = make(map[model.MatchRecord]symrecord.Record)
		errs  *multierror.Error
	)
	for _, path := range params.tables {
		entries, err := symrecord.ReadEntriesFile(runctx.Fs(ctx), path)
		if err != nil {
			level.Warn(logger).Log("msg", "skipping symbol table", "path", path, "err", err)
			errs = multierror.Append(errs, err)
			continue
		}
		for _, e := range entries {
			if _, ok := lines[e.Match]; !ok {
				lines[e.Match] = e.Record
			}
			records = append(records, e.Match)
		}
	}

	table, stats := reconcile.Reconcile(records, conf.Reconcile)
	level.Info(logger).Log("msg", "loaded matches", "matches", stats.Loaded, "distinct", stats.Distinct)
	level.Info(logger).Log("msg", "found symbol addresses", "addresses", stats.Addresses, "unambiguous", stats.ByAddress)
	level.Info(logger).Log("msg", "found symbol names", "names", stats.Names, "unambiguous", stats.ByName)

	out := lo.Map(table.Records, func(m model.MatchRecord, _ int) symrecord.Record { return lines[m] })
	if err := writeRecords(ctx, params.output, out, false); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}
