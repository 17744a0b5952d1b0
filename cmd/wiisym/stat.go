package main

import (
	"context"

	"github.com/wiisym/wiisym/pkg/runctx"
	"github.com/wiisym/wiisym/pkg/stat"
)

type statParams struct {
	tables []string
	wiitdb string
}

func addStatParams(cmd commander) *statParams {
	params := &statParams{}
	cmd.Arg("table", "Symbol tables named after their game ID.").Required().StringsVar(&params.tables)
	cmd.Flag("wiitdb", "Game title list from https://www.gametdb.com/wiitdb.txt").Required().StringVar(&params.wiitdb)
	return params
}

func statTables(ctx context.Context, params *statParams) error {
	fs := runctx.Fs(ctx)
	f, err := fs.Open(params.wiitdb)
	if err != nil {
		return err
	}
	defer f.Close()
	db, err := stat.ParseTitleDB(f)
	if err != nil {
		return err
	}
	rows, err := stat.Collect(fs, params.tables, db)
	if err != nil {
		return err
	}
	stat.Render(output(ctx), rows)
	return nil
}
