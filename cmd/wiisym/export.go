package main

import (
	"bytes"
	"context"

	"github.com/spf13/afero"

	"github.com/wiisym/wiisym/pkg/export"
	"github.com/wiisym/wiisym/pkg/objfile"
	"github.com/wiisym/wiisym/pkg/runctx"
	"github.com/wiisym/wiisym/pkg/symrecord"
)

type exportParams struct {
	elf    string
	output string
}

func addExportParams(cmd commander) *exportParams {
	params := &exportParams{}
	cmd.Arg("elf", "Linked game ELF to export the symbols of.").Required().StringVar(&params.elf)
	cmd.Flag("output", "Write the symbols to this file, '-' is stdout.").Short('o').Default("-").StringVar(&params.output)
	return params
}

func exportSymbols(ctx context.Context, params *exportParams) error {
	data, err := afero.ReadFile(runctx.Fs(ctx), params.elf)
	if err != nil {
		return err
	}
	obj, err := objfile.Open(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return writeRecords(ctx, params.output, symrecord.FromMatches(export.Symbols(obj)), false)
}
