package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/wiisym/wiisym/pkg/runctx"
	"github.com/wiisym/wiisym/pkg/symrecord"
)

// writeRecords writes records to path, or to the command output when path
// is "-". Nothing is written for an empty path.
func writeRecords(ctx context.Context, path string, records []symrecord.Record, appendTo bool) error {
	switch path {
	case "":
		return nil
	case "-":
		return symrecord.WriteRecords(output(ctx), records)
	}
	return symrecord.WriteRecordsFile(runctx.Fs(ctx), path, records, appendTo)
}

// address is a flag value accepting decimal, 0x hex and 0 octal numbers.
type address struct {
	value uint64
	set   bool
}

func (a *address) Set(s string) error {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", s, err)
	}
	a.value, a.set = v, true
	return nil
}

func (a *address) String() string { return fmt.Sprintf("%#x", a.value) }

// or returns the flag value if it was given, def otherwise.
func (a *address) or(def uint64) uint64 {
	if a.set {
		return a.value
	}
	return def
}
