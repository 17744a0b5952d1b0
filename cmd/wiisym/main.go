package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-kit/log/level"
	"github.com/prometheus/common/version"
	"github.com/spf13/afero"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/wiisym/wiisym/pkg/config"
	"github.com/wiisym/wiisym/pkg/runctx"
)

var cfg struct {
	verbose    bool
	configFile string
}

var consoleOutput = os.Stderr

func main() {
	app := kingpin.New(filepath.Base(os.Args[0]), "Recovers function symbols of Wii and GameCube games by matching SDK libraries against memory dumps.").UsageWriter(os.Stdout)
	app.Version(version.Print("wiisym"))
	app.HelpFlag.Short('h')
	app.Flag("verbose", "Enable verbose logging.").Short('v').Default("0").BoolVar(&cfg.verbose)
	app.Flag("config.file", "YAML file to load the configuration from.").Default("").StringVar(&cfg.configFile)

	matchCmd := app.Command("match", "Match the functions of static libraries and objects against a memory dump.")
	matchParams := addMatchParams(matchCmd)

	filterCmd := app.Command("filter", "Reconcile symbol tables into one unambiguous table.")
	filterParams := addFilterParams(filterCmd)

	compareCmd := app.Command("compare", "Compare the bodies of symbols found in several memory dumps.")
	compareParams := addCompareParams(compareCmd)

	exportCmd := app.Command("export", "Export the function symbols of a linked ELF.")
	exportParams := addExportParams(exportCmd)

	statCmd := app.Command("stat", "Render a markdown table with the symbol count of each table.")
	statParams := addStatParams(statCmd)

	// parse command line arguments
	parsedCmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	fs := afero.NewOsFs()
	conf, err := config.Load(fs, cfg.configFile)
	if err != nil {
		os.Exit(checkError(err))
	}
	// enable verbose logging if requested
	if cfg.verbose {
		conf.Log.Level = "debug"
	}
	logger := conf.Log.NewLogger(consoleOutput)

	ctx := runctx.WithLogger(context.Background(), logger)
	ctx = runctx.WithFs(ctx, fs)
	ctx = withOutput(ctx, os.Stdout)

	switch parsedCmd {
	case matchCmd.FullCommand():
		os.Exit(checkError(match(ctx, conf, matchParams)))
	case filterCmd.FullCommand():
		os.Exit(checkError(filter(ctx, conf, filterParams)))
	case compareCmd.FullCommand():
		os.Exit(checkError(compare(ctx, conf, compareParams)))
	case exportCmd.FullCommand():
		os.Exit(checkError(exportSymbols(ctx, exportParams)))
	case statCmd.FullCommand():
		os.Exit(checkError(statTables(ctx, statParams)))
	default:
		level.Error(logger).Log("msg", "unknown command", "cmd", parsedCmd)
	}
}

func checkError(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return 1
}

type contextKey uint8

const (
	contextKeyOutput contextKey = iota
)

func withOutput(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, contextKeyOutput, w)
}

func output(ctx context.Context) io.Writer {
	if w, ok := ctx.Value(contextKeyOutput).(io.Writer); ok {
		return w
	}
	return os.Stdout
}

type commander interface {
	Flag(name, help string) *kingpin.FlagClause
	Arg(name, help string) *kingpin.ArgClause
}
