package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (cfg *Log) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&cfg.Level, "log.level", "info", "Only log messages with the given severity or above. Valid levels: [debug, info, warn, error]")
	f.StringVar(&cfg.Format, "log.format", "logfmt", "Output log messages in the given format. Valid formats: [logfmt, json]")
}

func (cfg *Log) Validate() error {
	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", cfg.Level)
	}
	switch cfg.Format {
	case "logfmt", "json":
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return nil
}

// NewLogger returns a logger writing to w, filtered to the configured
// level.
func (cfg *Log) NewLogger(w io.Writer) log.Logger {
	w = log.NewSyncWriter(w)
	var logger log.Logger
	if cfg.Format == "json" {
		logger = log.NewJSONLogger(w)
	} else {
		logger = log.NewLogfmtLogger(w)
	}
	return level.NewFilter(logger, levelFilter(cfg.Level))
}

func levelFilter(l string) level.Option {
	switch l {
	case "debug":
		return level.AllowDebug()
	case "info":
		return level.AllowInfo()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowAll()
	}
}
