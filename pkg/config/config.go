// Package config holds the settings of a wiisym run, loaded from an
// optional YAML file on top of the flag defaults.
package config

import (
	"bytes"
	"flag"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/wiisym/wiisym/pkg/matcher"
	"github.com/wiisym/wiisym/pkg/reconcile"
	"github.com/wiisym/wiisym/pkg/symmatch"
)

type Config struct {
	Log       Log              `yaml:"log"`
	Matcher   matcher.Config   `yaml:"matcher"`
	Match     symmatch.Config  `yaml:"match"`
	Reconcile reconcile.Config `yaml:"reconcile"`
}

// RegisterFlags registers the flags of every component and sets their
// defaults.
func (c *Config) RegisterFlags(f *flag.FlagSet) {
	c.Log.RegisterFlags(f)
	c.Matcher.RegisterFlags(f)
	c.Match.RegisterFlags(f)
	c.Reconcile.RegisterFlags(f)
}

func (c *Config) Validate() error {
	var errs *multierror.Error
	for _, v := range []struct {
		name string
		cfg  interface{ Validate() error }
	}{
		{"log", &c.Log},
		{"matcher", &c.Matcher},
		{"match", &c.Match},
		{"reconcile", &c.Reconcile},
	} {
		if err := v.cfg.Validate(); err != nil {
			errs = multierror.Append(errs, errors.Wrap(err, v.name))
		}
	}
	return errs.ErrorOrNil()
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.RegisterFlags(flag.NewFlagSet("defaults", flag.ContinueOnError))
	return c
}

// Load reads the YAML file at path over the defaults. An empty path
// returns the defaults. Unknown keys are rejected.
func Load(fs afero.Fs, path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}
	return c, nil
}
