package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Config collects everything the analysis run needs. Zero values are filled
// with defaults, so an empty (or absent) file runs the synthetic demo.
type Config struct {
	Data    DataConfig    `yaml:"data"`
	Fit     FitConfig     `yaml:"fit"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// DataConfig selects the input spectra. When File is empty a synthetic
// dataset with a known diffusion law is generated instead.
type DataConfig struct {
	File       string  `yaml:"file"`       // sample spectra, DAVE grouped-data text
	Resolution string  `yaml:"resolution"` // vanadium resolution run, same format
	EMin       float64 `yaml:"emin"`       // fit window lower edge, meV
	EMax       float64 `yaml:"emax"`       // fit window upper edge, meV
}

// FitConfig tunes the optimizer and the shared-parameter starting point.
type FitConfig struct {
	Reference     int     `yaml:"reference"` // spectrum index used for the single-fit walkthrough
	MaxIterations int     `yaml:"maxIterations"`
	D0            float64 `yaml:"d0"`   // diffusion coefficient seed, Å²/ps
	Tau0          float64 `yaml:"tau0"` // residence time seed, ps
}

// OutputConfig controls plot files and the interactive preview.
type OutputConfig struct {
	Dir     string `yaml:"dir"`
	Preview bool   `yaml:"preview"` // open gnuplot windows via glot
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

var errConfig = errors.New("qens-fit: invalid configuration")

func defaultConfig() Config {
	return Config{
		Data: DataConfig{EMin: -0.4, EMax: 0.4},
		Fit: FitConfig{
			Reference:     0,
			MaxIterations: 200,
			D0:            0.15,
			Tau0:          1.0,
		},
		Output:  OutputConfig{Dir: "out"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// loadConfig reads a YAML file over the defaults. A missing file is only an
// error when the path was given explicitly.
func loadConfig(path string, explicit bool) (Config, error) {
	cfg := defaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.Data.EMin >= c.Data.EMax {
		return fmt.Errorf("%w: emin %g >= emax %g", errConfig, c.Data.EMin, c.Data.EMax)
	}
	if c.Fit.Reference < 0 {
		return fmt.Errorf("%w: reference spectrum %d", errConfig, c.Fit.Reference)
	}
	if c.Fit.D0 <= 0 || c.Fit.Tau0 <= 0 {
		return fmt.Errorf("%w: d0 %g and tau0 %g must be positive", errConfig, c.Fit.D0, c.Fit.Tau0)
	}
	if c.Data.File != "" && c.Data.Resolution == "" {
		return fmt.Errorf("%w: data file set without a resolution file", errConfig)
	}

	return nil
}
