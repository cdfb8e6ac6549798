package calibration

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ErrConfig is matched by every calibration configuration error.
var ErrConfig = errors.New("invalid calibration config")

// DefaultConfigPath is the packaged location of the calibration config.
const DefaultConfigPath = "data/ecal.yaml"

//go:embed data/ecal.yaml
var defaultConfig []byte

// Model is the linear model of one brem category.
type Model struct {
	Brem      int       `yaml:"brem"`
	Intercept float64   `yaml:"intercept"`
	Weights   []float64 `yaml:"weights"`
}

// Config is the calibration regressor configuration. Each model predicts
// mu = E_reco / E_true from Features, in that order.
type Config struct {
	Features []string `yaml:"features"`
	MinMu    float64  `yaml:"min_mu"`
	MaxMu    float64  `yaml:"max_mu"`
	Models   []Model  `yaml:"models"`
}

// LoadConfig decodes and validates a YAML config.
func LoadConfig(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns the packaged config.
func DefaultConfig() (*Config, error) {
	logs.Diagf("Loading config for calibration: %s", DefaultConfigPath)
	return LoadConfig(bytes.NewReader(defaultConfig))
}

// Validate checks that every model matches the feature list and that
// both brem categories are covered.
func (c *Config) Validate() error {
	if len(c.Features) == 0 {
		return fmt.Errorf("%w: no features", ErrConfig)
	}
	if !(c.MinMu > 0 && c.MinMu < c.MaxMu) {
		return fmt.Errorf("%w: mu range [%v, %v]", ErrConfig, c.MinMu, c.MaxMu)
	}

	seen := map[int]bool{}
	for _, m := range c.Models {
		if m.Brem != 0 && m.Brem != 1 {
			return fmt.Errorf("%w: brem category %d", ErrConfig, m.Brem)
		}
		if seen[m.Brem] {
			return fmt.Errorf("%w: duplicate model for brem %d", ErrConfig, m.Brem)
		}
		if len(m.Weights) != len(c.Features) {
			return fmt.Errorf("%w: brem %d has %d weights for %d features",
				ErrConfig, m.Brem, len(m.Weights), len(c.Features))
		}
		seen[m.Brem] = true
	}
	for _, b := range []int{0, 1} {
		if !seen[b] {
			return fmt.Errorf("%w: no model for brem %d", ErrConfig, b)
		}
	}
	return nil
}
