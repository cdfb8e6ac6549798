package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/bremcorr/internal/brem"
	"github.com/banshee-data/bremcorr/internal/masscorr"
	"github.com/banshee-data/bremcorr/internal/monitoring"
	"github.com/banshee-data/bremcorr/internal/pipeline"
)

// DefaultConfigPath is the path to the canonical run defaults file.
const DefaultConfigPath = "config/correction.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// CorrectionConfig holds the parameters of a correction run. Every field
// is optional; the Get* methods supply the defaults for omitted ones.
type CorrectionConfig struct {
	// Correction
	Strategy            *string  `json:"strategy,omitempty"`
	BremEnergyThreshold *float64 `json:"brem_energy_threshold,omitempty"`
	SkipCorrection      *bool    `json:"skip_correction,omitempty"`
	UseCalibration      *bool    `json:"use_calibration,omitempty"`

	// Processing
	Workers   *int `json:"workers,omitempty"`
	ChunkSize *int `json:"chunk_size,omitempty"`
	MaxRows   *int `json:"max_rows,omitempty"`

	// Tables
	InputTable  *string `json:"input_table,omitempty"`
	OutputTable *string `json:"output_table,omitempty"`
	Suffix      *string `json:"suffix,omitempty"`

	LogLevel *string `json:"log_level,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyCorrectionConfig returns a CorrectionConfig with all fields unset.
func EmptyCorrectionConfig() *CorrectionConfig {
	return &CorrectionConfig{}
}

// DefaultCorrectionConfig returns a CorrectionConfig with every field set
// to its default.
func DefaultCorrectionConfig() *CorrectionConfig {
	c := EmptyCorrectionConfig()
	return &CorrectionConfig{
		Strategy:            ptrString(c.GetStrategy()),
		BremEnergyThreshold: ptrFloat64(c.GetBremEnergyThreshold()),
		SkipCorrection:      ptrBool(c.GetSkipCorrection()),
		UseCalibration:      ptrBool(c.GetUseCalibration()),
		Workers:             ptrInt(c.GetWorkers()),
		ChunkSize:           ptrInt(c.GetChunkSize()),
		MaxRows:             ptrInt(c.GetMaxRows()),
		InputTable:          ptrString(c.GetInputTable()),
		OutputTable:         ptrString(c.GetOutputTable()),
		Suffix:              ptrString(c.GetSuffix()),
		LogLevel:            ptrString(c.GetLogLevel()),
	}
}

// LoadCorrectionConfig loads a CorrectionConfig from a JSON file.
// The file must have a .json extension and be at most 1MB. Unknown keys
// are rejected.
func LoadCorrectionConfig(path string) (*CorrectionConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()

	cfg := EmptyCorrectionConfig()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. It panics when the file cannot be loaded and is
// intended for test setup.
func MustLoadDefaultConfig() *CorrectionConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadCorrectionConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the fields that are set.
func (c *CorrectionConfig) Validate() error {
	if c.Strategy != nil {
		if _, err := brem.ParseStrategy(*c.Strategy, c.GetBremEnergyThreshold()); err != nil {
			return err
		}
	}
	if c.BremEnergyThreshold != nil && *c.BremEnergyThreshold < 0 {
		return fmt.Errorf("brem_energy_threshold must be non-negative, got %f", *c.BremEnergyThreshold)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.ChunkSize != nil && *c.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be at least 1, got %d", *c.ChunkSize)
	}
	if c.MaxRows != nil && *c.MaxRows < 0 {
		return fmt.Errorf("max_rows must be non-negative, got %d", *c.MaxRows)
	}
	if c.InputTable != nil && *c.InputTable == "" {
		return fmt.Errorf("input_table must not be empty")
	}
	if c.LogLevel != nil {
		if _, err := monitoring.ParseLevel(*c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

// Merge overlays the fields set in o onto c.
func (c *CorrectionConfig) Merge(o *CorrectionConfig) {
	if o == nil {
		return
	}
	if o.Strategy != nil {
		c.Strategy = o.Strategy
	}
	if o.BremEnergyThreshold != nil {
		c.BremEnergyThreshold = o.BremEnergyThreshold
	}
	if o.SkipCorrection != nil {
		c.SkipCorrection = o.SkipCorrection
	}
	if o.UseCalibration != nil {
		c.UseCalibration = o.UseCalibration
	}
	if o.Workers != nil {
		c.Workers = o.Workers
	}
	if o.ChunkSize != nil {
		c.ChunkSize = o.ChunkSize
	}
	if o.MaxRows != nil {
		c.MaxRows = o.MaxRows
	}
	if o.InputTable != nil {
		c.InputTable = o.InputTable
	}
	if o.OutputTable != nil {
		c.OutputTable = o.OutputTable
	}
	if o.Suffix != nil {
		c.Suffix = o.Suffix
	}
	if o.LogLevel != nil {
		c.LogLevel = o.LogLevel
	}
}

// BremStrategy parses the configured strategy with the configured
// threshold.
func (c *CorrectionConfig) BremStrategy() (brem.Strategy, error) {
	return brem.ParseStrategy(c.GetStrategy(), c.GetBremEnergyThreshold())
}

// GetStrategy returns the strategy value or the default.
func (c *CorrectionConfig) GetStrategy() string {
	if c.Strategy == nil {
		return brem.NameTrackBremRescaled
	}
	return *c.Strategy
}

// GetBremEnergyThreshold returns the brem_energy_threshold value or the default.
func (c *CorrectionConfig) GetBremEnergyThreshold() float64 {
	if c.BremEnergyThreshold == nil {
		return masscorr.DefaultThreshold
	}
	return *c.BremEnergyThreshold
}

// GetSkipCorrection returns the skip_correction value or the default.
func (c *CorrectionConfig) GetSkipCorrection() bool {
	if c.SkipCorrection == nil {
		return false
	}
	return *c.SkipCorrection
}

// GetUseCalibration returns the use_calibration value or the default.
func (c *CorrectionConfig) GetUseCalibration() bool {
	if c.UseCalibration == nil {
		return true
	}
	return *c.UseCalibration
}

// GetWorkers returns the workers value or the default.
func (c *CorrectionConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// GetChunkSize returns the chunk_size value or the default.
func (c *CorrectionConfig) GetChunkSize() int {
	if c.ChunkSize == nil {
		return pipeline.DefaultChunkSize
	}
	return *c.ChunkSize
}

// GetMaxRows returns the max_rows value or the default (all rows).
func (c *CorrectionConfig) GetMaxRows() int {
	if c.MaxRows == nil {
		return 0
	}
	return *c.MaxRows
}

// GetInputTable returns the input_table value or the default.
func (c *CorrectionConfig) GetInputTable() string {
	if c.InputTable == nil {
		return "DecayTree"
	}
	return *c.InputTable
}

// GetSuffix returns the suffix value or the default, the strategy name.
func (c *CorrectionConfig) GetSuffix() string {
	if c.Suffix == nil {
		return c.GetStrategy()
	}
	return *c.Suffix
}

// GetOutputTable returns the output_table value or the default,
// "<input>_<suffix>".
func (c *CorrectionConfig) GetOutputTable() string {
	if c.OutputTable == nil || *c.OutputTable == "" {
		if s := c.GetSuffix(); s != "" {
			return c.GetInputTable() + "_" + s
		}
		return c.GetInputTable() + "_corrected"
	}
	return *c.OutputTable
}

// GetLogLevel returns the log_level value or the default.
func (c *CorrectionConfig) GetLogLevel() string {
	if c.LogLevel == nil {
		return "info"
	}
	return *c.LogLevel
}
