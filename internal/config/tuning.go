package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// Built-in defaults used when a field is absent from the loaded JSON.
const (
	DefaultStrategy        = "optimal_bipartite"
	DefaultMaxDistance     = 5.0
	DefaultForecastWindow  = 10
	DefaultFrameInterval   = 5 * time.Minute
	DefaultWorkers         = 4
	DefaultExternalTimeout = 10 * time.Minute
)

// TuningConfig holds the tracker parameters. Every field is optional; the
// Get* accessors fall back to the built-in defaults, so partial files are
// safe.
type TuningConfig struct {
	// Association
	Strategy    *string  `json:"strategy,omitempty"`     // "greedy_sequential" or "optimal_bipartite"
	MaxDistance *float64 `json:"max_distance,omitempty"` // rejection threshold, same units as x/y

	// Forecasting
	ForecastWindow *int `json:"forecast_window,omitempty"` // trailing points for velocity fit

	// Frame source
	FrameInterval *string `json:"frame_interval,omitempty"` // nominal frame spacing, e.g. "5m"

	// Fan-out
	Workers *int `json:"workers,omitempty"`

	// External tracker
	ExternalTimeout *string `json:"external_timeout,omitempty"` // duration string like "10m"
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated from
// the built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		Strategy:        ptrString(DefaultStrategy),
		MaxDistance:     ptrFloat64(DefaultMaxDistance),
		ForecastWindow:  ptrInt(DefaultForecastWindow),
		FrameInterval:   ptrString(DefaultFrameInterval.String()),
		Workers:         ptrInt(DefaultWorkers),
		ExternalTimeout: ptrString(DefaultExternalTimeout.String()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must have a
// .json extension and be at most 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. Panics if the file
// cannot be loaded; intended for tests and binaries.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run from repository root")
}

// Validate checks that the configured values are usable. A non-positive or
// non-finite max_distance is rejected here so that no run starts with a
// threshold that cannot produce a meaningful matching.
func (c *TuningConfig) Validate() error {
	if c.Strategy != nil {
		switch strings.ToLower(*c.Strategy) {
		case "greedy_sequential", "greedy", "sequential", "optimal_bipartite", "optimal", "hungarian":
		default:
			return fmt.Errorf("unknown strategy %q", *c.Strategy)
		}
	}

	if c.MaxDistance != nil {
		if v := *c.MaxDistance; !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("max_distance must be positive and finite, got %v", v)
		}
	}

	if c.ForecastWindow != nil && *c.ForecastWindow < 2 {
		return fmt.Errorf("forecast_window must be at least 2, got %d", *c.ForecastWindow)
	}

	if c.FrameInterval != nil && *c.FrameInterval != "" {
		d, err := time.ParseDuration(*c.FrameInterval)
		if err != nil {
			return fmt.Errorf("invalid frame_interval '%s': %w", *c.FrameInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("frame_interval must be positive, got %s", d)
		}
	}

	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}

	if c.ExternalTimeout != nil && *c.ExternalTimeout != "" {
		if _, err := time.ParseDuration(*c.ExternalTimeout); err != nil {
			return fmt.Errorf("invalid external_timeout '%s': %w", *c.ExternalTimeout, err)
		}
	}

	return nil
}

// GetStrategy returns the strategy name or the default.
func (c *TuningConfig) GetStrategy() string {
	if c.Strategy == nil || *c.Strategy == "" {
		return DefaultStrategy
	}
	return *c.Strategy
}

// GetMaxDistance returns the max_distance value or the default.
func (c *TuningConfig) GetMaxDistance() float64 {
	if c.MaxDistance == nil {
		return DefaultMaxDistance
	}
	return *c.MaxDistance
}

// GetForecastWindow returns the forecast_window value or the default.
func (c *TuningConfig) GetForecastWindow() int {
	if c.ForecastWindow == nil {
		return DefaultForecastWindow
	}
	return *c.ForecastWindow
}

// GetFrameInterval parses and returns the FrameInterval as a time.Duration.
func (c *TuningConfig) GetFrameInterval() time.Duration {
	if c.FrameInterval == nil || *c.FrameInterval == "" {
		return DefaultFrameInterval
	}
	d, err := time.ParseDuration(*c.FrameInterval)
	if err != nil || d <= 0 {
		return DefaultFrameInterval
	}
	return d
}

// GetWorkers returns the workers value or the default.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return DefaultWorkers
	}
	return *c.Workers
}

// GetExternalTimeout parses and returns the ExternalTimeout as a time.Duration.
func (c *TuningConfig) GetExternalTimeout() time.Duration {
	if c.ExternalTimeout == nil || *c.ExternalTimeout == "" {
		return DefaultExternalTimeout
	}
	d, err := time.ParseDuration(*c.ExternalTimeout)
	if err != nil {
		return DefaultExternalTimeout
	}
	return d
}
