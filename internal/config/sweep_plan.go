package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// SweepPlan describes a grid of tracker configurations to run and score
// against a reference track set. Every combination of strategy, max distance
// and forecast window becomes one independent job.
type SweepPlan struct {
	Name            string    `yaml:"name" validate:"required"`
	Workers         int       `yaml:"workers" validate:"omitempty,min=1,max=256"`
	Strategies      []string  `yaml:"strategies" validate:"required,min=1,dive,oneof=greedy_sequential optimal_bipartite greedy optimal"`
	MaxDistances    []float64 `yaml:"max_distances" validate:"required,min=1,dive,gt=0"`
	ForecastWindows []int     `yaml:"forecast_windows" validate:"omitempty,dive,min=2"`
	Scores          []string  `yaml:"scores" validate:"omitempty,dive,oneof=PC HSS TSS GSS"`
}

var planValidator = validator.New()

// ParseSweepPlan decodes and validates a YAML sweep plan. Missing optional
// fields are filled with defaults.
func ParseSweepPlan(data []byte) (*SweepPlan, error) {
	var plan SweepPlan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse sweep plan YAML: %w", err)
	}
	if err := planValidator.Struct(plan); err != nil {
		return nil, fmt.Errorf("invalid sweep plan: %w", err)
	}
	for _, d := range plan.MaxDistances {
		if math.IsInf(d, 0) || math.IsNaN(d) {
			return nil, fmt.Errorf("invalid sweep plan: max distance %v is not finite", d)
		}
	}

	if plan.Workers == 0 {
		plan.Workers = DefaultWorkers
	}
	if len(plan.ForecastWindows) == 0 {
		plan.ForecastWindows = []int{DefaultForecastWindow}
	}
	if len(plan.Scores) == 0 {
		plan.Scores = []string{"PC", "HSS", "TSS", "GSS"}
	}
	return &plan, nil
}

// LoadSweepPlan reads a sweep plan from a .yaml or .yml file.
func LoadSweepPlan(path string) (*SweepPlan, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("sweep plan must have .yaml or .yml extension, got %q", ext)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read sweep plan: %w", err)
	}
	return ParseSweepPlan(data)
}

// Combinations returns the number of jobs the plan expands to.
func (p *SweepPlan) Combinations() int {
	return len(p.Strategies) * len(p.MaxDistances) * len(p.ForecastWindows)
}
