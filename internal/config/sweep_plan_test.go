package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSweepPlan(t *testing.T) {
	t.Parallel()

	plan, err := ParseSweepPlan([]byte(`
name: grid
strategies: [greedy_sequential, optimal_bipartite]
max_distances: [2, 4, 8]
forecast_windows: [3, 10]
`))
	require.NoError(t, err)

	assert.Equal(t, "grid", plan.Name)
	assert.Equal(t, DefaultWorkers, plan.Workers)
	assert.Equal(t, []string{"PC", "HSS", "TSS", "GSS"}, plan.Scores)
	assert.Equal(t, 12, plan.Combinations())
}

func TestParseSweepPlanDefaultsWindow(t *testing.T) {
	t.Parallel()

	plan, err := ParseSweepPlan([]byte(`
name: minimal
strategies: [optimal]
max_distances: [5]
`))
	require.NoError(t, err)
	assert.Equal(t, []int{DefaultForecastWindow}, plan.ForecastWindows)
	assert.Equal(t, 1, plan.Combinations())
}

func TestParseSweepPlanRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{"missing name", "strategies: [greedy]\nmax_distances: [1]\n"},
		{"no strategies", "name: x\nmax_distances: [1]\n"},
		{"unknown strategy", "name: x\nstrategies: [nearest]\nmax_distances: [1]\n"},
		{"zero distance", "name: x\nstrategies: [greedy]\nmax_distances: [0]\n"},
		{"infinite distance", "name: x\nstrategies: [greedy]\nmax_distances: [.inf]\n"},
		{"window too small", "name: x\nstrategies: [greedy]\nmax_distances: [1]\nforecast_windows: [1]\n"},
		{"unknown score", "name: x\nstrategies: [greedy]\nmax_distances: [1]\nscores: [CSI]\n"},
		{"not yaml", "name: [unterminated"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseSweepPlan([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadSweepPlan(t *testing.T) {
	t.Parallel()

	plan, err := LoadSweepPlan("../../config/sweep.example.yaml")
	require.NoError(t, err)
	assert.Equal(t, "baseline-comparison", plan.Name)
	assert.Equal(t, 12, plan.Combinations())

	dir := t.TempDir()
	path := filepath.Join(dir, "plan.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
	_, err = LoadSweepPlan(path)
	assert.Error(t, err)
}
