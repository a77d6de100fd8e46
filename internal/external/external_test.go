package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/celltrack/internal/config"
	"github.com/banshee-data/celltrack/internal/monitoring"
)

// TestHelperProcess is not a real test. It stands in for an external tracker
// when the test binary re-executes itself with GO_WANT_HELPER_PROCESS=1.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) != 4 {
		fmt.Fprintf(os.Stderr, "usage: tracker input params output, got %q\n", args)
		os.Exit(2)
	}
	input, params, output := args[1], args[2], args[3]

	switch os.Getenv("HELPER_MODE") {
	case "ok":
		if _, err := os.Stat(input); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		if _, err := os.Stat(params); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		out := "1 1\n2\nM 0 0 1 1\nM 1 1 2 2\n1\nF 5 5 1 3\n"
		if err := os.WriteFile(output, []byte(out), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	case "garbage":
		os.WriteFile(output, []byte("not a track file\n"), 0o644)
	case "fail":
		fmt.Fprintln(os.Stderr, "bad params")
		os.Exit(3)
	case "hang":
		time.Sleep(time.Minute)
	}
	os.Exit(0)
}

func helperTracker(t *testing.T, mode string) *Tracker {
	t.Helper()
	return &Tracker{
		Path:    os.Args[0],
		Args:    []string{"-test.run=TestHelperProcess", "--"},
		Env:     []string{"GO_WANT_HELPER_PROCESS=1", "HELPER_MODE=" + mode},
		Metrics: monitoring.NewMetricsForTesting(),
	}
}

func writeInputs(t *testing.T) (dir, input, params string) {
	t.Helper()
	dir = t.TempDir()
	input = filepath.Join(dir, "detections.csv")
	require.NoError(t, os.WriteFile(input, []byte("frame,x,y\n1,0,0\n"), 0o644))
	params = filepath.Join(dir, "params.json")
	require.NoError(t, WriteParams(params, config.DefaultTuningConfig()))
	return dir, input, params
}

func TestRunSuccess(t *testing.T) {
	dir, input, params := writeInputs(t)
	tr := helperTracker(t, "ok")

	store, err := tr.Run(context.Background(), input, params, filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	require.Len(t, store.Tracks(), 1)
	require.Len(t, store.FalseAlarms(), 1)
	assert.Equal(t, uint64(2), store.Tracks()[0].Last().ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(tr.Metrics.ExternalRuns.WithLabelValues("ok")))
}

func TestRunNonZeroExit(t *testing.T) {
	dir, input, params := writeInputs(t)
	tr := helperTracker(t, "fail")
	output := filepath.Join(dir, "out.txt")

	_, err := tr.Run(context.Background(), input, params, output)
	require.Error(t, err)

	var perr *ProcessError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 3, perr.ExitCode)
	assert.Equal(t, input, perr.InputPath)
	assert.Equal(t, params, perr.ParamPath)
	assert.Equal(t, output, perr.OutputPath)
	assert.Contains(t, perr.Stderr, "bad params")
	assert.Contains(t, err.Error(), "exited with code 3")
	assert.Equal(t, 1.0, testutil.ToFloat64(tr.Metrics.ExternalRuns.WithLabelValues("failed")))
}

func TestRunMalformedOutput(t *testing.T) {
	dir, input, params := writeInputs(t)
	tr := helperTracker(t, "garbage")

	_, err := tr.Run(context.Background(), input, params, filepath.Join(dir, "out.txt"))
	require.Error(t, err)
	var perr *ProcessError
	assert.False(t, errors.As(err, &perr), "a clean exit with bad output is a parse error")
}

func TestRunMissingBinary(t *testing.T) {
	dir, input, params := writeInputs(t)
	tr := &Tracker{Path: filepath.Join(dir, "no-such-tracker")}

	_, err := tr.Run(context.Background(), input, params, filepath.Join(dir, "out.txt"))
	var perr *ProcessError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, -1, perr.ExitCode)
}

func TestRunTimeout(t *testing.T) {
	dir, input, params := writeInputs(t)
	tr := helperTracker(t, "hang")
	tr.Timeout = 200 * time.Millisecond

	_, err := tr.Run(context.Background(), input, params, filepath.Join(dir, "out.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWriteParams(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "params.json")
	cfg := &config.TuningConfig{}
	require.NoError(t, json.Unmarshal([]byte(`{"strategy":"greedy_sequential","max_distance":2.5}`), cfg))
	require.NoError(t, WriteParams(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "greedy_sequential", got["strategy"])
	assert.Equal(t, 2.5, got["max_distance"])
	assert.Equal(t, float64(config.DefaultForecastWindow), got["forecast_window"])
	assert.Equal(t, "5m0s", got["frame_interval"])

	bad := &config.TuningConfig{}
	require.NoError(t, json.Unmarshal([]byte(`{"max_distance":-1}`), bad))
	assert.Error(t, WriteParams(path, bad))
}

func TestNewTrackerUsesConfigTimeout(t *testing.T) {
	t.Parallel()

	tr := NewTracker("/bin/true", config.DefaultTuningConfig(), nil)
	assert.Equal(t, config.DefaultExternalTimeout, tr.Timeout)
}

func TestLimitedBuffer(t *testing.T) {
	t.Parallel()

	b := &limitedBuffer{max: 4}
	n, err := b.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	b.Write([]byte("gh"))
	assert.Equal(t, "abcd", b.String())
}

func TestRunRejectsPathsOutsideWorkDir(t *testing.T) {
	dir, input, params := writeInputs(t)
	tr := helperTracker(t, "ok")
	tr.WorkDir = dir

	_, err := tr.Run(context.Background(), input, params, filepath.Join(dir, "..", "escape.txt"))
	assert.ErrorIs(t, err, ErrOutsideWorkDir)

	store, err := tr.Run(context.Background(), input, params, filepath.Join(dir, "out", "..", "out.txt"))
	require.NoError(t, err)
	assert.Len(t, store.Tracks(), 1)
}

func TestCheckWithinDir(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	safe := filepath.Join(root, "safe")
	outside := filepath.Join(root, "outside")
	require.NoError(t, os.MkdirAll(safe, 0o755))
	require.NoError(t, os.MkdirAll(outside, 0o755))
	require.NoError(t, os.Symlink(outside, filepath.Join(safe, "link")))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"existing file dir", filepath.Join(safe, "in.csv"), false},
		{"nested new file", filepath.Join(safe, "a", "b", "out.txt"), false},
		{"the directory itself", safe, false},
		{"parent traversal", filepath.Join(safe, "..", "outside", "x"), true},
		{"sibling with common prefix", safe + "-evil/x", true},
		{"symlinked parent", filepath.Join(safe, "link", "out.txt"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkWithinDir(tt.path, safe)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrOutsideWorkDir)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
