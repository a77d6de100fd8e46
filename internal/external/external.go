// Package external runs third-party tracker executables that share the
// track file layout, so their output can be scored like a built-in run.
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/celltrack/internal/config"
	"github.com/banshee-data/celltrack/internal/monitoring"
	"github.com/banshee-data/celltrack/internal/trackfile"
	"github.com/banshee-data/celltrack/internal/tracking"
)

// maxStderr caps how much of the child's stderr is kept for error reports.
const maxStderr = 64 * 1024

// ProcessError reports a tracker process that exited non-zero or could not
// be started.
type ProcessError struct {
	ExitCode   int // -1 when the process never ran or was killed
	Path       string
	InputPath  string
	ParamPath  string
	OutputPath string
	Stderr     string
	Err        error
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("external tracker %s exited with code %d (input=%s params=%s output=%s)",
		e.Path, e.ExitCode, e.InputPath, e.ParamPath, e.OutputPath)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

func (e *ProcessError) Unwrap() error { return e.Err }

// Tracker invokes an executable as
//
//	Path Args... <input> <params> <output>
//
// and reads the track file it writes to <output>.
type Tracker struct {
	Path string
	Args []string
	Env  []string // appended to the current environment

	// WorkDir, when set, must contain the input, parameter and output paths.
	WorkDir string
	// Timeout bounds one invocation. Zero means no limit beyond ctx.
	Timeout time.Duration
	Metrics *monitoring.Metrics
}

// NewTracker returns a Tracker for path using the external timeout from cfg.
func NewTracker(path string, cfg *config.TuningConfig, m *monitoring.Metrics) *Tracker {
	return &Tracker{
		Path:    path,
		Timeout: cfg.GetExternalTimeout(),
		Metrics: m,
	}
}

// Run executes the tracker once. Exit code 0 means outputPath holds a track
// file, which is parsed into a finalised store. Any other outcome returns a
// *ProcessError. There is no retry.
func (t *Tracker) Run(ctx context.Context, inputPath, paramPath, outputPath string) (*tracking.Store, error) {
	store, err := t.run(ctx, inputPath, paramPath, outputPath)
	t.Metrics.ObserveExternalRun(err != nil)
	return store, err
}

func (t *Tracker) run(ctx context.Context, inputPath, paramPath, outputPath string) (*tracking.Store, error) {
	if t.WorkDir != "" {
		for _, p := range []string{inputPath, paramPath, outputPath} {
			if err := checkWithinDir(p, t.WorkDir); err != nil {
				return nil, err
			}
		}
	}
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, t.Args...), inputPath, paramPath, outputPath)
	cmd := exec.CommandContext(ctx, t.Path, args...)
	if len(t.Env) > 0 {
		cmd.Env = append(os.Environ(), t.Env...)
	}
	stderr := &limitedBuffer{max: maxStderr}
	cmd.Stderr = stderr

	monitoring.Debugf("external: running %s %s", t.Path, strings.Join(args, " "))
	start := time.Now()
	err := cmd.Run()
	if err != nil {
		perr := &ProcessError{
			ExitCode:   -1,
			Path:       t.Path,
			InputPath:  inputPath,
			ParamPath:  paramPath,
			OutputPath: outputPath,
			Stderr:     stderr.String(),
			Err:        err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			perr.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			perr.Err = ctxErr
		}
		return nil, perr
	}
	monitoring.Logf("external: %s finished in %v", filepath.Base(t.Path), time.Since(start).Round(time.Millisecond))

	store, err := trackfile.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("external tracker %s output: %w", t.Path, err)
	}
	return store, nil
}

// WriteParams writes the tracker parameters as indented JSON. Unset fields
// are filled from the defaults so the child always sees concrete values.
func WriteParams(path string, cfg *config.TuningConfig) error {
	if cfg == nil {
		cfg = config.EmptyTuningConfig()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	params := struct {
		Strategy       string  `json:"strategy"`
		MaxDistance    float64 `json:"max_distance"`
		ForecastWindow int     `json:"forecast_window"`
		FrameInterval  string  `json:"frame_interval"`
	}{
		Strategy:       cfg.GetStrategy(),
		MaxDistance:    cfg.GetMaxDistance(),
		ForecastWindow: cfg.GetForecastWindow(),
		FrameInterval:  cfg.GetFrameInterval().String(),
	}
	data, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tracker params: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write tracker params: %w", err)
	}
	return nil
}

// limitedBuffer keeps the first max bytes written and drops the rest.
type limitedBuffer struct {
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string { return b.buf.String() }
