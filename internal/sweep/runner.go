// Package sweep runs a grid of tracker configurations over one detection
// sequence and scores every run against a reference track set.
package sweep

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/celltrack/internal/config"
	"github.com/banshee-data/celltrack/internal/evaluation"
	"github.com/banshee-data/celltrack/internal/monitoring"
	"github.com/banshee-data/celltrack/internal/tracking"
)

// SweepStatus represents the current state of a sweep run
type SweepStatus string

const (
	SweepStatusIdle     SweepStatus = "idle"
	SweepStatusRunning  SweepStatus = "running"
	SweepStatusComplete SweepStatus = "complete"
	SweepStatusError    SweepStatus = "error"
)

// Job is one tracker configuration in the grid.
type Job struct {
	Index          int
	Strategy       tracking.Strategy
	MaxDistance    float64
	ForecastWindow int
}

// Config returns the tracker configuration for the job.
func (j Job) Config() tracking.Config {
	return tracking.Config{
		Strategy:       j.Strategy,
		MaxDistance:    j.MaxDistance,
		ForecastWindow: j.ForecastWindow,
	}
}

// Result holds the outcome of one job. Err is set when the job failed;
// the remaining fields are then zero apart from Job and Duration.
type Result struct {
	Job
	Table       evaluation.ContingencyTable
	Scores      []evaluation.ScoreResult
	Tracks      int
	FalseAlarms int
	Duration    time.Duration
	Err         error
}

// SweepState holds the progress of a sweep
type SweepState struct {
	Status        SweepStatus `json:"status"`
	StartedAt     *time.Time  `json:"started_at,omitempty"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
	TotalJobs     int         `json:"total_jobs"`
	CompletedJobs int         `json:"completed_jobs"`
	FailedJobs    int         `json:"failed_jobs"`
	Error         string      `json:"error,omitempty"`
}

// Jobs expands the plan into its cartesian product, strategies outermost.
func Jobs(plan *config.SweepPlan) ([]Job, error) {
	jobs := make([]Job, 0, plan.Combinations())
	for _, name := range plan.Strategies {
		strategy, err := tracking.ParseStrategy(name)
		if err != nil {
			return nil, err
		}
		for _, d := range plan.MaxDistances {
			for _, w := range plan.ForecastWindows {
				jobs = append(jobs, Job{
					Index:          len(jobs),
					Strategy:       strategy,
					MaxDistance:    d,
					ForecastWindow: w,
				})
			}
		}
	}
	return jobs, nil
}

// Runner orchestrates parameter sweeps. Every job owns its own tracker and
// store; the frames and reference store are shared read-only.
type Runner struct {
	Plan      *config.SweepPlan
	Frames    []tracking.Frame
	Reference *tracking.Store
	Metrics   *monitoring.Metrics
	Clock     clockwork.Clock

	mu    sync.RWMutex
	state SweepState
}

// NewRunner creates a new sweep runner
func NewRunner(plan *config.SweepPlan, frames []tracking.Frame, reference *tracking.Store, m *monitoring.Metrics) *Runner {
	return &Runner{
		Plan:      plan,
		Frames:    frames,
		Reference: reference,
		Metrics:   m,
		Clock:     clockwork.NewRealClock(),
		state:     SweepState{Status: SweepStatusIdle},
	}
}

// GetSweepState returns a copy of the current sweep state.
func (r *Runner) GetSweepState() SweepState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Run executes every job on a pool of Plan.Workers goroutines and returns
// the results ordered by job index. A failing job records its error in its
// Result and never stops the others. Cancelling ctx stops scheduling new
// jobs; the results gathered so far are returned along with ctx.Err().
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	if r.Reference == nil {
		return nil, fmt.Errorf("sweep %q: no reference track set", r.Plan.Name)
	}
	jobs, err := Jobs(r.Plan)
	if err != nil {
		return nil, fmt.Errorf("sweep %q: %w", r.Plan.Name, err)
	}
	if r.Clock == nil {
		r.Clock = clockwork.NewRealClock()
	}

	started := r.Clock.Now()
	r.mu.Lock()
	r.state = SweepState{Status: SweepStatusRunning, StartedAt: &started, TotalJobs: len(jobs)}
	r.mu.Unlock()
	monitoring.Logf("sweep %q: %d jobs on %d workers", r.Plan.Name, len(jobs), r.workers())

	results := make([]Result, len(jobs))
	finished := make([]bool, len(jobs))
	var g errgroup.Group
	g.SetLimit(r.workers())
	for i, job := range jobs {
		i, job := i, job
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = r.runJob(ctx, job)
			finished[i] = true
			r.recordJob(results[i])
			return nil
		})
	}
	g.Wait()

	completed := r.Clock.Now()
	r.mu.Lock()
	r.state.CompletedAt = &completed
	r.state.Status = SweepStatusComplete
	if err := ctx.Err(); err != nil {
		r.state.Status = SweepStatusError
		r.state.Error = err.Error()
	}
	state := r.state
	r.mu.Unlock()
	monitoring.Logf("sweep %q: %d/%d jobs completed, %d failed in %v",
		r.Plan.Name, state.CompletedJobs, state.TotalJobs, state.FailedJobs, completed.Sub(started))

	if err := ctx.Err(); err != nil {
		var done []Result
		for i, res := range results {
			if finished[i] {
				done = append(done, res)
			}
		}
		return done, err
	}
	return results, nil
}

func (r *Runner) workers() int {
	if r.Plan.Workers > 0 {
		return r.Plan.Workers
	}
	return config.DefaultWorkers
}

func (r *Runner) runJob(ctx context.Context, job Job) Result {
	start := r.Clock.Now()
	res := Result{Job: job}

	store, err := tracking.Run(ctx, job.Config(), r.Frames, tracking.MetricsObserver{Metrics: r.Metrics})
	if err != nil {
		res.Err = err
		res.Duration = r.Clock.Since(start)
		return res
	}
	res.Tracks = len(store.Tracks())
	res.FalseAlarms = len(store.FalseAlarms())

	eval := evaluation.EvaluateStores(r.Reference, store)
	if r.Metrics != nil {
		r.Metrics.Evaluations.Inc()
	}
	res.Table = eval.Table
	res.Scores, res.Err = evaluation.ComputeScores(evaluation.ScoreInput{
		Table:     eval.Table,
		Reference: r.Reference,
		Predicted: store,
	}, r.Plan.Scores...)
	res.Duration = r.Clock.Since(start)
	return res
}

func (r *Runner) recordJob(res Result) {
	r.Metrics.ObserveSweepJob(res.Err != nil, res.Duration.Seconds())
	if res.Err != nil {
		monitoring.Logf("sweep %q: job %d (%s, %g, %d) failed: %v",
			r.Plan.Name, res.Index, res.Strategy, res.MaxDistance, res.ForecastWindow, res.Err)
	} else {
		monitoring.Debugf("sweep %q: job %d done in %v: %s", r.Plan.Name, res.Index, res.Duration, res.Table)
	}

	r.mu.Lock()
	r.state.CompletedJobs++
	if res.Err != nil {
		r.state.FailedJobs++
	}
	r.mu.Unlock()
}

// Best returns the successful result with the highest value of the named
// score, ties broken by job index. ok is false when no job succeeded or the
// score was not computed.
func Best(results []Result, score string) (best Result, ok bool) {
	ranked := make([]Result, 0, len(results))
	for _, res := range results {
		if res.Err == nil {
			if _, found := scoreValue(res, score); found {
				ranked = append(ranked, res)
			}
		}
	}
	if len(ranked) == 0 {
		return Result{}, false
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		vi, _ := scoreValue(ranked[i], score)
		vj, _ := scoreValue(ranked[j], score)
		if vi != vj {
			return vi > vj
		}
		return ranked[i].Index < ranked[j].Index
	})
	return ranked[0], true
}

func scoreValue(res Result, name string) (float64, bool) {
	def, err := evaluation.LookupScore(name)
	if err != nil {
		return 0, false
	}
	for _, s := range res.Scores {
		if s.Name == def.Name {
			return s.Value, true
		}
	}
	return 0, false
}
