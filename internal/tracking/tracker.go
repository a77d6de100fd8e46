package tracking

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/celltrack/internal/config"
	"github.com/banshee-data/celltrack/internal/monitoring"
)

// Precondition errors reported before or while processing frames.
var (
	ErrInvalidMaxDistance  = errors.New("rejection threshold must be positive and finite")
	ErrNonFiniteCoordinate = errors.New("non-finite detection coordinate")
	ErrFrameOrder          = errors.New("frame index does not advance")
	ErrUnknownStrategy     = errors.New("unknown association strategy")
	ErrFinalized           = errors.New("tracker already finalized")
)

// Config holds the parameters of one tracking run.
type Config struct {
	Strategy       Strategy
	MaxDistance    float64 // rejection threshold on forecast-to-detection distance
	ForecastWindow int     // trailing points used for velocity estimation
}

// DefaultConfig returns the built-in tracker parameters.
func DefaultConfig() Config {
	return Config{
		Strategy:       OptimalBipartite,
		MaxDistance:    config.DefaultMaxDistance,
		ForecastWindow: DefaultForecastWindow,
	}
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) (Config, error) {
	strategy, err := ParseStrategy(cfg.GetStrategy())
	if err != nil {
		return Config{}, err
	}
	c := Config{
		Strategy:       strategy,
		MaxDistance:    cfg.GetMaxDistance(),
		ForecastWindow: cfg.GetForecastWindow(),
	}
	return c, c.Validate()
}

// Validate checks the configuration before any frame is processed.
func (c Config) Validate() error {
	if err := ValidateMaxDistance(c.MaxDistance); err != nil {
		return err
	}
	if c.Strategy < 0 || int(c.Strategy) >= len(matchers) {
		return fmt.Errorf("%w: %v", ErrUnknownStrategy, c.Strategy)
	}
	if c.ForecastWindow < 2 {
		return fmt.Errorf("forecast window must be at least 2, got %d", c.ForecastWindow)
	}
	return nil
}

// Observer receives per-frame tracking instrumentation. Implementations must
// be cheap; they are called synchronously from Update.
type Observer interface {
	FrameProcessed(summary FrameSummary)
	RunFinalized(tracks, falseAlarms int)
}

// Tracker runs the frame loop: forecast active tracks, build costs,
// associate, and apply the result to its Store.
type Tracker struct {
	Config   Config
	Observer Observer // optional

	store      *Store
	forecaster Forecaster
	lastFrame  int64
	seenFrame  bool
	finalized  bool
}

// NewTracker creates a tracker with an empty store.
func NewTracker(cfg Config) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tracker config: %w", err)
	}
	return &Tracker{
		Config:     cfg,
		store:      NewStore(),
		forecaster: Forecaster{Window: cfg.ForecastWindow},
	}, nil
}

// Store returns the tracker's store.
func (t *Tracker) Store() *Store {
	return t.store
}

// Update processes the next frame. Frame indices must strictly increase.
func (t *Tracker) Update(f Frame) (FrameSummary, error) {
	if t.finalized {
		return FrameSummary{}, ErrFinalized
	}
	if t.seenFrame && f.Index <= t.lastFrame {
		return FrameSummary{}, fmt.Errorf("%w: frame %d after frame %d", ErrFrameOrder, f.Index, t.lastFrame)
	}
	if err := ValidateDetections(f); err != nil {
		return FrameSummary{}, err
	}

	active := t.store.Active()
	activeIDs := t.store.ActiveIDs()
	forecasts := t.forecaster.ForecastAll(active, f.Index)
	costs := BuildCosts(forecasts, f.Detections, t.Config.MaxDistance)

	assoc, err := Associate(t.Config.Strategy, costs, t.Config.MaxDistance)
	if err != nil {
		return FrameSummary{}, err
	}
	sum, err := Apply(t.store, activeIDs, assoc, f.Detections, f.Index)
	if err != nil {
		return sum, fmt.Errorf("frame %d: %w", f.Index, err)
	}
	sum.Active = len(activeIDs)

	t.lastFrame = f.Index
	t.seenFrame = true
	if t.Observer != nil {
		t.Observer.FrameProcessed(sum)
	}
	return sum, nil
}

// Finalize ends every active track and returns the finished store. Further
// calls to Update fail.
func (t *Tracker) Finalize() *Store {
	if !t.finalized {
		t.store.Finalize()
		t.finalized = true
		tracks, falseAlarms := len(t.store.Tracks()), len(t.store.FalseAlarms())
		monitoring.Debugf("tracker finalized: strategy=%s tracks=%d false_alarms=%d", t.Config.Strategy, tracks, falseAlarms)
		if t.Observer != nil {
			t.Observer.RunFinalized(tracks, falseAlarms)
		}
	}
	return t.store
}

// ValidateDetections rejects frames carrying NaN or infinite coordinates.
func ValidateDetections(f Frame) error {
	for i, d := range f.Detections {
		if math.IsNaN(d.X) || math.IsInf(d.X, 0) || math.IsNaN(d.Y) || math.IsInf(d.Y, 0) {
			return fmt.Errorf("%w: frame %d detection %d (%v, %v)", ErrNonFiniteCoordinate, f.Index, i, d.X, d.Y)
		}
	}
	return nil
}

// Run tracks a complete frame sequence and returns the finalised store.
// Every frame is validated before the first one is processed. Cancelling ctx
// abandons the run; the partial store is discarded.
func Run(ctx context.Context, cfg Config, frames []Frame, obs Observer) (*Store, error) {
	tr, err := NewTracker(cfg)
	if err != nil {
		return nil, err
	}
	tr.Observer = obs

	for i, f := range frames {
		if err := ValidateDetections(f); err != nil {
			return nil, err
		}
		if i > 0 && f.Index <= frames[i-1].Index {
			return nil, fmt.Errorf("%w: frame %d after frame %d", ErrFrameOrder, f.Index, frames[i-1].Index)
		}
	}

	for _, f := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := tr.Update(f); err != nil {
			return nil, err
		}
	}
	return tr.Finalize(), nil
}
