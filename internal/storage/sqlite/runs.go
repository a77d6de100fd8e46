package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/banshee-data/celltrack/internal/tracking"
)

// Run describes one persisted tracking run.
type Run struct {
	RunID           string  `json:"run_id"`
	Name            string  `json:"name"`
	Source          string  `json:"source"` // "tracker", "external" or "file"
	Strategy        string  `json:"strategy,omitempty"`
	MaxDistance     float64 `json:"max_distance,omitempty"`
	ForecastWindow  int     `json:"forecast_window,omitempty"`
	TrackCount      int     `json:"track_count"`
	FalseAlarmCount int     `json:"false_alarm_count"`
	PointCount      int     `json:"point_count"`
	CreatedAt       int64   `json:"created_at"` // unix nanoseconds
}

// RunStore persists tracking runs with their tracks and points.
type RunStore struct {
	db    *DB
	clock clockwork.Clock
}

// NewRunStore creates a RunStore. A nil clock uses the wall clock.
func NewRunStore(db *DB, clock clockwork.Clock) *RunStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RunStore{db: db, clock: clock}
}

// SaveRun persists run and the store's tracks and false alarms in one
// transaction. An empty RunID is filled with a new UUID; the counts and
// CreatedAt are derived from the store and the clock.
func (s *RunStore) SaveRun(ctx context.Context, run *Run, store *tracking.Store) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = s.clock.Now().UnixNano()
	}
	tracks, falseAlarms := store.Tracks(), store.FalseAlarms()
	run.TrackCount = len(tracks)
	run.FalseAlarmCount = len(falseAlarms)
	run.PointCount = store.PointCount()

	return retryOnBusy(func() error {
		return s.saveRunTx(ctx, run, tracks, falseAlarms)
	})
}

func (s *RunStore) saveRunTx(ctx context.Context, run *Run, tracks, falseAlarms []*tracking.Track) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save run tx: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, name, source, strategy, max_distance, forecast_window,
			track_count, false_alarm_count, point_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Name, run.Source, run.Strategy, run.MaxDistance, run.ForecastWindow,
		run.TrackCount, run.FalseAlarmCount, run.PointCount, run.CreatedAt,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert run: %w", err)
	}

	trackStmt, err := tx.PrepareContext(ctx, `INSERT INTO run_tracks (run_id, track_index, false_alarm) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare track insert: %w", err)
	}
	defer trackStmt.Close()
	pointStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_points (run_id, track_index, seq, kind, x, y, frame, detection_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare point insert: %w", err)
	}
	defer pointStmt.Close()

	index := 0
	for _, set := range []struct {
		tracks     []*tracking.Track
		falseAlarm bool
	}{{tracks, false}, {falseAlarms, true}} {
		for _, t := range set.tracks {
			if _, err := trackStmt.ExecContext(ctx, run.RunID, index, set.falseAlarm); err != nil {
				tx.Rollback()
				return fmt.Errorf("insert track %d: %w", index, err)
			}
			for seq, p := range t.Points {
				_, err := pointStmt.ExecContext(ctx, run.RunID, index, seq, p.Kind.String(), p.X, p.Y, p.Frame, int64(p.ID))
				if err != nil {
					tx.Rollback()
					return fmt.Errorf("insert point %d of track %d: %w", seq, index, err)
				}
			}
			index++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save run tx: %w", err)
	}
	return nil
}

const runColumns = `run_id, name, source, strategy, max_distance, forecast_window,
	track_count, false_alarm_count, point_count, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	err := row.Scan(
		&r.RunID, &r.Name, &r.Source, &r.Strategy, &r.MaxDistance, &r.ForecastWindow,
		&r.TrackCount, &r.FalseAlarmCount, &r.PointCount, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRun returns the run metadata for runID.
func (s *RunStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

// ListRuns returns every run, newest first.
func (s *RunStore) ListRuns(ctx context.Context) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LoadStore rebuilds the finalised track store saved under runID. Tracks
// and false alarms keep their saved order.
func (s *RunStore) LoadStore(ctx context.Context, runID string) (*tracking.Store, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	flags, err := s.trackFlags(ctx, runID)
	if err != nil {
		return nil, err
	}
	points := make([][]tracking.Point, len(flags))

	rows, err := s.db.QueryContext(ctx, `
		SELECT track_index, kind, x, y, frame, detection_id
		FROM run_points
		WHERE run_id = ?
		ORDER BY track_index, seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			index int
			tag   string
			p     tracking.Point
			id    int64
		)
		if err := rows.Scan(&index, &tag, &p.X, &p.Y, &p.Frame, &id); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		if index < 0 || index >= len(points) {
			return nil, fmt.Errorf("run %s: point references unknown track %d", runID, index)
		}
		if p.Kind, err = tracking.ParsePointKind(tag); err != nil {
			return nil, fmt.Errorf("run %s: %w", runID, err)
		}
		p.ID = uint64(id)
		points[index] = append(points[index], p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var tracks, falseAlarms [][]tracking.Point
	for i, fa := range flags {
		if fa {
			falseAlarms = append(falseAlarms, points[i])
		} else {
			tracks = append(tracks, points[i])
		}
	}
	return tracking.RestoreStore(tracks, falseAlarms)
}

// trackFlags returns the false-alarm flag of every track, indexed by
// track_index.
func (s *RunStore) trackFlags(ctx context.Context, runID string) ([]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT track_index, false_alarm FROM run_tracks
		WHERE run_id = ? ORDER BY track_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query tracks: %w", err)
	}
	defer rows.Close()

	var flags []bool
	for rows.Next() {
		var index int
		var fa bool
		if err := rows.Scan(&index, &fa); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		if index != len(flags) {
			return nil, fmt.Errorf("run %s: track index %d out of sequence", runID, index)
		}
		flags = append(flags, fa)
	}
	return flags, rows.Err()
}

// DeleteRun removes a run together with its tracks, points and evaluations.
func (s *RunStore) DeleteRun(ctx context.Context, runID string) error {
	return retryOnBusy(func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("run %s: %w", runID, ErrNotFound)
		}
		return nil
	})
}
