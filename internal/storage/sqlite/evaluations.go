package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/celltrack/internal/evaluation"
)

// EvaluationRecord is a persisted comparison of a candidate run against a
// reference run.
type EvaluationRecord struct {
	EvaluationID   string                   `json:"evaluation_id"`
	ReferenceRunID string                   `json:"reference_run_id"`
	CandidateRunID string                   `json:"candidate_run_id"`
	Result         evaluation.Evaluation    `json:"result"`
	Scores         []evaluation.ScoreResult `json:"scores,omitempty"`
	CreatedAt      int64                    `json:"created_at"`
}

// SaveEvaluation persists rec. Both runs must already be saved. An empty
// EvaluationID is filled with a new UUID.
func (s *RunStore) SaveEvaluation(ctx context.Context, rec *EvaluationRecord) error {
	if rec.EvaluationID == "" {
		rec.EvaluationID = uuid.New().String()
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = s.clock.Now().UnixNano()
	}

	var scoresJSON interface{}
	if len(rec.Scores) > 0 {
		b, err := json.Marshal(rec.Scores)
		if err != nil {
			return fmt.Errorf("marshal scores: %w", err)
		}
		scoresJSON = string(b)
	}

	t := rec.Result.Table
	return retryOnBusy(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO evaluations (
				evaluation_id, reference_run_id, candidate_run_id,
				assocs_correct, assocs_wrong, falarms_wrong, falarms_correct,
				unmatched_predicted_assocs, unmatched_predicted_falarms,
				scores_json, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.EvaluationID, rec.ReferenceRunID, rec.CandidateRunID,
			t.AssocsCorrect, t.AssocsWrong, t.FalarmsWrong, t.FalarmsCorrect,
			rec.Result.UnmatchedPredictedAssocs, rec.Result.UnmatchedPredictedFalarms,
			scoresJSON, rec.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert evaluation: %w", err)
		}
		return nil
	})
}

const evaluationColumns = `evaluation_id, reference_run_id, candidate_run_id,
	assocs_correct, assocs_wrong, falarms_wrong, falarms_correct,
	unmatched_predicted_assocs, unmatched_predicted_falarms,
	scores_json, created_at`

func scanEvaluation(row rowScanner) (*EvaluationRecord, error) {
	var rec EvaluationRecord
	var scoresJSON sql.NullString
	t := &rec.Result.Table
	err := row.Scan(
		&rec.EvaluationID, &rec.ReferenceRunID, &rec.CandidateRunID,
		&t.AssocsCorrect, &t.AssocsWrong, &t.FalarmsWrong, &t.FalarmsCorrect,
		&rec.Result.UnmatchedPredictedAssocs, &rec.Result.UnmatchedPredictedFalarms,
		&scoresJSON, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Result.ReferenceAssocs = t.AssocsCorrect + t.AssocsWrong
	rec.Result.ReferenceFalarms = t.FalarmsCorrect + t.FalarmsWrong
	if scoresJSON.Valid {
		if err := json.Unmarshal([]byte(scoresJSON.String), &rec.Scores); err != nil {
			return nil, fmt.Errorf("decode scores: %w", err)
		}
	}
	return &rec, nil
}

// GetEvaluation returns a single evaluation by id.
func (s *RunStore) GetEvaluation(ctx context.Context, evaluationID string) (*EvaluationRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+evaluationColumns+` FROM evaluations WHERE evaluation_id = ?`, evaluationID)
	rec, err := scanEvaluation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("evaluation %s: %w", evaluationID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan evaluation: %w", err)
	}
	return rec, nil
}

// ListEvaluations returns the evaluations of a candidate run, newest first.
func (s *RunStore) ListEvaluations(ctx context.Context, candidateRunID string) ([]*EvaluationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+evaluationColumns+` FROM evaluations
		WHERE candidate_run_id = ?
		ORDER BY created_at DESC, evaluation_id`, candidateRunID)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	var recs []*EvaluationRecord
	for rows.Next() {
		rec, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
