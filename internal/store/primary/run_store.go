package primary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"munin/internal/models"
	"munin/internal/store"
)

// --- Run Store Implementation ---

// CreateRun inserts the record for a run that just started.
func (s *StoreImpl) CreateRun(ctx context.Context, run *models.Run) error {
	query := `
		INSERT INTO pipeline_runs (run_id, trigger_kind, status, steps, artifact_changed, started_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	steps, err := encodeSteps(run.Steps)
	if err != nil {
		return err
	}

	now := time.Now()
	err = s.db.QueryRow(ctx, query,
		run.RunID,
		run.Trigger,
		run.Status,
		steps,
		run.ArtifactChanged,
		run.StartedAt,
		now,
		now,
	).Scan(&run.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return fmt.Errorf("run %s already recorded: %w", run.RunID, store.ErrDuplicate)
		}
		return fmt.Errorf("failed to record run %s: %w", run.RunID, err)
	}
	run.CreatedAt = now
	run.UpdatedAt = now
	return nil
}

// FinishRun writes the terminal state of an existing run, keyed by run ID.
func (s *StoreImpl) FinishRun(ctx context.Context, run *models.Run) error {
	query := `
		UPDATE pipeline_runs
		SET status = $1, steps = $2, artifact_changed = $3, artifact_warning = $4,
		    commit_hash = $5, error = $6, finished_at = $7, updated_at = $8
		WHERE run_id = $9`

	steps, err := encodeSteps(run.Steps)
	if err != nil {
		return err
	}

	now := time.Now()
	cmdTag, err := s.db.Exec(ctx, query,
		run.Status,
		steps,
		run.ArtifactChanged,
		run.ArtifactWarning,
		run.CommitHash,
		run.Error,
		run.FinishedAt,
		now,
		run.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.RunID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("run %s not found to finish: %w", run.RunID, store.ErrNotFound)
	}
	run.UpdatedAt = now
	return nil
}

// GetRun fetches one run by its run ID.
func (s *StoreImpl) GetRun(ctx context.Context, runID uuid.UUID) (*models.Run, error) {
	query := selectColumns + ` WHERE run_id = $1`
	run := &models.Run{}
	var rawSteps []byte
	err := s.db.QueryRow(ctx, query, runID).Scan(
		&run.ID, &run.RunID, &run.Trigger, &run.Status, &rawSteps,
		&run.ArtifactChanged, &run.ArtifactWarning, &run.CommitHash, &run.Error,
		&run.StartedAt, &run.FinishedAt, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	if err := json.Unmarshal(rawSteps, &run.Steps); err != nil {
		return nil, fmt.Errorf("invalid steps payload for run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns runs ordered newest first.
func (s *StoreImpl) ListRuns(ctx context.Context, limit, offset int) ([]*models.Run, error) {
	query := selectColumns + ` ORDER BY started_at DESC, id DESC LIMIT $1 OFFSET $2`
	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run := &models.Run{}
		var rawSteps []byte
		err := rows.Scan(
			&run.ID, &run.RunID, &run.Trigger, &run.Status, &rawSteps,
			&run.ArtifactChanged, &run.ArtifactWarning, &run.CommitHash, &run.Error,
			&run.StartedAt, &run.FinishedAt, &run.CreatedAt, &run.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		if err := json.Unmarshal(rawSteps, &run.Steps); err != nil {
			return nil, fmt.Errorf("invalid steps payload for run %s: %w", run.RunID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}

// --- Helper Functions ---

const selectColumns = `
	SELECT id, run_id, trigger_kind, status, steps, artifact_changed,
	       artifact_warning, commit_hash, error, started_at, finished_at,
	       created_at, updated_at
	FROM pipeline_runs`

func encodeSteps(steps []models.StepResult) ([]byte, error) {
	if steps == nil {
		steps = []models.StepResult{}
	}
	data, err := json.Marshal(steps)
	if err != nil {
		return nil, fmt.Errorf("failed to encode step results: %w", err)
	}
	return data, nil
}

// Ensure StoreImpl satisfies the RunStore interface
var _ store.RunStore = (*StoreImpl)(nil)
