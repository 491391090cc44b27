package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"munin/internal/models"
	"munin/internal/store"
)

// --- Run Store Implementation ---

// CreateRun inserts the record for a run that just started.
func (s *StoreImpl) CreateRun(ctx context.Context, run *models.Run) error {
	query := `
		INSERT INTO pipeline_runs (run_id, trigger_kind, status, steps, artifact_changed, started_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	steps, err := encodeSteps(run.Steps)
	if err != nil {
		return err
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx, query,
		run.RunID.String(),
		run.Trigger,
		run.Status,
		steps,
		run.ArtifactChanged,
		run.StartedAt,
		now,
		now,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("run %s already recorded: %w", run.RunID, store.ErrDuplicate)
		}
		return fmt.Errorf("failed to record run %s: %w", run.RunID, err)
	}

	run.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted run id: %w", err)
	}
	run.CreatedAt = now
	run.UpdatedAt = now
	return nil
}

// FinishRun writes the terminal state of an existing run, keyed by run ID.
func (s *StoreImpl) FinishRun(ctx context.Context, run *models.Run) error {
	query := `
		UPDATE pipeline_runs
		SET status = ?, steps = ?, artifact_changed = ?, artifact_warning = ?,
		    commit_hash = ?, error = ?, finished_at = ?, updated_at = ?
		WHERE run_id = ?`

	steps, err := encodeSteps(run.Steps)
	if err != nil {
		return err
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx, query,
		run.Status,
		steps,
		run.ArtifactChanged,
		nullString(run.ArtifactWarning),
		nullString(run.CommitHash),
		nullString(run.Error),
		nullTime(run.FinishedAt),
		now,
		run.RunID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", run.RunID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for run %s: %w", run.RunID, err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found to finish: %w", run.RunID, store.ErrNotFound)
	}
	run.UpdatedAt = now
	return nil
}

// GetRun fetches one run by its run ID.
func (s *StoreImpl) GetRun(ctx context.Context, runID uuid.UUID) (*models.Run, error) {
	query := selectColumns + ` WHERE run_id = ?`
	run, err := scanRun(s.db.QueryRowContext(ctx, query, runID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns runs ordered newest first.
func (s *StoreImpl) ListRuns(ctx context.Context, limit, offset int) ([]*models.Run, error) {
	query := selectColumns + ` ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
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

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRun scans a single pipeline_runs row in selectColumns order.
func scanRun(row rowScanner) (*models.Run, error) {
	var (
		run        models.Run
		rawRunID   string
		rawSteps   []byte
		warning    sql.NullString
		commitHash sql.NullString
		runErr     sql.NullString
		finishedAt sql.NullTime
	)
	err := row.Scan(
		&run.ID,
		&rawRunID,
		&run.Trigger,
		&run.Status,
		&rawSteps,
		&run.ArtifactChanged,
		&warning,
		&commitHash,
		&runErr,
		&run.StartedAt,
		&finishedAt,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	run.RunID, err = uuid.Parse(rawRunID)
	if err != nil {
		return nil, fmt.Errorf("invalid run_id '%s' in ledger: %w", rawRunID, err)
	}
	if err := json.Unmarshal(rawSteps, &run.Steps); err != nil {
		return nil, fmt.Errorf("invalid steps payload for run %s: %w", run.RunID, err)
	}
	if warning.Valid {
		run.ArtifactWarning = &warning.String
	}
	if commitHash.Valid {
		run.CommitHash = &commitHash.String
	}
	if runErr.Valid {
		run.Error = &runErr.String
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return &run, nil
}

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

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Ensure StoreImpl satisfies the RunStore interface
var _ store.RunStore = (*StoreImpl)(nil)
