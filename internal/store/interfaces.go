package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"munin/internal/models"
)

// --- Job Client ---

type JobClient interface {
	// EnqueuePipelineRun queues one pipeline run. While a run task is already
	// pending or active the enqueue is refused with models.ErrRunExists.
	EnqueuePipelineRun(ctx context.Context, trigger string) (*asynq.TaskInfo, error)
	Close() error
}

// --- Run Store ---

// RunStore is the run ledger: one record per pipeline execution.
type RunStore interface {
	// CreateRun inserts the record for a run that just started.
	CreateRun(ctx context.Context, run *models.Run) error
	// FinishRun writes the terminal state (status, steps, outcome fields) of
	// an existing run, keyed by its run ID.
	FinishRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, runID uuid.UUID) (*models.Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*models.Run, error)

	Ping(ctx context.Context) error
	Close() error
}
