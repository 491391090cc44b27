package store

import (
	"context"

	"github.com/google/uuid"

	"munin/internal/models"
)

// NoopRunStore discards run records. It backs the "none" database driver so
// the pipeline can execute without a ledger.
type NoopRunStore struct{}

var _ RunStore = (*NoopRunStore)(nil)

func NewNoopRunStore() *NoopRunStore {
	return &NoopRunStore{}
}

func (s *NoopRunStore) CreateRun(ctx context.Context, run *models.Run) error { return nil }

func (s *NoopRunStore) FinishRun(ctx context.Context, run *models.Run) error { return nil }

func (s *NoopRunStore) GetRun(ctx context.Context, runID uuid.UUID) (*models.Run, error) {
	return nil, ErrNotFound
}

func (s *NoopRunStore) ListRuns(ctx context.Context, limit, offset int) ([]*models.Run, error) {
	return nil, nil
}

func (s *NoopRunStore) Ping(ctx context.Context) error { return nil }

func (s *NoopRunStore) Close() error { return nil }
