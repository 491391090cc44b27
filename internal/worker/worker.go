package worker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"munin/internal/models"
	"munin/internal/tasks"
)

// PipelineExecutor runs one categorize-and-publish pipeline end to end.
type PipelineExecutor interface {
	Execute(ctx context.Context, runID uuid.UUID, trigger string) (*models.Run, error)
}

// Deps carries the dependencies the task handlers need.
type Deps struct {
	Pipeline PipelineExecutor
}

// RegisterHandlers attaches all munin task handlers to the mux.
func RegisterHandlers(mux *asynq.ServeMux, deps Deps) {
	mux.HandleFunc(tasks.TypePipelineRun, HandlePipelineRun(deps))
}

// HandlePipelineRun returns the handler for pipeline run tasks. Scheduled
// tasks carry an empty run ID and get a fresh one here; dispatched tasks
// carry the ID their caller was handed at enqueue time.
func HandlePipelineRun(deps Deps) func(ctx context.Context, t *asynq.Task) error {
	return func(ctx context.Context, t *asynq.Task) error {
		payload, err := tasks.ParsePipelineRunPayload(t.Payload())
		if err != nil {
			return fmt.Errorf("parse %s payload: %v: %w", tasks.TypePipelineRun, err, asynq.SkipRetry)
		}

		runID := uuid.New()
		if payload.RunID != "" {
			parsed, err := uuid.Parse(payload.RunID)
			if err != nil {
				return fmt.Errorf("parse run ID %q: %v: %w", payload.RunID, err, asynq.SkipRetry)
			}
			runID = parsed
		}

		run, err := deps.Pipeline.Execute(ctx, runID, payload.Trigger)
		if err != nil {
			// Run failures are terminal and already recorded in the ledger.
			// Returning the error would archive the task, and an archived
			// task keeps holding the singleton task ID.
			log.WithFields(log.Fields{
				"run_id":  runID,
				"trigger": payload.Trigger,
				"class":   models.FailureClass(err),
			}).Errorf("pipeline run failed: %v", err)
			return nil
		}

		log.WithFields(log.Fields{
			"run_id":  runID,
			"trigger": payload.Trigger,
			"status":  run.Status,
		}).Info("pipeline run task finished")
		return nil
	}
}
