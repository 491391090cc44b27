package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"munin/internal/models"
	"munin/internal/tasks"
)

// AsynqJobClient is a concrete JobClient backed by Redis.
// Ensure it implements JobClient
var _ JobClient = (*AsynqJobClient)(nil)

type AsynqJobClient struct {
	client *asynq.Client
}

func NewAsynqJobClient(redisAddr, redisPassword string, redisDB int) (*AsynqJobClient, error) {
	if redisAddr == "" {
		return nil, fmt.Errorf("redis address cannot be empty for AsynqJobClient")
	}
	cli := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})
	return &AsynqJobClient{client: cli}, nil
}

func (jc *AsynqJobClient) Close() error {
	return jc.client.Close()
}

// EnqueuePipelineRun queues one pipeline run task. The task rides a fixed
// Asynq ID, so enqueueing while a run is already pending or active conflicts
// and is reported as models.ErrRunExists. Retries are disabled: a failed run
// stays failed until the next trigger produces a fresh one.
func (jc *AsynqJobClient) EnqueuePipelineRun(ctx context.Context, trigger string) (*asynq.TaskInfo, error) {
	if jc.client == nil {
		return nil, fmt.Errorf("AsynqJobClient internal client is not initialized")
	}
	if !models.ValidTrigger(trigger) {
		return nil, fmt.Errorf("%w: unknown trigger kind '%s'", models.ErrValidation, trigger)
	}

	runID := uuid.New().String()
	task, err := tasks.NewPipelineRunTask(runID, trigger)
	if err != nil {
		return nil, err
	}

	info, err := jc.client.EnqueueContext(ctx, task,
		asynq.TaskID(tasks.PipelineTaskID),
		asynq.Queue(tasks.QueuePipeline),
		asynq.MaxRetry(0),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			log.WithField("trigger", trigger).Info("pipeline run already queued or active, skipping enqueue")
			return nil, models.ErrRunExists
		}
		return nil, fmt.Errorf("enqueue pipeline run: %w", err)
	}

	log.WithFields(log.Fields{
		"run_id":  runID,
		"trigger": trigger,
		"queue":   info.Queue,
	}).Info("pipeline run enqueued")
	return info, nil
}
