package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Defines constants for task types used in Asynq.

const (
	// TypePipelineRun is the task type for one categorize-and-publish run.
	TypePipelineRun = "pipeline:run"

	// PipelineTaskID is the fixed Asynq task ID for pipeline runs. A fixed ID
	// makes enqueueing conflict while a run is pending or active, so at most
	// one run can sit in the queue at a time.
	PipelineTaskID = "pipeline:run:singleton"

	// QueuePipeline is the queue pipeline runs are routed to.
	QueuePipeline = "pipeline"
)

// PipelineRunPayload is the payload of a TypePipelineRun task.
type PipelineRunPayload struct {
	RunID   string `json:"run_id"`
	Trigger string `json:"trigger"`
}

// NewPipelineRunTask builds a pipeline run task carrying the run ID and
// trigger kind.
func NewPipelineRunTask(runID, trigger string) (*asynq.Task, error) {
	payload, err := json.Marshal(PipelineRunPayload{RunID: runID, Trigger: trigger})
	if err != nil {
		return nil, fmt.Errorf("marshal pipeline run payload: %w", err)
	}
	return asynq.NewTask(TypePipelineRun, payload), nil
}

// ParsePipelineRunPayload decodes a pipeline run task payload.
func ParsePipelineRunPayload(data []byte) (PipelineRunPayload, error) {
	var p PipelineRunPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("unmarshal pipeline run payload: %w", err)
	}
	return p, nil
}
