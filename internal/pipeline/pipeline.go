package pipeline

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"munin/internal/models"
)

// Step is one stage of a run. Steps execute strictly in order and each acts
// as a barrier: when one fails, the pipeline stops and later steps never
// start.
type Step struct {
	Name  string
	Class string // failure class attached to an error from Run
	Run   func(ctx context.Context) error
}

// Execute runs steps in order and records one StepResult per step. On the
// first failure the remaining steps are marked skipped and the returned
// error is a *models.StepError naming the failing step and its class.
func Execute(ctx context.Context, steps []Step) ([]models.StepResult, error) {
	results := make([]models.StepResult, 0, len(steps))

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			results = append(results, models.StepResult{
				Name:   step.Name,
				Status: models.StepStatusFailed,
				Error:  err.Error(),
			})
			return abort(results, steps, i+1, &models.StepError{Step: step.Name, Class: step.Class, Err: err})
		}

		start := time.Now()
		log.WithField("step", step.Name).Info("step started")
		err := step.Run(ctx)
		elapsed := time.Since(start)

		if err != nil {
			stepErr := &models.StepError{Step: step.Name, Class: step.Class, Err: err}
			results = append(results, models.StepResult{
				Name:       step.Name,
				Status:     models.StepStatusFailed,
				DurationMS: elapsed.Milliseconds(),
				Error:      err.Error(),
			})
			log.WithFields(log.Fields{
				"step":     step.Name,
				"class":    step.Class,
				"duration": elapsed,
			}).Errorf("step failed: %v", err)
			return abort(results, steps, i+1, stepErr)
		}

		results = append(results, models.StepResult{
			Name:       step.Name,
			Status:     models.StepStatusOK,
			DurationMS: elapsed.Milliseconds(),
		})
		log.WithFields(log.Fields{
			"step":     step.Name,
			"duration": elapsed,
		}).Info("step completed")
	}

	return results, nil
}

// abort marks every step from index next onward as skipped and returns the
// step error.
func abort(results []models.StepResult, steps []Step, next int, stepErr *models.StepError) ([]models.StepResult, error) {
	for _, rest := range steps[next:] {
		results = append(results, models.StepResult{
			Name:   rest.Name,
			Status: models.StepStatusSkipped,
		})
	}
	return results, stepErr
}
