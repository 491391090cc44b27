package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"munin/internal/models"
	"munin/internal/pipeline"
	"munin/internal/store"
	"munin/pkg/gitcli"
)

// Pipeline step names, in execution order.
const (
	StepAcquireLock     = "acquire-lock"
	StepSyncRepo        = "sync-repo"
	StepVerifyRuntime   = "verify-runtime"
	StepInstallDeps     = "install-deps"
	StepEnsureDirs      = "ensure-dirs"
	StepResolveIdentity = "resolve-identity"
	StepResolveSecret   = "resolve-secret"
	StepCategorize      = "categorize"
	StepPublish         = "publish"
)

// PipelineParams carries the static configuration of a PipelineService.
type PipelineParams struct {
	ArtifactPath     string
	SecretEnv        string
	ValidateArtifact bool
	Identity         gitcli.Identity
	LockPath         string
}

// PipelineService executes one full categorize-and-publish run: environment
// preparation, the categorizer subprocess, and the conditional publish, in
// strict order with every stage acting as a barrier. Each execution is
// recorded in the run ledger.
type PipelineService struct {
	runStore    store.RunStore
	syncer      RepoSyncer
	toolchain   RuntimeProvisioner
	workspace   WorkspaceKeeper
	categorizer CategorizerRunner
	publisher   Publisher
	params      PipelineParams

	lookupEnv func(string) string
}

func NewPipelineService(runStore store.RunStore, syncer RepoSyncer, toolchain RuntimeProvisioner, ws WorkspaceKeeper, categorizer CategorizerRunner, publisher Publisher, params PipelineParams) *PipelineService {
	return &PipelineService{
		runStore:    runStore,
		syncer:      syncer,
		toolchain:   toolchain,
		workspace:   ws,
		categorizer: categorizer,
		publisher:   publisher,
		params:      params,
		lookupEnv:   os.Getenv,
	}
}

// Execute performs one run. The returned Run reflects the final ledger
// record. A non-nil error means the run failed; a skipped run (another run
// holds the exclusion lock) returns with status skipped and no error.
func (s *PipelineService) Execute(ctx context.Context, runID uuid.UUID, trigger string) (*models.Run, error) {
	if !models.ValidTrigger(trigger) {
		return nil, fmt.Errorf("%w: unknown trigger kind '%s'", models.ErrValidation, trigger)
	}

	run := &models.Run{
		RunID:     runID,
		Trigger:   trigger,
		Status:    models.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	logger := log.WithFields(log.Fields{"run_id": runID, "trigger": trigger})

	lock, err := pipeline.AcquireRunLock(s.params.LockPath, runID.String())
	if err != nil {
		if errors.Is(err, pipeline.ErrLockHeld) {
			logger.Info("another run is in progress, skipping")
			return s.finishSkipped(ctx, run, err), nil
		}
		stepErr := &models.StepError{Step: StepAcquireLock, Class: models.FailureClassSetup, Err: fmt.Errorf("acquire run lock: %w", err)}
		s.recordStart(ctx, run)
		return s.finishFailed(ctx, run, nil, stepErr), stepErr
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warnf("failed to release run lock: %v", err)
		}
	}()

	logger.Info("pipeline run started")
	s.recordStart(ctx, run)

	var (
		secret  string
		warning string
		result  *PublishResult
	)

	steps := []pipeline.Step{
		{Name: StepSyncRepo, Class: models.FailureClassSetup, Run: s.syncer.Sync},
		{Name: StepVerifyRuntime, Class: models.FailureClassSetup, Run: s.toolchain.VerifyRuntime},
		{Name: StepInstallDeps, Class: models.FailureClassSetup, Run: s.toolchain.InstallDependencies},
		{Name: StepEnsureDirs, Class: models.FailureClassSetup, Run: func(ctx context.Context) error {
			return s.workspace.EnsureDirs()
		}},
		{Name: StepResolveIdentity, Class: models.FailureClassSetup, Run: func(ctx context.Context) error {
			if s.params.Identity.Name == "" || s.params.Identity.Email == "" {
				return errors.New("committer identity is not configured")
			}
			return nil
		}},
		{Name: StepResolveSecret, Class: models.FailureClassSetup, Run: func(ctx context.Context) error {
			secret = s.lookupEnv(s.params.SecretEnv)
			if secret == "" {
				return fmt.Errorf("environment variable %s is not set", s.params.SecretEnv)
			}
			return nil
		}},
		{Name: StepCategorize, Class: models.FailureClassSubprocess, Run: func(ctx context.Context) error {
			if err := s.categorizer.Run(ctx, map[string]string{s.params.SecretEnv: secret}); err != nil {
				return err
			}
			if s.params.ValidateArtifact {
				if warning = s.workspace.InspectArtifact(s.params.ArtifactPath); warning != "" {
					logger.Warn(warning)
				}
			}
			return nil
		}},
		{Name: StepPublish, Class: models.FailureClassPublish, Run: func(ctx context.Context) error {
			r, err := s.publisher.Publish(ctx)
			if err != nil {
				return err
			}
			result = r
			return nil
		}},
	}

	stepResults, stepErr := pipeline.Execute(ctx, steps)

	if warning != "" {
		run.ArtifactWarning = &warning
	}
	if result != nil {
		run.ArtifactChanged = result.Changed
		if result.CommitHash != "" {
			hash := result.CommitHash
			run.CommitHash = &hash
		}
	}

	if stepErr != nil {
		run = s.finishFailed(ctx, run, stepResults, stepErr)
		logger.WithFields(log.Fields{
			"class":    models.FailureClass(stepErr),
			"duration": time.Since(run.StartedAt),
		}).Errorf("pipeline run failed: %v", stepErr)
		return run, stepErr
	}

	run.Status = models.RunStatusSucceeded
	run.Steps = stepResults
	now := time.Now().UTC()
	run.FinishedAt = &now
	s.recordFinish(ctx, run)

	logger.WithFields(log.Fields{
		"artifact_changed": run.ArtifactChanged,
		"duration":         time.Since(run.StartedAt),
	}).Info("pipeline run succeeded")
	return run, nil
}

func (s *PipelineService) finishSkipped(ctx context.Context, run *models.Run, cause error) *models.Run {
	run.Status = models.RunStatusSkipped
	msg := cause.Error()
	run.Error = &msg
	now := time.Now().UTC()
	run.FinishedAt = &now
	s.recordStart(ctx, run)
	s.recordFinish(ctx, run)
	return run
}

func (s *PipelineService) finishFailed(ctx context.Context, run *models.Run, steps []models.StepResult, cause error) *models.Run {
	run.Status = models.RunStatusFailed
	run.Steps = steps
	msg := cause.Error()
	run.Error = &msg
	now := time.Now().UTC()
	run.FinishedAt = &now
	s.recordFinish(ctx, run)
	return run
}

// recordStart and recordFinish are best-effort: the ledger observes runs, it
// never blocks them.
func (s *PipelineService) recordStart(ctx context.Context, run *models.Run) {
	if err := s.runStore.CreateRun(ctx, run); err != nil {
		log.Errorf("failed to record start of run %s: %v", run.RunID, err)
	}
}

func (s *PipelineService) recordFinish(ctx context.Context, run *models.Run) {
	if err := s.runStore.FinishRun(ctx, run); err != nil {
		log.Errorf("failed to record finish of run %s: %v", run.RunID, err)
	}
}
