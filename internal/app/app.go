package app

import (
	"context"
	"fmt"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"munin/internal/categorizer"
	"munin/internal/config"
	"munin/internal/services"
	"munin/internal/store"
	"munin/internal/store/primary"
	"munin/internal/store/sqlite"
	"munin/internal/workspace"
	"munin/pkg/gitcli"
)

// App wires configuration, the run ledger, the job queue and the pipeline
// services together. Commands retrieve it from the cobra context.
type App struct {
	Config *config.Config

	RunStore  store.RunStore
	JobClient store.JobClient

	Git       *gitcli.Client
	Workspace *workspace.Workspace

	// --- Initialized Services ---
	RepoService *services.RepoService
	Toolchain   *services.ToolchainService
	Categorizer *categorizer.Invoker
	Publisher   *services.PublishService
	Pipeline    *services.PipelineService
}

func NewApp(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := context.Background()
	app := &App{Config: cfg}

	if err := app.initRunStore(ctx); err != nil {
		return nil, err
	}
	if err := app.initJobClient(); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	if err := app.initPipeline(); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}

	log.Debug("application initialization complete")
	return app, nil
}

// --- Private Helper Methods ---

func (a *App) initRunStore(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Database.Driver {
	case "sqlite":
		rs, err := sqlite.NewRunStore(ctx, cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("init sqlite run store: %w", err)
		}
		a.RunStore = rs
	case "postgres":
		rs, err := primary.NewPrimaryStore(ctx, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("init postgres run store: %w", err)
		}
		a.RunStore = rs
	case "none":
		log.Warn("run ledger is disabled, runs will not be recorded")
		a.RunStore = store.NewNoopRunStore()
	default:
		return fmt.Errorf("unknown database driver: %s", cfg.Database.Driver)
	}
	return nil
}

func (a *App) initJobClient() error {
	jc, err := store.NewAsynqJobClient(a.Config.Redis.Address, a.Config.Redis.Password, a.Config.Redis.DB)
	if err != nil {
		return fmt.Errorf("init job client: %w", err)
	}
	a.JobClient = jc
	return nil
}

func (a *App) initPipeline() error {
	cfg := a.Config

	workDir, err := filepath.Abs(cfg.Repo.WorkDir)
	if err != nil {
		return fmt.Errorf("resolve work dir: %w", err)
	}

	a.Git = gitcli.NewClient(workDir, cfg.Repo.CommandTimeout)
	a.Workspace = workspace.New(workDir, cfg.Workspace.DataDir, cfg.Workspace.LogsDir)
	a.RepoService = services.NewRepoService(a.Git, cfg.Repo.URL, cfg.Repo.Remote, cfg.Repo.Branch)
	a.Toolchain = services.NewToolchainService(workDir, cfg.Runtime.Interpreter, cfg.Runtime.VersionPrefix, cfg.Runtime.Manifest, cfg.Runtime.CommandTimeout)
	a.Categorizer = categorizer.NewInvoker(workDir, cfg.Runtime.Interpreter, cfg.Categorizer.Script, cfg.Categorizer.Timeout)

	identity := gitcli.Identity{Name: cfg.Publish.BotName, Email: cfg.Publish.BotEmail}
	a.Publisher = services.NewPublishService(a.Git, cfg.Publish.ArtifactPath, cfg.Repo.Remote, cfg.Repo.Branch, identity, cfg.Publish.CommitMessage, cfg.Publish.SkipMarker)

	a.Pipeline = services.NewPipelineService(a.RunStore, a.RepoService, a.Toolchain, a.Workspace, a.Categorizer, a.Publisher, services.PipelineParams{
		ArtifactPath:     cfg.Publish.ArtifactPath,
		SecretEnv:        cfg.Categorizer.SecretEnv,
		ValidateArtifact: cfg.Workspace.ValidateArtifact,
		Identity:         identity,
		// The lock lives next to the work tree, not inside it, so holding
		// it never dirties the repository.
		LockPath: workDir + ".lock",
	})
	return nil
}

func (a *App) cleanupPartialInit() {
	if a.JobClient != nil {
		if err := a.JobClient.Close(); err != nil {
			log.Errorf("closing job client: %v", err)
		}
	}
	if a.RunStore != nil {
		if err := a.RunStore.Close(); err != nil {
			log.Errorf("closing run store: %v", err)
		}
	}
}

// Close releases the app's long-lived connections.
func (a *App) Close() {
	a.cleanupPartialInit()
}
