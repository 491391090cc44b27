package services

import "context"

// Shared service interfaces. The pipeline depends on these rather than on
// concrete implementations so each stage can be exercised in isolation.

// RepoSyncer brings the working copy to the branch tip with full history.
type RepoSyncer interface {
	Sync(ctx context.Context) error
}

// RuntimeProvisioner prepares the interpreter the categorizer runs on.
type RuntimeProvisioner interface {
	VerifyRuntime(ctx context.Context) error
	InstallDependencies(ctx context.Context) error
}

// WorkspaceKeeper manages the runner-owned paths inside the working copy.
type WorkspaceKeeper interface {
	EnsureDirs() error
	InspectArtifact(rel string) string
}

// CategorizerRunner executes the external categorizer subprocess.
type CategorizerRunner interface {
	Run(ctx context.Context, extraEnv map[string]string) error
}

// Publisher conditionally commits and pushes the artifact.
type Publisher interface {
	Publish(ctx context.Context) (*PublishResult, error)
}
