package services

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// RepoGit is the slice of git operations the sync flow needs.
type RepoGit interface {
	IsRepo(ctx context.Context) bool
	Clone(ctx context.Context, url, branch string) error
	IsShallow(ctx context.Context) (bool, error)
	Unshallow(ctx context.Context, remote string) error
	Fetch(ctx context.Context, remote string) error
	Checkout(ctx context.Context, branch string) error
	FastForward(ctx context.Context, remote, branch string) error
}

// RepoService keeps the working copy synchronized with its remote. After a
// successful Sync the copy holds the branch tip with full history, which the
// publish step depends on.
type RepoService struct {
	git    RepoGit
	url    string
	remote string
	branch string
}

func NewRepoService(git RepoGit, url, remote, branch string) *RepoService {
	return &RepoService{git: git, url: url, remote: remote, branch: branch}
}

func (s *RepoService) Sync(ctx context.Context) error {
	if !s.git.IsRepo(ctx) {
		log.WithFields(log.Fields{"url": s.url, "branch": s.branch}).Info("working copy absent, cloning")
		if err := s.git.Clone(ctx, s.url, s.branch); err != nil {
			return fmt.Errorf("clone repository: %w", err)
		}
		return nil
	}

	// A shallow copy cannot be trusted for history-dependent operations;
	// deepen it before anything else.
	shallow, err := s.git.IsShallow(ctx)
	if err != nil {
		return fmt.Errorf("inspect repository depth: %w", err)
	}
	if shallow {
		log.Info("working copy is shallow, fetching full history")
		if err := s.git.Unshallow(ctx, s.remote); err != nil {
			return fmt.Errorf("unshallow repository: %w", err)
		}
	}

	if err := s.git.Fetch(ctx, s.remote); err != nil {
		return fmt.Errorf("fetch %s: %w", s.remote, err)
	}
	if err := s.git.Checkout(ctx, s.branch); err != nil {
		return fmt.Errorf("checkout %s: %w", s.branch, err)
	}
	if err := s.git.FastForward(ctx, s.remote, s.branch); err != nil {
		return fmt.Errorf("fast-forward %s to %s/%s: %w", s.branch, s.remote, s.branch, err)
	}
	return nil
}
