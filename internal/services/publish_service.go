package services

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"munin/pkg/gitcli"
)

// GitPublisher is the slice of git operations the publish flow needs.
type GitPublisher interface {
	Add(ctx context.Context, path string) error
	HasWorktreeDiff(ctx context.Context, path string) (bool, error)
	HasStagedDiff(ctx context.Context, path string) (bool, error)
	Commit(ctx context.Context, ident gitcli.Identity, message string) error
	Head(ctx context.Context) (string, error)
	Push(ctx context.Context, remote, branch string) error
}

// PublishResult reports what a publish attempt did.
type PublishResult struct {
	Changed    bool
	CommitHash string
}

// PublishService commits and pushes the artifact when, and only when, its
// content differs from the last committed version. An unchanged artifact is
// a successful no-op, which makes the operation idempotent: re-running it on
// the same state publishes nothing new.
type PublishService struct {
	git          GitPublisher
	artifactPath string
	remote       string
	branch       string
	identity     gitcli.Identity
	message      string
}

func NewPublishService(git GitPublisher, artifactPath, remote, branch string, identity gitcli.Identity, commitMessage, skipMarker string) *PublishService {
	return &PublishService{
		git:          git,
		artifactPath: artifactPath,
		remote:       remote,
		branch:       branch,
		identity:     identity,
		message:      BuildCommitMessage(commitMessage, skipMarker),
	}
}

// BuildCommitMessage appends the skip marker to the commit message unless
// the message already carries it. The marker keeps publish commits from
// triggering another run.
func BuildCommitMessage(message, marker string) string {
	if marker == "" || strings.Contains(message, marker) {
		return message
	}
	return message + " " + marker
}

// Publish stages the artifact, checks both the working-tree-vs-HEAD and
// index-vs-HEAD diffs, and commits and pushes only when either reports a
// change.
func (s *PublishService) Publish(ctx context.Context) (*PublishResult, error) {
	if err := s.git.Add(ctx, s.artifactPath); err != nil {
		return nil, fmt.Errorf("stage artifact: %w", err)
	}

	dirty, err := s.git.HasWorktreeDiff(ctx, s.artifactPath)
	if err != nil {
		return nil, fmt.Errorf("check working tree diff: %w", err)
	}
	staged, err := s.git.HasStagedDiff(ctx, s.artifactPath)
	if err != nil {
		return nil, fmt.Errorf("check staged diff: %w", err)
	}

	if !dirty && !staged {
		log.WithField("artifact", s.artifactPath).Info("artifact unchanged, nothing to publish")
		return &PublishResult{Changed: false}, nil
	}

	if err := s.git.Commit(ctx, s.identity, s.message); err != nil {
		return nil, fmt.Errorf("commit artifact: %w", err)
	}

	hash, err := s.git.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve publish commit: %w", err)
	}

	if err := s.git.Push(ctx, s.remote, s.branch); err != nil {
		// gitcli.ErrPushRejected flows through for the caller to classify.
		return nil, fmt.Errorf("push artifact commit %s: %w", shortHash(hash), err)
	}

	log.WithFields(log.Fields{
		"artifact": s.artifactPath,
		"commit":   shortHash(hash),
		"branch":   s.branch,
	}).Info("artifact published")
	return &PublishResult{Changed: true, CommitHash: hash}, nil
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
