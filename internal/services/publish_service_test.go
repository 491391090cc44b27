package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"munin/pkg/gitcli"
)

// --- Mock Git Publisher ---

type mockGit struct {
	worktreeDiff bool
	stagedDiff   bool
	head         string
	pushErr      error

	addCalls    int
	commits     []string
	identities  []gitcli.Identity
	pushCalls   int
	commitAlias func() // invoked on commit, lets tests flip diff state
}

func (m *mockGit) Add(ctx context.Context, path string) error {
	m.addCalls++
	return nil
}

func (m *mockGit) HasWorktreeDiff(ctx context.Context, path string) (bool, error) {
	return m.worktreeDiff, nil
}

func (m *mockGit) HasStagedDiff(ctx context.Context, path string) (bool, error) {
	return m.stagedDiff, nil
}

func (m *mockGit) Commit(ctx context.Context, ident gitcli.Identity, message string) error {
	m.commits = append(m.commits, message)
	m.identities = append(m.identities, ident)
	if m.commitAlias != nil {
		m.commitAlias()
	}
	return nil
}

func (m *mockGit) Head(ctx context.Context) (string, error) {
	return m.head, nil
}

func (m *mockGit) Push(ctx context.Context, remote, branch string) error {
	m.pushCalls++
	return m.pushErr
}

// --- End Mock Git Publisher ---

func newPublishService(git GitPublisher) *PublishService {
	ident := gitcli.Identity{Name: "munin-bot", Email: "munin-bot@example.com"}
	return NewPublishService(git, "data/categorized_articles.json", "origin", "main", ident, "Update categorized articles", "[skip ci]")
}

func TestPublishService_NoChange_IsSuccessfulNoop(t *testing.T) {
	// 1. Both diffs report the artifact byte-identical to HEAD
	git := &mockGit{worktreeDiff: false, stagedDiff: false}
	svc := newPublishService(git)

	// 2. Publish
	result, err := svc.Publish(context.Background())

	// 3. Success with nothing committed or pushed
	require.NoError(t, err, "an unchanged artifact is a successful run, not a failure")
	assert.False(t, result.Changed)
	assert.Empty(t, result.CommitHash)
	assert.Equal(t, 1, git.addCalls, "the artifact is always staged first")
	assert.Empty(t, git.commits)
	assert.Zero(t, git.pushCalls)
}

func TestPublishService_ChangedArtifact_CommitsOnceAndPushes(t *testing.T) {
	git := &mockGit{stagedDiff: true, head: "0123456789abcdef0123456789abcdef01234567"}
	svc := newPublishService(git)

	result, err := svc.Publish(context.Background())
	require.NoError(t, err)

	// Exactly one commit, carrying the skip marker, then one push
	assert.True(t, result.Changed)
	assert.Equal(t, git.head, result.CommitHash)
	require.Len(t, git.commits, 1)
	assert.Equal(t, "Update categorized articles [skip ci]", git.commits[0])
	assert.Equal(t, 1, git.pushCalls)
}

func TestPublishService_WorktreeDiffAloneTriggersPublish(t *testing.T) {
	git := &mockGit{worktreeDiff: true, stagedDiff: false, head: "feedfacefeedfacefeedfacefeedfacefeedface"}
	svc := newPublishService(git)

	result, err := svc.Publish(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Len(t, git.commits, 1)
}

func TestPublishService_UsesConfiguredIdentity(t *testing.T) {
	git := &mockGit{stagedDiff: true, head: "abc123abc123abc123abc123abc123abc123abc1"}
	svc := newPublishService(git)

	_, err := svc.Publish(context.Background())
	require.NoError(t, err)
	require.Len(t, git.identities, 1)
	assert.Equal(t, "munin-bot", git.identities[0].Name)
	assert.Equal(t, "munin-bot@example.com", git.identities[0].Email)
}

func TestPublishService_Idempotent(t *testing.T) {
	// 1. First call sees a change; committing it settles the artifact, so
	//    later diffs come back clean
	git := &mockGit{stagedDiff: true, head: "1111111111111111111111111111111111111111"}
	git.commitAlias = func() {
		git.worktreeDiff = false
		git.stagedDiff = false
	}
	svc := newPublishService(git)

	first, err := svc.Publish(context.Background())
	require.NoError(t, err)
	assert.True(t, first.Changed)

	// 2. Second call on the settled state publishes nothing
	second, err := svc.Publish(context.Background())
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Len(t, git.commits, 1, "re-running publish must not create a second commit")
	assert.Equal(t, 1, git.pushCalls)
}

func TestPublishService_PushRejectionSurfacesTyped(t *testing.T) {
	git := &mockGit{
		stagedDiff: true,
		head:       "2222222222222222222222222222222222222222",
		pushErr:    gitcli.ErrPushRejected,
	}
	svc := newPublishService(git)

	_, err := svc.Publish(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, gitcli.ErrPushRejected, "rejection must stay identifiable for failure classification")
}

func TestPublishService_StageFailureAborts(t *testing.T) {
	git := &failingAddGit{}
	svc := newPublishService(git)

	_, err := svc.Publish(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage artifact")
}

type failingAddGit struct{ mockGit }

func (f *failingAddGit) Add(ctx context.Context, path string) error {
	return errors.New("pathspec did not match any files")
}

func TestBuildCommitMessage(t *testing.T) {
	testCases := []struct {
		name    string
		message string
		marker  string
		want    string
	}{
		{name: "marker appended", message: "Update categorized articles", marker: "[skip ci]", want: "Update categorized articles [skip ci]"},
		{name: "marker already present", message: "Update data [skip ci]", marker: "[skip ci]", want: "Update data [skip ci]"},
		{name: "empty marker", message: "Update data", marker: "", want: "Update data"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, BuildCommitMessage(tc.message, tc.marker))
		})
	}
}
