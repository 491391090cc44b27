package gitcli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Stub command runner ---

type stubCall struct {
	dir  string
	args []string
}

type stubRunner struct {
	calls []stubCall
	out   string
	err   error
}

func (s *stubRunner) run(ctx context.Context, dir, name string, args ...string) (string, error) {
	s.calls = append(s.calls, stubCall{dir: dir, args: args})
	return s.out, s.err
}

// --- End stub command runner ---

// exitErr produces a real *exec.ExitError carrying the given exit code.
func exitErr(t *testing.T, code int) error {
	t.Helper()
	err := exec.Command("sh", "-c", fmt.Sprintf("exit %d", code)).Run()
	require.Error(t, err, "expected non-zero exit to produce an error")
	return err
}

func newStubClient(stub *stubRunner) *Client {
	c := NewClient("/work", 5*time.Second)
	c.runner = stub.run
	return c
}

func TestClient_QuietDiff_ExitCodes(t *testing.T) {
	testCases := []struct {
		name        string
		err         error
		wantChanged bool
		wantErr     bool
	}{
		{name: "exit 0 means no difference", err: nil, wantChanged: false},
		{name: "exit 1 means difference", err: nil, wantChanged: true},
		{name: "exit 2 is a failure", err: nil, wantErr: true},
	}
	testCases[1].err = exitErr(t, 1)
	testCases[2].err = exitErr(t, 2)

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubRunner{err: tc.err}
			c := newStubClient(stub)

			changed, err := c.HasWorktreeDiff(context.Background(), "data/out.json")
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantChanged, changed)
		})
	}
}

func TestClient_StagedDiff_UsesCachedFlag(t *testing.T) {
	stub := &stubRunner{}
	c := newStubClient(stub)

	_, err := c.HasStagedDiff(context.Background(), "data/out.json")
	require.NoError(t, err)
	require.Len(t, stub.calls, 1)
	assert.Equal(t, []string{"diff", "--cached", "--quiet", "--", "data/out.json"}, stub.calls[0].args)
}

func TestClient_Commit_PassesIdentityFlags(t *testing.T) {
	stub := &stubRunner{}
	c := newStubClient(stub)

	ident := Identity{Name: "bot", Email: "bot@example.com"}
	err := c.Commit(context.Background(), ident, "Update data [skip ci]")
	require.NoError(t, err)

	require.Len(t, stub.calls, 1)
	args := stub.calls[0].args
	assert.Equal(t, []string{
		"-c", "user.name=bot",
		"-c", "user.email=bot@example.com",
		"commit", "-m", "Update data [skip ci]",
	}, args, "identity must ride on -c flags, not repo config")
}

func TestClient_Push_RejectionIsTyped(t *testing.T) {
	stub := &stubRunner{
		out: "! [rejected] main -> main (fetch first)\nerror: failed to push some refs to 'origin'",
		err: exitErr(t, 1),
	}
	c := newStubClient(stub)

	err := c.Push(context.Background(), "origin", "main")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPushRejected, "a rejected push must map to ErrPushRejected")
}

func TestClient_Push_OtherFailureIsNotRejection(t *testing.T) {
	stub := &stubRunner{
		out: "fatal: unable to access 'https://example.com/repo.git'",
		err: exitErr(t, 128),
	}
	c := newStubClient(stub)

	err := c.Push(context.Background(), "origin", "main")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPushRejected)
}

func TestClient_CommandTimeout(t *testing.T) {
	c := NewClient("/work", 20*time.Millisecond)
	c.runner = func(ctx context.Context, dir, name string, args ...string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	_, err := c.Head(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out", "deadline expiry should be reported as a timeout")
}

// --- Integration against a real git binary ---

// runGit is a raw helper for test setup outside the client under test.
func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, out)
	return string(out)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestClient_GitIntegration(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	ctx := context.Background()
	ident := Identity{Name: "bot", Email: "bot@example.com"}

	// 1. A bare remote and a working copy pushing into it
	tmp := t.TempDir()
	bare := filepath.Join(tmp, "remote.git")
	work := filepath.Join(tmp, "work")
	require.NoError(t, os.MkdirAll(bare, 0o755))
	require.NoError(t, os.MkdirAll(work, 0o755))
	runGit(t, bare, "init", "--bare")
	runGit(t, work, "init")
	runGit(t, work, "remote", "add", "origin", bare)

	c := NewClient(work, 30*time.Second)
	require.True(t, c.IsRepo(ctx))

	// 2. First commit and push
	writeFile(t, work, "articles.json", `{"articles": []}`)
	require.NoError(t, c.Add(ctx, "articles.json"))

	staged, err := c.HasStagedDiff(ctx, "articles.json")
	require.NoError(t, err)
	assert.True(t, staged, "new staged file should register as a staged diff")

	require.NoError(t, c.Commit(ctx, ident, "Initial data"))
	branch, err := c.CurrentBranch(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Push(ctx, "origin", branch))

	// 3. Clean tree: neither diff reports a change
	staged, err = c.HasStagedDiff(ctx, "articles.json")
	require.NoError(t, err)
	assert.False(t, staged)
	dirty, err := c.HasWorktreeDiff(ctx, "articles.json")
	require.NoError(t, err)
	assert.False(t, dirty)

	// 4. Modify the file: worktree diff appears, then moves to the index
	writeFile(t, work, "articles.json", `{"articles": [{"id": 1, "category": "tech"}]}`)
	dirty, err = c.HasWorktreeDiff(ctx, "articles.json")
	require.NoError(t, err)
	assert.True(t, dirty)

	require.NoError(t, c.Add(ctx, "articles.json"))
	staged, err = c.HasStagedDiff(ctx, "articles.json")
	require.NoError(t, err)
	assert.True(t, staged)

	require.NoError(t, c.Commit(ctx, ident, "Update data [skip ci]"))
	head, err := c.Head(ctx)
	require.NoError(t, err)
	assert.Len(t, head, 40)
	require.NoError(t, c.Push(ctx, "origin", branch))

	// 5. Full clones are not shallow
	shallow, err := c.IsShallow(ctx)
	require.NoError(t, err)
	assert.False(t, shallow)
}

func TestClient_GitIntegration_PushRejected(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}

	ctx := context.Background()
	ident := Identity{Name: "bot", Email: "bot@example.com"}

	// 1. Bare remote with one commit from copy A
	tmp := t.TempDir()
	bare := filepath.Join(tmp, "remote.git")
	workA := filepath.Join(tmp, "a")
	require.NoError(t, os.MkdirAll(bare, 0o755))
	require.NoError(t, os.MkdirAll(workA, 0o755))
	runGit(t, bare, "init", "--bare")
	runGit(t, workA, "init")
	runGit(t, workA, "remote", "add", "origin", bare)

	a := NewClient(workA, 30*time.Second)
	writeFile(t, workA, "f.txt", "one")
	require.NoError(t, a.Add(ctx, "f.txt"))
	require.NoError(t, a.Commit(ctx, ident, "one"))
	branch, err := a.CurrentBranch(ctx)
	require.NoError(t, err)
	require.NoError(t, a.Push(ctx, "origin", branch))

	// 2. Copy B advances the remote
	workB := filepath.Join(tmp, "b")
	runGit(t, tmp, "clone", bare, workB)
	b := NewClient(workB, 30*time.Second)
	writeFile(t, workB, "f.txt", "two")
	require.NoError(t, b.Add(ctx, "f.txt"))
	require.NoError(t, b.Commit(ctx, ident, "two"))
	require.NoError(t, b.Push(ctx, "origin", branch))

	// 3. Copy A pushes without fetching and loses the race
	writeFile(t, workA, "f.txt", "three")
	require.NoError(t, a.Add(ctx, "f.txt"))
	require.NoError(t, a.Commit(ctx, ident, "three"))
	err = a.Push(ctx, "origin", branch)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPushRejected)
}
