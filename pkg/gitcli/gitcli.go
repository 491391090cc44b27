package gitcli

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Identity is the author/committer identity applied per commit. It is always
// passed explicitly; the client never reads or writes ambient git config.
type Identity struct {
	Name  string
	Email string
}

// Client runs git against a single working copy. Every operation shells out
// to the git binary with a per-command timeout.
type Client struct {
	workDir string
	timeout time.Duration
	runner  runnerFunc
}

// runnerFunc executes name with args in dir and returns trimmed combined
// output. Swappable so tests can stub out the git binary.
type runnerFunc func(ctx context.Context, dir, name string, args ...string) (string, error)

// NewClient creates a Client for the working copy at workDir. timeout bounds
// each individual git command.
func NewClient(workDir string, timeout time.Duration) *Client {
	return &Client{
		workDir: workDir,
		timeout: timeout,
		runner:  runCommand,
	}
}

// WorkDir returns the working copy path the client operates on.
func (c *Client) WorkDir() string {
	return c.workDir
}

func runCommand(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// git runs a git command in the working copy under the per-command timeout.
func (c *Client) git(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	out, err := c.runner(ctx, c.workDir, "git", args...)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return out, fmt.Errorf("git %s timed out after %s", strings.Join(args, " "), c.timeout)
	}
	return out, err
}

// IsRepo reports whether the working copy is an initialized git repository.
func (c *Client) IsRepo(ctx context.Context) bool {
	_, err := c.git(ctx, "rev-parse", "--git-dir")
	return err == nil
}

// Clone clones url at branch into the working copy. The clone is full, not
// shallow, so publish commits have complete lineage behind them.
func (c *Client) Clone(ctx context.Context, url, branch string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	parent := filepath.Dir(c.workDir)
	out, err := c.runner(ctx, parent, "git", "clone", "--branch", branch, "--", url, c.workDir)
	if err != nil {
		return fmt.Errorf("git clone failed: %s: %w", out, err)
	}
	return nil
}

// IsShallow reports whether the working copy has truncated history.
func (c *Client) IsShallow(ctx context.Context) (bool, error) {
	out, err := c.git(ctx, "rev-parse", "--is-shallow-repository")
	if err != nil {
		return false, fmt.Errorf("git rev-parse failed: %s: %w", out, err)
	}
	return out == "true", nil
}

// Unshallow converts a shallow working copy into one with full history.
func (c *Client) Unshallow(ctx context.Context, remote string) error {
	out, err := c.git(ctx, "fetch", "--unshallow", remote)
	if err != nil {
		return fmt.Errorf("git fetch --unshallow failed: %s: %w", out, err)
	}
	return nil
}

// Fetch updates remote-tracking refs from remote.
func (c *Client) Fetch(ctx context.Context, remote string) error {
	out, err := c.git(ctx, "fetch", remote)
	if err != nil {
		return fmt.Errorf("git fetch failed: %s: %w", out, err)
	}
	return nil
}

// Checkout switches the working copy to branch.
func (c *Client) Checkout(ctx context.Context, branch string) error {
	out, err := c.git(ctx, "checkout", branch)
	if err != nil {
		return fmt.Errorf("git checkout %s failed: %s: %w", branch, out, err)
	}
	return nil
}

// FastForward advances branch to remote/branch without creating a merge
// commit. Diverged history is an error.
func (c *Client) FastForward(ctx context.Context, remote, branch string) error {
	out, err := c.git(ctx, "merge", "--ff-only", remote+"/"+branch)
	if err != nil {
		return fmt.Errorf("git merge --ff-only failed: %s: %w", out, err)
	}
	return nil
}

// CurrentBranch returns the checked-out branch name.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	out, err := c.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse failed: %s: %w", out, err)
	}
	return out, nil
}

// Head returns the commit hash the working copy is at.
func (c *Client) Head(ctx context.Context) (string, error) {
	out, err := c.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse HEAD failed: %s: %w", out, err)
	}
	return out, nil
}

// Add stages path.
func (c *Client) Add(ctx context.Context, path string) error {
	out, err := c.git(ctx, "add", "--", path)
	if err != nil {
		return fmt.Errorf("git add %s failed: %s: %w", path, out, err)
	}
	return nil
}

// HasWorktreeDiff reports whether path differs between the working tree and
// HEAD.
func (c *Client) HasWorktreeDiff(ctx context.Context, path string) (bool, error) {
	return c.quietDiff(ctx, path, "diff", "--quiet", "--", path)
}

// HasStagedDiff reports whether path differs between the index and HEAD.
func (c *Client) HasStagedDiff(ctx context.Context, path string) (bool, error) {
	return c.quietDiff(ctx, path, "diff", "--cached", "--quiet", "--", path)
}

// quietDiff interprets git diff --quiet exit codes: 0 means no difference,
// 1 means a difference, anything else is a real failure.
func (c *Client) quietDiff(ctx context.Context, path string, args ...string) (bool, error) {
	out, err := c.git(ctx, args...)
	if err == nil {
		return false, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, fmt.Errorf("git diff for %s failed: %s: %w", path, out, err)
}

// HasChanges reports whether the working copy has any uncommitted changes,
// staged or not.
func (c *Client) HasChanges(ctx context.Context) (bool, error) {
	out, err := c.git(ctx, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("git status failed: %s: %w", out, err)
	}
	return out != "", nil
}

// Commit creates a commit with message under ident. The identity is supplied
// via -c flags so nothing is written to the repository's git config.
func (c *Client) Commit(ctx context.Context, ident Identity, message string) error {
	out, err := c.git(ctx,
		"-c", "user.name="+ident.Name,
		"-c", "user.email="+ident.Email,
		"commit", "-m", message)
	if err != nil {
		return fmt.Errorf("git commit failed: %s: %w", out, err)
	}
	return nil
}

// Push pushes HEAD to branch on remote. A rejection because the remote moved
// ahead is reported as ErrPushRejected.
func (c *Client) Push(ctx context.Context, remote, branch string) error {
	out, err := c.git(ctx, "push", remote, "HEAD:"+branch)
	if err != nil {
		if isRejectedPush(out) {
			return fmt.Errorf("push to %s/%s: %w", remote, branch, ErrPushRejected)
		}
		return fmt.Errorf("git push failed: %s: %w", out, err)
	}
	return nil
}

func isRejectedPush(out string) bool {
	return strings.Contains(out, "[rejected]") ||
		strings.Contains(out, "[remote rejected]") ||
		strings.Contains(out, "failed to push some refs")
}

// Version returns the installed git version string, e.g. "git version 2.39.2".
func (c *Client) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.runner(ctx, "", "git", "--version")
}
