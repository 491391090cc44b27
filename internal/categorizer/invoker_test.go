package categorizer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript drops a shell script into dir and returns its name.
func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	name := "script.sh"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o755))
	return name
}

func TestInvoker_Run_Success(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "#!/bin/sh\necho categorizing\nexit 0\n")

	inv := NewInvoker(dir, "sh", script, 5*time.Second)
	err := inv.Run(context.Background(), nil)
	require.NoError(t, err)
}

func TestInvoker_Run_NonZeroExit(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "#!/bin/sh\necho boom 1>&2\nexit 3\n")

	inv := NewInvoker(dir, "sh", script, 5*time.Second)
	err := inv.Run(context.Background(), nil)

	require.Error(t, err)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr, "non-zero exit should surface as ExitError")
	assert.Equal(t, 3, exitErr.Code)
}

func TestInvoker_Run_TimeoutKillsProcess(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "#!/bin/sh\nsleep 30\n")

	inv := NewInvoker(dir, "sh", script, 150*time.Millisecond)

	start := time.Now()
	err := inv.Run(context.Background(), nil)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimedOut)
	assert.Less(t, elapsed, 10*time.Second, "the process must be killed, not waited out")
}

func TestInvoker_Run_InjectsEnvAndUnbuffered(t *testing.T) {
	dir := t.TempDir()
	// The script records what it observed so the test can inspect it.
	script := writeScript(t, dir, "#!/bin/sh\nprintf '%s|%s' \"$API_KEY\" \"$PYTHONUNBUFFERED\" > observed.txt\n")

	inv := NewInvoker(dir, "sh", script, 5*time.Second)
	err := inv.Run(context.Background(), map[string]string{"API_KEY": "s3cret"})
	require.NoError(t, err)

	observed, err := os.ReadFile(filepath.Join(dir, "observed.txt"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret|1", string(observed), "secret and PYTHONUNBUFFERED must reach the subprocess")
}

func TestInvoker_Run_ExecutesInWorkDir(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "#!/bin/sh\ntouch here.marker\n")

	inv := NewInvoker(dir, "sh", script, 5*time.Second)
	require.NoError(t, inv.Run(context.Background(), nil))

	_, err := os.Stat(filepath.Join(dir, "here.marker"))
	assert.NoError(t, err, "the subprocess should run inside the working copy")
}

func TestInvoker_Run_MissingInterpreter(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "#!/bin/sh\nexit 0\n")

	inv := NewInvoker(dir, "definitely-not-an-interpreter", script, 5*time.Second)
	err := inv.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start categorizer")
}
