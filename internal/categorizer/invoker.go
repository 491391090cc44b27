package categorizer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrTimedOut means the categorizer exceeded its wall-clock budget and
	// was killed.
	ErrTimedOut = errors.New("categorizer timed out")
)

// ExitError reports a categorizer process that ran to completion but exited
// non-zero.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("categorizer exited with code %d", e.Code)
}

// Invoker runs the external categorizer script as a subprocess. The script
// is a black box: it reads and updates the artifact on disk and signals
// success purely through its exit status.
type Invoker struct {
	workDir     string
	interpreter string
	script      string
	timeout     time.Duration
}

func NewInvoker(workDir, interpreter, script string, timeout time.Duration) *Invoker {
	return &Invoker{
		workDir:     workDir,
		interpreter: interpreter,
		script:      script,
		timeout:     timeout,
	}
}

// Run executes the script and blocks until it exits or the timeout fires.
// extraEnv entries (typically the API key) are layered over the inherited
// environment; values are handed to the process and never logged.
func (inv *Invoker) Run(ctx context.Context, extraEnv map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, inv.interpreter, inv.script)
	cmd.Dir = inv.workDir

	// Inherit the host environment, then force unbuffered output so log
	// lines arrive as the script produces them, not in one burst at exit.
	env := append(os.Environ(), "PYTHONUNBUFFERED=1")
	for k, v := range extraEnv {
		env = append(env, k+"="+v)
	}
	cmd.Env = env

	// Own process group so the whole tree can be killed on timeout.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("categorizer stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("categorizer stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start categorizer: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go streamLines(stdout, "stdout", &wg)
	go streamLines(stderr, "stderr", &wg)

	// Reading must drain before Wait closes the pipes.
	done := make(chan error, 1)
	go func() {
		wg.Wait()
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			// Kill the process group (negative PID)
			syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-done // Wait for the process to actually exit
	case err = <-done:
	}

	// The deadline may fire on either side of the select; classify it first.
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTimedOut, inv.timeout)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("categorizer cancelled: %w", ctx.Err())
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("categorizer execution failed: %w", err)
	}
	return nil
}

// streamLines forwards each subprocess output line into the structured log.
func streamLines(r io.Reader, stream string, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		log.WithField("stream", stream).Info(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		log.WithField("stream", stream).Warnf("output stream closed with error: %v", err)
	}
}
