package services

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// ToolchainService provisions the runtime the categorizer needs: it verifies
// the interpreter is present at the pinned version and installs the
// dependency manifest into it.
type ToolchainService struct {
	workDir       string
	interpreter   string
	versionPrefix string
	manifest      string
	timeout       time.Duration
	runner        func(ctx context.Context, dir, name string, args ...string) (string, error)
}

func NewToolchainService(workDir, interpreter, versionPrefix, manifest string, timeout time.Duration) *ToolchainService {
	return &ToolchainService{
		workDir:       workDir,
		interpreter:   interpreter,
		versionPrefix: versionPrefix,
		manifest:      manifest,
		timeout:       timeout,
		runner:        runToolCommand,
	}
}

func runToolCommand(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// VerifyRuntime checks that the interpreter runs and reports the pinned
// version. The version line is expected in "Python 3.9.18" form; only the
// numeric part is matched against the configured prefix.
func (s *ToolchainService) VerifyRuntime(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.runner(ctx, s.workDir, s.interpreter, "--version")
	if err != nil {
		return fmt.Errorf("interpreter %s not available: %s: %w", s.interpreter, out, err)
	}

	version := parseVersion(out)
	if version == "" {
		return fmt.Errorf("interpreter %s reported unparseable version output %q", s.interpreter, out)
	}
	if s.versionPrefix != "" && !versionMatches(version, s.versionPrefix) {
		return fmt.Errorf("interpreter %s is version %s, want %s.x", s.interpreter, version, s.versionPrefix)
	}

	log.WithFields(log.Fields{
		"interpreter": s.interpreter,
		"version":     version,
	}).Debug("runtime verified")
	return nil
}

// InstallDependencies resolves and installs the manifest. A resolution
// failure is fatal for the run.
func (s *ToolchainService) InstallDependencies(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.runner(ctx, s.workDir, s.interpreter, "-m", "pip", "install", "-r", s.manifest)
	if err != nil {
		return fmt.Errorf("install dependencies from %s: %s: %w", s.manifest, tail(out, 2000), err)
	}
	log.WithField("manifest", s.manifest).Debug("dependencies installed")
	return nil
}

// parseVersion extracts the numeric version from output such as
// "Python 3.9.18".
func parseVersion(out string) string {
	fields := strings.Fields(out)
	for i := len(fields) - 1; i >= 0; i-- {
		if len(fields[i]) > 0 && fields[i][0] >= '0' && fields[i][0] <= '9' {
			return fields[i]
		}
	}
	return ""
}

// versionMatches reports whether version sits inside the prefix series, so
// prefix 3.9 accepts 3.9 and 3.9.18 but not 3.91.0.
func versionMatches(version, prefix string) bool {
	if version == prefix {
		return true
	}
	return strings.HasPrefix(version, prefix+".")
}

func tail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}
