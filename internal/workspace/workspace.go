package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Workspace manages the runner-owned paths inside the repository working
// copy: the data and logs directories the categorizer expects, and the
// published artifact.
type Workspace struct {
	root    string // repository working copy
	dataDir string // relative to root
	logsDir string // relative to root
}

func New(root, dataDir, logsDir string) *Workspace {
	return &Workspace{root: root, dataDir: dataDir, logsDir: logsDir}
}

// EnsureDirs creates the data and logs directories if absent. Repeat calls
// are no-ops, so every run may call it unconditionally.
func (w *Workspace) EnsureDirs() error {
	for _, rel := range []string{w.dataDir, w.logsDir} {
		if err := os.MkdirAll(filepath.Join(w.root, rel), 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", rel, err)
		}
	}
	return nil
}

// Root returns the working copy path.
func (w *Workspace) Root() string {
	return w.root
}

// Abs resolves a path relative to the working copy.
func (w *Workspace) Abs(rel string) string {
	return filepath.Join(w.root, rel)
}

// InspectArtifact checks the artifact at rel for presence and JSON
// well-formedness. The finding is advisory: a non-empty warning flags a
// suspicious artifact but never fails the run, and an empty warning means
// the artifact looks sound.
func (w *Workspace) InspectArtifact(rel string) string {
	data, err := os.ReadFile(w.Abs(rel))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("artifact %s not present after categorizer run", rel)
		}
		return fmt.Sprintf("artifact %s unreadable: %v", rel, err)
	}
	if !json.Valid(data) {
		return fmt.Sprintf("artifact %s is not well-formed JSON", rel)
	}
	return ""
}
