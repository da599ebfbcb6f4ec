// Package workspace models the host directory that backs one task
// attempt: a root that, after clone+checkout, contains a repo/ subtree
// the agent's tools read and mutate.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace is the per-attempt directory layout described in §6's
// artifact layout: a repo/ checkout plus sibling events/logs/diffs
// directories under a parallel artifacts root.
type Workspace struct {
	Root         string // <out>/workspace/<task_id>
	ArtifactsDir string // <out>/agent_runs/<task_id>
}

// New builds a Workspace rooted at outDir for the given task id.
func New(outDir, taskID string) *Workspace {
	return &Workspace{
		Root:         filepath.Join(outDir, "workspace", taskID),
		ArtifactsDir: filepath.Join(outDir, "agent_runs", taskID),
	}
}

// RepoRoot is the repo/ subtree inside the workspace root.
func (w *Workspace) RepoRoot() string { return filepath.Join(w.Root, "repo") }

// HasRepoSubdir reports whether the repo/ subtree already exists, used
// by the loop to decide whether to prefix commands with "cd repo &&".
func (w *Workspace) HasRepoSubdir() bool {
	info, err := os.Stat(w.RepoRoot())
	return err == nil && info.IsDir()
}

// EnsureDirs creates the workspace root and the artifact subdirectories
// (logs, diffs) a fresh attempt needs before anything runs.
func (w *Workspace) EnsureDirs() error {
	for _, dir := range []string{w.Root, filepath.Join(w.ArtifactsDir, "logs"), filepath.Join(w.ArtifactsDir, "diffs")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("workspace: creating %s: %w", dir, err)
		}
	}
	return nil
}

// EventsPath is the per-run events.jsonl path.
func (w *Workspace) EventsPath() string { return filepath.Join(w.ArtifactsDir, "events.jsonl") }

// LLMMessagesPath is the opt-in per-run llm_messages.jsonl path.
func (w *Workspace) LLMMessagesPath() string {
	return filepath.Join(w.ArtifactsDir, "llm_messages.jsonl")
}

// AttemptsPath is the per-suite attempts.jsonl path (parallel to the
// per-task artifacts, per §6).
func (w *Workspace) AttemptsPath(outDir string) string {
	return filepath.Join(outDir, "attempts.jsonl")
}
