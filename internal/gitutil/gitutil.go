// Package gitutil implements the git helper component: clone a repo,
// check out a pinned commit, and capture the post-setup diff. It
// generalizes the teacher's planner/utils/git.go (which drives `git` via
// os/exec against a docs directory for a sync workflow) into the
// clone+checkout+diff-capture operations the baseline validator needs.
// Every operation runs the host's git binary via os/exec; none of them
// runs inside the sandbox.
package gitutil

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandResult mirrors the captured stdout/stderr/exit code the baseline
// validator records for every git invocation.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

func run(ctx context.Context, dir string, args ...string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if exitErr, ok := err.(*exec.ExitError); ok {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("gitutil: running git %v: %w", args, err)
	}
	return res, nil
}

// Clone clones url into destDir.
func Clone(ctx context.Context, url, destDir string) (CommandResult, error) {
	return run(ctx, "", "clone", url, destDir)
}

// Checkout checks out commit inside repoDir.
func Checkout(ctx context.Context, repoDir, commit string) (CommandResult, error) {
	return run(ctx, repoDir, "checkout", commit)
}

// Status runs `git status --porcelain` inside repoDir.
func Status(ctx context.Context, repoDir string) (CommandResult, error) {
	return run(ctx, repoDir, "status", "--porcelain")
}

// DiffStat runs `git diff --stat` inside repoDir.
func DiffStat(ctx context.Context, repoDir string) (CommandResult, error) {
	return run(ctx, repoDir, "diff", "--stat")
}

// Diff runs `git diff` inside repoDir, capturing the full post-setup diff.
func Diff(ctx context.Context, repoDir string) (CommandResult, error) {
	return run(ctx, repoDir, "diff")
}

// Apply runs `git apply <patchFile>` inside repoDir, used by the
// supplemented setup.patch feature to seed a scenario's starting diff
// before setup commands run.
func Apply(ctx context.Context, repoDir, patchFile string) (CommandResult, error) {
	return run(ctx, repoDir, "apply", patchFile)
}

// IsDirty reports whether `git status --porcelain` produced any tracked
// changes, used to detect setup_dirty_worktree.
func IsDirty(status CommandResult) bool {
	for _, line := range strings.Split(status.Stdout, "\n") {
		if strings.TrimSpace(line) != "" && !strings.HasPrefix(line, "??") {
			return true
		}
	}
	return false
}
