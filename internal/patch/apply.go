package patch

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"repairbench/internal/obslog"
)

// Engine applies patches to a repository checkout using the external
// `patch` utility for the real and dry-run application steps, matching the
// teacher's reliance on the system `patch`/`diff` tools rather than a
// hand-rolled applier (planner/handlers/diff_patch.go shells out to
// `patch -u`; this engine standardizes on `patch -p1 --batch`).
type Engine struct {
	Strict bool
	Logger *obslog.Logger
}

// NewEngine builds a patch Engine. strict disables all rewriting and
// rejects the envelope dialect, per the strict-patch-mode config option.
func NewEngine(strict bool, logger *obslog.Logger) *Engine {
	if logger == nil {
		logger = obslog.NewNop()
	}
	return &Engine{Strict: strict, Logger: logger}
}

// ApplyResult is what a successful Apply returns.
type ApplyResult struct {
	AppliedDiff  string
	ChangedFiles []string
}

// Apply normalizes and applies diffText against repoRoot, trying the
// pipeline left to right until one stage's result dry-run-applies
// cleanly, then performs the real apply. Every failure collapses to the
// single ErrPatchHunkFail error kind with the external tool's stderr
// captured in Detail.
func (e *Engine) Apply(ctx context.Context, repoRoot, diffText string) (ApplyResult, error) {
	dialect := DetectDialect(diffText)

	if e.Strict {
		if dialect != DialectCanonical {
			return ApplyResult{}, &Error{Kind: ErrPatchHunkFail, Detail: "strict mode accepts only canonical unified diffs"}
		}
		return e.tryDryRunThenApply(ctx, repoRoot, diffText)
	}

	candidate := diffText
	if dialect == DialectEnvelope {
		converted, err := envelopeToUnifiedDiff(diffText)
		if err != nil {
			return ApplyResult{}, &Error{Kind: ErrPatchHunkFail, Detail: err.Error()}
		}
		candidate = converted
	}

	if ok, stderr := e.dryRun(ctx, repoRoot, candidate); ok {
		return e.finish(ctx, repoRoot, candidate)
	} else {
		e.Logger.Debugf("patch: initial dry-run failed: %s", stderr)
	}

	var lastStderr string
	for _, stage := range Pipeline {
		next, changed := stage(candidate, repoRoot)
		if !changed {
			continue
		}
		candidate = next
		ok, stderr := e.dryRun(ctx, repoRoot, candidate)
		if ok {
			return e.finish(ctx, repoRoot, candidate)
		}
		lastStderr = stderr
	}

	if DetectDialect(candidate) == DialectContext {
		newContents, err := contextPatchGreedyApply(candidate, repoRoot)
		if err == nil {
			if writeErr := writeAll(repoRoot, newContents); writeErr == nil {
				changedFiles := make([]string, 0, len(newContents))
				for path := range newContents {
					changedFiles = append(changedFiles, path)
				}
				return ApplyResult{AppliedDiff: candidate, ChangedFiles: changedFiles}, nil
			}
		}
	}

	return ApplyResult{}, &Error{Kind: ErrPatchHunkFail, Detail: lastStderr}
}

func writeAll(repoRoot string, contents map[string]string) error {
	for relPath, data := range contents {
		full := filepath.Join(repoRoot, relPath)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(full, []byte(data), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// tryDryRunThenApply is the strict-mode path: no rewriting, one dry-run
// attempt, then the real apply.
func (e *Engine) tryDryRunThenApply(ctx context.Context, repoRoot, diffText string) (ApplyResult, error) {
	if ok, stderr := e.dryRun(ctx, repoRoot, diffText); !ok {
		return ApplyResult{}, &Error{Kind: ErrPatchHunkFail, Detail: stderr}
	}
	return e.finish(ctx, repoRoot, diffText)
}

// finish performs the real (non-dry-run) apply of diffText, which the
// caller has already proven dry-run-applies cleanly, and extracts the
// changed_files set from the parsed diff.
func (e *Engine) finish(ctx context.Context, repoRoot, diffText string) (ApplyResult, error) {
	if ok, stderr := e.runPatch(ctx, repoRoot, diffText, false); !ok {
		return ApplyResult{}, &Error{Kind: ErrPatchHunkFail, Detail: stderr}
	}
	p, err := ParseUnifiedDiff(diffText)
	if err != nil {
		return ApplyResult{}, &Error{Kind: ErrPatchHunkFail, Detail: err.Error()}
	}
	return ApplyResult{AppliedDiff: diffText, ChangedFiles: p.ChangedFiles()}, nil
}

func (e *Engine) dryRun(ctx context.Context, repoRoot, diffText string) (bool, string) {
	return e.runPatch(ctx, repoRoot, diffText, true)
}

// runPatch invokes the external `patch -p1 --batch` utility, the same
// tool the dry-run and real apply share, so a successful dry-run
// guarantees the real apply will succeed too.
func (e *Engine) runPatch(ctx context.Context, repoRoot, diffText string, dryRun bool) (bool, string) {
	args := []string{"-p1", "--batch", "--forward", "-d", repoRoot}
	if dryRun {
		args = append(args, "--dry-run")
	}
	cmd := exec.CommandContext(ctx, "patch", args...)
	cmd.Stdin = bytes.NewBufferString(diffText)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		return false, output.String()
	}
	return true, ""
}
