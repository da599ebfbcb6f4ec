// Package baseline proves a task is well-formed before the agent ever
// runs: clone, checkout, setup, and an initial failing test, with a
// repeat to catch flakiness and signature matching against any
// validation hints the task spec carries.
package baseline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"repairbench/internal/eventlog"
	"repairbench/internal/gitutil"
	"repairbench/internal/pathsafe"
	"repairbench/internal/sandbox"
	"repairbench/internal/task"
)

// Outcome is the closed set of baseline results.
type Outcome string

const (
	OutcomeOK                  Outcome = "ok"
	OutcomeGitCloneFailed      Outcome = "GIT_CLONE_FAILED"
	OutcomeGitCheckoutFailed   Outcome = "GIT_CHECKOUT_FAILED"
	OutcomeSetupFailed         Outcome = "SETUP_FAILED"
	OutcomeSetupTimeout        Outcome = "SETUP_TIMEOUT"
	OutcomeSetupDirtyWorktree  Outcome = "SETUP_DIRTY_WORKTREE"
	OutcomeBaselineNotFailing  Outcome = "BASELINE_NOT_FAILING"
	OutcomeBaselineMismatch    Outcome = "BASELINE_MISMATCH"
	OutcomeBaselineFlaky       Outcome = "BASELINE_FLAKY"
)

// Result is what the validator returns: a verdict plus the data the
// agent loop and attempt recorder need downstream.
type Result struct {
	Outcome          Outcome
	FailureSignature string
	InitialExitCode  int
	CombinedOutput   string
	Diagnostic       string
}

// Validator runs the six-step check against one checked-out repository.
type Validator struct {
	Sandbox      sandbox.Sandbox
	WorkspaceRoot string
	ArtifactsDir string
	Events       *eventlog.Log
	RunID        string

	MinRerunSecondsRemaining int // default 5
}

var failedTestIDRe = regexp.MustCompile(`(?m)^(?:FAILED|ERROR)\s+(\S+)`)

// Validate runs the full baseline sequence for spec, starting by cloning
// spec.Repo.URL into destDir and checking out spec.Repo.Commit there.
func (v *Validator) Validate(ctx context.Context, spec *task.Spec, destDir string, totalTimeoutSec int) Result {
	start := time.Now()

	cloneRes, err := gitutil.Clone(ctx, spec.Repo.URL, destDir)
	if err != nil || cloneRes.ExitCode != 0 {
		return Result{Outcome: OutcomeGitCloneFailed, Diagnostic: cloneRes.Stderr}
	}

	checkoutRes, err := gitutil.Checkout(ctx, destDir, spec.Repo.Commit)
	if err != nil || checkoutRes.ExitCode != 0 {
		return Result{Outcome: OutcomeGitCheckoutFailed, Diagnostic: checkoutRes.Stderr}
	}

	for _, patchPath := range spec.Setup.Patch {
		resolved, err := pathsafe.Resolve(v.WorkspaceRoot, patchPath, false)
		if err != nil {
			return Result{Outcome: OutcomeSetupFailed, Diagnostic: err.Error()}
		}
		applyRes, err := gitutil.Apply(ctx, destDir, resolved)
		if err != nil {
			return Result{Outcome: OutcomeSetupFailed, Diagnostic: err.Error()}
		}
		if applyRes.ExitCode != 0 {
			return Result{Outcome: OutcomeSetupFailed, Diagnostic: applyRes.Stderr}
		}
	}

	if len(spec.Setup.Commands) > 0 {
		setupCmd := "cd repo && " + strings.Join(spec.Setup.Commands, " && ")
		setupStdout := filepath.Join(v.ArtifactsDir, "logs", "baseline_setup_stdout.txt")
		setupStderr := filepath.Join(v.ArtifactsDir, "logs", "baseline_setup_stderr.txt")
		setupRes, err := v.Sandbox.Run(ctx, v.WorkspaceRoot, sandbox.RunRequest{
			Command: setupCmd, Network: sandbox.NetworkBridge, TimeoutSec: spec.Environment.TimeoutSec,
			StdoutPath: setupStdout, StderrPath: setupStderr,
		})
		if err != nil {
			return Result{Outcome: OutcomeSetupFailed, Diagnostic: err.Error()}
		}
		if setupRes.ExitCode == 124 {
			return Result{Outcome: OutcomeSetupTimeout}
		}
		if setupRes.ExitCode != 0 {
			return Result{Outcome: OutcomeSetupFailed, Diagnostic: readFile(setupStderr)}
		}
	}

	status, err := gitutil.Status(ctx, destDir)
	if err == nil && gitutil.IsDirty(status) {
		return Result{Outcome: OutcomeSetupDirtyWorktree, Diagnostic: status.Stdout}
	}
	_, _ = gitutil.DiffStat(ctx, destDir)
	_, _ = gitutil.Diff(ctx, destDir)

	testCmd := "cd repo && " + spec.RunCmd.Command
	exitCode, combined, err := v.runTest(ctx, testCmd, spec.Environment.TimeoutSec, "baseline_test")
	if err != nil {
		return Result{Outcome: OutcomeSetupFailed, Diagnostic: err.Error()}
	}
	if exitCode == 0 {
		return Result{Outcome: OutcomeBaselineNotFailing, CombinedOutput: combined}
	}

	if mismatch := v.checkValidationHints(spec, exitCode, combined); mismatch != "" {
		return Result{Outcome: OutcomeBaselineMismatch, Diagnostic: mismatch, InitialExitCode: exitCode, CombinedOutput: combined}
	}

	signature := failureSignature(combined)

	elapsed := time.Since(start)
	remaining := totalTimeoutSec - int(elapsed.Seconds())
	minRerun := v.MinRerunSecondsRemaining
	if minRerun <= 0 {
		minRerun = 5
	}
	if remaining >= minRerun {
		rerunExit, rerunCombined, err := v.runTest(ctx, testCmd, spec.Environment.TimeoutSec, "baseline_rerun")
		if err == nil {
			rerunSignature := failureSignature(rerunCombined)
			if rerunExit != exitCode || rerunSignature != signature {
				return Result{Outcome: OutcomeBaselineFlaky, InitialExitCode: exitCode, CombinedOutput: combined, FailureSignature: signature}
			}
		}
	}

	return Result{Outcome: OutcomeOK, InitialExitCode: exitCode, CombinedOutput: combined, FailureSignature: signature}
}

func (v *Validator) runTest(ctx context.Context, command string, timeoutSec int, label string) (int, string, error) {
	stdoutPath := filepath.Join(v.ArtifactsDir, "logs", label+"_stdout.txt")
	stderrPath := filepath.Join(v.ArtifactsDir, "logs", label+"_stderr.txt")
	result, err := v.Sandbox.Run(ctx, v.WorkspaceRoot, sandbox.RunRequest{
		Command: command, Network: sandbox.NetworkNone, TimeoutSec: timeoutSec,
		StdoutPath: stdoutPath, StderrPath: stderrPath,
	})
	if err != nil {
		return 0, "", err
	}
	combined := readFile(stdoutPath) + readFile(stderrPath)
	return result.ExitCode, combined, nil
}

func (v *Validator) checkValidationHints(spec *task.Spec, exitCode int, combined string) string {
	val := spec.Validation
	if val == nil {
		return ""
	}
	if len(val.ExpectedExitCodes) > 0 && !containsInt(val.ExpectedExitCodes, exitCode) {
		return fmt.Sprintf("exit code %d not in expected_exit_codes %v", exitCode, val.ExpectedExitCodes)
	}
	if val.ExpectedFailureRegex != "" {
		if ok, _ := regexp.MatchString(val.ExpectedFailureRegex, combined); !ok {
			return "expected_failure_regex did not match combined output"
		}
	}
	if val.ExpectedStdoutRegex != "" {
		if ok, _ := regexp.MatchString(val.ExpectedStdoutRegex, combined); !ok {
			return "expected_stdout_regex did not match"
		}
	}
	if val.ExpectedStderrRegex != "" {
		if ok, _ := regexp.MatchString(val.ExpectedStderrRegex, combined); !ok {
			return "expected_stderr_regex did not match"
		}
	}
	if val.DisallowedFailureRegex != "" {
		if ok, _ := regexp.MatchString(val.DisallowedFailureRegex, combined); ok {
			return "disallowed_failure_regex matched combined output"
		}
	}
	for _, id := range val.ExpectedFailingTests {
		if !strings.Contains(combined, id) {
			return fmt.Sprintf("expected failing test %q not found in output", id)
		}
	}
	return ""
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

// failureSignature extracts FAILED/ERROR node identifiers when present,
// falling back to a SHA-256 of the full combined output.
func failureSignature(combined string) string {
	matches := failedTestIDRe.FindAllStringSubmatch(combined, -1)
	if len(matches) > 0 {
		ids := make([]string, 0, len(matches))
		for _, m := range matches {
			ids = append(ids, m[1])
		}
		return strings.Join(ids, ",")
	}
	sum := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(sum[:])
}

func readFile(path string) string {
	b, _ := os.ReadFile(path)
	return string(b)
}
