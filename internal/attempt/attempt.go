// Package attempt assembles the terminal record one task attempt — the
// baseline check or a full agent run — produces, and maps an agent loop's
// stop reason onto the user-facing failure taxonomy.
package attempt

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"repairbench/internal/agent"
)

// CurrentSchemaVersion is stamped on every attempt record; readers must
// tolerate unknown minor versions.
const CurrentSchemaVersion = "1.0"

// FailureReason is the closed, user-facing classification of why an
// attempt did not succeed.
type FailureReason string

const (
	FailureNone            FailureReason = ""
	FailureTimeout         FailureReason = "TIMEOUT"
	FailureAgentGaveUp     FailureReason = "AGENT_GAVE_UP"
	FailureToolError       FailureReason = "TOOL_ERROR"
	FailureLLMError        FailureReason = "LLM_ERROR"
	FailureInterrupted     FailureReason = "INTERRUPTED"
	FailureTestsFailed     FailureReason = "TESTS_FAILED"
	FailureCollectionError FailureReason = "COLLECTION_ERROR"
	FailureInternalError   FailureReason = "INTERNAL_ERROR"

	// Baseline-layer kinds, distinct from the agent-loop taxonomy above.
	FailureGitCloneFailed     FailureReason = "GIT_CLONE_FAILED"
	FailureGitCheckoutFailed  FailureReason = "GIT_CHECKOUT_FAILED"
	FailureSetupFailed        FailureReason = "SETUP_FAILED"
	FailureSetupTimeout       FailureReason = "SETUP_TIMEOUT"
	FailureSetupDirtyWorktree FailureReason = "SETUP_DIRTY_WORKTREE"
	FailureBaselineNotFailing FailureReason = "BASELINE_NOT_FAILING"
	FailureBaselineMismatch   FailureReason = "BASELINE_MISMATCH"
	FailureBaselineFlaky      FailureReason = "BASELINE_FLAKY"
)

// FromStopReason maps a stop reason to its failure classification, per
// the fixed table: SUCCESS has no failure; MAX_STEPS, AGENT_GAVE_UP, and
// REPEATED_FAILURE all collapse to AGENT_GAVE_UP.
func FromStopReason(stop agent.StopReason) FailureReason {
	switch stop {
	case agent.StopSuccess:
		return FailureNone
	case agent.StopMaxTime:
		return FailureTimeout
	case agent.StopMaxSteps, agent.StopAgentGaveUp, agent.StopRepeatedFailure:
		return FailureAgentGaveUp
	case agent.StopToolError:
		return FailureToolError
	case agent.StopLLMError:
		return FailureLLMError
	case agent.StopInterrupted:
		return FailureInterrupted
	default:
		return FailureInternalError
	}
}

// FromTestExitCode derives a failure reason from the test runner's own
// exit code, used when no stop reason yielded a classification but the
// final test still failed.
func FromTestExitCode(exitCode int) FailureReason {
	switch exitCode {
	case 1:
		return FailureTestsFailed
	case 2:
		return FailureCollectionError
	default:
		return FailureInternalError
	}
}

// Record is one JSON object the attempt recorder emits, one per line of
// attempts.jsonl.
type Record struct {
	SchemaVersion string `json:"schema_version"`
	RunID         string `json:"run_id"`
	TaskID        string `json:"task_id"`
	Variant       string `json:"variant"`
	Model         string `json:"model,omitempty"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	DurationMS int64    `json:"duration_ms"`

	Success      bool               `json:"success"`
	StopReason   agent.StopReason   `json:"stop_reason"`
	FailureReason FailureReason     `json:"failure_reason,omitempty"`
	StepsTaken   int                `json:"steps_taken"`
	PatchesApplied []string         `json:"patches_applied"`

	FinalTestExitCode int  `json:"final_test_exit_code"`
	Passed            bool `json:"passed"`

	ConfiguredMaxSteps   int `json:"configured_max_steps"`
	ConfiguredMaxTimeSec int `json:"configured_max_time_sec"`

	BaselineOutcome string `json:"baseline_outcome,omitempty"`

	// Classification mirrors the task spec's optional classification.type,
	// read-only here for downstream aggregation.
	Classification string `json:"classification,omitempty"`
}

// Writer appends Records as JSONL to one attempts.jsonl file.
type Writer struct {
	mu   sync.Mutex
	file *os.File
}

// OpenWriter opens (creating/appending to) the attempts.jsonl at path.
func OpenWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("attempt: opening %s: %w", path, err)
	}
	return &Writer{file: f}, nil
}

// Write appends one record and fsyncs.
func (w *Writer) Write(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if rec.SchemaVersion == "" {
		rec.SchemaVersion = CurrentSchemaVersion
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("attempt: marshaling record: %w", err)
	}
	line = append(line, '\n')
	if _, err := w.file.Write(line); err != nil {
		return fmt.Errorf("attempt: writing record: %w", err)
	}
	return w.file.Sync()
}

// Close releases the underlying file handle.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
