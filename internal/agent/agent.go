// Package agent implements the decide(state) -> action contract two
// variants satisfy: a deterministic scripted self-test and an LLM-driven
// variant that maps model output onto tool requests.
package agent

import (
	"context"
	"time"

	"repairbench/internal/runid"
	"repairbench/internal/tools"
)

// ActionKind discriminates the two shapes an Action can take.
type ActionKind string

const (
	ActionCallTool ActionKind = "call_tool"
	ActionStop     ActionKind = "stop"
)

// StopReason is the closed set the loop maps to a user-facing failure
// reason.
type StopReason string

const (
	StopSuccess         StopReason = "SUCCESS"
	StopMaxSteps        StopReason = "MAX_STEPS"
	StopMaxTime         StopReason = "MAX_TIME"
	StopAgentGaveUp     StopReason = "AGENT_GAVE_UP"
	StopRepeatedFailure StopReason = "REPEATED_FAILURE"
	StopToolError       StopReason = "TOOL_ERROR"
	StopLLMError        StopReason = "LLM_ERROR"
	StopInterrupted     StopReason = "INTERRUPTED"
)

// Action is what decide() returns: either a tool request to execute, or
// an instruction to stop the loop.
type Action struct {
	Kind       ActionKind
	Request    *tools.Request
	StopReason StopReason
	Reasoning  string
}

// HistoryEntry pairs one executed request with its result.
type HistoryEntry struct {
	Request tools.Request
	Result  tools.Result
}

// State is the full state the loop threads through decide/execute/update.
// Apart from NextRequestID, which advances a per-step request counter,
// an Agent does not mutate it; the loop owns every other update.
type State struct {
	RunID  string
	TaskID string

	Step             int
	StepsRemaining   int
	SecondsRemaining int

	TestCommand         string
	LastTestExitCode    int
	LastTestOutputTail  string
	LastTestHasRun      bool

	History        []HistoryEntry
	AppliedPatches []string

	localCounter int
}

// NextRequestID synthesizes a request identifier of the form
// {run_id}-{step:04d}-{local_counter:02d} for callers that did not supply
// one of their own.
func (s *State) NextRequestID() string {
	s.localCounter++
	return runid.ToolRequest(s.RunID, s.Step, s.localCounter)
}

// ReadPaths returns the set of file paths already seen in a READ_FILE
// request in history, used by the LLM variant's fallback heuristics.
func (s *State) ReadPaths() map[string]bool {
	seen := make(map[string]bool)
	for _, h := range s.History {
		if h.Request.Kind == tools.KindReadFile && h.Request.ReadFile != nil {
			seen[h.Request.ReadFile.Path] = true
		}
	}
	return seen
}

// LastListedFiles returns the most recent LIST_FILES result's file list,
// or nil if none has happened yet.
func (s *State) LastListedFiles() []string {
	for i := len(s.History) - 1; i >= 0; i-- {
		h := s.History[i]
		if h.Request.Kind == tools.KindListFiles && h.Result.ListFiles != nil {
			return h.Result.ListFiles.Files
		}
	}
	return nil
}

// Agent is anything exposing a variant name, a pure decide(state) ->
// action, and an observation formatter used to build LLM prompts or
// human-readable trace summaries. The scripted self-test does not
// implement this interface — it bypasses decide entirely (see
// ScriptedAgent).
type Agent interface {
	VariantName() string
	Decide(ctx context.Context, state *State) (Action, error)
	FormatObservation(state *State) string
}

// Result is the terminal value either a decide-driven loop or the
// scripted self-test produces.
type Result struct {
	Success           bool
	StopReason        StopReason
	StepsTaken        int
	PatchesApplied    []string
	Duration          time.Duration
	FinalTestExitCode int
	Passed            bool
	Reasoning         string
}

// Executor is the narrow surface ScriptedAgent needs from the loop: run
// one tool call and report the configured test command. *loop.Loop
// satisfies this without the agent package importing loop, avoiding the
// import cycle a direct *Loop parameter would create.
type Executor interface {
	ExecuteTool(ctx context.Context, req tools.Request) tools.Result
	TestCmd() string
}

func callTool(state *State, req tools.Request) Action {
	req.RequestID = state.NextRequestID()
	return Action{Kind: ActionCallTool, Request: &req}
}
