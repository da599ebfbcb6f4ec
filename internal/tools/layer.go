package tools

import (
	"context"
	"time"

	"repairbench/internal/obslog"
	"repairbench/internal/patch"
	"repairbench/internal/sandbox"
)

// Timeouts bounds each tool's own per-call wall clock, independent of the
// agent loop's overall budget.
type Timeouts struct {
	ListSec   int
	ReadSec   int
	SearchSec int
	RunSec    int
}

// DefaultTimeouts matches the spec's documented per-tool defaults.
func DefaultTimeouts() Timeouts {
	return Timeouts{ListSec: 10, ReadSec: 10, SearchSec: 30, RunSec: 60}
}

// Layer implements the five tools over a sandboxed workspace. RepoRoot is
// the repo/ subtree inside the workspace that LIST_FILES/READ_FILE/SEARCH
// resolve paths against; RUN and APPLY_PATCH also operate against it.
type Layer struct {
	WorkspaceRoot string
	RepoRoot      string
	ArtifactsDir  string
	Sandbox       sandbox.Sandbox
	PatchEngine   *patch.Engine
	Timeouts      Timeouts
	TestCommand   string
	Logger        *obslog.Logger

	stepCounter int
}

// NewLayer builds a Layer. logger may be nil.
func NewLayer(workspaceRoot, repoRoot, artifactsDir string, sb sandbox.Sandbox, pe *patch.Engine, timeouts Timeouts, testCommand string, logger *obslog.Logger) *Layer {
	if logger == nil {
		logger = obslog.NewNop()
	}
	return &Layer{
		WorkspaceRoot: workspaceRoot,
		RepoRoot:      repoRoot,
		ArtifactsDir:  artifactsDir,
		Sandbox:       sb,
		PatchEngine:   pe,
		Timeouts:      timeouts,
		TestCommand:   testCommand,
		Logger:        logger,
	}
}

// NextStep returns the next monotonically increasing step counter value,
// used to name artifact files (step_NNNN.patch, tool_step_NNNN_stdout.txt).
func (l *Layer) NextStep() int {
	l.stepCounter++
	return l.stepCounter
}

// Execute dispatches req to the matching tool implementation.
func (l *Layer) Execute(ctx context.Context, req Request, step int) Result {
	started := time.Now().UTC()
	res := Result{RequestID: req.RequestID, Kind: req.Kind, Started: started}

	switch req.Kind {
	case KindListFiles:
		l.execListFiles(ctx, req, &res)
	case KindReadFile:
		l.execReadFile(ctx, req, &res)
	case KindSearch:
		l.execSearch(ctx, req, &res)
	case KindApplyPatch:
		l.execApplyPatch(ctx, req, &res, step)
	case KindRun:
		l.execRun(ctx, req, &res, step)
	default:
		res.Error = &ToolError{Kind: ErrInternal, Message: "unknown tool kind: " + string(req.Kind)}
	}

	res.Ended = time.Now().UTC()
	res.Duration = res.Ended.Sub(res.Started)
	res.Success = res.Error == nil
	return res
}
