package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairbench/internal/tools"
)

// fakeExecutor records every request it is handed and returns a canned
// result keyed by tool kind, letting scripted-agent tests drive the five
// fixed steps without a real sandbox or patch engine.
type fakeExecutor struct {
	testCmd  string
	results  map[tools.Kind]tools.Result
	requests []tools.Request
}

func (f *fakeExecutor) ExecuteTool(ctx context.Context, req tools.Request) tools.Result {
	f.requests = append(f.requests, req)
	return f.results[req.Kind]
}

func (f *fakeExecutor) TestCmd() string { return f.testCmd }

func TestScriptedAgentRunSucceedsWhenTestPasses(t *testing.T) {
	ex := &fakeExecutor{
		testCmd: "pytest -q",
		results: map[tools.Kind]tools.Result{
			tools.KindListFiles:  {Success: true, ListFiles: &tools.ListFilesData{Files: []string{"src/toy/mathy.py"}}},
			tools.KindReadFile:   {Success: true, ReadFile: &tools.ReadFileData{Content: "def add(a, b):\n    return a - b\n"}},
			tools.KindSearch:     {Success: true, Search: &tools.SearchData{}},
			tools.KindApplyPatch: {Success: true, ApplyPatch: &tools.ApplyPatchData{ChangedFiles: []string{"src/toy/mathy.py"}, PatchPath: "diffs/step_0004.patch"}},
			tools.KindRun:        {Success: true, Run: &tools.RunData{ExitCode: 0}},
		},
	}
	sa := NewScripted("src/toy/mathy.py")
	res, err := sa.Run(context.Background(), ex)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, StopSuccess, res.StopReason)
	assert.Equal(t, 5, res.StepsTaken)
	assert.Equal(t, []string{"diffs/step_0004.patch"}, res.PatchesApplied)
	require.Len(t, ex.requests, 5)
	assert.Equal(t, tools.KindListFiles, ex.requests[0].Kind)
	assert.Equal(t, tools.KindRun, ex.requests[4].Kind)
}

func TestScriptedAgentRunToleratesRunNonZeroExit(t *testing.T) {
	ex := &fakeExecutor{
		testCmd: "pytest -q",
		results: map[tools.Kind]tools.Result{
			tools.KindListFiles:  {Success: true, ListFiles: &tools.ListFilesData{}},
			tools.KindReadFile:   {Success: true, ReadFile: &tools.ReadFileData{}},
			tools.KindSearch:     {Success: true, Search: &tools.SearchData{}},
			tools.KindApplyPatch: {Success: true, ApplyPatch: &tools.ApplyPatchData{}},
			tools.KindRun: {
				Error: &tools.ToolError{Kind: tools.ErrAbnormalExit, Message: "command exited 1"},
				Run:   &tools.RunData{ExitCode: 1},
			},
		},
	}
	sa := NewScripted("src/toy/mathy.py")
	res, err := sa.Run(context.Background(), ex)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, StopAgentGaveUp, res.StopReason)
	assert.Equal(t, 1, res.FinalTestExitCode)
}

func TestScriptedAgentRunStopsOnUntoleratedToolError(t *testing.T) {
	ex := &fakeExecutor{
		testCmd: "pytest -q",
		results: map[tools.Kind]tools.Result{
			tools.KindListFiles: {Error: &tools.ToolError{Kind: tools.ErrPathEscape, Message: "escape"}},
		},
	}
	sa := NewScripted("src/toy/mathy.py")
	res, err := sa.Run(context.Background(), ex)
	require.NoError(t, err)
	assert.Equal(t, StopToolError, res.StopReason)
	assert.Equal(t, 1, res.StepsTaken)
}
