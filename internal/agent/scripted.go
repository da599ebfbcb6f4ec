package agent

import (
	"context"
	"fmt"
	"time"

	"repairbench/internal/tools"
)

// ScriptedAgent is the deterministic five-step self-test: list files,
// read a hard-coded path, search for a known symbol, apply a hard-coded
// patch, run the test command. Per the spec's own framing it does not
// use decide — it drives tool calls directly against an Executor and so
// does not implement the Agent interface.
type ScriptedAgent struct {
	FixturePath string
	SearchTerm  string
	PatchDiff   string
}

// NewScripted builds the scripted agent against fixturePath, with a
// hard-coded unified diff fixing the toy off-by-sign bug the fixture
// ships with.
func NewScripted(fixturePath string) *ScriptedAgent {
	diff := fmt.Sprintf(`--- a/%s
+++ b/%s
@@ -1,2 +1,2 @@
 def add(a, b):
-    return a - b
+    return a + b
`, fixturePath, fixturePath)

	return &ScriptedAgent{
		FixturePath: fixturePath,
		SearchTerm:  "def add",
		PatchDiff:   diff,
	}
}

func (s *ScriptedAgent) VariantName() string { return "scripted" }

// Run executes the five fixed steps in order against ex, stopping early
// on the RUN step once a test exit code is observed.
func (s *ScriptedAgent) Run(ctx context.Context, ex Executor) (Result, error) {
	start := time.Now()

	steps := []tools.Request{
		{Kind: tools.KindListFiles, ListFiles: &tools.ListFilesParams{Root: ".", Glob: "**/*"}},
		{Kind: tools.KindReadFile, ReadFile: &tools.ReadFileParams{Path: s.FixturePath}},
		{Kind: tools.KindSearch, Search: &tools.SearchParams{Query: s.SearchTerm}},
		{Kind: tools.KindApplyPatch, ApplyPatch: &tools.ApplyPatchParams{UnifiedDiff: s.PatchDiff}},
		{Kind: tools.KindRun, Run: &tools.RunParams{Command: ex.TestCmd()}},
	}

	var patches []string
	for i := range steps {
		req := steps[i]
		req.RequestID = fmt.Sprintf("scripted-%04d", i+1)

		res := ex.ExecuteTool(ctx, req)
		tolerated := req.Kind == tools.KindRun && res.Error != nil && res.Error.Kind == tools.ErrAbnormalExit
		if res.Error != nil && !tolerated {
			return Result{
				StopReason: StopToolError, StepsTaken: i + 1, PatchesApplied: patches,
				Duration: time.Since(start), Reasoning: res.Error.Message,
			}, nil
		}

		if req.Kind == tools.KindApplyPatch && res.Success && res.ApplyPatch != nil {
			patches = append(patches, res.ApplyPatch.PatchPath)
		}

		if req.Kind == tools.KindRun && res.Run != nil {
			passed := res.Run.ExitCode == 0
			reason := StopSuccess
			if !passed {
				reason = StopAgentGaveUp
			}
			return Result{
				Success: passed, StopReason: reason, StepsTaken: i + 1, PatchesApplied: patches,
				Duration: time.Since(start), FinalTestExitCode: res.Run.ExitCode, Passed: passed,
			}, nil
		}
	}

	return Result{StopReason: StopAgentGaveUp, StepsTaken: len(steps), PatchesApplied: patches, Duration: time.Since(start)}, nil
}
