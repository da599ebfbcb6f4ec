// Package loop implements the agent loop: the scheduler/state machine
// that runs an initial test, then iterates decide -> execute -> update
// under step/time/repetition budgets until a stop condition fires.
package loop

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"repairbench/internal/agent"
	"repairbench/internal/eventlog"
	"repairbench/internal/obslog"
	"repairbench/internal/sandbox"
	"repairbench/internal/tools"
	"repairbench/internal/truncate"
)

// Config bounds one loop run; these mirror the core's governance options.
type Config struct {
	MaxSteps                 int
	MaxTimeSec                int
	RepeatedFailureThreshold int // default 3
}

// DefaultConfig matches the documented defaults.
func DefaultConfig() Config {
	return Config{MaxSteps: 20, MaxTimeSec: 600, RepeatedFailureThreshold: 3}
}

// Loop wires one task attempt's agent, tool layer, and event log
// together and drives the decide/execute/update cycle.
type Loop struct {
	RunID  string
	TaskID string

	Layer   *tools.Layer
	Agent   agent.Agent
	Events  *eventlog.Log
	Logger  *obslog.Logger

	SetupCommands    []string
	TestCommand      string
	RepoSubdirExists bool

	Config Config

	// Interrupt, when non-nil and closed, causes the loop to stop with
	// StopInterrupted at its next between-step check.
	Interrupt <-chan struct{}
}

// ExecuteTool runs one tool call through the loop's tool layer, logging
// started/finished events the same way the decide-driven loop does. It
// satisfies agent.Executor, the seam ScriptedAgent uses to drive tools
// directly without ever calling decide.
func (l *Loop) ExecuteTool(ctx context.Context, req tools.Request) tools.Result {
	l.logEvent(eventlog.KindToolCallStarted, map[string]any{"request_id": req.RequestID, "kind": string(req.Kind)})
	step := l.Layer.NextStep()
	result := l.Layer.Execute(ctx, req, step)
	l.logEvent(eventlog.KindToolCallFinished, map[string]any{"request_id": req.RequestID, "success": result.Success})
	if req.Kind == tools.KindApplyPatch && result.Success && result.ApplyPatch != nil {
		l.logEvent(eventlog.KindPatchApplied, map[string]any{"changed_files": result.ApplyPatch.ChangedFiles, "patch_path": result.ApplyPatch.PatchPath})
	}
	return result
}

// TestCmd reports the task's configured test command.
func (l *Loop) TestCmd() string { return l.TestCommand }

// RunScripted drives the scripted self-test directly, bypassing the
// decide-based iteration entirely.
func (l *Loop) RunScripted(ctx context.Context, scripted *agent.ScriptedAgent) (agent.Result, error) {
	res, err := scripted.Run(ctx, l)
	l.logEvent(eventlog.KindAgentFinished, map[string]any{
		"success": res.Success, "stop_reason": string(res.StopReason), "steps": res.StepsTaken, "final_exit_code": res.FinalTestExitCode,
	})
	return res, err
}

// Run drives the loop to completion.
func (l *Loop) Run(ctx context.Context) (agent.Result, error) {
	start := time.Now()
	cfg := l.Config
	if cfg.RepeatedFailureThreshold <= 0 {
		cfg.RepeatedFailureThreshold = 3
	}

	exitCode, outputTail, err := l.runInitialTest(ctx)
	if err != nil {
		return agent.Result{}, fmt.Errorf("loop: initial test: %w", err)
	}
	if exitCode == 0 {
		return agent.Result{Success: true, StopReason: agent.StopSuccess, Duration: time.Since(start), FinalTestExitCode: 0, Passed: true}, nil
	}

	state := &agent.State{
		RunID:              l.RunID,
		TaskID:             l.TaskID,
		TestCommand:        l.TestCommand,
		LastTestExitCode:   exitCode,
		LastTestOutputTail: outputTail,
		LastTestHasRun:     true,
		StepsRemaining:     cfg.MaxSteps,
		SecondsRemaining:   cfg.MaxTimeSec,
	}

	var recentRunOutputs []string

	for {
		// Phase 1: terminate?
		if state.LastTestExitCode == 0 {
			return l.finish(state, start, true, agent.StopSuccess, ""), nil
		}
		if state.StepsRemaining <= 0 {
			return l.finish(state, start, false, agent.StopMaxSteps, ""), nil
		}
		if state.SecondsRemaining <= 0 {
			return l.finish(state, start, false, agent.StopMaxTime, ""), nil
		}
		if repeatedFailure(recentRunOutputs, cfg.RepeatedFailureThreshold) {
			return l.finish(state, start, false, agent.StopRepeatedFailure, ""), nil
		}
		select {
		case <-l.interruptChan():
			return l.finish(state, start, false, agent.StopInterrupted, ""), nil
		default:
		}

		state.Step++
		l.logEvent(eventlog.KindAgentTurnStarted, map[string]any{"turn": state.Step})

		// Phase 2: decide.
		action, decideErr := l.safeDecide(ctx, state)
		if decideErr != nil {
			return l.finish(state, start, false, agent.StopLLMError, decideErr.Error()), nil
		}
		if action.Kind == agent.ActionStop {
			reason := action.StopReason
			if reason == "" {
				reason = agent.StopAgentGaveUp
			}
			return l.finish(state, start, false, reason, action.Reasoning), nil
		}
		if action.Request == nil {
			return l.finish(state, start, false, agent.StopToolError, "decide returned a null tool request"), nil
		}

		// Phase 3: execute.
		req := *action.Request
		l.logEvent(eventlog.KindToolCallStarted, map[string]any{"turn": state.Step, "request_id": req.RequestID, "kind": string(req.Kind)})
		step := l.Layer.NextStep()
		result := l.Layer.Execute(ctx, req, step)
		isTestCmd := req.Kind == tools.KindRun && req.Run != nil && tools.IsTestCommand(req.Run.Command, l.TestCommand)
		l.logEvent(eventlog.KindToolCallFinished, map[string]any{"turn": state.Step, "request_id": req.RequestID, "success": result.Success})

		// Phase 4: classify.
		if result.Error != nil {
			tolerated := req.Kind == tools.KindRun && result.Error.Kind == tools.ErrAbnormalExit
			if !tolerated {
				return l.finish(state, start, false, agent.StopToolError, result.Error.Message), nil
			}
		}

		// Phase 5: update.
		state.History = append(state.History, agent.HistoryEntry{Request: req, Result: result})
		state.StepsRemaining--
		if state.StepsRemaining < 0 {
			state.StepsRemaining = 0
		}
		elapsed := time.Since(start)
		state.SecondsRemaining = cfg.MaxTimeSec - int(elapsed.Seconds())
		if state.SecondsRemaining < 0 {
			state.SecondsRemaining = 0
		}
		if req.Kind == tools.KindApplyPatch && result.Success && result.ApplyPatch != nil {
			state.AppliedPatches = append(state.AppliedPatches, result.ApplyPatch.PatchPath)
			l.logEvent(eventlog.KindPatchApplied, map[string]any{"turn": state.Step, "changed_files": result.ApplyPatch.ChangedFiles, "patch_path": result.ApplyPatch.PatchPath})
		}
		if req.Kind == tools.KindRun && result.Run != nil {
			state.LastTestExitCode = result.Run.ExitCode
			state.LastTestOutputTail = result.Run.CombinedOutput
			state.LastTestHasRun = true
			recentRunOutputs = append(recentRunOutputs, result.Run.CombinedOutput)
		}
		l.logEvent(eventlog.KindAgentTurnFinished, map[string]any{"turn": state.Step})

		// Phase 6: early success.
		if req.Kind == tools.KindRun && isTestCmd && result.Run != nil && result.Run.ExitCode == 0 {
			return l.finish(state, start, true, agent.StopSuccess, ""), nil
		}
	}
}

func (l *Loop) interruptChan() <-chan struct{} {
	if l.Interrupt == nil {
		return make(chan struct{}) // never closes
	}
	return l.Interrupt
}

func (l *Loop) safeDecide(ctx context.Context, state *agent.State) (action agent.Action, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent.decide panicked: %v", r)
		}
	}()
	return l.Agent.Decide(ctx, state)
}

func (l *Loop) finish(state *agent.State, start time.Time, success bool, stop agent.StopReason, reasoning string) agent.Result {
	l.logEvent(eventlog.KindAgentFinished, map[string]any{
		"success": success, "stop_reason": string(stop), "steps": state.Step, "final_exit_code": state.LastTestExitCode,
	})
	return agent.Result{
		Success:           success,
		StopReason:        stop,
		StepsTaken:        state.Step,
		PatchesApplied:    state.AppliedPatches,
		Duration:          time.Since(start),
		FinalTestExitCode: state.LastTestExitCode,
		Passed:            state.LastTestExitCode == 0,
		Reasoning:         reasoning,
	}
}

func (l *Loop) logEvent(kind eventlog.Kind, payload map[string]any) {
	if l.Events == nil {
		return
	}
	_ = l.Events.Append(l.RunID, kind, payload)
}

// runInitialTest runs the setup+test (first invocation, network=bridge
// when setup commands exist) or the bare test command (network=none when
// there is no setup to run), prefixed with "cd repo &&" when a repo/
// subdirectory exists in the workspace.
func (l *Loop) runInitialTest(ctx context.Context) (int, string, error) {
	var command string
	net := sandbox.NetworkNone
	if len(l.SetupCommands) > 0 {
		parts := append(append([]string{}, l.SetupCommands...), l.TestCommand)
		command = strings.Join(parts, " && ")
		net = sandbox.NetworkBridge
	} else {
		command = l.TestCommand
	}
	if l.RepoSubdirExists {
		command = "cd repo && " + command
	}

	l.logEvent(eventlog.KindTestsStarted, map[string]any{"command": command})

	stdoutPath := l.Layer.ArtifactsDir + "/logs/step_0000_stdout.txt"
	stderrPath := l.Layer.ArtifactsDir + "/logs/step_0000_stderr.txt"
	result, err := l.Layer.Sandbox.Run(ctx, l.Layer.WorkspaceRoot, sandbox.RunRequest{
		Command: command, Network: net, TimeoutSec: l.Config.MaxTimeSec,
		StdoutPath: stdoutPath, StderrPath: stderrPath,
	})
	if err != nil {
		return 0, "", err
	}

	combined := readCombined(stdoutPath, stderrPath)
	tail := truncate.Lines(combined, 500, 200, 200).Text

	l.logEvent(eventlog.KindTestsFinished, map[string]any{"exit_code": result.ExitCode})
	return result.ExitCode, tail, nil
}

func readCombined(stdoutPath, stderrPath string) string {
	stdout, _ := os.ReadFile(stdoutPath)
	stderr, _ := os.ReadFile(stderrPath)
	return string(stdout) + string(stderr)
}

func repeatedFailure(recent []string, threshold int) bool {
	if len(recent) < threshold {
		return false
	}
	window := recent[len(recent)-threshold:]
	first := window[0]
	for _, w := range window[1:] {
		if w != first {
			return false
		}
	}
	return true
}
