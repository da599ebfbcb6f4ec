package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/spf13/cobra"

	"repairbench/internal/agent"
	anthropicclient "repairbench/internal/agent/llmclient/anthropic"
	"repairbench/internal/attempt"
	"repairbench/internal/baseline"
	"repairbench/internal/config"
	"repairbench/internal/eventlog"
	"repairbench/internal/loop"
	"repairbench/internal/obslog"
	"repairbench/internal/patch"
	"repairbench/internal/runid"
	"repairbench/internal/sandbox"
	"repairbench/internal/task"
	"repairbench/internal/tools"
	"repairbench/internal/workspace"
)

var (
	taskPath   string
	variant    string
	modelID    string
	skipBaselineCheck bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Validate a task's baseline, then drive an agent against it",
	RunE:  runAttempt,
}

func init() {
	runCmd.Flags().StringVar(&taskPath, "task", "", "path to a task specification YAML file")
	runCmd.Flags().StringVar(&variant, "variant", "scripted", "agent variant: scripted or llm")
	runCmd.Flags().StringVar(&modelID, "model", "claude-3-5-sonnet-20241022", "model id, for the llm variant")
	runCmd.Flags().BoolVar(&skipBaselineCheck, "skip-baseline", false, "skip baseline validation (assumes the task is already known-good)")
	_ = runCmd.MarkFlagRequired("task")
}

func runAttempt(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	if n := v.GetInt("max-steps"); n > 0 {
		cfg.MaxSteps = n
	}
	if n := v.GetInt("max-time-sec"); n > 0 {
		cfg.MaxTimeSec = n
	}

	logger, err := obslog.New(obslog.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	defer logger.Close()

	data, err := os.ReadFile(taskPath)
	if err != nil {
		return fmt.Errorf("reading task spec: %w", err)
	}
	spec, err := task.Load(data)
	if err != nil {
		return fmt.Errorf("loading task spec: %w", err)
	}

	runID := runid.New()
	ws := workspace.New(cfg.OutDir, spec.ID)
	if err := ws.EnsureDirs(); err != nil {
		return err
	}

	events, err := eventlog.Open(ws.EventsPath())
	if err != nil {
		return err
	}
	defer events.Close()
	logEvent := func(kind eventlog.Kind, payload map[string]any) { _ = events.Append(runID, kind, payload) }
	logEvent(eventlog.KindTaskStarted, map[string]any{"task_id": spec.ID, "variant": variant})

	sb := sandbox.NewBind(spec.Environment.DockerImage, logger)

	ctx := context.Background()

	if !skipBaselineCheck {
		validator := &baseline.Validator{
			Sandbox: sb, WorkspaceRoot: ws.Root, ArtifactsDir: ws.ArtifactsDir,
			Events: events, RunID: runID,
		}
		result := validator.Validate(ctx, spec, ws.RepoRoot(), spec.Environment.TimeoutSec)
		if result.Outcome != baseline.OutcomeOK {
			logEvent(eventlog.KindTaskFinished, map[string]any{"baseline_outcome": string(result.Outcome)})
			return writeBaselineFailure(ws, runID, spec, variant, cfg, result)
		}
	}

	patchEngine := patch.NewEngine(cfg.StrictPatchMode, logger)
	layer := tools.NewLayer(ws.Root, ws.RepoRoot(), ws.ArtifactsDir, sb, patchEngine, tools.Timeouts{
		ListSec: cfg.ListTimeoutSec, ReadSec: cfg.ReadTimeoutSec, SearchSec: cfg.SearchTimeoutSec, RunSec: cfg.RunTimeoutSec,
	}, spec.RunCmd.Command, logger)

	maxSteps := cfg.MaxSteps
	if override := spec.MaxSteps(); override > 0 {
		maxSteps = override
	}

	lp := &loop.Loop{
		RunID: runID, TaskID: spec.ID,
		Layer: layer, Events: events, Logger: logger,
		SetupCommands: spec.Setup.Commands, TestCommand: spec.RunCmd.Command,
		RepoSubdirExists: ws.HasRepoSubdir(),
		Config: loop.Config{MaxSteps: maxSteps, MaxTimeSec: cfg.MaxTimeSec, RepeatedFailureThreshold: cfg.RepeatedFailureThreshold},
	}

	start := time.Now()
	var res agent.Result

	switch variant {
	case "scripted":
		res, err = lp.RunScripted(ctx, agent.NewScripted(spec.ScriptedFixturePath()))
	case "llm":
		sdk := anthropic.NewClient(anthropicoption.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")))
		client := anthropicclient.New(sdk, modelID, logger)
		lp.Agent = agent.NewLLM(client, logger)
		res, err = lp.Run(ctx)
	default:
		return fmt.Errorf("unknown variant %q (want scripted or llm)", variant)
	}
	if err != nil {
		return fmt.Errorf("running attempt: %w", err)
	}

	logEvent(eventlog.KindTaskFinished, map[string]any{"success": res.Success, "stop_reason": string(res.StopReason)})

	writer, err := attempt.OpenWriter(ws.AttemptsPath(cfg.OutDir))
	if err != nil {
		return err
	}
	defer writer.Close()

	failureReason := attempt.FromStopReason(res.StopReason)
	if failureReason == attempt.FailureNone && !res.Success {
		failureReason = attempt.FromTestExitCode(res.FinalTestExitCode)
	}

	record := attempt.Record{
		RunID: runID, TaskID: spec.ID, Variant: variant, Model: modelFor(variant, modelID),
		StartedAt: start, EndedAt: start.Add(res.Duration), DurationMS: res.Duration.Milliseconds(),
		Success: res.Success, StopReason: res.StopReason, FailureReason: failureReason,
		StepsTaken: res.StepsTaken, PatchesApplied: res.PatchesApplied,
		FinalTestExitCode: res.FinalTestExitCode, Passed: res.Passed,
		ConfiguredMaxSteps: maxSteps, ConfiguredMaxTimeSec: cfg.MaxTimeSec,
		BaselineOutcome: string(baseline.OutcomeOK),
		Classification: classificationOf(spec),
	}
	if err := writer.Write(record); err != nil {
		return err
	}

	if !res.Success {
		return fmt.Errorf("attempt did not succeed: %s", res.StopReason)
	}
	return nil
}

func modelFor(variant, modelID string) string {
	if variant != "llm" {
		return ""
	}
	return modelID
}

func writeBaselineFailure(ws *workspace.Workspace, runID string, spec *task.Spec, variant string, cfg config.Config, result baseline.Result) error {
	writer, err := attempt.OpenWriter(ws.AttemptsPath(cfg.OutDir))
	if err != nil {
		return err
	}
	defer writer.Close()

	failureReason := attempt.FailureReason(result.Outcome)
	record := attempt.Record{
		RunID: runID, TaskID: spec.ID, Variant: variant,
		StartedAt: time.Now(), EndedAt: time.Now(),
		Success: false, FailureReason: failureReason,
		FinalTestExitCode: result.InitialExitCode,
		ConfiguredMaxSteps: cfg.MaxSteps, ConfiguredMaxTimeSec: cfg.MaxTimeSec,
		BaselineOutcome: string(result.Outcome),
		Classification: classificationOf(spec),
	}
	if err := writer.Write(record); err != nil {
		return err
	}
	return fmt.Errorf("baseline validation failed: %s", result.Outcome)
}

// classificationOf reads the task's optional classification label,
// returning "" when the task spec did not set one.
func classificationOf(spec *task.Spec) string {
	if spec.Classification == nil {
		return ""
	}
	return string(spec.Classification.Type)
}
