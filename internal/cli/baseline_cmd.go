package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"repairbench/internal/baseline"
	"repairbench/internal/config"
	"repairbench/internal/eventlog"
	"repairbench/internal/obslog"
	"repairbench/internal/runid"
	"repairbench/internal/sandbox"
	"repairbench/internal/task"
	"repairbench/internal/workspace"
)

var baselineTaskPath string

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Validate a task's baseline without running any agent",
	RunE:  runBaseline,
}

func init() {
	baselineCmd.Flags().StringVar(&baselineTaskPath, "task", "", "path to a task specification YAML file")
	_ = baselineCmd.MarkFlagRequired("task")
}

func runBaseline(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	logger, err := obslog.New(obslog.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	defer logger.Close()

	data, err := os.ReadFile(baselineTaskPath)
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

	sb := sandbox.NewBind(spec.Environment.DockerImage, logger)
	validator := &baseline.Validator{
		Sandbox: sb, WorkspaceRoot: ws.Root, ArtifactsDir: ws.ArtifactsDir,
		Events: events, RunID: runID,
	}
	result := validator.Validate(context.Background(), spec, ws.RepoRoot(), spec.Environment.TimeoutSec)

	fmt.Printf("baseline outcome: %s\n", result.Outcome)
	if result.FailureSignature != "" {
		fmt.Printf("failure signature: %s\n", result.FailureSignature)
	}
	if result.Outcome != baseline.OutcomeOK {
		return fmt.Errorf("baseline validation failed: %s: %s", result.Outcome, result.Diagnostic)
	}
	return nil
}
