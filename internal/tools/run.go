package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"repairbench/internal/sandbox"
	"repairbench/internal/truncate"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// normalizeCommand collapses runs of whitespace and strips a leading
// "cd repo && " prefix, so RUN's structural test-command comparison
// tolerates the loop's own prefixing without false negatives.
func normalizeCommand(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	cmd = whitespaceRe.ReplaceAllString(cmd, " ")
	cmd = strings.TrimPrefix(cmd, "cd repo && ")
	return cmd
}

// IsTestCommand reports whether cmd is structurally the task's test
// command: normalized whitespace comparison, tolerant of a "cd repo &&"
// prefix either side.
func IsTestCommand(cmd, testCommand string) bool {
	return normalizeCommand(cmd) == normalizeCommand(testCommand)
}

func (l *Layer) execRun(ctx context.Context, req Request, res *Result, step int) {
	if req.Run == nil {
		res.Error = &ToolError{Kind: ErrInternal, Message: "missing run params"}
		return
	}
	p := req.Run

	timeoutSec := p.TimeoutSec
	if timeoutSec <= 0 {
		timeoutSec = l.Timeouts.RunSec
	}

	stdoutPath := filepath.Join(l.ArtifactsDir, "logs", fmt.Sprintf("tool_step_%04d_stdout.txt", step))
	stderrPath := filepath.Join(l.ArtifactsDir, "logs", fmt.Sprintf("tool_step_%04d_stderr.txt", step))

	sbReq := sandbox.RunRequest{
		Command:    p.Command,
		Network:    sandbox.NetworkNone,
		TimeoutSec: timeoutSec,
		Env:        p.Env,
		StdoutPath: stdoutPath,
		StderrPath: stderrPath,
	}

	result, err := l.Sandbox.Run(ctx, l.RepoRoot, sbReq)
	if err != nil {
		res.Error = &ToolError{Kind: ErrSandboxError, Message: err.Error()}
		return
	}

	stdoutBytes, _ := os.ReadFile(result.StdoutPath)
	stderrBytes, _ := os.ReadFile(result.StderrPath)

	combined := string(stdoutBytes) + string(stderrBytes)
	trunc := truncate.Lines(combined, 500, 200, 200)

	data := &RunData{
		ExitCode:        result.ExitCode,
		StdoutPath:      result.StdoutPath,
		StderrPath:      result.StderrPath,
		CombinedOutput:  trunc.Text,
		IsTestCommand:   IsTestCommand(p.Command, l.TestCommand),
		StdoutBytes:     len(stdoutBytes),
		StderrBytes:     len(stderrBytes),
		StdoutLines:     strings.Count(string(stdoutBytes), "\n") + 1,
		StderrLines:     strings.Count(string(stderrBytes), "\n") + 1,
		StdoutTruncated: trunc.Truncated,
		StderrTruncated: trunc.Truncated,
	}
	res.Run = data

	if result.ExitCode != 0 {
		res.Error = &ToolError{
			Kind:    ErrAbnormalExit,
			Message: fmt.Sprintf("command exited %d", result.ExitCode),
			Details: map[string]any{"exit_code": result.ExitCode, "stderr": string(stderrBytes)},
		}
	}
}
