package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"repairbench/internal/obslog"
)

// Bind launches a fresh container per command, bind-mounting the host
// workspace read-write. Pre-flight errors are limited to a missing
// workspace or an invalid network value; every runtime failure surfaces
// as the command's own exit code and captured streams.
type Bind struct {
	Image  string
	Logger *obslog.Logger
}

// NewBind constructs a Bind sandbox that launches containers from image.
func NewBind(image string, logger *obslog.Logger) *Bind {
	if logger == nil {
		logger = obslog.NewNop()
	}
	return &Bind{Image: image, Logger: logger}
}

func (b *Bind) Run(ctx context.Context, ws string, req RunRequest) (Result, error) {
	if err := validateRequest(req); err != nil {
		return Result{}, err
	}
	if info, err := os.Stat(ws); err != nil || !info.IsDir() {
		return Result{}, fmt.Errorf("sandbox: workspace not found: %s", ws)
	}

	stdout, stderr, err := openCaptureFiles(req)
	if err != nil {
		return Result{}, err
	}
	defer stdout.Close()
	defer stderr.Close()

	timeout := time.Duration(req.TimeoutSec) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := b.dockerArgs(ws, req)
	cmd := exec.CommandContext(runCtx, "docker", args...)
	cmd.Env = envSlice(req.Env)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	b.Logger.Debugf("sandbox bind run: image=%s network=%s command=%q", b.Image, req.Network, req.Command)

	runErr := cmd.Run()
	result := Result{
		StdoutPath:                   req.StdoutPath,
		StderrPath:                   req.StderrPath,
		ReconstructableCommandVector: reconstructCommandVector(req.Command),
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		appendTimeoutNote(req.StderrPath, timeout)
		result.ExitCode = timeoutExitCode
		return result, nil
	}
	if runErr == nil {
		result.ExitCode = 0
		return result, nil
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	return Result{}, fmt.Errorf("sandbox: launching container: %w", runErr)
}

// dockerArgs builds the hardened `docker run` invocation: dropped
// capabilities, no new privileges, a capped process count, private IPC, a
// writable tmpfs at /tmp, and a read-only rootfs whenever the network is
// disabled.
func (b *Bind) dockerArgs(ws string, req RunRequest) []string {
	args := []string{
		"run", "--rm",
		"-v", ws + ":/workspace:rw",
		"-w", "/workspace",
		"--cap-drop", "ALL",
		"--security-opt", "no-new-privileges",
		"--pids-limit", "512",
		"--ipc", "private",
		"--tmpfs", "/tmp:rw",
		"--network", string(req.Network),
	}
	if req.Network == NetworkNone {
		args = append(args, "--read-only")
	}
	for k, v := range req.Env {
		args = append(args, "-e", k+"="+v)
	}
	for _, kv := range deterministicEnv {
		args = append(args, "-e", kv)
	}
	args = append(args, b.Image, "sh", "-c", req.Command)
	return args
}
