package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"repairbench/internal/obslog"
)

// Persistent runs one long-lived container per run, backed by a tmpfs
// workspace, and dispatches subsequent commands through `docker exec`.
// Network can be toggled between none and bridge by disconnect/connect
// operations rather than by restarting the container.
type Persistent struct {
	Image       string
	ContainerID string
	Logger      *obslog.Logger

	mu             sync.Mutex
	currentNetwork Network
}

// NewPersistent starts a long-lived container from image and returns a
// handle to it. The caller must call Stop when the run ends.
func NewPersistent(ctx context.Context, image, networkName string, logger *obslog.Logger) (*Persistent, error) {
	if logger == nil {
		logger = obslog.NewNop()
	}
	args := []string{
		"run", "-d",
		"--tmpfs", "/workspace:rw",
		"--tmpfs", "/tmp:rw",
		"-w", "/workspace",
		"--cap-drop", "ALL",
		"--security-opt", "no-new-privileges",
		"--pids-limit", "512",
		"--ipc", "private",
		"--network", "none",
		image, "sleep", "infinity",
	}
	out, err := exec.CommandContext(ctx, "docker", args...).Output()
	if err != nil {
		return nil, fmt.Errorf("sandbox: starting persistent container: %w", err)
	}
	id := firstLine(out)
	return &Persistent{Image: image, ContainerID: id, Logger: logger, currentNetwork: NetworkNone}, nil
}

// Stop removes the container.
func (p *Persistent) Stop(ctx context.Context) error {
	if p.ContainerID == "" {
		return nil
	}
	if err := exec.CommandContext(ctx, "docker", "rm", "-f", p.ContainerID).Run(); err != nil {
		return fmt.Errorf("sandbox: stopping persistent container: %w", err)
	}
	return nil
}

// CopyIn copies a host path into the container's workspace.
func (p *Persistent) CopyIn(ctx context.Context, hostPath, containerPath string) error {
	dest := p.ContainerID + ":" + containerPath
	return exec.CommandContext(ctx, "docker", "cp", hostPath, dest).Run()
}

// CopyOut copies a container path back to the host.
func (p *Persistent) CopyOut(ctx context.Context, containerPath, hostPath string) error {
	src := p.ContainerID + ":" + containerPath
	return exec.CommandContext(ctx, "docker", "cp", src, hostPath).Run()
}

func (p *Persistent) setNetwork(ctx context.Context, want Network) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.currentNetwork == want {
		return nil
	}
	// Docker has no "none" network object to connect/disconnect from by
	// name; bridge is the one toggle target, so "want == none" means
	// disconnect from bridge and vice versa.
	var err error
	if want == NetworkBridge {
		err = exec.CommandContext(ctx, "docker", "network", "connect", "bridge", p.ContainerID).Run()
	} else {
		err = exec.CommandContext(ctx, "docker", "network", "disconnect", "bridge", p.ContainerID).Run()
	}
	if err != nil {
		return fmt.Errorf("sandbox: toggling network to %s: %w", want, err)
	}
	p.currentNetwork = want
	return nil
}

func (p *Persistent) Run(ctx context.Context, ws string, req RunRequest) (Result, error) {
	if err := validateRequest(req); err != nil {
		return Result{}, err
	}
	if err := p.setNetwork(ctx, req.Network); err != nil {
		return Result{}, err
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

	args := []string{"exec"}
	for k, v := range req.Env {
		args = append(args, "-e", k+"="+v)
	}
	for _, kv := range deterministicEnv {
		args = append(args, "-e", kv)
	}
	args = append(args, p.ContainerID, "sh", "-c", req.Command)

	cmd := exec.CommandContext(runCtx, "docker", args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	p.Logger.Debugf("sandbox persistent exec: container=%s network=%s command=%q", p.ContainerID, req.Network, req.Command)

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
	return Result{}, fmt.Errorf("sandbox: exec into persistent container: %w", runErr)
}

func firstLine(b []byte) string {
	for i, c := range b {
		if c == '\n' {
			return string(b[:i])
		}
	}
	return string(b)
}
