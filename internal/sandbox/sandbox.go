// Package sandbox launches commands inside a container with capped
// network, time, and capabilities, streaming stdout/stderr to files. It
// ships two implementations selected at bring-up: Bind (one fresh
// container per command) and Persistent (one long-lived container with an
// exec channel), matching the container runtime idiom steveyegge-vc's
// executor uses for its sandboxed command execution, generalized to the
// two modes this engine's tool layer needs.
package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-shellwords"
)

// Network is the closed set of network modes a sandbox command accepts.
type Network string

const (
	NetworkNone   Network = "none"
	NetworkBridge Network = "bridge"
)

// Valid reports whether n is one of the two accepted network values.
func (n Network) Valid() bool {
	return n == NetworkNone || n == NetworkBridge
}

// deterministicEnv is appended to every child command per the environment
// contract: fixed hash seed, UTC, C locale, quiet pip.
var deterministicEnv = []string{
	"PYTHONHASHSEED=0",
	"TZ=UTC",
	"LC_ALL=C",
	"LANG=C",
	"PIP_DISABLE_PIP_VERSION_CHECK=1",
}

// timeoutExitCode is returned when the caller's wait times out, the
// conventional shell timeout(1) exit code.
const timeoutExitCode = 124

// RunRequest describes one command invocation.
type RunRequest struct {
	Command     string
	Network     Network
	TimeoutSec  int
	Env         map[string]string
	StdoutPath  string
	StderrPath  string
}

// Result is returned by both sandbox modes.
type Result struct {
	ExitCode             int
	StdoutPath           string
	StderrPath           string
	ReconstructableCommandVector []string
}

// Sandbox hides whether the implementation fork-execs a container runtime
// per call or execs into a persistent one.
type Sandbox interface {
	Run(ctx context.Context, ws string, req RunRequest) (Result, error)
}

var shellParser = shellwords.NewParser()

// reconstructCommandVector tokenizes command the same way the shell would,
// so a sandbox Result can report the effective argv rather than the raw
// string. Falls back to a single-element vector on parse failure — the
// sandbox still executes the command via `sh -c`, only the reported
// vector is approximate in that case.
func reconstructCommandVector(command string) []string {
	tokens, err := shellParser.Parse(command)
	if err != nil || len(tokens) == 0 {
		return []string{command}
	}
	return tokens
}

func openCaptureFiles(req RunRequest) (*os.File, *os.File, error) {
	if err := os.MkdirAll(filepath.Dir(req.StdoutPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("sandbox: creating stdout dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(req.StderrPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("sandbox: creating stderr dir: %w", err)
	}
	stdout, err := os.Create(req.StdoutPath)
	if err != nil {
		return nil, nil, fmt.Errorf("sandbox: opening stdout capture: %w", err)
	}
	stderr, err := os.Create(req.StderrPath)
	if err != nil {
		stdout.Close()
		return nil, nil, fmt.Errorf("sandbox: opening stderr capture: %w", err)
	}
	return stdout, stderr, nil
}

func envSlice(extra map[string]string) []string {
	env := append([]string{}, deterministicEnv...)
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

// appendTimeoutNote writes the timeout marker line the bind-mode contract
// requires when a command's wall-clock budget expires.
func appendTimeoutNote(stderrPath string, timeout time.Duration) {
	f, err := os.OpenFile(stderrPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "\n[sandbox] command timed out after %s\n", timeout)
}

func validateRequest(req RunRequest) error {
	if !req.Network.Valid() {
		return fmt.Errorf("sandbox: invalid network %q", req.Network)
	}
	return nil
}
