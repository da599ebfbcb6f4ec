package sandbox

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairbench/internal/obslog"
)

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available in this environment")
	}
}

func TestNetworkValid(t *testing.T) {
	assert.True(t, NetworkNone.Valid())
	assert.True(t, NetworkBridge.Valid())
	assert.False(t, Network("host").Valid())
}

func TestBindRejectsInvalidNetwork(t *testing.T) {
	b := NewBind("alpine:latest", obslog.NewNop())
	ws := t.TempDir()
	_, err := b.Run(context.Background(), ws, RunRequest{
		Command: "true", Network: Network("host"),
		StdoutPath: filepath.Join(ws, "out.txt"), StderrPath: filepath.Join(ws, "err.txt"),
	})
	assert.Error(t, err)
}

func TestBindRunsCommandAndCapturesOutput(t *testing.T) {
	requireDocker(t)
	b := NewBind("alpine:latest", obslog.NewNop())
	ws := t.TempDir()
	res, err := b.Run(context.Background(), ws, RunRequest{
		Command: "echo hello", Network: NetworkNone, TimeoutSec: 30,
		StdoutPath: filepath.Join(ws, "out.txt"), StderrPath: filepath.Join(ws, "err.txt"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
}

func TestBindReportsNonZeroExit(t *testing.T) {
	requireDocker(t)
	b := NewBind("alpine:latest", obslog.NewNop())
	ws := t.TempDir()
	res, err := b.Run(context.Background(), ws, RunRequest{
		Command: "exit 3", Network: NetworkNone, TimeoutSec: 30,
		StdoutPath: filepath.Join(ws, "out.txt"), StderrPath: filepath.Join(ws, "err.txt"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
}

func TestBindTimesOut(t *testing.T) {
	requireDocker(t)
	b := NewBind("alpine:latest", obslog.NewNop())
	ws := t.TempDir()
	res, err := b.Run(context.Background(), ws, RunRequest{
		Command: "sleep 5", Network: NetworkNone, TimeoutSec: 1,
		StdoutPath: filepath.Join(ws, "out.txt"), StderrPath: filepath.Join(ws, "err.txt"),
	})
	require.NoError(t, err)
	assert.Equal(t, timeoutExitCode, res.ExitCode)
}

func TestReconstructCommandVector(t *testing.T) {
	got := reconstructCommandVector(`pytest -q --maxfail=1`)
	assert.Equal(t, []string{"pytest", "-q", "--maxfail=1"}, got)
}

func TestReconstructCommandVectorFallsBackOnParseFailure(t *testing.T) {
	got := reconstructCommandVector(`echo "unterminated`)
	assert.Equal(t, []string{`echo "unterminated`}, got)
}
