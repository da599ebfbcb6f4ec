package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuildsExpectedPaths(t *testing.T) {
	ws := New("/out", "toy_fail_pytest")
	assert.Equal(t, filepath.Join("/out", "workspace", "toy_fail_pytest"), ws.Root)
	assert.Equal(t, filepath.Join("/out", "agent_runs", "toy_fail_pytest"), ws.ArtifactsDir)
	assert.Equal(t, filepath.Join(ws.Root, "repo"), ws.RepoRoot())
	assert.Equal(t, filepath.Join(ws.ArtifactsDir, "events.jsonl"), ws.EventsPath())
	assert.Equal(t, filepath.Join(ws.ArtifactsDir, "llm_messages.jsonl"), ws.LLMMessagesPath())
	assert.Equal(t, filepath.Join("/out", "attempts.jsonl"), ws.AttemptsPath("/out"))
}

func TestHasRepoSubdirReflectsFilesystemState(t *testing.T) {
	out := t.TempDir()
	ws := New(out, "toy")
	require.NoError(t, ws.EnsureDirs())
	assert.False(t, ws.HasRepoSubdir())

	require.NoError(t, os.MkdirAll(ws.RepoRoot(), 0o755))
	assert.True(t, ws.HasRepoSubdir())
}

func TestEnsureDirsCreatesFullLayout(t *testing.T) {
	out := t.TempDir()
	ws := New(out, "toy")
	require.NoError(t, ws.EnsureDirs())

	for _, dir := range []string{ws.Root, filepath.Join(ws.ArtifactsDir, "logs"), filepath.Join(ws.ArtifactsDir, "diffs")} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
