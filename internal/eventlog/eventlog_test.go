package eventlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := Open(path)
	require.NoError(t, err)
	defer log.Close()

	require.NoError(t, log.Append("run-1", KindToolCallStarted, map[string]any{"tool": "RUN"}))
	require.NoError(t, log.Append("run-1", KindToolCallFinished, map[string]any{"tool": "RUN", "ok": true}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	require.Len(t, events, 2)
	assert.Equal(t, KindToolCallStarted, events[0].EventType)
	assert.Equal(t, "run-1", events[0].RunID)
	assert.Equal(t, 1, events[0].Step)
	assert.Equal(t, CurrentEventVersion, events[0].EventVersion)
	assert.Equal(t, "RUN", events[0].Payload["tool"])
	assert.Equal(t, KindToolCallFinished, events[1].EventType)
}

func TestOpenTruncatesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("stale line\n"), 0o644))

	log, err := Open(path)
	require.NoError(t, err)
	defer log.Close()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, content)
}

func TestCloseReleasesHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, log.Close())
}

func TestAppendAssignsStrictlyIncreasingStepsStartingAtOne(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := Open(path)
	require.NoError(t, err)
	defer log.Close()

	kinds := []Kind{KindAgentTurnStarted, KindToolCallStarted, KindToolCallFinished, KindPatchApplied, KindAgentTurnFinished}
	for _, k := range kinds {
		require.NoError(t, log.Append("run-1", k, nil))
	}

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	require.Len(t, events, len(kinds))
	for i, ev := range events {
		assert.Equal(t, i+1, ev.Step, "event %d (%s) should have step %d", i, ev.EventType, i+1)
	}
}
