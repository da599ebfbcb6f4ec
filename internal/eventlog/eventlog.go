// Package eventlog appends structured, timestamped records to a
// per-run JSONL file. Appends are crash-safe: an exclusive file lock is
// held for the duration of the write, then the file is fsync'd, mirroring
// the locking discipline the nikolasavic-lokt reference repo applies to
// its own append-only lock file, generalized here to event records and
// the taxonomy manishiitg-mcp-agent-builder-go's agent_go/pkg/events
// package demonstrates for an LLM agent's event stream.
package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"
)

// Kind is the closed set of event kinds the engine emits.
type Kind string

const (
	KindToolCallStarted    Kind = "tool_call_started"
	KindToolCallFinished   Kind = "tool_call_finished"
	KindAgentTurnStarted   Kind = "agent_turn_started"
	KindAgentTurnFinished  Kind = "agent_turn_finished"
	KindAgentFinished      Kind = "agent_finished"
	KindPatchApplied       Kind = "patch_applied"
	KindTestsStarted       Kind = "tests_started"
	KindTestsFinished      Kind = "tests_finished"
	KindCommandStarted     Kind = "command_started"
	KindCommandFinished    Kind = "command_finished"
	KindLLMRequestStarted  Kind = "llm_request_started"
	KindLLMRequestFinished Kind = "llm_request_finished"
	KindLLMRequestFailed   Kind = "llm_request_failed"
	KindTaskStarted        Kind = "task_started"
	KindTaskFinished       Kind = "task_finished"
)

// CurrentEventVersion is the default event_version stamped on every
// record absent an explicit override.
const CurrentEventVersion = "1.0"

// Event is one append-only JSONL record.
type Event struct {
	EventType    Kind           `json:"event_type"`
	Timestamp    time.Time      `json:"timestamp"`
	RunID        string         `json:"run_id"`
	Step         int            `json:"step"`
	EventVersion string         `json:"event_version"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// Log is one run's append-only event stream.
type Log struct {
	path string
	mu   sync.Mutex
	file *os.File

	// step is the per-event monotonic counter: every Append assigns
	// itself the next value, independent of any turn or tool-call
	// counter the caller also tracks.
	step int
}

// Open truncates any prior events.jsonl for this run (a fresh run always
// starts a clean log) and returns a Log ready to append to.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("eventlog: opening %s: %w", path, err)
	}
	return &Log{path: path, file: f}, nil
}

// Append writes one event, taking an exclusive lock on the file and
// fsyncing before returning, so a crash mid-write never corrupts the
// stream for a concurrent reader. Step identifiers are assigned here,
// one per call, strictly increasing from 1 — callers never supply one.
func (l *Log) Append(runID string, kind Kind, payload map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("eventlog: locking %s: %w", l.path, err)
	}
	defer syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)

	l.step++
	ev := Event{
		EventType:    kind,
		Timestamp:    time.Now().UTC(),
		RunID:        runID,
		Step:         l.step,
		EventVersion: CurrentEventVersion,
		Payload:      payload,
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("eventlog: marshaling event: %w", err)
	}
	line = append(line, '\n')

	if _, err := l.file.Write(line); err != nil {
		return fmt.Errorf("eventlog: writing event: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("eventlog: fsync: %w", err)
	}
	return nil
}

// Close releases the underlying file handle.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
