package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairbench/internal/tools"
)

func TestStateNextRequestIDIncrementsLocalCounter(t *testing.T) {
	s := &State{RunID: "run-1", Step: 3}
	first := s.NextRequestID()
	second := s.NextRequestID()
	assert.Equal(t, "run-1-0003-01", first)
	assert.Equal(t, "run-1-0003-02", second)
}

func TestStateReadPathsCollectsReadFileHistory(t *testing.T) {
	s := &State{History: []HistoryEntry{
		{Request: tools.Request{Kind: tools.KindReadFile, ReadFile: &tools.ReadFileParams{Path: "a.py"}}},
		{Request: tools.Request{Kind: tools.KindListFiles}},
		{Request: tools.Request{Kind: tools.KindReadFile, ReadFile: &tools.ReadFileParams{Path: "b.py"}}},
	}}
	paths := s.ReadPaths()
	require.Len(t, paths, 2)
	assert.True(t, paths["a.py"])
	assert.True(t, paths["b.py"])
	assert.False(t, paths["c.py"])
}

func TestStateLastListedFilesReturnsMostRecent(t *testing.T) {
	s := &State{History: []HistoryEntry{
		{Request: tools.Request{Kind: tools.KindListFiles}, Result: tools.Result{ListFiles: &tools.ListFilesData{Files: []string{"old.py"}}}},
		{Request: tools.Request{Kind: tools.KindListFiles}, Result: tools.Result{ListFiles: &tools.ListFilesData{Files: []string{"new.py"}}}},
	}}
	assert.Equal(t, []string{"new.py"}, s.LastListedFiles())
}

func TestStateLastListedFilesNilWhenNeverListed(t *testing.T) {
	s := &State{}
	assert.Nil(t, s.LastListedFiles())
}
