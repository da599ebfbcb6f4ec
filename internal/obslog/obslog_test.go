package obslog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsLevelAndFormat(t *testing.T) {
	logger, err := New(Config{})
	require.NoError(t, err)
	require.NotNil(t, logger)
	logger.Infof("hello")
}

func TestNewRejectsInvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "not-a-level"})
	assert.Error(t, err)
}

func TestNewRejectsInvalidFormat(t *testing.T) {
	_, err := New(Config{Format: "xml"})
	assert.Error(t, err)
}

func TestNewWritesToLogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "run.log")
	logger, err := New(Config{LogFile: path})
	require.NoError(t, err)
	logger.Infof("an entry")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "an entry")
}

func TestWithAttachesFields(t *testing.T) {
	logger := NewNop()
	child := logger.With(map[string]any{"run_id": "abc"})
	require.NotNil(t, child)
	child.Debugf("child log line")
}
