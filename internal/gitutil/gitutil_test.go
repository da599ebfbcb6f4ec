package gitutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	git := func(args ...string) {
		res, err := run(context.Background(), dir, args...)
		require.NoError(t, err)
		require.Equalf(t, 0, res.ExitCode, "git %v: %s", args, res.Stderr)
	}
	git("init")
	git("config", "user.email", "test@example.com")
	git("config", "user.name", "test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	git("add", "a.txt")
	git("commit", "-m", "initial")
	return dir
}

func TestCloneAndCheckout(t *testing.T) {
	src := initRepo(t)
	dest := filepath.Join(t.TempDir(), "clone")

	res, err := Clone(context.Background(), src, dest)
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)

	checkout, err := Checkout(context.Background(), dest, "HEAD")
	require.NoError(t, err)
	assert.Equal(t, 0, checkout.ExitCode)
}

func TestStatusAndIsDirty(t *testing.T) {
	src := initRepo(t)

	clean, err := Status(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, IsDirty(clean))

	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("changed"), 0o644))
	dirty, err := Status(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, IsDirty(dirty))
}

func TestCloneFailsOnBadURL(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "clone")
	res, err := Clone(context.Background(), "/does/not/exist", dest)
	require.NoError(t, err)
	assert.NotEqual(t, 0, res.ExitCode)
}
