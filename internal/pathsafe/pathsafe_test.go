package pathsafe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWithinRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "a.py"), []byte("x"), 0o644))

	got, err := Resolve(root, "src/a.py", false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "src", "a.py"), got)
}

func TestResolveStripsWellKnownPrefix(t *testing.T) {
	root := t.TempDir()
	got, err := Resolve(root, "repo/src/a.py", false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "src", "a.py"), got)
}

func TestResolveRejectsEscape(t *testing.T) {
	root := t.TempDir()
	_, err := Resolve(root, "../../etc/passwd", false)
	require.Error(t, err)
	var pathErr *Error
	require.ErrorAs(t, err, &pathErr)
	assert.Equal(t, ErrPathEscape, pathErr.Kind)
}

func TestResolveRejectsSymlink(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	target := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
	link := filepath.Join(root, "link")
	require.NoError(t, os.Symlink(outside, link))

	_, err := Resolve(root, "link/secret.txt", false)
	require.Error(t, err)
	var pathErr *Error
	require.ErrorAs(t, err, &pathErr)
	assert.Equal(t, ErrSymlinkBlocked, pathErr.Kind)
}

func TestResolveAllowsSymlinkWhenPermitted(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("x"), 0o644))
	link := filepath.Join(root, "link")
	require.NoError(t, os.Symlink(outside, link))

	_, err := Resolve(root, "link/secret.txt", true)
	require.NoError(t, err)
}

func TestGlobFindsFilesRecursively(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "b", "x.go"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "y.go"), []byte("y"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "z.go"), []byte("z"), 0o644))

	matches, err := Glob(root, "**/*.go")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a/b/x.go", "a/y.go"}, matches)
}

func TestGlobSingleLevelDoesNotRecurse(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "top.go"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "nested.go"), []byte("y"), 0o644))

	matches, err := Glob(root, "*.go")
	require.NoError(t, err)
	assert.Equal(t, []string{"top.go"}, matches)
}
