package tools

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairbench/internal/obslog"
	"repairbench/internal/patch"
	"repairbench/internal/sandbox"
)

// fakeSandbox is an in-process sandbox.Sandbox used to exercise RUN
// without a container runtime: it runs the command directly on the host
// via /bin/sh, which is safe inside a test's own temp directory.
type fakeSandbox struct{}

func (fakeSandbox) Run(ctx context.Context, ws string, req sandbox.RunRequest) (sandbox.Result, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", req.Command)
	cmd.Dir = ws
	stdout, err1 := os.Create(req.StdoutPath)
	if err1 != nil {
		return sandbox.Result{}, err1
	}
	defer stdout.Close()
	stderr, err2 := os.Create(req.StderrPath)
	if err2 != nil {
		return sandbox.Result{}, err2
	}
	defer stderr.Close()
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	exitCode := 0
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return sandbox.Result{}, err
		}
	}
	return sandbox.Result{ExitCode: exitCode, StdoutPath: req.StdoutPath, StderrPath: req.StderrPath}, nil
}

func newTestLayer(t *testing.T) (*Layer, string) {
	t.Helper()
	repoRoot := t.TempDir()
	artifacts := t.TempDir()
	layer := NewLayer(repoRoot, repoRoot, artifacts, fakeSandbox{}, patch.NewEngine(false, obslog.NewNop()), DefaultTimeouts(), "pytest -q", obslog.NewNop())
	return layer, repoRoot
}

func TestDefinitionsCoversAllFiveTools(t *testing.T) {
	defs := Definitions()
	require.Len(t, defs, 5)
	names := make(map[string]bool)
	for _, d := range defs {
		names[d.Name] = true
		assert.NotNil(t, d.Parameters)
	}
	for _, want := range []Kind{KindListFiles, KindReadFile, KindSearch, KindApplyPatch, KindRun} {
		assert.True(t, names[string(want)], "missing definition for %s", want)
	}
}

func TestIsTestCommandToleratesCdRepoPrefixAndWhitespace(t *testing.T) {
	assert.True(t, IsTestCommand("cd repo &&   pytest   -q", "pytest -q"))
	assert.True(t, IsTestCommand("pytest -q", "pytest -q"))
	assert.False(t, IsTestCommand("pytest -k foo", "pytest -q"))
}

func TestExecListFiles(t *testing.T) {
	layer, repoRoot := newTestLayer(t)
	require.NoError(t, os.MkdirAll(filepath.Join(repoRoot, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(repoRoot, "src", "a.py"), []byte("x"), 0o644))

	res := layer.Execute(context.Background(), Request{RequestID: "r1", Kind: KindListFiles, ListFiles: &ListFilesParams{Root: ".", Glob: "**/*.py"}}, 1)
	require.NoError(t, toolErr(res))
	require.NotNil(t, res.ListFiles)
	assert.Equal(t, []string{"src/a.py"}, res.ListFiles.Files)
}

func TestExecListFilesRejectsEscape(t *testing.T) {
	layer, _ := newTestLayer(t)
	res := layer.Execute(context.Background(), Request{RequestID: "r1", Kind: KindListFiles, ListFiles: &ListFilesParams{Root: "../../etc"}}, 1)
	require.NotNil(t, res.Error)
	assert.Equal(t, ErrPathEscape, res.Error.Kind)
}

func TestExecReadFile(t *testing.T) {
	layer, repoRoot := newTestLayer(t)
	require.NoError(t, os.WriteFile(filepath.Join(repoRoot, "a.py"), []byte("line1\nline2\nline3\n"), 0o644))

	res := layer.Execute(context.Background(), Request{RequestID: "r1", Kind: KindReadFile, ReadFile: &ReadFileParams{Path: "a.py"}}, 1)
	require.NoError(t, toolErr(res))
	require.NotNil(t, res.ReadFile)
	assert.Equal(t, "line1\nline2\nline3", res.ReadFile.Content)
	assert.False(t, res.ReadFile.Truncated)
}

func TestExecReadFileMissing(t *testing.T) {
	layer, _ := newTestLayer(t)
	res := layer.Execute(context.Background(), Request{RequestID: "r1", Kind: KindReadFile, ReadFile: &ReadFileParams{Path: "missing.py"}}, 1)
	require.NotNil(t, res.Error)
	assert.Equal(t, ErrFileNotFound, res.Error.Kind)
}

func TestExecReadFileTruncatesLongFiles(t *testing.T) {
	layer, repoRoot := newTestLayer(t)
	var b strings.Builder
	for i := 0; i < 1000; i++ {
		b.WriteString("line " + strconv.Itoa(i) + "\n")
	}
	require.NoError(t, os.WriteFile(filepath.Join(repoRoot, "big.py"), []byte(b.String()), 0o644))

	res := layer.Execute(context.Background(), Request{RequestID: "r1", Kind: KindReadFile, ReadFile: &ReadFileParams{Path: "big.py"}}, 1)
	require.NoError(t, toolErr(res))
	assert.True(t, res.ReadFile.Truncated)
}

func TestExecRun(t *testing.T) {
	layer, _ := newTestLayer(t)
	res := layer.Execute(context.Background(), Request{RequestID: "r1", Kind: KindRun, Run: &RunParams{Command: "echo hi"}}, 1)
	require.NoError(t, toolErr(res))
	require.NotNil(t, res.Run)
	assert.Equal(t, 0, res.Run.ExitCode)
	assert.True(t, res.Run.IsTestCommand == false)
}

func TestExecRunReportsAbnormalExitAsError(t *testing.T) {
	layer, _ := newTestLayer(t)
	res := layer.Execute(context.Background(), Request{RequestID: "r1", Kind: KindRun, Run: &RunParams{Command: "pytest -q"}}, 1)
	require.NotNil(t, res.Error)
	assert.Equal(t, ErrAbnormalExit, res.Error.Kind)
	assert.True(t, res.Run.IsTestCommand)
}

func TestExecApplyPatch(t *testing.T) {
	if _, err := exec.LookPath("patch"); err != nil {
		t.Skip("patch(1) not available in this environment")
	}
	layer, repoRoot := newTestLayer(t)
	require.NoError(t, os.WriteFile(filepath.Join(repoRoot, "mathy.py"), []byte("def add(a, b):\n    return a - b\n"), 0o644))

	diff := "--- a/mathy.py\n+++ b/mathy.py\n@@ -1,2 +1,2 @@\n def add(a, b):\n-    return a - b\n+    return a + b\n"
	res := layer.Execute(context.Background(), Request{RequestID: "r1", Kind: KindApplyPatch, ApplyPatch: &ApplyPatchParams{UnifiedDiff: diff}}, 1)
	require.NoError(t, toolErr(res))
	require.NotNil(t, res.ApplyPatch)
	assert.Equal(t, []string{"mathy.py"}, res.ApplyPatch.ChangedFiles)
}

func toolErr(res Result) error {
	if res.Error != nil {
		return res.Error
	}
	return nil
}
