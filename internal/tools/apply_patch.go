package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	patcherr "repairbench/internal/patch"
)

func (l *Layer) execApplyPatch(ctx context.Context, req Request, res *Result, step int) {
	if req.ApplyPatch == nil {
		res.Error = &ToolError{Kind: ErrInternal, Message: "missing apply_patch params"}
		return
	}
	p := req.ApplyPatch

	result, err := l.PatchEngine.Apply(ctx, l.RepoRoot, p.UnifiedDiff)
	if err != nil {
		var pe *patcherr.Error
		if errors.As(err, &pe) {
			res.Error = &ToolError{
				Kind:    ErrPatchHunkFail,
				Message: pe.Detail,
				Details: map[string]any{"diff": p.UnifiedDiff},
			}
			return
		}
		res.Error = &ToolError{Kind: ErrInternal, Message: err.Error()}
		return
	}

	patchPath := filepath.Join(l.ArtifactsDir, "diffs", fmt.Sprintf("step_%04d.patch", step))
	if err := os.MkdirAll(filepath.Dir(patchPath), 0o755); err != nil {
		res.Error = &ToolError{Kind: ErrInternal, Message: err.Error()}
		return
	}
	if err := os.WriteFile(patchPath, []byte(result.AppliedDiff), 0o644); err != nil {
		res.Error = &ToolError{Kind: ErrInternal, Message: err.Error()}
		return
	}

	res.ApplyPatch = &ApplyPatchData{
		ChangedFiles:   result.ChangedFiles,
		PatchSizeBytes: len(result.AppliedDiff),
		PatchPath:      patchPath,
	}
}
