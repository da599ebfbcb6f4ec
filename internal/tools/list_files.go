package tools

import (
	"context"
	"errors"

	"repairbench/internal/pathsafe"
)

func (l *Layer) execListFiles(_ context.Context, req Request, res *Result) {
	if req.ListFiles == nil {
		res.Error = &ToolError{Kind: ErrInternal, Message: "missing list_files params"}
		return
	}
	p := req.ListFiles

	root, err := pathsafe.Resolve(l.RepoRoot, p.Root, false)
	if err != nil {
		res.Error = pathErrToToolError(err, p.Root)
		return
	}

	files, err := pathsafe.Glob(root, p.Glob)
	if err != nil {
		res.Error = &ToolError{Kind: ErrInternal, Message: err.Error()}
		return
	}

	res.ListFiles = &ListFilesData{Files: files}
}

func pathErrToToolError(err error, offending string) *ToolError {
	var pe *pathsafe.Error
	if errors.As(err, &pe) {
		kind := ErrPathEscape
		if pe.Kind == pathsafe.ErrSymlinkBlocked {
			kind = ErrSymlinkBlocked
		}
		return &ToolError{Kind: kind, Message: err.Error(), Details: map[string]any{"path": offending}}
	}
	return &ToolError{Kind: ErrInternal, Message: err.Error()}
}
