package tools

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"repairbench/internal/pathsafe"
)

const (
	readHeadLines = 200
	readTailLines = 200
	readMaxLines  = 500
)

func (l *Layer) execReadFile(_ context.Context, req Request, res *Result) {
	if req.ReadFile == nil {
		res.Error = &ToolError{Kind: ErrInternal, Message: "missing read_file params"}
		return
	}
	p := req.ReadFile

	resolved, err := pathsafe.Resolve(l.RepoRoot, p.Path, false)
	if err != nil {
		res.Error = pathErrToToolError(err, p.Path)
		return
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			res.Error = &ToolError{Kind: ErrFileNotFound, Message: err.Error(), Details: map[string]any{"path": p.Path}}
			return
		}
		res.Error = &ToolError{Kind: ErrInternal, Message: err.Error()}
		return
	}

	if !utf8.Valid(data) {
		res.Error = &ToolError{Kind: ErrBinaryFile, Message: fmt.Sprintf("%s is not valid UTF-8 text", p.Path)}
		return
	}

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	total := len(lines)

	start, end := 1, total
	if p.StartLine > 0 {
		start = p.StartLine
	}
	if p.EndLine > 0 {
		end = p.EndLine
	}
	if start < 1 {
		start = 1
	}
	if end > total {
		end = total
	}
	if start > end {
		start = end
	}
	selected := lines[start-1 : end]

	content := strings.Join(selected, "\n")
	truncated := false
	linesIncluded := fmt.Sprintf("%d-%d", start, end)

	if len(selected) > readMaxLines {
		head := selected[:readHeadLines]
		tail := selected[len(selected)-readTailLines:]
		content = strings.Join(head, "\n") + "\n... [truncated] ...\n" + strings.Join(tail, "\n")
		truncated = true
		linesIncluded = fmt.Sprintf("%d-%d,%d-%d", start, start+readHeadLines-1, end-readTailLines+1, end)
	}

	res.ReadFile = &ReadFileData{
		Content:       content,
		Truncated:     truncated,
		TotalLines:    total,
		StartLine:     start,
		EndLine:       end,
		LinesIncluded: linesIncluded,
	}
}
