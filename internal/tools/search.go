package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"repairbench/internal/pathsafe"
)

// ripgrepMessage mirrors the subset of ripgrep's --json "match" message
// fields this tool cares about.
type ripgrepMessage struct {
	Type string `json:"type"`
	Data struct {
		Path struct {
			Text string `json:"text"`
		} `json:"path"`
		Lines struct {
			Text string `json:"text"`
		} `json:"lines"`
		LineNumber int `json:"line_number"`
	} `json:"data"`
}

func (l *Layer) execSearch(ctx context.Context, req Request, res *Result) {
	if req.Search == nil {
		res.Error = &ToolError{Kind: ErrInternal, Message: "missing search params"}
		return
	}
	p := req.Search

	maxResults := p.MaxResults
	if maxResults <= 0 {
		maxResults = 100
	}
	contextLines := p.ContextLines

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(l.Timeouts.SearchSec)*time.Second)
	defer cancel()

	args := []string{"--json", "--line-number"}
	if contextLines > 0 {
		args = append(args, "-C", strconv.Itoa(contextLines))
	}
	if !p.IsRegex {
		args = append(args, "--fixed-strings")
	}
	if p.Glob != "" {
		args = append(args, "--glob", p.Glob)
	}
	args = append(args, "--", p.Query, l.RepoRoot)

	cmd := exec.CommandContext(runCtx, "rg", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.Error = &ToolError{Kind: ErrTimeout, Message: "search timed out"}
		return
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.ExitCode() == 1 {
				// Exit code 1 from ripgrep means "no matches", not an error.
				res.Search = &SearchData{Matches: nil, TotalMatches: 0, Truncated: false}
				return
			}
			res.Error = &ToolError{Kind: ErrRipgrepError, Message: stderr.String()}
			return
		}
		if errors.Is(err, exec.ErrNotFound) {
			res.Error = &ToolError{Kind: ErrRipgrepUnavailable, Message: "ripgrep (rg) is not installed"}
			return
		}
		res.Error = &ToolError{Kind: ErrRipgrepError, Message: err.Error()}
		return
	}

	matches, truncated := parseRipgrepJSON(stdout.Bytes(), l.RepoRoot, maxResults)
	res.Search = &SearchData{Matches: matches, TotalMatches: len(matches), Truncated: truncated}
}

func parseRipgrepJSON(raw []byte, repoRoot string, maxResults int) ([]SearchMatch, bool) {
	var matches []SearchMatch
	truncated := false

	for _, line := range bytes.Split(raw, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var msg ripgrepMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}
		if msg.Type != "match" {
			continue
		}
		if len(matches) >= maxResults {
			truncated = true
			break
		}
		relPath := msg.Data.Path.Text
		if abs, err := pathsafe.Resolve(repoRoot, msg.Data.Path.Text, true); err == nil {
			if r, relErr := filepath.Rel(repoRoot, abs); relErr == nil {
				relPath = filepath.ToSlash(r)
			}
		}
		matches = append(matches, SearchMatch{
			File:    relPath,
			Line:    msg.Data.LineNumber,
			Content: msg.Data.Lines.Text,
		})
	}
	return matches, truncated
}
