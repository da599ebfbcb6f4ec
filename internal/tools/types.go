// Package tools implements the five tools an agent may call — LIST_FILES,
// READ_FILE, SEARCH, APPLY_PATCH, RUN — sharing one request/result
// contract over the sandbox, path-safety, and patch-engine components.
// Only APPLY_PATCH and RUN mutate the workspace.
package tools

import "time"

// Kind is the closed set of tool names.
type Kind string

const (
	KindListFiles  Kind = "LIST_FILES"
	KindReadFile   Kind = "READ_FILE"
	KindSearch     Kind = "SEARCH"
	KindApplyPatch Kind = "APPLY_PATCH"
	KindRun        Kind = "RUN"
)

// ErrorKind is the closed tool-error taxonomy (§7).
type ErrorKind string

const (
	ErrPathEscape        ErrorKind = "path_escape"
	ErrSymlinkBlocked    ErrorKind = "symlink_blocked"
	ErrFileNotFound      ErrorKind = "file_not_found"
	ErrBinaryFile        ErrorKind = "binary_file"
	ErrTimeout           ErrorKind = "timeout"
	ErrRipgrepUnavailable ErrorKind = "ripgrep_unavailable"
	ErrRipgrepError      ErrorKind = "ripgrep_error"
	ErrParseError        ErrorKind = "parse_error"
	ErrPatchHunkFail     ErrorKind = "patch_hunk_fail"
	ErrAbnormalExit      ErrorKind = "abnormal_exit"
	ErrSandboxError      ErrorKind = "sandbox_error"
	ErrInternal          ErrorKind = "internal"
)

// ToolError is carried by an error Result: a taxonomy kind, a
// human-readable message, and a details map (exit_code, stderr, offending
// path, ...).
type ToolError struct {
	Kind    ErrorKind      `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *ToolError) Error() string { return string(e.Kind) + ": " + e.Message }

// ListFilesParams is LIST_FILES' parameter shape.
type ListFilesParams struct {
	Root string `json:"root" jsonschema:"required,description=Workspace-relative directory to list"`
	Glob string `json:"glob,omitempty" jsonschema:"description=Shell-style glob; pass '**/*' to recurse"`
}

// ListFilesData is LIST_FILES' success payload.
type ListFilesData struct {
	Files []string `json:"files"`
}

// ReadFileParams is READ_FILE's parameter shape.
type ReadFileParams struct {
	Path      string `json:"path" jsonschema:"required,description=Workspace-relative file path"`
	StartLine int    `json:"start_line,omitempty" jsonschema:"description=1-based inclusive start line"`
	EndLine   int    `json:"end_line,omitempty" jsonschema:"description=1-based inclusive end line"`
}

// ReadFileData is READ_FILE's success payload.
type ReadFileData struct {
	Content        string `json:"content"`
	Truncated      bool   `json:"truncated"`
	TotalLines     int    `json:"total_lines"`
	StartLine      int    `json:"start_line"`
	EndLine        int    `json:"end_line"`
	LinesIncluded  string `json:"lines_included"`
}

// SearchParams is SEARCH's parameter shape.
type SearchParams struct {
	Query        string `json:"query" jsonschema:"required,description=Literal string or regex to search for"`
	Glob         string `json:"glob,omitempty" jsonschema:"description=Restrict search to files matching this glob"`
	MaxResults   int    `json:"max_results,omitempty" jsonschema:"description=Cap on returned matches"`
	ContextLines int    `json:"context_lines,omitempty" jsonschema:"description=Passed to ripgrep as -C; context lines are not included in the returned matches"`
	IsRegex      bool   `json:"is_regex,omitempty" jsonschema:"description=Treat query as a regular expression"`
}

// SearchMatch is one SEARCH hit.
type SearchMatch struct {
	File          string   `json:"file"`
	Line          int      `json:"line"`
	Content       string   `json:"content"`
	ContextBefore []string `json:"context_before,omitempty"`
	ContextAfter  []string `json:"context_after,omitempty"`
}

// SearchData is SEARCH's success payload.
type SearchData struct {
	Matches      []SearchMatch `json:"matches"`
	TotalMatches int           `json:"total_matches"`
	Truncated    bool          `json:"truncated"`
}

// ApplyPatchParams is APPLY_PATCH's parameter shape.
type ApplyPatchParams struct {
	UnifiedDiff string `json:"unified_diff" jsonschema:"required,description=A unified diff, possibly in one of the accepted alternate dialects"`
}

// ApplyPatchData is APPLY_PATCH's success payload.
type ApplyPatchData struct {
	ChangedFiles   []string `json:"changed_files"`
	PatchSizeBytes int      `json:"patch_size_bytes"`
	PatchPath      string   `json:"patch_path"`
}

// RunParams is RUN's parameter shape.
type RunParams struct {
	Command    string            `json:"command" jsonschema:"required,description=Shell command to execute inside the sandbox"`
	TimeoutSec int               `json:"timeout_sec,omitempty" jsonschema:"description=Wall-clock timeout override"`
	Env        map[string]string `json:"env,omitempty" jsonschema:"description=Additional environment variables"`
}

// RunData is RUN's success payload.
type RunData struct {
	ExitCode         int    `json:"exit_code"`
	StdoutPath       string `json:"stdout_path"`
	StderrPath       string `json:"stderr_path"`
	CombinedOutput   string `json:"combined_output"`
	IsTestCommand    bool   `json:"is_test_command"`
	StdoutBytes      int    `json:"stdout_bytes"`
	StderrBytes      int    `json:"stderr_bytes"`
	StdoutLines      int    `json:"stdout_lines"`
	StderrLines      int    `json:"stderr_lines"`
	StdoutTruncated  bool   `json:"stdout_truncated"`
	StderrTruncated  bool   `json:"stderr_truncated"`
}

// Request is the tagged union over the five tool kinds, plus a
// caller-supplied request identifier stable per request.
type Request struct {
	RequestID string `json:"request_id"`
	Kind      Kind   `json:"kind"`

	ListFiles  *ListFilesParams  `json:"list_files,omitempty"`
	ReadFile   *ReadFileParams   `json:"read_file,omitempty"`
	Search     *SearchParams     `json:"search,omitempty"`
	ApplyPatch *ApplyPatchParams `json:"apply_patch,omitempty"`
	Run        *RunParams        `json:"run,omitempty"`
}

// Result is one record per executed request.
type Result struct {
	RequestID string    `json:"request_id"`
	Kind      Kind      `json:"kind"`
	Success   bool      `json:"success"`
	Started   time.Time `json:"started"`
	Ended     time.Time `json:"ended"`
	Duration  time.Duration `json:"duration"`

	ListFiles  *ListFilesData  `json:"list_files,omitempty"`
	ReadFile   *ReadFileData   `json:"read_file,omitempty"`
	Search     *SearchData     `json:"search,omitempty"`
	ApplyPatch *ApplyPatchData `json:"apply_patch,omitempty"`
	Run        *RunData        `json:"run,omitempty"`

	Error *ToolError `json:"error,omitempty"`
}
