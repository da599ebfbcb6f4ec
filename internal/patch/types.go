// Package patch parses, validates, normalizes, and applies unified-diff
// patches, including a handful of alternate "envelope" dialects a model
// might emit instead of a canonical diff. The normalization pipeline is a
// left-to-right chain of pure functions retried against a dry-run apply,
// generalizing the teacher's planner/handlers/diff_patch.go (which fixes
// up agent-generated diffs ad hoc inside one handler) into the named
// pipeline stages the patch engine component requires.
package patch

// LineKind classifies one body line of a hunk.
type LineKind int

const (
	LineContext LineKind = iota
	LineRemoval
	LineAddition
	LineNoEOF
)

// Line is one body line of a hunk.
type Line struct {
	Kind LineKind
	Text string
}

// Hunk is a contiguous block of a unified diff with its own old/new line
// coordinates.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// DevNull is the sentinel path unified diffs use for file create/delete.
const DevNull = "/dev/null"

// FilePatch is one file's worth of hunks.
type FilePatch struct {
	OldPath string
	NewPath string
	Hunks   []Hunk
}

// IsCreate reports whether this patch creates a new file.
func (f FilePatch) IsCreate() bool { return f.OldPath == DevNull }

// IsDelete reports whether this patch deletes a file.
func (f FilePatch) IsDelete() bool { return f.NewPath == DevNull }

// TargetPath returns the path this patch ultimately writes to, i.e. the
// new path unless the file is being deleted.
func (f FilePatch) TargetPath() string {
	if f.IsDelete() {
		return f.OldPath
	}
	return f.NewPath
}

// Patch is the in-memory representation of a full unified diff: a list of
// per-file patches.
type Patch struct {
	Files []FilePatch
}

// ChangedFiles returns one path per file patch: its new path, or its old
// path when the new path is /dev/null (a deleted file). It backs the
// changed_files field of APPLY_PATCH's result.
func (p Patch) ChangedFiles() []string {
	var out []string
	for _, f := range p.Files {
		if f.NewPath != "" && f.NewPath != DevNull {
			out = append(out, f.NewPath)
		} else if f.OldPath != "" && f.OldPath != DevNull {
			out = append(out, f.OldPath)
		}
	}
	return out
}

// ErrorKind is the single closed error kind the patch engine returns for
// every unapplicable patch, per the external error taxonomy.
type ErrorKind string

// ErrPatchHunkFail is the sole patch application error kind; the external
// tool's stderr is carried in Error.Detail.
const ErrPatchHunkFail ErrorKind = "patch_hunk_fail"

// Error wraps a failed patch application.
type Error struct {
	Kind   ErrorKind
	Detail string
}

func (e *Error) Error() string {
	return "patch: " + string(e.Kind) + ": " + e.Detail
}
