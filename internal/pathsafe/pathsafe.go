// Package pathsafe resolves user- or LLM-supplied paths into a
// workspace-rooted absolute path, rejecting escapes and symlinks. It
// generalizes the teacher's planner/utils/path.go (IsValidFilePath,
// SanitizeInputPath) into the full containment + symlink-walk discipline
// the tool layer requires.
package pathsafe

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrorKind is the closed set of ways path resolution can fail.
type ErrorKind string

const (
	ErrPathEscape    ErrorKind = "path_escape"
	ErrSymlinkBlocked ErrorKind = "symlink_blocked"
)

// Error reports a rejected path along with the offending kind.
type Error struct {
	Kind ErrorKind
	Path string
}

func (e *Error) Error() string {
	return fmt.Sprintf("pathsafe: %s: %s", e.Kind, e.Path)
}

// wellKnownPrefixes are absolute or repo-relative prefixes that map onto
// the workspace root itself, stripped before joining.
var wellKnownPrefixes = []string{"/workspace/repo", "/workspace", "workspace/", "repo/"}

func stripWellKnownPrefix(p string) string {
	for _, prefix := range wellKnownPrefixes {
		if p == strings.TrimSuffix(prefix, "/") {
			return ""
		}
		if strings.HasPrefix(p, prefix) {
			return strings.TrimPrefix(p, prefix)
		}
	}
	return p
}

// Resolve joins userPath onto root, canonicalizes it, and rejects any
// result that escapes root. When allowSymlinks is false, every path
// component of the canonicalized result is walked and rejected if it is a
// symlink — note the canonicalization happens first, so a symlink whose
// target stays inside root is allowed when the walk sees a symlink-free
// canonical path, matching the source behavior exactly.
func Resolve(root, userPath string, allowSymlinks bool) (string, error) {
	canonicalRoot, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return "", fmt.Errorf("pathsafe: resolving root: %w", err)
	}

	stripped := stripWellKnownPrefix(userPath)
	stripped = strings.TrimPrefix(stripped, "/")

	joined := filepath.Join(canonicalRoot, stripped)
	canonical := filepath.Clean(joined)

	rel, err := filepath.Rel(canonicalRoot, canonical)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &Error{Kind: ErrPathEscape, Path: userPath}
	}

	if !allowSymlinks {
		if err := rejectSymlinkComponents(canonicalRoot, canonical); err != nil {
			return "", err
		}
	}

	return canonical, nil
}

// rejectSymlinkComponents walks every path component between root and
// canonical (inclusive) and fails if any component that exists on disk is
// itself a symlink.
func rejectSymlinkComponents(root, canonical string) error {
	rel, err := filepath.Rel(root, canonical)
	if err != nil {
		return &Error{Kind: ErrPathEscape, Path: canonical}
	}
	if rel == "." {
		return nil
	}

	parts := strings.Split(rel, string(filepath.Separator))
	cur := root
	for _, part := range parts {
		cur = filepath.Join(cur, part)
		info, err := os.Lstat(cur)
		if err != nil {
			// Component does not exist yet (e.g. a file about to be
			// created by APPLY_PATCH) — nothing to reject.
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return &Error{Kind: ErrSymlinkBlocked, Path: canonical}
		}
	}
	return nil
}

// skipDirNames are build/VCS directories the glob helper never descends
// into or returns matches from.
var skipDirNames = map[string]bool{
	".git":           true,
	".pytest_cache":  true,
	"__pycache__":    true,
	"build":          true,
}

// Glob enumerates files under root matching pattern (a shell-style glob
// relative to root, e.g. "**/*.go"), filtering out hidden entries, the
// well-known build/VCS directories, and symlinks. Results are
// workspace-relative and sorted.
func Glob(root, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	recursive := strings.Contains(pattern, "**")

	var matches []string
	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // best-effort enumeration, skip unreadable entries
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return nil
		}

		name := d.Name()
		if strings.HasPrefix(name, ".") || skipDirNames[name] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !recursive {
				// Default pattern matches a single level only.
				return nil
			}
			return nil
		}

		ok, matchErr := matchGlob(pattern, rel, recursive)
		if matchErr != nil {
			return matchErr
		}
		if ok {
			matches = append(matches, filepath.ToSlash(rel))
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("pathsafe: glob %q under %q: %w", pattern, root, walkErr)
	}

	sort.Strings(matches)
	return matches, nil
}

func matchGlob(pattern, rel string, recursive bool) (bool, error) {
	slashRel := filepath.ToSlash(rel)
	if recursive {
		base := strings.TrimSuffix(strings.TrimPrefix(pattern, "**/"), "")
		return filepath.Match(base, filepath.Base(slashRel))
	}
	if !strings.Contains(pattern, "/") {
		// Single-level pattern: only match files directly under root.
		if strings.Contains(slashRel, "/") {
			return false, nil
		}
		return filepath.Match(pattern, slashRel)
	}
	return filepath.Match(pattern, slashRel)
}
