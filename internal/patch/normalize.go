package patch

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Normalizer is a pure function string -> (string, changed), one stage of
// the patch engine's pipeline. The engine re-invokes dry-run apply between
// stages rather than the normalizer doing so itself.
type Normalizer func(text string, repoRoot string) (string, bool)

// Pipeline is the ordered list of normalizers tried, left to right, for
// unified-diff input that does not apply as-is.
var Pipeline = []Normalizer{
	normalizeSplitHeaders,
	stripFencesAndPrefixes,
	addLeadingSpaceToContext,
	rewriteFilePaths,
	recomputeHunkCounts,
	repairNoEOFMarkers,
}

// normalizeSplitHeaders joins a bare "---" or "+++" line with the
// following line, a shape seen when a model emits the marker and the path
// on separate lines.
func normalizeSplitHeaders(text string, _ string) (string, bool) {
	lines := strings.Split(text, "\n")
	var out []string
	changed := false
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if (line == "---" || line == "+++") && i+1 < len(lines) {
			out = append(out, line+" "+lines[i+1])
			i++
			changed = true
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n"), changed
}

var fenceRe = regexp.MustCompile("^```\\w*$")

// stripFencesAndPrefixes removes Markdown code fences and stray ':' / '>'
// quoting prefixes a model sometimes wraps a diff in.
func stripFencesAndPrefixes(text string, _ string) (string, bool) {
	lines := strings.Split(text, "\n")
	var out []string
	changed := false
	for _, line := range lines {
		if fenceRe.MatchString(strings.TrimSpace(line)) {
			changed = true
			continue
		}
		trimmed := line
		for strings.HasPrefix(trimmed, ":") || strings.HasPrefix(trimmed, "> ") {
			trimmed = strings.TrimPrefix(trimmed, ":")
			trimmed = strings.TrimPrefix(trimmed, "> ")
			changed = true
		}
		out = append(out, trimmed)
	}
	return strings.Join(out, "\n"), changed
}

// addLeadingSpaceToContext adds a leading space to hunk body lines that
// are missing the context/+/- prefix a model omitted.
func addLeadingSpaceToContext(text string, _ string) (string, bool) {
	lines := strings.Split(text, "\n")
	inHunk := false
	changed := false
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "@@"):
			inHunk = true
		case strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "+++ "):
			inHunk = false
		case inHunk && line == "":
			inHunk = false
		case inHunk:
			if !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "+") &&
				!strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "\\") {
				lines[i] = " " + line
				changed = true
			}
		}
	}
	return strings.Join(lines, "\n"), changed
}

var workspacePrefixRe = regexp.MustCompile(`^/?workspace/[^/]*/repo/|^/?workspace/|^workspace/`)

// rewriteFilePaths strips /workspace/.../repo/ and workspace/... prefixes
// from diff header paths, then, if the remaining path does not exist
// under repoRoot but src/<path>, repo/<path>, or repo/src/<path> does,
// substitutes the path that does exist.
func rewriteFilePaths(text string, repoRoot string) (string, bool) {
	lines := strings.Split(text, "\n")
	changed := false
	for i, line := range lines {
		for _, prefix := range []string{"--- ", "+++ "} {
			if !strings.HasPrefix(line, prefix) {
				continue
			}
			rest := strings.TrimPrefix(line, prefix)
			tabIdx := strings.IndexByte(rest, '\t')
			suffix := ""
			if tabIdx != -1 {
				suffix = rest[tabIdx:]
				rest = rest[:tabIdx]
			}
			rewritten, didChange := rewriteOnePath(rest, repoRoot)
			if didChange {
				lines[i] = prefix + rewritten + suffix
				changed = true
			}
		}
	}
	return strings.Join(lines, "\n"), changed
}

func rewriteOnePath(path, repoRoot string) (string, bool) {
	if path == DevNull {
		return path, false
	}
	ab := strings.TrimPrefix(stripDiffPrefix(path), "")
	if workspacePrefixRe.MatchString(path) {
		stripped := workspacePrefixRe.ReplaceAllString(path, "")
		return reprefixIfMissing(stripped, repoRoot)
	}
	return reprefixIfMissing(ab, repoRoot)
}

func reprefixIfMissing(path, repoRoot string) (string, bool) {
	if repoRoot == "" {
		return path, false
	}
	if fileExists(filepath.Join(repoRoot, path)) {
		return path, false
	}
	for _, candidate := range []string{
		filepath.Join("src", path),
		filepath.Join("repo", path),
		filepath.Join("repo", "src", path),
	} {
		if fileExists(filepath.Join(repoRoot, candidate)) {
			return filepath.ToSlash(candidate), true
		}
	}
	return path, false
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// recomputeHunkCounts rewrites each hunk header's ,count fields from the
// hunk's actual body lines, correcting miscounted headers a model emits.
func recomputeHunkCounts(text string, _ string) (string, bool) {
	lines := strings.Split(text, "\n")
	changed := false
	hunkStart := -1
	flush := func(end int) {
		if hunkStart == -1 {
			return
		}
		oldCount, newCount := 0, 0
		for _, l := range lines[hunkStart+1 : end] {
			switch {
			case strings.HasPrefix(l, "-"):
				oldCount++
			case strings.HasPrefix(l, "+"):
				newCount++
			case strings.HasPrefix(l, " "):
				oldCount++
				newCount++
			}
		}
		h, err := parseHunkHeader(lines[hunkStart])
		if err != nil {
			return
		}
		newHeader := fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, oldCount, h.NewStart, newCount)
		if newHeader != lines[hunkStart] {
			lines[hunkStart] = newHeader
			changed = true
		}
	}
	for i, line := range lines {
		if strings.HasPrefix(line, "@@") {
			flush(i)
			hunkStart = i
		} else if strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "+++ ") || line == "" {
			flush(i)
			hunkStart = -1
		}
	}
	flush(len(lines))
	return strings.Join(lines, "\n"), changed
}

// repairNoEOFMarkers walks each hunk and inserts a "\ No newline at end of
// file" line after the last old/new line when the underlying file's byte
// stream lacks a final newline.
func repairNoEOFMarkers(text string, repoRoot string) (string, bool) {
	if repoRoot == "" {
		return text, false
	}
	p, err := ParseUnifiedDiff(text)
	if err != nil {
		return text, false
	}
	changed := false
	lines := strings.Split(text, "\n")

	for _, fp := range p.Files {
		if fp.IsDelete() {
			continue
		}
		target := filepath.Join(repoRoot, fp.TargetPath())
		data, readErr := os.ReadFile(target)
		if readErr != nil || len(data) == 0 || data[len(data)-1] == '\n' {
			continue
		}
		marker := "\\ No newline at end of file"
		for i := len(lines) - 1; i >= 0; i-- {
			if strings.HasPrefix(lines[i], "+") && !strings.Contains(lines[i], marker) {
				if i+1 >= len(lines) || lines[i+1] != marker {
					lines = append(lines[:i+1], append([]string{marker}, lines[i+1:]...)...)
					changed = true
				}
				break
			}
		}
	}
	return strings.Join(lines, "\n"), changed
}

// contextPatchGreedyApply applies a context patch (hunks introduced by
// "@@" without numeric coordinates) by locating each hunk's context/
// removal block inside the current file content via a character-level
// diff match, tolerating unrelated interspersed lines, then splicing in the
// additions. Returns the new file contents per changed path.
func contextPatchGreedyApply(text string, repoRoot string) (map[string]string, error) {
	sections := splitContextPatchSections(text)
	if len(sections) == 0 {
		return nil, fmt.Errorf("patch: no file sections found in context patch")
	}

	results := make(map[string]string)
	dmp := diffmatchpatch.New()

	for path, hunks := range sections {
		full := filepath.Join(repoRoot, path)
		original, err := os.ReadFile(full)
		if err != nil {
			return nil, fmt.Errorf("patch: reading %s for context apply: %w", path, err)
		}
		content := string(original)

		for _, hunk := range hunks {
			var before, after []string
			for _, l := range hunk.Lines {
				switch l.Kind {
				case LineContext:
					before = append(before, l.Text)
					after = append(after, l.Text)
				case LineRemoval:
					before = append(before, l.Text)
				case LineAddition:
					after = append(after, l.Text)
				}
			}
			beforeBlock := strings.Join(before, "\n")
			afterBlock := strings.Join(after, "\n")

			idx := strings.Index(content, beforeBlock)
			if idx == -1 {
				// Fall back to a fuzzy match via go-diff's character diff to
				// tolerate unrelated interspersed lines the model produced.
				diffs := dmp.DiffMain(content, beforeBlock, false)
				best := bestMatchOffset(diffs, content)
				if best == -1 {
					return nil, fmt.Errorf("patch: could not locate context for hunk in %s", path)
				}
				idx = best
			}
			content = content[:idx] + afterBlock + content[idx+len(beforeBlock):]
		}
		results[path] = content
	}
	return results, nil
}

// bestMatchOffset approximates the anchor offset of a near-match using the
// character-level diff, returning -1 when nothing usable is found.
func bestMatchOffset(diffs []diffmatchpatch.Diff, content string) int {
	offset := 0
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual && len(d.Text) > 0 {
			return strings.Index(content, d.Text)
		}
		offset += len(d.Text)
	}
	return -1
}

type contextHunk struct {
	Lines []Line
}

func splitContextPatchSections(text string) map[string][]contextHunk {
	sections := make(map[string][]contextHunk)
	var currentFile string
	var currentHunk *contextHunk

	flush := func() {
		if currentFile != "" && currentHunk != nil {
			sections[currentFile] = append(sections[currentFile], *currentHunk)
		}
		currentHunk = nil
	}

	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, "--- "):
			flush()
			currentFile = stripDiffPrefix(strings.TrimPrefix(line, "--- "))
		case strings.HasPrefix(line, "+++ "):
			currentFile = stripDiffPrefix(strings.TrimPrefix(line, "+++ "))
		case strings.HasPrefix(line, "@@"):
			flush()
			currentHunk = &contextHunk{}
		case currentHunk != nil && strings.HasPrefix(line, "+"):
			currentHunk.Lines = append(currentHunk.Lines, Line{Kind: LineAddition, Text: line[1:]})
		case currentHunk != nil && strings.HasPrefix(line, "-"):
			currentHunk.Lines = append(currentHunk.Lines, Line{Kind: LineRemoval, Text: line[1:]})
		case currentHunk != nil && strings.HasPrefix(line, " "):
			currentHunk.Lines = append(currentHunk.Lines, Line{Kind: LineContext, Text: line[1:]})
		}
	}
	flush()
	return sections
}

// contentHash returns the hex-encoded SHA-256 digest of s.
func contentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", sum)
}
