package patch

import (
	"fmt"
	"strings"
)

// envelopeToUnifiedDiff lowers a "*** Begin Patch / *** End Patch"
// envelope into a canonical unified diff string, so the rest of the
// pipeline (which operates on unified-diff text) never needs to know the
// envelope dialect exists. Supported per-file directives: "*** Add File:",
// "*** Update File:", "*** Delete File:", each followed by "@@" hunk
// bodies using the same context/+/- line prefixes as a normal diff.
func envelopeToUnifiedDiff(text string) (string, error) {
	lines := strings.Split(text, "\n")
	var b strings.Builder

	var oldPath, newPath string
	var hunkLines []string
	flush := func() {
		if oldPath == "" && newPath == "" {
			return
		}
		fmt.Fprintf(&b, "--- %s\n", oldPath)
		fmt.Fprintf(&b, "+++ %s\n", newPath)
		b.WriteString("@@ -1,1 +1,1 @@\n")
		for _, hl := range hunkLines {
			b.WriteString(hl)
			b.WriteString("\n")
		}
		oldPath, newPath = "", ""
		hunkLines = nil
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "*** Begin Patch" || trimmed == "*** End Patch":
			continue
		case strings.HasPrefix(trimmed, "*** Add File: "):
			flush()
			oldPath = DevNull
			newPath = strings.TrimPrefix(trimmed, "*** Add File: ")
		case strings.HasPrefix(trimmed, "*** Update File: "):
			flush()
			path := strings.TrimPrefix(trimmed, "*** Update File: ")
			oldPath, newPath = path, path
		case strings.HasPrefix(trimmed, "*** Delete File: "):
			flush()
			oldPath = strings.TrimPrefix(trimmed, "*** Delete File: ")
			newPath = DevNull
		case trimmed == "@@" || strings.HasPrefix(trimmed, "@@ "):
			continue
		default:
			if oldPath != "" || newPath != "" {
				hunkLines = append(hunkLines, line)
			}
		}
	}
	flush()

	if b.Len() == 0 {
		return "", fmt.Errorf("patch: envelope contained no file sections")
	}
	return b.String(), nil
}
