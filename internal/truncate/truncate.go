// Package truncate is the shared head/tail-preserving truncation helper:
// the agent loop's initial test output and the RUN tool's output both go
// through Lines rather than each growing its own ad-hoc clamp. The
// repository writes no LLM transcript log, and Chars has no caller.
package truncate

import (
	"fmt"
	"strings"
)

// Result is what every caller needs: the (possibly truncated) text and
// whether truncation actually happened.
type Result struct {
	Text      string
	Truncated bool
}

// Marker is the explicit text inserted where content was removed.
const Marker = "... [truncated] ..."

// Lines preserves the first headKeep and last tailKeep lines of text when
// its line count exceeds maxLines, inserting Marker between them.
func Lines(text string, maxLines, headKeep, tailKeep int) Result {
	all := strings.Split(text, "\n")
	if len(all) <= maxLines {
		return Result{Text: text, Truncated: false}
	}
	if headKeep+tailKeep >= len(all) {
		return Result{Text: text, Truncated: false}
	}

	head := all[:headKeep]
	tail := all[len(all)-tailKeep:]
	omitted := len(all) - headKeep - tailKeep

	var b strings.Builder
	b.WriteString(strings.Join(head, "\n"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s (%d lines omitted)\n", Marker, omitted))
	b.WriteString(strings.Join(tail, "\n"))

	return Result{Text: b.String(), Truncated: true}
}

// Chars preserves the first headKeep and last tailKeep characters of text
// when its length exceeds maxChars, for symmetric truncation of long
// string fields.
func Chars(text string, maxChars, headKeep, tailKeep int) Result {
	if len(text) <= maxChars {
		return Result{Text: text, Truncated: false}
	}
	if headKeep+tailKeep >= len(text) {
		return Result{Text: text, Truncated: false}
	}
	head := text[:headKeep]
	tail := text[len(text)-tailKeep:]
	omitted := len(text) - headKeep - tailKeep

	return Result{
		Text:      fmt.Sprintf("%s%s (%d chars omitted)%s", head, Marker, omitted, tail),
		Truncated: true,
	}
}
