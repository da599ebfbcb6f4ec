// Package runid generates the opaque run and request identifiers used to
// name an attempt and to correlate tool-started/tool-finished events.
package runid

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a fresh, opaque, URL-safe run identifier. UUIDv4 satisfies
// the glossary's "ULID-like opaque string" requirement without pulling in
// a dedicated ULID dependency the corpus never uses.
func New() string {
	return uuid.New().String()
}

// ToolRequest synthesizes a request identifier of the shape
// "{run_id}-{step:04d}-{local_counter:02d}" for tool calls whose model
// output did not supply one, per the agent interface's fallback rule.
func ToolRequest(runID string, step int, localCounter int) string {
	return fmt.Sprintf("%s-%04d-%02d", runID, step, localCounter)
}
