// Command repairbench runs one task attempt: clone and baseline-validate
// a pinned repository commit, then drive either the scripted self-test or
// an LLM-backed agent against its failing test suite inside a sandboxed
// checkout, emitting an append-only event log and one attempt record.
//
// This binary is a thin collaborator surface: it loads a task spec,
// wires the already-built components together, and writes the result.
// It does not discover task suites, aggregate attempts across tasks, or
// render reports — those are explicit non-goals left to the harness
// driving this binary.
package main

import (
	"os"

	"repairbench/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
