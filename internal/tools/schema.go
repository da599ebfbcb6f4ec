package tools

import "github.com/invopop/jsonschema"

// Definition is one tool's name, description, and JSON-schema parameters,
// enumerated to the LLM-driven agent on every turn.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

var schemaReflector = &jsonschema.Reflector{
	DoNotReference:            true,
	ExpandedStruct:            true,
	AllowAdditionalProperties: false,
}

func reflectSchema(v any) *jsonschema.Schema {
	return schemaReflector.Reflect(v)
}

// Definitions returns the five tool definitions with parameters reflected
// directly off the same Go structs the tool layer's request types use, so
// the schema can never drift from the real parameter shape.
func Definitions() []Definition {
	return []Definition{
		{
			Name:        string(KindListFiles),
			Description: "List workspace-relative file paths matching a glob under a safe-resolved root.",
			Parameters:  reflectSchema(ListFilesParams{}),
		},
		{
			Name:        string(KindReadFile),
			Description: "Read a text file, optionally restricted to a line range; long files are truncated with head/tail preserved.",
			Parameters:  reflectSchema(ReadFileParams{}),
		},
		{
			Name:        string(KindSearch),
			Description: "Search files under the workspace for a literal string or regex, with bounded matches and context lines.",
			Parameters:  reflectSchema(SearchParams{}),
		},
		{
			Name:        string(KindApplyPatch),
			Description: "Apply a unified diff to the workspace.",
			Parameters:  reflectSchema(ApplyPatchParams{}),
		},
		{
			Name:        string(KindRun),
			Description: "Execute a shell command in the sandbox with network disabled.",
			Parameters:  reflectSchema(RunParams{}),
		},
	}
}
