package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"repairbench/internal/agent/llmclient"
	"repairbench/internal/obslog"
	"repairbench/internal/tools"
)

const observationHistoryDepth = 8

// LLM is the model-driven agent variant: it builds a prompt from the
// current state, asks a completion client for one response, and maps
// that response onto a tool request or a stop action.
type LLM struct {
	Client      llmclient.Client
	SystemText  string
	MaxTokens   int
	Temperature float64
	Logger      *obslog.Logger
}

// NewLLM builds an LLM agent using the default system prompt.
func NewLLM(client llmclient.Client, logger *obslog.Logger) *LLM {
	return &LLM{
		Client:     client,
		SystemText: defaultSystemPrompt,
		MaxTokens:  4096,
		Logger:     logger,
	}
}

const defaultSystemPrompt = `You are repairing a failing test suite in a sandboxed checkout.
You have five tools: LIST_FILES, READ_FILE, SEARCH, APPLY_PATCH, RUN.
Call exactly one tool per turn. When the test command exits zero, you are done.
If you cannot make progress, say so plainly instead of repeating the same action.`

func (a *LLM) VariantName() string { return "llm" }

// FormatObservation renders the state the way the prompt embeds it: task
// id, step number, budgets, test command, last exit code, a bounded tail
// of test output, and a window of recent tool invocations.
func (a *LLM) FormatObservation(state *State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "task: %s\n", state.TaskID)
	fmt.Fprintf(&b, "step: %d (remaining: %d)\n", state.Step, state.StepsRemaining)
	fmt.Fprintf(&b, "seconds_remaining: %d\n", state.SecondsRemaining)
	fmt.Fprintf(&b, "test_command: %s\n", state.TestCommand)
	if state.LastTestHasRun {
		fmt.Fprintf(&b, "last_test_exit_code: %d\n", state.LastTestExitCode)
		fmt.Fprintf(&b, "last_test_output_tail:\n%s\n", state.LastTestOutputTail)
	} else {
		b.WriteString("last_test_exit_code: (none yet)\n")
	}

	start := len(state.History) - observationHistoryDepth
	if start < 0 {
		start = 0
	}
	if start < len(state.History) {
		b.WriteString("recent tool calls:\n")
		for _, h := range state.History[start:] {
			if h.Result.Error != nil {
				fmt.Fprintf(&b, "- %s: error %s: %s\n", h.Request.Kind, h.Result.Error.Kind, h.Result.Error.Message)
			} else {
				fmt.Fprintf(&b, "- %s: ok\n", h.Request.Kind)
			}
		}
	}

	if len(state.AppliedPatches) > 0 {
		b.WriteString("applied patches:\n")
		for _, p := range state.AppliedPatches {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	return b.String()
}

// Decide performs one synchronous completion and maps the response onto
// an Action, trying (in order): an explicit tool call, an embedded
// unified diff, a READ_FILE of an unread listed file, and finally giving
// up with the model's text as reasoning.
func (a *LLM) Decide(ctx context.Context, state *State) (Action, error) {
	req := llmclient.Request{
		System:      a.SystemText,
		Messages:    []llmclient.Message{{Role: llmclient.RoleUser, Content: a.FormatObservation(state)}},
		Tools:       toolSpecs(),
		MaxTokens:   a.MaxTokens,
		Temperature: a.Temperature,
	}

	resp, err := a.Client.Complete(ctx, req)
	if err != nil {
		return Action{Kind: ActionStop, StopReason: StopLLMError, Reasoning: err.Error()}, nil
	}

	if len(resp.ToolCalls) > 0 {
		return a.routeToolCall(state, resp.ToolCalls[0])
	}

	if diff, ok := extractUnifiedDiff(resp.Text); ok {
		return callTool(state, tools.Request{Kind: tools.KindApplyPatch, ApplyPatch: &tools.ApplyPatchParams{UnifiedDiff: diff}}), nil
	}

	if path, ok := firstUnreadListedFile(state); ok {
		return callTool(state, tools.Request{Kind: tools.KindReadFile, ReadFile: &tools.ReadFileParams{Path: path}}), nil
	}

	return Action{Kind: ActionStop, StopReason: StopAgentGaveUp, Reasoning: resp.Text}, nil
}

func toolSpecs() []llmclient.ToolSpec {
	defs := tools.Definitions()
	specs := make([]llmclient.ToolSpec, 0, len(defs))
	for _, d := range defs {
		specs = append(specs, llmclient.ToolSpec{Name: d.Name, Description: d.Description, Parameters: d.Parameters})
	}
	return specs
}

// rawToolCall tolerates the handful of shapes a tool-call argument blob
// can arrive in when a model emits it as free text rather than through a
// provider's structured tool-call field.
type rawToolCall struct {
	Name     string          `json:"name"`
	Tool     string          `json:"tool"`
	ToolName string          `json:"tool_name"`
	Args     json.RawMessage `json:"args"`
	Function *struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

func (a *LLM) routeToolCall(state *State, call llmclient.ToolCall) (Action, error) {
	name := call.Name
	argsText := call.Arguments

	if name == "" {
		var raw rawToolCall
		if err := json.Unmarshal([]byte(argsText), &raw); err == nil {
			switch {
			case raw.Function != nil && raw.Function.Name != "":
				name = raw.Function.Name
				argsText = raw.Function.Arguments
			case raw.Name != "":
				name = raw.Name
				argsText = string(raw.Args)
			case raw.Tool != "":
				name = raw.Tool
				argsText = string(raw.Args)
			case raw.ToolName != "":
				name = raw.ToolName
				argsText = string(raw.Args)
			}
		}
	}

	req, err := buildRequest(tools.Kind(name), argsText)
	if err != nil {
		return Action{Kind: ActionStop, StopReason: StopLLMError, Reasoning: err.Error()}, nil
	}
	req.RequestID = call.ID
	if req.RequestID == "" {
		req.RequestID = state.NextRequestID()
	}
	return Action{Kind: ActionCallTool, Request: req}, nil
}

func buildRequest(kind tools.Kind, argsText string) (*tools.Request, error) {
	if argsText == "" {
		argsText = "{}"
	}
	req := &tools.Request{Kind: kind}
	switch kind {
	case tools.KindListFiles:
		var p tools.ListFilesParams
		if err := json.Unmarshal([]byte(argsText), &p); err != nil {
			return nil, fmt.Errorf("parsing LIST_FILES arguments: %w", err)
		}
		req.ListFiles = &p
	case tools.KindReadFile:
		var p tools.ReadFileParams
		if err := json.Unmarshal([]byte(argsText), &p); err != nil {
			return nil, fmt.Errorf("parsing READ_FILE arguments: %w", err)
		}
		req.ReadFile = &p
	case tools.KindSearch:
		var p tools.SearchParams
		if err := json.Unmarshal([]byte(argsText), &p); err != nil {
			return nil, fmt.Errorf("parsing SEARCH arguments: %w", err)
		}
		req.Search = &p
	case tools.KindApplyPatch:
		var p tools.ApplyPatchParams
		if err := json.Unmarshal([]byte(argsText), &p); err != nil {
			return nil, fmt.Errorf("parsing APPLY_PATCH arguments: %w", err)
		}
		req.ApplyPatch = &p
	case tools.KindRun:
		var p tools.RunParams
		if err := json.Unmarshal([]byte(argsText), &p); err != nil {
			return nil, fmt.Errorf("parsing RUN arguments: %w", err)
		}
		req.Run = &p
	default:
		return nil, fmt.Errorf("unknown tool %q", kind)
	}
	return req, nil
}

var fencedDiffRe = regexp.MustCompile("(?s)```diff\\s*\\n(.*?)```")
var looseDiffRe = regexp.MustCompile(`(?s)(---\s[^\n]*\n\+\+\+\s[^\n]*\n.*)`)

// extractUnifiedDiff finds a diff block in free text, preferring a fenced
// ```diff block, falling back to the first stretch starting with "--- "
// and containing "+++ ".
func extractUnifiedDiff(text string) (string, bool) {
	if m := fencedDiffRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if strings.Contains(text, "--- ") && strings.Contains(text, "+++ ") {
		if m := looseDiffRe.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}

func firstUnreadListedFile(state *State) (string, bool) {
	listed := state.LastListedFiles()
	if listed == nil {
		return "", false
	}
	read := state.ReadPaths()
	for _, f := range listed {
		if !read[f] {
			return f, true
		}
	}
	return "", false
}
