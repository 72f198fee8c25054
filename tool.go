package toolforge

import (
	"context"
	"encoding/json"
	"time"
)

// Tool is the contract for an LLM-callable instrument. The factory exposes
// create_tool, test_tool and friends through it; it is provider-agnostic.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns a JSON Schema object describing the arguments.
	Parameters() map[string]any
	// Execute runs the tool with JSON arguments and returns a JSON result.
	Execute(ctx context.Context, argsJSON []byte) ([]byte, error)
}

// ToolMetadata is implemented by tools created with NewTool and provides optional per-tool settings.
// Registry uses Timeout() to override its default timeout when set.
type ToolMetadata interface {
	Timeout() time.Duration
	Tags() []string
	IsDangerous() bool
}

// ToolCall is a single execution request (as produced by the LLM).
type ToolCall struct {
	ID       string          `json:"id"`
	ToolName string          `json:"tool_name"`
	Args     json.RawMessage `json:"args"`
}

// ToolResult is the outcome of one ToolCall.
type ToolResult struct {
	CallID   string          `json:"call_id"`
	ToolName string          `json:"tool_name"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    error           `json:"-"`
}
