package provider

import "context"

// Chat message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// FunctionCall carries the name and raw argument text of a requested call.
// Arguments is the provider's JSON string; it is only guaranteed to be
// complete (and therefore parseable) once the turn has finished.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a single tool invocation requested by the model
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// ChatMessage is one turn of a conversation. Tool-role messages answer a
// prior assistant tool call and must carry its ToolCallID.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// Usage is the provider's token accounting for a completion. Streamed
// completions may report all zeros when the upstream omits usage.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ModelResponse is the outcome of a single completion
type ModelResponse struct {
	Message      ChatMessage
	FinishReason string
	Usage        Usage
}

// HasToolCalls reports whether the model requested any tool invocations
func (r ModelResponse) HasToolCalls() bool {
	return len(r.Message.ToolCalls) > 0
}

// StreamSnapshot is a cumulative view of an in-flight completion: Content
// is the full text emitted so far and ToolCalls the full list assembled so
// far. Tool call IDs and names are stable once set; argument text only
// grows. The final snapshot has Done=true.
type StreamSnapshot struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        Usage
	Done         bool
	Err          error
}

// ToolSchema describes one callable tool in the function-calling envelope
// offered to the model. Parameters is a JSON-Schema-shaped map.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// ModelProvider abstracts an LLM chat-completions backend.
type ModelProvider interface {
	// ChatCompletion performs one completion over the full message history
	// with the given tool schemas offered under automatic tool choice.
	ChatCompletion(ctx context.Context, messages []ChatMessage, tools []ToolSchema) (ModelResponse, error)

	// ChatCompletionStream performs one completion and yields cumulative
	// snapshots as fragments arrive. The channel is closed after the final
	// snapshot (Done=true) or a snapshot carrying Err.
	ChatCompletionStream(ctx context.Context, messages []ChatMessage, tools []ToolSchema) (<-chan StreamSnapshot, error)
}
