package providers

import "context"

// Provider is the uniform chat capability over one vendor dialect.
// The runtime never sees vendor wire formats: messages go in and come back
// in the flat shape below, and tool-call arguments stay raw JSON strings
// until the runtime decodes them.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	ModelName() string
	Name() string
}

// Message is one turn in the running conversation.
// Roles: system, user, assistant, tool.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a single tool invocation requested by the model.
// Arguments is the vendor's raw JSON string; decode failures are the
// caller's concern (the handler's required-field check produces the
// user-visible error, not the decoder).
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition is the dialect-neutral tool description. Each provider
// translates InputSchema into its vendor envelope.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// ChatRequest is a single batch chat call.
type ChatRequest struct {
	Messages  []Message
	Tools     []ToolDefinition
	Model     string // empty = provider default
	MaxTokens int    // 0 = provider default
}

// ChatResponse is the uniform result of one assistant turn.
// AssistantMessage is ready to append to the running message list
// regardless of which dialect produced it.
type ChatResponse struct {
	Content          string
	ToolCalls        []ToolCall
	AssistantMessage Message
	Usage            Usage
}

// Usage reports token consumption; zero when the vendor omits it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func assistantMessage(content string, calls []ToolCall) Message {
	return Message{Role: "assistant", Content: content, ToolCalls: calls}
}
