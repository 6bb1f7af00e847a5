package domain

import "context"

// TurnKind tags a model turn.
type TurnKind int

const (
	TurnText TurnKind = iota
	TurnToolRequests
)

// ModelTurn is one model reply: either text or a batch of tool requests.
type ModelTurn struct {
	Text      string     `json:"text,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     Usage      `json:"usage"`
}

// Kind reports whether the turn requests tools.
func (t *ModelTurn) Kind() TurnKind {
	if len(t.ToolCalls) > 0 {
		return TurnToolRequests
	}
	return TurnText
}

// LLMProvider is the capability every model backend offers. Implementations
// read the conversation but never modify it.
type LLMProvider interface {
	// Send submits the conversation with the tool catalog.
	Send(ctx context.Context, conv *Conversation, tools []ToolSchema) (*ModelTurn, error)
	// SendToolResults submits the outcome of the last turn's tool requests.
	// conv already holds the assistant turn that requested them.
	SendToolResults(ctx context.Context, conv *Conversation, tools []ToolSchema, results []ToolResult) (*ModelTurn, error)
	// Name returns the provider's identifier (e.g., "openai", "gemini").
	Name() string
}
