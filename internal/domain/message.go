package domain

// Role constants for message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a single turn in a conversation.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Conversation is the request-local message history. It is owned by one
// orchestrator call and never shared or persisted.
type Conversation struct {
	Messages []Message `json:"messages"`
}

// NewConversation starts a conversation with an optional system prompt.
func NewConversation(system, user string) *Conversation {
	c := &Conversation{}
	if system != "" {
		c.Messages = append(c.Messages, Message{Role: RoleSystem, Content: system})
	}
	if user != "" {
		c.Messages = append(c.Messages, Message{Role: RoleUser, Content: user})
	}
	return c
}

// Append adds messages in order.
func (c *Conversation) Append(msgs ...Message) {
	c.Messages = append(c.Messages, msgs...)
}

// AppendTurn records a model turn as an assistant message.
func (c *Conversation) AppendTurn(turn *ModelTurn) {
	c.Messages = append(c.Messages, Message{
		Role:      RoleAssistant,
		Content:   turn.Text,
		ToolCalls: turn.ToolCalls,
	})
}

// AppendResults records tool results, one tool message per call.
func (c *Conversation) AppendResults(results []ToolResult) {
	for _, r := range results {
		c.Messages = append(c.Messages, Message{
			Role:       RoleTool,
			Content:    r.Content,
			Name:       r.Name,
			ToolCallID: r.ToolCallID,
		})
	}
}
