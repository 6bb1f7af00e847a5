package domain

// Envelope kinds that are not tool names.
const (
	KindChat  = "chat"
	KindError = "error"
)

// FallbackText replaces an empty reply so callers never see blank text.
const FallbackText = "I'm sorry, I couldn't generate a response. Please try again."

// Envelope is the uniform result of every tool and of the orchestrator.
// WhatsAppText holds raw UTF-8; escaping happens at the transport edge.
type Envelope struct {
	Kind         string `json:"kind"`
	Payload      any    `json:"payload,omitempty"`
	Text         string `json:"text"`
	WhatsAppText string `json:"whatsapp_text,omitempty"`
}

// NewEnvelope builds an envelope for kind.
func NewEnvelope(kind string, payload any, text, whatsapp string) *Envelope {
	return &Envelope{Kind: kind, Payload: payload, Text: text, WhatsAppText: whatsapp}
}

// Finalize fills the invariants an envelope must satisfy before it leaves
// the core: a kind and non-empty text.
func (e *Envelope) Finalize() *Envelope {
	if e.Kind == "" {
		e.Kind = KindChat
	}
	if e.Text == "" {
		e.Text = FallbackText
	}
	return e
}

// ChannelText returns the WhatsApp rendering, falling back to Text.
func (e *Envelope) ChannelText() string {
	if e.WhatsAppText != "" {
		return e.WhatsAppText
	}
	return e.Text
}
