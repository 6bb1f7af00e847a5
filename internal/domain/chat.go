package domain

// ChatRequest is one inbound operator request.
type ChatRequest struct {
	Prompt      string `json:"prompt"`
	BusinessID  int    `json:"business_id"`
	BearerToken string `json:"-"`
	ClientID    string `json:"-"`
}

// Credentials returns the caller credentials carried by the request.
func (r ChatRequest) Credentials() Credentials {
	return Credentials{Token: r.BearerToken, ClientID: r.ClientID}
}

// ChatResponse is the uniform reply to every chat entry point.
type ChatResponse struct {
	Kind          string `json:"kind"`
	ResponseText  string `json:"response_text"`
	ResponseValue any    `json:"response_value"`
	WhatsAppText  string `json:"whatsapp_text"`
	RequestID     string `json:"request_id,omitempty"`
	Turns         int    `json:"-"`
}

// ResponseFromEnvelope projects a finalized envelope onto the response shape.
func ResponseFromEnvelope(env *Envelope) *ChatResponse {
	env.Finalize()
	return &ChatResponse{
		Kind:          env.Kind,
		ResponseText:  env.Text,
		ResponseValue: env.Payload,
		WhatsAppText:  env.ChannelText(),
	}
}

// HistoryTurn is one earlier message of a website conversation. Role is
// "user", "model" or "assistant".
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
