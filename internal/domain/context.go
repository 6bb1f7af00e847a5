package domain

import "context"

type ctxKey string

const (
	requestIDCtxKey   ctxKey = "request_id"
	credentialsCtxKey ctxKey = "credentials"
	promptCtxKey      ctxKey = "prompt"
)

// Credentials identify the caller of a single inbound request.
type Credentials struct {
	Token    string
	ClientID string
}

// IsZero reports whether no credential was supplied.
func (c Credentials) IsZero() bool { return c.Token == "" && c.ClientID == "" }

// ContextWithRequestID returns a new context carrying the request ID (ULID).
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDCtxKey, requestID)
}

// RequestIDFromContext extracts the request ID from the context.
// Returns empty string if not set.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDCtxKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithCredentials scopes caller credentials to ctx. Backend clients
// read them per call, so nothing outlives the request.
func ContextWithCredentials(ctx context.Context, creds Credentials) context.Context {
	return context.WithValue(ctx, credentialsCtxKey, creds)
}

// CredentialsFromContext returns the credentials stored in ctx, if any.
func CredentialsFromContext(ctx context.Context) Credentials {
	if v, ok := ctx.Value(credentialsCtxKey).(Credentials); ok {
		return v
	}
	return Credentials{}
}

// ContextWithPrompt carries the raw user prompt down to tool wrappers.
func ContextWithPrompt(ctx context.Context, prompt string) context.Context {
	return context.WithValue(ctx, promptCtxKey, prompt)
}

// PromptFromContext returns the raw user prompt, or "".
func PromptFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(promptCtxKey).(string); ok {
		return v
	}
	return ""
}
