package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/config"
)

func newTestLogger() *slog.Logger {
	return slog.Default()
}

var testTools = []domain.ToolSchema{{
	Name:        "list_leads",
	Description: "List leads",
	Parameters:  json.RawMessage(`{"type":"object","properties":{"business_id":{"type":"integer"}},"required":["business_id"]}`),
}}

func newOpenAITestServer(t *testing.T, handle func(req openaiRequest) openaiResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth: %s", r.Header.Get("Authorization"))
		}
		var req openaiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(handle(req))
	}))
}

func newTestOpenAI(url string) *OpenAIProvider {
	return NewOpenAIProvider(config.ProviderConfig{
		Name:    "openai",
		BaseURL: url,
		APIKey:  "test-key",
		Model:   "gpt-4o",
	}, newTestLogger())
}

func TestOpenAISendText(t *testing.T) {
	server := newOpenAITestServer(t, func(req openaiRequest) openaiResponse {
		if req.Model != "gpt-4o" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %+v", req.Messages)
		}
		if req.ToolChoice != "auto" || len(req.Tools) != 1 || req.Tools[0].Function.Name != "list_leads" {
			t.Errorf("tools not forwarded: %+v", req.Tools)
		}
		return openaiResponse{
			Choices: []openaiChoice{{Message: openaiMessage{Role: "assistant", Content: "Hello!"}}},
			Usage:   openaiUsage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12},
		}
	})
	defer server.Close()

	turn, err := newTestOpenAI(server.URL).Send(context.Background(),
		domain.NewConversation("system prompt", "hi for business Id 1"), testTools)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if turn.Kind() != domain.TurnText || turn.Text != "Hello!" {
		t.Errorf("turn = %+v", turn)
	}
	if turn.Usage.TotalTokens != 12 {
		t.Errorf("TotalTokens = %d", turn.Usage.TotalTokens)
	}
}

func TestOpenAISendToolCalls(t *testing.T) {
	server := newOpenAITestServer(t, func(openaiRequest) openaiResponse {
		return openaiResponse{Choices: []openaiChoice{{Message: openaiMessage{
			Role: "assistant",
			ToolCalls: []openaiToolCall{
				{ID: "call_1", Type: "function", Function: openaiToolCallFunction{Name: "list_leads", Arguments: `{"business_id":7}`}},
				{ID: "call_2", Type: "function", Function: openaiToolCallFunction{Name: "get_help_guide", Arguments: ""}},
			},
		}}}}
	})
	defer server.Close()

	turn, err := newTestOpenAI(server.URL).Send(context.Background(), domain.NewConversation("", "list"), testTools)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if turn.Kind() != domain.TurnToolRequests || len(turn.ToolCalls) != 2 {
		t.Fatalf("turn = %+v", turn)
	}
	if turn.ToolCalls[0].ID != "call_1" || string(turn.ToolCalls[0].Arguments) != `{"business_id":7}` {
		t.Errorf("call 0 = %+v", turn.ToolCalls[0])
	}
	if string(turn.ToolCalls[1].Arguments) != "{}" {
		t.Errorf("empty arguments should become {}, got %q", turn.ToolCalls[1].Arguments)
	}
}

func TestOpenAISendToolResults(t *testing.T) {
	server := newOpenAITestServer(t, func(req openaiRequest) openaiResponse {
		if len(req.Messages) != 4 {
			t.Fatalf("messages = %d, want 4", len(req.Messages))
		}
		assistant := req.Messages[2]
		if len(assistant.ToolCalls) != 1 || assistant.ToolCalls[0].Function.Arguments != `{"business_id":7}` {
			t.Errorf("assistant turn = %+v", assistant)
		}
		tool := req.Messages[3]
		if tool.Role != "tool" || tool.ToolCallID != "call_1" || tool.Content != "3 leads found" {
			t.Errorf("tool message = %+v", tool)
		}
		return openaiResponse{Choices: []openaiChoice{{Message: openaiMessage{Role: "assistant", Content: "done"}}}}
	})
	defer server.Close()

	conv := domain.NewConversation("sys", "list leads")
	conv.AppendTurn(&domain.ModelTurn{ToolCalls: []domain.ToolCall{
		{ID: "call_1", Name: "list_leads", Arguments: json.RawMessage(`{"business_id":7}`)},
	}})
	before := len(conv.Messages)

	turn, err := newTestOpenAI(server.URL).SendToolResults(context.Background(), conv, testTools,
		[]domain.ToolResult{{ToolCallID: "call_1", Name: "list_leads", Content: "3 leads found"}})
	if err != nil {
		t.Fatalf("SendToolResults: %v", err)
	}
	if turn.Text != "done" {
		t.Errorf("Text = %q", turn.Text)
	}
	if len(conv.Messages) != before {
		t.Error("provider must not modify the conversation")
	}
}

func TestOpenAIHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer server.Close()

	_, err := newTestOpenAI(server.URL).Send(context.Background(), domain.NewConversation("", "x"), nil)
	if !errors.Is(err, domain.ErrRateLimit) {
		t.Errorf("expected ErrRateLimit, got %v", err)
	}
}

func TestOpenAIMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	_, err := newTestOpenAI(server.URL).Send(context.Background(), domain.NewConversation("", "x"), nil)
	if !errors.Is(err, domain.ErrProviderError) {
		t.Errorf("expected ErrProviderError, got %v", err)
	}
}

func TestOpenAIDefaults(t *testing.T) {
	p := NewOpenAIProvider(config.ProviderConfig{}, newTestLogger())
	if p.baseURL != "https://api.openai.com/v1" || p.model != "gpt-4o" || p.Name() != "openai" {
		t.Errorf("defaults = %s %s %s", p.baseURL, p.model, p.Name())
	}
}

func TestFromOpenAIResponseNoChoices(t *testing.T) {
	turn := fromOpenAIResponse(openaiResponse{})
	if turn.Kind() != domain.TurnText || turn.Text != "" {
		t.Errorf("turn = %+v", turn)
	}
}
