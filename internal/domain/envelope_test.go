package domain

import (
	"encoding/json"
	"testing"
)

func TestEnvelopeFinalizeFillsFallback(t *testing.T) {
	env := (&Envelope{}).Finalize()
	if env.Kind != KindChat {
		t.Errorf("Kind = %q, want %q", env.Kind, KindChat)
	}
	if env.Text != FallbackText {
		t.Errorf("Text = %q, want fallback", env.Text)
	}
}

func TestEnvelopeChannelText(t *testing.T) {
	env := NewEnvelope("list_leads", nil, "plain", "")
	if got := env.ChannelText(); got != "plain" {
		t.Errorf("ChannelText = %q, want plain", got)
	}
	env.WhatsAppText = "*bold*"
	if got := env.ChannelText(); got != "*bold*" {
		t.Errorf("ChannelText = %q, want *bold*", got)
	}
}

func TestResponseFromEnvelopeNeverEmpty(t *testing.T) {
	resp := ResponseFromEnvelope(&Envelope{Kind: "get_invoice"})
	if resp.ResponseText == "" || resp.WhatsAppText == "" {
		t.Fatalf("empty response: %+v", resp)
	}
	if resp.Kind != "get_invoice" {
		t.Errorf("Kind = %q", resp.Kind)
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"kind", "response_text", "response_value", "whatsapp_text"} {
		if _, ok := fields[k]; !ok {
			t.Errorf("missing field %q in %s", k, data)
		}
	}
}

func TestModelTurnKind(t *testing.T) {
	if (&ModelTurn{Text: "hi"}).Kind() != TurnText {
		t.Error("text turn misclassified")
	}
	turn := &ModelTurn{ToolCalls: []ToolCall{{Name: "list_leads"}}}
	if turn.Kind() != TurnToolRequests {
		t.Error("tool turn misclassified")
	}
}

func TestConversationAppend(t *testing.T) {
	conv := NewConversation("sys", "hello")
	conv.AppendTurn(&ModelTurn{ToolCalls: []ToolCall{{ID: "c1", Name: "list_leads"}}})
	conv.AppendResults([]ToolResult{{ToolCallID: "c1", Name: "list_leads", Content: "2 leads"}})

	if len(conv.Messages) != 4 {
		t.Fatalf("messages = %d, want 4", len(conv.Messages))
	}
	if conv.Messages[0].Role != RoleSystem || conv.Messages[0].Content != "sys" {
		t.Errorf("unexpected system message %+v", conv.Messages[0])
	}
	last := conv.Messages[3]
	if last.Role != RoleTool || last.ToolCallID != "c1" || last.Content != "2 leads" {
		t.Errorf("unexpected tool message %+v", last)
	}
}

func TestContextCredentials(t *testing.T) {
	ctx := ContextWithCredentials(t.Context(), Credentials{Token: "tok", ClientID: "cid"})
	got := CredentialsFromContext(ctx)
	if got.Token != "tok" || got.ClientID != "cid" {
		t.Errorf("got %+v", got)
	}
	if !CredentialsFromContext(t.Context()).IsZero() {
		t.Error("empty context should yield zero credentials")
	}
}

func TestFranchiseAdd(t *testing.T) {
	total := BusinessSummary{}
	total.Add(BusinessSummary{TotalLeads: 10, TotalRevenue: 1000})
	total.Add(BusinessSummary{TotalLeads: 10, TotalRevenue: 1000})
	if total.TotalLeads != 20 || total.TotalRevenue != 2000 {
		t.Errorf("got %+v", total)
	}
}
