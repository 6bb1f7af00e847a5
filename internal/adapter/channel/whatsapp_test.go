package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qtick-agent/internal/adapter/tool"
	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/config"
)

// graphRecorder stands in for the Graph API and keeps every sent message.
type graphRecorder struct {
	mu   sync.Mutex
	auth []string
	sent []whatsappSendRequest
	path string
}

func (g *graphRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req whatsappSendRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	g.mu.Lock()
	g.auth = append(g.auth, r.Header.Get("Authorization"))
	g.sent = append(g.sent, req)
	g.path = r.URL.Path
	g.mu.Unlock()
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.out"}]}`))
}

func newTestWhatsApp(t *testing.T, secret string) (*WhatsAppChannel, *graphRecorder) {
	t.Helper()
	graph := &graphRecorder{}
	srv := httptest.NewServer(graph)
	t.Cleanup(srv.Close)

	ch := NewWhatsAppChannel(config.WhatsAppChannelConfig{
		Token:       "graph-token",
		PhoneID:     "phone-123",
		VerifyToken: "my-verify-token",
		AppSecret:   secret,
		APIBaseURL:  srv.URL,
	}, newTestLogger())
	return ch, graph
}

func textPayload(from, body string) []byte {
	return textPayloadID("wamid."+from+"."+body, from, body)
}

func textPayloadID(id, from, body string) []byte {
	payload := whatsappWebhookPayload{
		Object: "whatsapp_business_account",
		Entry: []whatsappEntry{{
			ID: "entry-1",
			Changes: []whatsappChange{{
				Field: "messages",
				Value: whatsappChangeValue{
					Contacts: []whatsappContact{{WaID: from, Profile: whatsappProfile{Name: "Alice"}}},
					Messages: []whatsappMessage{{From: from, ID: id, Type: "text", Text: &whatsappText{Body: body}}},
				},
			}},
		}},
	}
	b, _ := json.Marshal(payload)
	return b
}

func post(ch *WhatsAppChannel, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(string(body)))
	if signature != "" {
		req.Header.Set("X-Hub-Signature-256", signature)
	}
	rec := httptest.NewRecorder()
	ch.Handler().ServeHTTP(rec, req)
	return rec
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWhatsAppWebhookVerification(t *testing.T) {
	ch, _ := newTestWhatsApp(t, "")

	tests := []struct {
		query  string
		status int
		body   string
	}{
		{"hub.mode=subscribe&hub.verify_token=my-verify-token&hub.challenge=test-challenge", http.StatusOK, "test-challenge"},
		{"hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=x", http.StatusForbidden, ""},
		{"hub.mode=unsubscribe&hub.verify_token=my-verify-token&hub.challenge=x", http.StatusForbidden, ""},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		ch.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook?"+tt.query, nil))
		if rec.Code != tt.status {
			t.Errorf("%s: status = %d, want %d", tt.query, rec.Code, tt.status)
		}
		if tt.body != "" && rec.Body.String() != tt.body {
			t.Errorf("%s: body = %q, want %q", tt.query, rec.Body.String(), tt.body)
		}
	}
}

func TestWhatsAppReceiveTextMessage(t *testing.T) {
	ch, _ := newTestWhatsApp(t, "")
	var received []domain.InboundMessage
	ch.handler = func(_ context.Context, msg domain.InboundMessage) error {
		received = append(received, msg)
		return nil
	}

	rec := post(ch, textPayloadID("wamid.in", "6592701525", "  today's appointments "), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, received, 1)
	assert.Equal(t, domain.InboundMessage{
		ChannelName: "whatsapp",
		MessageID:   "wamid.in",
		SenderID:    "6592701525",
		SenderName:  "Alice",
		Content:     "today's appointments",
	}, received[0])
}

func TestWhatsAppSignature(t *testing.T) {
	ch, _ := newTestWhatsApp(t, "app-secret")
	calls := 0
	ch.handler = func(context.Context, domain.InboundMessage) error {
		calls++
		return nil
	}

	body := textPayload("6592701525", "hi")
	assert.Equal(t, http.StatusOK, post(ch, body, "sha256=deadbeef").Code)
	assert.Equal(t, http.StatusOK, post(ch, body, "").Code)
	assert.Equal(t, 0, calls, "unsigned or badly signed payloads are dropped")

	post(ch, body, sign("app-secret", body))
	assert.Equal(t, 1, calls)
}

func TestWhatsAppIgnoresNonText(t *testing.T) {
	ch, _ := newTestWhatsApp(t, "")
	calls := 0
	ch.handler = func(context.Context, domain.InboundMessage) error {
		calls++
		return nil
	}

	payload := `{"entry":[{"changes":[{"field":"messages","value":{"messages":[{"from":"1","type":"image"}]}},{"field":"statuses","value":{}}]}]}`
	post(ch, []byte(payload), "")
	post(ch, []byte("not json"), "")
	assert.Zero(t, calls)
}

func TestWhatsAppHelpCommand(t *testing.T) {
	ch, graph := newTestWhatsApp(t, "")
	ch.handler = func(context.Context, domain.InboundMessage) error {
		t.Fatal("help must not reach the model")
		return nil
	}

	post(ch, textPayload("6592701525", "/help"), "")

	require.Len(t, graph.sent, 1)
	assert.Equal(t, tool.HelpGuide().ChannelText(), graph.sent[0].Text.Body)
	assert.Equal(t, "6592701525", graph.sent[0].To)
	assert.Equal(t, "/v21.0/phone-123/messages", graph.path)
	assert.Equal(t, "Bearer graph-token", graph.auth[0])
}

func TestWhatsAppSend(t *testing.T) {
	ch, graph := newTestWhatsApp(t, "")
	err := ch.Send(context.Background(), domain.OutboundMessage{RecipientID: "6592701525", ReplyToID: "wamid.in", Content: "📋 done"})
	require.NoError(t, err)

	require.Len(t, graph.sent, 1)
	assert.Equal(t, whatsappSendRequest{
		MessagingProduct: "whatsapp",
		To:               "6592701525",
		Type:             "text",
		Context:          &whatsappSendContext{MessageID: "wamid.in"},
		Text:             &whatsappSendText{Body: "📋 done"},
	}, graph.sent[0])
}

func TestWhatsAppSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad token"}}`))
	}))
	defer srv.Close()

	ch := NewWhatsAppChannel(config.WhatsAppChannelConfig{Token: "x", PhoneID: "p", APIBaseURL: srv.URL}, newTestLogger())
	err := ch.Send(context.Background(), domain.OutboundMessage{RecipientID: "1", Content: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAuthInvalid)
	assert.Contains(t, err.Error(), "whatsapp API error 401")
}

func TestWhatsAppDropsRedelivery(t *testing.T) {
	ch, _ := newTestWhatsApp(t, "")
	calls := 0
	ch.handler = func(context.Context, domain.InboundMessage) error {
		calls++
		return nil
	}

	body := textPayloadID("wamid.dup", "6592701525", "list leads")
	post(ch, body, "")
	post(ch, body, "")
	post(ch, textPayloadID("wamid.other", "6592701525", "list leads"), "")
	assert.Equal(t, 2, calls)
}

func TestFirstDeliveryEvictsOldest(t *testing.T) {
	ch, _ := newTestWhatsApp(t, "")
	for i := 0; i < seenCapacity; i++ {
		require.True(t, ch.firstDelivery(fmt.Sprintf("id-%d", i)))
	}
	assert.False(t, ch.firstDelivery("id-0"))
	require.True(t, ch.firstDelivery("id-new"))
	assert.True(t, ch.firstDelivery("id-0"), "oldest id was evicted")
	assert.True(t, ch.firstDelivery(""))
	assert.True(t, ch.firstDelivery(""))
}

func TestPhoneReplies(t *testing.T) {
	ch, graph := newTestWhatsApp(t, "")
	phones := &fakePhones{
		mapping: map[string]int{"6592701525": 96},
		resp:    &domain.ChatResponse{Kind: "list_leads", ResponseText: "2 leads", WhatsAppText: "📋 *2 leads*"},
	}
	ch.handler = PhoneReplies(phones, ch, newTestLogger())

	post(ch, textPayload("6592701525", "list leads"), "")
	post(ch, textPayload("4400000000", "hello"), "")

	require.Len(t, graph.sent, 2)
	assert.Equal(t, "📋 *2 leads*", graph.sent[0].Text.Body, "raw text, not escaped")
	assert.Equal(t, notRegisteredText, graph.sent[1].Text.Body)
	assert.Equal(t, []string{"6592701525:list leads", "4400000000:hello"}, phones.processed)
}

func TestPhoneRepliesFailure(t *testing.T) {
	ch, graph := newTestWhatsApp(t, "")
	handler := PhoneReplies(&fakePhones{err: errors.New("boom")}, ch, newTestLogger())

	err := handler(context.Background(), domain.InboundMessage{ChannelName: "whatsapp", SenderID: "1", Content: "x"})
	require.NoError(t, err)
	require.Len(t, graph.sent, 1)
	assert.Equal(t, failureText, graph.sent[0].Text.Body)
}
