package channel

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"qtick-agent/internal/adapter/tool"
	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/config"
)

const (
	defaultGraphURL    = "https://graph.facebook.com"
	graphAPIVersion    = "v21.0"
	defaultWebhookAddr = ":3335"

	// seenCapacity bounds the message ids remembered for redelivery checks.
	seenCapacity = 512
)

// WhatsAppChannel receives operator messages on the Cloud API webhook and
// replies through the Graph API. Meta redelivers webhooks it considers
// unacknowledged, so recently seen message ids are dropped.
type WhatsAppChannel struct {
	cfg     config.WhatsAppChannelConfig
	handler domain.MessageHandler
	logger  *slog.Logger
	client  *http.Client
	baseURL string

	server    *http.Server
	boundAddr string

	seenMu sync.Mutex
	seen   map[string]struct{}
	order  []string
}

// NewWhatsAppChannel creates a WhatsApp channel from its config section.
func NewWhatsAppChannel(cfg config.WhatsAppChannelConfig, logger *slog.Logger) *WhatsAppChannel {
	if cfg.WebhookAddr == "" {
		cfg.WebhookAddr = defaultWebhookAddr
	}
	w := &WhatsAppChannel{
		cfg:     cfg,
		logger:  logger,
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		seen:    make(map[string]struct{}, seenCapacity),
	}
	if w.baseURL == "" {
		w.baseURL = defaultGraphURL
	}
	return w
}

// Handler returns the webhook handler. Start must have set the message
// handler first.
func (w *WhatsAppChannel) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", w.handleWebhook)
	return mux
}

// Start begins the webhook server. Non-blocking (starts in goroutine).
func (w *WhatsAppChannel) Start(ctx context.Context, handler domain.MessageHandler) error {
	w.handler = handler

	w.server = &http.Server{
		Addr:              w.cfg.WebhookAddr,
		Handler:           w.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	ln, err := net.Listen("tcp", w.cfg.WebhookAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", w.cfg.WebhookAddr, err)
	}
	w.boundAddr = ln.Addr().String()

	go func() {
		w.logger.Info("whatsapp webhook started", "addr", w.boundAddr)
		if err := w.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			w.logger.Error("whatsapp webhook server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the webhook server.
func (w *WhatsAppChannel) Stop(ctx context.Context) error {
	if w.server == nil {
		return nil
	}
	return w.server.Shutdown(ctx)
}

// Send delivers a text message via the Graph API.
func (w *WhatsAppChannel) Send(ctx context.Context, msg domain.OutboundMessage) error {
	if msg.IsError {
		w.logger.Warn("whatsapp sending failure notice", "to", msg.RecipientID)
	}
	return w.sendMessage(ctx, msg.RecipientID, msg.ReplyToID, msg.Content)
}

// Name implements domain.Channel.
func (w *WhatsAppChannel) Name() string { return "whatsapp" }

// BoundAddr returns the actual bound address of the webhook server.
func (w *WhatsAppChannel) BoundAddr() string { return w.boundAddr }

func (w *WhatsAppChannel) handleWebhook(rw http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.handleVerification(rw, r)
	case http.MethodPost:
		w.handleIncoming(rw, r)
	default:
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleVerification answers the Meta webhook verification challenge.
func (w *WhatsAppChannel) handleVerification(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token := w.cfg.VerifyToken
	if q.Get("hub.mode") == "subscribe" && token != "" && hmac.Equal([]byte(q.Get("hub.verify_token")), []byte(token)) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte(q.Get("hub.challenge")))
		return
	}
	http.Error(rw, "forbidden", http.StatusForbidden)
}

// handleIncoming processes webhook payloads. Always returns 200 so Meta
// does not retry.
func (w *WhatsAppChannel) handleIncoming(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		w.logger.Warn("whatsapp read body error", "error", err)
		rw.WriteHeader(http.StatusOK)
		return
	}

	if w.cfg.AppSecret != "" && !w.validateSignature(body, r.Header.Get("X-Hub-Signature-256")) {
		w.logger.Warn("whatsapp invalid webhook signature")
		rw.WriteHeader(http.StatusOK)
		return
	}

	var payload whatsappWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		w.logger.Warn("whatsapp unmarshal error", "error", err)
		rw.WriteHeader(http.StatusOK)
		return
	}

	w.processPayload(r.Context(), &payload)
	rw.WriteHeader(http.StatusOK)
}

func (w *WhatsAppChannel) validateSignature(body []byte, signature string) bool {
	hexSig, ok := strings.CutPrefix(signature, "sha256=")
	if !ok {
		return false
	}
	sig, err := hex.DecodeString(hexSig)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(w.cfg.AppSecret))
	mac.Write(body)
	return hmac.Equal(sig, mac.Sum(nil))
}

func (w *WhatsAppChannel) processPayload(ctx context.Context, payload *whatsappWebhookPayload) {
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			for _, msg := range change.Value.Messages {
				w.processMessage(ctx, msg, change.Value.Contacts)
			}
		}
	}
}

func (w *WhatsAppChannel) processMessage(ctx context.Context, msg whatsappMessage, contacts []whatsappContact) {
	if msg.Type != "text" || msg.Text == nil {
		return
	}
	content := strings.TrimSpace(msg.Text.Body)
	if content == "" {
		return
	}
	if !w.firstDelivery(msg.ID) {
		w.logger.Debug("whatsapp duplicate delivery dropped", "message_id", msg.ID)
		return
	}

	if strings.HasPrefix(content, "/") && w.handleCommand(ctx, msg.From, msg.ID, content) {
		return
	}

	inbound := domain.InboundMessage{
		ChannelName: w.Name(),
		MessageID:   msg.ID,
		SenderID:    msg.From,
		Content:     content,
	}
	for _, c := range contacts {
		if c.WaID == msg.From && c.Profile.Name != "" {
			inbound.SenderName = c.Profile.Name
			break
		}
	}

	if err := w.handler(ctx, inbound); err != nil {
		w.logger.Error("whatsapp handler error", "error", err, "from", msg.From)
	}
}

// firstDelivery records id and reports whether it was new. Empty ids are
// always new.
func (w *WhatsAppChannel) firstDelivery(id string) bool {
	if id == "" {
		return true
	}
	w.seenMu.Lock()
	defer w.seenMu.Unlock()
	if _, ok := w.seen[id]; ok {
		return false
	}
	if len(w.order) >= seenCapacity {
		delete(w.seen, w.order[0])
		w.order = w.order[1:]
	}
	w.seen[id] = struct{}{}
	w.order = append(w.order, id)
	return true
}

// handleCommand answers slash commands without the model. Returns true if
// the command was handled.
func (w *WhatsAppChannel) handleCommand(ctx context.Context, to, replyTo, content string) bool {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return false
	}

	switch strings.ToLower(fields[0]) {
	case "/help", "/start":
		if err := w.sendMessage(ctx, to, replyTo, tool.HelpGuide().ChannelText()); err != nil {
			w.logger.Error("whatsapp help reply failed", "error", err, "to", to)
		}
		return true
	default:
		return false
	}
}

func (w *WhatsAppChannel) sendMessage(ctx context.Context, to, replyTo, text string) error {
	url := fmt.Sprintf("%s/%s/%s/messages", w.baseURL, graphAPIVersion, w.cfg.PhoneID)

	payload := whatsappSendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             &whatsappSendText{Body: text},
	}
	if replyTo != "" {
		payload.Context = &whatsappSendContext{MessageID: replyTo}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.cfg.Token)

	resp, err := w.client.Do(req)
	if err != nil {
		return domain.NewDomainError("WhatsAppChannel.Send", domain.ErrBackend, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return domain.NewDomainError("WhatsAppChannel.Send", graphError(resp.StatusCode),
		fmt.Sprintf("whatsapp API error %d: %s", resp.StatusCode, respBody))
}

// graphError classifies a failed Graph API status.
func graphError(status int) error {
	switch status {
	case http.StatusTooManyRequests:
		return domain.ErrRateLimit
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrAuthInvalid
	default:
		return domain.ErrBackend
	}
}

// Cloud API webhook and send payloads, trimmed to the fields used here.

type whatsappWebhookPayload struct {
	Object string          `json:"object"`
	Entry  []whatsappEntry `json:"entry"`
}

type whatsappEntry struct {
	ID      string           `json:"id"`
	Changes []whatsappChange `json:"changes"`
}

type whatsappChange struct {
	Field string              `json:"field"`
	Value whatsappChangeValue `json:"value"`
}

type whatsappChangeValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Contacts         []whatsappContact `json:"contacts"`
	Messages         []whatsappMessage `json:"messages"`
}

type whatsappContact struct {
	WaID    string          `json:"wa_id"`
	Profile whatsappProfile `json:"profile"`
}

type whatsappProfile struct {
	Name string `json:"name"`
}

type whatsappMessage struct {
	From      string        `json:"from"`
	ID        string        `json:"id"`
	Timestamp string        `json:"timestamp"`
	Type      string        `json:"type"`
	Text      *whatsappText `json:"text,omitempty"`
}

type whatsappText struct {
	Body string `json:"body"`
}

type whatsappSendRequest struct {
	MessagingProduct string               `json:"messaging_product"`
	To               string               `json:"to"`
	Type             string               `json:"type"`
	Context          *whatsappSendContext `json:"context,omitempty"`
	Text             *whatsappSendText    `json:"text,omitempty"`
}

type whatsappSendContext struct {
	MessageID string `json:"message_id"`
}

type whatsappSendText struct {
	Body string `json:"body"`
}
