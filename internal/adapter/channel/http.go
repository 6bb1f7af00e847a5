package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/middleware"
)

const maxBodyBytes = 1 << 20

// ChatService runs a request for a known business.
type ChatService interface {
	Process(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error)
}

// PhoneService resolves operators by phone number.
type PhoneService interface {
	Process(ctx context.Context, phone, prompt string) (*domain.ChatResponse, error)
	Lookup(ctx context.Context, phone string) (int, error)
	Register(ctx context.Context, phone string, businessID int) error
}

// WebsiteService answers website visitors.
type WebsiteService interface {
	Reply(ctx context.Context, message string, history []domain.HistoryTurn) (string, error)
}

// HTTPDeps wires the HTTP API to the use cases.
type HTTPDeps struct {
	Chat    ChatService
	Phone   PhoneService
	Website WebsiteService // nil disables /website/chat

	Metrics     http.Handler // nil disables the metrics endpoint
	MetricsPath string

	Provider string // reported by /health
	Mock     bool

	RateLimitPerMin int
	RateLimitBurst  int
}

// HTTPChannel serves the JSON chat API.
type HTTPChannel struct {
	server    *http.Server
	logger    *slog.Logger
	addr      string
	deps      HTTPDeps
	boundAddr string

	// Lifecycle of the rate limiter cleanup goroutine.
	ctx    context.Context
	cancel context.CancelFunc
}

type chatRequest struct {
	Prompt     string `json:"prompt"`
	BusinessID int    `json:"business_id"`
}

type phoneChatRequest struct {
	Phone  string `json:"phone"`
	Prompt string `json:"prompt"`
}

type phoneRequest struct {
	Phone      string `json:"phone"`
	BusinessID int    `json:"business_id,omitempty"`
}

type lookupResponse struct {
	Phone      string `json:"phone"`
	BusinessID int    `json:"business_id"`
}

type websiteRequest struct {
	Message string               `json:"message"`
	History []domain.HistoryTurn `json:"history"`
}

type websiteResponse struct {
	ResponseText string `json:"response_text"`
}

type errorResponse struct {
	Detail string           `json:"detail"`
	Code   domain.ErrorCode `json:"code,omitempty"`
}

// NewHTTPChannel creates the HTTP API channel.
func NewHTTPChannel(addr string, deps HTTPDeps, logger *slog.Logger) *HTTPChannel {
	if deps.MetricsPath == "" {
		deps.MetricsPath = "/metrics"
	}
	if deps.RateLimitPerMin <= 0 {
		deps.RateLimitPerMin = 100
	}
	if deps.RateLimitBurst <= 0 {
		deps.RateLimitBurst = 20
	}
	return &HTTPChannel{addr: addr, deps: deps, logger: logger}
}

// Handler builds the routed handler with the middleware chain applied.
func (h *HTTPChannel) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /agent/chat", h.handleChat)
	mux.HandleFunc("POST /agent/phone/chat", h.handlePhoneChat)
	mux.HandleFunc("POST /business/lookup", h.handleLookup)
	mux.HandleFunc("POST /business/register", h.handleRegister)
	if h.deps.Website != nil {
		mux.HandleFunc("POST /website/chat", h.handleWebsite)
	}
	mux.HandleFunc("GET /health", h.handleHealth)
	if h.deps.Metrics != nil {
		mux.Handle("GET "+h.deps.MetricsPath, h.deps.Metrics)
	}

	return middleware.RequestID(middleware.SecurityHeaders(
		middleware.RateLimit(ctx, h.deps.RateLimitPerMin, h.deps.RateLimitBurst)(mux),
	))
}

// Start begins the HTTP server. Non-blocking (starts in goroutine).
func (h *HTTPChannel) Start(ctx context.Context) error {
	h.ctx, h.cancel = context.WithCancel(ctx)

	h.server = &http.Server{
		Addr:              h.addr,
		Handler:           h.Handler(h.ctx),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", h.addr, err)
	}
	h.boundAddr = ln.Addr().String()

	go func() {
		h.logger.Info("http channel started", "addr", h.boundAddr)
		if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			h.logger.Error("http server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (h *HTTPChannel) Stop(ctx context.Context) error {
	if h.cancel != nil {
		h.cancel()
	}
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

// Name identifies the channel in logs.
func (h *HTTPChannel) Name() string { return "http" }

// BoundAddr returns the actual listen address after Start.
func (h *HTTPChannel) BoundAddr() string { return h.boundAddr }

func (h *HTTPChannel) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decode(w, r, &req) {
		return
	}

	resp, err := h.deps.Chat.Process(r.Context(), domain.ChatRequest{
		Prompt:      req.Prompt,
		BusinessID:  req.BusinessID,
		BearerToken: bearerToken(r),
		ClientID:    strings.TrimSpace(r.Header.Get("X-Client-Id")),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wireResponse(resp))
}

func (h *HTTPChannel) handlePhoneChat(w http.ResponseWriter, r *http.Request) {
	var req phoneChatRequest
	if !decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	if token := bearerToken(r); token != "" {
		ctx = domain.ContextWithCredentials(ctx, domain.Credentials{Token: token})
	}
	resp, err := h.deps.Phone.Process(ctx, req.Phone, req.Prompt)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wireResponse(resp))
}

func (h *HTTPChannel) handleLookup(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if !decode(w, r, &req) {
		return
	}
	id, err := h.deps.Phone.Lookup(r.Context(), req.Phone)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lookupResponse{Phone: req.Phone, BusinessID: id})
}

func (h *HTTPChannel) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req phoneRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.deps.Phone.Register(r.Context(), req.Phone, req.BusinessID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPChannel) handleWebsite(w http.ResponseWriter, r *http.Request) {
	var req websiteRequest
	if !decode(w, r, &req) {
		return
	}
	text, err := h.deps.Website.Reply(r.Context(), req.Message, req.History)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, websiteResponse{ResponseText: text})
}

func (h *HTTPChannel) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"provider": h.deps.Provider,
		"mock":     h.deps.Mock,
	})
}

// writeError maps use case errors onto status codes. Messages of unexpected
// failures are logged, not returned.
func (h *HTTPChannel) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, domain.ErrPhoneNotMapped):
		status, detail = http.StatusNotFound, "Business ID not found for this phone number"
	case errors.Is(err, domain.ErrBusinessTaken):
		status, detail = http.StatusBadRequest, "Business ID is already assigned to another phone number"
	case errors.Is(err, domain.ErrInvalidInput):
		status, detail = http.StatusBadRequest, errorDetail(err)
	default:
		h.logger.Error("request failed", "path", r.URL.Path, "request_id", domain.RequestIDFromContext(r.Context()), "error", err)
	}
	writeJSON(w, status, errorResponse{Detail: detail, Code: domain.ErrorCodeOf(err)})
}

func errorDetail(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) && de.Detail != "" {
		return de.Detail
	}
	return err.Error()
}

// decode reads a JSON body of at most 1MB, answering 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		msg := "invalid JSON: " + err.Error()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = "request body too large (max 1MB)"
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: msg, Code: domain.CodeInvalidInput})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// wireResponse escapes the WhatsApp text for clients that paste it into
// a JSON template.
func wireResponse(resp *domain.ChatResponse) *domain.ChatResponse {
	out := *resp
	out.WhatsAppText = EscapeASCII(resp.WhatsAppText)
	return &out
}
