package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/metrics"
	"qtick-agent/internal/infra/tracer"
)

const websitePrompt = "You are a helpful QTick Sales Agent. Your goal is to explain QTick features based on the user's questions.\n" +
	"Use the provided context to answer questions accurately. If the context doesn't have the answer, say you don't know but can arrange a call.\n" +
	"Be concise and friendly. Do not hallucinate features.\n" +
	"CONTEXT:\n"

// Retriever returns knowledge-base context for a visitor message.
type Retriever interface {
	Retrieve(query string) string
}

// WebsiteAgent answers prospect questions from the product knowledge base.
// It offers the model no tools.
type WebsiteAgent struct {
	llm          domain.LLMProvider
	knowledge    Retriever
	historyTurns int
	timeout      time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// NewWebsiteAgent creates the FAQ agent. llm may be nil when no provider is
// usable; Reply then answers with a fixed notice.
func NewWebsiteAgent(llm domain.LLMProvider, knowledge Retriever, historyTurns int, timeout time.Duration, m *metrics.Metrics, logger *slog.Logger) *WebsiteAgent {
	if historyTurns <= 0 {
		historyTurns = 5
	}
	return &WebsiteAgent{llm: llm, knowledge: knowledge, historyTurns: historyTurns, timeout: timeout, metrics: m, logger: logger}
}

// Reply answers message given the visitor's earlier turns. Only the most
// recent turns are replayed.
func (w *WebsiteAgent) Reply(ctx context.Context, message string, history []domain.HistoryTurn) (string, error) {
	start := time.Now()
	message = strings.TrimSpace(message)
	if message == "" {
		return "", domain.NewDomainError("WebsiteAgent.Reply", domain.ErrInvalidInput, "message is required")
	}
	if w.llm == nil {
		return unsupportedProviderText, nil
	}

	ctx, span := tracer.StartSpan(ctx, "website.reply")
	defer span.End()
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	conv := domain.NewConversation(websitePrompt+w.knowledge.Retrieve(message), "")
	if len(history) > w.historyTurns {
		history = history[len(history)-w.historyTurns:]
	}
	for _, h := range history {
		role := domain.RoleUser
		if h.Role == "model" || h.Role == domain.RoleAssistant {
			role = domain.RoleAssistant
		}
		conv.Append(domain.Message{Role: role, Content: h.Content})
	}
	conv.Append(domain.Message{Role: domain.RoleUser, Content: message})

	turn, err := w.llm.Send(ctx, conv, nil)
	w.metrics.ObserveLLM(w.llm.Name(), err)
	if err != nil {
		tracer.RecordError(span, err)
		w.logger.Error("website reply failed", "error", err)
		return "", fmt.Errorf("website reply: %w", err)
	}
	tracer.SetOK(span)

	var text string
	if turn != nil {
		text = strings.TrimSpace(turn.Text)
	}
	if text == "" {
		text = domain.FallbackText
	}
	w.metrics.ObserveChat(EntryWebsite, domain.KindChat, time.Since(start))
	return text, nil
}
