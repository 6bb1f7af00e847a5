package llm

import (
	"fmt"
	"log/slog"
	"strings"

	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/config"
)

// Supported provider types.
const (
	TypeOpenAI = "openai"
	TypeGemini = "gemini"
)

// New builds the provider described by cfg. Unknown types return
// domain.ErrUnsupportedProvider.
func New(cfg config.ProviderConfig, logger *slog.Logger) (domain.LLMProvider, error) {
	kind := strings.ToLower(cfg.Type)
	if kind == "" {
		kind = strings.ToLower(cfg.Name)
	}
	switch kind {
	case TypeOpenAI:
		return NewOpenAIProvider(cfg, logger), nil
	case TypeGemini:
		return NewGeminiProvider(cfg, logger), nil
	default:
		return nil, domain.NewDomainError("llm.New", domain.ErrUnsupportedProvider, fmt.Sprintf("type %q", kind))
	}
}

// NewFromConfig builds the default provider with its circuit breaker.
func NewFromConfig(cfg config.LLMConfig, logger *slog.Logger) (domain.LLMProvider, error) {
	pc, ok := cfg.Provider(cfg.DefaultProvider)
	if !ok {
		return nil, domain.NewDomainError("llm.NewFromConfig", domain.ErrUnsupportedProvider,
			fmt.Sprintf("provider %q is not configured", cfg.DefaultProvider))
	}
	p, err := New(pc, logger)
	if err != nil {
		return nil, err
	}
	if cfg.CircuitBreaker.Enabled {
		p = NewCircuitBreakerProvider(p, cfg.CircuitBreaker, logger)
	}
	return p, nil
}

func providerName(cfg config.ProviderConfig, fallback string) string {
	if cfg.Name != "" {
		return cfg.Name
	}
	return fallback
}
