package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"qtick-agent/internal/domain"
)

// RetryProvider retries rate-limit and transient provider failures with
// exponential backoff. Other errors return immediately.
type RetryProvider struct {
	inner   domain.LLMProvider
	retries uint64
	base    time.Duration
	logger  *slog.Logger
}

// NewRetryProvider wraps inner. retries is the number of extra attempts.
func NewRetryProvider(inner domain.LLMProvider, retries int, base time.Duration, logger *slog.Logger) *RetryProvider {
	if retries < 0 {
		retries = 0
	}
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	return &RetryProvider{inner: inner, retries: uint64(retries), base: base, logger: logger}
}

// Send implements domain.LLMProvider.
func (p *RetryProvider) Send(ctx context.Context, conv *domain.Conversation, tools []domain.ToolSchema) (*domain.ModelTurn, error) {
	return p.do(ctx, func(ctx context.Context) (*domain.ModelTurn, error) {
		return p.inner.Send(ctx, conv, tools)
	})
}

// SendToolResults implements domain.LLMProvider.
func (p *RetryProvider) SendToolResults(ctx context.Context, conv *domain.Conversation, tools []domain.ToolSchema, results []domain.ToolResult) (*domain.ModelTurn, error) {
	return p.do(ctx, func(ctx context.Context) (*domain.ModelTurn, error) {
		return p.inner.SendToolResults(ctx, conv, tools, results)
	})
}

// Name implements domain.LLMProvider.
func (p *RetryProvider) Name() string { return p.inner.Name() }

func (p *RetryProvider) do(ctx context.Context, fn func(context.Context) (*domain.ModelTurn, error)) (*domain.ModelTurn, error) {
	var (
		turn    *domain.ModelTurn
		attempt int
	)
	backoff := retry.WithMaxRetries(p.retries, retry.NewExponential(p.base))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		var err error
		turn, err = fn(ctx)
		if err != nil && domain.IsRetryableError(err) {
			p.logger.Warn("llm call failed, retrying", "provider", p.inner.Name(), "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return turn, nil
}

var _ domain.LLMProvider = (*RetryProvider)(nil)
