package directory

import (
	"context"
	"errors"
	"log/slog"

	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/phone"
)

// QueueLister is the slice of the backend the chain falls back to.
type QueueLister interface {
	MyQueues(ctx context.Context, phone string) ([]domain.Queue, error)
}

// Chain resolves a phone through the local store first, then the backend's
// queue listing. Registration goes to the store only.
type Chain struct {
	store  domain.PhoneDirectory
	queues QueueLister
	logger *slog.Logger
}

// NewChain creates a resolution chain. queues may be nil to disable the
// backend fallback.
func NewChain(store domain.PhoneDirectory, queues QueueLister, logger *slog.Logger) *Chain {
	return &Chain{store: store, queues: queues, logger: logger}
}

func (c *Chain) Lookup(ctx context.Context, number string) (int, error) {
	id, err := c.store.Lookup(ctx, number)
	if err == nil || !errors.Is(err, domain.ErrPhoneNotMapped) || c.queues == nil {
		return id, err
	}

	key := phone.Digits(number)
	queues, qerr := c.queues.MyQueues(ctx, key)
	if qerr != nil {
		c.logger.Debug("queue lookup failed", "phone", key, "error", qerr)
		return 0, err
	}
	for _, q := range queues {
		if q.BusinessID > 0 {
			c.logger.Info("business resolved from queues", "phone", key, "business_id", q.BusinessID)
			return q.BusinessID, nil
		}
	}
	return 0, err
}

func (c *Chain) Register(ctx context.Context, number string, businessID int) error {
	return c.store.Register(ctx, number, businessID)
}
