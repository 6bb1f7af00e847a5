package usecase

import (
	"context"
	"log/slog"
	"strings"

	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/phone"
)

// PhoneChat is the entry point for operators identified by phone number
// rather than business id.
type PhoneChat struct {
	directory    domain.PhoneDirectory
	orchestrator *Orchestrator
	logger       *slog.Logger
}

// NewPhoneChat creates the phone entry point.
func NewPhoneChat(directory domain.PhoneDirectory, orchestrator *Orchestrator, logger *slog.Logger) *PhoneChat {
	return &PhoneChat{directory: directory, orchestrator: orchestrator, logger: logger}
}

// Process resolves the caller's business and runs the prompt for it. The
// normalized phone becomes the client id sent to the backend. An unmapped
// phone returns domain.ErrPhoneNotMapped.
func (p *PhoneChat) Process(ctx context.Context, number, prompt string) (*domain.ChatResponse, error) {
	digits := phone.Digits(number)
	if digits == "" {
		return nil, domain.NewDomainError("PhoneChat.Process", domain.ErrInvalidInput, "phone is required")
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, domain.NewDomainError("PhoneChat.Process", domain.ErrInvalidInput, "prompt is required")
	}

	businessID, err := p.directory.Lookup(ctx, digits)
	if err != nil {
		p.logger.Info("phone chat rejected", "phone", digits, "error", err)
		return nil, domain.WrapOp("PhoneChat.Process", err)
	}

	return p.orchestrator.process(ctx, EntryPhone, domain.ChatRequest{
		Prompt:      prompt,
		BusinessID:  businessID,
		BearerToken: domain.CredentialsFromContext(ctx).Token,
		ClientID:    digits,
	})
}

// Lookup returns the business mapped to number.
func (p *PhoneChat) Lookup(ctx context.Context, number string) (int, error) {
	digits := phone.Digits(number)
	if digits == "" {
		return 0, domain.NewDomainError("PhoneChat.Lookup", domain.ErrInvalidInput, "phone is required")
	}
	return p.directory.Lookup(ctx, digits)
}

// Register maps number to businessID. A business already owned by another
// phone returns domain.ErrBusinessTaken.
func (p *PhoneChat) Register(ctx context.Context, number string, businessID int) error {
	if phone.Digits(number) == "" || businessID <= 0 {
		return domain.NewDomainError("PhoneChat.Register", domain.ErrInvalidInput, "phone and a positive business_id are required")
	}
	return p.directory.Register(ctx, number, businessID)
}
