package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/tracer"
)

type listOffersParams struct {
	Auth
	BusinessID int `json:"business_id"`
}

// ListOffersTool lists active promotions. Backend failures are reported in
// the envelope text instead of failing the call.
type ListOffersTool struct{ base }

// NewListOffersTool creates the list_offers wrapper.
func NewListOffersTool(d Deps) *ListOffersTool {
	return &ListOffersTool{newBase(NameListOffers, d)}
}

func (t *ListOffersTool) Execute(ctx context.Context, params json.RawMessage) (*domain.Envelope, error) {
	return Execute(ctx, t.Name(), t.Logger, params, t.handle)
}

func (t *ListOffersTool) handle(ctx context.Context, span trace.Span, p listOffersParams) (*domain.Envelope, error) {
	if err := ValidatePositive("business_id", p.BusinessID); err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.IntAttr("business_id", p.BusinessID))

	offers, err := t.Backend.ListOffers(ctx, p.BusinessID)
	if err != nil {
		tracer.RecordError(span, err)
		t.Logger.Warn("list offers failed", "business_id", p.BusinessID, "error", err)
		return domain.NewEnvelope(NameListOffers, []domain.Offer{}, fmt.Sprintf("Error fetching offers: %v", err), ""), nil
	}
	if len(offers) == 0 {
		return domain.NewEnvelope(NameListOffers, offers,
			fmt.Sprintf("No active offers found for business %d.", p.BusinessID), "No active offers found."), nil
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Found %d active offers for business %d:\n\n", len(offers), p.BusinessID)
	var wa strings.Builder
	fmt.Fprintf(&wa, "🎉 *Active Offers for Business #%d*\n\n", p.BusinessID)
	for i, o := range offers {
		fmt.Fprintf(&text, "Title: %s\nDetails: %s\nBP Link: %s\n---\n", o.Title, o.Details, o.Link)

		fmt.Fprintf(&wa, "*%d. %s*\n", i+1, o.Title)
		if o.Link != "" {
			fmt.Fprintf(&wa, "🔗 %s\n", o.Link)
		}
		wa.WriteString("\n")
	}
	wa.WriteString("Grab them while they last! 🚀")

	return domain.NewEnvelope(NameListOffers, offers, text.String(), wa.String()), nil
}
