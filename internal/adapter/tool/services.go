package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.opentelemetry.io/otel/trace"

	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/tracer"
)

type searchServicesParams struct {
	Auth
	BusinessID int    `json:"business_id"`
	Text       string `json:"text"`
	GroupID    int    `json:"group_id"`
}

// SearchServicesTool searches the business catalog.
type SearchServicesTool struct{ base }

// NewSearchServicesTool creates the search_services wrapper.
func NewSearchServicesTool(d Deps) *SearchServicesTool {
	return &SearchServicesTool{newBase(NameSearchServices, d)}
}

func (t *SearchServicesTool) Execute(ctx context.Context, params json.RawMessage) (*domain.Envelope, error) {
	return Execute(ctx, t.Name(), t.Logger, params, t.handle)
}

func (t *SearchServicesTool) handle(ctx context.Context, span trace.Span, p searchServicesParams) (*domain.Envelope, error) {
	text := strings.TrimSpace(p.Text)
	if err := ValidateAll(ValidatePositive("business_id", p.BusinessID), RequireField("text", text)); err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.IntAttr("business_id", p.BusinessID), tracer.StringAttr("search_text", text))

	services, err := t.Backend.SearchServices(ctx, domain.ServiceQuery{BusinessID: p.BusinessID, Text: text, GroupID: p.GroupID})
	if err != nil {
		return nil, err
	}

	out := fmt.Sprintf("Found %d services matching '%s' for business ID %d.", len(services), text, p.BusinessID)
	if len(services) == 0 {
		return domain.NewEnvelope(NameSearchServices, services, out, fmt.Sprintf("🔍 No services matching '%s'.", text)), nil
	}

	rows := make([]table.Row, 0, len(services))
	var wa strings.Builder
	fmt.Fprintf(&wa, "🔍 *Services matching '%s'*\n", text)
	for i, s := range services {
		rows = append(rows, table.Row{s.ID, s.Name, fmt.Sprintf("%.2f", s.Price), orDash(s.Gender), orDash(s.Type)})
		fmt.Fprintf(&wa, "\n%d. *%s* (ID %d) - %s", i+1, s.Name, s.ID, Currency(s.Price))
	}
	out += "\n\n" + markdownTable(table.Row{"Service ID", "Name", "Price", "Gender", "Type"}, rows)
	return domain.NewEnvelope(NameSearchServices, services, out, wa.String()), nil
}
