package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.opentelemetry.io/otel/trace"

	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/tracer"
)

type createInvoiceParams struct {
	Auth
	BusinessID int                  `json:"business_id"`
	CustomerID string               `json:"customer_id"`
	Amount     float64              `json:"amount"`
	Items      []domain.InvoiceItem `json:"items"`
	Currency   string               `json:"currency"`
	Notes      string               `json:"notes"`
}

// CreateInvoiceTool bills a customer.
type CreateInvoiceTool struct{ base }

// NewCreateInvoiceTool creates the create_invoice wrapper.
func NewCreateInvoiceTool(d Deps) *CreateInvoiceTool {
	return &CreateInvoiceTool{newBase(NameCreateInvoice, d)}
}

func (t *CreateInvoiceTool) Execute(ctx context.Context, params json.RawMessage) (*domain.Envelope, error) {
	return Execute(ctx, t.Name(), t.Logger, params, t.handle)
}

func (t *CreateInvoiceTool) handle(ctx context.Context, span trace.Span, p createInvoiceParams) (*domain.Envelope, error) {
	if err := ValidateAll(ValidatePositive("business_id", p.BusinessID), RequireField("customer_id", strings.TrimSpace(p.CustomerID))); err != nil {
		return nil, err
	}
	if p.Amount < 0 {
		return nil, fmt.Errorf("%w: 'amount' must not be negative", domain.ErrInvalidInput)
	}
	span.SetAttributes(tracer.IntAttr("business_id", p.BusinessID))

	inv, err := t.Backend.CreateInvoice(ctx, domain.InvoiceInput{
		BusinessID: p.BusinessID,
		CustomerID: strings.TrimSpace(p.CustomerID),
		Amount:     p.Amount,
		Currency:   orDefault(strings.ToUpper(strings.TrimSpace(p.Currency)), "INR"),
		Notes:      p.Notes,
		Items:      p.Items,
	})
	if err != nil {
		return nil, err
	}

	text := fmt.Sprintf("Invoice created successfully. ID: %s", inv.ID)
	wa := fmt.Sprintf("🧾 *Invoice Created*\n\n🆔 ID: %s\n👤 Customer: %s\n💰 Amount: %s", inv.ID, inv.CustomerID, Currency(inv.Amount))
	return domain.NewEnvelope(NameCreateInvoice, inv, text, wa), nil
}

type listInvoicesParams struct {
	Auth
	BusinessID int `json:"business_id"`
}

// ListInvoicesTool lists invoices, optionally for one business.
type ListInvoicesTool struct{ base }

// NewListInvoicesTool creates the list_invoices wrapper.
func NewListInvoicesTool(d Deps) *ListInvoicesTool {
	return &ListInvoicesTool{newBase(NameListInvoices, d)}
}

func (t *ListInvoicesTool) Execute(ctx context.Context, params json.RawMessage) (*domain.Envelope, error) {
	return Execute(ctx, t.Name(), t.Logger, params, t.handle)
}

func (t *ListInvoicesTool) handle(ctx context.Context, _ trace.Span, p listInvoicesParams) (*domain.Envelope, error) {
	invoices, err := t.Backend.ListInvoices(ctx, p.BusinessID)
	if err != nil {
		return nil, err
	}

	text := fmt.Sprintf("%d invoices found.", len(invoices))
	if len(invoices) == 0 {
		return domain.NewEnvelope(NameListInvoices, invoices, text, "🧾 No invoices found."), nil
	}

	rows := make([]table.Row, 0, len(invoices))
	var wa strings.Builder
	fmt.Fprintf(&wa, "🧾 *Invoices (%d)*\n", len(invoices))
	for i, inv := range invoices {
		rows = append(rows, table.Row{inv.ID, orDash(inv.CustomerID), fmt.Sprintf("%.2f", inv.Amount), orDash(inv.Status)})
		fmt.Fprintf(&wa, "\n%d. %s - %s", i+1, inv.ID, Currency(inv.Amount))
	}
	text += "\n\n" + markdownTable(table.Row{"Invoice ID", "Customer", "Amount", "Status"}, rows)
	return domain.NewEnvelope(NameListInvoices, invoices, text, wa.String()), nil
}

type getInvoiceParams struct {
	Auth
	InvoiceID string `json:"invoice_id"`
}

// GetInvoiceTool fetches one invoice. A missing invoice is a result, not an
// error.
type GetInvoiceTool struct{ base }

// NewGetInvoiceTool creates the get_invoice wrapper.
func NewGetInvoiceTool(d Deps) *GetInvoiceTool {
	return &GetInvoiceTool{newBase(NameGetInvoice, d)}
}

func (t *GetInvoiceTool) Execute(ctx context.Context, params json.RawMessage) (*domain.Envelope, error) {
	return Execute(ctx, t.Name(), t.Logger, params, t.handle)
}

func (t *GetInvoiceTool) handle(ctx context.Context, span trace.Span, p getInvoiceParams) (*domain.Envelope, error) {
	id := strings.TrimSpace(p.InvoiceID)
	if err := RequireField("invoice_id", id); err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.StringAttr("invoice_id", id))

	inv, err := t.Backend.GetInvoice(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewEnvelope(NameGetInvoice, nil, fmt.Sprintf("Invoice not found for ID %s.", id), ""), nil
	}
	if err != nil {
		return nil, err
	}

	wa := fmt.Sprintf("🧾 *Invoice %s*\n\n👤 Customer: %s\n💰 Amount: %s\n📌 Status: %s", inv.ID, inv.CustomerID, Currency(inv.Amount), orDash(inv.Status))
	return domain.NewEnvelope(NameGetInvoice, inv, fmt.Sprintf("Invoice details found for ID %s.", id), wa), nil
}
