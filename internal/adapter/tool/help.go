package tool

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/trace"

	"qtick-agent/internal/domain"
)

const helpText = "Welcome to QTick Assistant! I can help you with the following:\n\n" +
	"1. Business Summary: Get stats on leads, revenue, and appointments (e.g., 'today', 'this week').\n" +
	"2. Lead Management: Create (name, phone, enquiry) and list leads.\n" +
	"3. Appointments: Book services for customers and list upcoming schedules.\n" +
	"4. Catalog: Search for services in your business catalog.\n" +
	"5. Invoices: List and manage business invoices.\n\n" +
	"How can I help you today?"

const helpWhatsApp = "👋 *Welcome to QTick Assistant!*\n\n" +
	"I'm here to help you manage your business efficiently. Here's what I can do for you:\n\n" +
	"📊 *Business Summary*\n" +
	"• Get overview of leads, revenue, and appointments.\n" +
	"• _Try: 'Show summary for today' or 'How was last week?'_\n\n" +
	"👥 *Lead Management*\n" +
	"• Create new leads and list existing ones.\n" +
	"• _Try: 'Create lead for John' or 'List all leads'_\n\n" +
	"📅 *Appointments*\n" +
	"• Book new appointments and view your schedule.\n" +
	"• _Try: 'Book Facial for tomorrow 10am' or 'List appointments'_\n\n" +
	"📋 *Catalog & Invoices*\n" +
	"• Search services and manage invoices.\n" +
	"• _Try: 'Search for Haircut' or 'List my invoices'_\n\n" +
	"Just tell me what you need, and I'll take care of it! 🚀"

// HelpGuide returns the static getting-started envelope. Channels use it to
// answer /help without a model round-trip.
func HelpGuide() *domain.Envelope {
	return domain.NewEnvelope(NameHelpGuide, map[string]string{"guide": "Getting Started"}, helpText, helpWhatsApp)
}

// HelpGuideTool explains what the assistant can do.
type HelpGuideTool struct{ base }

// NewHelpGuideTool creates the get_help_guide wrapper.
func NewHelpGuideTool(d Deps) *HelpGuideTool {
	return &HelpGuideTool{newBase(NameHelpGuide, d)}
}

func (t *HelpGuideTool) Execute(ctx context.Context, params json.RawMessage) (*domain.Envelope, error) {
	return Execute(ctx, t.Name(), t.Logger, params, func(context.Context, trace.Span, struct{ Auth }) (*domain.Envelope, error) {
		return HelpGuide(), nil
	})
}
