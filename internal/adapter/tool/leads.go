package tool

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.opentelemetry.io/otel/trace"

	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/phone"
	"qtick-agent/internal/infra/tracer"
)

type createLeadParams struct {
	Auth
	BusinessID       int    `json:"business_id"`
	Name             string `json:"name"`
	Phone            string `json:"phone"`
	Email            string `json:"email"`
	Location         string `json:"location"`
	EnquiryFor       string `json:"enquiry_for"`
	ServiceName      string `json:"service_name"`
	Source           string `json:"source"`
	Notes            string `json:"notes"`
	Details          string `json:"details"`
	Interest         int    `json:"interest"`
	FollowUpDate     string `json:"follow_up_date"`
	EnquiredOn       string `json:"enquired_on"`
	EnquiryForTime   string `json:"enquiry_for_time"`
	AttentionStaffID int    `json:"attention_staff_id"`
	AttentionChannel string `json:"attention_channel"`
	ThirdStatus      string `json:"third_status"`
}

// CreateLeadTool creates a sales lead.
type CreateLeadTool struct{ base }

// NewCreateLeadTool creates the create_lead wrapper.
func NewCreateLeadTool(d Deps) *CreateLeadTool {
	return &CreateLeadTool{newBase(NameCreateLead, d)}
}

func (t *CreateLeadTool) Execute(ctx context.Context, params json.RawMessage) (*domain.Envelope, error) {
	return Execute(ctx, t.Name(), t.Logger, params, t.handle)
}

func (t *CreateLeadTool) handle(ctx context.Context, span trace.Span, p createLeadParams) (*domain.Envelope, error) {
	if err := ValidateAll(ValidatePositive("business_id", p.BusinessID), RequireField("name", strings.TrimSpace(p.Name))); err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.IntAttr("business_id", p.BusinessID))

	in := domain.LeadInput{
		BusinessID:       p.BusinessID,
		Name:             strings.TrimSpace(p.Name),
		Phone:            phone.ForBackend(p.Phone, t.PhoneRegion),
		Email:            p.Email,
		Location:         p.Location,
		EnquiryFor:       t.enquirySubject(ctx, p),
		Source:           p.Source,
		Details:          joinNonEmpty("\n", p.Details, p.Notes),
		Interest:         p.Interest,
		ThirdStatus:      p.ThirdStatus,
		FollowUpDate:     t.instant(p.FollowUpDate),
		EnquiredOn:       t.instant(p.EnquiredOn),
		EnquiryForTime:   t.instant(p.EnquiryForTime),
		AttentionStaffID: p.AttentionStaffID,
		AttentionChannel: p.AttentionChannel,
	}

	lead, err := t.Backend.CreateLead(ctx, in)
	if err != nil {
		return nil, err
	}

	text := fmt.Sprintf("Lead created successfully. ID: %s, Status: %s, Value: %.2f", lead.ID, lead.Status, lead.Value)

	var wa strings.Builder
	wa.WriteString("✅ *Lead Created*\n\n")
	fmt.Fprintf(&wa, "🆔 *ID:* %s\n", lead.ID)
	fmt.Fprintf(&wa, "👤 *Name:* %s\n", orDefault(lead.Name, in.Name))
	if in.Phone != "" {
		fmt.Fprintf(&wa, "📞 *Phone:* %s\n", in.Phone)
	}
	if in.EnquiryFor != "" {
		fmt.Fprintf(&wa, "📝 *Enquiry:* %s\n", in.EnquiryFor)
	}
	fmt.Fprintf(&wa, "📌 *Status:* %s\n", orDash(lead.Status))
	fmt.Fprintf(&wa, "💰 *Potential Value:* %s", Currency(lead.Value))

	return domain.NewEnvelope(NameCreateLead, lead, text, wa.String()), nil
}

// enquirySubject picks the enquiry: explicit enquiry_for, then the service
// name (canonicalized when the catalog has exactly one match), then the raw
// prompt.
func (t *CreateLeadTool) enquirySubject(ctx context.Context, p createLeadParams) string {
	if s := strings.TrimSpace(p.EnquiryFor); s != "" {
		return s
	}
	if s := strings.TrimSpace(p.ServiceName); s != "" {
		services, err := t.Backend.SearchServices(ctx, domain.ServiceQuery{BusinessID: p.BusinessID, Text: s})
		if err != nil {
			t.Logger.Warn("service lookup for lead failed", "service_name", s, "error", err)
			return s
		}
		if len(services) == 1 {
			return services[0].Name
		}
		return s
	}
	return strings.TrimSpace(domain.PromptFromContext(ctx))
}

func (t *CreateLeadTool) instant(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return t.Dates.Instant(s)
}

type listLeadsParams struct {
	Auth
	BusinessID int    `json:"business_id"`
	Period     string `json:"period"`
	FromDate   string `json:"from_date"`
	ToDate     string `json:"to_date"`
	SearchText string `json:"search_text"`
	Status     string `json:"status"`
}

// whatsAppTopLeads is how many leads the WhatsApp rendering lists.
const whatsAppTopLeads = 5

// ListLeadsTool lists a business's leads.
type ListLeadsTool struct{ base }

// NewListLeadsTool creates the list_leads wrapper.
func NewListLeadsTool(d Deps) *ListLeadsTool {
	return &ListLeadsTool{newBase(NameListLeads, d)}
}

func (t *ListLeadsTool) Execute(ctx context.Context, params json.RawMessage) (*domain.Envelope, error) {
	return Execute(ctx, t.Name(), t.Logger, params, t.handle)
}

func (t *ListLeadsTool) handle(ctx context.Context, span trace.Span, p listLeadsParams) (*domain.Envelope, error) {
	if err := ValidatePositive("business_id", p.BusinessID); err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.IntAttr("business_id", p.BusinessID))

	f := domain.LeadFilter{
		BusinessID: p.BusinessID,
		SearchText: p.SearchText,
		Status:     p.Status,
	}
	// Without any date hint the listing covers all time.
	if p.Period != "" || p.FromDate != "" || p.ToDate != "" {
		f.FromDate, f.ToDate = t.Dates.Window(p.Period, p.FromDate, p.ToDate)
		if _, _, ok := t.Dates.Range(p.Period); ok {
			f.PeriodType = p.Period
		}
	}

	page, err := t.Backend.ListLeads(ctx, f)
	if err != nil {
		return nil, err
	}

	total := page.TotalValue()
	var text strings.Builder
	fmt.Fprintf(&text, "%d leads found for business %d.\n", page.Total, p.BusinessID)
	fmt.Fprintf(&text, "Total Potential Value: %s", Currency(total))
	if len(page.Items) > 0 {
		rows := make([]table.Row, 0, len(page.Items))
		for _, l := range page.Items {
			rows = append(rows, table.Row{l.ID, l.Name, orDash(l.Status), orDash(l.CreatedAt), orDash(l.Phone), orDash(l.Email), orDash(l.Source), fmt.Sprintf("%.2f", l.Value)})
		}
		text.WriteString("\n\n")
		text.WriteString(markdownTable(table.Row{"Lead ID", "Name", "Status", "Created At", "Phone", "Email", "Source", "Value"}, rows))
	}

	return domain.NewEnvelope(NameListLeads, page.Items, text.String(), leadsWhatsApp(page, total)), nil
}

func leadsWhatsApp(page *domain.LeadPage, total float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👥 *Leads (%d)*\n", page.Total)
	fmt.Fprintf(&b, "💰 Total Potential Value: %s", Currency(total))
	if len(page.Items) == 0 {
		return b.String()
	}

	top := slices.Clone(page.Items)
	slices.SortStableFunc(top, func(x, y domain.Lead) int { return cmp.Compare(y.Value, x.Value) })
	if len(top) > whatsAppTopLeads {
		top = top[:whatsAppTopLeads]
	}
	b.WriteString("\n\n🏆 *Top Leads*\n")
	for i, l := range top {
		fmt.Fprintf(&b, "%d. *%s* - %s\n", i+1, l.Name, Currency(l.Value))
	}
	return strings.TrimRight(b.String(), "\n")
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
