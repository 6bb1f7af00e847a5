package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/tracer"
)

const defaultBranchConcurrency = 4

type summaryParams struct {
	Auth
	BusinessID int    `json:"business_id"`
	Period     string `json:"period"`
	FromDate   string `json:"from_date"`
	ToDate     string `json:"to_date"`
}

// SummaryTool reports one business's activity over a date window.
type SummaryTool struct{ base }

// NewSummaryTool creates the get_summary_for_business wrapper.
func NewSummaryTool(d Deps) *SummaryTool {
	return &SummaryTool{newBase(NameSummary, d)}
}

func (t *SummaryTool) Execute(ctx context.Context, params json.RawMessage) (*domain.Envelope, error) {
	return Execute(ctx, t.Name(), t.Logger, params, t.handle)
}

func (t *SummaryTool) handle(ctx context.Context, span trace.Span, p summaryParams) (*domain.Envelope, error) {
	if err := ValidatePositive("business_id", p.BusinessID); err != nil {
		return nil, err
	}
	from, to := t.Dates.Window(p.Period, p.FromDate, p.ToDate)
	span.SetAttributes(tracer.IntAttr("business_id", p.BusinessID))

	id := strconv.Itoa(p.BusinessID)
	s, err := t.Backend.GetSummary(ctx, id, from, to)
	if err != nil {
		return nil, err
	}
	if s.BusinessID == "" {
		s.BusinessID = id
	}
	if s.FromDate == "" {
		s.FromDate, s.ToDate = from, to
	}

	text := fmt.Sprintf("Business Summary for ID %s from %s to %s:\n- Total Leads: %d\n- Total Appointments: %d\n- Total Revenue: %s",
		s.BusinessID, s.FromDate, s.ToDate, s.TotalLeads, s.TotalAppointments, Currency(s.TotalRevenue))
	wa := fmt.Sprintf("📊 *Business Summary*\n🗓 %s to %s\n\n👥 Leads: %d\n📅 Appointments: %d\n🧾 Bills: %d\n💰 Revenue: %s",
		s.FromDate, s.ToDate, s.TotalLeads, s.TotalAppointments, s.BillsCount, Currency(s.TotalRevenue))
	return domain.NewEnvelope(NameSummary, s, text, wa), nil
}

type franchiseParams struct {
	Auth
	BusinessIDs string `json:"business_ids"`
	Period      string `json:"period"`
	FromDate    string `json:"from_date"`
	ToDate      string `json:"to_date"`
}

// FranchiseSummaryTool sums the summaries of several branches. A failing
// branch is logged and skipped; it never aborts the aggregate.
type FranchiseSummaryTool struct{ base }

// NewFranchiseSummaryTool creates the get_franchise_summary wrapper.
func NewFranchiseSummaryTool(d Deps) *FranchiseSummaryTool {
	return &FranchiseSummaryTool{newBase(NameFranchiseSummary, d)}
}

func (t *FranchiseSummaryTool) Execute(ctx context.Context, params json.RawMessage) (*domain.Envelope, error) {
	return Execute(ctx, t.Name(), t.Logger, params, t.handle)
}

func (t *FranchiseSummaryTool) handle(ctx context.Context, span trace.Span, p franchiseParams) (*domain.Envelope, error) {
	ids := splitIDs(p.BusinessIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: 'business_ids' needs at least one id", domain.ErrInvalidInput)
	}
	from, to := t.Dates.Window(p.Period, p.FromDate, p.ToDate)
	span.SetAttributes(tracer.IntAttr("franchise.branches", len(ids)))

	fs := t.aggregate(ctx, ids, from, to)
	span.SetAttributes(tracer.IntAttr("franchise.failed", len(fs.Failed)))

	var text strings.Builder
	fmt.Fprintf(&text, "Franchise Summary for %d branches from %s to %s:\n- Total Leads: %d\n- Total Appointments: %d\n- Total Bills: %d\n- Total Revenue: %s",
		len(fs.Branches), from, to, fs.TotalLeads, fs.TotalAppointments, fs.BillsCount, Currency(fs.TotalRevenue))
	if len(fs.Failed) > 0 {
		fmt.Fprintf(&text, "\n- Unavailable branches: %s", strings.Join(fs.Failed, ", "))
	}
	if len(fs.Branches) > 0 {
		rows := make([]table.Row, 0, len(fs.Branches))
		for _, b := range fs.Branches {
			rows = append(rows, table.Row{b.BusinessID, b.TotalLeads, b.TotalAppointments, b.BillsCount, Currency(b.TotalRevenue)})
		}
		text.WriteString("\n\n")
		text.WriteString(markdownTable(table.Row{"Branch ID", "Leads", "Appointments", "Bills", "Revenue"}, rows))
	}

	var wa strings.Builder
	fmt.Fprintf(&wa, "🏢 *Franchise Report*\n🗓 %s to %s\n\n", from, to)
	fmt.Fprintf(&wa, "📈 *Total Performance*\n👥 Leads: %d\n📅 Appointments: %d\n💰 Revenue: %s", fs.TotalLeads, fs.TotalAppointments, Currency(fs.TotalRevenue))
	if len(fs.Branches) > 0 {
		wa.WriteString("\n\n🏬 *Branches*")
		for _, b := range fs.Branches {
			fmt.Fprintf(&wa, "\n🆔 %s: %d leads, %s", b.BusinessID, b.TotalLeads, Currency(b.TotalRevenue))
		}
	}
	if len(fs.Failed) > 0 {
		fmt.Fprintf(&wa, "\n\n⚠️ Unavailable: %s", strings.Join(fs.Failed, ", "))
	}

	return domain.NewEnvelope(NameFranchiseSummary, fs, text.String(), wa.String()), nil
}

// aggregate fetches every branch concurrently. Branch order follows ids.
func (t *FranchiseSummaryTool) aggregate(ctx context.Context, ids []string, from, to string) *domain.FranchiseSummary {
	// Each goroutine writes only its own index.
	results := make([]*domain.BusinessSummary, len(ids))

	limit := t.BranchConcurrency
	if limit <= 0 {
		limit = defaultBranchConcurrency
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, id := range ids {
		g.Go(func() error {
			s, err := t.Backend.GetSummary(gctx, id, from, to)
			if err != nil {
				t.Logger.Warn("franchise branch failed", "business_id", id, "error", err)
				t.Metrics.BranchFailed()
				return nil
			}
			if s.BusinessID == "" {
				s.BusinessID = id
			}
			results[i] = s
			return nil
		})
	}
	_ = g.Wait() // branches never return errors

	fs := &domain.FranchiseSummary{
		BusinessSummary: domain.BusinessSummary{BusinessID: domain.FranchiseGroupID, FromDate: from, ToDate: to},
		Branches:        make([]domain.BusinessSummary, 0, len(ids)),
	}
	for i, s := range results {
		if s == nil {
			fs.Failed = append(fs.Failed, ids[i])
			continue
		}
		fs.Add(*s)
		fs.Branches = append(fs.Branches, *s)
	}
	return fs
}

// splitIDs parses "11, 96,,12" into ["11" "96" "12"].
func splitIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}
