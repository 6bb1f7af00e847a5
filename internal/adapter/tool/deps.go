package tool

import (
	"log/slog"

	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/dates"
	"qtick-agent/internal/infra/metrics"
)

// Deps are the collaborators shared by every wrapper.
type Deps struct {
	Backend domain.Backend
	Dates   *dates.Resolver
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	// PhoneRegion is the default region for lead phone numbers without a
	// country prefix, e.g. "IN".
	PhoneRegion string
	// BranchConcurrency bounds the franchise fan-out. Zero means 4.
	BranchConcurrency int
}

// base gives a wrapper its catalog identity and collaborators.
type base struct {
	describe
	Deps
}

func newBase(name string, d Deps) base {
	return base{describe: describe(name), Deps: d}
}

// Wrappers builds one wrapper per catalog entry.
func Wrappers(d Deps) []domain.Tool {
	return []domain.Tool{
		NewCreateLeadTool(d),
		NewListLeadsTool(d),
		NewCreateAppointmentTool(d),
		NewListAppointmentsTool(d),
		NewGetAppointmentTool(d),
		NewCreateInvoiceTool(d),
		NewListInvoicesTool(d),
		NewGetInvoiceTool(d),
		NewSummaryTool(d),
		NewFranchiseSummaryTool(d),
		NewSearchServicesTool(d),
		NewListOffersTool(d),
		NewHelpGuideTool(d),
	}
}
