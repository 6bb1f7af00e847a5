package tool

import (
	"context"
	"io"
	"log/slog"
	"time"

	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/dates"
	"qtick-agent/internal/infra/metrics"
)

// nopLogger returns a logger that discards output.
func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// refNow is Wednesday 2026-03-04 08:00 UTC.
var refNow = time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)

func testDeps(b domain.Backend) Deps {
	return Deps{
		Backend:     b,
		Dates:       dates.New(nopLogger(), dates.WithClock(func() time.Time { return refNow })),
		Metrics:     metrics.New(),
		Logger:      nopLogger(),
		PhoneRegion: "IN",
	}
}

// fakeBackend overrides the operations a test needs; the rest panic through
// the nil embedded interface.
type fakeBackend struct {
	domain.Backend

	createLead     func(context.Context, domain.LeadInput) (*domain.Lead, error)
	listLeads      func(context.Context, domain.LeadFilter) (*domain.LeadPage, error)
	createBooking  func(context.Context, domain.BookingInput) (*domain.Booking, error)
	listBookings   func(ctx context.Context, businessID int, from, to string) ([]domain.Booking, error)
	getBooking     func(context.Context, string) (*domain.Booking, error)
	getInvoice     func(context.Context, string) (*domain.Invoice, error)
	getSummary     func(ctx context.Context, businessID, from, to string) (*domain.BusinessSummary, error)
	searchServices func(context.Context, domain.ServiceQuery) ([]domain.Service, error)
	listOffers     func(context.Context, int) ([]domain.Offer, error)
}

func (f *fakeBackend) CreateLead(ctx context.Context, in domain.LeadInput) (*domain.Lead, error) {
	return f.createLead(ctx, in)
}

func (f *fakeBackend) ListLeads(ctx context.Context, lf domain.LeadFilter) (*domain.LeadPage, error) {
	return f.listLeads(ctx, lf)
}

func (f *fakeBackend) CreateBooking(ctx context.Context, in domain.BookingInput) (*domain.Booking, error) {
	return f.createBooking(ctx, in)
}

func (f *fakeBackend) ListBookings(ctx context.Context, businessID int, from, to string) ([]domain.Booking, error) {
	return f.listBookings(ctx, businessID, from, to)
}

func (f *fakeBackend) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	return f.getBooking(ctx, id)
}

func (f *fakeBackend) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	return f.getInvoice(ctx, id)
}

func (f *fakeBackend) GetSummary(ctx context.Context, businessID, from, to string) (*domain.BusinessSummary, error) {
	return f.getSummary(ctx, businessID, from, to)
}

func (f *fakeBackend) SearchServices(ctx context.Context, q domain.ServiceQuery) ([]domain.Service, error) {
	return f.searchServices(ctx, q)
}

func (f *fakeBackend) ListOffers(ctx context.Context, businessID int) ([]domain.Offer, error) {
	return f.listOffers(ctx, businessID)
}
