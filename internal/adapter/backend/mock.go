package backend

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sahilm/fuzzy"

	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/dates"
)

// mockBookingID is the id every mock booking receives.
const mockBookingID = 123

var mockCatalog = []domain.Service{
	{ID: 454, Name: "Simple Facial", Price: 590, Gender: "F", Type: "S"},
	{ID: 455, Name: "Hair Cut", Price: 350, Gender: "U", Type: "S"},
	{ID: 456, Name: "Hair Coloring", Price: 1200, Gender: "F", Type: "S"},
	{ID: 457, Name: "Beard Trim", Price: 200, Gender: "M", Type: "S"},
	{ID: 458, Name: "Gold Facial", Price: 1500, Gender: "F", Type: "S"},
}

var mockOffers = []domain.Offer{{
	Title:     "Festive Glow Facial",
	Details:   "20% off all facials this month.",
	StartDate: "2026-01-01",
	EndDate:   "2026-12-31",
	Link:      "https://qtick.co/bp/offers/festive-glow",
}}

// Mock is an in-memory Backend for local runs and tests.
type Mock struct {
	mu       sync.Mutex
	leads    []domain.Lead
	bookings []domain.Booking
	invoices []domain.Invoice
	now      func() time.Time
}

// NewMock creates an empty mock backend.
func NewMock() *Mock {
	return &Mock{now: time.Now}
}

// CreateLead implements domain.Backend.
func (m *Mock) CreateLead(_ context.Context, in domain.LeadInput) (*domain.Lead, error) {
	lead := domain.Lead{
		ID:         ulid.Make().String(),
		BusinessID: in.BusinessID,
		Name:       in.Name,
		Phone:      in.Phone,
		Email:      in.Email,
		Location:   in.Location,
		EnquiryFor: in.EnquiryFor,
		Source:     "mock",
		Details:    in.Details,
		Status:     "new",
		Interest:   in.Interest,
		CreatedAt:  dates.Format(m.now()),
	}
	m.mu.Lock()
	m.leads = append(m.leads, lead)
	m.mu.Unlock()
	return &lead, nil
}

// ListLeads implements domain.Backend.
func (m *Mock) ListLeads(_ context.Context, f domain.LeadFilter) (*domain.LeadPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	page := &domain.LeadPage{Items: []domain.Lead{}}
	for _, l := range m.leads {
		if f.BusinessID != 0 && l.BusinessID != f.BusinessID {
			continue
		}
		if f.SearchText != "" && !strings.Contains(strings.ToLower(l.Name), strings.ToLower(f.SearchText)) {
			continue
		}
		page.Items = append(page.Items, l)
	}
	page.Total = len(page.Items)
	return page, nil
}

// CreateBooking implements domain.Backend. The booking echoes the request.
func (m *Mock) CreateBooking(_ context.Context, in domain.BookingInput) (*domain.Booking, error) {
	date, clock := splitDateTime(in.DateTime)
	services := make([]string, 0, len(in.ServiceIDs))
	for _, id := range in.ServiceIDs {
		services = append(services, fmt.Sprintf("Service %d", id))
	}
	b := domain.Booking{
		ID:           mockBookingID,
		BusinessID:   in.BusinessID,
		BusinessName: "Mock Business",
		CustomerName: "Mock Customer",
		Phone:        in.Phone,
		Date:         date,
		Time:         clock,
		StartTime:    in.DateTime,
		Status:       "CONFIRMED",
		Services:     services,
	}
	m.mu.Lock()
	m.bookings = append(m.bookings, b)
	m.mu.Unlock()
	return &b, nil
}

// ListBookings implements domain.Backend. Dates are compared as DayLayout
// strings.
func (m *Mock) ListBookings(_ context.Context, businessID int, from, to string) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []domain.Booking{}
	for _, b := range m.bookings {
		if b.BusinessID != businessID {
			continue
		}
		day := dates.NormalizeDay(b.Date)
		if (from != "" && day < from) || (to != "" && day > to) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// GetBooking implements domain.Backend.
func (m *Mock) GetBooking(_ context.Context, id string) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if strconv.Itoa(b.ID) == id {
			return &b, nil
		}
	}
	return nil, domain.NewDomainError("mock.GetBooking", domain.ErrNotFound, id)
}

// CreateInvoice implements domain.Backend.
func (m *Mock) CreateInvoice(_ context.Context, in domain.InvoiceInput) (*domain.Invoice, error) {
	inv := domain.Invoice{
		ID:         ulid.Make().String(),
		BusinessID: in.BusinessID,
		CustomerID: in.CustomerID,
		Amount:     in.Amount,
		Currency:   in.Currency,
		Status:     "draft",
		Notes:      in.Notes,
		Items:      in.Items,
		CreatedAt:  m.now(),
	}
	m.mu.Lock()
	m.invoices = append(m.invoices, inv)
	m.mu.Unlock()
	return &inv, nil
}

// ListInvoices implements domain.Backend.
func (m *Mock) ListInvoices(_ context.Context, businessID int) ([]domain.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Invoice{}
	for _, inv := range m.invoices {
		if businessID == 0 || inv.BusinessID == businessID {
			out = append(out, inv)
		}
	}
	return out, nil
}

// GetInvoice implements domain.Backend.
func (m *Mock) GetInvoice(_ context.Context, id string) (*domain.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invoices {
		if inv.ID == id {
			return &inv, nil
		}
	}
	return nil, domain.NewDomainError("mock.GetInvoice", domain.ErrNotFound, id)
}

// GetSummary implements domain.Backend. Totals are derived from the store.
func (m *Mock) GetSummary(_ context.Context, businessID, from, to string) (*domain.BusinessSummary, error) {
	id, _ := strconv.Atoi(strings.TrimSpace(businessID))

	m.mu.Lock()
	defer m.mu.Unlock()

	s := &domain.BusinessSummary{BusinessID: businessID, FromDate: from, ToDate: to}
	for _, l := range m.leads {
		if l.BusinessID == id {
			s.TotalLeads++
		}
	}
	for _, b := range m.bookings {
		if b.BusinessID == id {
			s.TotalAppointments++
		}
	}
	for _, inv := range m.invoices {
		if inv.BusinessID == id {
			s.BillsCount++
			s.TotalRevenue += inv.Amount
		}
	}
	return s, nil
}

// SearchServices implements domain.Backend with fuzzy name matching. An
// empty query returns the whole catalog.
func (m *Mock) SearchServices(_ context.Context, q domain.ServiceQuery) ([]domain.Service, error) {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	if text == "" {
		return slices.Clone(mockCatalog), nil
	}

	names := make([]string, len(mockCatalog))
	for i, s := range mockCatalog {
		names[i] = strings.ToLower(s.Name)
	}
	matches := fuzzy.Find(text, names)
	out := make([]domain.Service, 0, len(matches))
	for _, match := range matches {
		out = append(out, mockCatalog[match.Index])
	}
	return out, nil
}

// ListOffers implements domain.Backend.
func (m *Mock) ListOffers(_ context.Context, _ int) ([]domain.Offer, error) {
	return slices.Clone(mockOffers), nil
}

// MyQueues implements domain.Backend. The mock knows no queues.
func (m *Mock) MyQueues(_ context.Context, phone string) ([]domain.Queue, error) {
	return nil, domain.NewDomainError("mock.MyQueues", domain.ErrNotFound, phone)
}

// splitDateTime splits an instant into its date and HH:MM:SS parts.
func splitDateTime(dt string) (string, string) {
	date, clock, ok := strings.Cut(dt, "T")
	if !ok {
		return dt, ""
	}
	if i := strings.IndexAny(clock, ".+-Z"); i >= 0 {
		clock = clock[:i]
	}
	return date, clock
}

var _ domain.Backend = (*Mock)(nil)
