package domain

import "context"

// Backend is the downstream business-management API. Implementations read
// caller credentials from ctx via CredentialsFromContext.
type Backend interface {
	CreateLead(ctx context.Context, in LeadInput) (*Lead, error)
	ListLeads(ctx context.Context, f LeadFilter) (*LeadPage, error)
	CreateBooking(ctx context.Context, in BookingInput) (*Booking, error)
	ListBookings(ctx context.Context, businessID int, from, to string) ([]Booking, error)
	GetBooking(ctx context.Context, id string) (*Booking, error)
	CreateInvoice(ctx context.Context, in InvoiceInput) (*Invoice, error)
	ListInvoices(ctx context.Context, businessID int) ([]Invoice, error)
	GetInvoice(ctx context.Context, id string) (*Invoice, error)
	GetSummary(ctx context.Context, businessID, from, to string) (*BusinessSummary, error)
	SearchServices(ctx context.Context, q ServiceQuery) ([]Service, error)
	ListOffers(ctx context.Context, businessID int) ([]Offer, error)
	MyQueues(ctx context.Context, phone string) ([]Queue, error)
}

// PhoneDirectory maps operator phone numbers to business ids.
type PhoneDirectory interface {
	// Lookup returns ErrPhoneNotMapped when the phone has no business.
	Lookup(ctx context.Context, phone string) (int, error)
	// Register maps phone to businessID; ErrBusinessTaken if the id belongs
	// to a different phone.
	Register(ctx context.Context, phone string, businessID int) error
}
