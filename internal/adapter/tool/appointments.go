package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.opentelemetry.io/otel/trace"

	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/dates"
	"qtick-agent/internal/infra/phone"
	"qtick-agent/internal/infra/tracer"
)

const (
	dayFormat   = "2006-01-02"
	clockFormat = "03:04 PM"
)

type createAppointmentParams struct {
	Auth
	BusinessID int    `json:"business_id"`
	Phone      string `json:"phone"`
	ServiceIDs []int  `json:"service_ids"`
	DateTime   string `json:"date_time"`
}

// CreateAppointmentTool books an appointment. Service names are not
// resolved here; the model must call search_services first.
type CreateAppointmentTool struct{ base }

// NewCreateAppointmentTool creates the create_appointment wrapper.
func NewCreateAppointmentTool(d Deps) *CreateAppointmentTool {
	return &CreateAppointmentTool{newBase(NameCreateAppointment, d)}
}

func (t *CreateAppointmentTool) Execute(ctx context.Context, params json.RawMessage) (*domain.Envelope, error) {
	return Execute(ctx, t.Name(), t.Logger, params, t.handle)
}

func (t *CreateAppointmentTool) handle(ctx context.Context, span trace.Span, p createAppointmentParams) (*domain.Envelope, error) {
	if err := ValidateAll(
		ValidatePositive("business_id", p.BusinessID),
		RequireField("phone", strings.TrimSpace(p.Phone)),
		RequireField("date_time", strings.TrimSpace(p.DateTime)),
	); err != nil {
		return nil, err
	}
	if len(p.ServiceIDs) == 0 {
		return nil, fmt.Errorf("%w: 'service_ids' needs at least one catalog id; use search_services to find it", domain.ErrInvalidInput)
	}
	span.SetAttributes(tracer.IntAttr("business_id", p.BusinessID))

	in := domain.BookingInput{
		BusinessID: p.BusinessID,
		Phone:      phone.ForBackend(p.Phone, t.PhoneRegion),
		ServiceIDs: p.ServiceIDs,
		DateTime:   t.Dates.Instant(p.DateTime),
	}
	b, err := t.Backend.CreateBooking(ctx, in)
	if err != nil {
		return nil, err
	}

	day, clock := bookingWhen(*b)
	if day == "" {
		day, clock = splitInstant(in.DateTime)
	}
	text := fmt.Sprintf("Appointment booked successfully. Booking ID: %d for %s on %s at %s.", b.ID, orDefault(b.CustomerName, "the customer"), day, clock)

	return domain.NewEnvelope(NameCreateAppointment, b, text, bookingCard("✅ *Appointment Confirmed*", *b, day, clock)), nil
}

type listAppointmentsParams struct {
	Auth
	BusinessID int    `json:"business_id"`
	Period     string `json:"period"`
	FromDate   string `json:"from_date"`
	ToDate     string `json:"to_date"`
}

// ListAppointmentsTool lists bookings over a date window, today by default.
type ListAppointmentsTool struct{ base }

// NewListAppointmentsTool creates the list_appointments wrapper.
func NewListAppointmentsTool(d Deps) *ListAppointmentsTool {
	return &ListAppointmentsTool{newBase(NameListAppointments, d)}
}

func (t *ListAppointmentsTool) Execute(ctx context.Context, params json.RawMessage) (*domain.Envelope, error) {
	return Execute(ctx, t.Name(), t.Logger, params, t.handle)
}

func (t *ListAppointmentsTool) handle(ctx context.Context, span trace.Span, p listAppointmentsParams) (*domain.Envelope, error) {
	if err := ValidatePositive("business_id", p.BusinessID); err != nil {
		return nil, err
	}
	from, to := t.Dates.Window(p.Period, p.FromDate, p.ToDate)
	span.SetAttributes(
		tracer.IntAttr("business_id", p.BusinessID),
		tracer.StringAttr("from_date", from),
		tracer.StringAttr("to_date", to),
	)

	bookings, err := t.Backend.ListBookings(ctx, p.BusinessID, from, to)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	fmt.Fprintf(&text, "%d appointments found for business %d from %s to %s.", len(bookings), p.BusinessID, from, to)

	var wa strings.Builder
	fmt.Fprintf(&wa, "📅 *Appointments (%d)*", len(bookings))
	if len(bookings) == 0 {
		wa.WriteString("\n\nNo appointments scheduled.")
		return domain.NewEnvelope(NameListAppointments, bookings, text.String(), wa.String()), nil
	}

	rows := make([]table.Row, 0, len(bookings))
	for _, b := range bookings {
		day, clock := bookingWhen(b)
		services := strings.Join(b.Services, ", ")
		rows = append(rows, table.Row{b.ID, orDash(b.CustomerName), orDash(b.Phone), orDash(day), orDash(clock), orDash(services), orDash(b.Status)})

		fmt.Fprintf(&wa, "\n\n👤 %s", orDefault(b.CustomerName, "Customer"))
		if services != "" {
			fmt.Fprintf(&wa, "\n💇 %s", services)
		}
		fmt.Fprintf(&wa, "\n🕒 %s", strings.TrimSpace(day+" "+clock))
	}
	text.WriteString("\n\n")
	text.WriteString(markdownTable(table.Row{"Booking ID", "Customer", "Phone", "Date", "Time", "Services", "Status"}, rows))

	return domain.NewEnvelope(NameListAppointments, bookings, text.String(), wa.String()), nil
}

type getAppointmentParams struct {
	Auth
	AppointmentID string `json:"appointment_id"`
	BusinessID    int    `json:"business_id"`
}

// GetAppointmentTool fetches one booking. A missing booking is a result,
// not an error.
type GetAppointmentTool struct{ base }

// NewGetAppointmentTool creates the get_appointment wrapper.
func NewGetAppointmentTool(d Deps) *GetAppointmentTool {
	return &GetAppointmentTool{newBase(NameGetAppointment, d)}
}

func (t *GetAppointmentTool) Execute(ctx context.Context, params json.RawMessage) (*domain.Envelope, error) {
	return Execute(ctx, t.Name(), t.Logger, params, t.handle)
}

func (t *GetAppointmentTool) handle(ctx context.Context, span trace.Span, p getAppointmentParams) (*domain.Envelope, error) {
	id := strings.TrimSpace(p.AppointmentID)
	if err := RequireField("appointment_id", id); err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.StringAttr("appointment_id", id))

	b, err := t.Backend.GetBooking(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewEnvelope(NameGetAppointment, nil, fmt.Sprintf("Appointment not found for ID %s.", id), ""), nil
	}
	if err != nil {
		return nil, err
	}

	day, clock := bookingWhen(*b)
	text := fmt.Sprintf("Appointment details found for ID %s.", id)
	return domain.NewEnvelope(NameGetAppointment, b, text, bookingCard("📅 *Appointment Details*", *b, day, clock)), nil
}

func bookingCard(title string, b domain.Booking, day, clock string) string {
	var wa strings.Builder
	wa.WriteString(title)
	wa.WriteString("\n\n🆔 ID: " + strconv.Itoa(b.ID))
	if b.BusinessName != "" {
		wa.WriteString("\n🏢 " + b.BusinessName)
	}
	if b.CustomerName != "" {
		wa.WriteString("\n👤 " + b.CustomerName)
	}
	if when := strings.TrimSpace(day + " " + clock); when != "" {
		wa.WriteString("\n📅 " + when)
	}
	if len(b.Services) > 0 {
		wa.WriteString("\n💇 " + strings.Join(b.Services, ", "))
	}
	return wa.String()
}

// bookingWhen returns the booking's day and 12-hour clock, preferring the
// full start instant over the separate date and time fields.
func bookingWhen(b domain.Booking) (day, clock string) {
	if b.StartTime != "" {
		if d, c := splitInstant(b.StartTime); d != "" {
			return d, c
		}
	}
	day = b.Date
	for _, layout := range []string{"15:04:05", "15:04", "3:04 PM", "03:04 PM"} {
		if t, err := time.Parse(layout, strings.TrimSpace(b.Time)); err == nil {
			return day, t.Format(clockFormat)
		}
	}
	return day, b.Time
}

func splitInstant(s string) (day, clock string) {
	for _, layout := range []string{dates.InstantLayout, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t.Format(dayFormat), t.Format(clockFormat)
		}
	}
	return "", ""
}
