package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/dates"
)

// Lead defaults the backend requires.
const (
	defaultCampaignID    = 38
	defaultCampaignName  = "Campaign"
	defaultThirdStatus   = "A"
	defaultInterest      = 3
	defaultStaffID       = 21
	defaultAttnChannel   = "P"
	defaultSourceChannel = "Manual"
	maxSourceChannel     = 10
)

// CreateLead implements domain.Backend.
func (c *Client) CreateLead(ctx context.Context, in domain.LeadInput) (*domain.Lead, error) {
	now := dates.Format(c.now())
	payload := leadPayload{
		BizID:        in.BusinessID,
		Phone:        strings.ReplaceAll(in.Phone, "+", ""),
		CustName:     in.Name,
		Email:        in.Email,
		Location:     in.Location,
		EnqFor:       in.EnquiryFor,
		SrcChannel:   sourceChannel(in.Source),
		CampID:       defaultCampaignID,
		CampName:     defaultCampaignName,
		Details:      in.Details,
		ThdStatus:    orDefault(in.ThirdStatus, defaultThirdStatus),
		Interest:     positiveOr(in.Interest, defaultInterest),
		FollowUpDate: orDefault(in.FollowUpDate, now),
		EnquiredOn:   orDefault(in.EnquiredOn, now),
		EnqForTime:   orDefault(in.EnquiryForTime, now),
		AttnStaffID:  positiveOr(in.AttentionStaffID, defaultStaffID),
		AttnChannel:  orDefault(in.AttentionChannel, defaultAttnChannel),
	}

	var out leadWire
	if err := c.do(ctx, request{op: "create_lead", method: http.MethodPost, path: "/biz/sales-enq", body: payload}, &out); err != nil {
		return nil, err
	}
	lead := out.toDomain()
	if lead.BusinessID == 0 {
		lead.BusinessID = in.BusinessID
	}
	if lead.CreatedAt == "" {
		lead.CreatedAt = payload.EnquiredOn
	}
	return &lead, nil
}

// ListLeads implements domain.Backend.
func (c *Client) ListLeads(ctx context.Context, f domain.LeadFilter) (*domain.LeadPage, error) {
	q := url.Values{}
	q.Set("searchText", f.SearchText)
	q.Set("status", f.Status)
	q.Set("periodType", f.PeriodType)
	q.Set("periodFilterBy", "A")
	q.Set("fromDate", f.FromDate)
	q.Set("toDate", f.ToDate)

	var out leadListWire
	if err := c.do(ctx, request{op: "list_leads", method: http.MethodGet, path: bizPath(f.BusinessID, "/sales-enq/list"), query: q}, &out); err != nil {
		return nil, err
	}
	page := &domain.LeadPage{Total: out.Total, Items: make([]domain.Lead, 0, len(out.Items))}
	for _, w := range out.Items {
		page.Items = append(page.Items, w.toDomain())
	}
	if page.Total < len(page.Items) {
		page.Total = len(page.Items)
	}
	return page, nil
}

// CreateBooking implements domain.Backend.
func (c *Client) CreateBooking(ctx context.Context, in domain.BookingInput) (*domain.Booking, error) {
	var out bookingWire
	if err := c.do(ctx, request{op: "create_booking", method: http.MethodPost, path: "/biz/booking", body: in}, &out); err != nil {
		return nil, err
	}
	b := out.toDomain()
	if b.BusinessID == 0 {
		b.BusinessID = in.BusinessID
	}
	return &b, nil
}

// ListBookings implements domain.Backend.
func (c *Client) ListBookings(ctx context.Context, businessID int, from, to string) ([]domain.Booking, error) {
	q := url.Values{}
	q.Set("fromDate", from)
	q.Set("toDate", to)

	var out []bookingWire
	if err := c.do(ctx, request{op: "list_bookings", method: http.MethodGet, path: bizPath(businessID, "/booking/list"), query: q}, &out); err != nil {
		return nil, err
	}
	bookings := make([]domain.Booking, 0, len(out))
	for _, w := range out {
		bookings = append(bookings, w.toDomain())
	}
	return bookings, nil
}

// GetBooking implements domain.Backend.
func (c *Client) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	var out bookingWire
	if err := c.do(ctx, request{op: "get_booking", method: http.MethodGet, path: "/biz/booking/" + url.PathEscape(id)}, &out); err != nil {
		return nil, err
	}
	b := out.toDomain()
	return &b, nil
}

// CreateInvoice implements domain.Backend.
func (c *Client) CreateInvoice(ctx context.Context, in domain.InvoiceInput) (*domain.Invoice, error) {
	payload := invoiceWire{
		BizID:    in.BusinessID,
		CustID:   in.CustomerID,
		Amount:   in.Amount,
		Currency: in.Currency,
		Notes:    in.Notes,
		Items:    in.Items,
	}
	var out invoiceWire
	if err := c.do(ctx, request{op: "create_invoice", method: http.MethodPost, path: "/invoices", body: payload}, &out); err != nil {
		return nil, err
	}
	inv := out.toDomain()
	return &inv, nil
}

// ListInvoices implements domain.Backend. A zero businessID lists all
// invoices the token can see.
func (c *Client) ListInvoices(ctx context.Context, businessID int) ([]domain.Invoice, error) {
	q := url.Values{}
	if businessID > 0 {
		q.Set("bizId", strconv.Itoa(businessID))
	}
	var out []invoiceWire
	if err := c.do(ctx, request{op: "list_invoices", method: http.MethodGet, path: "/invoices", query: q}, &out); err != nil {
		return nil, err
	}
	invoices := make([]domain.Invoice, 0, len(out))
	for _, w := range out {
		invoices = append(invoices, w.toDomain())
	}
	return invoices, nil
}

// GetInvoice implements domain.Backend.
func (c *Client) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	var out invoiceWire
	if err := c.do(ctx, request{op: "get_invoice", method: http.MethodGet, path: "/invoices/" + url.PathEscape(id)}, &out); err != nil {
		return nil, err
	}
	inv := out.toDomain()
	return &inv, nil
}

// GetSummary implements domain.Backend.
func (c *Client) GetSummary(ctx context.Context, businessID, from, to string) (*domain.BusinessSummary, error) {
	q := url.Values{}
	q.Set("fromDate", from)
	q.Set("toDate", to)

	var out summaryWire
	path := "/biz/" + url.PathEscape(strings.TrimSpace(businessID)) + "/summary"
	if err := c.do(ctx, request{op: "get_summary", method: http.MethodGet, path: path, query: q}, &out); err != nil {
		return nil, err
	}
	return &domain.BusinessSummary{
		BusinessID:        businessID,
		FromDate:          from,
		ToDate:            to,
		TotalLeads:        out.TotalLeads,
		TotalAppointments: out.TotalAppointments,
		BillsCount:        out.BillsCount,
		TotalRevenue:      out.TotalRevenue,
	}, nil
}

// SearchServices implements domain.Backend.
func (c *Client) SearchServices(ctx context.Context, sq domain.ServiceQuery) ([]domain.Service, error) {
	q := url.Values{}
	q.Set("searchText", sq.Text)
	if sq.GroupID > 0 {
		q.Set("groupId", strconv.Itoa(sq.GroupID))
	}
	var out []serviceWire
	if err := c.do(ctx, request{op: "search_services", method: http.MethodGet, path: bizPath(sq.BusinessID, "/catalog/services"), query: q}, &out); err != nil {
		return nil, err
	}
	services := make([]domain.Service, 0, len(out))
	for _, w := range out {
		services = append(services, domain.Service{ID: w.ID, Name: w.Name, Price: w.Price, Gender: w.Gender, Type: w.Type})
	}
	return services, nil
}

// ListOffers implements domain.Backend.
func (c *Client) ListOffers(ctx context.Context, businessID int) ([]domain.Offer, error) {
	var out []offerWire
	if err := c.do(ctx, request{op: "list_offers", method: http.MethodGet, path: bizPath(businessID, "/offers")}, &out); err != nil {
		return nil, err
	}
	offers := make([]domain.Offer, 0, len(out))
	for _, w := range out {
		offers = append(offers, domain.Offer{
			Title:     w.Title,
			Details:   w.Details,
			StartDate: w.StartDate,
			EndDate:   w.EndDate,
			Link:      w.BPLink,
		})
	}
	return offers, nil
}

// MyQueues implements domain.Backend. The phone travels as the client id and
// the profile secret, when configured, replaces the bearer token.
func (c *Client) MyQueues(ctx context.Context, phone string) ([]domain.Queue, error) {
	headers := map[string]string{"X-ClientId": phone}
	if c.profileSecret != "" {
		headers["Authorization"] = "Bearer " + c.profileSecret
	}
	var out []queueWire
	if err := c.do(ctx, request{op: "my_queues", method: http.MethodGet, path: "/biz/my-queues", headers: headers}, &out); err != nil {
		return nil, err
	}
	queues := make([]domain.Queue, 0, len(out))
	for _, w := range out {
		queues = append(queues, domain.Queue{BusinessID: w.BizID, Name: w.Name})
	}
	return queues, nil
}

func sourceChannel(source string) string {
	source = strings.TrimSpace(source)
	if source == "" {
		return defaultSourceChannel
	}
	if r := []rune(source); len(r) > maxSourceChannel {
		return string(r[:maxSourceChannel])
	}
	return source
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
