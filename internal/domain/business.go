package domain

import "time"

// Lead is the backend's sales enquiry record.
type Lead struct {
	ID               string  `json:"id"`
	BusinessID       int     `json:"business_id"`
	Name             string  `json:"name"`
	Phone            string  `json:"phone,omitempty"`
	Email            string  `json:"email,omitempty"`
	Location         string  `json:"location,omitempty"`
	EnquiryFor       string  `json:"enquiry_for,omitempty"`
	Source           string  `json:"source,omitempty"`
	Details          string  `json:"details,omitempty"`
	Status           string  `json:"status,omitempty"`
	Value            float64 `json:"value"`
	Interest         int     `json:"interest,omitempty"`
	AttentionStaffID int     `json:"attention_staff_id,omitempty"`
	AttentionChannel string  `json:"attention_channel,omitempty"`
	CreatedAt        string  `json:"created_at,omitempty"`
}

// LeadInput is the request to create a lead. Date fields are canonical instants.
type LeadInput struct {
	BusinessID       int
	Name             string
	Phone            string
	Email            string
	Location         string
	EnquiryFor       string
	Source           string
	Details          string
	Interest         int
	ThirdStatus      string
	FollowUpDate     string
	EnquiredOn       string
	EnquiryForTime   string
	AttentionStaffID int
	AttentionChannel string
}

// LeadFilter narrows a lead listing. Dates use YYYY/MM/DD.
type LeadFilter struct {
	BusinessID int
	SearchText string
	Status     string
	PeriodType string
	FromDate   string
	ToDate     string
}

// LeadPage is one listing response.
type LeadPage struct {
	Total int    `json:"total"`
	Items []Lead `json:"items"`
}

// TotalValue sums the estimated value of every lead in the page.
func (p *LeadPage) TotalValue() float64 {
	var sum float64
	for _, l := range p.Items {
		sum += l.Value
	}
	return sum
}

// BookingInput is the request to book an appointment.
type BookingInput struct {
	BusinessID int    `json:"bizId"`
	Phone      string `json:"phone"`
	ServiceIDs []int  `json:"serviceIds"`
	DateTime   string `json:"dateTime"`
}

// Booking is a confirmed or listed appointment.
type Booking struct {
	ID           int      `json:"booking_id"`
	BusinessID   int      `json:"business_id,omitempty"`
	BusinessName string   `json:"business_name,omitempty"`
	CustomerName string   `json:"customer_name"`
	Phone        string   `json:"phone,omitempty"`
	Date         string   `json:"date,omitempty"`
	Time         string   `json:"time,omitempty"`
	StartTime    string   `json:"start_time,omitempty"`
	Status       string   `json:"status,omitempty"`
	Services     []string `json:"services,omitempty"`
}

// Invoice is a billing record.
type Invoice struct {
	ID         string        `json:"id"`
	BusinessID int           `json:"business_id"`
	CustomerID string        `json:"customer_id"`
	Amount     float64       `json:"amount"`
	Currency   string        `json:"currency,omitempty"`
	Status     string        `json:"status,omitempty"`
	Notes      string        `json:"notes,omitempty"`
	Items      []InvoiceItem `json:"items,omitempty"`
	CreatedAt  time.Time     `json:"created_at,omitzero"`
}

// InvoiceItem is one invoice line.
type InvoiceItem struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// InvoiceInput is the request to create an invoice.
type InvoiceInput struct {
	BusinessID int
	CustomerID string
	Amount     float64
	Currency   string
	Notes      string
	Items      []InvoiceItem
}

// BusinessSummary aggregates activity for one business over a date range.
type BusinessSummary struct {
	BusinessID        string  `json:"business_id"`
	FromDate          string  `json:"from_date"`
	ToDate            string  `json:"to_date"`
	TotalLeads        int     `json:"total_leads"`
	TotalAppointments int     `json:"total_appointments"`
	BillsCount        int     `json:"bills_count"`
	TotalRevenue      float64 `json:"total_revenue"`
}

// Add accumulates o into s element-wise.
func (s *BusinessSummary) Add(o BusinessSummary) {
	s.TotalLeads += o.TotalLeads
	s.TotalAppointments += o.TotalAppointments
	s.BillsCount += o.BillsCount
	s.TotalRevenue += o.TotalRevenue
}

// FranchiseSummary is the sum of several branch summaries.
type FranchiseSummary struct {
	BusinessSummary
	Branches []BusinessSummary `json:"branches"`
	Failed   []string          `json:"failed_branches,omitempty"`
}

// FranchiseGroupID labels an aggregated summary.
const FranchiseGroupID = "FRANCHISE_GROUP"

// Service is a catalog entry.
type Service struct {
	ID     int     `json:"id"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Gender string  `json:"gender,omitempty"`
	Type   string  `json:"type,omitempty"`
}

// ServiceQuery searches a business catalog.
type ServiceQuery struct {
	BusinessID int
	Text       string
	GroupID    int
}

// Offer is an active promotion.
type Offer struct {
	Title     string `json:"title"`
	Details   string `json:"details,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Link      string `json:"bp_link,omitempty"`
}

// Queue is a business queue the phone's owner operates.
type Queue struct {
	BusinessID int    `json:"biz_id"`
	Name       string `json:"name,omitempty"`
}
