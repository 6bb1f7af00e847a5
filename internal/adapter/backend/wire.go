package backend

import (
	"encoding/json"
	"strings"
	"time"

	"qtick-agent/internal/domain"
)

// Backend JSON shapes. Field names follow the backend's camelCase contract.

type leadPayload struct {
	BizID        int    `json:"bizId"`
	Phone        string `json:"phone,omitempty"`
	CustName     string `json:"custName"`
	Email        string `json:"email,omitempty"`
	Location     string `json:"location,omitempty"`
	EnqFor       string `json:"enqFor,omitempty"`
	SrcChannel   string `json:"srcChannel"`
	CampID       int    `json:"campId"`
	CampName     string `json:"campName"`
	Details      string `json:"details"`
	ThdStatus    string `json:"thdStatus"`
	Interest     int    `json:"interest"`
	FollowUpDate string `json:"followUpDate"`
	EnquiredOn   string `json:"enquiredOn"`
	EnqForTime   string `json:"enqForTime"`
	AttnStaffID  int    `json:"attnStaffId"`
	AttnChannel  string `json:"attnChannel"`
}

type leadWire struct {
	BizID      int             `json:"bizId"`
	CustID     json.RawMessage `json:"custId"`
	EnqNo      json.RawMessage `json:"enqNo"`
	CustName   string          `json:"custName"`
	Phone      string          `json:"phone"`
	Email      string          `json:"email"`
	Location   string          `json:"location"`
	EnqFor     string          `json:"enqFor"`
	SrcChannel string          `json:"srcChannel"`
	Details    string          `json:"details"`
	Status     json.RawMessage `json:"status"`
	Value      float64         `json:"value"`
	Interest   int             `json:"interest"`
	EnquiredOn string          `json:"enquiredOn"`
}

func (w leadWire) toDomain() domain.Lead {
	id := rawString(w.EnqNo)
	if id == "" {
		id = rawString(w.CustID)
	}
	return domain.Lead{
		ID:         id,
		BusinessID: w.BizID,
		Name:       orDefault(w.CustName, "Unknown"),
		Phone:      w.Phone,
		Email:      w.Email,
		Location:   w.Location,
		EnquiryFor: w.EnqFor,
		Source:     w.SrcChannel,
		Details:    w.Details,
		Status:     rawString(w.Status),
		Value:      w.Value,
		Interest:   w.Interest,
		CreatedAt:  w.EnquiredOn,
	}
}

type leadListWire struct {
	Total int        `json:"total"`
	Items []leadWire `json:"items"`
}

// UnmarshalJSON accepts both the paged object and a bare array.
func (l *leadListWire) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &l.Items); err != nil {
			return err
		}
		l.Total = len(l.Items)
		return nil
	}
	type plain leadListWire
	return json.Unmarshal(data, (*plain)(l))
}

type bizInfoWire struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type bookingWire struct {
	BookingID int         `json:"bookingId"`
	Date      string      `json:"date"`
	Time      string      `json:"time"`
	StartTime string      `json:"startTime"`
	CustName  string      `json:"custName"`
	Phone     string      `json:"phone"`
	Status    string      `json:"status"`
	BizInfo   bizInfoWire `json:"bizInfo"`
	Services  []string    `json:"services"`
}

func (w bookingWire) toDomain() domain.Booking {
	return domain.Booking{
		ID:           w.BookingID,
		BusinessID:   w.BizInfo.ID,
		BusinessName: w.BizInfo.Name,
		CustomerName: w.CustName,
		Phone:        w.Phone,
		Date:         w.Date,
		Time:         w.Time,
		StartTime:    w.StartTime,
		Status:       w.Status,
		Services:     w.Services,
	}
}

type invoiceWire struct {
	ID        json.RawMessage      `json:"id,omitempty"`
	BizID     int                  `json:"bizId"`
	CustID    string               `json:"custId"`
	Amount    float64              `json:"amount"`
	Currency  string               `json:"currency,omitempty"`
	Status    string               `json:"status,omitempty"`
	Notes     string               `json:"notes,omitempty"`
	Items     []domain.InvoiceItem `json:"items,omitempty"`
	CreatedAt time.Time            `json:"createdAt,omitzero"`
}

func (w invoiceWire) toDomain() domain.Invoice {
	return domain.Invoice{
		ID:         rawString(w.ID),
		BusinessID: w.BizID,
		CustomerID: w.CustID,
		Amount:     w.Amount,
		Currency:   w.Currency,
		Status:     w.Status,
		Notes:      w.Notes,
		Items:      w.Items,
		CreatedAt:  w.CreatedAt,
	}
}

type summaryWire struct {
	TotalLeads        int     `json:"totalLeads"`
	TotalAppointments int     `json:"totalAppointments"`
	BillsCount        int     `json:"billsCount"`
	TotalRevenue      float64 `json:"totalRevenue"`
}

type serviceWire struct {
	ID     int     `json:"id"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Gender string  `json:"gender"`
	Type   string  `json:"type"`
}

type offerWire struct {
	Title     string `json:"title"`
	Details   string `json:"details"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	BPLink    string `json:"bpLink"`
}

type queueWire struct {
	BizID int    `json:"bizId"`
	Name  string `json:"name"`
}

// rawString renders a JSON scalar (string or number) as text.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
