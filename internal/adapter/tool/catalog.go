package tool

import (
	"encoding/json"

	"qtick-agent/internal/domain"
)

// Tool names, in catalog order.
const (
	NameCreateLead        = "create_lead"
	NameListLeads         = "list_leads"
	NameCreateAppointment = "create_appointment"
	NameListAppointments  = "list_appointments"
	NameGetAppointment    = "get_appointment"
	NameCreateInvoice     = "create_invoice"
	NameListInvoices      = "list_invoices"
	NameGetInvoice        = "get_invoice"
	NameSummary           = "get_summary_for_business"
	NameFranchiseSummary  = "get_franchise_summary"
	NameSearchServices    = "search_services"
	NameListOffers        = "list_offers"
	NameHelpGuide         = "get_help_guide"
)

const periodProps = `
		"period": {"type": "string", "description": "Named date range: today, yesterday, this week, last week, this month or last month. Unrecognized values mean today. Ignored when from_date or to_date is given."},
		"from_date": {"type": "string", "description": "Start date, YYYY/MM/DD or YYYY-MM-DD"},
		"to_date": {"type": "string", "description": "End date, YYYY/MM/DD or YYYY-MM-DD"}`

// catalog is the wire contract with the model. Parameter names must stay
// stable; renaming one changes model behavior.
var catalog = []domain.ToolSchema{
	{
		Name:        NameCreateLead,
		Description: "Create a new sales lead (enquiry) for a business. Use when a customer shows interest in a service.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"business_id": {"type": "integer", "description": "Business id"},
				"name": {"type": "string", "description": "Customer name"},
				"phone": {"type": "string", "description": "Customer phone number"},
				"email": {"type": "string"},
				"location": {"type": "string"},
				"enquiry_for": {"type": "string", "description": "What the customer is enquiring about"},
				"service_name": {"type": "string", "description": "Service the customer asked for, matched against the catalog"},
				"source": {"type": "string", "description": "Lead source channel, max 10 characters"},
				"notes": {"type": "string"},
				"details": {"type": "string"},
				"interest": {"type": "integer", "description": "Interest level, 1 to 5"},
				"follow_up_date": {"type": "string", "description": "When to follow up, natural language or ISO 8601"},
				"enquired_on": {"type": "string", "description": "When the enquiry was made"},
				"enquiry_for_time": {"type": "string", "description": "When the customer wants the service"},
				"attention_staff_id": {"type": "integer"},
				"attention_channel": {"type": "string"},
				"third_status": {"type": "string"}
			},
			"required": ["business_id", "name"]
		}`),
	},
	{
		Name:        NameListLeads,
		Description: "List leads for a business, optionally filtered by date range, search text or status.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"business_id": {"type": "integer", "description": "Business id"},` + periodProps + `,
				"search_text": {"type": "string", "description": "Match against name, phone or enquiry"},
				"status": {"type": "string", "description": "Lead status filter"}
			},
			"required": ["business_id"]
		}`),
	},
	{
		Name:        NameCreateAppointment,
		Description: "Book an appointment for a customer. service_ids must be catalog ids; call search_services first to resolve service names.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"business_id": {"type": "integer", "description": "Business id"},
				"phone": {"type": "string", "description": "Customer phone number"},
				"service_ids": {"type": "array", "items": {"type": "integer"}, "description": "Catalog service ids"},
				"date_time": {"type": "string", "description": "Appointment time, e.g. 'tomorrow at 10am' or ISO 8601"}
			},
			"required": ["business_id", "phone", "service_ids", "date_time"]
		}`),
	},
	{
		Name:        NameListAppointments,
		Description: "List appointments (bookings) for a business over a date range. Defaults to today.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"business_id": {"type": "integer", "description": "Business id"},` + periodProps + `
			},
			"required": ["business_id"]
		}`),
	},
	{
		Name:        NameGetAppointment,
		Description: "Get the details of one appointment by its booking id.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"appointment_id": {"type": "string", "description": "Booking id"},
				"business_id": {"type": "integer"}
			},
			"required": ["appointment_id"]
		}`),
	},
	{
		Name:        NameCreateInvoice,
		Description: "Create an invoice for a customer.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"business_id": {"type": "integer", "description": "Business id"},
				"customer_id": {"type": "string"},
				"amount": {"type": "number", "description": "Total amount"},
				"items": {
					"type": "array",
					"items": {
						"type": "object",
						"properties": {
							"description": {"type": "string"},
							"quantity": {"type": "integer"},
							"unit_price": {"type": "number"}
						}
					}
				},
				"currency": {"type": "string", "description": "ISO currency code, default INR"},
				"notes": {"type": "string"}
			},
			"required": ["business_id", "customer_id", "amount"]
		}`),
	},
	{
		Name:        NameListInvoices,
		Description: "List invoices, optionally for one business.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"business_id": {"type": "integer"}
			}
		}`),
	},
	{
		Name:        NameGetInvoice,
		Description: "Get the details of one invoice by id.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"invoice_id": {"type": "string"}
			},
			"required": ["invoice_id"]
		}`),
	},
	{
		Name:        NameSummary,
		Description: "Get a business summary (leads, appointments, bills, revenue) for a date range.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"business_id": {"type": "integer", "description": "Business id"},` + periodProps + `
			},
			"required": ["business_id"]
		}`),
	},
	{
		Name:        NameFranchiseSummary,
		Description: "Get a combined summary across several franchise branches, with per-branch figures.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"business_ids": {"type": "string", "description": "Comma-separated branch business ids, e.g. '11,96'"},` + periodProps + `
			},
			"required": ["business_ids"]
		}`),
	},
	{
		Name:        NameSearchServices,
		Description: "Search the business catalog for services by name. Returns service ids and prices.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"business_id": {"type": "integer", "description": "Business id"},
				"text": {"type": "string", "description": "Service name or part of it"},
				"group_id": {"type": "integer", "description": "Catalog group filter, 0 for all"}
			},
			"required": ["business_id", "text"]
		}`),
	},
	{
		Name:        NameListOffers,
		Description: "List the active promotional offers of a business.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"business_id": {"type": "integer", "description": "Business id"}
			},
			"required": ["business_id"]
		}`),
	},
	{
		Name:        NameHelpGuide,
		Description: "Explain what the assistant can do. Use when the user asks for help or how to get started.",
		Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
	},
}

// Definitions returns the tool catalog in stable order. The slice is a copy;
// the catalog itself never changes at runtime.
func Definitions() []domain.ToolSchema {
	out := make([]domain.ToolSchema, len(catalog))
	copy(out, catalog)
	return out
}

func definition(name string) (domain.ToolSchema, bool) {
	for _, d := range catalog {
		if d.Name == name {
			return d, true
		}
	}
	return domain.ToolSchema{}, false
}

// describe gives a wrapper its catalog identity.
type describe string

func (d describe) Name() string { return string(d) }

func (d describe) Description() string {
	s, _ := definition(string(d))
	return s.Description
}

func (d describe) Schema() domain.ToolSchema {
	s, ok := definition(string(d))
	if !ok {
		return domain.ToolSchema{Name: string(d)}
	}
	return s
}
