package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qtick-agent/internal/domain"
)

// leadRecorder returns a backend that records the lead input and echoes it.
func leadRecorder(got *domain.LeadInput, services func(context.Context, domain.ServiceQuery) ([]domain.Service, error)) *fakeBackend {
	return &fakeBackend{
		createLead: func(_ context.Context, in domain.LeadInput) (*domain.Lead, error) {
			*got = in
			return &domain.Lead{ID: "42", BusinessID: in.BusinessID, Name: in.Name, EnquiryFor: in.EnquiryFor, Status: "NEW"}, nil
		},
		searchServices: services,
	}
}

func TestCreateLeadEnquiryFallback(t *testing.T) {
	noLookup := func(context.Context, domain.ServiceQuery) ([]domain.Service, error) {
		return nil, nil
	}
	ctx := domain.ContextWithPrompt(context.Background(), "Customer wants a bridal makeover")

	tests := []struct {
		name string
		args string
		want string
	}{
		{"explicit enquiry kept verbatim", `{"business_id":96,"name":"Asha","enquiry_for":"Hair Spa","service_name":"Facial"}`, "Hair Spa"},
		{"service name used", `{"business_id":96,"name":"Asha","service_name":"Keratin"}`, "Keratin"},
		{"prompt used last", `{"business_id":96,"name":"Asha"}`, "Customer wants a bridal makeover"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got domain.LeadInput
			tool := NewCreateLeadTool(testDeps(leadRecorder(&got, noLookup)))
			_, err := tool.Execute(ctx, json.RawMessage(tt.args))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.EnquiryFor)
		})
	}
}

func TestCreateLeadCanonicalizesSingleServiceMatch(t *testing.T) {
	var got domain.LeadInput
	var query domain.ServiceQuery
	b := leadRecorder(&got, func(_ context.Context, q domain.ServiceQuery) ([]domain.Service, error) {
		query = q
		return []domain.Service{{ID: 454, Name: "Simple Facial", Price: 590}}, nil
	})

	_, err := NewCreateLeadTool(testDeps(b)).Execute(context.Background(),
		json.RawMessage(`{"business_id":96,"name":"Asha","service_name":"facial"}`))
	require.NoError(t, err)
	assert.Equal(t, "Simple Facial", got.EnquiryFor)
	assert.Equal(t, domain.ServiceQuery{BusinessID: 96, Text: "facial"}, query)
}

func TestCreateLeadKeepsNameOnAmbiguousMatch(t *testing.T) {
	var got domain.LeadInput
	b := leadRecorder(&got, func(context.Context, domain.ServiceQuery) ([]domain.Service, error) {
		return []domain.Service{{ID: 454, Name: "Simple Facial"}, {ID: 458, Name: "Gold Facial"}}, nil
	})

	_, err := NewCreateLeadTool(testDeps(b)).Execute(context.Background(),
		json.RawMessage(`{"business_id":96,"name":"Asha","service_name":"facial"}`))
	require.NoError(t, err)
	assert.Equal(t, "facial", got.EnquiryFor)
}

func TestCreateLeadSwallowsLookupFailure(t *testing.T) {
	var got domain.LeadInput
	b := leadRecorder(&got, func(context.Context, domain.ServiceQuery) ([]domain.Service, error) {
		return nil, errors.New("catalog down")
	})

	env, err := NewCreateLeadTool(testDeps(b)).Execute(context.Background(),
		json.RawMessage(`{"business_id":96,"name":"Asha","service_name":"Keratin"}`))
	require.NoError(t, err)
	assert.Equal(t, "Keratin", got.EnquiryFor)
	assert.Equal(t, NameCreateLead, env.Kind)
}

func TestCreateLeadRendering(t *testing.T) {
	var got domain.LeadInput
	b := leadRecorder(&got, nil)

	env, err := NewCreateLeadTool(testDeps(b)).Execute(context.Background(), json.RawMessage(
		`{"business_id":96,"name":" Asha ","phone":"+91 90805 34415","enquiry_for":"Facial","details":"Prefers mornings","notes":"VIP","follow_up_date":"2026-03-10"}`))
	require.NoError(t, err)

	assert.Equal(t, "Lead created successfully. ID: 42, Status: NEW, Value: 0.00", env.Text)
	assert.True(t, strings.HasPrefix(env.WhatsAppText, "✅ *Lead Created*"), env.WhatsAppText)
	assert.Contains(t, env.WhatsAppText, "💰 *Potential Value:* ₹0.00")

	assert.Equal(t, "Asha", got.Name)
	assert.Equal(t, "919080534415", got.Phone)
	assert.Equal(t, "Prefers mornings\nVIP", got.Details)
	assert.Equal(t, "2026-03-10T00:00:00.000+0000", got.FollowUpDate)
	assert.Empty(t, got.EnquiredOn, "unset dates are left for the backend default")
}

func TestCreateLeadBackendError(t *testing.T) {
	b := &fakeBackend{createLead: func(context.Context, domain.LeadInput) (*domain.Lead, error) {
		return nil, domain.ErrBackend
	}}
	_, err := NewCreateLeadTool(testDeps(b)).Execute(context.Background(),
		json.RawMessage(`{"business_id":96,"name":"Asha","enquiry_for":"x"}`))
	assert.ErrorIs(t, err, domain.ErrBackend)
}

func TestListLeads(t *testing.T) {
	var filter domain.LeadFilter
	b := &fakeBackend{listLeads: func(_ context.Context, f domain.LeadFilter) (*domain.LeadPage, error) {
		filter = f
		return &domain.LeadPage{Total: 2, Items: []domain.Lead{
			{ID: "1", Name: "John", Status: "NEW", Value: 600},
			{ID: "2", Name: "High Value", Status: "HOT", Value: 1000},
		}}, nil
	}}

	env, err := NewListLeadsTool(testDeps(b)).Execute(context.Background(), json.RawMessage(`{"business_id":96}`))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(env.Text, "2 leads found for business 96.\nTotal Potential Value: ₹1,600.00\n\n"), env.Text)
	assert.Contains(t, env.Text, "| Lead ID | Name | Status | Created At | Phone | Email | Source | Value |")
	assert.Contains(t, env.Text, "| 1 | John | NEW |")
	assert.Contains(t, env.WhatsAppText, "1. *High Value* - ₹1,000.00")
	assert.Contains(t, env.WhatsAppText, "2. *John* - ₹600.00")
	assert.Contains(t, env.WhatsAppText, "Total Potential Value:")

	items, ok := env.Payload.([]domain.Lead)
	require.True(t, ok)
	assert.Len(t, items, 2)
	assert.Empty(t, filter.FromDate, "no date hint lists all time")
}

func TestListLeadsEmptyStatesCount(t *testing.T) {
	b := &fakeBackend{listLeads: func(context.Context, domain.LeadFilter) (*domain.LeadPage, error) {
		return &domain.LeadPage{Items: []domain.Lead{}}, nil
	}}
	env, err := NewListLeadsTool(testDeps(b)).Execute(context.Background(), json.RawMessage(`{"business_id":7}`))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(env.Text, "0 leads found for business 7."), env.Text)
	assert.NotContains(t, env.Text, "|")
}

func TestListLeadsPeriodFilter(t *testing.T) {
	var filter domain.LeadFilter
	b := &fakeBackend{listLeads: func(_ context.Context, f domain.LeadFilter) (*domain.LeadPage, error) {
		filter = f
		return &domain.LeadPage{}, nil
	}}
	_, err := NewListLeadsTool(testDeps(b)).Execute(context.Background(), json.RawMessage(`{"business_id":96,"period":"this week"}`))
	require.NoError(t, err)
	assert.Equal(t, "2026/03/02", filter.FromDate)
	assert.Equal(t, "2026/03/04", filter.ToDate)
	assert.Equal(t, "this week", filter.PeriodType)
}

func TestListLeadsWhatsAppTopFive(t *testing.T) {
	page := &domain.LeadPage{Total: 7}
	for i := range 7 {
		page.Items = append(page.Items, domain.Lead{ID: string(rune('a' + i)), Name: "L" + string(rune('a'+i)), Value: float64(i * 100)})
	}
	wa := leadsWhatsApp(page, page.TotalValue())
	assert.Contains(t, wa, "1. *Lg* - ₹600.00")
	assert.Contains(t, wa, "5. *Lc*")
	assert.NotContains(t, wa, "6.")
}
