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

// captureTool records the params it receives.
type captureTool struct {
	name   string
	schema json.RawMessage
	got    json.RawMessage
}

func (c *captureTool) Name() string        { return c.name }
func (c *captureTool) Description() string { return "capture" }
func (c *captureTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{Name: c.name, Description: "capture", Parameters: c.schema}
}
func (c *captureTool) Execute(_ context.Context, params json.RawMessage) (*domain.Envelope, error) {
	c.got = params
	return &domain.Envelope{Kind: c.name, Text: "ok"}, nil
}

func catalogCapture(t *testing.T, name string) (*captureTool, domain.Tool) {
	t.Helper()
	def, ok := definition(name)
	require.True(t, ok, "no catalog entry for %s", name)
	inner := &captureTool{name: name, schema: def.Parameters}
	wrapped, err := WithSchemaValidation(inner)
	require.NoError(t, err)
	return inner, wrapped
}

func TestSchemaValidation_CoercesNumericStrings(t *testing.T) {
	inner, wrapped := catalogCapture(t, NameCreateAppointment)

	_, err := wrapped.Execute(context.Background(), json.RawMessage(
		`{"business_id":"96","phone":9876543210,"service_ids":"454, 455","date_time":"tomorrow 10am"}`))
	require.NoError(t, err)

	var got struct {
		BusinessID int    `json:"business_id"`
		Phone      string `json:"phone"`
		ServiceIDs []int  `json:"service_ids"`
	}
	require.NoError(t, json.Unmarshal(inner.got, &got))
	assert.Equal(t, 96, got.BusinessID)
	assert.Equal(t, "9876543210", got.Phone)
	assert.Equal(t, []int{454, 455}, got.ServiceIDs)
}

func TestSchemaValidation_CoercesArrayItems(t *testing.T) {
	inner, wrapped := catalogCapture(t, NameCreateAppointment)

	_, err := wrapped.Execute(context.Background(), json.RawMessage(
		`{"business_id":96,"phone":"+919080534415","service_ids":["454"],"date_time":"2026-02-14T10:30:00.000+0000"}`))
	require.NoError(t, err)
	assert.Contains(t, string(inner.got), `"service_ids":[454]`)
}

func TestSchemaValidation_NumberToString(t *testing.T) {
	inner, wrapped := catalogCapture(t, NameGetAppointment)

	_, err := wrapped.Execute(context.Background(), json.RawMessage(`{"appointment_id":9999}`))
	require.NoError(t, err)
	assert.Contains(t, string(inner.got), `"appointment_id":"9999"`)
}

func TestSchemaValidation_MissingRequired(t *testing.T) {
	inner, wrapped := catalogCapture(t, NameCreateLead)

	_, err := wrapped.Execute(context.Background(), json.RawMessage(`{"name":"John"}`))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if !strings.Contains(err.Error(), "business_id") {
		t.Errorf("error should name the missing property: %v", err)
	}
	if inner.got != nil {
		t.Error("inner tool should not run")
	}
}

func TestSchemaValidation_RejectsUncoercible(t *testing.T) {
	_, wrapped := catalogCapture(t, NameListLeads)

	_, err := wrapped.Execute(context.Background(), json.RawMessage(`{"business_id":"ninety-six"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSchemaValidation_PeriodIsFreeText(t *testing.T) {
	inner, wrapped := catalogCapture(t, NameSummary)

	for _, period := range []string{"Today", "This Week", "last 7 days"} {
		_, err := wrapped.Execute(context.Background(), json.RawMessage(`{"business_id":1,"period":"`+period+`"}`))
		require.NoError(t, err, period)
		assert.Contains(t, string(inner.got), period)
	}
}

func TestSchemaValidation_NonObject(t *testing.T) {
	_, wrapped := catalogCapture(t, NameHelpGuide)

	_, err := wrapped.Execute(context.Background(), json.RawMessage(`[1,2]`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSchemaValidation_PassesAuthThrough(t *testing.T) {
	inner, wrapped := catalogCapture(t, NameListOffers)

	_, err := wrapped.Execute(context.Background(), json.RawMessage(`{"business_id":11,"token":"t","client_id":"c"}`))
	require.NoError(t, err)
	assert.Contains(t, string(inner.got), `"token":"t"`)
}
