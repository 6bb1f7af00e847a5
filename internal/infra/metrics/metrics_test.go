package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveCounters(t *testing.T) {
	m := New()

	m.ObserveChat("agent", "list_leads", 2*time.Second)
	m.ObserveChat("agent", "list_leads", time.Second)
	m.ObserveTool("list_leads", OutcomeOK, 50*time.Millisecond)
	m.ObserveTool("create_lead", OutcomeTimeout, 20*time.Second)
	m.ObserveLLM("openai", nil)
	m.ObserveLLM("openai", errors.New("boom"))
	m.BranchFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.chatRequests.WithLabelValues("agent", "list_leads")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("create_lead", OutcomeTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.llmRequests.WithLabelValues("openai", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.branchFailures))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveChat("agent", "chat", time.Second)
	m.ObserveTool("x", OutcomeOK, 0)
	m.ObserveLLM("gemini", nil)
	m.BranchFailed()
}

func TestHandlerExposesNamespace(t *testing.T) {
	m := New()
	m.ObserveTool("search_services", OutcomeOK, time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	body := w.Body.String()
	if !strings.Contains(body, `qtick_tool_calls_total{outcome="ok",tool="search_services"} 1`) {
		t.Errorf("tool counter missing from exposition:\n%s", body)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("runtime collector not registered")
	}
}
