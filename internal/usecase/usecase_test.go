package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/config"
)

// --- Mocks ---

type step struct {
	turn *domain.ModelTurn
	err  error
}

func textTurn(s string) step { return step{turn: &domain.ModelTurn{Text: s}} }

func toolTurn(calls ...domain.ToolCall) step {
	return step{turn: &domain.ModelTurn{ToolCalls: calls}}
}

func call(id, name, args string) domain.ToolCall {
	return domain.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

// scriptedLLM replays steps in order and records what it was sent.
type scriptedLLM struct {
	mu       sync.Mutex
	steps    []step
	idx      int
	repeat   bool // replay the last step forever
	convLens []int
	results  [][]domain.ToolResult
	convs    []*domain.Conversation
}

func (m *scriptedLLM) next(conv *domain.Conversation) (*domain.ModelTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convLens = append(m.convLens, len(conv.Messages))
	m.convs = append(m.convs, conv)
	if m.idx >= len(m.steps) {
		if m.repeat && len(m.steps) > 0 {
			s := m.steps[len(m.steps)-1]
			return s.turn, s.err
		}
		return &domain.ModelTurn{Text: "fallback"}, nil
	}
	s := m.steps[m.idx]
	m.idx++
	return s.turn, s.err
}

func (m *scriptedLLM) Send(_ context.Context, conv *domain.Conversation, _ []domain.ToolSchema) (*domain.ModelTurn, error) {
	return m.next(conv)
}

func (m *scriptedLLM) SendToolResults(_ context.Context, conv *domain.Conversation, _ []domain.ToolSchema, results []domain.ToolResult) (*domain.ModelTurn, error) {
	m.mu.Lock()
	m.results = append(m.results, results)
	m.mu.Unlock()
	return m.next(conv)
}

func (m *scriptedLLM) Name() string { return "mock" }

type mockToolExecutor struct {
	tools map[string]domain.Tool
}

func newExecutor(tools ...domain.Tool) *mockToolExecutor {
	m := &mockToolExecutor{tools: map[string]domain.Tool{}}
	for _, t := range tools {
		m.tools[t.Name()] = t
	}
	return m
}

func (m *mockToolExecutor) Get(name string) (domain.Tool, error) {
	t, ok := m.tools[name]
	if !ok {
		return nil, domain.NewDomainError("Registry.Get", domain.ErrToolNotFound, name)
	}
	return t, nil
}

func (m *mockToolExecutor) Schemas() []domain.ToolSchema {
	var out []domain.ToolSchema
	for _, t := range m.tools {
		out = append(out, t.Schema())
	}
	return out
}

// funcTool runs fn and counts invocations.
type funcTool struct {
	name  string
	fn    func(ctx context.Context, args json.RawMessage) (*domain.Envelope, error)
	mu    sync.Mutex
	calls int
	args  []json.RawMessage
}

func (t *funcTool) Name() string        { return t.name }
func (t *funcTool) Description() string { return "test tool" }
func (t *funcTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{Name: t.name, Description: t.Description(), Parameters: json.RawMessage(`{"type":"object"}`)}
}

func (t *funcTool) Execute(ctx context.Context, args json.RawMessage) (*domain.Envelope, error) {
	t.mu.Lock()
	t.calls++
	t.args = append(t.args, args)
	t.mu.Unlock()
	return t.fn(ctx, args)
}

func (t *funcTool) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// staticTool answers with a fixed envelope of kind name.
func staticTool(name, text string) *funcTool {
	return &funcTool{name: name, fn: func(context.Context, json.RawMessage) (*domain.Envelope, error) {
		return domain.NewEnvelope(name, map[string]int{"total": 2}, text, "📋 "+text), nil
	}}
}

func errorTool(name string) *funcTool {
	return &funcTool{name: name, fn: func(context.Context, json.RawMessage) (*domain.Envelope, error) {
		return nil, fmt.Errorf("%w: HTTP 500", domain.ErrBackend)
	}}
}

// stuckTool ignores its context until release is closed.
func stuckTool(name string, release <-chan struct{}) *funcTool {
	return &funcTool{name: name, fn: func(context.Context, json.RawMessage) (*domain.Envelope, error) {
		<-release
		return domain.NewEnvelope(name, nil, "late", ""), nil
	}}
}

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAgentConfig() config.AgentConfig {
	cfg := config.Defaults().Agent
	cfg.ToolTimeout = time.Second
	cfg.LLMTimeout = time.Second
	return cfg
}

func newTestOrchestrator(llm domain.LLMProvider, tools domain.ToolExecutor) *Orchestrator {
	return NewOrchestrator(OrchestratorDeps{
		LLM:    llm,
		Tools:  tools,
		Config: testAgentConfig(),
		Logger: nopLogger(),
	})
}
