package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/config"
	"qtick-agent/internal/infra/logger"
	"qtick-agent/internal/infra/metrics"
	"qtick-agent/internal/infra/middleware"
	"qtick-agent/internal/infra/tracer"
)

// Entry points recorded in metrics.
const (
	EntryChat    = "chat"
	EntryPhone   = "phone"
	EntryWebsite = "website"
)

// User-visible texts for request-level failures.
const (
	unsupportedProviderText = "Unsupported LLM provider"
	llmUnavailableText      = "Sorry, I couldn't reach the assistant right now. Please try again in a moment."
	turnCapText             = "Sorry, I couldn't complete that request. Please try rephrasing it."
)

// OrchestratorDeps holds injected dependencies for the orchestrator.
type OrchestratorDeps struct {
	LLM     domain.LLMProvider // nil when the configured provider is unsupported
	Tools   domain.ToolExecutor
	Config  config.AgentConfig
	Metrics *metrics.Metrics // optional
	Logger  *slog.Logger
}

// Orchestrator mediates between the model and the tool wrappers for one
// request at a time. It holds no per-request state and is safe for
// concurrent use.
type Orchestrator struct {
	deps OrchestratorDeps
}

// NewOrchestrator creates an orchestrator, filling zero config values with
// the defaults.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	def := config.Defaults().Agent
	if deps.Config.MaxTurns <= 0 {
		deps.Config.MaxTurns = def.MaxTurns
	}
	if deps.Config.ToolTimeout <= 0 {
		deps.Config.ToolTimeout = def.ToolTimeout
	}
	if deps.Config.LLMTimeout <= 0 {
		deps.Config.LLMTimeout = def.LLMTimeout
	}
	if deps.Config.SystemPrompt == "" {
		deps.Config.SystemPrompt = def.SystemPrompt
	}
	return &Orchestrator{deps: deps}
}

// Process runs one operator request to completion. Tool and model failures
// are folded into the response; only invalid input returns an error.
func (o *Orchestrator) Process(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	return o.process(ctx, EntryChat, req)
}

func (o *Orchestrator) process(ctx context.Context, entry string, req domain.ChatRequest) (*domain.ChatResponse, error) {
	start := time.Now()
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return nil, domain.NewDomainError("Orchestrator.Process", domain.ErrInvalidInput, "prompt is required")
	}
	if req.BusinessID <= 0 {
		return nil, domain.NewDomainError("Orchestrator.Process", domain.ErrInvalidInput, "business_id must be positive")
	}

	requestID := domain.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = middleware.NewRequestID()
		ctx = domain.ContextWithRequestID(ctx, requestID)
	}
	log := logger.WithRequest(ctx, o.deps.Logger).With("business_id", req.BusinessID)

	ctx, span := tracer.StartSpan(ctx, "orchestrator.process",
		trace.WithAttributes(tracer.IntAttr("business_id", req.BusinessID), tracer.StringAttr("entry", entry)),
	)
	defer span.End()

	var env *domain.Envelope
	turns := 0
	if o.deps.LLM == nil {
		log.Error("no usable llm provider configured")
		tracer.RecordError(span, domain.ErrUnsupportedProvider)
		env = domain.NewEnvelope(domain.KindError, nil, unsupportedProviderText, "")
	} else {
		if o.deps.Config.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, o.deps.Config.Timeout)
			defer cancel()
		}
		if creds := req.Credentials(); !creds.IsZero() {
			ctx = domain.ContextWithCredentials(ctx, creds)
		}
		ctx = domain.ContextWithPrompt(ctx, req.Prompt)
		env, turns = o.loop(ctx, log, req)
		tracer.SetOK(span)
	}

	resp := domain.ResponseFromEnvelope(env)
	resp.RequestID = requestID
	resp.Turns = turns
	span.SetAttributes(tracer.StringAttr("kind", resp.Kind), tracer.IntAttr("turns", turns))
	o.deps.Metrics.ObserveChat(entry, resp.Kind, time.Since(start))
	log.Info("chat completed", "entry", entry, "kind", resp.Kind, "turns", turns, "duration", time.Since(start))
	return resp, nil
}

// loop drives the model until it stops requesting tools or the turn cap is
// reached. It returns the envelope to answer with and the number of model
// turns taken.
func (o *Orchestrator) loop(ctx context.Context, log *slog.Logger, req domain.ChatRequest) (*domain.Envelope, int) {
	conv := domain.NewConversation(o.deps.Config.SystemPrompt, fmt.Sprintf("%s for business Id %d", req.Prompt, req.BusinessID))
	schemas := o.deps.Tools.Schemas()
	creds := req.Credentials()

	var last *domain.Envelope
	turn, err := o.send(ctx, "llm.send", func(ctx context.Context) (*domain.ModelTurn, error) {
		return o.deps.LLM.Send(ctx, conv, schemas)
	})
	turns := 1

	for {
		if err != nil {
			if last != nil {
				log.Warn("llm failed after tools ran, answering with last tool result", "turn", turns, "error", err)
				return last, turns
			}
			log.Error("llm failed", "turn", turns, "error", err)
			return domain.NewEnvelope(domain.KindError, nil, llmUnavailableText, ""), turns
		}

		if turn.Kind() == domain.TurnText {
			return final(last, turn.Text), turns
		}

		if turns >= o.deps.Config.MaxTurns {
			log.Warn("turn cap reached, dropping further tool requests",
				"turn", turns, "requested", len(turn.ToolCalls), "error", domain.ErrMaxTurns)
			if last == nil {
				return domain.NewEnvelope(domain.KindError, nil, turnCapText, ""), turns
			}
			return last, turns
		}

		conv.AppendTurn(turn)
		var results []domain.ToolResult
		results, last = o.executeTools(ctx, log, turns, turn.ToolCalls, creds)

		turn, err = o.send(ctx, "llm.send_tool_results", func(ctx context.Context) (*domain.ModelTurn, error) {
			return o.deps.LLM.SendToolResults(ctx, conv, schemas, results)
		})
		if err == nil {
			conv.AppendResults(results)
		}
		turns++
	}
}

// final picks the response envelope: the last executed tool's envelope wins,
// the model's own text fills in when that tool produced none.
func final(last *domain.Envelope, modelText string) *domain.Envelope {
	if last == nil {
		return domain.NewEnvelope(domain.KindChat, nil, modelText, "")
	}
	if last.Text == "" {
		last.Text = modelText
	}
	return last
}

// send performs one model round trip under the per-call timeout.
func (o *Orchestrator) send(ctx context.Context, spanName string, fn func(context.Context) (*domain.ModelTurn, error)) (*domain.ModelTurn, error) {
	ctx, span := tracer.StartSpan(ctx, "orchestrator.turn",
		trace.WithAttributes(tracer.StringAttr("llm.call", spanName), tracer.StringAttr("provider", o.deps.LLM.Name())),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, o.deps.Config.LLMTimeout)
	defer cancel()

	turn, err := fn(ctx)
	if err == nil && turn == nil {
		err = domain.NewDomainError("Orchestrator.send", domain.ErrProviderError, "empty model turn")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = domain.NewDomainError("Orchestrator.send", domain.ErrTimeout, err.Error())
	}
	o.deps.Metrics.ObserveLLM(o.deps.LLM.Name(), err)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(tracer.IntAttr("tool_calls", len(turn.ToolCalls)))
	tracer.SetOK(span)
	return turn, nil
}

// executeTools runs one turn's tool calls in parallel. Results keep the
// request order; env is the envelope of the last call, nil when it failed.
func (o *Orchestrator) executeTools(ctx context.Context, log *slog.Logger, turn int, calls []domain.ToolCall, creds domain.Credentials) ([]domain.ToolResult, *domain.Envelope) {
	results := make([]domain.ToolResult, len(calls))
	envs := make([]*domain.Envelope, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, c domain.ToolCall) {
			defer wg.Done()
			results[idx], envs[idx] = o.executeTool(ctx, log.With("turn", turn), c, creds)
		}(i, call)
	}
	wg.Wait()

	if len(envs) == 0 {
		return results, nil
	}
	return results, envs[len(envs)-1]
}

// executeTool runs a single call. Every failure becomes the tool-result text
// fed back to the model.
func (o *Orchestrator) executeTool(ctx context.Context, log *slog.Logger, call domain.ToolCall, creds domain.Credentials) (domain.ToolResult, *domain.Envelope) {
	ctx, span := tracer.StartSpan(ctx, "orchestrator.execute_tool",
		trace.WithAttributes(tracer.StringAttr("tool.name", call.Name)),
	)
	defer span.End()

	result := domain.ToolResult{ToolCallID: call.ID, Name: call.Name}
	start := time.Now()

	tool, err := o.deps.Tools.Get(call.Name)
	if err != nil {
		tracer.RecordError(span, err)
		log.Error("tool not found", "tool", call.Name)
		o.deps.Metrics.ObserveTool(call.Name, metrics.OutcomeNotFound, time.Since(start))
		result.Content = fmt.Sprintf("Error: Tool %s not found", call.Name)
		result.IsError = true
		return result, nil
	}

	env, err := o.runWithTimeout(ctx, tool, augmentArgs(call.Arguments, creds))
	if err != nil {
		outcome := metrics.OutcomeError
		msg := err.Error()
		if errors.Is(err, domain.ErrTimeout) {
			outcome = metrics.OutcomeTimeout
			msg = fmt.Sprintf("timed out after %s", o.deps.Config.ToolTimeout)
		}
		tracer.RecordError(span, err)
		log.Error("tool execution failed", "tool", call.Name, "error", err, "duration", time.Since(start))
		o.deps.Metrics.ObserveTool(call.Name, outcome, time.Since(start))
		result.Content = fmt.Sprintf("Error executing tool %s: %s", call.Name, msg)
		result.IsError = true
		return result, nil
	}

	tracer.SetOK(span)
	o.deps.Metrics.ObserveTool(call.Name, metrics.OutcomeOK, time.Since(start))
	result.Content = env.Text
	return result, env
}

// runWithTimeout executes tool under the per-call timeout. A tool that
// ignores its context is abandoned when the deadline passes; a panic is
// reported as an error.
func (o *Orchestrator) runWithTimeout(ctx context.Context, tool domain.Tool, args json.RawMessage) (*domain.Envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, o.deps.Config.ToolTimeout)
	defer cancel()

	type outcome struct {
		env *domain.Envelope
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: panic: %v", domain.ErrToolFailure, r)}
			}
		}()
		env, err := tool.Execute(ctx, args)
		if err == nil && env == nil {
			err = domain.ErrToolFailure
		}
		done <- outcome{env, err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, domain.NewDomainError("Orchestrator.executeTool", domain.ErrTimeout, out.err.Error())
		}
		return out.env, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, domain.NewDomainError("Orchestrator.executeTool", domain.ErrTimeout, tool.Name())
		}
		return nil, ctx.Err()
	}
}

// augmentArgs replaces any model-supplied credentials with the caller's.
// Arguments that are not a JSON object pass through for the tool to reject.
func augmentArgs(raw json.RawMessage, creds domain.Credentials) json.RawMessage {
	args := map[string]json.RawMessage{}
	if trimmed := strings.TrimSpace(string(raw)); trimmed != "" && trimmed != "null" {
		if err := json.Unmarshal(raw, &args); err != nil {
			return raw
		}
	}
	delete(args, "token")
	delete(args, "client_id")
	if creds.Token != "" {
		args["token"], _ = json.Marshal(creds.Token)
	}
	if creds.ClientID != "" {
		args["client_id"], _ = json.Marshal(creds.ClientID)
	}
	out, err := json.Marshal(args)
	if err != nil {
		return raw
	}
	return out
}
