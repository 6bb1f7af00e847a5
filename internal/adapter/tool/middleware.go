package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/tracer"
)

// Auth carries the caller credentials the orchestrator adds to every call's
// arguments. Embed it in a params struct.
type Auth struct {
	Token    string `json:"token,omitempty"`
	ClientID string `json:"client_id,omitempty"`
}

func (a Auth) credentials() domain.Credentials {
	return domain.Credentials{Token: a.Token, ClientID: a.ClientID}
}

type credentialed interface {
	credentials() domain.Credentials
}

// Execute is the standard tool pipeline: start span -> parse params -> scope
// credentials -> run handler -> stamp the envelope kind.
//
// Handler errors are returned unchanged so the caller can report them back
// to the model.
func Execute[P any](
	ctx context.Context,
	name string,
	logger *slog.Logger,
	rawParams json.RawMessage,
	handler func(ctx context.Context, span trace.Span, params P) (*domain.Envelope, error),
) (*domain.Envelope, error) {
	ctx, span := tracer.StartSpan(ctx, "tool."+name,
		trace.WithAttributes(tracer.StringAttr("tool.name", name)),
	)
	defer span.End()

	p, err := ParseParams[P](rawParams)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	if c, ok := any(&p).(credentialed); ok {
		if creds := c.credentials(); !creds.IsZero() {
			ctx = domain.ContextWithCredentials(ctx, creds)
		}
	}

	start := time.Now()
	logger.Debug("tool started", "tool", name)
	env, err := handler(ctx, span, p)
	if err != nil {
		tracer.RecordError(span, err)
		logger.Warn("tool failed", "tool", name, "error", err, "duration", time.Since(start))
		return nil, err
	}
	if env == nil {
		err := fmt.Errorf("%w: %s returned no result", domain.ErrToolFailure, name)
		tracer.RecordError(span, err)
		return nil, err
	}
	if env.Kind == "" {
		env.Kind = name
	}
	tracer.SetOK(span)
	logger.Info("tool completed", "tool", name, "duration", time.Since(start))
	return env, nil
}

// ParseParams unmarshals rawParams into P. Empty input is an empty object.
func ParseParams[P any](rawParams json.RawMessage) (P, error) {
	var p P
	if len(rawParams) == 0 || string(rawParams) == "null" {
		return p, nil
	}
	if err := json.Unmarshal(rawParams, &p); err != nil {
		return p, fmt.Errorf("%w: invalid params: %v", domain.ErrInvalidInput, err)
	}
	return p, nil
}
