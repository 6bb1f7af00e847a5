package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"qtick-agent/internal/domain"
)

// SchemaValidatingTool wraps a Tool with loose coercion and JSON Schema
// validation. Models often send numbers as strings; those are converted to
// the declared type before validation and the coerced params are forwarded.
type SchemaValidatingTool struct {
	inner  domain.Tool
	schema *jsonschema.Schema
	props  map[string]propType
}

type propType struct {
	Type  string    `json:"type"`
	Items *propType `json:"items,omitempty"`
}

// WithSchemaValidation wraps t so that Execute coerces and validates params
// against the tool's JSON Schema before forwarding to t.
func WithSchemaValidation(t domain.Tool) (domain.Tool, error) {
	raw := t.Schema().Parameters
	if len(raw) == 0 || string(raw) == "null" {
		return t, nil
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource for %q: %w", t.Name(), err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema for %q: %w", t.Name(), err)
	}

	var shape struct {
		Properties map[string]propType `json:"properties"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, fmt.Errorf("read properties for %q: %w", t.Name(), err)
	}

	return &SchemaValidatingTool{inner: t, schema: compiled, props: shape.Properties}, nil
}

func (s *SchemaValidatingTool) Name() string              { return s.inner.Name() }
func (s *SchemaValidatingTool) Description() string       { return s.inner.Description() }
func (s *SchemaValidatingTool) Schema() domain.ToolSchema { return s.inner.Schema() }

func (s *SchemaValidatingTool) Execute(ctx context.Context, params json.RawMessage) (*domain.Envelope, error) {
	args := map[string]any{}
	if len(params) > 0 && string(params) != "null" {
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, fmt.Errorf("%w: arguments must be a JSON object: %v", domain.ErrInvalidInput, err)
		}
	}

	for k, v := range args {
		if p, ok := s.props[k]; ok {
			args[k] = coerce(v, p)
		}
	}

	if err := s.schema.Validate(args); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, validationMessage(err))
	}

	coerced, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return s.inner.Execute(ctx, coerced)
}

// coerce converts v toward the declared type. Values that cannot be
// converted are returned unchanged and left for validation to reject.
func coerce(v any, p propType) any {
	switch p.Type {
	case "integer":
		if s, ok := v.(string); ok {
			if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
				return float64(n)
			}
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && f == float64(int64(f)) {
				return f
			}
		}
	case "number":
		if s, ok := v.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f
			}
		}
	case "string":
		switch x := v.(type) {
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(x)
		}
	case "array":
		if p.Items == nil {
			return v
		}
		switch x := v.(type) {
		case []any:
			for i := range x {
				x[i] = coerce(x[i], *p.Items)
			}
			return x
		case string:
			// "454, 455" -> [454, 455]
			parts := strings.Split(x, ",")
			out := make([]any, 0, len(parts))
			for _, part := range parts {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, coerce(part, *p.Items))
				}
			}
			return out
		case float64:
			return []any{x}
		}
	}
	return v
}

// validationMessage flattens a jsonschema error to one line for the model.
func validationMessage(err error) string {
	var ve *jsonschema.ValidationError
	if errors.As(err, &ve) {
		leaves := ve.BasicOutput().Errors
		msgs := make([]string, 0, len(leaves))
		for _, e := range leaves {
			if e.Error == "" || strings.HasPrefix(e.Error, "doesn't validate with") {
				continue
			}
			loc := strings.TrimPrefix(e.InstanceLocation, "/")
			if loc == "" {
				msgs = append(msgs, e.Error)
			} else {
				msgs = append(msgs, loc+": "+e.Error)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return strings.Join(strings.Fields(err.Error()), " ")
}
