package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/config"
	"qtick-agent/internal/infra/tracer"
)

// GeminiProvider implements domain.LLMProvider for the Google Gemini API.
type GeminiProvider struct {
	name        string
	model       string
	apiKey      string
	baseURL     string
	temperature *float64
	client      *http.Client
	logger      *slog.Logger
}

// NewGeminiProvider creates a provider for the Google Gemini API.
func NewGeminiProvider(cfg config.ProviderConfig, logger *slog.Logger) *GeminiProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash-lite"
	}

	return &GeminiProvider{
		name:        providerName(cfg, "gemini"),
		model:       model,
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		temperature: cfg.Temperature,
		client:      NewHTTPClient(cfg.ConnTimeout, cfg.RespTimeout, cfg.Pool),
		logger:      logger,
	}
}

// Send implements domain.LLMProvider.
func (p *GeminiProvider) Send(ctx context.Context, conv *domain.Conversation, tools []domain.ToolSchema) (*domain.ModelTurn, error) {
	return p.generate(ctx, "llm.send", toGeminiRequest(conv.Messages, nil, tools))
}

// SendToolResults implements domain.LLMProvider. All results of the turn
// travel as function responses in a single content block.
func (p *GeminiProvider) SendToolResults(ctx context.Context, conv *domain.Conversation, tools []domain.ToolSchema, results []domain.ToolResult) (*domain.ModelTurn, error) {
	return p.generate(ctx, "llm.send_tool_results", toGeminiRequest(conv.Messages, results, tools))
}

func (p *GeminiProvider) generate(ctx context.Context, spanName string, gemReq geminiRequest) (*domain.ModelTurn, error) {
	ctx, span := tracer.StartSpan(ctx, spanName,
		trace.WithAttributes(
			tracer.StringAttr("llm.provider", p.name),
			tracer.StringAttr("llm.model", p.model),
		),
	)
	defer span.End()

	if p.temperature != nil {
		gemReq.GenerationConfig = &geminiGenerationConfig{Temperature: p.temperature}
	}

	body, err := json.Marshal(gemReq)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, p.model)
	headers := map[string]string{}
	if p.apiKey != "" {
		headers["x-goog-api-key"] = p.apiKey
	}

	respBody, err := doJSONRequest(ctx, p.client, url, body, headers)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	var gemResp geminiResponse
	if err := json.Unmarshal(respBody, &gemResp); err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("%w: unmarshal response: %w", domain.ErrProviderError, err)
	}

	turn := fromGeminiResponse(gemResp)
	setUsageAttrs(span, turn.Usage)
	tracer.SetOK(span)
	logTurnCompleted(p.logger, p.name, p.model, turn)
	return turn, nil
}

// Name implements domain.LLMProvider.
func (p *GeminiProvider) Name() string { return p.name }

// --- Gemini API wire types ---

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	Tools             []geminiTool            `json:"tools,omitempty"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string              `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall `json:"functionCall,omitempty"`
	FunctionResponse *geminiFuncResponse `json:"functionResponse,omitempty"`
}

type geminiFunctionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type geminiFuncResponse struct {
	Name     string             `json:"name"`
	Response geminiResultObject `json:"response"`
}

type geminiResultObject struct {
	Result string `json:"result"`
}

type geminiTool struct {
	FunctionDeclarations []geminiFuncDecl `json:"functionDeclarations"`
}

type geminiFuncDecl struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate `json:"candidates"`
	UsageMetadata *geminiUsage      `json:"usageMetadata,omitempty"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// toGeminiRequest maps the conversation plus any pending results. Runs of
// tool messages collapse into one "function" content.
func toGeminiRequest(msgs []domain.Message, pending []domain.ToolResult, tools []domain.ToolSchema) geminiRequest {
	gemReq := geminiRequest{}

	var responses []geminiPart
	flush := func() {
		if len(responses) > 0 {
			gemReq.Contents = append(gemReq.Contents, geminiContent{Role: "function", Parts: responses})
			responses = nil
		}
	}

	for _, m := range msgs {
		if m.Role == domain.RoleTool {
			responses = append(responses, functionResponsePart(m.Name, m.Content))
			continue
		}
		flush()

		switch {
		case m.Role == domain.RoleSystem:
			gemReq.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: m.Content}}}
		case len(m.ToolCalls) > 0:
			gc := geminiContent{Role: "model"}
			if m.Content != "" {
				gc.Parts = append(gc.Parts, geminiPart{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				gc.Parts = append(gc.Parts, geminiPart{
					FunctionCall: &geminiFunctionCall{Name: tc.Name, Args: tc.Arguments},
				})
			}
			gemReq.Contents = append(gemReq.Contents, gc)
		default:
			role := "user"
			if m.Role == domain.RoleAssistant {
				role = "model"
			}
			gemReq.Contents = append(gemReq.Contents, geminiContent{
				Role:  role,
				Parts: []geminiPart{{Text: m.Content}},
			})
		}
	}
	for _, r := range pending {
		responses = append(responses, functionResponsePart(r.Name, r.Content))
	}
	flush()

	if len(tools) > 0 {
		decls := make([]geminiFuncDecl, 0, len(tools))
		for _, t := range tools {
			decls = append(decls, geminiFuncDecl{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			})
		}
		gemReq.Tools = []geminiTool{{FunctionDeclarations: decls}}
	}
	return gemReq
}

func functionResponsePart(name, text string) geminiPart {
	return geminiPart{FunctionResponse: &geminiFuncResponse{
		Name:     name,
		Response: geminiResultObject{Result: text},
	}}
}

// fromGeminiResponse maps the first candidate. A reply without candidates is
// an empty text turn.
func fromGeminiResponse(resp geminiResponse) *domain.ModelTurn {
	turn := &domain.ModelTurn{}
	if resp.UsageMetadata != nil {
		turn.Usage = domain.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}
	if len(resp.Candidates) == 0 {
		return turn
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.FunctionCall != nil {
			args := part.FunctionCall.Args
			if len(args) == 0 || string(args) == "null" {
				args = json.RawMessage("{}")
			}
			turn.ToolCalls = append(turn.ToolCalls, domain.ToolCall{
				ID:        fmt.Sprintf("call_%s_%d", part.FunctionCall.Name, len(turn.ToolCalls)),
				Name:      part.FunctionCall.Name,
				Arguments: args,
			})
		} else if part.Text != "" {
			text.WriteString(part.Text)
		}
	}
	turn.Text = text.String()
	return turn
}
