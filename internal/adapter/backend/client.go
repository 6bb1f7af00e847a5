// Package backend talks to the QTick business-management REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/config"
	"qtick-agent/internal/infra/tracer"
)

const maxBodySize = 4 * 1024 * 1024

// Client is the live Backend implementation. It is safe for concurrent use;
// credentials are read from each call's context.
type Client struct {
	baseURL       string
	serviceToken  string
	profileSecret string
	client        *http.Client
	logger        *slog.Logger
	now           func() time.Time
}

// NewClient creates a client for cfg.BaseURL. A nil httpClient gets a plain
// client with cfg.Timeout.
func NewClient(cfg config.BackendConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		serviceToken:  cfg.ServiceToken,
		profileSecret: cfg.ProfileSecret,
		client:        httpClient,
		logger:        logger,
		now:           time.Now,
	}
}

// request describes one backend call.
type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	// headers override the credential-derived ones.
	headers map[string]string
}

// do performs req and decodes a 2xx JSON body into out (when non-nil).
func (c *Client) do(ctx context.Context, req request, out any) error {
	ctx, span := tracer.StartSpan(ctx, "backend."+req.op,
		trace.WithAttributes(
			tracer.StringAttr("http.method", req.method),
			tracer.StringAttr("http.path", req.path),
		),
	)
	defer span.End()

	err := c.roundTrip(ctx, req, out)
	if err != nil {
		tracer.RecordError(span, err)
		return err
	}
	tracer.SetOK(span)
	return nil
}

func (c *Client) roundTrip(ctx context.Context, req request, out any) error {
	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", req.op, err)
		}
		body = bytes.NewReader(data)
	}

	u := c.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers(ctx) {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	c.logger.Debug("backend request", "op", req.op, "method", req.method, "path", req.path)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return domain.NewDomainError("backend."+req.op, domain.ErrBackend, err.Error())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read %s response: %w", req.op, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.NewDomainError("backend."+req.op, domain.ErrNotFound, req.path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return domain.NewDomainError("backend."+req.op, domain.ErrBackend,
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, truncate(string(data), 256)))
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return domain.NewDomainError("backend."+req.op, domain.ErrBackend, "decode response: "+err.Error())
	}
	return nil
}

// headers derives the per-call auth headers. The caller's token wins over
// the service token.
func (c *Client) headers(ctx context.Context) map[string]string {
	h := map[string]string{}
	creds := domain.CredentialsFromContext(ctx)
	token := creds.Token
	if token == "" {
		token = c.serviceToken
	}
	if token != "" {
		h["Authorization"] = "Bearer " + token
	}
	if creds.ClientID != "" {
		h["X-ClientId"] = creds.ClientID
	}
	return h
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func bizPath(businessID int, suffix string) string {
	return fmt.Sprintf("/biz/%d%s", businessID, suffix)
}

var _ domain.Backend = (*Client)(nil)
