package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qtick-agent/internal/adapter/backend"
	"qtick-agent/internal/adapter/tool"
	"qtick-agent/internal/infra/dates"
	"qtick-agent/internal/infra/metrics"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg, err := tool.NewCatalogRegistry(tool.Deps{
		Backend: backend.NewMock(),
		Dates:   dates.New(logger),
		Logger:  logger,
	})
	require.NoError(t, err)
	return New(reg, "test", 0, metrics.New(), logger)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func rpc(t *testing.T, s *Server, id int, method string, params any) json.RawMessage {
	t.Helper()
	msg, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": id, "method": method, "params": params})
	require.NoError(t, err)

	out, err := json.Marshal(s.MCP().HandleMessage(context.Background(), msg))
	require.NoError(t, err)

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(out, &resp), string(out))
	require.Nil(t, resp.Error, string(out))
	return resp.Result
}

func initialize(t *testing.T, s *Server) {
	rpc(t, s, 1, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"clientInfo":      map[string]string{"name": "test", "version": "1"},
		"capabilities":    map[string]any{},
	})
}

func TestListToolsPublishesCatalog(t *testing.T) {
	s := newTestServer(t)
	initialize(t, s)

	var result struct {
		Tools []struct {
			Name        string          `json:"name"`
			InputSchema json.RawMessage `json:"inputSchema"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rpc(t, s, 2, "tools/list", map[string]any{}), &result))

	names := map[string]json.RawMessage{}
	for _, tl := range result.Tools {
		names[tl.Name] = tl.InputSchema
	}
	assert.Len(t, names, len(tool.Definitions()))
	require.Contains(t, names, tool.NameCreateLead)
	assert.Contains(t, string(names[tool.NameCreateLead]), `"business_id"`)
}

type callResult struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	IsError bool `json:"isError"`
}

func TestCallTool(t *testing.T) {
	s := newTestServer(t)
	initialize(t, s)

	var res callResult
	raw := rpc(t, s, 3, "tools/call", map[string]any{"name": tool.NameHelpGuide, "arguments": map[string]any{}})
	require.NoError(t, json.Unmarshal(raw, &res))

	require.Len(t, res.Content, 1)
	assert.False(t, res.IsError)
	assert.Equal(t, "text", res.Content[0].Type)
	assert.Equal(t, tool.HelpGuide().Text, res.Content[0].Text)
}

func TestCallToolValidationError(t *testing.T) {
	s := newTestServer(t)
	initialize(t, s)

	var res callResult
	raw := rpc(t, s, 4, "tools/call", map[string]any{"name": tool.NameGetInvoice, "arguments": map[string]any{}})
	require.NoError(t, json.Unmarshal(raw, &res))

	assert.True(t, res.IsError)
	require.NotEmpty(t, res.Content)
	assert.True(t, strings.HasPrefix(res.Content[0].Text, "Error executing tool get_invoice: "), res.Content[0].Text)
}
