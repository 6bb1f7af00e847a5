package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/config"
)

func TestNewHandlerJSON(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(newHandler(&buf, config.LoggerConfig{Level: "info", Format: "json"}))

	log.Info("tool executed", "tool", "list_leads")
	log.Debug("hidden")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v, output: %s", err, buf.String())
	}
	if entry["msg"] != "tool executed" || entry["tool"] != "list_leads" {
		t.Errorf("entry = %v", entry)
	}
	if strings.Contains(buf.String(), "hidden") {
		t.Error("debug record should be filtered at info level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.log")
	log, closer, err := New(config.LoggerConfig{Level: "info", Format: "text", Output: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("hello")
	if err := closer(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "service=qtick-agent") {
		t.Errorf("log line missing service attr: %s", data)
	}
}

func TestNewBadOutput(t *testing.T) {
	if _, _, err := New(config.LoggerConfig{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")}); err == nil {
		t.Error("expected error for unwritable path")
	}
}

func TestWithRequest(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := domain.ContextWithRequestID(context.Background(), "01HXYZ")
	WithRequest(ctx, base).Info("processing")
	if !strings.Contains(buf.String(), "request_id=01HXYZ") {
		t.Errorf("missing request id: %s", buf.String())
	}

	buf.Reset()
	WithRequest(context.Background(), base).Info("processing")
	if strings.Contains(buf.String(), "request_id") {
		t.Errorf("unexpected request id: %s", buf.String())
	}
}
