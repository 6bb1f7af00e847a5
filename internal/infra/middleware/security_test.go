package middleware

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"

	"qtick-agent/internal/domain"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityHeaders(okHandler()).ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	expected := map[string]string{
		"X-Frame-Options":         "DENY",
		"X-Content-Type-Options":  "nosniff",
		"Content-Security-Policy": "default-src 'none'",
		"Referrer-Policy":         "no-referrer",
		"Cache-Control":           "no-store",
	}
	for header, want := range expected {
		if got := w.Header().Get(header); got != want {
			t.Errorf("Header %s = %q, want %q", header, got, want)
		}
	}
	if hsts := w.Header().Get("Strict-Transport-Security"); hsts != "" {
		t.Errorf("HSTS should not be set without TLS, got %q", hsts)
	}

	req := httptest.NewRequest("GET", "/health", nil)
	req.TLS = &tls.ConnectionState{}
	w = httptest.NewRecorder()
	SecurityHeaders(okHandler()).ServeHTTP(w, req)
	if w.Header().Get("Strict-Transport-Security") == "" {
		t.Error("HSTS should be set with TLS")
	}
}

func TestRateLimitBlocksBurstOverflow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := RateLimit(ctx, 60, 3)(okHandler())

	codes := make([]int, 0, 5)
	for range 5 {
		req := httptest.NewRequest("POST", "/agent/chat", nil)
		req.RemoteAddr = "192.0.2.1:4000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	for i := range 3 {
		if codes[i] != http.StatusOK {
			t.Errorf("request %d = %d, want 200", i, codes[i])
		}
	}
	if codes[4] != http.StatusTooManyRequests {
		t.Errorf("request 4 = %d, want 429", codes[4])
	}
}

func TestRateLimitSeparatesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := RateLimit(ctx, 60, 1)(okHandler())

	for _, addr := range []string{"192.0.2.1:1", "192.0.2.2:1", "[2001:db8::1]:1"} {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("%s first request = %d, want 200", addr, w.Code)
		}
	}
}

func TestRateLimitResponseBody(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handler := RateLimit(ctx, 1, 1)(okHandler())

	var w *httptest.ResponseRecorder
	for range 2 {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "192.0.2.9:1"
		w = httptest.NewRecorder()
		handler.ServeHTTP(w, req)
	}
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("code = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "rate limit exceeded") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		remote  string
		xff     string
		realIP  string
		trusted []string
		want    string
	}{
		{"direct peer", "203.0.113.5:443", "", "", nil, "203.0.113.5"},
		{"ipv6 peer", "[2001:db8::5]:443", "", "", nil, "2001:db8::5"},
		{"spoofed header ignored", "203.0.113.5:443", "1.2.3.4", "", nil, "203.0.113.5"},
		{"trusted proxy xff", "10.0.0.1:80", "198.51.100.7, 10.0.0.1", "", []string{"10.0.0.1"}, "198.51.100.7"},
		{"trusted proxy real ip", "10.0.0.1:80", "", "198.51.100.8", []string{"10.0.0.1"}, "198.51.100.8"},
		{"trusted proxy no headers", "10.0.0.1:80", "", "", []string{"10.0.0.1"}, "10.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := clientIP(req, tt.trusted); got != tt.want {
				t.Errorf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequestIDAssignsULID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = domain.RequestIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	if _, err := ulid.ParseStrict(seen); err != nil {
		t.Fatalf("context id %q is not a ULID: %v", seen, err)
	}
	if w.Header().Get(RequestIDHeader) != seen {
		t.Errorf("header = %q, context = %q", w.Header().Get(RequestIDHeader), seen)
	}
}

func TestRequestIDKeepsValidInbound(t *testing.T) {
	inbound := NewRequestID()
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = domain.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, inbound)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != inbound {
		t.Errorf("id = %q, want inbound %q", seen, inbound)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "not-a-ulid; drop table")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "not-a-ulid; drop table" {
		t.Error("malformed inbound id should be replaced")
	}
}
