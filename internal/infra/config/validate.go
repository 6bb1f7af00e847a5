package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
//
// Provider types are not checked here: an unknown type is reported per
// request as an unsupported-provider response.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateAgent(cfg, ve)
	validateLLM(cfg, ve)
	validateBackend(cfg, ve)
	validateDirectory(cfg, ve)
	validateWebsite(cfg, ve)
	validateChannels(cfg, ve)
	validateLogger(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateAgent(cfg *Config, ve *ValidationError) {
	a := cfg.Agent
	if a.MaxTurns <= 0 {
		ve.Add("agent.max_turns must be > 0")
	}
	if a.Timeout <= 0 {
		ve.Add("agent.timeout must be > 0")
	}
	if a.ToolTimeout <= 0 {
		ve.Add("agent.tool_timeout must be > 0")
	}
	if a.LLMTimeout <= 0 {
		ve.Add("agent.llm_timeout must be > 0")
	}
	if a.LLMRetries < 0 {
		ve.Add("agent.llm_retries must be >= 0")
	}
	if a.LLMRetries > 0 && a.RetryBackoff <= 0 {
		ve.Add("agent.retry_backoff must be > 0 when llm_retries is set")
	}
	if a.SystemPrompt == "" {
		ve.Add("agent.system_prompt must not be empty")
	}
	if _, err := a.Location(); err != nil {
		ve.Add("agent.timezone %q is invalid: %v", a.Timezone, err)
	}
}

func validateLLM(cfg *Config, ve *ValidationError) {
	if cfg.LLM.DefaultProvider == "" {
		ve.Add("llm.default_provider must not be empty")
	}

	seen := make(map[string]bool)
	foundDefault := false
	for i, p := range cfg.LLM.Providers {
		if p.Name == "" {
			ve.Add("llm.providers[%d].name must not be empty", i)
			continue
		}
		if seen[p.Name] {
			ve.Add("llm.providers[%d]: duplicate provider name %q", i, p.Name)
		}
		seen[p.Name] = true

		if p.Model == "" {
			ve.Add("llm.providers[%d] (%s): model must not be empty", i, p.Name)
		}
		if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 2) {
			ve.Add("llm.providers[%d] (%s): temperature must be within [0, 2]", i, p.Name)
		}
		if p.Name == cfg.LLM.DefaultProvider {
			foundDefault = true
		}
	}

	if !foundDefault && cfg.LLM.DefaultProvider != "" {
		ve.Add("llm.default_provider %q does not match any configured provider", cfg.LLM.DefaultProvider)
	}

	cb := cfg.LLM.CircuitBreaker
	if cb.Enabled {
		if cb.MaxFailures == 0 {
			ve.Add("llm.circuit_breaker.max_failures must be > 0 when enabled")
		}
		if cb.Timeout < time.Second {
			ve.Add("llm.circuit_breaker.timeout must be >= 1s")
		}
	}
}

func validateBackend(cfg *Config, ve *ValidationError) {
	if cfg.Backend.UseMock {
		return
	}
	if cfg.Backend.BaseURL == "" {
		ve.Add("backend.base_url is required unless backend.use_mock is set")
	} else if !strings.HasPrefix(cfg.Backend.BaseURL, "http://") && !strings.HasPrefix(cfg.Backend.BaseURL, "https://") {
		ve.Add("backend.base_url %q must be an http(s) URL", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout <= 0 {
		ve.Add("backend.timeout must be > 0")
	}
}

func validateDirectory(cfg *Config, ve *ValidationError) {
	switch cfg.Directory.Backend {
	case "file", "":
		if cfg.Directory.MappingsFile == "" {
			ve.Add("directory.mappings_file is required for the file backend")
		}
	case "sqlite":
		if cfg.Directory.SQLitePath == "" {
			ve.Add("directory.sqlite_path is required for the sqlite backend")
		}
	default:
		ve.Add("directory.backend %q is invalid (want: file, sqlite)", cfg.Directory.Backend)
	}
}

func validateWebsite(cfg *Config, ve *ValidationError) {
	if !cfg.Website.Enabled {
		return
	}
	if cfg.Website.TopK <= 0 {
		ve.Add("website.top_k must be > 0")
	}
	if cfg.Website.HistoryTurns < 0 {
		ve.Add("website.history_turns must be >= 0")
	}
}

var validChannelTypes = map[string]bool{
	"http":     true,
	"whatsapp": true,
}

func validateChannels(cfg *Config, ve *ValidationError) {
	for i, ch := range cfg.Channels {
		if !validChannelTypes[ch.Type] {
			ve.Add("channels[%d].type %q is invalid (want: http, whatsapp)", i, ch.Type)
			continue
		}
		switch ch.Type {
		case "http":
			if ch.HTTP == nil || ch.HTTP.Addr == "" {
				ve.Add("channels[%d] (http): http.addr is required", i)
			} else if _, _, err := net.SplitHostPort(ch.HTTP.Addr); err != nil {
				ve.Add("channels[%d] (http): http.addr %q is invalid: %v", i, ch.HTTP.Addr, err)
			}
		case "whatsapp":
			if ch.WhatsApp == nil {
				ve.Add("channels[%d] (whatsapp): whatsapp config section is required", i)
				continue
			}
			if ch.WhatsApp.Token == "" {
				ve.Add("channels[%d] (whatsapp): whatsapp.token is required (set via QTICK_WHATSAPP_TOKEN)", i)
			}
			if ch.WhatsApp.PhoneID == "" {
				ve.Add("channels[%d] (whatsapp): whatsapp.phone_id is required", i)
			}
			if ch.WhatsApp.VerifyToken == "" {
				ve.Add("channels[%d] (whatsapp): whatsapp.verify_token is required", i)
			}
		}
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

func validateLogger(cfg *Config, ve *ValidationError) {
	if cfg.Logger.Level != "" && !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is invalid (want: debug, info, warn, error)", cfg.Logger.Level)
	}
	switch cfg.Logger.Format {
	case "", "text", "json":
	default:
		ve.Add("logger.format %q is invalid (want: text, json)", cfg.Logger.Format)
	}
}
