package config

import (
	"strings"
	"testing"
)

func assertContains(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Errorf("error %q does not contain %q", got, want)
	}
}

func TestValidateDefaultsPass(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("Defaults should pass validation: %v", err)
	}
}

func TestValidateAgent(t *testing.T) {
	cfg := Defaults()
	cfg.Agent.MaxTurns = 0
	cfg.Agent.ToolTimeout = 0
	cfg.Agent.SystemPrompt = ""
	cfg.Agent.Timezone = "Mars/Olympus"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "agent.max_turns must be > 0")
	assertContains(t, err.Error(), "agent.tool_timeout must be > 0")
	assertContains(t, err.Error(), "agent.system_prompt must not be empty")
	assertContains(t, err.Error(), "agent.timezone")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Agent.MaxTurns = -1
	cfg.LLM.DefaultProvider = ""
	cfg.Directory.Backend = "redis"

	err := Validate(cfg)
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("want *ValidationError, got %T", err)
	}
	if len(ve.Errors) != 3 {
		t.Errorf("got %d errors, want 3: %v", len(ve.Errors), ve.Errors)
	}
}

func TestValidateLLMDefaultMustExist(t *testing.T) {
	cfg := Defaults()
	cfg.LLM.DefaultProvider = "anthropic"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), `llm.default_provider "anthropic" does not match any configured provider`)
}

func TestValidateLLMAllowsUnknownType(t *testing.T) {
	cfg := Defaults()
	cfg.LLM.Providers = append(cfg.LLM.Providers, ProviderConfig{Name: "claude", Type: "anthropic", Model: "x"})
	cfg.LLM.DefaultProvider = "claude"
	if err := Validate(cfg); err != nil {
		t.Errorf("unknown provider types are reported per request, got %v", err)
	}
}

func TestValidateLLMDuplicateAndTemperature(t *testing.T) {
	cfg := Defaults()
	hot := 3.5
	cfg.LLM.Providers = append(cfg.LLM.Providers, ProviderConfig{Name: "openai", Model: "gpt-4o", Temperature: &hot})
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), `duplicate provider name "openai"`)
	assertContains(t, err.Error(), "temperature must be within [0, 2]")
}

func TestValidateBackend(t *testing.T) {
	cfg := Defaults()
	cfg.Backend.BaseURL = "ftp://nope"
	assertContains(t, Validate(cfg).Error(), "must be an http(s) URL")

	cfg.Backend.UseMock = true
	if err := Validate(cfg); err != nil {
		t.Errorf("mock backend needs no URL: %v", err)
	}
}

func TestValidateDirectory(t *testing.T) {
	cfg := Defaults()
	cfg.Directory.Backend = "sqlite"
	cfg.Directory.SQLitePath = ""
	assertContains(t, Validate(cfg).Error(), "directory.sqlite_path is required")
}

func TestValidateChannels(t *testing.T) {
	cfg := Defaults()
	cfg.Channels = []ChannelConfig{
		{Type: "telegram"},
		{Type: "http", HTTP: &HTTPChannelConfig{Addr: "no-port"}},
		{Type: "whatsapp", WhatsApp: &WhatsAppChannelConfig{PhoneID: "123"}},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), `channels[0].type "telegram" is invalid`)
	assertContains(t, err.Error(), "channels[1] (http): http.addr")
	assertContains(t, err.Error(), "whatsapp.token is required")
	assertContains(t, err.Error(), "whatsapp.verify_token is required")
}

func TestValidateLogger(t *testing.T) {
	cfg := Defaults()
	cfg.Logger.Level = "verbose"
	cfg.Logger.Format = "xml"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), `logger.level "verbose" is invalid`)
	assertContains(t, err.Error(), `logger.format "xml" is invalid`)
}
