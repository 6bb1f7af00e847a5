package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"
)

// DefaultSystemPrompt instructs the model how to present business data.
const DefaultSystemPrompt = "You are a helpful assistant for QTick. When listing items (leads, appointments, invoices), " +
	"return ONLY a clean Markdown table. Use Title Case for headers (e.g., 'Lead ID', 'Name', 'Status', " +
	"'Created At', 'Phone', 'Email', 'Source', 'Value'). Do not include conversational filler."

// Config is the root configuration. It is built once in main and injected.
type Config struct {
	Agent     AgentConfig     `yaml:"agent"`
	LLM       LLMConfig       `yaml:"llm"`
	Backend   BackendConfig   `yaml:"backend"`
	Directory DirectoryConfig `yaml:"directory"`
	Website   WebsiteConfig   `yaml:"website"`
	Channels  []ChannelConfig `yaml:"channels"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// AgentConfig controls the orchestration loop.
type AgentConfig struct {
	MaxTurns     int           `yaml:"max_turns"`
	Timeout      time.Duration `yaml:"timeout"`
	ToolTimeout  time.Duration `yaml:"tool_timeout"`
	LLMTimeout   time.Duration `yaml:"llm_timeout"`
	LLMRetries   int           `yaml:"llm_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	Timezone     string        `yaml:"timezone"`
	SystemPrompt string        `yaml:"system_prompt"`
}

// Location resolves Timezone, defaulting to UTC.
func (a AgentConfig) Location() (*time.Location, error) {
	if a.Timezone == "" || strings.EqualFold(a.Timezone, "UTC") {
		return time.UTC, nil
	}
	return time.LoadLocation(a.Timezone)
}

// LLMConfig holds LLM provider settings.
type LLMConfig struct {
	DefaultProvider string               `yaml:"default_provider"`
	Providers       []ProviderConfig     `yaml:"providers"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// Provider returns the provider config named name.
func (l LLMConfig) Provider(name string) (ProviderConfig, bool) {
	for _, p := range l.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// CircuitBreakerConfig holds circuit breaker settings for LLM providers.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// PoolConfig holds HTTP connection pool settings.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// ProviderConfig holds settings for a single LLM provider.
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature *float64      `yaml:"temperature,omitempty"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        PoolConfig    `yaml:"pool"`
}

// BackendConfig points at the business-management REST API.
type BackendConfig struct {
	BaseURL       string        `yaml:"base_url"`
	ServiceToken  string        `yaml:"service_token"`
	ProfileSecret string        `yaml:"profile_secret"`
	UseMock       bool          `yaml:"use_mock"`
	Timeout       time.Duration `yaml:"timeout"`
	PhoneRegion   string        `yaml:"phone_region,omitempty"`
	Pool          PoolConfig    `yaml:"pool"`
}

// DirectoryConfig selects the phone to business-id mapping store.
type DirectoryConfig struct {
	Backend      string `yaml:"backend"` // "file" or "sqlite"
	MappingsFile string `yaml:"mappings_file"`
	SQLitePath   string `yaml:"sqlite_path"`
	QueueLookup  bool   `yaml:"queue_lookup"`
}

// WebsiteConfig configures the public FAQ agent.
type WebsiteConfig struct {
	Enabled       bool   `yaml:"enabled"`
	KnowledgeFile string `yaml:"knowledge_file"`
	TopK          int    `yaml:"top_k"`
	HistoryTurns  int    `yaml:"history_turns"`
}

// ChannelConfig holds settings for a single channel.
type ChannelConfig struct {
	Type string `yaml:"type"`

	// Per-channel nested config (only one should be set, matching Type).
	HTTP     *HTTPChannelConfig     `yaml:"http,omitempty"`
	WhatsApp *WhatsAppChannelConfig `yaml:"whatsapp,omitempty"`
}

// HTTPChannelConfig holds HTTP API settings.
type HTTPChannelConfig struct {
	Addr            string `yaml:"addr"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	RateLimitBurst  int    `yaml:"rate_limit_burst"`
}

// WhatsAppChannelConfig holds WhatsApp Cloud API settings.
type WhatsAppChannelConfig struct {
	Token       string `yaml:"token"`
	PhoneID     string `yaml:"phone_id"`
	VerifyToken string `yaml:"verify_token"`
	AppSecret   string `yaml:"app_secret,omitempty"`
	WebhookAddr string `yaml:"webhook_addr,omitempty"`
	APIBaseURL  string `yaml:"api_base_url,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			MaxTurns:     6,
			Timeout:      120 * time.Second,
			ToolTimeout:  20 * time.Second,
			LLMTimeout:   60 * time.Second,
			LLMRetries:   2,
			RetryBackoff: 500 * time.Millisecond,
			Timezone:     "UTC",
			SystemPrompt: DefaultSystemPrompt,
		},
		LLM: LLMConfig{
			DefaultProvider: "openai",
			Providers: []ProviderConfig{
				{Name: "openai", Type: "openai", Model: "gpt-4o"},
				{Name: "gemini", Type: "gemini", Model: "gemini-2.5-flash-lite"},
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     60 * time.Second,
				Interval:    30 * time.Second,
			},
		},
		Backend: BackendConfig{
			BaseURL: "http://localhost:8080/api",
			Timeout: 30 * time.Second,
		},
		Directory: DirectoryConfig{
			Backend:      "file",
			MappingsFile: filepath.Join("data", "phone_mappings.json"),
			SQLitePath:   filepath.Join("data", "directory.db"),
			QueueLookup:  true,
		},
		Website: WebsiteConfig{
			Enabled:       true,
			KnowledgeFile: filepath.Join("data", "qtick_info.txt"),
			TopK:          2,
			HistoryTurns:  5,
		},
		Channels: []ChannelConfig{
			{Type: "http", HTTP: &HTTPChannelConfig{Addr: ":8000", RateLimitPerMin: 100, RateLimitBurst: 20}},
		},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads config from a YAML file, applies env overrides, decrypts
// secrets and validates. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return finish(cfg)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv("QTICK_CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies QTICK_* environment variables on top of cfg.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QTICK_LLM_PROVIDER"); v != "" {
		cfg.LLM.DefaultProvider = strings.ToLower(v)
	}
	if v := os.Getenv("QTICK_OPENAI_API_KEY"); v != "" {
		setProvider(cfg, "openai", func(p *ProviderConfig) { p.APIKey = v })
	}
	if v := os.Getenv("QTICK_OPENAI_MODEL"); v != "" {
		setProvider(cfg, "openai", func(p *ProviderConfig) { p.Model = v })
	}
	geminiKey := os.Getenv("QTICK_GEMINI_API_KEY")
	if os.Getenv("QTICK_APP_ENV") == "local" {
		if v := os.Getenv("QTICK_GEMINI_STUDIO_API_KEY"); v != "" {
			geminiKey = v
		}
	}
	if geminiKey != "" {
		setProvider(cfg, "gemini", func(p *ProviderConfig) { p.APIKey = geminiKey })
	}
	if v := os.Getenv("QTICK_GEMINI_MODEL"); v != "" {
		setProvider(cfg, "gemini", func(p *ProviderConfig) { p.Model = v })
	}

	if v := os.Getenv("QTICK_MAX_TURNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Agent.MaxTurns = n
		}
	}
	if v := os.Getenv("QTICK_TOOL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Agent.ToolTimeout = d
		}
	}
	if v := os.Getenv("QTICK_TIMEZONE"); v != "" {
		cfg.Agent.Timezone = v
	}

	if v := os.Getenv("QTICK_BACKEND_BASE_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("QTICK_JAVA_SERVICE_TOKEN"); v != "" {
		cfg.Backend.ServiceToken = v
	}
	if v := os.Getenv("QTICK_PROFILE_SECRET"); v != "" {
		cfg.Backend.ProfileSecret = v
	}
	if v := os.Getenv("QTICK_USE_MOCK_DATA"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Backend.UseMock = b
		}
	}
	if v := os.Getenv("QTICK_PHONE_MAPPINGS_FILE"); v != "" {
		cfg.Directory.MappingsFile = v
	}
	if v := os.Getenv("QTICK_KNOWLEDGE_FILE"); v != "" {
		cfg.Website.KnowledgeFile = v
	}

	if v := os.Getenv("QTICK_HTTP_ADDR"); v != "" {
		for i := range cfg.Channels {
			if cfg.Channels[i].Type == "http" && cfg.Channels[i].HTTP != nil {
				cfg.Channels[i].HTTP.Addr = v
			}
		}
	}
	if v := os.Getenv("QTICK_WHATSAPP_TOKEN"); v != "" {
		for i := range cfg.Channels {
			if cfg.Channels[i].Type == "whatsapp" && cfg.Channels[i].WhatsApp != nil && cfg.Channels[i].WhatsApp.Token == "" {
				cfg.Channels[i].WhatsApp.Token = v
			}
		}
	}

	if v := os.Getenv("QTICK_LOG_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("QTICK_LOG_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("QTICK_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("QTICK_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
}

// setProvider edits the provider named name, adding it when absent.
func setProvider(cfg *Config, name string, edit func(*ProviderConfig)) {
	for i := range cfg.LLM.Providers {
		if cfg.LLM.Providers[i].Name == name {
			edit(&cfg.LLM.Providers[i])
			return
		}
	}
	p := ProviderConfig{Name: name, Type: name}
	edit(&p)
	cfg.LLM.Providers = append(cfg.LLM.Providers, p)
}

// decryptSecrets finds "enc:..." values in secret fields and decrypts them.
func decryptSecrets(cfg *Config, passphrase string) error {
	for i := range cfg.LLM.Providers {
		if err := decryptField(&cfg.LLM.Providers[i].APIKey, passphrase); err != nil {
			return fmt.Errorf("provider %s api_key: %w", cfg.LLM.Providers[i].Name, err)
		}
	}
	if err := decryptField(&cfg.Backend.ServiceToken, passphrase); err != nil {
		return fmt.Errorf("backend service_token: %w", err)
	}
	if err := decryptField(&cfg.Backend.ProfileSecret, passphrase); err != nil {
		return fmt.Errorf("backend profile_secret: %w", err)
	}
	for i := range cfg.Channels {
		ch := &cfg.Channels[i]
		if ch.WhatsApp == nil {
			continue
		}
		for _, fp := range []*string{&ch.WhatsApp.Token, &ch.WhatsApp.AppSecret, &ch.WhatsApp.VerifyToken} {
			if err := decryptField(fp, passphrase); err != nil {
				return fmt.Errorf("channel %s token: %w", ch.Type, err)
			}
		}
	}
	return nil
}

func decryptField(fp *string, passphrase string) error {
	if !strings.HasPrefix(*fp, "enc:") {
		return nil
	}
	decrypted, err := DecryptValue(strings.TrimPrefix(*fp, "enc:"), passphrase)
	if err != nil {
		return err
	}
	*fp = decrypted
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	// Format: hex(salt) + ":" + hex(nonce+ciphertext)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue decrypts a value produced by EncryptValue.
func DecryptValue(encrypted, passphrase string) (string, error) {
	salt, data, ok := strings.Cut(encrypted, ":")
	if !ok {
		return "", fmt.Errorf("invalid encrypted format")
	}

	rawSalt, err := hex.DecodeString(salt)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	rawData, err := hex.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := newGCM(passphrase, rawSalt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(rawData) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := rawData[:nonceSize], rawData[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// deriveKey uses Argon2id to derive a 32-byte key from passphrase + salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// validatePermissions checks the config file has restrictive permissions.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
