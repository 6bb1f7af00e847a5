package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"qtick-agent/internal/adapter/directory"
	"qtick-agent/internal/infra/config"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

var notLoaded = CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}

// probeClient is used for reachability checks.
var probeClient = &http.Client{Timeout: 10 * time.Second}

func runDoctor() error {
	_ = godotenv.Load()
	cfgPath := configPath()
	cfg, cfgErr := config.Load(cfgPath)
	if cfgErr != nil {
		cfg = nil
	}

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "LLM API key", Fn: checkLLMAPIKey},
		{Name: "LLM connectivity", Fn: checkLLMConnectivity},
		{Name: "Business backend", Fn: checkBackend},
		{Name: "Phone directory", Fn: checkDirectory},
		{Name: "Knowledge base", Fn: checkKnowledge},
		{Name: "Channel config", Fn: checkChannelConfig},
	}

	results := runChecks(checks, cfg)
	return report(os.Stdout, results)
}

func runChecks(checks []Check, cfg *config.Config) []CheckResult {
	results := make([]CheckResult, 0, len(checks))
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name
		results = append(results, result)
	}
	return results
}

// report prints results and returns an error when any check failed.
func report(w io.Writer, results []CheckResult) error {
	fmt.Fprintln(w, "qtick-agent doctor")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w)

	var pass, warn, fail int
	for _, r := range results {
		fmt.Fprintf(w, "  %s %s: %s\n", statusIcon(r.Status), r.Name, r.Message)
		if r.Fix != "" {
			fmt.Fprintf(w, "      Fix: %s\n", r.Fix)
		}
		switch r.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		fmt.Fprintln(w, "\nFix the FAIL issues above before serving traffic.")
		return fmt.Errorf("%d check(s) failed", fail)
	}
	if warn > 0 {
		fmt.Fprintln(w, "\nqtick-agent should work, but consider addressing the warnings.")
	} else {
		fmt.Fprintln(w, "\nAll checks passed! qtick-agent is ready to run.")
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

// checkConfigFile reports whether the config loaded. A missing file is only
// a warning because defaults and QTICK_* variables suffice.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     "Check config.yaml syntax and the QTICK_* environment variables",
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s, using defaults and environment", cfgPath),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

// checkLLMAPIKey verifies the default provider has a key.
func checkLLMAPIKey(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded
	}
	p, ok := cfg.LLM.Provider(cfg.LLM.DefaultProvider)
	if !ok {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("default provider %q is not configured; requests will answer %q", cfg.LLM.DefaultProvider, "Unsupported LLM provider"),
			Fix:     "Set QTICK_LLM_PROVIDER to openai or gemini",
		}
	}
	if p.APIKey == "" {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("no API key for provider %s", p.Name),
			Fix:     fmt.Sprintf("Set QTICK_%s_API_KEY", strings.ToUpper(p.Name)),
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("API key configured for %s (model %s)", p.Name, p.Model),
	}
}

// checkLLMConnectivity tests if the default LLM provider is reachable.
func checkLLMConnectivity(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded
	}
	p, ok := cfg.LLM.Provider(cfg.LLM.DefaultProvider)
	if !ok || p.APIKey == "" {
		return CheckResult{Status: StatusWarn, Message: "skipped, default provider unusable"}
	}
	endpoint := providerEndpoint(p)
	latency, err := probe(endpoint)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot reach %s: %v", endpoint, err),
			Fix:     "Check your internet connection and firewall settings",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s reachable (latency: %dms)", p.Name, latency.Milliseconds()),
	}
}

// providerEndpoint returns a URL to probe for the given provider.
func providerEndpoint(p config.ProviderConfig) string {
	if p.BaseURL != "" {
		return strings.TrimRight(p.BaseURL, "/")
	}
	switch strings.ToLower(p.Type) {
	case "gemini":
		return "https://generativelanguage.googleapis.com/"
	default:
		return "https://api.openai.com/v1/models"
	}
}

// checkBackend verifies the business API is reachable and authenticated.
func checkBackend(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded
	}
	if cfg.Backend.UseMock {
		return CheckResult{Status: StatusWarn, Message: "mock backend enabled, no real data will be read or written"}
	}
	if cfg.Backend.ServiceToken == "" {
		return CheckResult{
			Status:  StatusWarn,
			Message: "no service token; requests without a caller token will be rejected by the backend",
			Fix:     "Set QTICK_JAVA_SERVICE_TOKEN",
		}
	}
	latency, err := probe(cfg.Backend.BaseURL)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("backend not reachable at %s: %v", cfg.Backend.BaseURL, err),
			Fix:     "Check backend.base_url or QTICK_BACKEND_BASE_URL",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("backend reachable at %s (latency: %dms)", cfg.Backend.BaseURL, latency.Milliseconds()),
	}
}

// probe issues a GET and treats any HTTP response as reachable.
func probe(url string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), probeClient.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	resp, err := probeClient.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return time.Since(start), nil
}

// checkDirectory verifies the phone mapping store can be opened.
func checkDirectory(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded
	}
	if cfg.Directory.Backend == "sqlite" {
		store, err := directory.NewSQLiteStore(cfg.Directory.SQLitePath, slog.New(slog.NewTextHandler(io.Discard, nil)))
		if err != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("cannot open %s: %v", cfg.Directory.SQLitePath, err),
				Fix:     "Check directory.sqlite_path and its permissions",
			}
		}
		store.Close()
		return CheckResult{Status: StatusPass, Message: fmt.Sprintf("sqlite store %s ready", cfg.Directory.SQLitePath)}
	}
	return checkWritableDir(filepath.Dir(cfg.Directory.MappingsFile), cfg.Directory.MappingsFile)
}

// checkWritableDir ensures dir exists and accepts new files.
func checkWritableDir(dir, file string) CheckResult {
	absDir, _ := filepath.Abs(dir)
	info, err := os.Stat(absDir)
	if os.IsNotExist(err) {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("directory %s does not exist; it is created on first registration", absDir),
		}
	}
	if err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("cannot stat %s: %v", absDir, err)}
	}
	if !info.IsDir() {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("%s exists but is not a directory", absDir)}
	}

	testFile := filepath.Join(absDir, ".doctor-check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o644); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("directory %s is not writable: %v", absDir, err),
			Fix:     fmt.Sprintf("Fix permissions: chmod 755 %s", absDir),
		}
	}
	os.Remove(testFile)

	if _, err := os.Stat(file); os.IsNotExist(err) {
		return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%s writable; mappings file will be created", absDir)}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("mappings file %s writable", file)}
}

// checkKnowledge verifies the website agent's knowledge file.
func checkKnowledge(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded
	}
	if !cfg.Website.Enabled {
		return CheckResult{Status: StatusPass, Message: "website agent disabled"}
	}
	info, err := os.Stat(cfg.Website.KnowledgeFile)
	if err != nil {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("knowledge file %s unavailable: %v", cfg.Website.KnowledgeFile, err),
			Fix:     "Set website.knowledge_file or QTICK_KNOWLEDGE_FILE",
		}
	}
	if info.Size() == 0 {
		return CheckResult{Status: StatusWarn, Message: fmt.Sprintf("knowledge file %s is empty", cfg.Website.KnowledgeFile)}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("knowledge file %s (%s)", cfg.Website.KnowledgeFile, humanize.Bytes(uint64(info.Size()))),
	}
}

// checkChannelConfig verifies at least one channel is configured.
func checkChannelConfig(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded
	}
	if len(cfg.Channels) == 0 {
		return CheckResult{
			Status:  StatusFail,
			Message: "no channels configured, serve would accept no traffic",
			Fix:     "Add an http channel under channels",
		}
	}

	types := make([]string, len(cfg.Channels))
	for i, ch := range cfg.Channels {
		types[i] = ch.Type
		if ch.Type == "whatsapp" && ch.WhatsApp != nil && ch.WhatsApp.AppSecret == "" {
			return CheckResult{
				Status:  StatusWarn,
				Message: "whatsapp channel has no app_secret; webhook signatures are not verified",
			}
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%d channel(s): %s", len(cfg.Channels), strings.Join(types, ", ")),
	}
}
