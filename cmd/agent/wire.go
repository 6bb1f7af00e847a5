package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"qtick-agent/internal/adapter/backend"
	"qtick-agent/internal/adapter/channel"
	"qtick-agent/internal/adapter/directory"
	"qtick-agent/internal/adapter/knowledge"
	"qtick-agent/internal/adapter/llm"
	"qtick-agent/internal/adapter/tool"
	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/config"
	"qtick-agent/internal/infra/dates"
	"qtick-agent/internal/infra/metrics"
	"qtick-agent/internal/usecase"
)

const backendConnTimeout = 10 * time.Second

// app holds the wired components shared by serve and mcp.
type app struct {
	metrics      *metrics.Metrics
	backend      domain.Backend
	registry     *tool.Registry
	llm          domain.LLMProvider
	orchestrator *usecase.Orchestrator
	phone        *usecase.PhoneChat
	website      *usecase.WebsiteAgent // nil when disabled

	closers []func() error
}

// Close releases resources in reverse construction order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildApp constructs every component from cfg. An unusable LLM provider is
// not fatal: requests then answer with the unsupported-provider envelope.
func buildApp(cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New()
	}

	if cfg.Backend.UseMock {
		log.Info("using mock backend")
		a.backend = backend.NewMock()
	} else {
		httpClient := llm.NewHTTPClient(backendConnTimeout, cfg.Backend.Timeout, cfg.Backend.Pool)
		a.backend = backend.NewClient(cfg.Backend, httpClient, log)
	}

	loc, err := cfg.Agent.Location()
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	resolver := dates.New(log, dates.WithLocation(loc))

	a.registry, err = tool.NewCatalogRegistry(tool.Deps{
		Backend:     a.backend,
		Dates:       resolver,
		Metrics:     a.metrics,
		Logger:      log,
		PhoneRegion: cfg.Backend.PhoneRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("tool registry: %w", err)
	}

	a.llm, err = buildProvider(cfg, log)
	if err != nil {
		return nil, err
	}

	dir, err := buildDirectory(cfg, a, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.orchestrator = usecase.NewOrchestrator(usecase.OrchestratorDeps{
		LLM:     a.llm,
		Tools:   a.registry,
		Config:  cfg.Agent,
		Metrics: a.metrics,
		Logger:  log,
	})
	a.phone = usecase.NewPhoneChat(dir, a.orchestrator, log)

	if cfg.Website.Enabled {
		kb, err := knowledge.Load(cfg.Website.KnowledgeFile, cfg.Website.TopK, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.website = usecase.NewWebsiteAgent(a.llm, kb, cfg.Website.HistoryTurns, cfg.Agent.LLMTimeout, a.metrics, log)
	}
	return a, nil
}

// buildProvider returns nil without error when the configured provider is
// unsupported.
func buildProvider(cfg *config.Config, log *slog.Logger) (domain.LLMProvider, error) {
	p, err := llm.NewFromConfig(cfg.LLM, log)
	if errors.Is(err, domain.ErrUnsupportedProvider) {
		log.Error("llm provider unavailable, requests will be refused", "provider", cfg.LLM.DefaultProvider, "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	if cfg.Agent.LLMRetries > 0 {
		p = llm.NewRetryProvider(p, cfg.Agent.LLMRetries, cfg.Agent.RetryBackoff, log)
	}
	return p, nil
}

func buildDirectory(cfg *config.Config, a *app, log *slog.Logger) (domain.PhoneDirectory, error) {
	var store domain.PhoneDirectory
	switch cfg.Directory.Backend {
	case "sqlite":
		s, err := directory.NewSQLiteStore(cfg.Directory.SQLitePath, log)
		if err != nil {
			return nil, fmt.Errorf("directory: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		store = s
	default:
		store = directory.NewFileStore(cfg.Directory.MappingsFile, log)
	}
	if cfg.Directory.QueueLookup {
		return directory.NewChain(store, a.backend, log), nil
	}
	return store, nil
}

// httpDeps adapts the app to one HTTP channel.
func (a *app) httpDeps(cfg *config.Config, hc *config.HTTPChannelConfig) channel.HTTPDeps {
	deps := channel.HTTPDeps{
		Chat:        a.orchestrator,
		Phone:       a.phone,
		MetricsPath: cfg.Metrics.Path,
		Provider:    providerLabel(cfg, a.llm),
		Mock:        cfg.Backend.UseMock,
	}
	if hc != nil {
		deps.RateLimitPerMin = hc.RateLimitPerMin
		deps.RateLimitBurst = hc.RateLimitBurst
	}
	if a.website != nil {
		deps.Website = a.website
	}
	if a.metrics != nil {
		deps.Metrics = a.metrics.Handler()
	}
	return deps
}
