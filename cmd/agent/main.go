package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"qtick-agent/internal/adapter/channel"
	"qtick-agent/internal/adapter/mcpserver"
	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/config"
	"qtick-agent/internal/infra/logger"
	"qtick-agent/internal/infra/tracer"
)

var version = "dev"

func main() {
	cmd := "serve"
	if len(os.Args) >= 2 && !strings.HasPrefix(os.Args[1], "-") {
		cmd = os.Args[1]
	}

	var err error
	switch cmd {
	case "--help", "-h", "help":
		showUsage()
		return
	case "serve":
		err = runServe()
	case "mcp":
		err = runMCP()
	case "doctor":
		err = runDoctor()
	case "version":
		fmt.Println("qtick-agent", version)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\nRun 'qtick-agent --help' for usage information.\n", cmd)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`qtick-agent - natural-language assistant for the QTick business API

USAGE:
    qtick-agent [COMMAND] [FLAGS]

COMMANDS:
    serve       Run the HTTP API and configured channels (default)
    mcp         Serve the tool catalog over MCP on stdio
    doctor      Run health checks on your setup
    version     Print the version

FLAGS:
    -h, --help         Show this help message
    --config PATH      Config file path (default: ./config.yaml, or $QTICK_CONFIG)

CONFIGURATION:
    A .env file in the working directory is loaded first.
    QTICK_* environment variables override config.yaml.`)
}

func configPath() string {
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if v, ok := strings.CutPrefix(arg, "--config="); ok {
			return v
		}
	}
	if p := os.Getenv("QTICK_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

// loadConfig reads .env then the config file. A missing .env is fine.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(context.Background())

	a, err := buildApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	stops, err := startChannels(ctx, cfg, a, log)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, stop := range stops {
			if err := stop(shutdownCtx); err != nil {
				log.Error("channel shutdown error", "error", err)
			}
		}
	}()
	if err != nil {
		return err
	}

	log.Info("qtick-agent starting",
		"version", version,
		"provider", cfg.LLM.DefaultProvider,
		"mock_backend", cfg.Backend.UseMock,
		"directory", cfg.Directory.Backend,
		"tools", len(a.registry.List()),
		"channels", len(stops),
	)

	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

// startChannels starts every configured channel and returns their stop
// functions, including those started before a failure.
func startChannels(ctx context.Context, cfg *config.Config, a *app, log *slog.Logger) ([]func(context.Context) error, error) {
	var stops []func(context.Context) error
	for _, cc := range cfg.Channels {
		switch cc.Type {
		case "http":
			ch := channel.NewHTTPChannel(cc.HTTP.Addr, a.httpDeps(cfg, cc.HTTP), log)
			if err := ch.Start(ctx); err != nil {
				return stops, fmt.Errorf("channel http: %w", err)
			}
			stops = append(stops, ch.Stop)
		case "whatsapp":
			ch := channel.NewWhatsAppChannel(*cc.WhatsApp, log)
			if err := ch.Start(ctx, channel.PhoneReplies(a.phone, ch, log)); err != nil {
				return stops, fmt.Errorf("channel whatsapp: %w", err)
			}
			stops = append(stops, ch.Stop)
		default:
			log.Warn("unknown channel type, skipping", "type", cc.Type)
		}
	}
	return stops, nil
}

func runMCP() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// stdout carries the protocol.
	if strings.EqualFold(cfg.Logger.Output, "stdout") {
		cfg.Logger.Output = "stderr"
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	a, err := buildApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := mcpserver.New(a.registry, version, cfg.Agent.ToolTimeout, a.metrics, log).ServeStdio(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}

// providerLabel names the configured provider for logs and /health.
func providerLabel(cfg *config.Config, llm domain.LLMProvider) string {
	if llm == nil {
		return "unsupported:" + cfg.LLM.DefaultProvider
	}
	return llm.Name()
}
