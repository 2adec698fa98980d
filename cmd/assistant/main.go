// Command assistant is the HTTP entry point for the agentic tasks service.
// It loads the MCP server registry, builds the LLM provider, and serves
// POST /assistant until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/pcancela/agentic-tasks-template/internal/config"
	"github.com/pcancela/agentic-tasks-template/internal/health"
	"github.com/pcancela/agentic-tasks-template/internal/observe"
	"github.com/pcancela/agentic-tasks-template/internal/orchestrator"
	"github.com/pcancela/agentic-tasks-template/internal/server"
	"github.com/pcancela/agentic-tasks-template/pkg/provider/llm"
	"github.com/pcancela/agentic-tasks-template/pkg/provider/llm/anyllm"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	registryDir := flag.String("registry-dir", ".", "directory containing the MCP server registry")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "assistant: %v\n", err)
		return 1
	}
	cfg.ApplyEnv()

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("assistant starting",
		"config", *configPath,
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	shutdownObserve, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "agentic-tasks",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownObserve(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── MCP server registry ───────────────────────────────────────────────────
	registryPath := config.RegistryPath(*registryDir, config.InDocker())
	registry, err := config.LoadRegistry(registryPath)
	if err != nil {
		if errors.Is(err, config.ErrRegistryNotFound) {
			slog.Error("MCP registry file not found", "path", registryPath)
		} else {
			slog.Error("failed to load MCP registry", "path", registryPath, "err", err)
		}
		return 1
	}
	slog.Info("MCP registry loaded", "path", registryPath, "servers", registry.Len())

	// ── LLM provider ──────────────────────────────────────────────────────────
	provider, err := buildLLMProvider(cfg)
	if err != nil {
		slog.Error("failed to build LLM provider", "err", err)
		return 1
	}

	// ── Orchestrator ──────────────────────────────────────────────────────────
	orch, err := orchestrator.New(orchestrator.Config{
		Registry:      registry,
		LLM:           provider,
		ProviderName:  cfg.LLM.Provider,
		MaxToolRounds: cfg.Agent.MaxToolRounds,
		Temperature:   cfg.LLM.Temperature,
	})
	if err != nil {
		slog.Error("failed to build orchestrator", "err", err)
		return 1
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	checkers := []health.Checker{
		{Name: "registry", Check: func(context.Context) error {
			_, err := os.Stat(registryPath)
			return err
		}},
	}
	if cfg.LLM.Provider == "ollama" && cfg.LLM.BaseURL != "" {
		checkers = append(checkers, health.Ping("ollama", cfg.LLM.BaseURL))
	}

	srv, err := server.New(server.Config{
		Port:   cfg.Server.Port,
		Runner: orch,
		Health: health.New(checkers...),
	})
	if err != nil {
		slog.Error("failed to build server", "err", err)
		return 1
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildLLMProvider constructs the completion backend named by cfg.
func buildLLMProvider(cfg *config.Config) (llm.Provider, error) {
	var opts []anyllmlib.Option
	if cfg.LLM.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(cfg.LLM.BaseURL))
	}
	if key := os.Getenv("LLM_API_KEY"); key != "" {
		opts = append(opts, anyllmlib.WithAPIKey(key))
	}
	return anyllm.New(cfg.LLM.Provider, cfg.LLM.Model, opts...)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
