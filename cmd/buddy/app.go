package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/kalambet/buddy/internal/action"
	"github.com/kalambet/buddy/internal/companion"
	"github.com/kalambet/buddy/internal/config"
	"github.com/kalambet/buddy/internal/events"
	"github.com/kalambet/buddy/internal/llm"
	"github.com/kalambet/buddy/internal/mood"
	"github.com/kalambet/buddy/internal/ollama"
	"github.com/kalambet/buddy/internal/proxy"
	"github.com/kalambet/buddy/internal/router"
	"github.com/kalambet/buddy/internal/storage"
)

// app holds the long-lived collaborators shared by the server and the
// local chat REPL.
type app struct {
	cfg       config.Config
	store     *storage.Store
	ollama    *ollama.Client
	selector  *router.Selector
	analyzer  *mood.Analyzer
	bus       *events.Bus
	executor  *action.SystemExecutor
	companion *companion.Companion
}

// buildApp wires storage, backends, routing and the companion from cfg.
// newDispatcher may be nil, in which case actions run synchronously.
func buildApp(ctx context.Context, cfg config.Config, newDispatcher func(*storage.Store) companion.Dispatcher) (*app, error) {
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	a := &app{
		cfg:      cfg,
		store:    store,
		ollama:   ollama.New(cfg.Ollama.BaseURL),
		analyzer: mood.New(cfg.Sentiment.Sensitivity),
		bus:      events.New(),
	}

	clouds, err := buildClouds(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	a.selector = newSelector(cfg, llm.NewLocal(a.ollama, cfg.Ollama.Model, llm.SystemPrompt), clouds)

	home, err := os.UserHomeDir()
	if err != nil {
		slog.Warn("home directory unknown, file actions limited", "error", err)
	}
	a.executor = action.NewSystemExecutor(action.SystemOpener{}, home)

	opts := companion.Options{
		Executor: a.executor,
		Bus:      a.bus,
		Log:      store,
	}
	if newDispatcher != nil {
		opts.Dispatcher = newDispatcher(store)
	}
	a.companion = companion.New(router.New(a.selector), a.analyzer, opts)
	return a, nil
}

func newSelector(cfg config.Config, local llm.Backend, clouds []llm.Backend) *router.Selector {
	mode, err := router.ParseMode(cfg.LLM.Mode)
	if err != nil {
		slog.Warn("invalid llm mode, using auto", "value", cfg.LLM.Mode, "error", err)
		mode = router.ModeAuto
	}
	var priority []llm.ID
	for _, p := range cfg.LLM.Priority() {
		priority = append(priority, llm.ID(p))
	}
	return router.NewSelector(local, clouds, router.Options{
		Mode:          mode,
		CloudPriority: priority,
		PreferOnline:  cfg.Preferences.PreferOnline,
		AutoFallback:  cfg.Preferences.AutoFallback,
		Store:         config.ModeWriter{},
	})
}

// buildClouds returns the cloud backends that have an API key configured.
func buildClouds(ctx context.Context, cfg config.Config) ([]llm.Backend, error) {
	if cfg.Groq.APIKey == "" && cfg.Gemini.APIKey == "" {
		slog.Info("no cloud API keys configured, local backend only")
		return nil, nil
	}
	client, err := proxy.NewHTTPClient(cfg.Network.SocksProxy, cfg.LLM.Timeout())
	if err != nil {
		return nil, fmt.Errorf("building cloud HTTP client: %w", err)
	}

	var clouds []llm.Backend
	if cfg.Groq.APIKey != "" {
		clouds = append(clouds, llm.NewGroq(llm.GroqOptions{
			APIKey:     cfg.Groq.APIKey,
			Model:      cfg.Groq.Model,
			HTTPClient: client,
			Timeout:    cfg.LLM.Timeout(),
		}, llm.SystemPrompt))
	}
	if cfg.Gemini.APIKey != "" {
		g, err := llm.NewGemini(ctx, llm.GeminiOptions{
			APIKey:     cfg.Gemini.APIKey,
			Model:      cfg.Gemini.Model,
			HTTPClient: client,
		}, llm.SystemPrompt)
		if err != nil {
			slog.Warn("gemini backend unavailable", "error", err)
		} else {
			clouds = append(clouds, g)
		}
	}
	return clouds, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
	}
}
