// Package internal wires the vault services together and runs the server.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/othala/internal/api"
	"github.com/starford/othala/internal/folderops"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/mcpserver"
	"github.com/starford/othala/internal/noteops"
	"github.com/starford/othala/internal/pipeline"
	"github.com/starford/othala/internal/sse"
	"github.com/starford/othala/internal/tagops"
	"github.com/starford/othala/internal/tools"
	"github.com/starford/othala/internal/vault"
	"github.com/starford/othala/internal/wikilink"
)

type services struct {
	store    vault.Provider
	db       *index.DB
	registry *tools.Registry
	engine   *pipeline.Engine
	handler  *api.Handler
	broker   *sse.Broker
}

// buildServices opens the vault and the view database and assembles the
// mutation services, the tool registry, and the task engine on top of them.
// broker may be nil for stdio mode.
func buildServices(cfg *Config, logger *slog.Logger, broker *sse.Broker) (*services, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := vault.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init vault: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	locks := vault.NewLocker()

	limit := cfg.Vault.CascadeLimit
	if limit <= 0 {
		limit = 4
	}
	rewriter := wikilink.NewRewriter(store, locks, logger, limit, func(path string, data []byte) {
		if err := index.IndexFile(db, path, data); err != nil {
			logger.Warn("reindex after rewrite failed",
				slog.String("path", path), slog.String("error", err.Error()))
		}
		if broker != nil {
			broker.PublishNoteEvent(sse.NoteUpdated, path)
		}
	})

	notes := noteops.NewService(store, locks, db, rewriter, logger)
	folders := folderops.NewService(store, db, logger)
	tags := tagops.NewService(store, locks, db, logger)

	registry := tools.DefaultRegistry(tools.Deps{Notes: notes, Folders: folders, Tags: tags})
	engine := pipeline.NewEngine(newClassifier(cfg.Pipeline), registry, logger)
	handler := api.NewHandler(notes, folders, tags, engine)

	return &services{
		store:    store,
		db:       db,
		registry: registry,
		engine:   engine,
		handler:  handler,
		broker:   broker,
	}, nil
}

// newClassifier builds the rule classifier from configuration, falling back
// to a small built-in rule set when none is configured.
func newClassifier(cfg PipelineConfig) *pipeline.RuleClassifier {
	if len(cfg.Rules) == 0 {
		return pipeline.NewRuleClassifier(defaultRules()...)
	}
	rules := make([]pipeline.Rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		rules = append(rules, pipeline.Rule{
			Keywords:   r.Keywords,
			Kind:       r.Kind,
			Tools:      r.Tools,
			Parameters: r.Parameters,
			Sequential: r.Sequential,
		})
	}
	return pipeline.NewRuleClassifier(rules...)
}

func defaultRules() []pipeline.Rule {
	return []pipeline.Rule{
		{
			Keywords: []string{"list", "tags"},
			Kind:     "tag_report",
			Tools:    []string{"list_tags"},
		},
		{
			Keywords: []string{"list", "notes"},
			Kind:     "note_report",
			Tools:    []string{"list_notes"},
		},
	}
}

// Run starts the HTTP server, the vault watcher, and the SSE broker.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc, err := buildServices(cfg, logger, broker)
	if err != nil {
		return err
	}
	defer svc.db.Close()

	apiRouter := api.NewRouter(svc.handler, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// External edits flow through the watcher into the view and the broker.
	g.Go(func() error {
		if err := index.Watch(gCtx, svc.db, svc.store, cfg.Vault.Path, logger, func(kind, path string) {
			broker.PublishNoteEvent(kind, path)
		}); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the tool registry over MCP stdio. Logs go to stderr so
// stdout stays clean for the protocol stream.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	svc, err := buildServices(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer svc.db.Close()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := index.Watch(gCtx, svc.db, svc.store, cfg.Vault.Path, logger, nil); err != nil &&
			!errors.Is(err, context.Canceled) {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		return mcpserver.New(svc.registry).ServeStdio()
	})

	return g.Wait()
}
