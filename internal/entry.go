// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/vowpost/internal/api"
	"github.com/starford/vowpost/internal/docservice"
	"github.com/starford/vowpost/internal/editor"
	"github.com/starford/vowpost/internal/index"
	"github.com/starford/vowpost/internal/markup"
	"github.com/starford/vowpost/internal/mcpserver"
	"github.com/starford/vowpost/internal/sse"
	"github.com/starford/vowpost/internal/storage"
	"github.com/starford/vowpost/internal/tocsync"
)

const apiBasePath = "/api"

// backend is the storage and index pair shared by the HTTP and MCP entry
// points.
type backend struct {
	store *storage.FS
	db    *index.DB
}

func (b *backend) Close() error {
	return b.db.Close()
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// openBackend prepares the vault directory, opens the index and brings it in
// line with the files on disk.
func openBackend(cfg *Config, logger *slog.Logger) (*backend, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if _, err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return &backend{store: store, db: db}, nil
}

func syncOptions(cfg *Config) tocsync.Options {
	return tocsync.Options{IDs: markup.IDOptions{Slug: cfg.Editor.SlugIDs}}
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(app.logOut, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()),
		slog.Duration("debounce", cfg.Editor.Debounce),
		slog.Bool("slug_ids", cfg.Editor.SlugIDs))

	be, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer be.Close()

	// SSE broker.
	broker := sse.NewBroker(cfg.Events.OutlineThrottle, sse.WithHeartbeat(cfg.Events.Heartbeat))
	defer broker.Close()

	svc := docservice.NewService(be.store, be.db,
		docservice.WithSyncOptions(syncOptions(cfg)),
		docservice.WithEvents(broker),
		docservice.WithLogger(logger),
	)

	sessions := editor.NewManager(editor.ManagerConfig{
		Delay:  cfg.Editor.Debounce,
		TTL:    cfg.Editor.SessionTTL,
		Sync:   syncOptions(cfg),
		Logger: logger,
		OnSynced: func(id, path string, res *tocsync.Result) {
			broker.PublishSessionSynced(sse.SessionSynced{
				Session:  id,
				Path:     path,
				Headings: len(res.Headings),
				Assigned: res.Assigned,
			})
		},
	})

	apiRouter := api.NewRouter(api.RouterConfig{
		Service:     svc,
		Sessions:    sessions,
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		Events:      broker,
		CORSOrigins: cfg.App.HTTP.CORSOrigins,
		BasePath:    apiBasePath,
	})

	// Build chi router.
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

	r.Mount(apiBasePath, apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher with SSE callback.
	g.Go(func() error {
		err := index.Watch(gCtx, be.db, be.store, cfg.Vault.Path, logger, broker.PublishDocumentEvent)
		if err != nil {
			logger.Error("watcher failed", slog.String("error", err.Error()))
		}
		return nil
	})

	// Expire idle editing sessions.
	g.Go(func() error {
		sessions.Run(gCtx)
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		var err error
		if app.listener != nil {
			logger.Info("Starting HTTP server", slog.String("address", app.listener.Addr().String()))
			err = httpServer.Serve(app.listener)
		} else {
			logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Broker streams only end once the broker closes.
		broker.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		sessions.CloseAll()

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group once the server has been shut down, so the
// watcher and session sweeper stop after a signal too.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio against the configured vault. Logs
// go to stderr since stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(app.logOut, cfg.App.LogLevel)
	slog.SetDefault(logger)

	be, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer be.Close()

	svc := docservice.NewService(be.store, be.db,
		docservice.WithSyncOptions(syncOptions(cfg)),
		docservice.WithLogger(logger),
	)

	logger.Info("MCP server starting", slog.String("vault_path", cfg.Vault.Path))

	errCh := make(chan error, 1)
	go func() { errCh <- mcpserver.New(svc).ServeStdio() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}
