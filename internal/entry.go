// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
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

	"github.com/starford/notelinker/internal/api"
	"github.com/starford/notelinker/internal/index"
	"github.com/starford/notelinker/internal/mcpserver"
	"github.com/starford/notelinker/internal/noteservice"
	"github.com/starford/notelinker/internal/sse"
	"github.com/starford/notelinker/internal/storage"
	"github.com/starford/notelinker/internal/vocab"
)

// components are the wired pieces shared by every command.
type components struct {
	logger *slog.Logger
	db     *index.DB
	ix     *index.Indexer
	svc    *noteservice.Service
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// open builds the logger, vault, index and service, and brings the index up
// to date with the vault. The caller closes the returned database.
func (a *application) open() (*components, error) {
	cfg := a.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

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

	ix := index.NewIndexer(db, store, cfg.Notes.RegenOptions(), logger)
	if err := ix.Sync(); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	return &components{
		logger: logger,
		db:     db,
		ix:     ix,
		svc:    noteservice.NewService(store, db, ix),
	}, nil
}

// importDataset loads path and imports its records. Every indexed note's
// change decision is recomputed against the new dataset.
func (c *components) importDataset(ctx context.Context, path string) (*noteservice.ImportResult, error) {
	records, err := vocab.LoadFile(path)
	if err != nil {
		return nil, err
	}
	res, err := c.svc.ImportVocab(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	c.logger.Info("Vocabulary imported",
		slog.String("file", path),
		slog.Int("records", res.Records),
		slog.Int("flipped", len(res.Flipped)))
	return res, nil
}

// Run starts the HTTP server and vault watcher with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	c, err := app.open()
	if err != nil {
		return err
	}
	defer c.db.Close()
	logger := c.logger

	if cfg.Vocab.Dataset != "" {
		if _, err := c.importDataset(ctx, cfg.Vocab.Dataset); err != nil {
			logger.Warn("startup import failed", slog.String("error", err.Error()))
		}
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c.svc.OnChange(func(kind, path string, needsUpdate bool) {
		broker.PublishNoteChange(sse.NoteChange{Kind: kind, Path: path, NeedsUpdate: needsUpdate})
	})
	c.svc.OnImport(func(res noteservice.ImportResult) {
		broker.Publish(sse.Event{Type: sse.TypeVocabImported, Data: res})
	})

	apiRouter := api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		if err := c.db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		records, _ := c.db.VocabCount()
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":      "ok",
			"vocabulary":  records,
			"sse_clients": broker.ClientCount(),
		})
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watcher events carry the fresh change decision to SSE clients.
	g.Go(func() error {
		err := c.ix.Watch(gCtx, func(kind, path string) {
			change := sse.NoteChange{Kind: kind, Path: path}
			if kind != index.EventDeleted {
				if row, err := c.db.GetNote(path); err == nil {
					change.NeedsUpdate = row.NeedsUpdate
				}
			}
			broker.PublishNoteChange(change)
		})
		if err != nil {
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
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools over stdio.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	c, err := app.open()
	if err != nil {
		return err
	}
	defer c.db.Close()

	c.logger.Info("MCP server starting", slog.String("version", app.version))
	return mcpserver.New(c.svc, app.version).ServeStdio()
}

// Import loads a vocabulary dataset file into the index and reports the
// notes whose change decision flipped to out.
func Import(ctx context.Context, path string, out io.Writer, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	c, err := app.open()
	if err != nil {
		return err
	}
	defer c.db.Close()

	res, err := c.importDataset(ctx, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "imported %d records\n", res.Records)
	for _, p := range res.Flipped {
		fmt.Fprintf(out, "flipped: %s\n", p)
	}
	return nil
}

// Regenerate rewrites every note that is out of date with the dataset.
// With dryRun set it only prints the pending line changes.
func Regenerate(ctx context.Context, dryRun bool, out io.Writer, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	c, err := app.open()
	if err != nil {
		return err
	}
	defer c.db.Close()

	paths, err := c.pendingPaths(ctx)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if dryRun {
			preview, err := c.svc.PreviewUpdate(ctx, p)
			if err != nil {
				return err
			}
			for _, ch := range preview.Changes {
				fmt.Fprintf(out, "%s:%d\n- %s\n+ %s\n", p, ch.Line, ch.Before, ch.After)
			}
			continue
		}
		res, err := c.svc.ApplyUpdate(ctx, p, "")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %d lines\n", p, len(res.Changes))
	}
	return nil
}

const pageSize = 200

// pendingPaths collects every note flagged as out of date before any of
// them is rewritten, since rewriting clears the flag and shifts pages.
func (c *components) pendingPaths(ctx context.Context) ([]string, error) {
	var paths []string
	for offset := 0; ; offset += pageSize {
		items, total, err := c.svc.ListNotes(ctx, noteservice.ListQuery{
			NeedsUpdate: true,
			Limit:       pageSize,
			Offset:      offset,
		})
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			paths = append(paths, it.Path)
		}
		if len(items) == 0 || offset+len(items) >= total {
			return paths, nil
		}
	}
}
