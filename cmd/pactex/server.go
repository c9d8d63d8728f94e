package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/pactex/pactex/internal/api"
	"github.com/pactex/pactex/internal/config"
	"github.com/pactex/pactex/internal/extract"
	"github.com/pactex/pactex/internal/gemini"
	"github.com/pactex/pactex/internal/ingest"
	"github.com/pactex/pactex/internal/retrieval"
	"github.com/pactex/pactex/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the extraction server (HTTP + MCP stdio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func setupLogging(cfg config.Config) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// backends bundles the shared infrastructure the commands wire together.
type backends struct {
	store   *storage.Store
	client  *gemini.Client
	vectors *retrieval.SQLiteStore
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, func(), error) {
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening storage: %w", err)
	}

	client, err := gemini.NewClient(ctx, gemini.Options{
		APIKey:     cfg.Gemini.APIKey,
		EmbedModel: cfg.Gemini.EmbedModel,
		GenModel:   cfg.Gemini.GenModel,
		BatchSize:  cfg.Gemini.EmbedBatchSize,
	}, slog.Default())
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	vectors := retrieval.NewSQLiteStore(store.DB(), cfg.Retrieval.Collection)
	if err := vectors.EnsureCollection(); err != nil {
		client.Close()
		store.Close()
		return nil, nil, fmt.Errorf("ensuring collection: %w", err)
	}

	cleanup := func() {
		client.Close()
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}
	return &backends{store: store, client: client, vectors: vectors}, cleanup, nil
}

func runServer(ctx context.Context) error {
	fmt.Fprintf(os.Stderr, "pactex version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	b, cleanup, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	retriever := retrieval.NewRetriever(b.client, b.vectors, cfg.Retrieval.TopK, slog.Default())
	extractor := extract.NewExtractor(b.client, retriever, slog.Default())
	populator := ingest.NewPopulator(b.client, b.vectors, slog.Default())

	// Populate an empty store from the configured spreadsheet so a fresh
	// install answers retrieval-augmented requests immediately. Failure
	// here degrades to RAG-less extraction, it does not stop the server.
	if count, err := b.vectors.Count(); err == nil && count == 0 {
		if _, statErr := os.Stat(cfg.Storage.XLSXPath); statErr == nil {
			slog.Info("vector store empty, populating from spreadsheet", "path", cfg.Storage.XLSXPath)
			if err := populator.Populate(ctx, ingest.NewXLSXSource(cfg.Storage.XLSXPath), false); err != nil {
				printWarning("Startup population from %s failed: %v", cfg.Storage.XLSXPath, err)
				slog.Warn("startup population failed", "error", err)
			}
		} else {
			slog.Info("vector store empty and no data file present, skipping startup population",
				"path", cfg.Storage.XLSXPath)
		}
	}

	deps := api.Deps{
		Extractor:  extractor,
		Populator:  populator,
		Counter:    b.vectors,
		Collection: cfg.Retrieval.Collection,
		DBPath:     b.store.Path(),
		XLSXPath:   cfg.Storage.XLSXPath,
		AdminToken: cfg.Server.AdminToken,
		Logger:     slog.Default(),
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewHandler(deps),
	}

	// MCP over stdio runs alongside the HTTP server.
	stdioSrv := server.NewStdioServer(api.NewMCPServer(deps))
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		slog.Info("pactex listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
