package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rldls/doorlog/internal/aggregate"
	"github.com/rldls/doorlog/internal/config"
	"github.com/rldls/doorlog/internal/logging"
	"github.com/rldls/doorlog/internal/remote"
	"github.com/rldls/doorlog/internal/remote/sheets"
	"github.com/rldls/doorlog/internal/server"
)

func main() {
	logging.Init(os.Stdout, logging.LevelInfo)

	cfg, err := config.LoadServer()
	if err != nil {
		logging.Error("invalid configuration", err)
		os.Exit(1)
	}

	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		logging.Error("failed to open remote store", err)
		os.Exit(1)
	}

	updater := aggregate.NewUpdater(store)
	if err := updater.EnsureHeaders(ctx); err != nil {
		logging.Warn("could not verify table headers", map[string]interface{}{
			"error": err.Error(),
		})
	}

	srv := server.New(cfg, updater)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("server listening", map[string]interface{}{
			"addr": cfg.HTTPAddr, "backend": cfg.RemoteBackend,
		})
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logging.Error("server failed", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		logging.Info("shutting down", map[string]interface{}{"signal": sig.String()})
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("shutdown incomplete", err)
		}
	}
}

// openStore selects the remote backend. The in-memory store exists for
// local development and tests; production is always sheets.
func openStore(ctx context.Context, cfg config.Server) (remote.Store, error) {
	if cfg.RemoteBackend == "memory" {
		return remote.NewMemoryStore(), nil
	}

	creds := cfg.GoogleCredentials
	if data, err := os.ReadFile(creds); err == nil {
		// The env var may hold either the JSON itself or a path to it.
		creds = string(data)
	}
	return sheets.New(ctx, creds, cfg.SpreadsheetID)
}
