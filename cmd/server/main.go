package main

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

	"forgeworks/macrod/internal/api"
	"forgeworks/macrod/internal/cache"
	"forgeworks/macrod/internal/config"
	"forgeworks/macrod/internal/downstream"
	"forgeworks/macrod/internal/pipeline"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("loading config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := cache.New(cfg.CacheTTL)
	if cfg.Watch() {
		watcher, err := cache.NewWatcher(cfg.ToolRoot, c, log)
		if err != nil {
			return fmt.Errorf("starting file watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("watching tool root: %w", err)
		}
		log.Info("watching tool root for changes", "root", cfg.ToolRoot)
	}

	go func() {
		ticker := time.NewTicker(cfg.CacheTTL)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()

	var ds *downstream.Client
	if cfg.DownstreamURL != "" {
		ds = downstream.NewClient(cfg.DownstreamURL, cfg.DownstreamAPIKey)
		defer ds.Close()
		log.Info("downstream publishing enabled", "url", cfg.DownstreamURL)
	}

	stats := pipeline.NewStats()
	var orch *pipeline.Orchestrator
	metrics := pipeline.NewMetrics(func() float64 {
		if orch == nil {
			return 0
		}
		return float64(orch.QueueDepth())
	})
	expander := pipeline.NewExpander(cfg.ToolRoot, c, stats, metrics)
	orch = pipeline.NewOrchestrator(&cfg, log, expander, ds, stats, metrics)
	orch.Start(ctx)
	defer orch.Stop()

	server := api.NewServer(&cfg, log, orch, expander, c)
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", httpServer.Addr, "tool_root", cfg.ToolRoot)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
