// Command agentweb-server hosts the render pipeline behind an HTTP API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/agentweb/api"
	"github.com/use-agent/agentweb/browser"
	"github.com/use-agent/agentweb/cache"
	"github.com/use-agent/agentweb/config"
	"github.com/use-agent/agentweb/metrics"
	"github.com/use-agent/agentweb/orchestrate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	initLogger(cfg.Log)
	slog.Info("agentweb-server starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxPages", cfg.Browser.MaxPages,
	)

	cc, err := cache.Open(cache.Options{
		TTLMs:      cfg.Cache.TTLMs,
		MaxEntries: cfg.Cache.MaxEntries,
		DBPath:     cfg.Cache.DBPath,
		Verbose:    cfg.Cache.Verbose,
	})
	if err != nil {
		slog.Error("failed to open cache", "error", err)
		os.Exit(1)
	}
	defer cc.Close()

	var renderer *browser.Renderer
	renderer, err = browser.Launch(browser.Config{
		Headless:     cfg.Browser.Headless,
		NoSandbox:    cfg.Browser.NoSandbox,
		BrowserBin:   cfg.Browser.BrowserBin,
		DefaultProxy: cfg.Browser.DefaultProxy,
		MinPages:     cfg.Browser.MinPages,
		MaxPages:     cfg.Browser.MaxPages,
	})
	if err != nil {
		slog.Warn("failed to launch browser, continuing in lite-only mode", "error", err)
		renderer = nil
	} else {
		defer renderer.Close()
	}

	o := orchestrate.New(cc, renderer)
	if cfg.Metrics.Enabled {
		o = o.WithMetrics(metrics.New())
	}

	startTime := time.Now()
	router := api.NewRouter(o, renderer, cfg, startTime)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("agentweb-server stopped")
}

func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(h))
}
