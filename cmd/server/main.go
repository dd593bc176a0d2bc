// Package main serves portfolio reports over HTTP: JSON endpoints under /v1,
// plus /health, /status and Prometheus /metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blend-portfolio/internal/app"
	"blend-portfolio/internal/config"
	"blend-portfolio/internal/httpapi"
	"blend-portfolio/internal/logger"
)

func main() {
	configDir := flag.String("config", ".", "Directory containing config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(logger.Options{Level: cfg.App.LogLevel, Environment: cfg.App.Environment})
	log := logger.ForComponent("server")

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, time.Now)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start")
	}
	defer a.Close()

	opts := httpapi.Options{
		Backend:        cfg.Store.Backend,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Gatherer:       a.Registry,
		Logger:         logger.ForComponent("http"),
	}
	if a.Demo != nil {
		opts.DemoUser = a.Demo.User
	}
	srv := httpapi.NewServer(cfg.HTTP.Addr, httpapi.NewRouter(a.Service, opts))

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Str("backend", cfg.Store.Backend).Msg("starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown timed out")
	}
	log.Info().Msg("shutdown complete")
}
