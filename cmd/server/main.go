// Shelfwise - Retail RFM Segmentation and Recommendation Engine
// Copyright 2026 Shelfwise Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

// Command server runs the recommendation API. It refuses to start
// without a complete artifact bundle: serving stale or partial models
// silently is worse than not serving at all.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/shelfwise/shelfwise/internal/api"
	"github.com/shelfwise/shelfwise/internal/artifacts"
	"github.com/shelfwise/shelfwise/internal/config"
	"github.com/shelfwise/shelfwise/internal/logging"
	"github.com/shelfwise/shelfwise/internal/metrics"
	"github.com/shelfwise/shelfwise/internal/recommend"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	store, err := artifacts.NewStore(cfg.Data.ArtifactsDir)
	if err != nil {
		return err
	}

	bundle, err := store.LoadBundle(0)
	if err != nil {
		return fmt.Errorf("cannot start without artifacts (run the train command first): %w", err)
	}
	metrics.ArtifactVersion.Set(float64(bundle.Version))

	handler := api.NewHandler(store, recommend.NewResolver(bundle), cfg.Recommend)
	router := api.NewRouter(handler, cfg.Server)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().
			Str("addr", addr).
			Int("bundle_version", bundle.Version).
			Int("customers", len(bundle.Records)).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logging.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logging.Info().Msg("server stopped")
	return nil
}
