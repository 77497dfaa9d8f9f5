// Shelfwise - Retail RFM Segmentation and Recommendation Engine
// Copyright 2026 Shelfwise Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

// Command train runs the offline pipeline: load the order workbook,
// compute and score RFM, fit the segmentation model, and save a new
// artifact bundle version.
package main

import (
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/shelfwise/shelfwise/internal/artifacts"
	"github.com/shelfwise/shelfwise/internal/config"
	"github.com/shelfwise/shelfwise/internal/dataset"
	"github.com/shelfwise/shelfwise/internal/logging"
	"github.com/shelfwise/shelfwise/internal/metrics"
	"github.com/shelfwise/shelfwise/internal/rfm"
	"github.com/shelfwise/shelfwise/internal/segment"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("training failed")
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

	start := time.Now()
	runID := uuid.NewString()
	logging.Info().
		Str("run_id", runID).
		Str("workbook", cfg.Data.WorkbookPath).
		Msg("starting training pipeline")

	table, err := dataset.LoadWorkbook(cfg.Data.WorkbookPath, cfg.Data.OrdersSheet, cfg.Data.ReturnsSheet)
	if err != nil {
		return err
	}

	records, referenceDate, err := rfm.Compute(table.Orders)
	if err != nil {
		return err
	}
	if err := rfm.ScoreRecords(records, cfg.Training.QuantileBins); err != nil {
		return err
	}

	model, err := segment.Fit(records, segment.FitOptions{
		NClusters:    cfg.Training.NClusters,
		Epochs:       cfg.Training.Epochs,
		BatchSize:    cfg.Training.BatchSize,
		LearningRate: cfg.Training.LearningRate,
		Restarts:     cfg.Training.Restarts,
		Seed:         cfg.Training.Seed,
	})
	if err != nil {
		return err
	}

	bundle, err := artifacts.Build(records, model, table.Orders, referenceDate, artifacts.BuildOptions{
		ClusterTopSize: cfg.Recommend.ClusterTopSize,
		OverallTopSize: cfg.Recommend.OverallTopSize,
	})
	if err != nil {
		return err
	}

	store, err := artifacts.NewStore(cfg.Data.ArtifactsDir)
	if err != nil {
		return err
	}
	version, err := store.SaveBundle(bundle)
	if err != nil {
		return err
	}

	elapsed := time.Since(start)
	metrics.TrainingDuration.Observe(elapsed.Seconds())

	logging.Info().
		Str("run_id", runID).
		Int("version", version).
		Int("customers", len(records)).
		Int("orders", len(table.Orders)).
		Dur("elapsed", elapsed).
		Msg("training pipeline complete")

	return nil
}
