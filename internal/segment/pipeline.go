// Shelfwise - Retail RFM Segmentation and Recommendation Engine
// Copyright 2026 Shelfwise Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package segment

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/shelfwise/shelfwise/internal/logging"
	"github.com/shelfwise/shelfwise/internal/rfm"
)

// Model is the fitted segmentation pipeline: scaler, autoencoder, and
// k-means, applied in that order.
type Model struct {
	Scaler   *Scaler
	Encoder  *Autoencoder
	Clusters *KMeans
}

// FitOptions controls pipeline training.
type FitOptions struct {
	NClusters    int
	Epochs       int
	BatchSize    int
	LearningRate float64
	Restarts     int
	Seed         int64
}

// Fit trains the segmentation pipeline on the RFM records and assigns
// each record's Cluster in place. All randomness derives from
// opts.Seed, so identical input produces identical clusters.
func Fit(records []rfm.Record, opts FitOptions) (*Model, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("cannot fit segmentation model on empty records")
	}
	if opts.NClusters > len(records) {
		return nil, fmt.Errorf("n_clusters=%d exceeds customer count %d", opts.NClusters, len(records))
	}

	start := time.Now()
	rng := rand.New(rand.NewSource(opts.Seed))

	features := BuildFeatures(records)
	scaler := FitScaler(features)
	scaled := scaler.Transform(features)

	encoder := NewAutoencoder(EncoderSizes, rng)
	mse, err := encoder.Train(scaled, TrainOptions{
		Epochs:       opts.Epochs,
		BatchSize:    opts.BatchSize,
		LearningRate: opts.LearningRate,
	}, rng)
	if err != nil {
		return nil, fmt.Errorf("autoencoder training failed: %w", err)
	}

	embedded := encoder.EncodeAll(scaled)
	clusters, err := FitKMeans(embedded, opts.NClusters, opts.Restarts, rng)
	if err != nil {
		return nil, fmt.Errorf("k-means clustering failed: %w", err)
	}

	for i := range records {
		records[i].Cluster = clusters.Predict(embedded[i])
	}

	logging.Info().
		Int("customers", len(records)).
		Int("clusters", opts.NClusters).
		Float64("reconstruction_mse", mse).
		Float64("inertia", clusters.Inertia).
		Dur("elapsed", time.Since(start)).
		Msg("segmentation model fitted")

	return &Model{Scaler: scaler, Encoder: encoder, Clusters: clusters}, nil
}

// Predict returns the cluster for a single customer's raw RFM metrics,
// running the full scaler/encoder/k-means path.
func (m *Model) Predict(recency, frequency int, monetary float64) int {
	raw := []float64{float64(recency), float64(frequency), monetary}
	embedded := m.Encoder.Encode(m.Scaler.TransformRow(raw))
	return m.Clusters.Predict(embedded)
}
