// Shelfwise - Retail RFM Segmentation and Recommendation Engine
// Copyright 2026 Shelfwise Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

// Package segment trains the customer segmentation model: raw RFM
// values are standardized, compressed to a 2-dimensional embedding by
// a small autoencoder, and clustered with k-means.
//
// All training is seeded and single-threaded so the same input always
// produces the same clusters.
package segment

import "github.com/shelfwise/shelfwise/internal/rfm"

// BuildFeatures converts RFM records into the raw model feature matrix:
// one row per record, columns [recency, frequency, monetary]. The
// values are fed to the scaler as-is; standardization is the only
// transform the model sees.
func BuildFeatures(records []rfm.Record) [][]float64 {
	features := make([][]float64, len(records))
	for i := range records {
		features[i] = []float64{
			float64(records[i].Recency),
			float64(records[i].Frequency),
			records[i].Monetary,
		}
	}
	return features
}
