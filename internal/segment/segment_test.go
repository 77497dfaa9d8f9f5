// Shelfwise - Retail RFM Segmentation and Recommendation Engine
// Copyright 2026 Shelfwise Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package segment

import (
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/shelfwise/shelfwise/internal/rfm"
)

// syntheticRecords builds two well-separated customer populations so
// clustering has unambiguous structure.
func syntheticRecords() []rfm.Record {
	records := make([]rfm.Record, 0, 40)
	rng := rand.New(rand.NewSource(7))

	// Recent, frequent, high-spend customers.
	for i := 0; i < 20; i++ {
		records = append(records, rfm.Record{
			CustomerID: "HI-" + string(rune('A'+i)),
			Recency:    5 + rng.Intn(10),
			Frequency:  20 + rng.Intn(10),
			Monetary:   5000 + rng.Float64()*2000,
		})
	}
	// Lapsed, infrequent, low-spend customers.
	for i := 0; i < 20; i++ {
		records = append(records, rfm.Record{
			CustomerID: "LO-" + string(rune('A'+i)),
			Recency:    300 + rng.Intn(100),
			Frequency:  1 + rng.Intn(2),
			Monetary:   20 + rng.Float64()*50,
		})
	}
	return records
}

func TestBuildFeatures(t *testing.T) {
	t.Parallel()

	records := []rfm.Record{
		{Recency: 10, Frequency: 3, Monetary: 99.5},
		{Recency: 1, Frequency: 1, Monetary: 20},
	}

	features := BuildFeatures(records)
	if len(features) != 2 || len(features[0]) != 3 {
		t.Fatalf("features shape = %dx%d, want 2x3", len(features), len(features[0]))
	}

	want := []float64{10, 3, 99.5}
	if !reflect.DeepEqual(features[0], want) {
		t.Errorf("features[0] = %v, want raw metrics %v", features[0], want)
	}
}

func TestFitScaler(t *testing.T) {
	t.Parallel()

	features := [][]float64{
		{1, 10, 5},
		{3, 10, 7},
		{5, 10, 9},
	}

	s := FitScaler(features)
	if got := s.Mean[0]; got != 3 {
		t.Errorf("Mean[0] = %v, want 3", got)
	}
	// Constant column gets Std 1 so Transform is defined.
	if got := s.Std[1]; got != 1 {
		t.Errorf("Std[1] = %v, want 1 for constant column", got)
	}

	scaled := s.Transform(features)
	for j := 0; j < 3; j++ {
		var sum float64
		for i := range scaled {
			sum += scaled[i][j]
		}
		if math.Abs(sum) > 1e-9 {
			t.Errorf("column %d mean = %v after scaling, want 0", j, sum/3)
		}
	}
}

func TestAutoencoderReducesLoss(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	samples := make([][]float64, 64)
	for i := range samples {
		samples[i] = []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
	}

	ae := NewAutoencoder(EncoderSizes, rng)

	var initialLoss float64
	for _, s := range samples {
		out := ae.Reconstruct(s)
		for j := range out {
			d := out[j] - s[j]
			initialLoss += d * d / float64(len(out))
		}
	}
	initialLoss /= float64(len(samples))

	finalLoss, err := ae.Train(samples, TrainOptions{Epochs: 50, BatchSize: 32, LearningRate: 0.001}, rng)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	if finalLoss >= initialLoss {
		t.Errorf("training did not reduce loss: initial %v, final %v", initialLoss, finalLoss)
	}
	if math.IsNaN(finalLoss) {
		t.Error("final loss is NaN")
	}
}

func TestAutoencoderEncodeShape(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	ae := NewAutoencoder(EncoderSizes, rng)

	embedded := ae.Encode([]float64{0.5, -0.5, 1.0})
	if len(embedded) != 2 {
		t.Fatalf("bottleneck width = %d, want 2", len(embedded))
	}
	for i, v := range embedded {
		if v < 0 {
			t.Errorf("embedded[%d] = %v, want non-negative ReLU output", i, v)
		}
	}
}

func TestAutoencoderDeterministic(t *testing.T) {
	t.Parallel()

	samples := [][]float64{
		{0.1, 0.2, 0.3},
		{-0.5, 0.4, 1.1},
		{0.9, -0.3, 0.0},
		{1.5, 0.7, -0.8},
	}

	train := func() *Autoencoder {
		rng := rand.New(rand.NewSource(42))
		ae := NewAutoencoder(EncoderSizes, rng)
		if _, err := ae.Train(samples, TrainOptions{Epochs: 5, BatchSize: 2, LearningRate: 0.001}, rng); err != nil {
			t.Fatal(err)
		}
		return ae
	}

	a, b := train(), train()
	if !reflect.DeepEqual(a.Weights, b.Weights) {
		t.Error("same seed produced different weights")
	}
}

func TestFitKMeans(t *testing.T) {
	t.Parallel()

	// Two tight, well-separated blobs.
	points := [][]float64{
		{0, 0}, {0.1, 0}, {0, 0.1}, {0.1, 0.1},
		{10, 10}, {10.1, 10}, {10, 10.1}, {10.1, 10.1},
	}

	rng := rand.New(rand.NewSource(42))
	km, err := FitKMeans(points, 2, 10, rng)
	if err != nil {
		t.Fatalf("FitKMeans() error = %v", err)
	}

	lowCluster := km.Predict([]float64{0.05, 0.05})
	highCluster := km.Predict([]float64{10.05, 10.05})
	if lowCluster == highCluster {
		t.Error("separated blobs assigned to the same cluster")
	}

	for i := 0; i < 4; i++ {
		if got := km.Predict(points[i]); got != lowCluster {
			t.Errorf("point %d in cluster %d, want %d", i, got, lowCluster)
		}
	}
}

func TestFitKMeansValidation(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	if _, err := FitKMeans(nil, 2, 1, rng); err == nil {
		t.Error("expected error for empty points")
	}
	if _, err := FitKMeans([][]float64{{1}}, 2, 1, rng); err == nil {
		t.Error("expected error when k exceeds point count")
	}
	if _, err := FitKMeans([][]float64{{1}, {2}}, 0, 1, rng); err == nil {
		t.Error("expected error for k = 0")
	}
}

func TestFitPipeline(t *testing.T) {
	t.Parallel()

	records := syntheticRecords()
	opts := FitOptions{
		NClusters:    2,
		Epochs:       50,
		BatchSize:    32,
		LearningRate: 0.001,
		Restarts:     10,
		Seed:         42,
	}

	model, err := Fit(records, opts)
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	// Every record got a valid cluster.
	for i := range records {
		if records[i].Cluster < 0 || records[i].Cluster >= opts.NClusters {
			t.Errorf("records[%d].Cluster = %d", i, records[i].Cluster)
		}
	}

	// The two synthetic populations should land in different clusters.
	if records[0].Cluster == records[39].Cluster {
		t.Error("high-value and lapsed populations share a cluster")
	}

	// Serving-path prediction agrees with the training assignment.
	for i := range records {
		got := model.Predict(records[i].Recency, records[i].Frequency, records[i].Monetary)
		if got != records[i].Cluster {
			t.Errorf("Predict(%s) = %d, want training cluster %d", records[i].CustomerID, got, records[i].Cluster)
		}
	}
}

func TestFitDeterministic(t *testing.T) {
	t.Parallel()

	opts := FitOptions{
		NClusters:    2,
		Epochs:       10,
		BatchSize:    16,
		LearningRate: 0.001,
		Restarts:     3,
		Seed:         42,
	}

	first := syntheticRecords()
	if _, err := Fit(first, opts); err != nil {
		t.Fatal(err)
	}

	second := syntheticRecords()
	if _, err := Fit(second, opts); err != nil {
		t.Fatal(err)
	}

	for i := range first {
		if first[i].Cluster != second[i].Cluster {
			t.Fatalf("records[%d] cluster differs between identical runs: %d vs %d",
				i, first[i].Cluster, second[i].Cluster)
		}
	}
}
