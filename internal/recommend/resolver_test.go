// Shelfwise - Retail RFM Segmentation and Recommendation Engine
// Copyright 2026 Shelfwise Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package recommend

import (
	"reflect"
	"testing"
	"time"

	"github.com/shelfwise/shelfwise/internal/artifacts"
	"github.com/shelfwise/shelfwise/internal/dataset"
	"github.com/shelfwise/shelfwise/internal/rfm"
	"github.com/shelfwise/shelfwise/internal/segment"
)

// testBundle builds a bundle by hand so branch behavior is exact.
// Records must stay sorted by customer ID.
func testBundle() *artifacts.Bundle {
	return &artifacts.Bundle{
		Version: 1,
		Records: []rfm.Record{
			{CustomerID: "CU-100", Recency: 5, Frequency: 12, Monetary: 3000,
				RScore: 5, FScore: 5, MScore: 5, Segment: "Champions", Cluster: 0},
			{CustomerID: "CU-200", Recency: 400, Frequency: 1, Monetary: 40,
				RScore: 1, FScore: 1, MScore: 1, Segment: "At Risk", Cluster: 1},
			{CustomerID: "CU-300", Recency: 90, Frequency: 4, Monetary: 900,
				RScore: 3, FScore: 3, MScore: 4, Segment: "Potential Loyalists", Cluster: 0},
		},
		Purchases: map[string][]string{
			"CU-100": {"Desk Lamp", "Stapler"},
			"CU-200": {"Binder", "Label Maker", "Paper Trimmer"},
			"CU-300": {"Monitor Stand"},
		},
		ClusterTop: map[int][]string{
			0: {"Stapler", "Monitor Stand", "Desk Lamp", "Whiteboard", "Ink Cartridge"},
			1: {"Binder", "Label Maker", "Paper Trimmer"},
		},
		OverallTop: []string{
			"Stapler", "Binder", "Desk Lamp", "Monitor Stand", "Whiteboard",
			"Label Maker", "Ink Cartridge", "Paper Trimmer",
		},
	}
}

func defaultOptions() Options {
	return Options{TopNCluster: 5, TopNOverall: 5}
}

func TestRecommendUnknownCustomer(t *testing.T) {
	t.Parallel()

	r := NewResolver(testBundle())
	got := r.Recommend("NOPE-00000", defaultOptions())

	if got.RecommendationSource != SourcePopularityOnly {
		t.Errorf("source = %q, want %q", got.RecommendationSource, SourcePopularityOnly)
	}
	if got.Cluster != -1 {
		t.Errorf("Cluster = %d, want -1", got.Cluster)
	}
	if got.RScore != 0 || got.FScore != 0 || got.MScore != 0 {
		t.Errorf("scores = %d/%d/%d, want 0/0/0", got.RScore, got.FScore, got.MScore)
	}
	if got.RFMSegmentLabel != "N/A" {
		t.Errorf("segment = %q, want N/A", got.RFMSegmentLabel)
	}
	if len(got.ClusterBasedRecommendations) != 0 {
		t.Errorf("cluster recommendations = %v, want empty", got.ClusterBasedRecommendations)
	}
	if len(got.PurchasedProducts) != 0 {
		t.Errorf("purchased = %v, want empty", got.PurchasedProducts)
	}

	want := []string{"Stapler", "Binder", "Desk Lamp", "Monitor Stand", "Whiteboard"}
	if !reflect.DeepEqual(got.OverallPopularRecommendations, want) {
		t.Errorf("overall = %v, want %v", got.OverallPopularRecommendations, want)
	}
}

func TestRecommendHybrid(t *testing.T) {
	t.Parallel()

	r := NewResolver(testBundle())
	got := r.Recommend("CU-100", defaultOptions())

	if got.RecommendationSource != SourceHybrid {
		t.Errorf("source = %q, want %q", got.RecommendationSource, SourceHybrid)
	}
	if got.Cluster != 0 {
		t.Errorf("Cluster = %d, want 0", got.Cluster)
	}
	if got.RScore != 5 || got.FScore != 5 || got.MScore != 5 {
		t.Errorf("scores = %d/%d/%d, want 5/5/5", got.RScore, got.FScore, got.MScore)
	}
	if got.RFMSegmentLabel != "Champions" {
		t.Errorf("segment = %q", got.RFMSegmentLabel)
	}

	// Cluster top minus purchased (Stapler, Desk Lamp).
	wantCluster := []string{"Monitor Stand", "Whiteboard", "Ink Cartridge"}
	if !reflect.DeepEqual(got.ClusterBasedRecommendations, wantCluster) {
		t.Errorf("cluster recs = %v, want %v", got.ClusterBasedRecommendations, wantCluster)
	}

	// Overall minus purchased and minus cluster recommendations.
	wantOverall := []string{"Binder", "Label Maker", "Paper Trimmer"}
	if !reflect.DeepEqual(got.OverallPopularRecommendations, wantOverall) {
		t.Errorf("overall recs = %v, want %v", got.OverallPopularRecommendations, wantOverall)
	}

	if !reflect.DeepEqual(got.PurchasedProducts, []string{"Desk Lamp", "Stapler"}) {
		t.Errorf("purchased = %v", got.PurchasedProducts)
	}
}

func TestRecommendNeverRecommendsPurchased(t *testing.T) {
	t.Parallel()

	b := testBundle()
	r := NewResolver(b)

	for id, purchased := range b.Purchases {
		got := r.Recommend(id, defaultOptions())
		owned := make(map[string]bool)
		for _, p := range purchased {
			owned[p] = true
		}
		for _, p := range got.ClusterBasedRecommendations {
			if owned[p] {
				t.Errorf("customer %s recommended owned product %q in cluster list", id, p)
			}
		}
		for _, p := range got.OverallPopularRecommendations {
			if owned[p] {
				t.Errorf("customer %s recommended owned product %q in overall list", id, p)
			}
		}
	}
}

func TestRecommendClusterExhausted(t *testing.T) {
	t.Parallel()

	// CU-200 has purchased every product in its cluster's table.
	r := NewResolver(testBundle())
	got := r.Recommend("CU-200", defaultOptions())

	if got.RecommendationSource != SourceClusterExhausted {
		t.Errorf("source = %q, want %q", got.RecommendationSource, SourceClusterExhausted)
	}
	if len(got.ClusterBasedRecommendations) != 0 {
		t.Errorf("cluster recs = %v, want empty", got.ClusterBasedRecommendations)
	}
	// Overall recommendations still exclude the purchase history.
	wantOverall := []string{"Stapler", "Desk Lamp", "Monitor Stand", "Whiteboard", "Ink Cartridge"}
	if !reflect.DeepEqual(got.OverallPopularRecommendations, wantOverall) {
		t.Errorf("overall recs = %v, want %v", got.OverallPopularRecommendations, wantOverall)
	}
}

func TestRecommendZeroTopNCluster(t *testing.T) {
	t.Parallel()

	r := NewResolver(testBundle())
	got := r.Recommend("CU-100", Options{TopNCluster: 0, TopNOverall: 3})

	if got.RecommendationSource != SourceClusterExhausted {
		t.Errorf("source = %q, want %q", got.RecommendationSource, SourceClusterExhausted)
	}
	if len(got.ClusterBasedRecommendations) != 0 {
		t.Errorf("cluster recs = %v, want empty", got.ClusterBasedRecommendations)
	}
	if len(got.OverallPopularRecommendations) != 3 {
		t.Errorf("overall recs length = %d, want 3", len(got.OverallPopularRecommendations))
	}
}

func TestRecommendTopNBounds(t *testing.T) {
	t.Parallel()

	r := NewResolver(testBundle())

	// Requesting more than exists returns what exists, no padding.
	got := r.Recommend("CU-300", Options{TopNCluster: 50, TopNOverall: 50})

	wantCluster := []string{"Stapler", "Desk Lamp", "Whiteboard", "Ink Cartridge"}
	if !reflect.DeepEqual(got.ClusterBasedRecommendations, wantCluster) {
		t.Errorf("cluster recs = %v, want %v", got.ClusterBasedRecommendations, wantCluster)
	}

	// Overall is what remains after history and cluster recommendations.
	wantOverall := []string{"Binder", "Label Maker", "Paper Trimmer"}
	if !reflect.DeepEqual(got.OverallPopularRecommendations, wantOverall) {
		t.Errorf("overall recs = %v, want %v", got.OverallPopularRecommendations, wantOverall)
	}
}

func TestRecommendPanicFallsBackToPopularity(t *testing.T) {
	testHookClusterResolve = func() { panic("synthetic cluster failure") }
	defer func() { testHookClusterResolve = nil }()

	r := NewResolver(testBundle())
	got := r.Recommend("CU-100", defaultOptions())

	if got.RecommendationSource != SourceClusterError {
		t.Errorf("source = %q, want %q", got.RecommendationSource, SourceClusterError)
	}
	if len(got.ClusterBasedRecommendations) != 0 {
		t.Errorf("cluster recs = %v, want empty after contained panic", got.ClusterBasedRecommendations)
	}
	if len(got.OverallPopularRecommendations) != 5 {
		t.Errorf("overall recs length = %d, want 5", len(got.OverallPopularRecommendations))
	}
	// Cluster falls back to the sentinel; RFM fields survive because
	// the record lookup already succeeded.
	if got.Cluster != -1 {
		t.Errorf("Cluster = %d, want -1 after contained panic", got.Cluster)
	}
	if got.RFMSegmentLabel != "Champions" || got.RScore != 5 {
		t.Errorf("customer fields lost in fallback: segment=%q r=%d", got.RFMSegmentLabel, got.RScore)
	}
}

func TestRecommendModelBackedCluster(t *testing.T) {
	t.Parallel()

	// Train a real model and check the serving path reproduces each
	// customer's training-time cluster through scaler, encoder, and
	// k-means rather than a stored shortcut.
	records := []rfm.Record{
		{CustomerID: "CU-1", Recency: 3, Frequency: 15, Monetary: 4000},
		{CustomerID: "CU-2", Recency: 8, Frequency: 11, Monetary: 2500},
		{CustomerID: "CU-3", Recency: 350, Frequency: 1, Monetary: 30},
		{CustomerID: "CU-4", Recency: 420, Frequency: 2, Monetary: 75},
	}
	model, err := segment.Fit(records, segment.FitOptions{
		NClusters:    2,
		Epochs:       10,
		BatchSize:    4,
		LearningRate: 0.001,
		Restarts:     3,
		Seed:         42,
	})
	if err != nil {
		t.Fatal(err)
	}

	orders := []dataset.Order{
		{CustomerID: "CU-1", OrderID: "O-1", ProductName: "Stapler"},
		{CustomerID: "CU-2", OrderID: "O-2", ProductName: "Binder"},
		{CustomerID: "CU-3", OrderID: "O-3", ProductName: "Desk Lamp"},
		{CustomerID: "CU-4", OrderID: "O-4", ProductName: "Stapler"},
	}
	bundle, err := artifacts.Build(records, model, orders, time.Now(), artifacts.BuildOptions{
		ClusterTopSize: 20,
		OverallTopSize: 15,
	})
	if err != nil {
		t.Fatal(err)
	}

	r := NewResolver(bundle)
	for i := range records {
		got := r.Recommend(records[i].CustomerID, defaultOptions())
		if got.Cluster != records[i].Cluster {
			t.Errorf("Recommend(%s).Cluster = %d, want training cluster %d",
				records[i].CustomerID, got.Cluster, records[i].Cluster)
		}
	}
}

func TestRecommendUnknownClusterID(t *testing.T) {
	t.Parallel()

	// A record pointing at a cluster with no popularity table behaves
	// like an exhausted cluster rather than failing.
	b := testBundle()
	b.Records[0].Cluster = 99
	r := NewResolver(b)

	got := r.Recommend("CU-100", defaultOptions())
	if got.RecommendationSource != SourceClusterExhausted {
		t.Errorf("source = %q, want %q", got.RecommendationSource, SourceClusterExhausted)
	}
}
