// Shelfwise - Retail RFM Segmentation and Recommendation Engine
// Copyright 2026 Shelfwise Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

// Package recommend resolves per-customer product recommendations from
// a trained artifact bundle.
//
// Resolution branches on what the bundle knows about the customer:
// unknown customers get popularity-only results, known customers get
// cluster-based recommendations filtered against their purchase
// history, and a cluster whose popularity table is exhausted by that
// filtering falls back to global popularity. A panic anywhere in
// cluster processing is contained and degrades the response to the
// popularity fallback instead of failing the request.
package recommend

import (
	"github.com/shelfwise/shelfwise/internal/artifacts"
	"github.com/shelfwise/shelfwise/internal/logging"
	"github.com/shelfwise/shelfwise/internal/metrics"
	"github.com/shelfwise/shelfwise/internal/rfm"
	"github.com/shelfwise/shelfwise/internal/segment"
)

// Source label strings returned in recommendation_source. These are
// part of the API contract; clients match on them.
const (
	SourcePopularityOnly   = "popularity-only (customer not found)"
	SourceHybrid           = "hybrid (cluster-based, purchase-filtered)"
	SourceClusterExhausted = "popularity-based (cluster exhausted)"
	SourceClusterError     = "error during cluster processing; falling back to popularity"
)

// Result is one customer's recommendation response.
type Result struct {
	CustomerID                    string   `json:"customer_id"`
	Cluster                       int      `json:"cluster"`
	RecommendationSource          string   `json:"recommendation_source"`
	ClusterBasedRecommendations   []string `json:"cluster_based_recommendations"`
	OverallPopularRecommendations []string `json:"overall_popular_recommendations"`
	RScore                        int      `json:"r_score"`
	FScore                        int      `json:"f_score"`
	MScore                        int      `json:"m_score"`
	RFMSegmentLabel               string   `json:"rfm_segment_label"`
	PurchasedProducts             []string `json:"purchased_products"`
}

// Options bounds the recommendation list sizes.
type Options struct {
	TopNCluster int
	TopNOverall int
}

// Resolver answers recommendation queries against one immutable bundle.
// It is safe for concurrent use: all state is read-only after
// construction. Swapping in a new bundle means building a new Resolver.
type Resolver struct {
	bundle *artifacts.Bundle

	// model is the stored scaler/encoder/k-means pipeline, re-applied
	// at serving time to assign clusters. Nil when the bundle carries
	// no model components; the training assignment is served instead.
	model *segment.Model

	// purchased indexes each customer's purchase history as a set for
	// O(1) filtering.
	purchased map[string]map[string]bool
}

// NewResolver builds a resolver and its lookup indexes from a bundle.
func NewResolver(b *artifacts.Bundle) *Resolver {
	purchased := make(map[string]map[string]bool, len(b.Purchases))
	for id, products := range b.Purchases {
		set := make(map[string]bool, len(products))
		for _, p := range products {
			set[p] = true
		}
		purchased[id] = set
	}

	r := &Resolver{bundle: b, purchased: purchased}
	if b.Scaler != nil && b.Encoder != nil && b.Clusters != nil {
		r.model = &segment.Model{Scaler: b.Scaler, Encoder: b.Encoder, Clusters: b.Clusters}
	}
	return r
}

// Bundle returns the bundle this resolver serves from.
func (r *Resolver) Bundle() *artifacts.Bundle {
	return r.bundle
}

// Recommend resolves recommendations for a customer. It never returns
// an error: unknown customers and internal processing failures both
// degrade to popularity-based results.
func (r *Resolver) Recommend(customerID string, opts Options) *Result {
	rec := r.bundle.Record(customerID)
	if rec == nil {
		result := &Result{
			CustomerID:                    customerID,
			Cluster:                       -1,
			RecommendationSource:          SourcePopularityOnly,
			ClusterBasedRecommendations:   []string{},
			OverallPopularRecommendations: topN(r.bundle.OverallTop, opts.TopNOverall),
			RFMSegmentLabel:               "N/A",
			PurchasedProducts:             []string{},
		}
		metrics.RecommendationsTotal.WithLabelValues(result.RecommendationSource).Inc()
		return result
	}

	result := &Result{
		CustomerID:      customerID,
		RScore:          rec.RScore,
		FScore:          rec.FScore,
		MScore:          rec.MScore,
		RFMSegmentLabel: rec.Segment,
	}

	result.PurchasedProducts = r.bundle.Purchases[customerID]
	if result.PurchasedProducts == nil {
		result.PurchasedProducts = []string{}
	}

	cluster, clusterRecs, overallRecs, source := r.resolveCluster(rec, opts)
	result.Cluster = cluster
	result.ClusterBasedRecommendations = clusterRecs
	result.OverallPopularRecommendations = overallRecs
	result.RecommendationSource = source

	metrics.RecommendationsTotal.WithLabelValues(source).Inc()
	return result
}

// testHookClusterResolve lets tests inject a failure into cluster
// processing. Nil outside tests.
var testHookClusterResolve func()

// resolveCluster assigns the customer's cluster through the stored
// model pipeline and produces the cluster-based and overall lists. Any
// panic in here is contained: the response degrades to unfiltered
// popularity rather than failing the request.
func (r *Resolver) resolveCluster(rec *rfm.Record, opts Options) (cluster int, clusterRecs, overallRecs []string, source string) {
	defer func() {
		if p := recover(); p != nil {
			metrics.RecommendationPanics.Inc()
			logging.Error().
				Str("customer_id", rec.CustomerID).
				Interface("panic", p).
				Msg("recovered panic during cluster recommendation processing")

			// Cluster assignment may be what failed; report the
			// sentinel rather than a value we could not compute.
			cluster = -1
			clusterRecs = []string{}
			overallRecs = topN(r.bundle.OverallTop, opts.TopNOverall)
			source = SourceClusterError
		}
	}()

	if testHookClusterResolve != nil {
		testHookClusterResolve()
	}

	// The pipeline is deterministic, so re-applying the stored model
	// reproduces the cluster the customer received during training.
	cluster = rec.Cluster
	if r.model != nil {
		cluster = r.model.Predict(rec.Recency, rec.Frequency, rec.Monetary)
	}

	history := r.purchased[rec.CustomerID]

	clusterRecs = make([]string, 0, opts.TopNCluster)
	for _, product := range r.bundle.ClusterTop[cluster] {
		if len(clusterRecs) >= opts.TopNCluster {
			break
		}
		if history[product] {
			continue
		}
		clusterRecs = append(clusterRecs, product)
	}

	// Overall list excludes the customer's purchases and anything
	// already recommended from the cluster table.
	seen := make(map[string]bool, len(clusterRecs))
	for _, p := range clusterRecs {
		seen[p] = true
	}
	overallRecs = make([]string, 0, opts.TopNOverall)
	for _, product := range r.bundle.OverallTop {
		if len(overallRecs) >= opts.TopNOverall {
			break
		}
		if history[product] || seen[product] {
			continue
		}
		overallRecs = append(overallRecs, product)
	}

	if len(clusterRecs) == 0 {
		return cluster, clusterRecs, overallRecs, SourceClusterExhausted
	}
	return cluster, clusterRecs, overallRecs, SourceHybrid
}

// topN returns the first n items, or all of them when n exceeds the
// list. The result is always a fresh slice, never nil.
func topN(items []string, n int) []string {
	if n > len(items) {
		n = len(items)
	}
	if n < 0 {
		n = 0
	}
	out := make([]string, n)
	copy(out, items[:n])
	return out
}
