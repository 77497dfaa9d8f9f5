// Shelfwise - Retail RFM Segmentation and Recommendation Engine
// Copyright 2026 Shelfwise Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

// Package api implements the HTTP serving layer: recommendation and
// RFM lookups, popularity tables, artifact management, and health
// probes. Handlers read from an atomically swappable resolver so
// artifact reloads never block or corrupt in-flight requests.
package api

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shelfwise/shelfwise/internal/artifacts"
	"github.com/shelfwise/shelfwise/internal/config"
	"github.com/shelfwise/shelfwise/internal/logging"
	"github.com/shelfwise/shelfwise/internal/metrics"
	"github.com/shelfwise/shelfwise/internal/recommend"
	"github.com/shelfwise/shelfwise/internal/rfm"
	"github.com/shelfwise/shelfwise/internal/validation"
)

// Handler holds the serving state shared by all endpoints.
type Handler struct {
	resolver atomic.Pointer[recommend.Resolver]
	store    *artifacts.Store
	defaults config.RecommendConfig
}

// NewHandler builds a handler serving from the given resolver. resolver
// may be nil; the readiness probe and data endpoints then report
// unavailability until a successful reload.
func NewHandler(store *artifacts.Store, resolver *recommend.Resolver, defaults config.RecommendConfig) *Handler {
	h := &Handler{store: store, defaults: defaults}
	if resolver != nil {
		h.resolver.Store(resolver)
		metrics.ArtifactVersion.Set(float64(resolver.Bundle().Version))
	}
	return h
}

// Resolver returns the currently serving resolver, or nil when no
// bundle has been loaded yet.
func (h *Handler) Resolver() *recommend.Resolver {
	return h.resolver.Load()
}

// recommendParams bounds the recommendation list size parameters.
type recommendParams struct {
	TopNCluster int `validate:"min=0,max=100"`
	TopNOverall int `validate:"min=0,max=100"`
}

// handleRecommendations serves GET /api/v1/recommendations/{customerID}.
func (h *Handler) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	resolver := h.Resolver()
	if resolver == nil {
		respondError(w, http.StatusServiceUnavailable, "ARTIFACTS_ERROR",
			"no artifact bundle loaded", nil)
		return
	}

	customerID := chi.URLParam(r, "customerID")
	if err := validateCustomerID(customerID); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	topNCluster, err := queryInt(r, "top_n_cluster", h.defaults.TopNCluster)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	topNOverall, err := queryInt(r, "top_n_overall", h.defaults.TopNOverall)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	params := recommendParams{TopNCluster: topNCluster, TopNOverall: topNOverall}
	if verr := validation.ValidateStruct(&params); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	result := resolver.Recommend(customerID, recommend.Options{
		TopNCluster: topNCluster,
		TopNOverall: topNOverall,
	})

	logging.Debug().
		Str("customer_id", sanitizeLogValue(customerID)).
		Str("source", result.RecommendationSource).
		Msg("recommendation served")

	respondJSON(w, http.StatusOK, result, start)
}

// customerRFMResponse is the payload for RFM lookups.
type customerRFMResponse struct {
	CustomerID      string  `json:"customer_id"`
	Recency         int     `json:"recency"`
	Frequency       int     `json:"frequency"`
	Monetary        float64 `json:"monetary"`
	RScore          int     `json:"r_score"`
	FScore          int     `json:"f_score"`
	MScore          int     `json:"m_score"`
	RFMSegmentLabel string  `json:"rfm_segment_label"`
	Cluster         int     `json:"cluster"`
}

// handleCustomerRFM serves GET /api/v1/customers/{customerID}/rfm.
func (h *Handler) handleCustomerRFM(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	resolver := h.Resolver()
	if resolver == nil {
		respondError(w, http.StatusServiceUnavailable, "ARTIFACTS_ERROR",
			"no artifact bundle loaded", nil)
		return
	}

	customerID := chi.URLParam(r, "customerID")
	if err := validateCustomerID(customerID); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	rec := resolver.Bundle().Record(customerID)
	if rec == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND",
			"customer not found in trained dataset",
			map[string]interface{}{"customer_id": sanitizeLogValue(customerID)})
		return
	}

	respondJSON(w, http.StatusOK, customerRFMResponse{
		CustomerID:      rec.CustomerID,
		Recency:         rec.Recency,
		Frequency:       rec.Frequency,
		Monetary:        rec.Monetary,
		RScore:          rec.RScore,
		FScore:          rec.FScore,
		MScore:          rec.MScore,
		RFMSegmentLabel: rec.Segment,
		Cluster:         rec.Cluster,
	}, start)
}

// segmentCount pairs a segment label with its customer count.
type segmentCount struct {
	Segment   string `json:"segment"`
	Customers int    `json:"customers"`
}

// handleSegments serves GET /api/v1/segments: customer counts per RFM
// segment in rule priority order.
func (h *Handler) handleSegments(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	resolver := h.Resolver()
	if resolver == nil {
		respondError(w, http.StatusServiceUnavailable, "ARTIFACTS_ERROR",
			"no artifact bundle loaded", nil)
		return
	}

	bundle := resolver.Bundle()
	counts := make(map[string]int)
	for i := range bundle.Records {
		counts[bundle.Records[i].Segment]++
	}

	segments := make([]segmentCount, 0, len(counts))
	for _, name := range rfm.SegmentNames() {
		if n, ok := counts[name]; ok {
			segments = append(segments, segmentCount{Segment: name, Customers: n})
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"segments":        segments,
		"total_customers": len(bundle.Records),
	}, start)
}

// handlePopular serves GET /api/v1/popular: the precomputed popularity
// tables, globally and per cluster.
func (h *Handler) handlePopular(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	resolver := h.Resolver()
	if resolver == nil {
		respondError(w, http.StatusServiceUnavailable, "ARTIFACTS_ERROR",
			"no artifact bundle loaded", nil)
		return
	}

	bundle := resolver.Bundle()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"overall":  bundle.OverallTop,
		"clusters": bundle.ClusterTop,
	}, start)
}

// artifactStatus is the payload for artifact status queries.
type artifactStatus struct {
	Version       int       `json:"version"`
	TrainedAt     time.Time `json:"trained_at"`
	ReferenceDate time.Time `json:"reference_date"`
	Customers     int       `json:"customers"`
	Clusters      int       `json:"clusters"`
}

// handleArtifactsStatus serves GET /api/v1/artifacts/status.
func (h *Handler) handleArtifactsStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	resolver := h.Resolver()
	if resolver == nil {
		respondError(w, http.StatusServiceUnavailable, "ARTIFACTS_ERROR",
			"no artifact bundle loaded", nil)
		return
	}

	b := resolver.Bundle()
	respondJSON(w, http.StatusOK, artifactStatus{
		Version:       b.Version,
		TrainedAt:     b.TrainedAt,
		ReferenceDate: b.ReferenceDate,
		Customers:     len(b.Records),
		Clusters:      len(b.ClusterTop),
	}, start)
}

// handleArtifactsReload serves POST /api/v1/artifacts/reload: loads the
// latest bundle from the store and swaps it in atomically. On failure
// the currently serving bundle stays in place.
func (h *Handler) handleArtifactsReload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	bundle, err := h.store.LoadBundle(0)
	if err != nil {
		metrics.ArtifactReloads.WithLabelValues("failure").Inc()
		logging.Error().Err(err).Msg("artifact reload failed")
		respondError(w, http.StatusBadGateway, "ARTIFACTS_ERROR",
			"failed to load artifact bundle: "+err.Error(), nil)
		return
	}

	h.resolver.Store(recommend.NewResolver(bundle))
	metrics.ArtifactReloads.WithLabelValues("success").Inc()
	metrics.ArtifactVersion.Set(float64(bundle.Version))

	logging.Info().Int("version", bundle.Version).Msg("artifact bundle reloaded")

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"version":   bundle.Version,
		"customers": len(bundle.Records),
	}, start)
}

// handleHealthLive serves GET /health/live.
func (h *Handler) handleHealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "alive"}, time.Now())
}

// handleHealthReady serves GET /health/ready: ready once a bundle is
// loaded.
func (h *Handler) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	if h.Resolver() == nil {
		respondError(w, http.StatusServiceUnavailable, "ARTIFACTS_ERROR",
			"no artifact bundle loaded", nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"}, time.Now())
}
