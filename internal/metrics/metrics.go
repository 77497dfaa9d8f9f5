// Shelfwise - Retail RFM Segmentation and Recommendation Engine
// Copyright 2026 Shelfwise Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

// Package metrics defines the Prometheus instrumentation for the
// serving layer and the training pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request latency by route and status.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "shelfwise",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"method", "route", "status"})

	// RecommendationsTotal counts served recommendations by source
	// branch (popularity-only, hybrid, fallback).
	RecommendationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shelfwise",
		Subsystem: "recommend",
		Name:      "recommendations_total",
		Help:      "Recommendation responses served, labeled by source branch.",
	}, []string{"source"})

	// RecommendationPanics counts panics contained during cluster-based
	// recommendation resolution.
	RecommendationPanics = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shelfwise",
		Subsystem: "recommend",
		Name:      "panics_recovered_total",
		Help:      "Panics recovered during recommendation resolution.",
	})

	// ArtifactReloads counts artifact bundle reload attempts by outcome.
	ArtifactReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shelfwise",
		Subsystem: "artifacts",
		Name:      "reloads_total",
		Help:      "Artifact bundle reload attempts, labeled success or failure.",
	}, []string{"outcome"})

	// ArtifactVersion reports the currently served bundle version.
	ArtifactVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "shelfwise",
		Subsystem: "artifacts",
		Name:      "bundle_version",
		Help:      "Version number of the artifact bundle currently serving.",
	})

	// TrainingDuration records offline training pipeline runtime.
	TrainingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "shelfwise",
		Subsystem: "training",
		Name:      "duration_seconds",
		Help:      "End-to-end training pipeline duration in seconds.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})
)
