// Shelfwise - Retail RFM Segmentation and Recommendation Engine
// Copyright 2026 Shelfwise Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package rfm

import (
	"fmt"
	"math"
	"sort"
)

// ScoreRecords assigns quantile-based R/F/M scores and segment labels
// in place. bins is the requested number of score levels; when a metric
// has too few distinct quantile edges, duplicate edges collapse and that
// metric is scored on fewer levels rather than failing.
//
// Recency is scored in reverse (most recent purchase gets the highest
// score). Frequency and Monetary are scored ascending.
func ScoreRecords(records []Record, bins int) error {
	if len(records) == 0 {
		return fmt.Errorf("cannot score an empty record set")
	}
	if bins < 2 {
		return fmt.Errorf("bins must be at least 2, got %d", bins)
	}

	recency := make([]float64, len(records))
	frequency := make([]float64, len(records))
	monetary := make([]float64, len(records))
	for i := range records {
		recency[i] = float64(records[i].Recency)
		frequency[i] = float64(records[i].Frequency)
		monetary[i] = records[i].Monetary
	}

	rEdges := quantileEdges(recency, bins)
	fEdges := quantileEdges(frequency, bins)
	mEdges := quantileEdges(monetary, bins)

	rLevels := len(rEdges) + 1
	for i := range records {
		// Reverse labels: lowest recency bin gets the highest score.
		records[i].RScore = rLevels + 1 - (quantileBin(rEdges, recency[i]) + 1)
		records[i].FScore = quantileBin(fEdges, frequency[i]) + 1
		records[i].MScore = quantileBin(mEdges, monetary[i]) + 1
		records[i].Segment = SegmentLabel(records[i].RScore, records[i].FScore, records[i].MScore)
	}

	return nil
}

// quantileEdges computes the interior quantile cut points for the
// requested bin count, using linear interpolation between order
// statistics. Duplicate edges are dropped, so the result may describe
// fewer than bins levels.
func quantileEdges(values []float64, bins int) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	edges := make([]float64, 0, bins-1)
	for i := 1; i < bins; i++ {
		q := float64(i) / float64(bins)
		e := quantile(sorted, q)
		if len(edges) == 0 || e > edges[len(edges)-1] {
			edges = append(edges, e)
		}
	}

	// An interior edge equal to the minimum would create an empty first
	// bin; drop it as a duplicate of the lower bound.
	for len(edges) > 0 && edges[0] <= sorted[0] {
		edges = edges[1:]
	}

	return edges
}

// quantileBin returns the zero-based bin index for v given interior
// edges. Intervals are right-closed: v lands in bin i when
// edges[i-1] < v <= edges[i].
func quantileBin(edges []float64, v float64) int {
	return sort.SearchFloat64s(edges, v)
}

// quantile computes the q-th quantile of sorted values with linear
// interpolation.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	h := q * float64(len(sorted)-1)
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
