// Shelfwise - Retail RFM Segmentation and Recommendation Engine
// Copyright 2026 Shelfwise Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package segment

import (
	"fmt"
	"math"
	"math/rand"
)

// KMeans holds fitted cluster centroids. Fields are exported for gob
// serialization in the artifact store.
type KMeans struct {
	Centroids [][]float64

	// Inertia is the sum of squared distances from each training point
	// to its assigned centroid.
	Inertia float64
}

// maxKMeansIterations bounds Lloyd's algorithm per restart.
const maxKMeansIterations = 300

// FitKMeans clusters points into k groups, running restarts independent
// k-means++ initializations and keeping the run with the lowest inertia.
func FitKMeans(points [][]float64, k, restarts int, rng *rand.Rand) (*KMeans, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("cannot cluster an empty point set")
	}
	if k < 1 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if k > len(points) {
		return nil, fmt.Errorf("k=%d exceeds point count %d", k, len(points))
	}
	if restarts < 1 {
		restarts = 1
	}

	best := &KMeans{Inertia: math.Inf(1)}
	for r := 0; r < restarts; r++ {
		candidate := lloyd(points, k, rng)
		if candidate.Inertia < best.Inertia {
			best = candidate
		}
	}

	return best, nil
}

// lloyd runs one k-means++ initialization followed by Lloyd iterations.
func lloyd(points [][]float64, k int, rng *rand.Rand) *KMeans {
	centroids := seedCentroids(points, k, rng)
	assign := make([]int, len(points))

	for iter := 0; iter < maxKMeansIterations; iter++ {
		changed := false
		for i, p := range points {
			c := nearestCentroid(centroids, p)
			if c != assign[i] {
				assign[i] = c
				changed = true
			}
		}
		if iter > 0 && !changed {
			break
		}

		// Recompute centroids from assignments.
		dim := len(points[0])
		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, p := range points {
			c := assign[i]
			counts[c]++
			for j, v := range p {
				sums[c][j] += v
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				// Re-seed an empty cluster with the point farthest from
				// its current centroid.
				centroids[c] = append([]float64(nil), farthestPoint(points, centroids, assign)...)
				continue
			}
			for j := range centroids[c] {
				centroids[c][j] = sums[c][j] / float64(counts[c])
			}
		}
	}

	var inertia float64
	for i, p := range points {
		inertia += squaredDistance(p, centroids[assign[i]])
	}

	return &KMeans{Centroids: centroids, Inertia: inertia}
}

// seedCentroids picks k initial centroids with k-means++: the first is
// uniform, each subsequent one is sampled proportional to squared
// distance from the nearest already-chosen centroid.
func seedCentroids(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	first := points[rng.Intn(len(points))]
	centroids = append(centroids, append([]float64(nil), first...))

	dists := make([]float64, len(points))
	for len(centroids) < k {
		var total float64
		for i, p := range points {
			d := squaredDistance(p, centroids[len(centroids)-1])
			if len(centroids) == 1 || d < dists[i] {
				dists[i] = d
			}
			total += dists[i]
		}

		var next int
		if total == 0 {
			next = rng.Intn(len(points))
		} else {
			target := rng.Float64() * total
			var cum float64
			for i, d := range dists {
				cum += d
				if cum >= target {
					next = i
					break
				}
			}
		}
		centroids = append(centroids, append([]float64(nil), points[next]...))
	}

	return centroids
}

// Predict returns the index of the nearest centroid.
func (km *KMeans) Predict(point []float64) int {
	return nearestCentroid(km.Centroids, point)
}

func nearestCentroid(centroids [][]float64, p []float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := squaredDistance(p, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func farthestPoint(points, centroids [][]float64, assign []int) []float64 {
	best, bestDist := 0, -1.0
	for i, p := range points {
		if d := squaredDistance(p, centroids[assign[i]]); d > bestDist {
			best, bestDist = i, d
		}
	}
	return points[best]
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
