// Shelfwise - Retail RFM Segmentation and Recommendation Engine
// Copyright 2026 Shelfwise Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package segment

import "math"

// Scaler standardizes features to zero mean and unit variance. Fields
// are exported for gob serialization in the artifact store.
type Scaler struct {
	Mean []float64
	Std  []float64
}

// FitScaler computes per-column mean and population standard deviation.
// Columns with zero variance get Std 1 so transforming them is a no-op
// shift rather than a division by zero.
func FitScaler(features [][]float64) *Scaler {
	if len(features) == 0 {
		return &Scaler{}
	}
	cols := len(features[0])
	s := &Scaler{
		Mean: make([]float64, cols),
		Std:  make([]float64, cols),
	}

	n := float64(len(features))
	for _, row := range features {
		for j, v := range row {
			s.Mean[j] += v
		}
	}
	for j := range s.Mean {
		s.Mean[j] /= n
	}

	for _, row := range features {
		for j, v := range row {
			d := v - s.Mean[j]
			s.Std[j] += d * d
		}
	}
	for j := range s.Std {
		s.Std[j] = math.Sqrt(s.Std[j] / n)
		if s.Std[j] == 0 {
			s.Std[j] = 1
		}
	}

	return s
}

// Transform standardizes a feature matrix, returning a new matrix.
func (s *Scaler) Transform(features [][]float64) [][]float64 {
	out := make([][]float64, len(features))
	for i, row := range features {
		out[i] = s.TransformRow(row)
	}
	return out
}

// TransformRow standardizes a single feature vector.
func (s *Scaler) TransformRow(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out
}
