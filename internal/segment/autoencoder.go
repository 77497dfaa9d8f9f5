// Shelfwise - Retail RFM Segmentation and Recommendation Engine
// Copyright 2026 Shelfwise Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package segment

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/shelfwise/shelfwise/internal/logging"
)

// Autoencoder is a small fully connected autoencoder. Hidden layers use
// ReLU, the output layer is linear, and training minimizes mean squared
// reconstruction error with Adam. Fields are exported for gob
// serialization in the artifact store.
type Autoencoder struct {
	// Sizes holds layer widths, input through output, e.g.
	// [3 8 4 2 4 8 3]. The bottleneck sits at Sizes[len(Sizes)/2].
	Sizes []int

	// Weights[l][i][j] connects layer l unit j to layer l+1 unit i.
	Weights [][][]float64

	// Biases[l][i] is the bias of layer l+1 unit i.
	Biases [][]float64
}

// EncoderSizes is the layer layout used for RFM embedding: 3 inputs
// compressed through 8 and 4 to a 2-wide bottleneck, then mirrored back.
var EncoderSizes = []int{3, 8, 4, 2, 4, 8, 3}

// TrainOptions controls autoencoder training.
type TrainOptions struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
}

// adamState holds first and second moment estimates per parameter.
type adamState struct {
	mW, vW [][][]float64
	mB, vB [][]float64
	step   int
}

const (
	adamBeta1 = 0.9
	adamBeta2 = 0.999
	adamEps   = 1e-8
)

// NewAutoencoder initializes a network with Glorot uniform weights
// drawn from rng and zero biases.
func NewAutoencoder(sizes []int, rng *rand.Rand) *Autoencoder {
	ae := &Autoencoder{
		Sizes:   append([]int(nil), sizes...),
		Weights: make([][][]float64, len(sizes)-1),
		Biases:  make([][]float64, len(sizes)-1),
	}

	for l := 0; l < len(sizes)-1; l++ {
		fanIn, fanOut := sizes[l], sizes[l+1]
		limit := math.Sqrt(6.0 / float64(fanIn+fanOut))

		ae.Weights[l] = make([][]float64, fanOut)
		for i := range ae.Weights[l] {
			ae.Weights[l][i] = make([]float64, fanIn)
			for j := range ae.Weights[l][i] {
				ae.Weights[l][i][j] = (rng.Float64()*2 - 1) * limit
			}
		}
		ae.Biases[l] = make([]float64, fanOut)
	}

	return ae
}

// Train fits the autoencoder to reconstruct its input. Samples are
// shuffled each epoch with rng. Returns the final epoch's mean squared
// error.
func (ae *Autoencoder) Train(samples [][]float64, opts TrainOptions, rng *rand.Rand) (float64, error) {
	if len(samples) == 0 {
		return 0, fmt.Errorf("cannot train on an empty sample set")
	}
	if len(samples[0]) != ae.Sizes[0] {
		return 0, fmt.Errorf("sample width %d does not match input layer %d", len(samples[0]), ae.Sizes[0])
	}
	if opts.Epochs < 1 || opts.BatchSize < 1 || opts.LearningRate <= 0 {
		return 0, fmt.Errorf("invalid training options: %+v", opts)
	}

	state := ae.newAdamState()
	order := make([]int, len(samples))
	for i := range order {
		order[i] = i
	}

	var epochLoss float64
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})

		epochLoss = 0
		for start := 0; start < len(order); start += opts.BatchSize {
			end := start + opts.BatchSize
			if end > len(order) {
				end = len(order)
			}
			epochLoss += ae.trainBatch(samples, order[start:end], opts.LearningRate, state)
		}
		epochLoss /= float64(len(samples))

		if (epoch+1)%10 == 0 || epoch == opts.Epochs-1 {
			logging.Debug().
				Int("epoch", epoch+1).
				Float64("mse", epochLoss).
				Msg("autoencoder training progress")
		}
	}

	return epochLoss, nil
}

// trainBatch accumulates gradients over one mini-batch and applies a
// single Adam update. Returns the summed per-sample loss.
func (ae *Autoencoder) trainBatch(samples [][]float64, batch []int, lr float64, state *adamState) float64 {
	gradW := ae.zeroWeights()
	gradB := ae.zeroBiases()

	var loss float64
	for _, idx := range batch {
		x := samples[idx]
		activations, preacts := ae.forward(x)
		out := activations[len(activations)-1]

		// MSE averaged over output units.
		delta := make([]float64, len(out))
		for i := range out {
			diff := out[i] - x[i]
			loss += diff * diff / float64(len(out))
			delta[i] = 2 * diff / float64(len(out))
		}

		ae.backward(activations, preacts, delta, gradW, gradB)
	}

	scale := 1.0 / float64(len(batch))
	state.step++
	bc1 := 1 - math.Pow(adamBeta1, float64(state.step))
	bc2 := 1 - math.Pow(adamBeta2, float64(state.step))

	for l := range ae.Weights {
		for i := range ae.Weights[l] {
			for j := range ae.Weights[l][i] {
				g := gradW[l][i][j] * scale
				state.mW[l][i][j] = adamBeta1*state.mW[l][i][j] + (1-adamBeta1)*g
				state.vW[l][i][j] = adamBeta2*state.vW[l][i][j] + (1-adamBeta2)*g*g
				mHat := state.mW[l][i][j] / bc1
				vHat := state.vW[l][i][j] / bc2
				ae.Weights[l][i][j] -= lr * mHat / (math.Sqrt(vHat) + adamEps)
			}
			g := gradB[l][i] * scale
			state.mB[l][i] = adamBeta1*state.mB[l][i] + (1-adamBeta1)*g
			state.vB[l][i] = adamBeta2*state.vB[l][i] + (1-adamBeta2)*g*g
			mHat := state.mB[l][i] / bc1
			vHat := state.vB[l][i] / bc2
			ae.Biases[l][i] -= lr * mHat / (math.Sqrt(vHat) + adamEps)
		}
	}

	return loss
}

// forward runs one sample through the network, returning per-layer
// activations (including the input) and pre-activation values.
func (ae *Autoencoder) forward(x []float64) (activations, preacts [][]float64) {
	activations = make([][]float64, len(ae.Sizes))
	preacts = make([][]float64, len(ae.Sizes)-1)
	activations[0] = x

	for l := 0; l < len(ae.Weights); l++ {
		in := activations[l]
		z := make([]float64, len(ae.Weights[l]))
		for i := range ae.Weights[l] {
			sum := ae.Biases[l][i]
			for j, w := range ae.Weights[l][i] {
				sum += w * in[j]
			}
			z[i] = sum
		}
		preacts[l] = z

		a := z
		if l < len(ae.Weights)-1 {
			a = make([]float64, len(z))
			for i, v := range z {
				if v > 0 {
					a[i] = v
				}
			}
		}
		activations[l+1] = a
	}

	return activations, preacts
}

// backward accumulates gradients for one sample given the output-layer
// error delta.
func (ae *Autoencoder) backward(activations, preacts [][]float64, delta []float64, gradW [][][]float64, gradB [][]float64) {
	for l := len(ae.Weights) - 1; l >= 0; l-- {
		in := activations[l]
		for i := range ae.Weights[l] {
			gradB[l][i] += delta[i]
			for j := range ae.Weights[l][i] {
				gradW[l][i][j] += delta[i] * in[j]
			}
		}

		if l == 0 {
			break
		}

		prev := make([]float64, ae.Sizes[l])
		for j := range prev {
			var sum float64
			for i := range ae.Weights[l] {
				sum += ae.Weights[l][i][j] * delta[i]
			}
			// ReLU derivative on the previous layer's pre-activation.
			if preacts[l-1][j] > 0 {
				prev[j] = sum
			}
		}
		delta = prev
	}
}

// Encode maps a standardized feature vector to the bottleneck embedding.
func (ae *Autoencoder) Encode(x []float64) []float64 {
	bottleneck := len(ae.Sizes) / 2
	a := x
	for l := 0; l < bottleneck; l++ {
		z := make([]float64, len(ae.Weights[l]))
		for i := range ae.Weights[l] {
			sum := ae.Biases[l][i]
			for j, w := range ae.Weights[l][i] {
				sum += w * a[j]
			}
			// Every encoder layer including the bottleneck uses ReLU.
			if sum > 0 {
				z[i] = sum
			}
		}
		a = z
	}
	return a
}

// EncodeAll encodes a matrix of standardized feature vectors.
func (ae *Autoencoder) EncodeAll(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = ae.Encode(row)
	}
	return out
}

// Reconstruct runs a full forward pass, useful for inspecting
// reconstruction quality.
func (ae *Autoencoder) Reconstruct(x []float64) []float64 {
	activations, _ := ae.forward(x)
	return activations[len(activations)-1]
}

func (ae *Autoencoder) newAdamState() *adamState {
	return &adamState{
		mW: ae.zeroWeights(),
		vW: ae.zeroWeights(),
		mB: ae.zeroBiases(),
		vB: ae.zeroBiases(),
	}
}

func (ae *Autoencoder) zeroWeights() [][][]float64 {
	out := make([][][]float64, len(ae.Weights))
	for l := range ae.Weights {
		out[l] = make([][]float64, len(ae.Weights[l]))
		for i := range ae.Weights[l] {
			out[l][i] = make([]float64, len(ae.Weights[l][i]))
		}
	}
	return out
}

func (ae *Autoencoder) zeroBiases() [][]float64 {
	out := make([][]float64, len(ae.Biases))
	for l := range ae.Biases {
		out[l] = make([]float64, len(ae.Biases[l]))
	}
	return out
}
