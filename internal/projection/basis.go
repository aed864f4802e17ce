// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package projection

import (
	"math"
	"math/rand"

	nurseryerr "github.com/daneel-ai/nursery/pkg/errors"
)

// Point3 is one projected coordinate in cloud space.
type Point3 struct {
	X, Y, Z float32
}

// Basis reduces a high-dimensional embedding to three dimensions. A basis
// is immutable after construction so that the same embedding always lands
// on the same point.
type Basis interface {
	// Project maps one embedding into cloud space. The embedding must
	// have exactly Dim elements.
	Project(embedding []float32) (Point3, error)
	// Dim is the embedding dimensionality the basis accepts.
	Dim() int
}

var (
	_ Basis = (*RandomBasis)(nil)
	_ Basis = (*PCABasis)(nil)
)

// ---------------------------------------------------------------------------
// Random projection
// ---------------------------------------------------------------------------

// RandomBasis projects through three seeded Gaussian directions of unit
// length. Random projection preserves relative distances well enough for a
// dashboard cloud and needs no sample data to construct.
type RandomBasis struct {
	dim  int
	rows [3][]float64
}

// NewRandomBasis builds the three projection directions from the given
// seed. The same seed and dimensionality always produce the same basis.
func NewRandomBasis(dim int, seed int64) *RandomBasis {
	rng := rand.New(rand.NewSource(seed))
	b := &RandomBasis{dim: dim}
	for i := range b.rows {
		b.rows[i] = randomUnit(rng, dim)
	}
	return b
}

func (b *RandomBasis) Dim() int { return b.dim }

func (b *RandomBasis) Project(embedding []float32) (Point3, error) {
	if len(embedding) != b.dim {
		return Point3{}, nurseryerr.Errorf(nurseryerr.CodeProjectionDimensionMismatch,
			"embedding has %d dimensions, basis expects %d", len(embedding), b.dim)
	}
	var out [3]float64
	for i, row := range b.rows {
		var sum float64
		for j, v := range embedding {
			sum += row[j] * float64(v)
		}
		out[i] = sum
	}
	return Point3{X: float32(out[0]), Y: float32(out[1]), Z: float32(out[2])}, nil
}

// ---------------------------------------------------------------------------
// PCA
// ---------------------------------------------------------------------------

// MinPCASamples is the smallest batch a covariance estimate is accepted
// from. Below this the engine falls back to the random basis.
const MinPCASamples = 8

const powerIterations = 64

// PCABasis projects onto the top three principal components of a sample
// batch, computed once at construction by power iteration with deflation.
type PCABasis struct {
	dim        int
	mean       []float64
	components [3][]float64
}

// NewPCABasis fits a basis to the sample batch. All samples must share one
// dimensionality and there must be at least MinPCASamples of them.
func NewPCABasis(samples [][]float32) (*PCABasis, error) {
	if len(samples) < MinPCASamples {
		return nil, nurseryerr.Errorf(nurseryerr.CodeProjectionBasisInvalid,
			"pca needs at least %d samples, got %d", MinPCASamples, len(samples))
	}
	dim := len(samples[0])
	for i, s := range samples {
		if len(s) != dim {
			return nil, nurseryerr.Errorf(nurseryerr.CodeProjectionBasisInvalid,
				"sample %d has %d dimensions, batch has %d", i, len(s), dim)
		}
	}

	mean := make([]float64, dim)
	for _, s := range samples {
		for j, v := range s {
			mean[j] += float64(v)
		}
	}
	for j := range mean {
		mean[j] /= float64(len(samples))
	}

	centered := make([][]float64, len(samples))
	for i, s := range samples {
		row := make([]float64, dim)
		for j, v := range s {
			row[j] = float64(v) - mean[j]
		}
		centered[i] = row
	}

	b := &PCABasis{dim: dim, mean: mean}
	rng := rand.New(rand.NewSource(1))
	for c := range b.components {
		v := randomUnit(rng, dim)
		rejectComponents(v, b.components[:c])
		for range powerIterations {
			w := multiplyCovariance(centered, v)
			rejectComponents(w, b.components[:c])
			if !normalize(w) {
				// No variance left in this direction (for example a batch
				// of identical embeddings). Any orthogonal axis will do.
				w = randomUnit(rng, dim)
				rejectComponents(w, b.components[:c])
				normalize(w)
				v = w
				break
			}
			v = w
		}
		b.components[c] = v
	}
	return b, nil
}

func (b *PCABasis) Dim() int { return b.dim }

func (b *PCABasis) Project(embedding []float32) (Point3, error) {
	if len(embedding) != b.dim {
		return Point3{}, nurseryerr.Errorf(nurseryerr.CodeProjectionDimensionMismatch,
			"embedding has %d dimensions, basis expects %d", len(embedding), b.dim)
	}
	centered := make([]float64, b.dim)
	for j, v := range embedding {
		centered[j] = float64(v) - b.mean[j]
	}
	var out [3]float64
	for i, comp := range b.components {
		out[i] = dot(comp, centered)
	}
	return Point3{X: float32(out[0]), Y: float32(out[1]), Z: float32(out[2])}, nil
}

// ---------------------------------------------------------------------------
// Vector helpers
// ---------------------------------------------------------------------------

func randomUnit(rng *rand.Rand, dim int) []float64 {
	v := make([]float64, dim)
	for j := range v {
		v[j] = rng.NormFloat64()
	}
	normalize(v)
	return v
}

// multiplyCovariance computes the sample covariance applied to v without
// materializing the covariance matrix.
func multiplyCovariance(centered [][]float64, v []float64) []float64 {
	w := make([]float64, len(v))
	for _, row := range centered {
		d := dot(row, v)
		for j := range w {
			w[j] += d * row[j]
		}
	}
	return w
}

// rejectComponents removes from w its projection onto each previous
// component, keeping the iteration orthogonal to what is already found.
func rejectComponents(w []float64, components [][]float64) {
	for _, comp := range components {
		d := dot(w, comp)
		for j := range w {
			w[j] -= d * comp[j]
		}
	}
}

// normalize scales w to unit length in place. It reports false and leaves
// w untouched when the norm is too small to divide by.
func normalize(w []float64) bool {
	var sum float64
	for _, x := range w {
		sum += x * x
	}
	n := math.Sqrt(sum)
	if n < 1e-12 {
		return false
	}
	for j := range w {
		w[j] /= n
	}
	return true
}

func dot(a, b []float64) float64 {
	var sum float64
	for j := range a {
		sum += a[j] * b[j]
	}
	return sum
}
