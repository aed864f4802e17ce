// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package projection

import "time"

// VectorPoint is one memory embedding projected into cloud space.
type VectorPoint struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
	// Salience is the memory's stored semantic salience in [0,1].
	Salience float64 `json:"salience"`
	// AgeSeconds is how long ago the memory was encoded; zero when the
	// store did not record a time.
	AgeSeconds float64 `json:"age_seconds"`
}

// AnchorPoint is one Law anchor in cloud space.
type AnchorPoint struct {
	Label string  `json:"label"`
	X     float32 `json:"x"`
	Y     float32 `json:"y"`
	Z     float32 `json:"z"`
}

// PointCloud is one complete projection refresh. Once published it is
// never mutated; the next refresh produces a new value.
type PointCloud struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Points      []VectorPoint `json:"points"`
	Anchors     []AnchorPoint `json:"anchors"`
	// DroppedSamples counts embeddings discarded in this refresh because
	// their dimensionality did not match the basis.
	DroppedSamples int `json:"dropped_samples"`
}
