// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package projection

import (
	"math/rand"

	"github.com/cespare/xxhash/v2"
)

// LawAnchors are the four Laws, pinned into the cloud as fixed reference
// points so observers keep a stable frame across refreshes.
var LawAnchors = []string{
	"Law 0: Humanity",
	"Law 1: No Harm",
	"Law 2: Obey",
	"Law 3: Self",
}

// anchorEmbedding derives a deterministic unit pseudo-embedding for a
// label. The label hash seeds the generator, so a label always lands on
// the same embedding at a given dimensionality.
func anchorEmbedding(label string, dim int) []float32 {
	rng := rand.New(rand.NewSource(int64(xxhash.Sum64String(label))))
	v := randomUnit(rng, dim)
	out := make([]float32, dim)
	for j, x := range v {
		out[j] = float32(x)
	}
	return out
}

// projectAnchors runs every Law label through the basis once. The result
// is cached for the basis lifetime.
func projectAnchors(b Basis) ([]AnchorPoint, error) {
	anchors := make([]AnchorPoint, 0, len(LawAnchors))
	for _, label := range LawAnchors {
		p, err := b.Project(anchorEmbedding(label, b.Dim()))
		if err != nil {
			return nil, err
		}
		anchors = append(anchors, AnchorPoint{Label: label, X: p.X, Y: p.Y, Z: p.Z})
	}
	return anchors, nil
}
