// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

// Package source defines the read-only contracts for observing the mind's
// external stores: the episodic thought stream and the vector-embedded
// memory store. Backends register themselves with the factory and are
// selected by name through configuration.
package source

import "context"

// StreamSource reads the episodic thought stream and actor heartbeats.
// Implementations never write to the store.
type StreamSource interface {
	// Observe returns a single poll of the stream: total session thought
	// count, up to thoughtLimit recent thoughts (newest first) and the
	// current actor heartbeats.
	Observe(ctx context.Context, thoughtLimit int) (*StreamObservation, error)
	Close() error
}

// VectorSource reads memory counters and samples embeddings from the
// vector store. Implementations never write to the store.
type VectorSource interface {
	// Observe returns collection counts and the lifetime identity counters.
	Observe(ctx context.Context) (*VectorObservation, error)
	// Sample draws up to limit embeddings with their salience and age
	// metadata for projection.
	Sample(ctx context.Context, limit int) ([]MemorySample, error)
	Close() error
}
