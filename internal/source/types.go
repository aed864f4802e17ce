// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package source

import "time"

// ThoughtRecord is one decoded entry from the awake stream.
type ThoughtRecord struct {
	ID             string
	ContentPreview string
	// Salience is the thought's importance score in [0,1].
	Salience float64
	// Valence and Arousal are the emotional primitives attached to the
	// thought. The newest record drives the snapshot's emotional block.
	Valence   float64
	Arousal   float64
	Timestamp time.Time
}

// ActorStatus is the heartbeat of one supervised actor inside the mind.
type ActorStatus struct {
	Alive        bool `json:"alive"`
	RestartCount int  `json:"restart_count"`
}

// StreamObservation is the result of a single thought-stream poll.
type StreamObservation struct {
	// SessionThoughts is the total number of entries in the awake stream.
	SessionThoughts int64
	// Thoughts holds up to the requested limit, newest first.
	Thoughts []ThoughtRecord
	// Actors maps actor name to its last reported heartbeat.
	Actors map[string]ActorStatus
	// Malformed counts entries dropped because they could not be decoded.
	Malformed int
}

// IdentityCounters are the lifetime counters stored on the identity point.
type IdentityCounters struct {
	LifetimeThoughts int64
	LifetimeDreams   int64
	RestartCount     int64
}

// VectorObservation is the result of a single vector-store poll.
type VectorObservation struct {
	ConsciousMemories   uint64
	UnconsciousMemories uint64
	Identity            IdentityCounters
}

// MemorySample is one embedding drawn from the conscious memory collection
// for projection into the point cloud.
type MemorySample struct {
	ID        string
	Embedding []float32
	// Salience is the stored semantic salience, defaulting to 0.5 when the
	// payload lacks one.
	Salience float64
	// RecordedAt is when the memory was encoded; zero when unknown.
	RecordedAt time.Time
}
