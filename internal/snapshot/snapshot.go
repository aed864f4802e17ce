// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

// Package snapshot assembles and holds the observer's view of the mind:
// an immutable point-in-time Snapshot rebuilt on every collector tick and
// shared by reference with the gateway and the broadcast hub.
package snapshot

import "time"

// KnownActors are the supervised actors every snapshot reports even when
// the heartbeat feed is silent about them. A silent actor is shown dead,
// never omitted.
var KnownActors = []string{"MemoryActor", "AttentionActor", "SalienceActor", "VolitionActor"}

// Snapshot is one complete observation of the mind. Once published it is
// never mutated; a new tick produces a new value.
type Snapshot struct {
	Timestamp      time.Time              `json:"timestamp"`
	Identity       Identity               `json:"identity"`
	Cognitive      Cognitive              `json:"cognitive"`
	Emotional      Emotional              `json:"emotional"`
	Actors         map[string]ActorStatus `json:"actors"`
	RecentThoughts []Thought              `json:"recent_thoughts"`

	// Stale marks which sources failed to answer for this tick, leaving
	// their fields carried over from the previous snapshot. Not exposed
	// on the wire.
	Stale Staleness `json:"-"`
}

// Identity carries who the mind is and how long it has been running.
type Identity struct {
	Name             string `json:"name"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
	LifetimeThoughts int64  `json:"lifetime_thoughts"`
	SessionThoughts  int64  `json:"session_thoughts"`
	RestartCount     int64  `json:"restart_count"`
}

// Cognitive carries memory-store counters.
type Cognitive struct {
	ConsciousMemories   uint64 `json:"conscious_memories"`
	UnconsciousMemories uint64 `json:"unconscious_memories"`
	LifetimeDreams      int64  `json:"lifetime_dreams"`
	CurrentCycle        int64  `json:"current_cycle"`
}

// Emotional carries the mind's affective state. Valence is in [-1,1];
// the rest are in [0,1].
type Emotional struct {
	Valence            float64 `json:"valence"`
	Arousal            float64 `json:"arousal"`
	Dominance          float64 `json:"dominance"`
	ConnectionDrive    float64 `json:"connection_drive"`
	EmotionalIntensity float64 `json:"emotional_intensity"`
}

// ActorStatus is the reported health of one supervised actor.
type ActorStatus struct {
	Alive        bool `json:"alive"`
	RestartCount int  `json:"restart_count"`
}

// Thought is one recent thought, newest first in Snapshot.RecentThoughts.
type Thought struct {
	ID             string    `json:"id"`
	ContentPreview string    `json:"content_preview"`
	Salience       float64   `json:"salience"`
	Timestamp      time.Time `json:"timestamp"`
}

// Staleness marks per-source degradation within a snapshot.
type Staleness struct {
	Stream bool
	Vector bool
}
