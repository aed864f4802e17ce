// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package snapshot

import "sync/atomic"

// Store holds the single current snapshot. The collector is the only
// writer; any number of readers may load concurrently. There is no
// history: each publish wholly replaces the previous value.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore returns an empty store. Current reports not-ready until the
// first Publish.
func NewStore() *Store {
	return &Store{}
}

// Publish atomically replaces the current snapshot.
func (s *Store) Publish(snap *Snapshot) {
	s.current.Store(snap)
}

// Current returns the latest published snapshot. ok is false before the
// first publish. Callers share the returned value and must not mutate it.
func (s *Store) Current() (*Snapshot, bool) {
	snap := s.current.Load()
	return snap, snap != nil
}
