// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package snapshot_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daneel-ai/nursery/internal/snapshot"
)

func TestStoreNotReadyBeforeFirstPublish(t *testing.T) {
	store := snapshot.NewStore()

	snap, ok := store.Current()
	assert.False(t, ok)
	assert.Nil(t, snap)
}

func TestStorePublishReplacesCurrent(t *testing.T) {
	store := snapshot.NewStore()

	first := &snapshot.Snapshot{Timestamp: time.Now().UTC()}
	store.Publish(first)

	got, ok := store.Current()
	require.True(t, ok)
	assert.Same(t, first, got)

	second := &snapshot.Snapshot{Timestamp: first.Timestamp.Add(200 * time.Millisecond)}
	store.Publish(second)

	got, ok = store.Current()
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestStoreConcurrentReaders(t *testing.T) {
	store := snapshot.NewStore()

	done := make(chan struct{})
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if snap, ok := store.Current(); ok {
					assert.NotNil(t, snap)
				}
			}
		}()
	}

	for i := range 1000 {
		store.Publish(&snapshot.Snapshot{
			Identity: snapshot.Identity{SessionThoughts: int64(i)},
		})
	}
	close(done)
	wg.Wait()

	got, ok := store.Current()
	require.True(t, ok)
	assert.Equal(t, int64(999), got.Identity.SessionThoughts)
}
