// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package hub

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfferReplacesPendingMessage(t *testing.T) {
	s := &Session{
		id:    uuid.New(),
		queue: make(chan []byte, 1),
		done:  make(chan struct{}),
	}

	s.offer([]byte("stale"))
	s.offer([]byte("newer"))
	s.offer([]byte("newest"))

	select {
	case data := <-s.queue:
		assert.Equal(t, "newest", string(data), "the queue keeps only the newest snapshot")
	default:
		t.Fatal("expected a pending message")
	}

	select {
	case data := <-s.queue:
		t.Fatalf("queue should be empty, found %q", data)
	default:
	}
}

func TestOfferNeverBlocks(t *testing.T) {
	s := &Session{
		id:    uuid.New(),
		queue: make(chan []byte, 1),
		done:  make(chan struct{}),
	}

	// No consumer anywhere; a thousand offers must still return.
	for i := range 1000 {
		s.offer([]byte{byte(i)})
	}

	require.Len(t, s.queue, 1)
}
