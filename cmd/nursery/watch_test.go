// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package main

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The watch TUI is driven entirely by messages, so the model can be
// exercised without a terminal or a live gateway.

func TestWatchModel_StartsConnecting(t *testing.T) {
	m := newWatchModel("127.0.0.1:3000")
	assert.Equal(t, watchConnecting, m.state)
	assert.Contains(t, m.View(), "Connecting to 127.0.0.1:3000")
	assert.NotNil(t, m.Init())
}

func TestWatchModel_ConnectedTransitionsToObserving(t *testing.T) {
	m := newWatchModel("127.0.0.1:3000")

	m2, cmd := m.Update(connectedMsg{})
	result := m2.(watchModel)
	assert.Equal(t, watchObserving, result.state)
	assert.NotNil(t, cmd, "a read command should be pending after connect")
	assert.Contains(t, result.View(), "Waiting for the first snapshot")
}

func TestWatchModel_SnapshotRendersMindState(t *testing.T) {
	m := newWatchModel("127.0.0.1:3000")
	m.state = watchObserving

	m2, cmd := m.Update(snapshotMsg{snap: testSnapshot()})
	result := m2.(watchModel)
	assert.NotNil(t, cmd, "the next read should be queued after each snapshot")

	view := result.View()
	assert.Contains(t, view, "Timmy")
	assert.Contains(t, view, "awake 1h2m3s")
	assert.Contains(t, view, "valence")
	assert.Contains(t, view, "MemoryActor")
	assert.Contains(t, view, "SalienceActor")
	assert.Contains(t, view, "×2", "restart count should show next to the actor")
	assert.Contains(t, view, "the window is bright today")
	assert.Contains(t, view, "152 this session, 48211 lifetime")
}

func TestWatchModel_QuietMindShowsPlaceholder(t *testing.T) {
	snap := testSnapshot()
	snap.RecentThoughts = nil

	m := newWatchModel("127.0.0.1:3000")
	m.state = watchObserving
	m.snap = snap

	assert.Contains(t, m.View(), "(quiet)")
}

func TestWatchModel_StreamClosedSchedulesRedial(t *testing.T) {
	m := newWatchModel("127.0.0.1:3000")
	m.state = watchObserving

	m2, cmd := m.Update(streamClosedMsg{err: errors.New("unexpected EOF")})
	result := m2.(watchModel)
	assert.Equal(t, watchLost, result.state)
	assert.NotNil(t, cmd)

	view := result.View()
	assert.Contains(t, view, "Connection lost")
	assert.Contains(t, view, "unexpected EOF")
	assert.Contains(t, view, "Reconnecting")
}

func TestWatchModel_RedialReturnsToConnecting(t *testing.T) {
	m := newWatchModel("127.0.0.1:3000")
	m.state = watchLost

	m2, cmd := m.Update(redialMsg{})
	assert.Equal(t, watchConnecting, m2.(watchModel).state)
	assert.NotNil(t, cmd, "redial should issue a new dial command")
}

func TestWatchModel_QuitKey(t *testing.T) {
	m := newWatchModel("127.0.0.1:3000")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestShiftValence(t *testing.T) {
	assert.InDelta(t, 0.0, shiftValence(-1), 1e-9)
	assert.InDelta(t, 0.5, shiftValence(0), 1e-9)
	assert.InDelta(t, 1.0, shiftValence(1), 1e-9)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly-ten", truncate("exactly-ten", 11))
	assert.Equal(t, "abcde...", truncate("abcdefghij", 8))
}
