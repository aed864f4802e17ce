// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package server

import (
	"github.com/gorilla/websocket"

	"github.com/daneel-ai/nursery/internal/hub"
	"github.com/daneel-ai/nursery/internal/projection"
	"github.com/daneel-ai/nursery/internal/snapshot"
)

// SnapshotProvider yields the latest assembled snapshot.
type SnapshotProvider interface {
	Current() (*snapshot.Snapshot, bool)
}

// CloudProvider yields the latest projected point cloud.
type CloudProvider interface {
	Current() (*projection.PointCloud, bool)
}

// SessionRegistrar adopts upgraded websocket connections as observer
// sessions.
type SessionRegistrar interface {
	Register(conn *websocket.Conn) (*hub.Session, error)
}

var (
	_ SnapshotProvider = (*snapshot.Store)(nil)
	_ CloudProvider    = (*projection.Engine)(nil)
	_ SessionRegistrar = (*hub.Hub)(nil)
)

// Services bundles everything the gateway serves. Each dependency is an
// interface so tests can substitute fakes.
type Services struct {
	Snapshots SnapshotProvider
	Clouds    CloudProvider
	Observers SessionRegistrar
}
