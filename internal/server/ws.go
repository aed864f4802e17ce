// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package server

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gorilla/websocket"
)

// upgrader accepts any origin: the gateway is read-only and
// unauthenticated, so cross-origin dashboards connect directly.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func (s *Server) registerObserverRoute() {
	s.router.Get("/ws", s.handleObserverSocket)

	// Register the operation in the OpenAPI spec manually. The websocket
	// handler needs raw http.ResponseWriter access for the upgrade, so it
	// cannot use Huma's standard handler signature. We keep the chi route
	// above for actual request handling and add the spec entry here for
	// documentation.
	s.api.OpenAPI().AddOperation(&huma.Operation{
		OperationID: "observe-stream",
		Method:      http.MethodGet,
		Path:        "/ws",
		Summary:     "Live snapshot stream",
		Description: "Upgrades to a websocket and pushes one snapshot JSON text message per collector tick. A slow reader only ever skips to the newest snapshot. Inbound messages are ignored.",
		Tags:        []string{"observation"},
		Responses: map[string]*huma.Response{
			"101": {Description: "Switching to the websocket protocol"},
			"503": {Description: "Observer hub not configured or shut down"},
		},
	})
}

func (s *Server) handleObserverSocket(w http.ResponseWriter, r *http.Request) {
	if s.services == nil || s.services.Observers == nil {
		http.Error(w, `{"error":"observer hub not configured"}`, http.StatusServiceUnavailable)
		return
	}

	// Upgrade writes its own error response on failure.
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	if _, err := s.services.Observers.Register(conn); err != nil {
		s.logger.Warn("observer registration refused", "error", err)
		_ = conn.Close()
	}
}
