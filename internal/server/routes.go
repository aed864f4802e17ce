// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/daneel-ai/nursery/internal/projection"
	"github.com/daneel-ai/nursery/internal/snapshot"
)

// RegisterServices sets the service dependencies and registers the
// observation routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-metrics",
		Method:      http.MethodGet,
		Path:        "/metrics",
		Summary:     "Current mind snapshot",
		Description: "The latest assembled snapshot of the observed mind. Returns 503 until the first collector tick has run.",
		Tags:        []string{"observation"},
	}, s.handleMetrics)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-vectors",
		Method:      http.MethodGet,
		Path:        "/vectors",
		Summary:     "Current memory point cloud",
		Description: "The latest 3-D projection of sampled memory embeddings with the four Law anchors. Returns 503 until the first projection refresh has run.",
		Tags:        []string{"observation"},
	}, s.handleVectors)
}

// --- Request/Response types for huma ---

type metricsOutput struct {
	Body snapshot.Snapshot
}

type vectorsOutput struct {
	Body projection.PointCloud
}

// --- Handlers ---

func (s *Server) handleMetrics(_ context.Context, _ *struct{}) (*metricsOutput, error) {
	snap, ok := s.services.Snapshots.Current()
	if !ok {
		return nil, huma.Error503ServiceUnavailable("snapshot not ready")
	}
	return &metricsOutput{Body: *snap}, nil
}

func (s *Server) handleVectors(_ context.Context, _ *struct{}) (*vectorsOutput, error) {
	cloud, ok := s.services.Clouds.Current()
	if !ok {
		return nil, huma.Error503ServiceUnavailable("point cloud not ready")
	}
	return &vectorsOutput{Body: *cloud}, nil
}
