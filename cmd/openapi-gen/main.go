// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gorilla/websocket"

	"github.com/daneel-ai/nursery/internal/hub"
	"github.com/daneel-ai/nursery/internal/projection"
	"github.com/daneel-ai/nursery/internal/server"
	"github.com/daneel-ai/nursery/internal/snapshot"
	nurseryerr "github.com/daneel-ai/nursery/pkg/errors"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec creates a gateway with all routes registered and extracts
// the OpenAPI spec that huma generates from the Go type annotations.
func generateSpec() ([]byte, error) {
	srv, err := server.New(server.Config{
		ListenAddr: "127.0.0.1:0",
	}, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	if err != nil {
		return nil, nurseryerr.Wrapf(err, nurseryerr.CodeCLISetupFailure, "creating gateway")
	}

	// No-op providers so all routes are registered for schema discovery.
	// Handlers are never invoked during spec generation.
	srv.RegisterServices(&server.Services{
		Snapshots: stubSnapshots{},
		Clouds:    stubClouds{},
		Observers: stubObservers{},
	})

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

type stubSnapshots struct{}

func (stubSnapshots) Current() (*snapshot.Snapshot, bool) { return nil, false }

type stubClouds struct{}

func (stubClouds) Current() (*projection.PointCloud, bool) { return nil, false }

type stubObservers struct{}

func (stubObservers) Register(*websocket.Conn) (*hub.Session, error) { return nil, nil }
