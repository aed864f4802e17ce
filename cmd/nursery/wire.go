// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package main

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/daneel-ai/nursery/internal/config"
	"github.com/daneel-ai/nursery/internal/hub"
	"github.com/daneel-ai/nursery/internal/projection"
	"github.com/daneel-ai/nursery/internal/secrets"
	"github.com/daneel-ai/nursery/internal/server"
	"github.com/daneel-ai/nursery/internal/snapshot"
	"github.com/daneel-ai/nursery/internal/source"
	_ "github.com/daneel-ai/nursery/internal/source/qdrant"      // register qdrant backend
	_ "github.com/daneel-ai/nursery/internal/source/redisstream" // register redis backend
	_ "github.com/daneel-ai/nursery/internal/source/sqlite"      // register sqlite backend
	nurseryerr "github.com/daneel-ai/nursery/pkg/errors"
)

// Nursery holds all wired subsystems and manages their lifecycle.
type Nursery struct {
	Server    *server.Server
	Store     *snapshot.Store
	Hub       *hub.Hub
	Collector *snapshot.Collector
	Engine    *projection.Engine

	stream source.StreamSource
	vector source.VectorSource
}

// sourceSettings maps the application config onto the slice of it the
// source backends understand.
func sourceSettings(cfg *config.Config) *source.Settings {
	return &source.Settings{
		StreamBackend: cfg.Stream.Backend,
		StreamURL:     cfg.Stream.URL,
		AwakeKey:      cfg.Stream.AwakeKey,
		ActorsKey:     cfg.Stream.ActorsKey,

		VectorBackend:         cfg.Vector.Backend,
		VectorURL:             cfg.Vector.URL,
		MemoriesCollection:    cfg.Vector.MemoriesCollection,
		UnconsciousCollection: cfg.Vector.UnconsciousCollection,
		IdentityCollection:    cfg.Vector.IdentityCollection,
		IdentityPointID:       cfg.Vector.IdentityPointID,

		SQLitePath: cfg.SQLite.Path,
	}
}

// resolveSecretURLs replaces keyring:// references in the store URLs with
// their secret values. Plain URLs pass through untouched, so deployments
// without a keyring never touch the OS secret service.
func resolveSecretURLs(cfg *config.Config, store secrets.Store) error {
	resolved, err := secrets.ResolveKeyringURI(store, cfg.Stream.URL)
	if err != nil {
		return nurseryerr.Wrapf(err, nurseryerr.CodeCLISetupFailure, "resolving stream.url")
	}
	cfg.Stream.URL = resolved

	resolved, err = secrets.ResolveKeyringURI(store, cfg.Vector.URL)
	if err != nil {
		return nurseryerr.Wrapf(err, nurseryerr.CodeCLISetupFailure, "resolving vector.url")
	}
	cfg.Vector.URL = resolved

	return nil
}

// WireNursery creates all subsystems and wires them together: sources feed
// the collector, the collector publishes to the snapshot store and the
// observer hub, the projection engine samples embeddings on its own clock,
// and the gateway serves all of it.
func WireNursery(cfg *config.Config, logger *slog.Logger) (*Nursery, error) {
	if err := resolveSecretURLs(cfg, secretStoreFactory()); err != nil {
		return nil, err
	}

	settings := sourceSettings(cfg)

	stream, err := source.NewStreamSource(settings)
	if err != nil {
		return nil, nurseryerr.Wrapf(err, nurseryerr.CodeCLISetupFailure, "creating stream source")
	}

	vector, err := source.NewVectorSource(settings)
	if err != nil {
		_ = stream.Close()
		return nil, nurseryerr.Wrapf(err, nurseryerr.CodeCLISetupFailure, "creating vector source")
	}

	store := snapshot.NewStore()
	h := hub.NewHub(store, logger)

	collector := snapshot.NewCollector(snapshot.CollectorConfig{
		Interval:      cfg.Snapshot.Interval,
		SourceTimeout: cfg.Snapshot.SourceTimeout,
		ThoughtLimit:  cfg.Snapshot.ThoughtLimit,
		MindName:      cfg.Identity.Name,
	}, stream, vector, store, h, logger)

	engine, err := projection.NewEngine(projection.Config{
		Interval:    cfg.Projection.Interval,
		SampleLimit: cfg.Projection.SampleLimit,
		Dimensions:  cfg.Projection.Dimensions,
		Mode:        cfg.Projection.Mode,
		Seed:        cfg.Projection.Seed,
	}, vector, logger)
	if err != nil {
		_ = stream.Close()
		_ = vector.Close()
		return nil, nurseryerr.Wrapf(err, nurseryerr.CodeCLISetupFailure, "creating projection engine")
	}

	srv, err := server.New(server.Config{
		ListenAddr:  cfg.Server.Listen,
		CORSOrigins: cfg.Server.CORSOrigins,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimitRPS,
			Burst:             cfg.Server.RateLimitBurst,
		},
	}, logger)
	if err != nil {
		_ = stream.Close()
		_ = vector.Close()
		return nil, nurseryerr.Wrapf(err, nurseryerr.CodeCLISetupFailure, "creating gateway")
	}

	srv.RegisterServices(&server.Services{
		Snapshots: store,
		Clouds:    engine,
		Observers: h,
	})

	return &Nursery{
		Server:    srv,
		Store:     store,
		Hub:       h,
		Collector: collector,
		Engine:    engine,
		stream:    stream,
		vector:    vector,
	}, nil
}

// Run starts the collector, the projection engine and the gateway, blocking
// until ctx is cancelled or the gateway fails.
func (n *Nursery) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n.Collector.Run(ctx)
		return nil
	})
	g.Go(func() error {
		n.Engine.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return n.Server.Start(ctx)
	})

	return g.Wait()
}

// Close disconnects observers and releases the source connections.
func (n *Nursery) Close() error {
	n.Hub.Close()

	var errs []error
	if err := n.stream.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := n.vector.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
