// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

// Package projection turns sampled memory embeddings into the 3-D point
// cloud served at /vectors. A seeded basis keeps the cloud spatially
// stable across refreshes, and four Law anchors give it a fixed frame.
package projection

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/daneel-ai/nursery/internal/source"
	nurseryerr "github.com/daneel-ai/nursery/pkg/errors"
)

// Projection modes selectable at startup.
const (
	ModeRandom = "random"
	ModePCA    = "pca"
)

// Config controls the refresh cadence and the projection shape.
type Config struct {
	Interval    time.Duration
	SampleLimit int
	// Dimensions is the embedding dimensionality the mind writes.
	Dimensions int
	Mode       string
	Seed       int64
}

// Engine samples the conscious memory collection on its own ticker and
// publishes an immutable PointCloud. The vector store failing a refresh
// keeps the previous cloud in place.
type Engine struct {
	cfg    Config
	vector source.VectorSource
	logger *slog.Logger

	current atomic.Pointer[PointCloud]

	// Refresh-goroutine state; not shared.
	basis   Basis
	anchors []AnchorPoint
	down    bool
}

// NewEngine validates the projection settings and, in random mode, fixes
// the basis immediately. PCA mode waits for the first answered sample
// batch before committing to a basis.
func NewEngine(cfg Config, vector source.VectorSource, logger *slog.Logger) (*Engine, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.SampleLimit <= 0 {
		cfg.SampleLimit = 256
	}
	if cfg.Dimensions <= 3 {
		return nil, nurseryerr.Errorf(nurseryerr.CodeProjectionBasisInvalid,
			"projection needs more than 3 dimensions, got %d", cfg.Dimensions)
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeRandom
	}
	if cfg.Mode != ModeRandom && cfg.Mode != ModePCA {
		return nil, nurseryerr.Errorf(nurseryerr.CodeProjectionBasisInvalid,
			"unknown projection mode %q", cfg.Mode)
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{cfg: cfg, vector: vector, logger: logger}
	if cfg.Mode == ModeRandom {
		e.setBasis(NewRandomBasis(cfg.Dimensions, cfg.Seed))
	}
	return e, nil
}

// Current returns the latest published cloud. ok is false before the
// first successful refresh. Callers share the returned value and must
// not mutate it.
func (e *Engine) Current() (*PointCloud, bool) {
	cloud := e.current.Load()
	return cloud, cloud != nil
}

// Run drives the refresh loop until ctx is cancelled. The first refresh
// happens immediately.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("projection engine started",
		"interval", e.cfg.Interval,
		"mode", e.cfg.Mode,
		"sample_limit", e.cfg.SampleLimit,
	)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	e.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("projection engine stopped")
			return
		case <-ticker.C:
			e.refresh(ctx)
		}
	}
}

func (e *Engine) refresh(ctx context.Context) {
	sctx, cancel := context.WithTimeout(ctx, e.cfg.Interval)
	defer cancel()

	samples, err := e.vector.Sample(sctx, e.cfg.SampleLimit)
	if err != nil {
		if !e.down {
			e.logger.Warn("memory sampling unavailable, keeping previous point cloud", "error", err)
			e.down = true
		}
		return
	}
	if e.down {
		e.logger.Info("memory sampling recovered")
		e.down = false
	}

	if e.basis == nil {
		e.setBasis(e.fitBasis(samples))
	}

	now := time.Now().UTC()
	points := make([]VectorPoint, 0, len(samples))
	dropped := 0
	for _, s := range samples {
		p, err := e.basis.Project(s.Embedding)
		if err != nil {
			dropped++
			continue
		}
		age := 0.0
		if !s.RecordedAt.IsZero() {
			if age = now.Sub(s.RecordedAt).Seconds(); age < 0 {
				age = 0
			}
		}
		points = append(points, VectorPoint{
			X:          p.X,
			Y:          p.Y,
			Z:          p.Z,
			Salience:   s.Salience,
			AgeSeconds: age,
		})
	}
	if dropped > 0 {
		e.logger.Debug("dropped samples with unexpected dimensionality",
			"count", dropped,
			"expected", e.cfg.Dimensions,
		)
	}

	e.current.Store(&PointCloud{
		GeneratedAt:    now,
		Points:         points,
		Anchors:        e.anchors,
		DroppedSamples: dropped,
	})
}

// fitBasis estimates the PCA basis from the first answered batch. A batch
// too small to estimate a covariance settles the engine on the seeded
// random basis instead.
func (e *Engine) fitBasis(samples []source.MemorySample) Basis {
	fit := make([][]float32, 0, len(samples))
	for _, s := range samples {
		if len(s.Embedding) == e.cfg.Dimensions {
			fit = append(fit, s.Embedding)
		}
	}
	basis, err := NewPCABasis(fit)
	if err != nil {
		e.logger.Warn("falling back to random projection basis",
			"error", err,
			"usable_samples", len(fit),
		)
		return NewRandomBasis(e.cfg.Dimensions, e.cfg.Seed)
	}
	e.logger.Info("pca basis fitted", "samples", len(fit))
	return basis
}

func (e *Engine) setBasis(b Basis) {
	e.basis = b
	anchors, err := projectAnchors(b)
	if err != nil {
		e.logger.Error("projecting law anchors failed", "error", err)
		return
	}
	e.anchors = anchors
}
