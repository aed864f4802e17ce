// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package snapshot

import (
	"context"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/daneel-ai/nursery/internal/source"
)

// Sink receives every published snapshot, typically the broadcast hub.
type Sink interface {
	Broadcast(snap *Snapshot)
}

// CollectorConfig controls the tick cadence and snapshot shape.
type CollectorConfig struct {
	Interval      time.Duration
	SourceTimeout time.Duration
	ThoughtLimit  int
	MindName      string
}

// Collector polls both sources on a fixed tick and publishes one snapshot
// per tick to the store and the sink. A failing source degrades to the
// previous snapshot's fields; it never skips a tick and never stops the
// loop.
type Collector struct {
	cfg    CollectorConfig
	stream source.StreamSource
	vector source.VectorSource
	store  *Store
	sink   Sink
	logger *slog.Logger

	startedAt time.Time

	// Loop-goroutine state; not shared.
	prev       *Snapshot
	streamDown bool
	vectorDown bool
}

// NewCollector wires a collector. sink may be nil. Zero config fields fall
// back to the observer defaults (200ms tick, 150ms source budget, 20
// thoughts, name "Timmy").
func NewCollector(cfg CollectorConfig, stream source.StreamSource, vector source.VectorSource, store *Store, sink Sink, logger *slog.Logger) *Collector {
	if cfg.Interval <= 0 {
		cfg.Interval = 200 * time.Millisecond
	}
	if cfg.SourceTimeout <= 0 || cfg.SourceTimeout >= cfg.Interval {
		cfg.SourceTimeout = cfg.Interval * 3 / 4
	}
	if cfg.ThoughtLimit <= 0 {
		cfg.ThoughtLimit = 20
	}
	if cfg.MindName == "" {
		cfg.MindName = "Timmy"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Collector{
		cfg:       cfg,
		stream:    stream,
		vector:    vector,
		store:     store,
		sink:      sink,
		logger:    logger,
		startedAt: time.Now().UTC(),
	}
}

// Run drives the tick loop until ctx is cancelled. The first snapshot is
// collected immediately so readers do not wait a full interval for the
// store to become ready.
func (c *Collector) Run(ctx context.Context) {
	c.logger.Info("collector started",
		"interval", c.cfg.Interval,
		"source_timeout", c.cfg.SourceTimeout,
	)

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	c.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("collector stopped")
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Collector) tick(ctx context.Context) {
	snap := c.collect(ctx)
	c.store.Publish(snap)
	if c.sink != nil {
		c.sink.Broadcast(snap)
	}
	c.prev = snap
}

// collect polls both sources concurrently, each under its own timeout, and
// assembles the snapshot from whatever answered.
func (c *Collector) collect(ctx context.Context) *Snapshot {
	var (
		streamObs *source.StreamObservation
		streamErr error
		vectorObs *source.VectorObservation
		vectorErr error
	)

	var g errgroup.Group
	g.Go(func() error {
		sctx, cancel := context.WithTimeout(ctx, c.cfg.SourceTimeout)
		defer cancel()
		streamObs, streamErr = c.stream.Observe(sctx, c.cfg.ThoughtLimit)
		return nil
	})
	g.Go(func() error {
		vctx, cancel := context.WithTimeout(ctx, c.cfg.SourceTimeout)
		defer cancel()
		vectorObs, vectorErr = c.vector.Observe(vctx)
		return nil
	})
	_ = g.Wait()

	now := time.Now().UTC()
	snap := &Snapshot{
		Timestamp: now,
		Identity: Identity{
			Name:          c.cfg.MindName,
			UptimeSeconds: int64(now.Sub(c.startedAt).Seconds()),
		},
		Emotional: Emotional{Arousal: 0.5, Dominance: 0.5},
		Actors:    map[string]ActorStatus{},
	}

	c.applyStream(snap, streamObs, streamErr)
	c.applyVector(snap, vectorObs, vectorErr)
	deriveEmotional(&snap.Emotional)
	snap.Cognitive.CurrentCycle = snap.Identity.SessionThoughts

	return snap
}

func (c *Collector) applyStream(snap *Snapshot, obs *source.StreamObservation, err error) {
	if err != nil || obs == nil {
		snap.Stale.Stream = true
		if c.prev != nil {
			snap.Identity.SessionThoughts = c.prev.Identity.SessionThoughts
			snap.RecentThoughts = c.prev.RecentThoughts
			snap.Actors = c.prev.Actors
			snap.Emotional.Valence = c.prev.Emotional.Valence
			snap.Emotional.Arousal = c.prev.Emotional.Arousal
		} else {
			for _, name := range KnownActors {
				snap.Actors[name] = ActorStatus{}
			}
		}
		if !c.streamDown {
			c.logger.Warn("thought stream unavailable, carrying stale fields", "error", err)
			c.streamDown = true
		}
		return
	}
	if c.streamDown {
		c.logger.Info("thought stream recovered")
		c.streamDown = false
	}

	snap.Identity.SessionThoughts = obs.SessionThoughts

	thoughts := make([]Thought, 0, len(obs.Thoughts))
	for _, rec := range obs.Thoughts {
		thoughts = append(thoughts, Thought{
			ID:             rec.ID,
			ContentPreview: rec.ContentPreview,
			Salience:       clamp01(rec.Salience),
			Timestamp:      rec.Timestamp,
		})
	}
	snap.RecentThoughts = thoughts

	// The newest thought drives the emotional primitives. An empty stream
	// reads as neutral, not as the previous mood.
	if len(obs.Thoughts) > 0 {
		snap.Emotional.Valence = clamp(obs.Thoughts[0].Valence, -1, 1)
		snap.Emotional.Arousal = clamp01(obs.Thoughts[0].Arousal)
	}

	for _, name := range KnownActors {
		snap.Actors[name] = ActorStatus{}
	}
	for name, status := range obs.Actors {
		snap.Actors[name] = ActorStatus{Alive: status.Alive, RestartCount: status.RestartCount}
	}

	if obs.Malformed > 0 {
		c.logger.Debug("dropped malformed stream entries", "count", obs.Malformed)
	}
}

func (c *Collector) applyVector(snap *Snapshot, obs *source.VectorObservation, err error) {
	if err != nil || obs == nil {
		snap.Stale.Vector = true
		if c.prev != nil {
			snap.Identity.LifetimeThoughts = c.prev.Identity.LifetimeThoughts
			snap.Identity.RestartCount = c.prev.Identity.RestartCount
			snap.Cognitive.ConsciousMemories = c.prev.Cognitive.ConsciousMemories
			snap.Cognitive.UnconsciousMemories = c.prev.Cognitive.UnconsciousMemories
			snap.Cognitive.LifetimeDreams = c.prev.Cognitive.LifetimeDreams
		}
		if !c.vectorDown {
			c.logger.Warn("vector store unavailable, carrying stale fields", "error", err)
			c.vectorDown = true
		}
		return
	}
	if c.vectorDown {
		c.logger.Info("vector store recovered")
		c.vectorDown = false
	}

	snap.Identity.LifetimeThoughts = obs.Identity.LifetimeThoughts
	snap.Identity.RestartCount = obs.Identity.RestartCount
	snap.Cognitive.ConsciousMemories = obs.ConsciousMemories
	snap.Cognitive.UnconsciousMemories = obs.UnconsciousMemories
	snap.Cognitive.LifetimeDreams = obs.Identity.LifetimeDreams
}

// deriveEmotional recomputes the derived affect fields from the current
// primitives: intensity is abs(valence) * arousal, and connection drive
// warms with positive valence from a neutral 0.5 baseline.
func deriveEmotional(e *Emotional) {
	e.EmotionalIntensity = math.Abs(e.Valence) * e.Arousal
	e.ConnectionDrive = clamp01(0.5 + e.Valence/2)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}
