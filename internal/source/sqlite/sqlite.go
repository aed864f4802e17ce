// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

// Package sqlite observes a fully-local mind that keeps its state in a
// single SQLite database: a thoughts table and actors table for the stream
// side, vec0 virtual tables for the embedding side, and a one-row identity
// table for lifetime counters. The observer opens the database read-only
// and never migrates it; schema belongs to the mind.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"math"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/daneel-ai/nursery/internal/source"
	nurseryerr "github.com/daneel-ai/nursery/pkg/errors"
)

func init() {
	sqlite_vec.Auto()

	source.RegisterStreamBackend("sqlite", func(cfg *source.Settings) (source.StreamSource, error) {
		return NewStreamSource(cfg.SQLitePath)
	})
	source.RegisterVectorBackend("sqlite", func(cfg *source.Settings) (source.VectorSource, error) {
		return NewVectorSource(cfg.SQLitePath)
	})
}

// openReadOnly opens the observed database without touching it. sql.Open
// is lazy, so a missing or locked file surfaces on the first poll rather
// than at startup.
func openReadOnly(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, nurseryerr.Wrapf(err, nurseryerr.CodeSourceConnectFailure, "opening sqlite db %s", dbPath)
	}
	return db, nil
}

// Compile-time interface checks.
var (
	_ source.StreamSource = (*StreamSource)(nil)
	_ source.VectorSource = (*VectorSource)(nil)
)

// StreamSource implements source.StreamSource over a local mind database.
type StreamSource struct {
	db *sql.DB
}

// NewStreamSource opens the mind database at dbPath for stream observation.
func NewStreamSource(dbPath string) (*StreamSource, error) {
	db, err := openReadOnly(dbPath)
	if err != nil {
		return nil, err
	}
	return &StreamSource{db: db}, nil
}

// Observe reads the thought count, recent thoughts and actor heartbeats.
func (s *StreamSource) Observe(ctx context.Context, thoughtLimit int) (*source.StreamObservation, error) {
	obs := &source.StreamObservation{
		Actors: map[string]source.ActorStatus{},
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM thoughts`).Scan(&obs.SessionThoughts); err != nil {
		return nil, nurseryerr.Wrap(err, nurseryerr.CodeSourceStreamObserveUnavailable, "counting thoughts")
	}

	const thoughtsQ = `SELECT id, content, importance, valence, arousal, created_at
FROM thoughts
ORDER BY created_at DESC, rowid DESC
LIMIT ?`

	rows, err := s.db.QueryContext(ctx, thoughtsQ, thoughtLimit)
	if err != nil {
		return nil, nurseryerr.Wrap(err, nurseryerr.CodeSourceStreamObserveUnavailable, "reading recent thoughts")
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			id        string
			content   sql.NullString
			imp       sql.NullFloat64
			valence   sql.NullFloat64
			arousal   sql.NullFloat64
			createdMS sql.NullInt64
		)
		if err := rows.Scan(&id, &content, &imp, &valence, &arousal, &createdMS); err != nil {
			obs.Malformed++
			continue
		}
		if !content.Valid {
			obs.Malformed++
			continue
		}

		rec := source.ThoughtRecord{
			ID:             id,
			ContentPreview: source.PreviewFromContent(content.String),
			Salience:       0.5,
			Arousal:        0.5,
		}
		if imp.Valid {
			rec.Salience = imp.Float64
		}
		if valence.Valid {
			rec.Valence = valence.Float64
		}
		if arousal.Valid {
			rec.Arousal = arousal.Float64
		}
		if createdMS.Valid {
			rec.Timestamp = time.UnixMilli(createdMS.Int64).UTC()
		}
		obs.Thoughts = append(obs.Thoughts, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nurseryerr.Wrap(err, nurseryerr.CodeSourceStreamObserveUnavailable, "iterating thoughts")
	}

	actorRows, err := s.db.QueryContext(ctx, `SELECT name, alive, restart_count FROM actors`)
	if err != nil {
		return nil, nurseryerr.Wrap(err, nurseryerr.CodeSourceStreamObserveUnavailable, "reading actor heartbeats")
	}
	defer func() { _ = actorRows.Close() }()

	for actorRows.Next() {
		var (
			name     string
			alive    bool
			restarts int
		)
		if err := actorRows.Scan(&name, &alive, &restarts); err != nil {
			obs.Malformed++
			continue
		}
		obs.Actors[name] = source.ActorStatus{Alive: alive, RestartCount: restarts}
	}
	if err := actorRows.Err(); err != nil {
		return nil, nurseryerr.Wrap(err, nurseryerr.CodeSourceStreamObserveUnavailable, "iterating actor heartbeats")
	}

	return obs, nil
}

// Close closes the underlying database connection.
func (s *StreamSource) Close() error {
	return nurseryerr.Wrap(s.db.Close(), nurseryerr.CodeSourceCloseFailure, "closing stream source")
}

// VectorSource implements source.VectorSource over a local mind database.
type VectorSource struct {
	db *sql.DB
}

// NewVectorSource opens the mind database at dbPath for vector observation.
func NewVectorSource(dbPath string) (*VectorSource, error) {
	db, err := openReadOnly(dbPath)
	if err != nil {
		return nil, err
	}
	return &VectorSource{db: db}, nil
}

// Observe reads both memory table sizes and the identity counters.
func (v *VectorSource) Observe(ctx context.Context) (*source.VectorObservation, error) {
	obs := &source.VectorObservation{}

	if err := v.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&obs.ConsciousMemories); err != nil {
		return nil, nurseryerr.Wrap(err, nurseryerr.CodeSourceVectorObserveUnavailable, "counting conscious memories")
	}
	if err := v.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM unconscious`).Scan(&obs.UnconsciousMemories); err != nil {
		return nil, nurseryerr.Wrap(err, nurseryerr.CodeSourceVectorObserveUnavailable, "counting unconscious memories")
	}

	// A newborn mind has not written its identity row yet; that is not an
	// error.
	const identityQ = `SELECT lifetime_thoughts, lifetime_dreams, restart_count FROM identity LIMIT 1`
	err := v.db.QueryRowContext(ctx, identityQ).Scan(
		&obs.Identity.LifetimeThoughts,
		&obs.Identity.LifetimeDreams,
		&obs.Identity.RestartCount,
	)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, nurseryerr.Wrap(err, nurseryerr.CodeSourceVectorObserveUnavailable, "reading identity counters")
	}

	return obs, nil
}

// Sample reads up to limit embeddings with their salience and encoded-at
// metadata. Vectors come back as stored; dimensionality is the projection
// engine's concern.
func (v *VectorSource) Sample(ctx context.Context, limit int) ([]source.MemorySample, error) {
	const q = `SELECT m.id, m.embedding, COALESCE(meta.salience, 0.5), meta.encoded_at
FROM memories m
LEFT JOIN memory_metadata meta ON meta.id = m.id
ORDER BY meta.encoded_at DESC
LIMIT ?`

	rows, err := v.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, nurseryerr.Wrap(err, nurseryerr.CodeSourceVectorSampleUnavailable, "sampling memory embeddings")
	}
	defer func() { _ = rows.Close() }()

	var samples []source.MemorySample
	for rows.Next() {
		var (
			id        string
			blob      []byte
			salience  float64
			encodedMS sql.NullInt64
		)
		if err := rows.Scan(&id, &blob, &salience, &encodedMS); err != nil {
			return nil, nurseryerr.Wrap(err, nurseryerr.CodeSourceVectorSampleUnavailable, "scanning memory sample")
		}

		sample := source.MemorySample{
			ID:        id,
			Embedding: deserializeFloat32(blob),
			Salience:  salience,
		}
		if encodedMS.Valid {
			sample.RecordedAt = time.UnixMilli(encodedMS.Int64).UTC()
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, nurseryerr.Wrap(err, nurseryerr.CodeSourceVectorSampleUnavailable, "iterating memory samples")
	}

	return samples, nil
}

// Close closes the underlying database connection.
func (v *VectorSource) Close() error {
	return nurseryerr.Wrap(v.db.Close(), nurseryerr.CodeSourceCloseFailure, "closing vector source")
}

// deserializeFloat32 decodes the little-endian float32 blob format used by
// vec0 embedding columns.
func deserializeFloat32(blob []byte) []float32 {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil
	}
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out
}
