// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package sqlite_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daneel-ai/nursery/internal/source"
	"github.com/daneel-ai/nursery/internal/source/sqlite"
)

// testDBPath returns a temp SQLite database path.
func testDBPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "nursery-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "mind.db")
}

// seedMindDB creates the schema the observed mind writes and fills it with
// fixtures. The observer itself never migrates, so tests play the mind's
// role here.
func seedMindDB(t *testing.T, path string) {
	t.Helper()

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	ddl := []string{
		`CREATE TABLE thoughts (
			id         TEXT PRIMARY KEY,
			content    TEXT,
			importance REAL,
			valence    REAL,
			arousal    REAL,
			created_at INTEGER
		)`,
		`CREATE TABLE actors (
			name          TEXT PRIMARY KEY,
			alive         INTEGER NOT NULL,
			restart_count INTEGER NOT NULL
		)`,
		`CREATE TABLE identity (
			lifetime_thoughts INTEGER NOT NULL,
			lifetime_dreams   INTEGER NOT NULL,
			restart_count     INTEGER NOT NULL
		)`,
		`CREATE VIRTUAL TABLE memories USING vec0(id TEXT PRIMARY KEY, embedding float[4])`,
		`CREATE VIRTUAL TABLE unconscious USING vec0(id TEXT PRIMARY KEY, embedding float[4])`,
		`CREATE TABLE memory_metadata (
			id         TEXT PRIMARY KEY,
			salience   REAL,
			encoded_at INTEGER
		)`,
	}
	for _, q := range ddl {
		_, err := db.Exec(q)
		require.NoError(t, err)
	}

	thoughts := []struct {
		id      string
		content string
		imp     float64
		val     float64
		aro     float64
		at      int64
	}{
		{"t-1", `{"Symbol":{"id":"thought_old"}}`, 0.3, 0.1, 0.4, 1000},
		{"t-2", `{"Symbol":{"id":"thought_mid"}}`, 0.5, -0.2, 0.6, 2000},
		{"t-3", `{"Symbol":{"id":"thought_new"}}`, 0.9, 0.7, 0.8, 3000},
	}
	for _, th := range thoughts {
		_, err := db.Exec(
			`INSERT INTO thoughts (id, content, importance, valence, arousal, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			th.id, th.content, th.imp, th.val, th.aro, th.at,
		)
		require.NoError(t, err)
	}

	_, err = db.Exec(`INSERT INTO actors (name, alive, restart_count) VALUES
		('MemoryActor', 1, 0), ('AttentionActor', 0, 3)`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO identity (lifetime_thoughts, lifetime_dreams, restart_count) VALUES (12345, 17, 4)`)
	require.NoError(t, err)

	embeddings := []struct {
		id  string
		vec []float32
		sal float64
		at  int64
	}{
		{"m-1", []float32{1, 0, 0, 0}, 0.8, 5000},
		{"m-2", []float32{0, 1, 0, 0}, 0.6, 6000},
	}
	for _, m := range embeddings {
		blob, err := sqlite_vec.SerializeFloat32(m.vec)
		require.NoError(t, err)
		_, err = db.Exec(`INSERT INTO memories (id, embedding) VALUES (?, ?)`, m.id, blob)
		require.NoError(t, err)
		_, err = db.Exec(`INSERT INTO memory_metadata (id, salience, encoded_at) VALUES (?, ?, ?)`, m.id, m.sal, m.at)
		require.NoError(t, err)
	}

	blob, err := sqlite_vec.SerializeFloat32([]float32{0, 0, 1, 0})
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO unconscious (id, embedding) VALUES ('u-1', ?)`, blob)
	require.NoError(t, err)
}

func TestStreamSource_Observe(t *testing.T) {
	path := testDBPath(t)
	seedMindDB(t, path)

	src, err := sqlite.NewStreamSource(path)
	require.NoError(t, err)
	defer src.Close()

	obs, err := src.Observe(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, int64(3), obs.SessionThoughts)
	require.Len(t, obs.Thoughts, 2)

	// Newest first.
	assert.Equal(t, "t-3", obs.Thoughts[0].ID)
	assert.Equal(t, "thought_new", obs.Thoughts[0].ContentPreview)
	assert.InDelta(t, 0.9, obs.Thoughts[0].Salience, 1e-9)
	assert.InDelta(t, 0.7, obs.Thoughts[0].Valence, 1e-9)
	assert.Equal(t, time.UnixMilli(3000).UTC(), obs.Thoughts[0].Timestamp)
	assert.Equal(t, "t-2", obs.Thoughts[1].ID)

	require.Len(t, obs.Actors, 2)
	assert.Equal(t, source.ActorStatus{Alive: true, RestartCount: 0}, obs.Actors["MemoryActor"])
	assert.Equal(t, source.ActorStatus{Alive: false, RestartCount: 3}, obs.Actors["AttentionActor"])
	assert.Zero(t, obs.Malformed)
}

func TestStreamSource_ObserveMissingSchemaFails(t *testing.T) {
	path := testDBPath(t)

	// A database file with no tables at all.
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE unrelated (x INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	src, err := sqlite.NewStreamSource(path)
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Observe(context.Background(), 10)
	assert.Error(t, err)
}

func TestVectorSource_Observe(t *testing.T) {
	path := testDBPath(t)
	seedMindDB(t, path)

	src, err := sqlite.NewVectorSource(path)
	require.NoError(t, err)
	defer src.Close()

	obs, err := src.Observe(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(2), obs.ConsciousMemories)
	assert.Equal(t, uint64(1), obs.UnconsciousMemories)
	assert.Equal(t, int64(12345), obs.Identity.LifetimeThoughts)
	assert.Equal(t, int64(17), obs.Identity.LifetimeDreams)
	assert.Equal(t, int64(4), obs.Identity.RestartCount)
}

func TestVectorSource_ObserveEmptyIdentityYieldsZeroCounters(t *testing.T) {
	path := testDBPath(t)
	seedMindDB(t, path)

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`DELETE FROM identity`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	src, err := sqlite.NewVectorSource(path)
	require.NoError(t, err)
	defer src.Close()

	obs, err := src.Observe(context.Background())
	require.NoError(t, err)
	assert.Zero(t, obs.Identity.LifetimeThoughts)
	assert.Zero(t, obs.Identity.RestartCount)
}

func TestVectorSource_Sample(t *testing.T) {
	path := testDBPath(t)
	seedMindDB(t, path)

	src, err := sqlite.NewVectorSource(path)
	require.NoError(t, err)
	defer src.Close()

	samples, err := src.Sample(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, samples, 2)

	// Most recently encoded first.
	assert.Equal(t, "m-2", samples[0].ID)
	assert.Equal(t, []float32{0, 1, 0, 0}, samples[0].Embedding)
	assert.InDelta(t, 0.6, samples[0].Salience, 1e-9)
	assert.Equal(t, time.UnixMilli(6000).UTC(), samples[0].RecordedAt)

	assert.Equal(t, "m-1", samples[1].ID)
	assert.Equal(t, []float32{1, 0, 0, 0}, samples[1].Embedding)
}

func TestVectorSource_SampleRespectsLimit(t *testing.T) {
	path := testDBPath(t)
	seedMindDB(t, path)

	src, err := sqlite.NewVectorSource(path)
	require.NoError(t, err)
	defer src.Close()

	samples, err := src.Sample(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, samples, 1)
}

func TestSourcesAreReadOnly(t *testing.T) {
	path := testDBPath(t)
	seedMindDB(t, path)

	src, err := sqlite.NewStreamSource(path)
	require.NoError(t, err)
	defer src.Close()

	// Trigger the lazy open so the read-only mode is established.
	_, err = src.Observe(context.Background(), 1)
	require.NoError(t, err)

	// The observed file must be untouched by observation: re-open as the
	// mind and confirm the data is intact and writable by its owner.
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM thoughts`).Scan(&n))
	assert.Equal(t, 3, n)
}

func TestFactoryRegistersSQLiteBackends(t *testing.T) {
	path := testDBPath(t)
	seedMindDB(t, path)

	cfg := &source.Settings{
		StreamBackend: "sqlite",
		VectorBackend: "sqlite",
		SQLitePath:    path,
	}

	ss, err := source.NewStreamSource(cfg)
	require.NoError(t, err)
	require.NoError(t, ss.Close())

	vs, err := source.NewVectorSource(cfg)
	require.NoError(t, err)
	require.NoError(t, vs.Close())
}
