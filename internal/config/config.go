// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package config

import (
	"errors"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	nurseryerr "github.com/daneel-ai/nursery/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the top-level nursery configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Stream     StreamConfig     `mapstructure:"stream"`
	Vector     VectorConfig     `mapstructure:"vector"`
	SQLite     SQLiteConfig     `mapstructure:"sqlite"`
	Snapshot   SnapshotConfig   `mapstructure:"snapshot"`
	Projection ProjectionConfig `mapstructure:"projection"`
	Identity   IdentityConfig   `mapstructure:"identity"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig controls how the observation gateway listens for connections.
type ServerConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	// RateLimitRPS throttles HTTP requests per client IP. Zero disables
	// limiting, the default for an observer that serves trusted dashboards.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// StreamConfig locates the observed mind's episodic thought stream.
type StreamConfig struct {
	Backend   string `mapstructure:"backend"`
	URL       string `mapstructure:"url"`
	AwakeKey  string `mapstructure:"awake_key"`
	ActorsKey string `mapstructure:"actors_key"`
}

// VectorConfig locates the observed mind's embedding store.
type VectorConfig struct {
	Backend               string `mapstructure:"backend"`
	URL                   string `mapstructure:"url"`
	MemoriesCollection    string `mapstructure:"memories_collection"`
	UnconsciousCollection string `mapstructure:"unconscious_collection"`
	IdentityCollection    string `mapstructure:"identity_collection"`
	IdentityPointID       string `mapstructure:"identity_point_id"`
}

// SQLiteConfig holds the database path for the sqlite source backend.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// SnapshotConfig controls the collector cadence.
type SnapshotConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	SourceTimeout time.Duration `mapstructure:"source_timeout"`
	ThoughtLimit  int           `mapstructure:"thought_limit"`
}

// ProjectionConfig controls the 3-D point cloud refresh.
type ProjectionConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	SampleLimit int           `mapstructure:"sample_limit"`
	Dimensions  int           `mapstructure:"dimensions"`
	Mode        string        `mapstructure:"mode"`
	Seed        int64         `mapstructure:"seed"`
}

// IdentityConfig names the observed mind.
type IdentityConfig struct {
	Name string `mapstructure:"name"`
}

// LogConfig controls logging verbosity.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix NURSERY_).
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.listen", "0.0.0.0:3000")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit_rps", 0)
	v.SetDefault("server.rate_limit_burst", 0)
	v.SetDefault("stream.backend", "redis")
	v.SetDefault("stream.url", "redis://localhost:6379")
	v.SetDefault("stream.awake_key", "daneel:stream:awake")
	v.SetDefault("stream.actors_key", "daneel:actors")
	v.SetDefault("vector.backend", "qdrant")
	v.SetDefault("vector.url", "localhost:6334")
	v.SetDefault("vector.memories_collection", "memories")
	v.SetDefault("vector.unconscious_collection", "unconscious")
	v.SetDefault("vector.identity_collection", "identity")
	v.SetDefault("vector.identity_point_id", "00000000-0000-0000-0000-000000000001")
	v.SetDefault("snapshot.interval", "200ms")
	v.SetDefault("snapshot.source_timeout", "150ms")
	v.SetDefault("snapshot.thought_limit", 20)
	v.SetDefault("projection.interval", "2s")
	v.SetDefault("projection.sample_limit", 256)
	v.SetDefault("projection.dimensions", 768)
	v.SetDefault("projection.mode", "random")
	v.SetDefault("projection.seed", 42)
	v.SetDefault("identity.name", "Timmy")
	v.SetDefault("log.level", "info")

	// Environment
	v.SetEnvPrefix("NURSERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, nurseryerr.Errorf(nurseryerr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nurseryerr.Errorf(nurseryerr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors.
// It returns a slice of all validation errors found, collecting all issues
// rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateStream()...)
	errs = append(errs, c.validateVector()...)
	errs = append(errs, c.validateSnapshot()...)
	errs = append(errs, c.validateProjection()...)
	errs = append(errs, c.validateLog()...)

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue, "config: server.listen must not be empty"))
	} else {
		host, portStr, err := net.SplitHostPort(c.Server.Listen)
		if err != nil {
			errs = append(errs, nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue,
				"config: server.listen must be a valid host:port address, got %q: %w",
				c.Server.Listen, err,
			))
		} else {
			_ = host // host can be empty (e.g., ":3000"), which is valid
			port, err := strconv.Atoi(portStr)
			if err != nil {
				errs = append(errs, nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue,
					"config: server.listen port must be a number, got %q",
					portStr,
				))
			} else if port < 1 || port > 65535 {
				errs = append(errs, nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue,
					"config: server.listen port must be between 1 and 65535, got %d",
					port,
				))
			}
		}
	}

	for i, origin := range c.Server.CORSOrigins {
		if strings.TrimSpace(origin) == "" {
			errs = append(errs, nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue,
				"config: server.cors_origins[%d] must not be empty", i,
			))
		}
	}

	if c.Server.RateLimitRPS < 0 {
		errs = append(errs, nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue,
			"config: server.rate_limit_rps must not be negative, got %g",
			c.Server.RateLimitRPS,
		))
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst <= 0 {
		errs = append(errs, nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue,
			"config: server.rate_limit_burst must be positive when rate_limit_rps is set, got %d",
			c.Server.RateLimitBurst,
		))
	}

	return errs
}

func (c *Config) validateStream() []error {
	var errs []error

	validBackends := map[string]bool{"redis": true, "sqlite": true}
	if !validBackends[c.Stream.Backend] {
		errs = append(errs, nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue,
			"config: stream.backend must be one of [redis, sqlite], got %q",
			c.Stream.Backend,
		))
	}

	if c.Stream.Backend == "redis" && c.Stream.URL == "" {
		errs = append(errs, nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue, "config: stream.url must not be empty"))
	}
	if c.Stream.Backend == "sqlite" && c.SQLite.Path == "" {
		errs = append(errs, nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue, "config: sqlite.path must be set when stream.backend is sqlite"))
	}

	if c.Stream.AwakeKey == "" {
		errs = append(errs, nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue, "config: stream.awake_key must not be empty"))
	}
	if c.Stream.ActorsKey == "" {
		errs = append(errs, nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue, "config: stream.actors_key must not be empty"))
	}

	return errs
}

func (c *Config) validateVector() []error {
	var errs []error

	validBackends := map[string]bool{"qdrant": true, "sqlite": true}
	if !validBackends[c.Vector.Backend] {
		errs = append(errs, nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue,
			"config: vector.backend must be one of [qdrant, sqlite], got %q",
			c.Vector.Backend,
		))
	}

	if c.Vector.Backend == "qdrant" && c.Vector.URL == "" {
		errs = append(errs, nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue, "config: vector.url must not be empty"))
	}
	if c.Vector.Backend == "sqlite" && c.SQLite.Path == "" {
		errs = append(errs, nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue, "config: sqlite.path must be set when vector.backend is sqlite"))
	}

	for _, col := range []struct {
		key   string
		value string
	}{
		{"vector.memories_collection", c.Vector.MemoriesCollection},
		{"vector.unconscious_collection", c.Vector.UnconsciousCollection},
		{"vector.identity_collection", c.Vector.IdentityCollection},
		{"vector.identity_point_id", c.Vector.IdentityPointID},
	} {
		if col.value == "" {
			errs = append(errs, nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue,
				"config: %s must not be empty", col.key,
			))
		}
	}

	return errs
}

func (c *Config) validateSnapshot() []error {
	var errs []error

	if c.Snapshot.Interval <= 0 {
		errs = append(errs, nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue,
			"config: snapshot.interval must be greater than 0, got %s",
			c.Snapshot.Interval,
		))
	}

	if c.Snapshot.SourceTimeout <= 0 {
		errs = append(errs, nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue,
			"config: snapshot.source_timeout must be greater than 0, got %s",
			c.Snapshot.SourceTimeout,
		))
	}

	// A poll that can outlive its tick would stack requests against a store
	// that is already struggling.
	if c.Snapshot.Interval > 0 && c.Snapshot.SourceTimeout >= c.Snapshot.Interval {
		errs = append(errs, nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue,
			"config: snapshot.source_timeout (%s) must be less than snapshot.interval (%s)",
			c.Snapshot.SourceTimeout, c.Snapshot.Interval,
		))
	}

	if c.Snapshot.ThoughtLimit < 1 || c.Snapshot.ThoughtLimit > 100 {
		errs = append(errs, nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue,
			"config: snapshot.thought_limit must be between 1 and 100, got %d",
			c.Snapshot.ThoughtLimit,
		))
	}

	return errs
}

func (c *Config) validateProjection() []error {
	var errs []error

	if c.Projection.Interval <= 0 {
		errs = append(errs, nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue,
			"config: projection.interval must be greater than 0, got %s",
			c.Projection.Interval,
		))
	}

	if c.Projection.SampleLimit <= 0 {
		errs = append(errs, nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue,
			"config: projection.sample_limit must be greater than 0, got %d",
			c.Projection.SampleLimit,
		))
	}

	if c.Projection.Dimensions <= 3 {
		errs = append(errs, nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue,
			"config: projection.dimensions must be greater than 3, got %d",
			c.Projection.Dimensions,
		))
	}

	validModes := map[string]bool{"random": true, "pca": true}
	if !validModes[c.Projection.Mode] {
		errs = append(errs, nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue,
			"config: projection.mode must be one of [random, pca], got %q",
			c.Projection.Mode,
		))
	}

	return errs
}

func (c *Config) validateLog() []error {
	var errs []error

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue,
			"config: log.level must be one of [debug, info, warn, error], got %q",
			c.Log.Level,
		))
	}

	return errs
}

// SlogLevel maps the configured level name to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
