// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package source

import (
	"sync"

	nurseryerr "github.com/daneel-ai/nursery/pkg/errors"
)

// Settings carries everything a backend needs to construct its sources.
// It mirrors the relevant slice of the application config so backend
// packages do not depend on the config package.
type Settings struct {
	StreamBackend string
	StreamURL     string
	AwakeKey      string
	ActorsKey     string

	VectorBackend         string
	VectorURL             string
	MemoriesCollection    string
	UnconsciousCollection string
	IdentityCollection    string
	IdentityPointID       string

	SQLitePath string
}

// StreamFactory creates a StreamSource for a named backend.
type StreamFactory func(cfg *Settings) (StreamSource, error)

// VectorFactory creates a VectorSource for a named backend.
type VectorFactory func(cfg *Settings) (VectorSource, error)

var (
	streamFactories = map[string]StreamFactory{}
	vectorFactories = map[string]VectorFactory{}
	factoriesMu     sync.RWMutex
)

// RegisterStreamBackend registers a stream source factory under name.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterStreamBackend(name string, f StreamFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	streamFactories[name] = f
}

// RegisterVectorBackend registers a vector source factory under name.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterVectorBackend(name string, f VectorFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	vectorFactories[name] = f
}

// NewStreamSource creates the stream source selected by cfg.StreamBackend,
// defaulting to "redis".
func NewStreamSource(cfg *Settings) (StreamSource, error) {
	backend := cfg.StreamBackend
	if backend == "" {
		backend = "redis"
	}

	factoriesMu.RLock()
	factory, ok := streamFactories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, nurseryerr.Errorf(nurseryerr.CodeSourceBackendUnsupported,
			"unsupported stream backend: %q", backend)
	}

	return factory(cfg)
}

// NewVectorSource creates the vector source selected by cfg.VectorBackend,
// defaulting to "qdrant".
func NewVectorSource(cfg *Settings) (VectorSource, error) {
	backend := cfg.VectorBackend
	if backend == "" {
		backend = "qdrant"
	}

	factoriesMu.RLock()
	factory, ok := vectorFactories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, nurseryerr.Errorf(nurseryerr.CodeSourceBackendUnsupported,
			"unsupported vector backend: %q", backend)
	}

	return factory(cfg)
}
