// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package server

import (
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	nurseryerr "github.com/daneel-ai/nursery/pkg/errors"
)

// RateLimitConfig configures per-IP rate limiting. The zero value
// disables limiting, which is the default for a read-only observer.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate per IP. Zero
	// disables limiting.
	RequestsPerSecond float64
	// Burst is the maximum burst size per IP.
	Burst int
	// MaxVisitors caps how many unique IPs are tracked concurrently; the
	// oldest entries are evicted during cleanup beyond it. Default 10000.
	MaxVisitors int
}

// Validate checks the RateLimitConfig and applies defaults.
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerSecond < 0 {
		return nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue,
			"rate limit requests per second must not be negative (got %g)", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue,
			"rate limit burst must be positive when rate is set (got burst=%d, rate=%g)",
			c.Burst, c.RequestsPerSecond)
	}
	if c.MaxVisitors < 0 {
		return nurseryerr.Errorf(nurseryerr.CodeConfigValidateInvalidValue,
			"rate limit max visitors must not be negative (got %d)", c.MaxVisitors)
	}
	if c.MaxVisitors == 0 {
		c.MaxVisitors = 10000
	}
	return nil
}

type visitor struct {
	tokens     float64
	lastSeen   time.Time
	lastRefill time.Time
}

type ipLimiter struct {
	cfg RateLimitConfig

	mu       sync.Mutex
	visitors map[string]*visitor
}

// allow refills the visitor's token bucket for the elapsed time and takes
// one token if available.
func (l *ipLimiter) allow(ip string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{tokens: float64(l.cfg.Burst), lastRefill: now}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	v.tokens += now.Sub(v.lastRefill).Seconds() * l.cfg.RequestsPerSecond
	if burst := float64(l.cfg.Burst); v.tokens > burst {
		v.tokens = burst
	}
	v.lastRefill = now

	if v.tokens < 1 {
		return false
	}
	v.tokens--
	return true
}

// sweep drops visitors idle past the threshold and enforces the
// MaxVisitors cap by evicting the oldest remaining entries.
func (l *ipLimiter) sweep(now time.Time) {
	const staleThreshold = 10 * time.Minute

	l.mu.Lock()
	defer l.mu.Unlock()

	type entry struct {
		ip       string
		lastSeen time.Time
	}
	entries := make([]entry, 0, len(l.visitors))
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > staleThreshold {
			delete(l.visitors, ip)
		} else {
			entries = append(entries, entry{ip: ip, lastSeen: v.lastSeen})
		}
	}

	if l.cfg.MaxVisitors > 0 && len(entries) > l.cfg.MaxVisitors {
		slices.SortFunc(entries, func(a, b entry) int {
			return a.lastSeen.Compare(b.lastSeen)
		})
		toEvict := len(entries) - l.cfg.MaxVisitors
		for i := 0; i < toEvict; i++ {
			delete(l.visitors, entries[i].ip)
		}
		slog.Warn("rate limiter visitor map cap enforced",
			"evicted", toEvict, "max_visitors", l.cfg.MaxVisitors, "remaining", len(l.visitors))
	}
}

// rateLimitMiddleware returns middleware enforcing per-IP rate limits, or
// a pass-through when cfg.RequestsPerSecond is zero. The done channel
// stops the cleanup goroutine on shutdown.
func rateLimitMiddleware(cfg RateLimitConfig, done <-chan struct{}) func(http.Handler) http.Handler {
	if cfg.RequestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	limiter := &ipLimiter{cfg: cfg, visitors: make(map[string]*visitor)}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				limiter.sweep(time.Now())
			case <-done:
				return
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Strip the port so the limit applies per IP, not per
			// connection; ephemeral ports would otherwise each get their
			// own bucket.
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			if !limiter.allow(ip) {
				slog.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				if _, err := w.Write([]byte(`{"error":"rate limit exceeded"}`)); err != nil {
					slog.Warn("failed to write rate limit response", "error", err)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
