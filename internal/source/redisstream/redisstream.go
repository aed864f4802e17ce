// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

// Package redisstream observes a mind whose episodic stream lives in Redis:
// an append-only stream of awake thoughts plus a hash of actor heartbeats.
package redisstream

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/daneel-ai/nursery/internal/source"
	nurseryerr "github.com/daneel-ai/nursery/pkg/errors"
)

func init() {
	source.RegisterStreamBackend("redis", func(cfg *source.Settings) (source.StreamSource, error) {
		return New(cfg.StreamURL, cfg.AwakeKey, cfg.ActorsKey)
	})
}

// Compile-time interface check.
var _ source.StreamSource = (*StreamSource)(nil)

// StreamSource implements source.StreamSource over a Redis connection.
type StreamSource struct {
	client    *redis.Client
	awakeKey  string
	actorsKey string
}

// New creates a stream source for the given redis:// URL. The connection is
// established lazily; an unreachable server surfaces on Observe, not here,
// so the observer can start while the mind is down.
func New(url, awakeKey, actorsKey string) (*StreamSource, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nurseryerr.Wrapf(err, nurseryerr.CodeConfigValidateInvalidValue, "parsing stream url %q", url)
	}

	return &StreamSource{
		client:    redis.NewClient(opts),
		awakeKey:  awakeKey,
		actorsKey: actorsKey,
	}, nil
}

// Observe pipelines the three reads (stream length, recent entries, actor
// heartbeats) into one round trip.
func (s *StreamSource) Observe(ctx context.Context, thoughtLimit int) (*source.StreamObservation, error) {
	pipe := s.client.Pipeline()
	lenCmd := pipe.XLen(ctx, s.awakeKey)
	entriesCmd := pipe.XRevRangeN(ctx, s.awakeKey, "+", "-", int64(thoughtLimit))
	actorsCmd := pipe.HGetAll(ctx, s.actorsKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, nurseryerr.Wrap(err, nurseryerr.CodeSourceStreamObserveUnavailable,
			"polling thought stream",
			nurseryerr.FieldStreamKey(s.awakeKey),
		)
	}

	obs := &source.StreamObservation{
		SessionThoughts: lenCmd.Val(),
		Actors:          map[string]source.ActorStatus{},
	}

	entries := entriesCmd.Val()
	obs.Thoughts = make([]source.ThoughtRecord, 0, len(entries))
	for _, msg := range entries {
		rec, ok := decodeThought(msg)
		if !ok {
			obs.Malformed++
			continue
		}
		obs.Thoughts = append(obs.Thoughts, rec)
	}

	for name, raw := range actorsCmd.Val() {
		var status source.ActorStatus
		if err := json.Unmarshal([]byte(raw), &status); err != nil {
			obs.Malformed++
			continue
		}
		obs.Actors[name] = status
	}

	return obs, nil
}

// Close releases the Redis connection.
func (s *StreamSource) Close() error {
	return nurseryerr.Wrap(s.client.Close(), nurseryerr.CodeSourceCloseFailure, "closing stream source")
}

// decodeThought turns one stream entry into a ThoughtRecord. An entry with
// no usable content field cannot be displayed and is dropped; salience
// problems degrade to neutral defaults instead.
func decodeThought(msg redis.XMessage) (source.ThoughtRecord, bool) {
	raw, ok := msg.Values["content"].(string)
	if !ok {
		return source.ThoughtRecord{}, false
	}

	rec := source.ThoughtRecord{
		ID:             msg.ID,
		ContentPreview: source.PreviewFromContent(raw),
		Salience:       0.5,
		Valence:        0.0,
		Arousal:        0.5,
		Timestamp:      timestampFromStreamID(msg.ID),
	}

	if salienceRaw, ok := msg.Values["salience"].(string); ok {
		var sal struct {
			Importance *float64 `json:"importance"`
			Valence    *float64 `json:"valence"`
			Arousal    *float64 `json:"arousal"`
		}
		if err := json.Unmarshal([]byte(salienceRaw), &sal); err == nil {
			if sal.Importance != nil {
				rec.Salience = *sal.Importance
			}
			if sal.Valence != nil {
				rec.Valence = *sal.Valence
			}
			if sal.Arousal != nil {
				rec.Arousal = *sal.Arousal
			}
		}
	}

	return rec, true
}

// timestampFromStreamID recovers the entry time from the stream ID's
// millisecond prefix ("1712345678901-0"). Returns the zero time when the
// ID does not carry one.
func timestampFromStreamID(id string) time.Time {
	msPart, _, found := strings.Cut(id, "-")
	if !found {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(msPart, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
