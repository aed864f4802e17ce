// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

// Package qdrant observes a mind whose memory embeddings live in Qdrant:
// conscious and unconscious collections plus a single identity point
// carrying lifetime counters.
package qdrant

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/daneel-ai/nursery/internal/source"
	nurseryerr "github.com/daneel-ai/nursery/pkg/errors"
)

// maxRecvBytes lifts the gRPC receive limit so a full sample of
// high-dimensional vectors fits in one scroll response.
const maxRecvBytes = 32 * 1024 * 1024

func init() {
	source.RegisterVectorBackend("qdrant", func(cfg *source.Settings) (source.VectorSource, error) {
		return New(cfg)
	})
}

// Compile-time interface check.
var _ source.VectorSource = (*VectorSource)(nil)

// VectorSource implements source.VectorSource over the Qdrant gRPC API.
type VectorSource struct {
	client      *qdrant.Client
	memories    string
	unconscious string
	identity    string
	identityID  string
}

// New creates a vector source for the host:port in cfg.VectorURL. The
// connection is established lazily; an unreachable server surfaces on
// Observe, not here, so the observer can start while the mind is down.
func New(cfg *source.Settings) (*VectorSource, error) {
	host, portStr, err := net.SplitHostPort(cfg.VectorURL)
	if err != nil {
		return nil, nurseryerr.Wrapf(err, nurseryerr.CodeConfigValidateInvalidValue, "parsing vector url %q", cfg.VectorURL)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, nurseryerr.Wrapf(err, nurseryerr.CodeConfigValidateInvalidValue, "parsing vector port %q", portStr)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxRecvBytes)),
		},
	})
	if err != nil {
		return nil, nurseryerr.Wrap(err, nurseryerr.CodeSourceConnectFailure, "creating qdrant client",
			nurseryerr.FieldBackend("qdrant"))
	}

	return &VectorSource{
		client:      client,
		memories:    cfg.MemoriesCollection,
		unconscious: cfg.UnconsciousCollection,
		identity:    cfg.IdentityCollection,
		identityID:  cfg.IdentityPointID,
	}, nil
}

// Observe reads both collection sizes and the identity counters.
func (v *VectorSource) Observe(ctx context.Context) (*source.VectorObservation, error) {
	conscious, err := v.client.Count(ctx, &qdrant.CountPoints{CollectionName: v.memories})
	if err != nil {
		return nil, nurseryerr.Wrap(err, nurseryerr.CodeSourceVectorObserveUnavailable,
			"counting conscious memories", nurseryerr.FieldCollection(v.memories))
	}

	unconscious, err := v.client.Count(ctx, &qdrant.CountPoints{CollectionName: v.unconscious})
	if err != nil {
		return nil, nurseryerr.Wrap(err, nurseryerr.CodeSourceVectorObserveUnavailable,
			"counting unconscious memories", nurseryerr.FieldCollection(v.unconscious))
	}

	counters, err := v.identityCounters(ctx)
	if err != nil {
		return nil, err
	}

	return &source.VectorObservation{
		ConsciousMemories:   conscious,
		UnconsciousMemories: unconscious,
		Identity:            counters,
	}, nil
}

// identityCounters fetches the well-known identity point. A missing point
// yields zero counters; newborn minds have not written one yet.
func (v *VectorSource) identityCounters(ctx context.Context) (source.IdentityCounters, error) {
	points, err := v.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: v.identity,
		Ids:            []*qdrant.PointId{qdrant.NewID(v.identityID)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return source.IdentityCounters{}, nurseryerr.Wrap(err, nurseryerr.CodeSourceVectorObserveUnavailable,
			"fetching identity point", nurseryerr.FieldCollection(v.identity))
	}

	if len(points) == 0 {
		return source.IdentityCounters{}, nil
	}

	payload := points[0].GetPayload()
	return source.IdentityCounters{
		LifetimeThoughts: payloadInt(payload, "lifetime_thought_count"),
		LifetimeDreams:   payloadInt(payload, "lifetime_dream_count"),
		RestartCount:     payloadInt(payload, "restart_count"),
	}, nil
}

// Sample scrolls the conscious collection with vectors and payloads.
// Points are returned as stored; dimensionality is the projection
// engine's concern.
func (v *VectorSource) Sample(ctx context.Context, limit int) ([]source.MemorySample, error) {
	points, err := v.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: v.memories,
		Limit:          qdrant.PtrOf(uint32(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, nurseryerr.Wrap(err, nurseryerr.CodeSourceVectorSampleUnavailable,
			"sampling memory embeddings", nurseryerr.FieldCollection(v.memories))
	}

	samples := make([]source.MemorySample, 0, len(points))
	for _, point := range points {
		samples = append(samples, source.MemorySample{
			ID:         pointID(point.GetId()),
			Embedding:  point.GetVectors().GetVector().GetData(),
			Salience:   payloadSalience(point.GetPayload()),
			RecordedAt: payloadTime(point.GetPayload(), "encoded_at"),
		})
	}

	return samples, nil
}

// Close releases the gRPC connection.
func (v *VectorSource) Close() error {
	return nurseryerr.Wrap(v.client.Close(), nurseryerr.CodeSourceCloseFailure, "closing vector source")
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if uuid := id.GetUuid(); uuid != "" {
		return uuid
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

func payloadInt(payload map[string]*qdrant.Value, key string) int64 {
	value, ok := payload[key]
	if !ok {
		return 0
	}
	return value.GetIntegerValue()
}

// payloadSalience reads semantic_salience, defaulting to a neutral 0.5
// when the payload does not carry one.
func payloadSalience(payload map[string]*qdrant.Value) float64 {
	value, ok := payload["semantic_salience"]
	if !ok {
		return 0.5
	}
	return value.GetDoubleValue()
}

func payloadTime(payload map[string]*qdrant.Value, key string) time.Time {
	value, ok := payload[key]
	if !ok {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, value.GetStringValue())
	if err != nil {
		return time.Time{}
	}
	return ts
}
