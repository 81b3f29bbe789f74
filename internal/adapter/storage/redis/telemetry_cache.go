package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"settlement-kernel/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

// TelemetryCache implements ports.TelemetryPublisher using Redis. Every tick
// snapshot is stored under its own key and mirrored to a "latest" key.
type TelemetryCache struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewTelemetryCache creates a Redis-backed telemetry publisher. A zero ttl keeps
// snapshots forever.
func NewTelemetryCache(client *goredis.Client, ttl time.Duration) *TelemetryCache {
	return &TelemetryCache{
		client: client,
		prefix: "telemetry:",
		ttl:    ttl,
	}
}

func (c *TelemetryCache) tickKey(runID string, tick int64) string {
	return fmt.Sprintf("%s%s:tick:%d", c.prefix, runID, tick)
}

func (c *TelemetryCache) latestKey() string {
	return c.prefix + "latest"
}

// Publish stores snapshot under its tick key and as the latest snapshot.
func (c *TelemetryCache) Publish(ctx context.Context, snapshot *ports.MonetarySnapshot) error {
	if snapshot == nil {
		return errors.New("redis telemetry publish: nil snapshot")
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("redis telemetry marshal: %w", err)
	}

	_, err = c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, c.tickKey(snapshot.RunID, snapshot.Tick), payload, c.ttl)
		pipe.Set(ctx, c.latestKey(), payload, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis telemetry publish: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot, or nil, nil if none was published.
func (c *TelemetryCache) Latest(ctx context.Context) (*ports.MonetarySnapshot, error) {
	return c.get(ctx, c.latestKey())
}

// AtTick returns the snapshot a run published for tick, or nil, nil.
func (c *TelemetryCache) AtTick(ctx context.Context, runID string, tick int64) (*ports.MonetarySnapshot, error) {
	return c.get(ctx, c.tickKey(runID, tick))
}

func (c *TelemetryCache) get(ctx context.Context, key string) (*ports.MonetarySnapshot, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis telemetry get: %w", err)
	}
	var snap ports.MonetarySnapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		return nil, fmt.Errorf("redis telemetry decode: %w", err)
	}
	return &snap, nil
}
