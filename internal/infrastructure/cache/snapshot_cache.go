package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aimsgrid/governance-engine/internal/service/metrics"
)

const snapshotKey = "governance:metrics:snapshot"

// SnapshotCache mirrors the latest metrics snapshot into Redis so other
// processes can read it without recomputing.
type SnapshotCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewSnapshotCache creates a Redis-backed snapshot mirror
func NewSnapshotCache(client *redis.Client, logger *zap.Logger) *SnapshotCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotCache{client: client, logger: logger}
}

// SetSnapshot stores the snapshot with the aggregator's TTL
func (c *SnapshotCache) SetSnapshot(ctx context.Context, snapshot *metrics.Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	if err := c.client.Set(ctx, snapshotKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("caching snapshot: %w", err)
	}
	return nil
}

// GetSnapshot loads the cached snapshot, nil when absent or expired
func (c *SnapshotCache) GetSnapshot(ctx context.Context) (*metrics.Snapshot, error) {
	data, err := c.client.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("reading cached snapshot: %w", err)
	}

	var snapshot metrics.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		c.logger.Warn("cached snapshot is malformed, treating as miss", zap.Error(err))
		return nil, nil
	}
	return &snapshot, nil
}
