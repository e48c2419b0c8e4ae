package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const sequenceKey = "governance:audit:latest_seq"

// SequenceCheckpoint keeps the latest assigned audit sequence number in Redis
// as a fast-path hint. The database remains authoritative; a stale or missing
// checkpoint is harmless.
type SequenceCheckpoint struct {
	client *redis.Client
}

// NewSequenceCheckpoint creates a Redis-backed sequence checkpoint
func NewSequenceCheckpoint(client *redis.Client) *SequenceCheckpoint {
	return &SequenceCheckpoint{client: client}
}

// SetLatestSequence records the highest assigned sequence number
func (c *SequenceCheckpoint) SetLatestSequence(ctx context.Context, seq int64) error {
	if err := c.client.Set(ctx, sequenceKey, seq, 0).Err(); err != nil {
		return fmt.Errorf("writing sequence checkpoint: %w", err)
	}
	return nil
}

// GetLatestSequence reads the checkpoint, zero when absent
func (c *SequenceCheckpoint) GetLatestSequence(ctx context.Context) (int64, error) {
	seq, err := c.client.Get(ctx, sequenceKey).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("reading sequence checkpoint: %w", err)
	}
	return seq, nil
}
