package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aimsgrid/governance-engine/internal/domain/audit"
)

// channelPrefix namespaces governance events by category, e.g.
// governance:events:incident
const channelPrefix = "governance:events:"

// RedisPublisher forwards audit entries onto Redis pub/sub so external
// consumers can follow the governance event stream. Publication is
// best-effort; the audit trail is the source of truth.
type RedisPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPublisher creates a pub/sub publisher over the given client
func NewRedisPublisher(client *redis.Client, logger *zap.Logger) *RedisPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPublisher{client: client, logger: logger}
}

// Publish sends the entry to its category channel
func (p *RedisPublisher) Publish(ctx context.Context, entry *audit.Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling entry: %w", err)
	}

	channel := channelPrefix + entry.Category
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", channel, err)
	}

	p.logger.Debug("event published",
		zap.String("channel", channel),
		zap.String("event_type", string(entry.EventType)),
	)
	return nil
}
