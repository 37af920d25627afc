package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/processing"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/logger"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/metrics"
)

const channelPrefix = "thoughts:events:"

// RedisPublisher fans progress events out over per-owner pub/sub channels.
// Delivery is fire-and-forget: a subscriber that is not listening right now
// simply misses the event, and a transport failure never fails processing.
type RedisPublisher struct {
	rdb *redis.Client
	log zerolog.Logger
}

var _ processing.EventPublisher = (*RedisPublisher)(nil)

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{
		rdb: rdb,
		log: logger.GetLogger().With().Str("component", "event_publisher").Logger(),
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, event *processing.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		metrics.EventPublishFailures.Inc()
		p.log.Warn().Err(err).Str("event_type", string(event.EventType)).Msg("failed to encode event")
		return
	}

	channel := channelPrefix + event.OwnerID
	if err := p.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		metrics.EventPublishFailures.Inc()
		p.log.Warn().
			Err(err).
			Str("event_type", string(event.EventType)).
			Str("thought_id", event.ThoughtID).
			Msg("failed to publish event")
		return
	}

	p.log.Debug().
		Str("event_type", string(event.EventType)).
		Str("thought_id", event.ThoughtID).
		Msg("event published")
}

// Channel returns the pub/sub channel name for an owner, for subscribers.
func Channel(ownerID string) string {
	return channelPrefix + ownerID
}
