package messaging

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/logger"
)

// Producer publishes thought-created notifications to the work stream.
type Producer struct {
	client *RedisClient
	stream string
	log    zerolog.Logger
}

func NewProducer(client *RedisClient, stream string) *Producer {
	return &Producer{
		client: client,
		stream: stream,
		log:    logger.GetLogger().With().Str("component", "producer").Logger(),
	}
}

// PublishThoughtCreated enqueues a thought for stream-mode processing.
func (p *Producer) PublishThoughtCreated(ctx context.Context, thoughtID, ownerID string) error {
	msg := NewThoughtMessage(thoughtID, ownerID)
	id, err := p.client.Publish(ctx, p.stream, msg.ToRedisValues())
	if err != nil {
		return err
	}
	p.log.Debug().
		Str("thought_id", thoughtID).
		Str("message_id", id).
		Msg("thought published to stream")
	return nil
}
