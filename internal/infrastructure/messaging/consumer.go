package messaging

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/logger"
)

// Handler processes one thought message. A nil return settles the message;
// an error routes it through the retry/dead-letter policy.
type Handler func(ctx context.Context, msg ThoughtMessage) error

// ConsumerConfig tunes the stream consumer.
type ConsumerConfig struct {
	Stream       string
	Group        string
	Consumer     string
	MaxRetries   int
	RetryBackoff time.Duration
}

// streamClient is the slice of RedisClient the consumer needs.
type streamClient interface {
	Subscribe(ctx context.Context, stream, group, consumer string) (<-chan Message, error)
	Publish(ctx context.Context, stream string, values map[string]interface{}) (string, error)
	Ack(ctx context.Context, stream, group, id string) error
}

// Consumer reads thought messages from the work stream and drives them
// through the handler. Failed messages are republished with an incremented
// retry count and exponential backoff until the retry budget runs out, then
// dead-lettered. Every delivery is acknowledged exactly once: the retry is
// a fresh message, not a redelivery of the old one.
type Consumer struct {
	client  streamClient
	dlq     *DeadLetterQueue
	cfg     ConsumerConfig
	handle  Handler
	log     zerolog.Logger
	retryWG sync.WaitGroup
}

func NewConsumer(client streamClient, dlq *DeadLetterQueue, cfg ConsumerConfig, handle Handler) *Consumer {
	return &Consumer{
		client: client,
		dlq:    dlq,
		cfg:    cfg,
		handle: handle,
		log:    logger.GetLogger().With().Str("component", "consumer").Logger(),
	}
}

// Run consumes until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	messages, err := c.client.Subscribe(ctx, c.cfg.Stream, c.cfg.Group, c.cfg.Consumer)
	if err != nil {
		return err
	}

	c.log.Info().
		Str("stream", c.cfg.Stream).
		Str("group", c.cfg.Group).
		Str("consumer", c.cfg.Consumer).
		Msg("stream consumer started")

	for {
		select {
		case <-ctx.Done():
			c.retryWG.Wait()
			return ctx.Err()
		case delivery, ok := <-messages:
			if !ok {
				c.retryWG.Wait()
				return nil
			}
			c.process(ctx, delivery)
		}
	}
}

func (c *Consumer) process(ctx context.Context, delivery Message) {
	msg := ParseThoughtMessage(redis.XMessage{ID: delivery.ID, Values: delivery.Values})
	if msg.ThoughtID == "" {
		c.log.Warn().Str("message_id", delivery.ID).Msg("malformed message, acknowledging without processing")
		c.ack(ctx, delivery.ID)
		return
	}

	err := c.handle(ctx, msg)
	if err == nil {
		c.ack(ctx, delivery.ID)
		return
	}

	c.log.Warn().
		Err(err).
		Str("thought_id", msg.ThoughtID).
		Int("retry_count", msg.RetryCount).
		Msg("message handling failed")

	if msg.RetryCount >= c.cfg.MaxRetries {
		if dlqErr := c.dlq.SendToDeadLetter(ctx, msg, err.Error()); dlqErr != nil {
			c.log.Error().Err(dlqErr).Str("thought_id", msg.ThoughtID).Msg("failed to dead-letter message")
		} else {
			c.log.Error().
				Str("thought_id", msg.ThoughtID).
				Int("retries", msg.RetryCount).
				Msg("message dead-lettered")
		}
		c.ack(ctx, delivery.ID)
		return
	}

	// The backoff wait runs off the consume loop so a failing message never
	// stalls other deliveries. The original stays unacked until the retry is
	// republished; a crash during the wait redelivers it.
	backoff := c.cfg.RetryBackoff << uint(msg.RetryCount)
	c.retryWG.Add(1)
	go func() {
		defer c.retryWG.Done()
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			// Leave unacked; the pending entry redelivers after restart.
			return
		}

		retry := msg
		retry.RetryCount++
		if _, pubErr := c.client.Publish(ctx, c.cfg.Stream, retry.ToRedisValues()); pubErr != nil {
			c.log.Error().Err(pubErr).Str("thought_id", msg.ThoughtID).Msg("failed to republish for retry")
			return
		}
		c.ack(ctx, delivery.ID)
	}()
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.Ack(ctx, c.cfg.Stream, c.cfg.Group, id); err != nil {
		c.log.Warn().Err(err).Str("message_id", id).Msg("failed to ack message")
	}
}
