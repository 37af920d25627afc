package messaging

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/metrics"
)

// DeadLetterStream is where messages land after exhausting their retries.
const DeadLetterStream = "thoughts:dead"

// DeadLetterQueue handles failed messages for later inspection and retry
type DeadLetterQueue struct {
	client *RedisClient
	stream string // the stream retried messages return to
}

// DeadLetter represents a message that failed processing
type DeadLetter struct {
	DLQID           string
	OriginalMessage ThoughtMessage
	Error           string
	RetryCount      int
	DeadAt          int64
}

// NewDeadLetterQueue creates a new DLQ handler
func NewDeadLetterQueue(client *RedisClient, originStream string) *DeadLetterQueue {
	return &DeadLetterQueue{client: client, stream: originStream}
}

// SendToDeadLetter sends a failed message to the DLQ
func (d *DeadLetterQueue) SendToDeadLetter(ctx context.Context, msg ThoughtMessage, errorMsg string) error {
	values := map[string]interface{}{
		"original_thought_id": msg.ThoughtID,
		"original_owner_id":   msg.OwnerID,
		"original_created":    strconv.FormatInt(msg.Created, 10),
		"error":               errorMsg,
		"retry_count":         strconv.Itoa(msg.RetryCount),
		"dead_at":             strconv.FormatInt(time.Now().Unix(), 10),
	}

	if _, err := d.client.Publish(ctx, DeadLetterStream, values); err != nil {
		return err
	}
	metrics.DeadLetteredTotal.Inc()
	return nil
}

// GetDeadLetters retrieves the most recent dead letters
func (d *DeadLetterQueue) GetDeadLetters(ctx context.Context, count int) ([]DeadLetter, error) {
	rdb := d.client.RawClient()

	results, err := rdb.XRevRangeN(ctx, DeadLetterStream, "+", "-", int64(count)).Result()
	if err == redis.Nil {
		return []DeadLetter{}, nil
	}
	if err != nil {
		return nil, err
	}

	var letters []DeadLetter
	for _, msg := range results {
		letters = append(letters, parseDeadLetter(msg))
	}
	return letters, nil
}

// RetryDeadLetter republishes a dead letter to the origin stream with a
// reset retry budget, then removes it from the DLQ.
func (d *DeadLetterQueue) RetryDeadLetter(ctx context.Context, dlqID string) error {
	rdb := d.client.RawClient()

	results, err := rdb.XRange(ctx, DeadLetterStream, dlqID, dlqID).Result()
	if err != nil {
		return fmt.Errorf("failed to get DLQ message: %w", err)
	}
	if len(results) == 0 {
		return fmt.Errorf("DLQ message not found: %s", dlqID)
	}

	letter := parseDeadLetter(results[0])
	retry := NewThoughtMessage(letter.OriginalMessage.ThoughtID, letter.OriginalMessage.OwnerID)
	if _, err := d.client.Publish(ctx, d.stream, retry.ToRedisValues()); err != nil {
		return fmt.Errorf("failed to republish: %w", err)
	}

	rdb.XDel(ctx, DeadLetterStream, dlqID)
	return nil
}

// DeleteDeadLetter removes a message from the DLQ
func (d *DeadLetterQueue) DeleteDeadLetter(ctx context.Context, dlqID string) error {
	return d.client.RawClient().XDel(ctx, DeadLetterStream, dlqID).Err()
}

// GetDLQCount returns the number of messages in the DLQ
func (d *DeadLetterQueue) GetDLQCount(ctx context.Context) (int64, error) {
	return d.client.RawClient().XLen(ctx, DeadLetterStream).Result()
}

func parseDeadLetter(msg redis.XMessage) DeadLetter {
	letter := DeadLetter{DLQID: msg.ID}

	original := ThoughtMessage{}
	if v, ok := msg.Values["original_thought_id"].(string); ok {
		original.ThoughtID = v
	}
	if v, ok := msg.Values["original_owner_id"].(string); ok {
		original.OwnerID = v
	}
	if v, ok := msg.Values["original_created"].(string); ok {
		created, _ := strconv.ParseInt(v, 10, 64)
		original.Created = created
	}
	letter.OriginalMessage = original

	if v, ok := msg.Values["error"].(string); ok {
		letter.Error = v
	}
	if v, ok := msg.Values["retry_count"].(string); ok {
		count, _ := strconv.Atoi(v)
		letter.RetryCount = count
	}
	if v, ok := msg.Values["dead_at"].(string); ok {
		deadAt, _ := strconv.ParseInt(v, 10, 64)
		letter.DeadAt = deadAt
	}
	return letter
}
