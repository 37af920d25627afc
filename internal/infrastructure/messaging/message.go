package messaging

import (
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ThoughtMessage is the wire format for a thought-created notification. The
// payload is a reference only; consumers re-fetch the row before working.
type ThoughtMessage struct {
	ThoughtID  string
	OwnerID    string
	RetryCount int
	Created    int64
}

// NewThoughtMessage builds a first-delivery message.
func NewThoughtMessage(thoughtID, ownerID string) ThoughtMessage {
	return ThoughtMessage{
		ThoughtID: thoughtID,
		OwnerID:   ownerID,
		Created:   time.Now().Unix(),
	}
}

// ToRedisValues flattens the message for XADD.
func (m ThoughtMessage) ToRedisValues() map[string]interface{} {
	return map[string]interface{}{
		"thought_id":  m.ThoughtID,
		"owner_id":    m.OwnerID,
		"retry_count": strconv.Itoa(m.RetryCount),
		"created":     strconv.FormatInt(m.Created, 10),
	}
}

// ParseThoughtMessage reconstructs a message from a stream entry.
func ParseThoughtMessage(msg redis.XMessage) ThoughtMessage {
	out := ThoughtMessage{}
	if v, ok := msg.Values["thought_id"].(string); ok {
		out.ThoughtID = v
	}
	if v, ok := msg.Values["owner_id"].(string); ok {
		out.OwnerID = v
	}
	if v, ok := msg.Values["retry_count"].(string); ok {
		count, _ := strconv.Atoi(v)
		out.RetryCount = count
	}
	if v, ok := msg.Values["created"].(string); ok {
		created, _ := strconv.ParseInt(v, 10, 64)
		out.Created = created
	}
	return out
}
