package messaging

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestThoughtMessageRoundTrip(t *testing.T) {
	in := NewThoughtMessage("th-1", "owner-1")
	in.RetryCount = 2

	out := ParseThoughtMessage(redis.XMessage{ID: "1-0", Values: in.ToRedisValues()})
	assert.Equal(t, in, out)
}

func TestParseThoughtMessageMalformed(t *testing.T) {
	out := ParseThoughtMessage(redis.XMessage{ID: "1-0", Values: map[string]interface{}{
		"thought_id":  "th-1",
		"retry_count": "not-a-number",
	}})
	assert.Equal(t, "th-1", out.ThoughtID)
	assert.Zero(t, out.RetryCount, "garbage retry count must default to zero")
	assert.Empty(t, out.OwnerID)
	assert.Zero(t, out.Created)
}
