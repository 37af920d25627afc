package processing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a processing lifecycle event.
type EventType string

const (
	EventProcessingStarted    EventType = "processing_started"
	EventAgentCompleted       EventType = "agent_completed"
	EventPersonaCompleted     EventType = "persona_completed"
	EventConsolidationStarted EventType = "consolidation_started"
	EventProcessingCompleted  EventType = "processing_completed"
	EventProcessingFailed     EventType = "processing_failed"
)

// Event is the envelope published to subscribers watching a thought's
// progress. Timestamps are UTC.
type Event struct {
	EventID   string         `json:"event_id"`
	EventType EventType      `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	OwnerID   string         `json:"user_id"`
	ThoughtID string         `json:"thought_id"`
	Payload   map[string]any `json:"payload"`
}

// EventPublisher delivers progress events to whoever is listening for the
// owner. Publishing is best effort: implementations log and swallow
// transport failures so event delivery never fails a processing run.
type EventPublisher interface {
	Publish(ctx context.Context, event *Event)
}

func newEvent(eventType EventType, ownerID, thoughtID string, payload map[string]any) *Event {
	return &Event{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		OwnerID:   ownerID,
		ThoughtID: thoughtID,
		Payload:   payload,
	}
}

// NewProcessingStarted marks the transition into processing.
func NewProcessingStarted(ownerID, thoughtID string, mode string) *Event {
	return newEvent(EventProcessingStarted, ownerID, thoughtID, map[string]any{
		"mode": mode,
	})
}

// NewAgentCompleted reports one finished pipeline stage. cached marks
// simulated progress replayed from a cache hit.
func NewAgentCompleted(ownerID, thoughtID, agentName string, agentNumber, totalAgents int, cached bool) *Event {
	return newEvent(EventAgentCompleted, ownerID, thoughtID, map[string]any{
		"agent_name":   agentName,
		"agent_number": agentNumber,
		"total_agents": totalAgents,
		"progress":     fmt.Sprintf("%d/%d", agentNumber, totalAgents),
		"cached":       cached,
	})
}

// NewPersonaCompleted reports one persona finishing during a group run.
func NewPersonaCompleted(ownerID, thoughtID, personaName string, completed, total int, succeeded bool) *Event {
	return newEvent(EventPersonaCompleted, ownerID, thoughtID, map[string]any{
		"persona_name": personaName,
		"completed":    completed,
		"total":        total,
		"progress":     fmt.Sprintf("%d/%d", completed, total),
		"succeeded":    succeeded,
	})
}

// NewConsolidationStarted reports the fan-in phase of a group run.
func NewConsolidationStarted(ownerID, thoughtID string, succeeded, total int) *Event {
	return newEvent(EventConsolidationStarted, ownerID, thoughtID, map[string]any{
		"personas_succeeded": succeeded,
		"personas_total":     total,
	})
}

// NewProcessingCompleted marks a successful terminal state. fromCache
// distinguishes replayed results from fresh runs.
func NewProcessingCompleted(ownerID, thoughtID string, fromCache bool, elapsed time.Duration) *Event {
	return newEvent(EventProcessingCompleted, ownerID, thoughtID, map[string]any{
		"from_cache":         fromCache,
		"processing_time_ms": elapsed.Milliseconds(),
	})
}

// NewProcessingFailed marks a failed terminal state.
func NewProcessingFailed(ownerID, thoughtID, errorMessage string, retryCount int) *Event {
	return newEvent(EventProcessingFailed, ownerID, thoughtID, map[string]any{
		"error_message": errorMessage,
		"retry_count":   retryCount,
	})
}
