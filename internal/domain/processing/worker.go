package processing

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/thought"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/logger"
)

// StreamWorker handles thought-created messages delivered by the stream
// consumer. The message only names the thought; the database row is
// authoritative, so the worker re-fetches before doing anything.
type StreamWorker struct {
	thoughts     thought.Repository
	orchestrator *Orchestrator
	log          zerolog.Logger
}

func NewStreamWorker(thoughts thought.Repository, orchestrator *Orchestrator) *StreamWorker {
	return &StreamWorker{
		thoughts:     thoughts,
		orchestrator: orchestrator,
		log:          logger.GetLogger().With().Str("component", "stream_worker").Logger(),
	}
}

// Handle processes one delivery. A nil return acknowledges the message; an
// error hands it back to the consumer's retry/dead-letter policy. Thoughts
// already past pending are acknowledged without reprocessing, which makes
// redeliveries harmless.
func (w *StreamWorker) Handle(ctx context.Context, thoughtPublicID string) error {
	t, err := w.thoughts.FindByPublicID(ctx, thoughtPublicID)
	if err != nil {
		return err
	}
	if t == nil {
		w.log.Warn().Str("thought_id", thoughtPublicID).Msg("message references unknown thought, dropping")
		return nil
	}
	if t.Status != thought.StatusPending {
		w.log.Debug().
			Str("thought_id", thoughtPublicID).
			Str("status", string(t.Status)).
			Msg("thought no longer pending, skipping")
		return nil
	}
	return w.orchestrator.ProcessOne(ctx, t)
}
