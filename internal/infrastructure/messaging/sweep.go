package messaging

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/thought"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/logger"
)

// PendingSweep republishes the pending backlog on startup so thoughts whose
// original notification was lost (crash between DB write and XADD, stream
// trim) still get processed. Already-delivered duplicates are harmless: the
// worker re-fetches and skips anything past pending.
type PendingSweep struct {
	thoughts thought.Repository
	producer *Producer
	log      zerolog.Logger
}

func NewPendingSweep(thoughts thought.Repository, producer *Producer) *PendingSweep {
	return &PendingSweep{
		thoughts: thoughts,
		producer: producer,
		log:      logger.GetLogger().With().Str("component", "pending_sweep").Logger(),
	}
}

// Run publishes one message per pending thought and reports how many.
func (s *PendingSweep) Run(ctx context.Context) (int, error) {
	pending, err := s.thoughts.FindPending(ctx)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, t := range pending {
		if err := s.producer.PublishThoughtCreated(ctx, t.PublicID, t.OwnerID); err != nil {
			s.log.Warn().Err(err).Str("thought_id", t.PublicID).Msg("failed to republish pending thought")
			continue
		}
		published++
	}

	if published > 0 {
		s.log.Info().Int("published", published).Msg("pending backlog republished")
	}
	return published, nil
}
