package processing

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/agent"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/thought"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/logger"
)

// MinThoughtsForSynthesis is the floor below which a weekly synthesis would
// just restate the inputs.
const MinThoughtsForSynthesis = 3

// SynthesisWindow is how far back the weekly synthesis looks.
const SynthesisWindow = 7 * 24 * time.Hour

// WeeklySynthesis is one owner's generated weekly review.
type WeeklySynthesis struct {
	ID           uint
	OwnerID      string
	WeekStart    time.Time
	ThoughtCount int
	Content      map[string]any
	CreatedAt    time.Time
}

// SynthesisRepository stores weekly syntheses, one per owner per week.
type SynthesisRepository interface {
	// Save upserts on (owner, week start).
	Save(ctx context.Context, s *WeeklySynthesis) error
	FindLatest(ctx context.Context, ownerID string) (*WeeklySynthesis, error)
}

// SynthesisService generates weekly reviews from an owner's completed
// thoughts.
type SynthesisService struct {
	thoughts  thought.Repository
	contexts  thought.ContextRepository
	syntheses SynthesisRepository
	pipeline  *agent.Pipeline
	log       zerolog.Logger
}

func NewSynthesisService(thoughts thought.Repository, contexts thought.ContextRepository, syntheses SynthesisRepository, pipeline *agent.Pipeline) *SynthesisService {
	return &SynthesisService{
		thoughts:  thoughts,
		contexts:  contexts,
		syntheses: syntheses,
		pipeline:  pipeline,
		log:       logger.GetLogger().With().Str("component", "weekly_synthesis").Logger(),
	}
}

// GenerateForOwner builds and stores a synthesis over the owner's last
// seven days. Returns nil without error when the owner has too few
// completed thoughts to synthesize.
func (s *SynthesisService) GenerateForOwner(ctx context.Context, ownerID string) (*WeeklySynthesis, error) {
	since := time.Now().UTC().Add(-SynthesisWindow)
	completed, err := s.thoughts.FindCompletedSince(ctx, ownerID, since)
	if err != nil {
		return nil, err
	}
	if len(completed) < MinThoughtsForSynthesis {
		s.log.Debug().
			Str("owner_id", ownerID).
			Int("thoughts", len(completed)).
			Msg("skipping synthesis, not enough completed thoughts")
		return nil, nil
	}

	ownerCtx, err := s.contexts.GetOwnerContext(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	content, err := s.pipeline.Synthesize(ctx, ownerCtx, completed)
	if err != nil {
		return nil, err
	}
	if agent.IsErrorResult(content) {
		s.log.Warn().Str("owner_id", ownerID).Msg("synthesis output unparseable, not stored")
		return nil, nil
	}

	synthesis := &WeeklySynthesis{
		OwnerID:      ownerID,
		WeekStart:    weekStart(time.Now().UTC()),
		ThoughtCount: len(completed),
		Content:      content,
	}
	if err := s.syntheses.Save(ctx, synthesis); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("owner_id", ownerID).
		Int("thoughts", len(completed)).
		Msg("weekly synthesis stored")
	return synthesis, nil
}

// weekStart returns the preceding Monday at midnight UTC.
func weekStart(now time.Time) time.Time {
	day := now.Truncate(24 * time.Hour)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
