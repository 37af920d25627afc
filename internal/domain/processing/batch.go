package processing

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/semanticcache"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/thought"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/logger"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/metrics"
)

// BatchStats summarizes one batch run.
type BatchStats struct {
	Owners       int
	Processed    int
	Succeeded    int
	Failed       int
	Syntheses    int
	CacheHits    int64
	CacheMisses  int64
	CacheExpired int64
	Elapsed      time.Duration
}

// BatchRunner drains pending thoughts in one pass: thoughts are grouped by
// owner and each owner's backlog runs sequentially in creation order, with a
// pacing delay between thoughts so provider rate limits hold. On Sundays the
// run finishes with a weekly synthesis per active owner.
type BatchRunner struct {
	thoughts     thought.Repository
	orchestrator *Orchestrator
	synthesis    *SynthesisService
	cache        *semanticcache.Cache
	delay        time.Duration
	log          zerolog.Logger

	// now is swapped in tests to pin the synthesis weekday gate.
	now func() time.Time
}

func NewBatchRunner(thoughts thought.Repository, orchestrator *Orchestrator, synthesis *SynthesisService, cache *semanticcache.Cache, delay time.Duration) *BatchRunner {
	return &BatchRunner{
		thoughts:     thoughts,
		orchestrator: orchestrator,
		synthesis:    synthesis,
		cache:        cache,
		delay:        delay,
		log:          logger.GetLogger().With().Str("component", "batch_runner").Logger(),
		now:          time.Now,
	}
}

// Run executes one batch pass and reports what it did. Per-thought failures
// are absorbed into the stats; only listing the backlog can fail the pass.
func (b *BatchRunner) Run(ctx context.Context) (*BatchStats, error) {
	start := b.now()
	pending, err := b.thoughts.FindPending(ctx)
	if err != nil {
		return nil, err
	}

	byOwner := make(map[string][]*thought.Thought)
	order := make([]string, 0)
	for _, t := range pending {
		if _, seen := byOwner[t.OwnerID]; !seen {
			order = append(order, t.OwnerID)
		}
		byOwner[t.OwnerID] = append(byOwner[t.OwnerID], t)
	}

	stats := &BatchStats{Owners: len(order)}
	cacheBefore := b.cache.Stats()
	for _, ownerID := range order {
		b.processOwner(ctx, ownerID, byOwner[ownerID], stats)
		if ctx.Err() != nil {
			break
		}
	}

	if b.isSynthesisDay(start) {
		for _, ownerID := range order {
			if ctx.Err() != nil {
				break
			}
			synthesized, err := b.synthesis.GenerateForOwner(ctx, ownerID)
			if err != nil {
				b.log.Warn().Err(err).Str("owner_id", ownerID).Msg("weekly synthesis failed")
				continue
			}
			if synthesized != nil {
				stats.Syntheses++
			}
		}
	}

	cacheAfter := b.cache.Stats()
	stats.CacheHits = cacheAfter.Hits - cacheBefore.Hits
	stats.CacheMisses = cacheAfter.Misses - cacheBefore.Misses

	// Expired entries are purged once per pass so single-shot runs do not
	// depend on the scheduler being up.
	deleted, err := b.cache.CleanupExpired(ctx)
	if err != nil {
		b.log.Warn().Err(err).Msg("cache cleanup failed")
	}
	stats.CacheExpired = deleted

	stats.Elapsed = b.now().Sub(start)
	metrics.BatchDuration.Observe(stats.Elapsed.Seconds())
	b.log.Info().
		Int("owners", stats.Owners).
		Int("processed", stats.Processed).
		Int("succeeded", stats.Succeeded).
		Int("failed", stats.Failed).
		Int("syntheses", stats.Syntheses).
		Int64("cache_hits", stats.CacheHits).
		Int64("cache_misses", stats.CacheMisses).
		Int64("cache_expired", stats.CacheExpired).
		Dur("elapsed", stats.Elapsed).
		Msg("batch run finished")
	return stats, nil
}

func (b *BatchRunner) processOwner(ctx context.Context, ownerID string, backlog []*thought.Thought, stats *BatchStats) {
	b.log.Debug().Str("owner_id", ownerID).Int("backlog", len(backlog)).Msg("processing owner backlog")
	for i, t := range backlog {
		if ctx.Err() != nil {
			return
		}
		stats.Processed++
		if err := b.orchestrator.ProcessOne(ctx, t); err != nil {
			stats.Failed++
		} else {
			stats.Succeeded++
		}
		if i < len(backlog)-1 && b.delay > 0 {
			select {
			case <-time.After(b.delay):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (b *BatchRunner) isSynthesisDay(t time.Time) bool {
	return t.UTC().Weekday() == time.Sunday
}
