package semanticcache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/logger"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/metrics"
)

// Entry is one cached analysis keyed by the embedding of the thought text
// that produced it. Result holds whichever payload shape the producing run
// had (five-block or consolidated).
type Entry struct {
	ID          uint
	OwnerID     string
	ThoughtText string
	Embedding   []float32
	Result      map[string]any
	Similarity  float64 // populated on reads only
	CreatedAt   time.Time
}

// EmbeddingProvider turns text into a vector. Implementations may memoize.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Repository is the vector-store boundary for cache entries.
type Repository interface {
	// FindSimilar returns the owner's entries within maxAge whose cosine
	// similarity to the query meets the threshold, best match first.
	FindSimilar(ctx context.Context, ownerID string, embedding []float32, threshold float64, maxAge time.Duration, limit int) ([]*Entry, error)
	Save(ctx context.Context, e *Entry) error
	// DeleteExpired removes entries older than maxAge and reports how many.
	DeleteExpired(ctx context.Context, maxAge time.Duration) (int64, error)
}

// Cache is the semantic result cache. Lookups are owner-scoped and
// similarity-gated; every failure path degrades to a miss so the caller
// always proceeds to a fresh run.
type Cache struct {
	repo      Repository
	embedder  EmbeddingProvider
	threshold float64
	ttl       time.Duration
	log       zerolog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// Stats is a monotonically growing lookup tally. Callers diff two
// snapshots to attribute hits and misses to one batch pass.
type Stats struct {
	Hits   int64
	Misses int64
}

func New(repo Repository, embedder EmbeddingProvider, threshold float64, ttl time.Duration) *Cache {
	return &Cache{
		repo:      repo,
		embedder:  embedder,
		threshold: threshold,
		ttl:       ttl,
		log:       logger.GetLogger().With().Str("component", "semantic_cache").Logger(),
	}
}

// Lookup returns the cached result for a semantically equivalent prior
// thought of the same owner, together with the query embedding so the
// caller can reuse it for a later Store. A nil entry means miss.
func (c *Cache) Lookup(ctx context.Context, ownerID, text string) (*Entry, []float32) {
	embedding, err := c.embed(ctx, text)
	if err != nil {
		c.log.Warn().Err(err).Msg("embedding failed, cache disabled for this lookup")
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		c.misses.Add(1)
		return nil, nil
	}

	entries, err := c.repo.FindSimilar(ctx, ownerID, embedding, c.threshold, c.ttl, 1)
	if err != nil {
		c.log.Warn().Err(err).Msg("cache query failed, treating as miss")
		metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
		c.misses.Add(1)
		return nil, embedding
	}
	if len(entries) == 0 {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		c.misses.Add(1)
		return nil, embedding
	}

	entry := entries[0]
	// The age filter runs in SQL too, but clock skew between store rows and
	// this process makes the read-time check authoritative.
	if time.Since(entry.CreatedAt) > c.ttl {
		metrics.CacheLookupsTotal.WithLabelValues("expired").Inc()
		c.misses.Add(1)
		return nil, embedding
	}

	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	c.hits.Add(1)
	c.log.Info().
		Str("owner_id", ownerID).
		Float64("similarity", entry.Similarity).
		Msg("semantic cache hit")
	return entry, embedding
}

// Store saves a fresh result under the given embedding. When embedding is
// nil (the lookup's embed call failed) the store is skipped: an entry
// without a vector can never be found.
func (c *Cache) Store(ctx context.Context, ownerID, text string, embedding []float32, result map[string]any) error {
	if embedding == nil {
		return nil
	}
	return c.repo.Save(ctx, &Entry{
		OwnerID:     ownerID,
		ThoughtText: text,
		Embedding:   embedding,
		Result:      result,
	})
}

// Stats returns the lifetime lookup tally.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// CleanupExpired purges entries past the TTL.
func (c *Cache) CleanupExpired(ctx context.Context) (int64, error) {
	deleted, err := c.repo.DeleteExpired(ctx, c.ttl)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		c.log.Info().Int64("deleted", deleted).Msg("expired cache entries removed")
	}
	return deleted, nil
}

// Embedding computes the search embedding for text. Callers treat failure
// as best-effort; the vector is an optimization, not a dependency.
func (c *Cache) Embedding(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text)
}

func (c *Cache) embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	embedding, err := c.embedder.Embed(ctx, text)
	metrics.EmbeddingDuration.Observe(time.Since(start).Seconds())
	return embedding, err
}
