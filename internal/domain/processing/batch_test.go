package processing

import (
	"context"
	"testing"
	"time"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/agent"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/semanticcache"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/thought"
)

// batchThoughts is an in-memory thought store covering the batch paths:
// listing the backlog, per-thought lifecycle writes, and the completed-window
// query the weekly synthesis runs.
type batchThoughts struct {
	pending   []*thought.Thought
	completed map[string][]*thought.Thought
	saveOrder []string
	failed    []string
}

func (b *batchThoughts) Create(ctx context.Context, t *thought.Thought) error { return nil }

func (b *batchThoughts) FindByPublicID(ctx context.Context, publicID string) (*thought.Thought, error) {
	return nil, nil
}

func (b *batchThoughts) FindPending(ctx context.Context) ([]*thought.Thought, error) {
	return b.pending, nil
}

func (b *batchThoughts) FindCompletedSince(ctx context.Context, ownerID string, since time.Time) ([]*thought.Thought, error) {
	return b.completed[ownerID], nil
}

func (b *batchThoughts) MarkProcessing(ctx context.Context, publicID string, attempts int) error {
	return nil
}

func (b *batchThoughts) SaveResult(ctx context.Context, t *thought.Thought, embedding []float32) error {
	b.saveOrder = append(b.saveOrder, t.PublicID)
	return nil
}

func (b *batchThoughts) MarkFailed(ctx context.Context, publicID string, errorMessage string) error {
	b.failed = append(b.failed, publicID)
	return nil
}

type memSynthesisRepo struct {
	saved []*WeeklySynthesis
}

func (m *memSynthesisRepo) Save(ctx context.Context, s *WeeklySynthesis) error {
	m.saved = append(m.saved, s)
	return nil
}

func (m *memSynthesisRepo) FindLatest(ctx context.Context, ownerID string) (*WeeklySynthesis, error) {
	if len(m.saved) == 0 {
		return nil, nil
	}
	return m.saved[len(m.saved)-1], nil
}

func synthesisResponses() map[string]string {
	m := stageResponses()
	m["Create a weekly synthesis"] = `{"key_themes": ["learning"], "recommendations": ["block mornings"]}`
	return m
}

func newBatchFixture(t *testing.T, repo *batchThoughts, synthRepo *memSynthesisRepo) (*BatchRunner, *memCacheRepo) {
	t.Helper()
	pipeline := agent.NewPipeline(&stubClient{responses: synthesisResponses()}, false)
	contexts := &stubContexts{ctx: thought.OwnerContext{}}
	cacheRepo := &memCacheRepo{}
	cache := semanticcache.New(cacheRepo, &memEmbedder{}, 0.92, 7*24*time.Hour)
	orch := NewOrchestrator(repo, contexts, &stubPersonas{}, pipeline,
		agent.NewGroupRunner(pipeline, 5), cache, &recordingPublisher{}, time.Minute)
	synthesis := NewSynthesisService(repo, contexts, synthRepo, pipeline)
	return NewBatchRunner(repo, orch, synthesis, cache, 0), cacheRepo
}

func pendingFor(owner, publicID string) *thought.Thought {
	return &thought.Thought{
		PublicID:       publicID,
		OwnerID:        owner,
		Text:           "Thought " + publicID,
		Status:         thought.StatusPending,
		ProcessingMode: thought.ModeSingle,
	}
}

func TestBatchRunGroupsByOwnerInOrder(t *testing.T) {
	repo := &batchThoughts{pending: []*thought.Thought{
		pendingFor("alice", "a-1"),
		pendingFor("bob", "b-1"),
		pendingFor("alice", "a-2"),
		pendingFor("bob", "b-2"),
	}}
	runner, _ := newBatchFixture(t, repo, &memSynthesisRepo{})
	runner.now = func() time.Time {
		return time.Date(2026, 8, 26, 2, 0, 0, 0, time.UTC) // a Wednesday
	}

	stats, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.Owners != 2 || stats.Processed != 4 || stats.Succeeded != 4 {
		t.Errorf("stats = %+v, want 2 owners / 4 processed / 4 succeeded", stats)
	}

	// Each owner's backlog runs contiguously and in creation order.
	want := []string{"a-1", "a-2", "b-1", "b-2"}
	if len(repo.saveOrder) != len(want) {
		t.Fatalf("saves = %v, want %v", repo.saveOrder, want)
	}
	for i, id := range want {
		if repo.saveOrder[i] != id {
			t.Errorf("saveOrder[%d] = %s, want %s", i, repo.saveOrder[i], id)
		}
	}
	if stats.Syntheses != 0 {
		t.Error("no synthesis outside Sunday")
	}
}

func TestBatchRunSundaySynthesis(t *testing.T) {
	completed := []*thought.Thought{
		{Text: "one", Priority: map[string]any{"priority_level": "High"}},
		{Text: "two", Priority: map[string]any{"priority_level": "Low"}},
		{Text: "three", ValueImpact: map[string]any{"weighted_total": 6.0}},
	}
	repo := &batchThoughts{
		pending:   []*thought.Thought{pendingFor("alice", "a-1")},
		completed: map[string][]*thought.Thought{"alice": completed},
	}
	synthRepo := &memSynthesisRepo{}
	runner, _ := newBatchFixture(t, repo, synthRepo)
	runner.now = func() time.Time {
		return time.Date(2026, 8, 30, 2, 0, 0, 0, time.UTC) // a Sunday
	}

	stats, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.Syntheses != 1 {
		t.Fatalf("syntheses = %d, want 1", stats.Syntheses)
	}
	if len(synthRepo.saved) != 1 {
		t.Fatalf("stored syntheses = %d, want 1", len(synthRepo.saved))
	}
	s := synthRepo.saved[0]
	if s.OwnerID != "alice" || s.ThoughtCount != 3 {
		t.Errorf("synthesis = %+v, want alice over 3 thoughts", s)
	}
	if s.Content["key_themes"] == nil {
		t.Error("synthesis content missing")
	}
}

func TestBatchRunSynthesisSkippedBelowMinimum(t *testing.T) {
	repo := &batchThoughts{
		pending: []*thought.Thought{pendingFor("alice", "a-1")},
		completed: map[string][]*thought.Thought{"alice": {
			{Text: "one"}, {Text: "two"},
		}},
	}
	synthRepo := &memSynthesisRepo{}
	runner, _ := newBatchFixture(t, repo, synthRepo)
	runner.now = func() time.Time {
		return time.Date(2026, 8, 30, 2, 0, 0, 0, time.UTC) // a Sunday
	}

	stats, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.Syntheses != 0 || len(synthRepo.saved) != 0 {
		t.Error("fewer than three completed thoughts must not synthesize")
	}
}

func TestBatchRunCacheCleanupAndStats(t *testing.T) {
	// Two near-identical thoughts from one owner: the first misses and
	// seeds the cache, the second hits it.
	repo := &batchThoughts{pending: []*thought.Thought{
		pendingFor("alice", "a-1"),
		pendingFor("alice", "a-2"),
	}}
	runner, cacheRepo := newBatchFixture(t, repo, &memSynthesisRepo{})
	cacheRepo.expired = 3
	runner.now = func() time.Time {
		return time.Date(2026, 8, 26, 2, 0, 0, 0, time.UTC) // a Wednesday
	}

	stats, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.CacheHits != 1 || stats.CacheMisses != 1 {
		t.Errorf("cache hits/misses = %d/%d, want 1/1", stats.CacheHits, stats.CacheMisses)
	}
	if cacheRepo.cleanupCalls != 1 {
		t.Errorf("cleanup calls = %d, want one per pass", cacheRepo.cleanupCalls)
	}
	if stats.CacheExpired != 3 {
		t.Errorf("expired count = %d, want 3", stats.CacheExpired)
	}
}

func TestWeekStart(t *testing.T) {
	cases := []struct {
		in   time.Time
		want time.Time
	}{
		{time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC), time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)}, // Sunday -> prior Monday
		{time.Date(2026, 8, 24, 0, 30, 0, 0, time.UTC), time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)}, // Monday -> itself
		{time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC), time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)},  // Wednesday
	}
	for _, c := range cases {
		if got := weekStart(c.in); !got.Equal(c.want) {
			t.Errorf("weekStart(%s) = %s, want %s", c.in, got, c.want)
		}
	}
}
