package processing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/agent"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/persona"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/semanticcache"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/thought"
)

// stubClient returns canned JSON keyed by a substring of the user prompt.
type stubClient struct {
	mu        sync.Mutex
	responses map[string]string
	calls     []string
	failFor   string // substring of the system prompt that triggers a failure
}

func stageResponses() map[string]string {
	return map[string]string{
		"extract structured information": `{"type": "idea", "keywords": ["rust"]}`,
		"deep contextual analysis":       `{"themes": ["learning"], "feasibility": "high"}`,
		"Assess the value impact":        `{"weighted_total": 7.5}`,
		"realistic action plan":          `{"steps": [{"step": 1, "action": "read book"}]}`,
		"Determine the priority":         `{"priority_level": "High", "recommendation": "Start this week"}`,
		"Synthesize their perspectives":  `{"balanced_recommendation": "Proceed carefully", "overall_priority": "Medium"}`,
	}
}

func (s *stubClient) Generate(ctx context.Context, messages []agent.Message, opts agent.GenerateOptions) (*agent.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor != "" && strings.Contains(opts.SystemPrompt, s.failFor) {
		return nil, errors.New("model backend unavailable")
	}
	prompt := messages[len(messages)-1].Content
	for key, body := range s.responses {
		if strings.Contains(prompt, key) {
			s.calls = append(s.calls, key)
			return &agent.Response{Content: body, Usage: &agent.Usage{TotalTokens: 100}}, nil
		}
	}
	return nil, errors.New("no canned response for prompt")
}

func (s *stubClient) GenerateWithCache(ctx context.Context, messages []agent.Message, systemPrompt, cacheableContext string, maxTokens int) (*agent.Response, error) {
	return s.Generate(ctx, messages, agent.GenerateOptions{SystemPrompt: systemPrompt + cacheableContext, MaxTokens: maxTokens})
}

func (s *stubClient) SupportsCaching() bool { return false }

func (s *stubClient) ModelName() string { return "stub-model" }
func (s *stubClient) EstimateCost(inputTokens, outputTokens int) float64 {
	return 0
}

func (s *stubClient) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type stubThoughts struct {
	thought.Repository
	markProcessing []string
	saved          *thought.Thought
	savedEmbedding []float32
	failedWith     string
	markProcErr    error
	rejectExpired  bool // MarkFailed refuses a dead context, like a real store
}

func (s *stubThoughts) MarkProcessing(ctx context.Context, publicID string, attempts int) error {
	s.markProcessing = append(s.markProcessing, publicID)
	return s.markProcErr
}

func (s *stubThoughts) SaveResult(ctx context.Context, t *thought.Thought, embedding []float32) error {
	copied := *t
	s.saved = &copied
	s.savedEmbedding = embedding
	return nil
}

func (s *stubThoughts) MarkFailed(ctx context.Context, publicID string, errorMessage string) error {
	if s.rejectExpired && ctx.Err() != nil {
		return ctx.Err()
	}
	s.failedWith = errorMessage
	return nil
}

type stubContexts struct {
	ctx thought.OwnerContext
	err error
}

func (s *stubContexts) GetOwnerContext(ctx context.Context, ownerID string) (thought.OwnerContext, error) {
	return s.ctx, s.err
}

type stubPersonas struct {
	persona.Repository
	group *persona.Group
	runs  []*persona.Run
}

func (s *stubPersonas) FindGroupByPublicID(ctx context.Context, publicID string, includePersonas bool) (*persona.Group, error) {
	return s.group, nil
}

func (s *stubPersonas) CreateRun(ctx context.Context, r *persona.Run) error {
	s.runs = append(s.runs, r)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event *Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) ofType(t EventType) []*Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*Event
	for _, e := range p.events {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

// memEmbedder and memCacheRepo give the orchestrator a working semantic
// cache without a database.
type memEmbedder struct{ err error }

func (m *memEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []float32{1, 0, 0}, nil
}

type memCacheRepo struct {
	entries      []*semanticcache.Entry
	expired      int64 // reported by DeleteExpired
	cleanupCalls int
}

func (m *memCacheRepo) FindSimilar(ctx context.Context, ownerID string, embedding []float32, threshold float64, maxAge time.Duration, limit int) ([]*semanticcache.Entry, error) {
	for _, e := range m.entries {
		if e.OwnerID == ownerID {
			e.Similarity = 0.97
			return []*semanticcache.Entry{e}, nil
		}
	}
	return nil, nil
}

func (m *memCacheRepo) Save(ctx context.Context, e *semanticcache.Entry) error {
	e.CreatedAt = time.Now()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memCacheRepo) DeleteExpired(ctx context.Context, maxAge time.Duration) (int64, error) {
	m.cleanupCalls++
	return m.expired, nil
}

type fixture struct {
	orchestrator *Orchestrator
	client       *stubClient
	thoughts     *stubThoughts
	personas     *stubPersonas
	publisher    *recordingPublisher
	cacheRepo    *memCacheRepo
}

func newFixture(t *testing.T, client *stubClient, embedErr error) *fixture {
	t.Helper()
	pipeline := agent.NewPipeline(client, false)
	thoughts := &stubThoughts{}
	personas := &stubPersonas{}
	publisher := &recordingPublisher{}
	cacheRepo := &memCacheRepo{}
	cache := semanticcache.New(cacheRepo, &memEmbedder{err: embedErr}, 0.92, 7*24*time.Hour)
	orch := NewOrchestrator(
		thoughts,
		&stubContexts{ctx: thought.OwnerContext{"goals": []any{"learn"}}},
		personas,
		pipeline,
		agent.NewGroupRunner(pipeline, 5),
		cache,
		publisher,
		time.Minute,
	)
	return &fixture{orch, client, thoughts, personas, publisher, cacheRepo}
}

func pendingThought(mode thought.ProcessingMode) *thought.Thought {
	t := &thought.Thought{
		PublicID:       "th-1",
		OwnerID:        "owner-1",
		Text:           "Should I learn Rust?",
		Status:         thought.StatusPending,
		ProcessingMode: mode,
	}
	if mode == thought.ModeGroup {
		gid := "grp-1"
		t.GroupPublicID = &gid
	}
	return t
}

func TestProcessOneSingleMode(t *testing.T) {
	f := newFixture(t, &stubClient{responses: stageResponses()}, nil)
	th := pendingThought(thought.ModeSingle)

	if err := f.orchestrator.ProcessOne(context.Background(), th); err != nil {
		t.Fatalf("ProcessOne failed: %v", err)
	}

	saved := f.thoughts.saved
	if saved == nil {
		t.Fatal("result was never persisted")
	}
	if saved.Classification == nil || saved.Analysis == nil || saved.ValueImpact == nil ||
		saved.ActionPlan == nil || saved.Priority == nil {
		t.Error("single mode must populate all five result blocks")
	}
	if saved.ConsolidatedOutput != nil {
		t.Error("single mode must not populate the group payload")
	}
	if f.thoughts.savedEmbedding == nil {
		t.Error("embedding from the cache lookup should be reused for persistence")
	}
	if len(f.cacheRepo.entries) != 1 {
		t.Errorf("cache entries = %d, want the fresh result stored", len(f.cacheRepo.entries))
	}

	if got := len(f.publisher.ofType(EventAgentCompleted)); got != agent.TotalStages {
		t.Errorf("agent_completed events = %d, want %d", got, agent.TotalStages)
	}
	completed := f.publisher.ofType(EventProcessingCompleted)
	if len(completed) != 1 {
		t.Fatalf("processing_completed events = %d, want 1", len(completed))
	}
	if completed[0].Payload["from_cache"] != false {
		t.Error("fresh run must report from_cache=false")
	}
}

func TestProcessOneCacheHitSkipsPipeline(t *testing.T) {
	f := newFixture(t, &stubClient{responses: stageResponses()}, nil)
	f.cacheRepo.entries = []*semanticcache.Entry{{
		OwnerID:   "owner-1",
		Embedding: []float32{1, 0, 0},
		Result: map[string]any{
			"classification": map[string]any{"type": "idea"},
			"analysis":       map[string]any{"themes": []any{"learning"}},
			"value_impact":   map[string]any{"weighted_total": 7.5},
			"action_plan":    map[string]any{"steps": []any{}},
			"priority":       map[string]any{"priority_level": "High"},
		},
		CreatedAt: time.Now(),
	}}

	th := pendingThought(thought.ModeSingle)
	if err := f.orchestrator.ProcessOne(context.Background(), th); err != nil {
		t.Fatalf("ProcessOne failed: %v", err)
	}

	if f.client.callCount() != 0 {
		t.Errorf("generation calls = %d, cache hit must not invoke the pipeline", f.client.callCount())
	}
	if f.thoughts.saved == nil || f.thoughts.saved.Priority["priority_level"] != "High" {
		t.Error("cached result must be persisted onto the thought")
	}

	// Subscribers see the same stage progression as a fresh run, flagged cached.
	stageEvents := f.publisher.ofType(EventAgentCompleted)
	if len(stageEvents) != agent.TotalStages {
		t.Fatalf("agent_completed events = %d, want %d", len(stageEvents), agent.TotalStages)
	}
	for _, e := range stageEvents {
		if e.Payload["cached"] != true {
			t.Error("replayed stage events must be marked cached")
		}
	}
	completed := f.publisher.ofType(EventProcessingCompleted)
	if len(completed) != 1 || completed[0].Payload["from_cache"] != true {
		t.Error("completion event must report from_cache=true")
	}
}

func TestProcessOneGroupModePartialFailure(t *testing.T) {
	// The Skeptic's persona prompt appears in its system prompt, which is
	// what failFor matches against, so exactly one persona fails.
	client := &stubClient{responses: stageResponses(), failFor: "Skeptic"}
	f := newFixture(t, client, nil)
	f.personas.group = &persona.Group{
		PublicID: "grp-1",
		OwnerID:  "owner-1",
		Name:     "Advisors",
		Personas: []persona.Persona{
			{PublicID: "p-1", Name: "Optimist", RolePrompt: "See the upside."},
			{PublicID: "p-2", Name: "Skeptic", RolePrompt: "Find the flaws."},
			{PublicID: "p-3", Name: "Pragmatist", RolePrompt: "Focus on execution."},
		},
	}

	th := pendingThought(thought.ModeGroup)
	if err := f.orchestrator.ProcessOne(context.Background(), th); err != nil {
		t.Fatalf("ProcessOne failed: %v", err)
	}

	saved := f.thoughts.saved
	if saved == nil || saved.ConsolidatedOutput == nil {
		t.Fatal("group mode must persist a consolidated output")
	}
	if saved.Classification != nil || saved.Priority != nil {
		t.Error("group mode must not populate single-mode blocks")
	}

	// One run row per persona, the failure included.
	if len(f.personas.runs) != 3 {
		t.Fatalf("persona runs = %d, want 3", len(f.personas.runs))
	}
	var failedRuns, succeededRuns int
	for _, r := range f.personas.runs {
		if r.Output != nil {
			succeededRuns++
		}
		if r.ErrorMessage != nil {
			failedRuns++
			if r.PersonaName != "Skeptic" {
				t.Errorf("failed run recorded for %q, want Skeptic", r.PersonaName)
			}
		}
	}
	if succeededRuns != 2 || failedRuns != 1 {
		t.Errorf("runs succeeded=%d failed=%d, want 2/1", succeededRuns, failedRuns)
	}

	personaEvents := f.publisher.ofType(EventPersonaCompleted)
	if len(personaEvents) != 3 {
		t.Errorf("persona_completed events = %d, want 3", len(personaEvents))
	}
	if len(f.publisher.ofType(EventConsolidationStarted)) != 1 {
		t.Error("consolidation_started event missing")
	}
}

func TestProcessOneGroupModeAllPersonasFail(t *testing.T) {
	client := &stubClient{responses: stageResponses(), failFor: "advisory_role"}
	f := newFixture(t, client, nil)
	f.personas.group = &persona.Group{
		PublicID: "grp-1",
		OwnerID:  "owner-1",
		Personas: []persona.Persona{
			{PublicID: "p-1", Name: "Optimist", RolePrompt: "See the upside."},
			{PublicID: "p-2", Name: "Skeptic", RolePrompt: "Find the flaws."},
		},
	}

	th := pendingThought(thought.ModeGroup)
	err := f.orchestrator.ProcessOne(context.Background(), th)
	if err == nil {
		t.Fatal("expected failure when every persona fails")
	}
	if f.thoughts.failedWith == "" {
		t.Error("thought must be marked failed with a reason")
	}
	if f.thoughts.saved != nil {
		t.Error("no result may be persisted on total failure")
	}
	failed := f.publisher.ofType(EventProcessingFailed)
	if len(failed) != 1 {
		t.Fatalf("processing_failed events = %d, want 1", len(failed))
	}
}

func TestProcessOneFailureTruncatesError(t *testing.T) {
	client := &stubClient{responses: map[string]string{}} // no canned responses: stage 1 errors
	f := newFixture(t, client, nil)
	th := pendingThought(thought.ModeSingle)

	if err := f.orchestrator.ProcessOne(context.Background(), th); err == nil {
		t.Fatal("expected pipeline failure")
	}
	if f.thoughts.failedWith == "" {
		t.Fatal("failure reason not persisted")
	}
	if len(f.thoughts.failedWith) > thought.MaxErrorMessageLength {
		t.Errorf("persisted error length %d exceeds %d", len(f.thoughts.failedWith), thought.MaxErrorMessageLength)
	}
}

// hangingClient never answers; the run only ends when its deadline fires.
type hangingClient struct {
	stubClient
}

func (h *hangingClient) Generate(ctx context.Context, messages []agent.Message, opts agent.GenerateOptions) (*agent.Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestProcessOneTimeoutStillMarksFailed(t *testing.T) {
	client := &hangingClient{}
	pipeline := agent.NewPipeline(client, false)
	thoughts := &stubThoughts{rejectExpired: true}
	publisher := &recordingPublisher{}
	cache := semanticcache.New(&memCacheRepo{}, &memEmbedder{}, 0.92, 7*24*time.Hour)
	orch := NewOrchestrator(
		thoughts,
		&stubContexts{ctx: thought.OwnerContext{}},
		&stubPersonas{},
		pipeline,
		agent.NewGroupRunner(pipeline, 5),
		cache,
		publisher,
		30*time.Millisecond,
	)

	th := pendingThought(thought.ModeSingle)
	if err := orch.ProcessOne(context.Background(), th); err == nil {
		t.Fatal("expected the run to fail on deadline")
	}
	if thoughts.failedWith == "" {
		t.Fatal("thought must be marked failed even though the run context expired")
	}
	if !strings.Contains(thoughts.failedWith, context.DeadlineExceeded.Error()) {
		t.Errorf("failure reason %q does not carry the deadline cause", thoughts.failedWith)
	}
	if len(publisher.ofType(EventProcessingFailed)) != 1 {
		t.Error("processing_failed event missing after timeout")
	}
}

func TestProcessOneMarkProcessingFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, &stubClient{responses: stageResponses()}, nil)
	f.thoughts.markProcErr = errors.New("deadlock detected")

	th := pendingThought(thought.ModeSingle)
	if err := f.orchestrator.ProcessOne(context.Background(), th); err != nil {
		t.Fatalf("claim write failure must not abort processing: %v", err)
	}
	if f.thoughts.saved == nil {
		t.Error("result must still be persisted")
	}
}

func TestProcessOneSingleModeEmbeddingFailure(t *testing.T) {
	f := newFixture(t, &stubClient{responses: stageResponses()}, errors.New("embedding service down"))
	th := pendingThought(thought.ModeSingle)

	if err := f.orchestrator.ProcessOne(context.Background(), th); err != nil {
		t.Fatalf("embedding outage must not fail the run: %v", err)
	}
	if f.thoughts.saved == nil {
		t.Fatal("result must be persisted without a vector")
	}
	if f.thoughts.savedEmbedding != nil {
		t.Error("no embedding should be persisted when the provider is down")
	}
	if len(f.cacheRepo.entries) != 0 {
		t.Error("nothing may enter the cache without a vector")
	}
}
