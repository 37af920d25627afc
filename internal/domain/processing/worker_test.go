package processing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/agent"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/semanticcache"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/thought"
)

type workerThoughts struct {
	batchThoughts
	byID    map[string]*thought.Thought
	findErr error
}

func (w *workerThoughts) FindByPublicID(ctx context.Context, publicID string) (*thought.Thought, error) {
	if w.findErr != nil {
		return nil, w.findErr
	}
	return w.byID[publicID], nil
}

func newWorkerFixture(t *testing.T, repo *workerThoughts) *StreamWorker {
	t.Helper()
	pipeline := agent.NewPipeline(&stubClient{responses: stageResponses()}, false)
	cache := semanticcache.New(&memCacheRepo{}, &memEmbedder{}, 0.92, 7*24*time.Hour)
	orch := NewOrchestrator(repo, &stubContexts{ctx: thought.OwnerContext{}}, &stubPersonas{},
		pipeline, agent.NewGroupRunner(pipeline, 5), cache, &recordingPublisher{}, time.Minute)
	return NewStreamWorker(repo, orch)
}

func TestStreamWorkerProcessesPendingThought(t *testing.T) {
	repo := &workerThoughts{byID: map[string]*thought.Thought{
		"th-1": pendingFor("alice", "th-1"),
	}}
	worker := newWorkerFixture(t, repo)

	if err := worker.Handle(context.Background(), "th-1"); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(repo.saveOrder) != 1 || repo.saveOrder[0] != "th-1" {
		t.Errorf("saves = %v, want [th-1]", repo.saveOrder)
	}
}

func TestStreamWorkerDropsUnknownThought(t *testing.T) {
	repo := &workerThoughts{byID: map[string]*thought.Thought{}}
	worker := newWorkerFixture(t, repo)

	if err := worker.Handle(context.Background(), "missing"); err != nil {
		t.Errorf("unknown thought must be acknowledged, got %v", err)
	}
	if len(repo.saveOrder) != 0 {
		t.Error("nothing should be processed")
	}
}

func TestStreamWorkerSkipsNonPending(t *testing.T) {
	done := pendingFor("alice", "th-1")
	done.Status = thought.StatusCompleted
	repo := &workerThoughts{byID: map[string]*thought.Thought{"th-1": done}}
	worker := newWorkerFixture(t, repo)

	if err := worker.Handle(context.Background(), "th-1"); err != nil {
		t.Errorf("redelivery of a finished thought must be acknowledged, got %v", err)
	}
	if len(repo.saveOrder) != 0 {
		t.Error("finished thought must not be reprocessed")
	}
}

func TestStreamWorkerPropagatesLookupError(t *testing.T) {
	repo := &workerThoughts{findErr: errors.New("connection refused")}
	worker := newWorkerFixture(t, repo)

	if err := worker.Handle(context.Background(), "th-1"); err == nil {
		t.Error("store errors must flow back to the consumer for retry")
	}
}
