package processing

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/agent"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/persona"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/semanticcache"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/thought"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/logger"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/metrics"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/utils/platformerrors"
)

// terminalWriteTimeout bounds the failed-status write once the run context
// is no longer usable.
const terminalWriteTimeout = 10 * time.Second

// Orchestrator drives one thought through its full lifecycle: claim,
// context resolution, cache check, pipeline or group run, persistence,
// and progress events. It never retries internally; retry policy belongs
// to the caller (stream consumer or batch loop).
type Orchestrator struct {
	thoughts  thought.Repository
	contexts  thought.ContextRepository
	personas  persona.Repository
	pipeline  *agent.Pipeline
	groups    *agent.GroupRunner
	cache     *semanticcache.Cache
	publisher EventPublisher
	timeout   time.Duration
	log       zerolog.Logger
}

func NewOrchestrator(
	thoughts thought.Repository,
	contexts thought.ContextRepository,
	personas persona.Repository,
	pipeline *agent.Pipeline,
	groups *agent.GroupRunner,
	cache *semanticcache.Cache,
	publisher EventPublisher,
	timeout time.Duration,
) *Orchestrator {
	return &Orchestrator{
		thoughts:  thoughts,
		contexts:  contexts,
		personas:  personas,
		pipeline:  pipeline,
		groups:    groups,
		cache:     cache,
		publisher: publisher,
		timeout:   timeout,
		log:       logger.GetLogger().With().Str("component", "orchestrator").Logger(),
	}
}

// ProcessOne runs a single thought to a terminal state. The returned error
// reflects the processing outcome; the thought's persisted status is already
// final either way.
func (o *Orchestrator) ProcessOne(ctx context.Context, t *thought.Thought) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	attempts := t.ProcessingAttempts + 1
	if err := o.thoughts.MarkProcessing(ctx, t.PublicID, attempts); err != nil {
		// The store stays authoritative for terminal transitions; a failed
		// claim write only costs the intermediate status visibility.
		o.log.Warn().Err(err).Str("thought_id", t.PublicID).Msg("failed to persist processing transition")
	}
	t.Status = thought.StatusProcessing
	t.ProcessingAttempts = attempts

	o.publisher.Publish(ctx, NewProcessingStarted(t.OwnerID, t.PublicID, string(t.ProcessingMode)))
	o.log.Info().
		Str("thought_id", t.PublicID).
		Str("owner_id", t.OwnerID).
		Str("mode", string(t.ProcessingMode)).
		Int("attempt", attempts).
		Msg("processing thought")

	err := o.process(ctx, t, start)
	if err != nil {
		return o.fail(ctx, t, err)
	}
	metrics.ThoughtsProcessedTotal.WithLabelValues("completed", string(t.ProcessingMode)).Inc()
	return nil
}

func (o *Orchestrator) process(ctx context.Context, t *thought.Thought, start time.Time) error {
	ownerCtx, err := o.contexts.GetOwnerContext(ctx, t.OwnerID)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to resolve owner context")
	}

	if t.ProcessingMode == thought.ModeGroup {
		return o.processGroup(ctx, t, ownerCtx, start)
	}
	return o.processSingle(ctx, t, ownerCtx, start)
}

// processSingle checks the semantic cache first; a hit replays the stage
// progression so subscribers see the same event shape as a fresh run.
func (o *Orchestrator) processSingle(ctx context.Context, t *thought.Thought, ownerCtx thought.OwnerContext, start time.Time) error {
	entry, embedding := o.cache.Lookup(ctx, t.OwnerID, t.Text)
	if entry != nil {
		return o.completeFromCache(ctx, t, entry, embedding, start)
	}

	result, err := o.pipeline.Process(ctx, t.Text, ownerCtx, func(stage string, number int) {
		o.publisher.Publish(ctx, NewAgentCompleted(t.OwnerID, t.PublicID, stage, number, agent.TotalStages, false))
	})
	if err != nil {
		return err
	}

	t.SetSingleResult(result)
	if err := o.thoughts.SaveResult(ctx, t, embedding); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to persist result")
	}

	if storeErr := o.cache.Store(ctx, t.OwnerID, t.Text, embedding, singleResultMap(result)); storeErr != nil {
		// A write-through miss only costs a future cache hit.
		o.log.Warn().Err(storeErr).Str("thought_id", t.PublicID).Msg("cache store failed")
	}

	o.publisher.Publish(ctx, NewProcessingCompleted(t.OwnerID, t.PublicID, false, time.Since(start)))
	return nil
}

func (o *Orchestrator) completeFromCache(ctx context.Context, t *thought.Thought, entry *semanticcache.Entry, embedding []float32, start time.Time) error {
	stages := []string{agent.StageClassify, agent.StageAnalyze, agent.StageAssessValue, agent.StagePlanActions, agent.StagePrioritize}
	for i, stage := range stages {
		o.publisher.Publish(ctx, NewAgentCompleted(t.OwnerID, t.PublicID, stage, i+1, agent.TotalStages, true))
	}

	t.SetSingleResult(resultFromMap(entry.Result))
	if err := o.thoughts.SaveResult(ctx, t, embedding); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to persist cached result")
	}

	o.publisher.Publish(ctx, NewProcessingCompleted(t.OwnerID, t.PublicID, true, time.Since(start)))
	return nil
}

func (o *Orchestrator) processGroup(ctx context.Context, t *thought.Thought, ownerCtx thought.OwnerContext, start time.Time) error {
	if t.GroupPublicID == nil {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"group mode thought has no group reference", nil, "orchestrator-001")
	}
	group, err := o.personas.FindGroupByPublicID(ctx, *t.GroupPublicID, true)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load persona group")
	}
	if group == nil {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
			"persona group not found", nil, "orchestrator-002")
	}

	hooks := agent.GroupHooks{
		OnPersonaDone: func(out *agent.PersonaOutput, completed, total int) {
			o.publisher.Publish(ctx, NewPersonaCompleted(t.OwnerID, t.PublicID, out.PersonaName, completed, total, out.Succeeded()))
		},
		OnConsolidation: func(succeeded, total int) {
			o.publisher.Publish(ctx, NewConsolidationStarted(t.OwnerID, t.PublicID, succeeded, total))
		},
	}

	groupResult, err := o.groups.Run(ctx, t.Text, ownerCtx, group.Personas, hooks)
	if err != nil {
		return err
	}

	o.recordRuns(ctx, t, *t.GroupPublicID, groupResult.Outputs)

	// The search embedding is an optimization either way.
	embedding, embErr := o.cache.Embedding(ctx, t.Text)
	if embErr != nil {
		o.log.Warn().Err(embErr).Str("thought_id", t.PublicID).Msg("embedding failed, storing result without vector")
	}

	t.SetGroupResult(groupResult.Consolidated)
	if err := o.thoughts.SaveResult(ctx, t, embedding); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to persist group result")
	}

	o.publisher.Publish(ctx, NewProcessingCompleted(t.OwnerID, t.PublicID, false, time.Since(start)))
	return nil
}

// recordRuns appends run history for every persona, failures included, so
// the persisted fan-out always has one row per persona. History is
// observability; write failures are logged only.
func (o *Orchestrator) recordRuns(ctx context.Context, t *thought.Thought, groupPublicID string, outputs []agent.PersonaOutput) {
	for i := range outputs {
		out := &outputs[i]
		run := &persona.Run{
			ThoughtPublicID:  t.PublicID,
			PersonaPublicID:  out.PersonaPublicID,
			GroupPublicID:    groupPublicID,
			PersonaName:      out.PersonaName,
			ProcessingTimeMs: out.Elapsed.Milliseconds(),
		}
		if out.Succeeded() {
			run.Output = singleResultMap(out.Result)
		} else if out.Err != nil {
			msg := thought.TruncateError(out.Err.Error())
			run.ErrorMessage = &msg
		}
		if err := o.personas.CreateRun(ctx, run); err != nil {
			o.log.Warn().Err(err).Str("persona", out.PersonaName).Msg("failed to record persona run")
		}
	}
}

func (o *Orchestrator) fail(ctx context.Context, t *thought.Thought, cause error) error {
	// A processing timeout is the most common way to get here, and the run
	// context is already expired then. The terminal write and the failure
	// event get their own deadline so the thought never strands in
	// processing.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminalWriteTimeout)
	defer cancel()

	msg := thought.TruncateError(cause.Error())
	if err := o.thoughts.MarkFailed(writeCtx, t.PublicID, msg); err != nil {
		o.log.Error().Err(err).Str("thought_id", t.PublicID).Msg("failed to mark thought failed")
	}
	o.publisher.Publish(writeCtx, NewProcessingFailed(t.OwnerID, t.PublicID, msg, t.ProcessingAttempts))
	metrics.ThoughtsProcessedTotal.WithLabelValues("failed", string(t.ProcessingMode)).Inc()

	var perr *platformerrors.PlatformError
	if pe, ok := cause.(*platformerrors.PlatformError); ok {
		perr = pe
	} else {
		perr = platformerrors.AsError(ctx, platformerrors.LayerDomain, cause, "thought processing failed")
	}
	platformerrors.LogError(o.log, perr)
	return cause
}

func singleResultMap(r *thought.AnalysisResult) map[string]any {
	return map[string]any{
		"classification": r.Classification,
		"analysis":       r.Analysis,
		"value_impact":   r.ValueImpact,
		"action_plan":    r.ActionPlan,
		"priority":       r.Priority,
	}
}

func resultFromMap(m map[string]any) *thought.AnalysisResult {
	return &thought.AnalysisResult{
		Classification: asMap(m["classification"]),
		Analysis:       asMap(m["analysis"]),
		ValueImpact:    asMap(m["value_impact"]),
		ActionPlan:     asMap(m["action_plan"]),
		Priority:       asMap(m["priority"]),
	}
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}
