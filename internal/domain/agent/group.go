package agent

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/persona"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/thought"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/metrics"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/utils/platformerrors"
)

// PersonaOutput is one persona's full pipeline result, or its failure.
type PersonaOutput struct {
	PersonaPublicID *string
	PersonaName     string
	Result          *thought.AnalysisResult
	Err             error
	Elapsed         time.Duration
}

// Succeeded reports whether this persona produced a usable result.
func (o *PersonaOutput) Succeeded() bool {
	return o.Err == nil && o.Result != nil
}

// GroupResult carries the fan-out outputs plus the consolidated synthesis.
type GroupResult struct {
	Outputs      []PersonaOutput
	Consolidated thought.ConsolidatedOutput
}

// GroupHooks receives progress notifications during a group run. Either
// field may be nil.
type GroupHooks struct {
	// OnPersonaDone fires as each persona finishes, successful or not,
	// with 1-based completion order.
	OnPersonaDone func(out *PersonaOutput, completed, total int)
	// OnConsolidation fires when all personas are done and synthesis starts.
	OnConsolidation func(succeeded, total int)
}

// GroupRunner fans the full pipeline out across a group's personas and
// consolidates the survivors. Persona failures are isolated: one persona's
// error never cancels its siblings.
type GroupRunner struct {
	pipeline      *Pipeline
	maxConcurrent int
}

func NewGroupRunner(pipeline *Pipeline, maxConcurrent int) *GroupRunner {
	if maxConcurrent <= 0 || maxConcurrent > persona.MaxPersonasPerGroup {
		maxConcurrent = persona.MaxPersonasPerGroup
	}
	return &GroupRunner{pipeline: pipeline, maxConcurrent: maxConcurrent}
}

// Run executes every persona concurrently, waits for all of them, and
// consolidates. It fails only when the group is empty, every persona
// failed, or the consolidation call itself errors.
func (r *GroupRunner) Run(ctx context.Context, text string, ownerCtx thought.OwnerContext, personas []persona.Persona, hooks GroupHooks) (*GroupResult, error) {
	if len(personas) == 0 {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"persona group has no personas", nil, "agent-group-001")
	}

	total := len(personas)
	outputs := make([]PersonaOutput, total)
	done := make(chan int, total)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxConcurrent)
	for i := range personas {
		i := i
		p := personas[i]
		g.Go(func() error {
			start := time.Now()
			result, err := r.runPersona(gctx, text, ownerCtx, p)
			publicID := p.PublicID
			outputs[i] = PersonaOutput{
				PersonaPublicID: &publicID,
				PersonaName:     p.Name,
				Result:          result,
				Err:             err,
				Elapsed:         time.Since(start),
			}
			if err != nil {
				metrics.PersonaRunsTotal.WithLabelValues("failed").Inc()
				r.pipeline.log.Warn().Err(err).Str("persona", p.Name).Msg("persona run failed")
			} else {
				metrics.PersonaRunsTotal.WithLabelValues("succeeded").Inc()
			}
			done <- i
			// Failures are recorded in the slot, never propagated, so the
			// errgroup never cancels sibling personas.
			return nil
		})
	}

	if hooks.OnPersonaDone != nil {
		for completed := 1; completed <= total; completed++ {
			i := <-done
			hooks.OnPersonaDone(&outputs[i], completed, total)
		}
	}
	_ = g.Wait()

	succeeded := 0
	for i := range outputs {
		if outputs[i].Succeeded() {
			succeeded++
		}
	}
	if succeeded == 0 {
		return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal,
			"all personas failed", firstError(outputs), "agent-group-002",
			map[string]any{"personas": total})
	}

	if hooks.OnConsolidation != nil {
		hooks.OnConsolidation(succeeded, total)
	}

	projections := make([]personaProjection, 0, succeeded)
	for i := range outputs {
		if !outputs[i].Succeeded() {
			continue
		}
		res := outputs[i].Result
		projections = append(projections, personaProjection{
			PersonaName:    outputs[i].PersonaName,
			Priority:       res.Priority,
			Recommendation: recommendationOf(res.Priority),
			ActionPlan:     res.ActionPlan,
			ValueImpact:    res.ValueImpact,
		})
	}

	consolidated, err := r.pipeline.Consolidate(ctx, text, ownerCtx, projections)
	if err != nil {
		return nil, err
	}
	if IsErrorResult(consolidated) {
		return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal,
			"consolidation produced unparseable output", nil, "agent-group-003",
			map[string]any{"raw": consolidated["raw"]})
	}

	return &GroupResult{
		Outputs:      outputs,
		Consolidated: thought.ConsolidatedOutput(consolidated),
	}, nil
}

// runPersona runs the five-stage pipeline with the persona's role framing
// layered on top of the owner context.
func (r *GroupRunner) runPersona(ctx context.Context, text string, ownerCtx thought.OwnerContext, p persona.Persona) (*thought.AnalysisResult, error) {
	personaCtx := make(thought.OwnerContext, len(ownerCtx)+1)
	for k, v := range ownerCtx {
		personaCtx[k] = v
	}
	personaCtx["advisory_role"] = map[string]any{
		"name":        p.Name,
		"role_prompt": p.RolePrompt,
	}
	return r.pipeline.Process(ctx, text, personaCtx, nil)
}

func recommendationOf(priority map[string]any) any {
	if priority == nil {
		return nil
	}
	return priority["final_recommendation"]
}

func firstError(outputs []PersonaOutput) error {
	for i := range outputs {
		if outputs[i].Err != nil {
			return outputs[i].Err
		}
	}
	return nil
}
