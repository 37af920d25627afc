package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/thought"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/logger"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/infrastructure/metrics"
	"github.com/Mieraidihaimu/RAGMultiAgent/internal/utils/platformerrors"
)

// Stage names, in pipeline order.
const (
	StageClassify    = "classify"
	StageAnalyze     = "analyze"
	StageAssessValue = "assess_value"
	StagePlanActions = "plan_actions"
	StagePrioritize  = "prioritize"
)

// TotalStages is the number of agents a single-mode run executes.
const TotalStages = 5

// StageCallback is notified after each completed stage, with the 1-based
// stage number. Used to surface per-agent progress to subscribers.
type StageCallback func(stage string, stageNumber int)

// Pipeline runs the five-stage analysis over a thought. Stages execute
// sequentially and feed forward; a malformed stage output degrades the
// downstream stages rather than aborting the run, except the analysis
// stage whose failure is fatal.
type Pipeline struct {
	client      Client
	promptCache bool
	log         zerolog.Logger
}

// NewPipeline builds a pipeline on the given inference client. promptCache
// enables provider-side prompt caching for the owner-context system prompt
// when the client supports it.
func NewPipeline(client Client, promptCache bool) *Pipeline {
	return &Pipeline{
		client:      client,
		promptCache: promptCache,
		log:         logger.GetLogger().With().Str("component", "agent_pipeline").Logger(),
	}
}

// Process runs all five stages for the thought text under the owner's
// context. onStage may be nil.
func (p *Pipeline) Process(ctx context.Context, text string, ownerCtx thought.OwnerContext, onStage StageCallback) (*thought.AnalysisResult, error) {
	systemPrompt := systemPromptFor(ownerCtx)

	classification, err := p.runStage(ctx, StageClassify, 1, systemPrompt, classifyPrompt(text), classifyMaxTokens, onStage)
	if err != nil {
		return nil, err
	}

	analysis, err := p.runStage(ctx, StageAnalyze, 2, systemPrompt, analyzePrompt(text, classification), analyzeMaxTokens, onStage)
	if err != nil {
		return nil, err
	}
	if IsErrorResult(analysis) {
		// The remaining stages all build on the analysis; without it their
		// output is noise, so this is the one degradation that aborts.
		return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal,
			"analysis stage produced unparseable output",
			fmt.Errorf("stage %s: %v", StageAnalyze, analysis["error"]),
			"agent-pipeline-001",
			map[string]any{"raw": analysis["raw"]})
	}

	valueImpact, err := p.runStage(ctx, StageAssessValue, 3, systemPrompt,
		assessValuePrompt(text, classification, analysis, ownerCtx.ValuesRanking()), assessValueMaxTokens, onStage)
	if err != nil {
		return nil, err
	}

	actionPlan, err := p.runStage(ctx, StagePlanActions, 4, systemPrompt,
		planActionsPrompt(text, analysis, valueImpact, ownerCtx["constraints"], ownerCtx["energy_peaks"]), planActionsMaxTokens, onStage)
	if err != nil {
		return nil, err
	}

	priority, err := p.runStage(ctx, StagePrioritize, 5, systemPrompt,
		prioritizePrompt(text, actionPlan, valueImpact, ownerCtx["current_challenges"]), prioritizeMaxTokens, onStage)
	if err != nil {
		return nil, err
	}

	return &thought.AnalysisResult{
		Classification: classification,
		Analysis:       analysis,
		ValueImpact:    valueImpact,
		ActionPlan:     actionPlan,
		Priority:       priority,
	}, nil
}

// runStage executes one stage and parses its response. A transport or
// provider error is returned as-is; a parse failure is folded into the
// result per parseStageResponse.
func (p *Pipeline) runStage(ctx context.Context, stage string, number int, systemPrompt, userPrompt string, maxTokens int, onStage StageCallback) (StageResult, error) {
	start := time.Now()

	content, err := p.generate(ctx, systemPrompt, userPrompt, maxTokens)
	if err != nil {
		p.log.Error().Err(err).Str("stage", stage).Msg("stage generation failed")
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal,
			fmt.Sprintf("stage %s generation failed", stage), err, "agent-pipeline-002")
	}

	result := parseStageResponse(content)
	elapsed := time.Since(start)
	metrics.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())

	evt := p.log.Debug().Str("stage", stage).Dur("elapsed", elapsed)
	if IsErrorResult(result) {
		evt = p.log.Warn().Str("stage", stage).Dur("elapsed", elapsed).Bool("parse_failed", true)
	}
	evt.Msg("stage completed")

	if onStage != nil {
		onStage(stage, number)
	}
	return result, nil
}

func (p *Pipeline) generate(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	messages := []Message{{Role: RoleUser, Content: userPrompt}}

	if p.promptCache && p.client.SupportsCaching() {
		resp, err := p.client.GenerateWithCache(ctx, messages, baseInstruction, systemPrompt, maxTokens)
		if err != nil {
			return "", err
		}
		return resp.Content, nil
	}

	resp, err := p.client.Generate(ctx, messages, GenerateOptions{
		SystemPrompt: systemPrompt,
		MaxTokens:    maxTokens,
		Temperature:  defaultTemperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Consolidate merges successful persona outputs into one balanced result.
func (p *Pipeline) Consolidate(ctx context.Context, text string, ownerCtx thought.OwnerContext, projections []personaProjection) (StageResult, error) {
	content, err := p.generate(ctx, systemPromptFor(ownerCtx), consolidatePrompt(text, projections), consolidateMaxTokens)
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal,
			"consolidation generation failed", err, "agent-pipeline-003")
	}
	return parseStageResponse(content), nil
}

// Synthesize produces a weekly synthesis over completed thought summaries.
func (p *Pipeline) Synthesize(ctx context.Context, ownerCtx thought.OwnerContext, thoughts []*thought.Thought) (StageResult, error) {
	summaries := make([]synthesisThought, 0, len(thoughts))
	for _, t := range thoughts {
		st := synthesisThought{Text: t.Text}
		if t.Priority != nil {
			st.Priority = t.Priority["priority_level"]
		}
		if t.ValueImpact != nil {
			st.ValueScore = t.ValueImpact["weighted_total"]
		}
		summaries = append(summaries, st)
	}

	content, err := p.generate(ctx, systemPromptFor(ownerCtx), weeklySynthesisPrompt(summaries), synthesisMaxTokens)
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal,
			"weekly synthesis generation failed", err, "agent-pipeline-004")
	}
	return parseStageResponse(content), nil
}
