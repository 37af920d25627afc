package thought

import (
	"context"
	"time"
	"unicode/utf8"
)

// Status is the lifecycle state of a thought.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ProcessingMode selects between the single personalized pipeline and the
// multi-persona group pipeline.
type ProcessingMode string

const (
	ModeSingle ProcessingMode = "single"
	ModeGroup  ProcessingMode = "group"
)

// MaxErrorMessageLength bounds the persisted failure reason.
const MaxErrorMessageLength = 500

// AnalysisResult is the structured output of a single-mode pipeline run.
// Each block is the parsed JSON produced by one stage.
type AnalysisResult struct {
	Classification map[string]any `json:"classification"`
	Analysis       map[string]any `json:"analysis"`
	ValueImpact    map[string]any `json:"value_impact"`
	ActionPlan     map[string]any `json:"action_plan"`
	Priority       map[string]any `json:"priority"`
}

// ConsolidatedOutput is the synthesis of multiple persona perspectives:
// consensus_points, divergent_views, balanced_recommendation,
// personas_referenced, overall_priority, synthesis_confidence.
type ConsolidatedOutput map[string]any

// Thought is a user-submitted unit of text to be analyzed.
type Thought struct {
	ID                 uint
	PublicID           string
	OwnerID            string // registered user or anonymous session
	Text               string
	Status             Status
	ProcessingMode     ProcessingMode
	GroupPublicID      *string
	Classification     map[string]any
	Analysis           map[string]any
	ValueImpact        map[string]any
	ActionPlan         map[string]any
	Priority           map[string]any
	ConsolidatedOutput ConsolidatedOutput
	ProcessingAttempts int
	ErrorMessage       *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ProcessedAt        *time.Time
}

// SetSingleResult populates the five single-mode blocks and clears the
// group-mode payload so exactly one result shape is ever present.
func (t *Thought) SetSingleResult(result *AnalysisResult) {
	t.Classification = result.Classification
	t.Analysis = result.Analysis
	t.ValueImpact = result.ValueImpact
	t.ActionPlan = result.ActionPlan
	t.Priority = result.Priority
	t.ConsolidatedOutput = nil
}

// SetGroupResult populates the consolidated payload and clears the five
// single-mode blocks.
func (t *Thought) SetGroupResult(consolidated ConsolidatedOutput) {
	t.ConsolidatedOutput = consolidated
	t.Classification = nil
	t.Analysis = nil
	t.ValueImpact = nil
	t.ActionPlan = nil
	t.Priority = nil
}

// SingleResult returns the five-block result, or nil when not populated.
func (t *Thought) SingleResult() *AnalysisResult {
	if t.Classification == nil && t.Analysis == nil && t.ValueImpact == nil &&
		t.ActionPlan == nil && t.Priority == nil {
		return nil
	}
	return &AnalysisResult{
		Classification: t.Classification,
		Analysis:       t.Analysis,
		ValueImpact:    t.ValueImpact,
		ActionPlan:     t.ActionPlan,
		Priority:       t.Priority,
	}
}

// TruncateError bounds an error message for persistence. The cut lands on
// a rune boundary so the stored text stays valid UTF-8.
func TruncateError(msg string) string {
	if len(msg) <= MaxErrorMessageLength {
		return msg
	}
	cut := MaxErrorMessageLength
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

// OwnerContext is the owner's structured profile (goals, constraints, values
// ranking, recent patterns). The processing layer treats it as read-only.
type OwnerContext map[string]any

// ValuesRanking returns the owner's value-dimension weights, if present.
func (c OwnerContext) ValuesRanking() map[string]any {
	if v, ok := c["values_ranking"].(map[string]any); ok {
		return v
	}
	return map[string]any{}
}

// Repository is the durability boundary for thoughts. All writes are
// idempotent and safe to retry.
type Repository interface {
	Create(ctx context.Context, t *Thought) error
	FindByPublicID(ctx context.Context, publicID string) (*Thought, error)
	// FindPending returns all pending thoughts ordered by creation time.
	FindPending(ctx context.Context) ([]*Thought, error)
	// FindCompletedSince returns an owner's completed thoughts created after
	// the given time, newest first.
	FindCompletedSince(ctx context.Context, ownerID string, since time.Time) ([]*Thought, error)
	// MarkProcessing transitions a thought to processing and records the
	// attempt count.
	MarkProcessing(ctx context.Context, publicID string, attempts int) error
	// SaveResult persists the mode-appropriate result payload, the optional
	// search embedding, and transitions the thought to completed.
	SaveResult(ctx context.Context, t *Thought, embedding []float32) error
	MarkFailed(ctx context.Context, publicID string, errorMessage string) error
}

// ContextRepository resolves owner context. The profile is versioned by an
// external collaborator; this layer only reads it.
type ContextRepository interface {
	GetOwnerContext(ctx context.Context, ownerID string) (OwnerContext, error)
}
