package agent

import (
	"encoding/json"
	"fmt"

	"github.com/Mieraidihaimu/RAGMultiAgent/internal/domain/thought"
)

const baseInstruction = `You are an AI agent specialized in analyzing personal thoughts.
Your role is to provide deep, contextual analysis based on the user's life circumstances,
goals, constraints, and values. Always be honest, insightful, and actionable.`

// Per-stage generation budgets. Tuned per stage; the temperature is shared.
const (
	classifyMaxTokens    = 1000
	analyzeMaxTokens     = 1500
	assessValueMaxTokens = 2000
	planActionsMaxTokens = 2000
	prioritizeMaxTokens  = 1500
	consolidateMaxTokens = 2500
	synthesisMaxTokens   = 2000

	defaultTemperature = 0.7
)

func jsonIndent(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

func classifyPrompt(text string) string {
	return fmt.Sprintf(`Analyze this thought and extract structured information:

THOUGHT: %q

Return ONLY a valid JSON object with these exact fields (no additional text):
- type: (task/problem/idea/question/observation/emotion)
- urgency: (immediate/soon/eventually/never)
- entities: {people: [], dates: [], places: [], topics: []}
- emotional_tone: (excited/anxious/frustrated/neutral/curious/overwhelmed/hopeful)
- implied_needs: [list of what the person might need]
- complexity: (simple/moderate/complex)

Be specific and context-aware. Consider the user's background. RESPOND WITH ONLY JSON, NO MARKDOWN OR ADDITIONAL TEXT.`, text)
}

func analyzePrompt(text string, classification StageResult) string {
	return fmt.Sprintf(`Provide deep contextual analysis of this thought:

THOUGHT: %q
CLASSIFICATION: %s

Return ONLY a valid JSON object with these exact fields (no markdown, no additional text):
- goal_alignment: {aligned_goals: [], conflicting_goals: [], reasoning: ""}
- underlying_needs: [deeper needs beyond surface thought]
- pattern_connections: [how this relates to user's recent challenges/patterns]
- realistic_assessment: {feasibility: "", given_constraints: "", time_required: ""}
- unspoken_factors: [important considerations the user may not have mentioned]
- opportunity_cost: ""

Be honest, insightful, and consider the user's complete context. RESPOND WITH ONLY JSON, NO MARKDOWN OR ADDITIONAL TEXT.`, text, jsonIndent(classification))
}

func assessValuePrompt(text string, classification, analysis StageResult, valuesRanking map[string]any) string {
	return fmt.Sprintf(`Assess the value impact of pursuing this thought:

THOUGHT: %q
CLASSIFICATION: %s
ANALYSIS: %s

USER'S VALUES RANKING: %s

Evaluate impact on each dimension (0-10 scale):

Return JSON:
{
  "economic_value": {"score": <0-10>, "reasoning": "", "timeframe": "immediate/short-term/long-term", "confidence": "low/medium/high"},
  "relational_value": {"score": <0-10>, "reasoning": "", "affected_relationships": [], "confidence": "low/medium/high"},
  "legacy_value": {"score": <0-10>, "reasoning": "", "long_term_impact": "", "confidence": "low/medium/high"},
  "health_value": {"score": <0-10>, "reasoning": "", "physical_mental": "physical/mental/both", "confidence": "low/medium/high"},
  "growth_value": {"score": <0-10>, "reasoning": "", "learning_areas": [], "confidence": "low/medium/high"},
  "weighted_total": <calculated using user's values_ranking>,
  "overall_assessment": ""
}

Be realistic and consider both positive and negative impacts. RESPOND WITH ONLY JSON, NO MARKDOWN OR ADDITIONAL TEXT.`,
		text, jsonIndent(classification), jsonIndent(analysis), jsonIndent(valuesRanking))
}

func planActionsPrompt(text string, analysis, valueImpact StageResult, constraints any, energyPeaks any) string {
	return fmt.Sprintf(`Create a realistic action plan for this thought:

THOUGHT: %q
ANALYSIS: %s
VALUE IMPACT: %s

USER CONSTRAINTS: %s
ENERGY PEAKS: %s

Return JSON:
{
  "quick_wins": [{"action": "", "duration": "<30min", "timing": "when to do this", "outcome": "expected result"}],
  "main_actions": [{"action": "", "duration": "", "prerequisites": [], "obstacles": [], "mitigation": "", "timing": "best time based on energy patterns"}],
  "delegation_opportunities": [{"task": "", "who": "who could help", "why": "benefit of delegating"}],
  "avoid": ["things NOT to do and why"],
  "success_metrics": ["how to know it's working"]
}

Be specific and actionable. Consider the user's time and energy constraints. RESPOND WITH ONLY JSON, NO MARKDOWN OR ADDITIONAL TEXT.`,
		text, jsonIndent(analysis), jsonIndent(valueImpact), jsonIndent(constraints), jsonIndent(energyPeaks))
}

func prioritizePrompt(text string, actionPlan, valueImpact StageResult, currentChallenges any) string {
	return fmt.Sprintf(`Determine the priority for this thought:

THOUGHT: %q
ACTION PLAN: %s
VALUE IMPACT: %s

CURRENT CHALLENGES: %s

Return JSON:
{
  "priority_level": "Critical/High/Medium/Low/Defer",
  "urgency_reasoning": "",
  "strategic_fit": "how this fits user's goals",
  "momentum_impact": "will this create positive momentum?",
  "recommended_timeline": {"start": "when to start", "duration": "how long to complete", "checkpoints": ["milestones to track"]},
  "dependencies": ["what needs to happen first"],
  "risk_assessment": "what could go wrong",
  "confidence": "low/medium/high",
  "final_recommendation": "clear next step"
}

Critical: Addresses urgent challenge or high-value opportunity
High: Important for goals, start this week
Medium: Valuable, schedule within month
Low: Nice to have, no rush
Defer: Not aligned with current priorities

RESPOND WITH ONLY JSON, NO MARKDOWN OR ADDITIONAL TEXT.`,
		text, jsonIndent(actionPlan), jsonIndent(valueImpact), jsonIndent(currentChallenges))
}

// personaProjection is the compact per-persona view fed to consolidation.
// Only priority, recommendation, action plan, and value impact are projected
// so prompt size stays bounded regardless of persona count.
type personaProjection struct {
	PersonaName    string         `json:"persona_name"`
	Priority       map[string]any `json:"priority"`
	Recommendation any            `json:"recommendation"`
	ActionPlan     map[string]any `json:"action_plan"`
	ValueImpact    map[string]any `json:"value_impact"`
}

func consolidatePrompt(text string, projections []personaProjection) string {
	return fmt.Sprintf(`Multiple advisory personas analyzed this thought independently. Synthesize their perspectives into one balanced recommendation:

THOUGHT: %q

PERSONA ANALYSES: %s

Return JSON:
{
  "consensus_points": ["points where personas broadly agree"],
  "divergent_views": {"<disagreement category>": [{"position": "", "held_by": ["persona names"]}]},
  "balanced_recommendation": {"summary": "", "next_steps": [], "timeline": ""},
  "personas_referenced": {"<persona name>": "their key contribution"},
  "overall_priority": "Critical/High/Medium/Low/Defer",
  "synthesis_confidence": "low/medium/high"
}

Attribute each divergent position to the personas holding it. RESPOND WITH ONLY JSON, NO MARKDOWN OR ADDITIONAL TEXT.`,
		text, jsonIndent(projections))
}

type synthesisThought struct {
	Text       string `json:"text"`
	Priority   any    `json:"priority"`
	ValueScore any    `json:"value_score"`
}

func weeklySynthesisPrompt(summaries []synthesisThought) string {
	return fmt.Sprintf(`Create a weekly synthesis from these %d thoughts:

%s

Return JSON with:
- key_themes: [main themes that emerged]
- progress_areas: [areas where user is making progress]
- challenges: [recurring challenges or blockers]
- opportunities: [opportunities user should consider]
- patterns: [behavioral or thought patterns noticed]
- recommendations: [3-5 actionable recommendations for next week]
- encouragement: [personal, encouraging message]

RESPOND WITH ONLY JSON, NO MARKDOWN OR ADDITIONAL TEXT.`, len(summaries), jsonIndent(summaries))
}

// systemPromptFor combines the base instruction with the owner's context.
func systemPromptFor(ownerCtx thought.OwnerContext) string {
	return baseInstruction + "\n\nUSER CONTEXT:\n" + jsonIndent(ownerCtx)
}
