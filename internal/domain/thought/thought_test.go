package thought

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func sampleResult() *AnalysisResult {
	return &AnalysisResult{
		Classification: map[string]any{"type": "idea"},
		Analysis:       map[string]any{"themes": []any{"learning"}},
		ValueImpact:    map[string]any{"weighted_total": 7.5},
		ActionPlan:     map[string]any{"steps": []any{}},
		Priority:       map[string]any{"priority_level": "High"},
	}
}

func TestSetSingleResultClearsGroupPayload(t *testing.T) {
	th := &Thought{ConsolidatedOutput: ConsolidatedOutput{"overall_priority": "Medium"}}
	th.SetSingleResult(sampleResult())

	if th.ConsolidatedOutput != nil {
		t.Error("single result must clear the consolidated payload")
	}
	if th.Priority["priority_level"] != "High" {
		t.Error("priority block not populated")
	}
}

func TestSetGroupResultClearsSingleBlocks(t *testing.T) {
	th := &Thought{}
	th.SetSingleResult(sampleResult())
	th.SetGroupResult(ConsolidatedOutput{"overall_priority": "Medium"})

	if th.Classification != nil || th.Analysis != nil || th.ValueImpact != nil ||
		th.ActionPlan != nil || th.Priority != nil {
		t.Error("group result must clear all five single-mode blocks")
	}
	if th.ConsolidatedOutput["overall_priority"] != "Medium" {
		t.Error("consolidated payload not populated")
	}
}

func TestSingleResult(t *testing.T) {
	th := &Thought{}
	if th.SingleResult() != nil {
		t.Error("empty thought has no single result")
	}

	th.SetSingleResult(sampleResult())
	got := th.SingleResult()
	if got == nil || got.Priority["priority_level"] != "High" {
		t.Error("single result must round-trip through the thought")
	}
}

func TestTruncateError(t *testing.T) {
	short := "connection refused"
	if got := TruncateError(short); got != short {
		t.Errorf("short message must pass through, got %q", got)
	}

	long := strings.Repeat("x", MaxErrorMessageLength+200)
	got := TruncateError(long)
	if len(got) != MaxErrorMessageLength {
		t.Errorf("truncated length = %d, want %d", len(got), MaxErrorMessageLength)
	}
}

func TestTruncateErrorKeepsValidUTF8(t *testing.T) {
	// é is two bytes, so an odd-length ASCII prefix puts the byte limit
	// mid-rune.
	long := strings.Repeat("x", MaxErrorMessageLength-1) + strings.Repeat("é", 100)
	got := TruncateError(long)

	if !utf8.ValidString(got) {
		t.Fatal("truncated message is not valid UTF-8")
	}
	if len(got) > MaxErrorMessageLength {
		t.Errorf("truncated length = %d, exceeds %d", len(got), MaxErrorMessageLength)
	}
	if len(got) != MaxErrorMessageLength-1 {
		t.Errorf("truncated length = %d, want %d (cut backed off the split rune)", len(got), MaxErrorMessageLength-1)
	}
}

func TestOwnerContextValuesRanking(t *testing.T) {
	ctx := OwnerContext{"values_ranking": map[string]any{"growth": 0.4}}
	if ctx.ValuesRanking()["growth"] != 0.4 {
		t.Error("values ranking not surfaced")
	}

	var empty OwnerContext
	if empty.ValuesRanking() == nil {
		t.Error("missing ranking must yield an empty map, not nil")
	}
}
