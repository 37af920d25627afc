package agent

import (
	"encoding/json"
	"strings"
)

// StageResult is the parsed JSON output of one pipeline stage. When the model
// returns something unparseable the result instead carries an "error" marker
// and the raw text under "raw".
type StageResult map[string]any

// IsErrorResult reports whether a stage result carries a parse/generation
// error marker instead of real structured data.
func IsErrorResult(r StageResult) bool {
	_, ok := r["error"]
	return ok
}

// stripCodeFence removes an optional markdown code fence wrapping. Some models
// wrap JSON in ```json ... ``` despite instructions not to.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```json") {
		content = content[len("```json"):]
	}
	if strings.HasPrefix(content, "```") {
		content = content[len("```"):]
	}
	if strings.HasSuffix(content, "```") {
		content = content[:len(content)-len("```")]
	}
	return strings.TrimSpace(content)
}

// parseStageResponse fence-strips and JSON-parses a model response. A parse
// failure degrades to an error-marked result rather than returning an error;
// the caller decides whether that is fatal for its stage.
func parseStageResponse(content string) StageResult {
	cleaned := stripCodeFence(content)

	var result StageResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return StageResult{
			"error": "failed to parse JSON response",
			"raw":   content,
		}
	}
	return result
}
