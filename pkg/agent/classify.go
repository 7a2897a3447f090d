package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/maestro-ai/maestro/pkg/llm"
	"github.com/maestro-ai/maestro/pkg/tokens"
)

// Classify extracts the result and reasoning from a final model answer.
//
// Answers come in three shapes, tried in order:
//  1. a JSON object carrying a "result" field (optionally "reasoning")
//  2. a bare JSON string
//  3. opaque text, taken verbatim as the result
func Classify(answer string) (result, reasoning string) {
	candidate := llm.ExtractJSON(answer)

	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err == nil {
		if v, ok := obj["result"]; ok {
			if r, ok := obj["reasoning"].(string); ok {
				reasoning = r
			}
			return stringify(v), reasoning
		}
		// An object without a result field is opaque output.
		return strings.TrimSpace(answer), "Response was a JSON object without a result field; kept verbatim."
	}

	var s string
	if err := json.Unmarshal([]byte(candidate), &s); err == nil {
		return s, "Completed."
	}

	return strings.TrimSpace(answer), ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	}
}

// truncateForPrompt bounds a text fragment destined for a prompt.
func truncateForPrompt(text string, maxTokens int) string {
	return tokens.Truncate(strings.TrimSpace(text), maxTokens)
}
