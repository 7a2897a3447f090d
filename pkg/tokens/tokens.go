// Package tokens provides token counting and truncation for prompt
// budgeting, backed by tiktoken with a heuristic fallback.
package tokens

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const encodingName = "cl100k_base"

var (
	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
)

// getEncoder lazily initializes the shared encoder. Initialization failure
// is logged once; callers fall back to the heuristic estimate.
func getEncoder() *tiktoken.Tiktoken {
	encoderOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(encodingName)
		if err != nil {
			slog.Warn("Token encoder unavailable, using heuristic estimates",
				"encoding", encodingName, "error", err)
			return
		}
		encoder = enc
	})
	return encoder
}

// Count returns the token count of text, falling back to EstimateFast when
// the encoder is unavailable.
func Count(text string) int {
	if text == "" {
		return 0
	}
	if enc := getEncoder(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return EstimateFast(text)
}

// EstimateFast approximates the token count without an encoder: roughly one
// token per four characters, floored at the whitespace word count.
func EstimateFast(text string) int {
	if text == "" {
		return 0
	}
	byChars := (len([]rune(text)) + 3) / 4
	byWords := len(strings.Fields(text))
	if byWords > byChars {
		return byWords
	}
	return byChars
}

// Truncate cuts text down to at most maxTokens tokens, appending an
// ellipsis marker when anything was removed.
func Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	enc := getEncoder()
	if enc == nil {
		// Heuristic fallback: budget in characters.
		limit := maxTokens * 4
		runes := []rune(text)
		if len(runes) <= limit {
			return text
		}
		return string(runes[:limit]) + "…"
	}

	ids := enc.Encode(text, nil, nil)
	if len(ids) <= maxTokens {
		return text
	}
	return enc.Decode(ids[:maxTokens]) + "…"
}
