package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON pulls a JSON payload out of model output. Models frequently
// wrap JSON in markdown code fences or surround it with prose; callers get
// the best-effort candidate string to unmarshal.
//
// Resolution order: fenced code block content, then the first top-level
// {...} or [...] span, then the trimmed input as-is.
func ExtractJSON(text string) string {
	trimmed := strings.TrimSpace(text)

	if m := fencedBlockRe.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}

	for _, open := range []byte{'{', '['} {
		start := strings.IndexByte(trimmed, open)
		if start < 0 {
			continue
		}
		if span := balancedSpan(trimmed[start:], open); span != "" {
			return span
		}
	}
	return trimmed
}

// UnmarshalLenient extracts and unmarshals JSON from model output in one
// step.
func UnmarshalLenient(text string, v any) error {
	return json.Unmarshal([]byte(ExtractJSON(text)), v)
}

// balancedSpan returns the prefix of s spanning the first balanced
// bracket pair, ignoring brackets inside JSON strings.
func balancedSpan(s string, open byte) string {
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
