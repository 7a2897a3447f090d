// Package masking scrubs credential-shaped strings from text before it is
// durably persisted. Agents relay tool output and model text verbatim, so
// anything that looks like a key or token must be masked before it lands in
// a collection.
package masking

import (
	"log/slog"
	"regexp"
	"sort"
)

// PatternSpec is one masking rule before compilation.
type PatternSpec struct {
	Pattern     string
	Replacement string
	Description string
}

// builtinPatterns are the always-on rules. Keys are stable names used in
// logs when a pattern fails to compile.
var builtinPatterns = map[string]PatternSpec{
	"api_key": {
		Pattern:     `(?i)(api[_-]?key|apikey|secret[_-]?key)(["']?\s*[:=]\s*["']?)[A-Za-z0-9_\-]{8,}`,
		Replacement: `$1$2***MASKED***`,
		Description: "key=value style API and secret keys",
	},
	"bearer_token": {
		Pattern:     `(?i)bearer\s+[A-Za-z0-9_\-.=]{8,}`,
		Replacement: `Bearer ***MASKED***`,
		Description: "HTTP bearer tokens",
	},
	"google_api_key": {
		Pattern:     `AIza[0-9A-Za-z_\-]{35}`,
		Replacement: `***MASKED***`,
		Description: "Google API keys",
	},
	"password": {
		Pattern:     `(?i)(password|passwd|pwd)(["']?\s*[:=]\s*["']?)\S+`,
		Replacement: `$1$2***MASKED***`,
		Description: "key=value style passwords",
	},
}

// compiledPattern holds a pre-compiled rule with its replacement.
type compiledPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Service applies masking rules to text. Created once at startup; thread-safe
// and stateless aside from compiled patterns.
type Service struct {
	patterns []compiledPattern
}

// NewService compiles the built-in patterns plus any extras. Invalid patterns
// are logged and skipped, never fatal.
func NewService(extra map[string]PatternSpec) *Service {
	s := &Service{}
	s.compile(builtinPatterns)
	s.compile(extra)
	// Stable application order so masked output is deterministic.
	sort.Slice(s.patterns, func(i, j int) bool {
		return s.patterns[i].name < s.patterns[j].name
	})
	return s
}

func (s *Service) compile(specs map[string]PatternSpec) {
	for name, spec := range specs {
		regex, err := regexp.Compile(spec.Pattern)
		if err != nil {
			slog.Error("Failed to compile masking pattern, skipping",
				"pattern", name, "error", err)
			continue
		}
		s.patterns = append(s.patterns, compiledPattern{
			name:        name,
			regex:       regex,
			replacement: spec.Replacement,
		})
	}
}

// Mask applies every rule to the text and returns the scrubbed result.
func (s *Service) Mask(text string) string {
	for _, p := range s.patterns {
		text = p.regex.ReplaceAllString(text, p.replacement)
	}
	return text
}
