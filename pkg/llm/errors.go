package llm

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNoAPIKey is returned when a generation is attempted without credentials.
var ErrNoAPIKey = errors.New("llm: no API key configured")

// ErrEmptyResponse is returned when the provider replies with no candidates.
var ErrEmptyResponse = errors.New("llm: provider returned no candidates")

// ProviderError is a non-2xx provider reply. RetryAfter carries the
// provider's retry hint when one was present in the error details.
type ProviderError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *ProviderError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("llm: provider error %d: %s (retry after %s)", e.StatusCode, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("llm: provider error %d: %s", e.StatusCode, e.Message)
}

// IsRateLimited reports whether err is a provider 429.
func IsRateLimited(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.StatusCode == http.StatusTooManyRequests
}

// RetryHint extracts the provider's retry delay from err, if any.
func RetryHint(err error) (time.Duration, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.RetryAfter > 0 {
		return pe.RetryAfter, true
	}
	return 0, false
}
