package classify

import (
	"fmt"

	"github.com/reputexa/reputexa/internal/resilience"
)

// ClassificationError reports a transport, auth or quota failure talking to
// the completion oracle. The client never retries; callers decide from
// Retryable.
type ClassificationError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ClassificationError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("classify: %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("classify: %s: %v", e.Op, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// Retryable is true for throttling, 5xx and network failures (no status).
func (e *ClassificationError) Retryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	return resilience.IsTransientHTTPStatus(e.StatusCode)
}

// MalformedResponseError reports oracle content that does not decode into
// the expected shape.
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("classify: malformed response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// Retryable is always false: the same prompt is not expected to fix itself.
func (e *MalformedResponseError) Retryable() bool {
	return false
}
