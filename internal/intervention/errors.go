package intervention

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"seal-gateway/internal/gemini"
)

// ValidationError marks malformed or incomplete request input. The caller
// must fix the request; nothing is retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
}

// TemplateNotFoundError marks a configuration gap: the requested area or
// grade combination has no registered template.
type TemplateNotFoundError struct {
	Key string
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("no template registered for %q", e.Key)
}

// GatewayTransientError wraps an upstream failure the gateway is allowed to
// retry. It never leaves the gateway except inside a GatewayUnavailableError.
type GatewayTransientError struct {
	Err error
}

func (e *GatewayTransientError) Error() string {
	return "transient gateway failure: " + e.Err.Error()
}

func (e *GatewayTransientError) Unwrap() error { return e.Err }

// GatewayUnavailableError is the terminal gateway outcome: retries exhausted
// or a fatal upstream failure.
type GatewayUnavailableError struct {
	Attempts int
	Err      error
}

func (e *GatewayUnavailableError) Error() string {
	return fmt.Sprintf("model gateway unavailable after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *GatewayUnavailableError) Unwrap() error { return e.Err }

// SafetyRejection surfaces a guardrail reject decision. The message carries
// only categories and severities, never the flagged content itself.
type SafetyRejection struct {
	Verdict SafetyVerdict
}

func (e *SafetyRejection) Error() string {
	categories := make([]string, 0, len(e.Verdict.Violations))
	seen := map[string]bool{}
	for _, v := range e.Verdict.Violations {
		if !seen[v.Category] {
			seen[v.Category] = true
			categories = append(categories, v.Category)
		}
	}
	return fmt.Sprintf("content rejected by safety guardrail: severity=%s categories=[%s]",
		e.Verdict.Severity, strings.Join(categories, ","))
}

// SchemaMismatchError marks model output that could not be structured even
// after the single repair attempt.
type SchemaMismatchError struct {
	Reason string
	Causes []string
}

func (e *SchemaMismatchError) Error() string {
	if len(e.Causes) == 0 {
		return "output schema mismatch: " + e.Reason
	}
	return fmt.Sprintf("output schema mismatch: %s (%s)", e.Reason, strings.Join(e.Causes, "; "))
}

// BackpressureError is returned when the per-process outstanding-call limit
// is hit. Callers are not queued; they fail fast.
type BackpressureError struct {
	Limit int
}

func (e *BackpressureError) Error() string {
	return fmt.Sprintf("gateway at capacity (%d outstanding calls)", e.Limit)
}

// retryable reports whether an upstream call failure should be retried:
// timeouts and throttling/server-side API errors. Everything else (auth,
// malformed request, cancellation) is fatal after one attempt.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if apiErr, ok := gemini.IsAPIError(err); ok {
		return apiErr.Retryable()
	}
	return false
}
