package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorPattern is the closed set of failure categories the recovery
// manager knows strategies for. Failure sites tag their errors with a
// pattern; Classify is the fallback for untagged errors.
type ErrorPattern string

const (
	PatternConnectionRefused  ErrorPattern = "connection_refused"
	PatternTimeout            ErrorPattern = "timeout"
	PatternServiceUnavailable ErrorPattern = "service_unavailable"
	PatternCircuitBreaker     ErrorPattern = "circuit_breaker"
	PatternNetworkError       ErrorPattern = "network_error"
	PatternGeneric            ErrorPattern = "generic"
)

// ErrCircuitOpen is returned by the upstream client while its breaker
// is open. It is never counted as a new breaker failure.
var ErrCircuitOpen = errors.New("upstream circuit breaker is open")

// ErrRecoveryExhausted signals that recovery attempts or cooldown
// limits are exceeded.
var ErrRecoveryExhausted = errors.New("recovery attempts exhausted")

// ErrServiceNotFound signals that no healthy registry entry exposes
// the requested tool.
var ErrServiceNotFound = errors.New("no service available for tool")

// TransportError wraps connection-level failures (refused, reset,
// timeout). Retryable.
type TransportError struct {
	Op      string
	Pattern ErrorPattern
	Cause   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// UpstreamError wraps a non-2xx response from the inference backend.
// 4xx (except 429) are terminal; 5xx and 429 are retryable.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

// Retryable reports whether the upstream client may retry this status.
func (e *UpstreamError) Retryable() bool {
	if e.StatusCode == 429 {
		return true
	}
	return e.StatusCode >= 500
}

// Classify maps an error onto an ErrorPattern. Typed errors carry
// their pattern; everything else falls back to message inspection,
// preserving the categories recovery strategies are keyed by.
func Classify(err error) ErrorPattern {
	if err == nil {
		return PatternGeneric
	}

	if errors.Is(err, ErrCircuitOpen) {
		return PatternCircuitBreaker
	}

	var te *TransportError
	if errors.As(err, &te) && te.Pattern != "" {
		return te.Pattern
	}

	var ue *UpstreamError
	if errors.As(err, &ue) {
		if ue.StatusCode == 503 {
			return PatternServiceUnavailable
		}
		return PatternNetworkError
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"):
		return PatternConnectionRefused
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return PatternTimeout
	case strings.Contains(msg, "service unavailable") || strings.Contains(msg, "503"):
		return PatternServiceUnavailable
	case strings.Contains(msg, "circuit breaker") || strings.Contains(msg, "circuit"):
		return PatternCircuitBreaker
	default:
		return PatternGeneric
	}
}
