package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorPattern
	}{
		{
			name: "nil error",
			err:  nil,
			want: PatternGeneric,
		},
		{
			name: "circuit open sentinel",
			err:  ErrCircuitOpen,
			want: PatternCircuitBreaker,
		},
		{
			name: "wrapped circuit open",
			err:  fmt.Errorf("call failed: %w", ErrCircuitOpen),
			want: PatternCircuitBreaker,
		},
		{
			name: "transport error carries its pattern",
			err:  &TransportError{Op: "GET /v1/models", Pattern: PatternConnectionRefused, Cause: errors.New("dial tcp: connection refused")},
			want: PatternConnectionRefused,
		},
		{
			name: "transport timeout",
			err:  &TransportError{Op: "POST /v1/completions", Pattern: PatternTimeout, Cause: errors.New("context deadline exceeded")},
			want: PatternTimeout,
		},
		{
			name: "upstream 503",
			err:  &UpstreamError{StatusCode: 503},
			want: PatternServiceUnavailable,
		},
		{
			name: "upstream 500",
			err:  &UpstreamError{StatusCode: 500},
			want: PatternNetworkError,
		},
		{
			name: "text fallback connection refused",
			err:  errors.New("dial tcp 127.0.0.1:1234: connect: connection refused"),
			want: PatternConnectionRefused,
		},
		{
			name: "text fallback timeout",
			err:  errors.New("request timeout exceeded"),
			want: PatternTimeout,
		},
		{
			name: "unrecognized error",
			err:  errors.New("something odd happened"),
			want: PatternGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestUpstreamErrorRetryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{status: 400, want: false},
		{status: 404, want: false},
		{status: 429, want: true},
		{status: 500, want: true},
		{status: 503, want: true},
	}

	for _, tt := range tests {
		err := &UpstreamError{StatusCode: tt.status}
		if got := err.Retryable(); got != tt.want {
			t.Errorf("UpstreamError{%d}.Retryable() = %v, want %v", tt.status, got, tt.want)
		}
	}
}
