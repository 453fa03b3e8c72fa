package domain

import "time"

// ModelRecord is one entry of the bridge's in-memory model registry.
// Records are created and removed only by the discovery poll cycle.
type ModelRecord struct {
	ID           string                 `json:"id"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	DiscoveredAt time.Time              `json:"discovered_at"`
}

// ServiceEntry is one entry of the gateway's service registry.
// Created/refreshed by each successful poll, removed on poll failure.
type ServiceEntry struct {
	Name     string                 `json:"name"`
	URL      string                 `json:"url"`
	Tools    map[string]ToolSchema  `json:"tools"`
	LastSeen time.Time              `json:"last_seen"`
	Healthy  bool                   `json:"healthy"`
	Meta     map[string]interface{} `json:"meta,omitempty"`
}

// ToolSchema describes the parameters a tool accepts.
type ToolSchema map[string]interface{}

// ToolSpec is one tool exposed by the bridge's catalog.
type ToolSpec struct {
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Schema      ToolSchema `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// ResourceSnapshot is a point-in-time sample of host and process usage.
// Only the latest snapshot is retained by the resource monitor.
type ResourceSnapshot struct {
	Timestamp     time.Time `json:"timestamp"`
	SystemCPU     float64   `json:"system_cpu_percent"`
	SystemMemory  float64   `json:"system_memory_percent"`
	ProcessCPU    float64   `json:"process_cpu_percent"`
	ProcessMemory float64   `json:"process_memory_percent"`
}

// ThrottleState is the discrete throttle decision derived from the
// latest ResourceSnapshot. Level 0 means no throttling.
type ThrottleState struct {
	Level      int           `json:"level"` // 0..5
	Delay      time.Duration `json:"recommended_delay"`
	UserActive bool          `json:"user_active"`
}

// Call statuses returned by the router and aggregator. Callers render
// these instead of raw errors so degraded states stay visible.
const (
	StatusSuccess         = "success"
	StatusServiceError    = "service_error"
	StatusTimeout         = "timeout"
	StatusForwardError    = "forward_error"
	StatusServiceNotFound = "service_not_found"
	StatusNoCalls         = "no_calls"
	StatusAllFailed       = "all_failed"
)

// ToolCall identifies one backend invocation for the aggregator.
type ToolCall struct {
	Service    string                 `json:"service,omitempty"` // empty = let the router pick
	Tool       string                 `json:"tool"`
	Parameters map[string]interface{} `json:"parameters"`
}

// CallResult is the structured outcome of a routed tool call.
type CallResult struct {
	Status  string                 `json:"status"`
	Result  map[string]interface{} `json:"result,omitempty"`
	Service string                 `json:"service,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// CallError pairs a service with its failure reason, in input order,
// for all_failed aggregation responses.
type CallError struct {
	Service string `json:"service"`
	Error   string `json:"error"`
}

// AggregateResult is the consolidated outcome of one or many calls.
type AggregateResult struct {
	Status  string                 `json:"status"`
	Result  map[string]interface{} `json:"result,omitempty"`
	Service string                 `json:"service,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Errors  []CallError            `json:"errors,omitempty"`
}

// CompletionRequest is the validated payload of the inference tool.
type CompletionRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}
