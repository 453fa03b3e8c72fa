package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"

	"github.com/llmhub/llmhub/internal/domain"
	"github.com/llmhub/llmhub/internal/logger"
	"github.com/llmhub/llmhub/internal/metrics"
	"github.com/llmhub/llmhub/internal/utils"
)

const maxBackoff = 30 * time.Second

// ThrottleAdvisor is the resource monitor's read-only surface the
// client consults before sleeping between retries.
type ThrottleAdvisor interface {
	ShouldThrottle() bool
	RecommendedDelay() time.Duration
}

// Options configures the client. Zero values fall back to the
// documented defaults.
type Options struct {
	BaseURL          string
	Timeout          time.Duration
	MaxRetries       int
	BreakerThreshold uint32
	BreakerCoolOff   time.Duration
}

func (o *Options) fill() {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.BreakerThreshold == 0 {
		o.BreakerThreshold = 5
	}
	if o.BreakerCoolOff <= 0 {
		o.BreakerCoolOff = 60 * time.Second
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
}

// Status is a read-only connection snapshot for health reporting.
type Status struct {
	Healthy             bool    `json:"healthy"`
	BreakerState        string  `json:"breaker_state"`
	ConsecutiveFailures uint32  `json:"consecutive_failures"`
	SecondsSinceSuccess float64 `json:"seconds_since_last_success"`
	BaseURL             string  `json:"base_url"`
}

// Client is the resilient HTTP client for the inference backend.
// One client owns one upstream endpoint; all breaker mutation happens
// on this client's request path.
type Client struct {
	opts    Options
	logger  logger.Logger
	metrics *metrics.Metrics

	throttle ThrottleAdvisor // nil = no throttling hints

	mu          sync.Mutex
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker
	healthy     bool
	lastSuccess time.Time
}

// New creates a client for the backend at opts.BaseURL.
func New(opts Options, throttle ThrottleAdvisor, m *metrics.Metrics, log logger.Logger) *Client {
	opts.fill()
	if m == nil {
		m = metrics.New(nil)
	}

	c := &Client{
		opts:        opts,
		logger:      log,
		metrics:     m,
		throttle:    throttle,
		healthy:     true,
		lastSuccess: time.Now(),
	}
	c.httpClient = c.newHTTPClient()
	c.breaker = c.newBreaker()
	return c
}

func (c *Client) newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: c.opts.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func (c *Client) newBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "upstream",
		MaxRequests: 1, // one optimistic probe after cool-off
		Timeout:     c.opts.BreakerCoolOff,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.opts.BreakerThreshold
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			c.metrics.BreakerState.Set(breakerGaugeValue(to))
			c.logger.Warn("circuit breaker state changed",
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		},
	})
}

func breakerGaugeValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}

// Models fetches the current model catalog (GET /v1/models).
func (c *Client) Models(ctx context.Context) ([]map[string]interface{}, error) {
	resp, err := c.call(ctx, http.MethodGet, "/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch models: %w", err)
	}

	raw, _ := resp["data"].([]interface{})
	models := make([]map[string]interface{}, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]interface{}); ok {
			models = append(models, m)
		}
	}
	return models, nil
}

// Completion creates a text completion (POST /v1/completions).
func (c *Client) Completion(ctx context.Context, req domain.CompletionRequest) (map[string]interface{}, error) {
	payload := map[string]interface{}{
		"model":       req.Model,
		"prompt":      req.Prompt,
		"temperature": req.Temperature,
		"max_tokens":  req.MaxTokens,
	}

	resp, err := c.call(ctx, http.MethodPost, "/v1/completions", payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion: %w", err)
	}
	return resp, nil
}

// HealthCheck reports whether the backend answers the catalog endpoint.
// It goes through the full resilient path, so an open breaker reports
// unhealthy immediately.
func (c *Client) HealthCheck(ctx context.Context) bool {
	_, err := c.call(ctx, http.MethodGet, "/v1/models", nil)
	return err == nil
}

// call performs one logical request: bounded retry around the circuit
// breaker, with resource-aware backoff between attempts. Each failed
// attempt counts against the breaker; while open, attempts fail fast
// with domain.ErrCircuitOpen and are not retried.
func (c *Client) call(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	op := method + " " + path
	start := time.Now()
	defer func() {
		c.metrics.UpstreamDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	var result map[string]interface{}

	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(uint(c.opts.MaxRetries)+1),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// Fail-fast and terminal client errors are not retried.
			if errors.Is(err, domain.ErrCircuitOpen) {
				return false
			}
			var ue *domain.UpstreamError
			if errors.As(err, &ue) {
				return ue.Retryable()
			}
			return true
		}),
		retry.DelayType(func(n uint, err error, _ retry.DelayContext) time.Duration {
			wait := backoff(n)
			if c.throttle != nil && c.throttle.ShouldThrottle() {
				extra := c.throttle.RecommendedDelay()
				wait += extra
				c.logger.Info("resource throttling active, extending retry backoff",
					logger.Duration("extra", extra))
			}
			c.logger.Info("retrying upstream request",
				logger.String("op", op),
				logger.Duration("in", wait),
				logger.Error(err))
			return wait
		}),
	)

	var attempts int
	err := r.Do(func() error {
		attempts++
		res, attemptErr := c.attempt(ctx, method, path, body)
		if attemptErr != nil {
			return attemptErr
		}
		result = res
		return nil
	})

	if err != nil {
		c.metrics.UpstreamRequests.WithLabelValues(op, "error").Inc()
		if errors.Is(err, domain.ErrCircuitOpen) {
			return nil, err
		}
		return nil, fmt.Errorf("request %s failed after %d attempt(s): %w", op, attempts, err)
	}

	c.metrics.UpstreamRequests.WithLabelValues(op, "success").Inc()
	return result, nil
}

// backoff is min(2^n, 30) seconds.
func backoff(n uint) time.Duration {
	if n > 5 {
		n = 5
	}
	d := time.Duration(1<<n) * time.Second
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// attempt runs a single HTTP attempt through the circuit breaker.
func (c *Client) attempt(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	c.mu.Lock()
	breaker := c.breaker
	c.mu.Unlock()

	res, err := breaker.Execute(func() (interface{}, error) {
		return c.doRequest(ctx, method, path, body)
	})
	if err != nil {
		c.recordFailure()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, domain.ErrCircuitOpen
		}
		return nil, err
	}

	c.recordSuccess()
	return res.(map[string]interface{}), nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.Lock()
	httpClient := c.httpClient
	c.mu.Unlock()

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(method+" "+path, err)
	}
	defer utils.Close(resp.Body)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Op: method + " " + path, Pattern: domain.PatternNetworkError, Cause: err}
	}

	if resp.StatusCode >= 400 {
		return nil, &domain.UpstreamError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		// Non-JSON success bodies are preserved as text.
		return map[string]interface{}{"text": string(data)}, nil
	}
	return decoded, nil
}

func classifyTransport(op string, err error) error {
	pattern := domain.PatternNetworkError

	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		pattern = domain.PatternTimeout
	case errors.Is(err, context.DeadlineExceeded):
		pattern = domain.PatternTimeout
	case strings.Contains(err.Error(), "connection refused"):
		pattern = domain.PatternConnectionRefused
	}

	return &domain.TransportError{Op: op, Pattern: pattern, Cause: err}
}

func (c *Client) recordSuccess() {
	c.mu.Lock()
	c.healthy = true
	c.lastSuccess = time.Now()
	c.mu.Unlock()
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.healthy = false
	c.mu.Unlock()
}

// Recover tears down and recreates the connection pool and the
// breaker, then runs one bare health probe. Used by the recovery
// manager and by discovery after repeated cycle failures.
func (c *Client) Recover(ctx context.Context) error {
	c.logger.Info("attempting upstream connection recovery",
		logger.String("base_url", c.opts.BaseURL))

	c.mu.Lock()
	c.httpClient.CloseIdleConnections()
	c.httpClient = c.newHTTPClient()
	c.breaker = c.newBreaker()
	c.mu.Unlock()
	c.metrics.BreakerState.Set(0)

	// Bare probe, no retry and no breaker: recovery must observe the
	// backend directly.
	if _, err := c.doRequest(ctx, http.MethodGet, "/v1/models", nil); err != nil {
		c.recordFailure()
		return fmt.Errorf("recovery probe failed: %w", err)
	}

	c.recordSuccess()
	c.logger.Info("upstream connection recovered")
	return nil
}

// Status returns the current connection snapshot.
func (c *Client) Status() Status {
	c.mu.Lock()
	healthy := c.healthy
	last := c.lastSuccess
	breaker := c.breaker
	c.mu.Unlock()

	return Status{
		Healthy:             healthy,
		BreakerState:        breaker.State().String(),
		ConsecutiveFailures: breaker.Counts().ConsecutiveFailures,
		SecondsSinceSuccess: time.Since(last).Seconds(),
		BaseURL:             c.opts.BaseURL,
	}
}
