package recovery

import (
	"context"
	"sync"
	"time"

	"github.com/llmhub/llmhub/internal/domain"
	"github.com/llmhub/llmhub/internal/logger"
	"github.com/llmhub/llmhub/internal/metrics"
)

// Upstream is the slice of the upstream client recovery strategies act on.
type Upstream interface {
	Recover(ctx context.Context) error
	HealthCheck(ctx context.Context) bool
}

// ErrorSink receives every classified error for trend analysis.
type ErrorSink interface {
	RecordError(pattern domain.ErrorPattern)
}

// Status is the read-only recovery snapshot for health reporting.
type Status struct {
	Attempts          int       `json:"recovery_attempts"`
	MaxAttempts       int       `json:"max_recovery_attempts"`
	LastAttempt       time.Time `json:"last_recovery_time"`
	CooldownActive    bool      `json:"recovery_cooldown_active"`
	RecoveryAvailable bool      `json:"recovery_available"`
}

// Options bounds automatic recovery.
type Options struct {
	MaxAttempts int
	Cooldown    time.Duration
}

func (o *Options) fill() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.Cooldown <= 0 {
		o.Cooldown = 60 * time.Second
	}
}

// Manager classifies failures into patterns and runs pattern-specific
// recovery procedures against the upstream client, bounded by a global
// attempt count and cooldown window.
type Manager struct {
	opts    Options
	client  Upstream
	sink    ErrorSink
	logger  logger.Logger
	metrics *metrics.Metrics

	// Injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu          sync.Mutex
	attempts    int
	lastAttempt time.Time
}

func New(opts Options, client Upstream, sink ErrorSink, m *metrics.Metrics, log logger.Logger) *Manager {
	opts.fill()
	if m == nil {
		m = metrics.New(nil)
	}
	return &Manager{
		opts:    opts,
		client:  client,
		sink:    sink,
		logger:  log,
		metrics: m,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// HandleError attempts automatic recovery for err. It reports success
// as a boolean and never propagates the failure itself: callers stay
// degraded-but-running. Every classified error is also forwarded to
// the error sink regardless of whether a recovery runs.
func (m *Manager) HandleError(ctx context.Context, err error, errCtx string) bool {
	pattern := domain.Classify(err)
	if m.sink != nil {
		m.sink.RecordError(pattern)
	}

	m.mu.Lock()
	now := m.now()
	if !m.lastAttempt.IsZero() && now.Sub(m.lastAttempt) < m.opts.Cooldown {
		m.mu.Unlock()
		m.logger.Info("recovery cooldown active, skipping",
			logger.String("pattern", string(pattern)),
			logger.String("context", errCtx))
		return false
	}
	if m.attempts >= m.opts.MaxAttempts {
		m.mu.Unlock()
		m.logger.Error("max recovery attempts reached",
			logger.Int("max", m.opts.MaxAttempts),
			logger.String("context", errCtx))
		return false
	}
	m.attempts++
	m.lastAttempt = now
	m.mu.Unlock()

	m.logger.Info("attempting automatic recovery",
		logger.String("pattern", string(pattern)),
		logger.String("context", errCtx),
		logger.Error(err))

	ok := m.runStrategy(ctx, pattern)

	result := "failure"
	if ok {
		result = "success"
		m.mu.Lock()
		m.attempts = 0
		m.mu.Unlock()
		m.logger.Info("recovery successful", logger.String("pattern", string(pattern)))
	} else {
		m.logger.Warn("recovery failed", logger.String("pattern", string(pattern)))
	}
	m.metrics.RecoveryAttempts.WithLabelValues(string(pattern), result).Inc()
	return ok
}

func (m *Manager) runStrategy(ctx context.Context, pattern domain.ErrorPattern) bool {
	switch pattern {
	case domain.PatternConnectionRefused:
		// Give the backend a chance to come up before reconnecting.
		return m.waitAndRecover(ctx, 10*time.Second)
	case domain.PatternTimeout:
		return m.waitAndRecover(ctx, 5*time.Second)
	case domain.PatternServiceUnavailable:
		return m.waitAndProbe(ctx, 30*time.Second)
	case domain.PatternCircuitBreaker:
		// Wait out the breaker cool-off before resetting the pool.
		return m.waitAndRecover(ctx, 60*time.Second)
	case domain.PatternNetworkError:
		return m.progressiveProbe(ctx)
	default:
		return m.waitAndProbe(ctx, 10*time.Second)
	}
}

func (m *Manager) waitAndRecover(ctx context.Context, wait time.Duration) bool {
	if err := m.sleep(ctx, wait); err != nil {
		return false
	}
	return m.client.Recover(ctx) == nil
}

func (m *Manager) waitAndProbe(ctx context.Context, wait time.Duration) bool {
	if err := m.sleep(ctx, wait); err != nil {
		return false
	}
	return m.client.HealthCheck(ctx)
}

// progressiveProbe backs off 5s/15s/30s, probing after each step.
func (m *Manager) progressiveProbe(ctx context.Context) bool {
	for _, wait := range []time.Duration{5 * time.Second, 15 * time.Second, 30 * time.Second} {
		if err := m.sleep(ctx, wait); err != nil {
			return false
		}
		if m.client.HealthCheck(ctx) {
			return true
		}
	}
	return false
}

// Reset clears attempt state, for manual operator intervention.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.attempts = 0
	m.lastAttempt = time.Time{}
	m.mu.Unlock()
	m.logger.Info("recovery state reset")
}

// Status returns the current recovery snapshot.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cooldownActive := !m.lastAttempt.IsZero() && now.Sub(m.lastAttempt) < m.opts.Cooldown
	return Status{
		Attempts:          m.attempts,
		MaxAttempts:       m.opts.MaxAttempts,
		LastAttempt:       m.lastAttempt,
		CooldownActive:    cooldownActive,
		RecoveryAvailable: m.attempts < m.opts.MaxAttempts,
	}
}
