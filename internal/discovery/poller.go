package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/llmhub/llmhub/internal/domain"
	"github.com/llmhub/llmhub/internal/logger"
	"github.com/llmhub/llmhub/internal/metrics"
	"github.com/llmhub/llmhub/internal/registry"
)

// CatalogSource fetches the current model catalog from the backend.
type CatalogSource interface {
	Models(ctx context.Context) ([]map[string]interface{}, error)
}

// Recoverer escalates repeated cycle failures.
type Recoverer interface {
	HandleError(ctx context.Context, err error, errCtx string) bool
}

// ThrottleAdvisor stretches the poll cadence under resource pressure.
type ThrottleAdvisor interface {
	ShouldThrottle() bool
	RecommendedDelay() time.Duration
}

// recoveryThreshold is the consecutive-failure count at which the
// poller escalates to the recovery manager.
const recoveryThreshold = 3

// Poller periodically fetches the model catalog and keeps the model
// registry equal to it, logging an add/remove diff each cycle.
type Poller struct {
	client   CatalogSource
	registry *registry.ModelRegistry
	recover  Recoverer       // nil = no escalation
	throttle ThrottleAdvisor // nil = fixed cadence
	logger   logger.Logger
	metrics  *metrics.Metrics

	baseInterval time.Duration
	maxInterval  time.Duration

	mu                  sync.Mutex
	consecutiveFailures int
	nextInterval        time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewPoller(
	client CatalogSource,
	reg *registry.ModelRegistry,
	rec Recoverer,
	throttle ThrottleAdvisor,
	m *metrics.Metrics,
	log logger.Logger,
	interval, maxInterval time.Duration,
) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if maxInterval < interval {
		maxInterval = 300 * time.Second
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Poller{
		client:       client,
		registry:     reg,
		recover:      rec,
		throttle:     throttle,
		logger:       log,
		metrics:      m,
		baseInterval: interval,
		maxInterval:  maxInterval,
		nextInterval: interval,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start begins the poll loop. The first cycle runs immediately; its
// failure is not fatal, the loop keeps polling.
func (p *Poller) Start(ctx context.Context) error {
	p.logger.Info("starting model discovery",
		logger.Duration("interval", p.baseInterval))

	if err := p.Cycle(ctx); err != nil {
		p.logger.Warn("initial discovery cycle failed", logger.Error(err))
		p.onFailure(ctx, err)
	}

	go func() {
		defer close(p.doneCh)
		for {
			timer := time.NewTimer(p.wait())
			select {
			case <-timer.C:
				if err := p.Cycle(ctx); err != nil {
					p.logger.Error("model discovery cycle failed", logger.Error(err))
					p.onFailure(ctx, err)
				}
			case <-p.stopCh:
				timer.Stop()
				return
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
	}()

	return nil
}

// Stop cancels the poll loop and waits for it to exit.
func (p *Poller) Stop() {
	close(p.stopCh)
	<-p.doneCh
	p.logger.Info("model discovery stopped")
}

// wait returns the next sleep, restoring the base interval afterwards
// so a doubled interval sheds load for one wait only.
func (p *Poller) wait() time.Duration {
	p.mu.Lock()
	d := p.nextInterval
	p.nextInterval = p.baseInterval
	p.mu.Unlock()

	if p.throttle != nil && p.throttle.ShouldThrottle() {
		d += p.throttle.RecommendedDelay()
	}
	return d
}

// Cycle runs one discovery pass: fetch the catalog, diff it against
// the registry, and replace the registry with exactly the new set.
func (p *Poller) Cycle(ctx context.Context) error {
	models, err := p.client.Models(ctx)
	if err != nil {
		return fmt.Errorf("model discovery failed: %w", err)
	}

	now := time.Now()
	known := p.registry.IDs()
	current := make(map[string]bool, len(models))
	records := make([]*domain.ModelRecord, 0, len(models))

	for _, m := range models {
		id, _ := m["id"].(string)
		if id == "" {
			continue
		}
		current[id] = true
		records = append(records, &domain.ModelRecord{
			ID:           id,
			Metadata:     m,
			DiscoveredAt: now,
		})

		if !known[id] {
			p.logger.Info("new model discovered", logger.String("model_id", id))
		}
	}

	for id := range known {
		if !current[id] {
			p.logger.Info("model removed", logger.String("model_id", id))
		}
	}

	p.registry.Replace(records)
	p.metrics.ModelsDiscovered.Set(float64(len(records)))

	p.mu.Lock()
	p.consecutiveFailures = 0
	p.nextInterval = p.baseInterval
	p.mu.Unlock()

	return nil
}

// onFailure counts consecutive failures, escalates to recovery at the
// threshold, and doubles the next wait (capped) when recovery fails.
func (p *Poller) onFailure(ctx context.Context, err error) {
	p.mu.Lock()
	p.consecutiveFailures++
	failures := p.consecutiveFailures
	p.mu.Unlock()

	if failures < recoveryThreshold || p.recover == nil {
		return
	}

	p.logger.Warn("repeated discovery failures, escalating to recovery",
		logger.Int("consecutive_failures", failures))

	if p.recover.HandleError(ctx, err, "model_discovery") {
		return
	}

	extended := p.baseInterval * 2
	if extended > p.maxInterval {
		extended = p.maxInterval
	}
	p.mu.Lock()
	p.nextInterval = extended
	p.mu.Unlock()

	p.logger.Warn("recovery failed, extending next poll interval",
		logger.Duration("next_interval", extended))
}

// Force runs one discovery cycle synchronously and returns the
// resulting registry size.
func (p *Poller) Force(ctx context.Context) (int, error) {
	p.logger.Info("forcing model discovery")
	if err := p.Cycle(ctx); err != nil {
		return 0, err
	}
	return p.registry.Count(), nil
}

// HasModels reports whether any models are registered, without blocking.
func (p *Poller) HasModels() bool {
	return p.registry.Count() > 0
}

// ConsecutiveFailures exposes the failure streak for health reporting.
func (p *Poller) ConsecutiveFailures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.consecutiveFailures
}
