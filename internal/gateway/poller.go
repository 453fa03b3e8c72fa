package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/llmhub/llmhub/internal/domain"
	"github.com/llmhub/llmhub/internal/logger"
	"github.com/llmhub/llmhub/internal/utils"
)

// Target is one downstream service the gateway keeps polling.
type Target struct {
	Name string
	URL  string
}

// Poller refreshes the service registry on a fixed interval. Each
// cycle checks every target's health endpoint, drops targets that do
// not answer 200, and re-reads the tool catalog of those that do.
type Poller struct {
	targets  []Target
	registry *ServiceRegistry
	client   *http.Client
	log      logger.Logger
	interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewPoller(targets []Target, registry *ServiceRegistry, interval time.Duration, log logger.Logger) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{
		targets:  targets,
		registry: registry,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs one cycle immediately, then repeats until Stop or
// context cancellation.
func (p *Poller) Start(ctx context.Context) {
	p.Cycle(ctx)

	go func() {
		defer close(p.doneCh)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.Cycle(ctx)
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (p *Poller) Stop() {
	close(p.stopCh)
	<-p.doneCh
}

// Cycle polls every target once.
func (p *Poller) Cycle(ctx context.Context) {
	for _, target := range p.targets {
		p.poll(ctx, target)
	}
}

func (p *Poller) poll(ctx context.Context, target Target) {
	if err := p.checkHealth(ctx, target); err != nil {
		if p.registry.Get(target.Name) != nil {
			p.log.Warn("service unhealthy, removing from registry",
				logger.String("service", target.Name), logger.Error(err))
		}
		p.registry.Remove(target.Name)
		return
	}

	tools, err := p.fetchTools(ctx, target)
	if err != nil {
		p.log.Warn("tool catalog fetch failed",
			logger.String("service", target.Name), logger.Error(err))
		p.registry.Remove(target.Name)
		return
	}

	p.registry.Upsert(&domain.ServiceEntry{
		Name:    target.Name,
		URL:     target.URL,
		Tools:   tools,
		Healthy: true,
	})
}

func (p *Poller) checkHealth(ctx context.Context, target Target) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}

func (p *Poller) fetchTools(ctx context.Context, target Target) (map[string]domain.ToolSchema, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL+"/tools", nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tool listing returned %d", resp.StatusCode)
	}

	var payload struct {
		Tools []domain.ToolSpec `json:"tools"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding tool listing: %w", err)
	}

	tools := make(map[string]domain.ToolSchema, len(payload.Tools))
	for _, spec := range payload.Tools {
		tools[spec.Name] = spec.Schema
	}
	return tools, nil
}
