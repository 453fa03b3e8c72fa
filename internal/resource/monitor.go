package resource

import (
	"context"
	"sync"
	"time"

	"github.com/llmhub/llmhub/internal/domain"
	"github.com/llmhub/llmhub/internal/logger"
	"github.com/llmhub/llmhub/internal/metrics"
)

// userActivityMargin: CPU consumed by other processes above this
// margin means somebody else is actively using the machine.
const userActivityMargin = 20.0

// Sampler provides one resource snapshot per call.
type Sampler interface {
	Sample() (domain.ResourceSnapshot, error)
}

// Options bounds the monitor's own footprint.
type Options struct {
	Interval      time.Duration
	MaxCPUPercent float64
	MaxMemPercent float64
}

func (o *Options) fill() {
	if o.Interval <= 0 {
		o.Interval = 10 * time.Second
	}
	if o.MaxCPUPercent <= 0 {
		o.MaxCPUPercent = 50.0
	}
	if o.MaxMemPercent <= 0 {
		o.MaxMemPercent = 50.0
	}
}

// Monitor samples host and process usage every cycle, derives the
// discrete throttle level, and adjusts the process scheduling priority
// to match. Other components only read its snapshots.
type Monitor struct {
	opts        Options
	sampler     Sampler
	setPriority func(tier PriorityTier) error
	logger      logger.Logger
	metrics     *metrics.Metrics

	mu          sync.RWMutex
	snapshot    domain.ResourceSnapshot
	state       domain.ThrottleState
	currentTier PriorityTier

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewMonitor(opts Options, m *metrics.Metrics, log logger.Logger) *Monitor {
	opts.fill()
	if m == nil {
		m = metrics.New(nil)
	}
	return &Monitor{
		opts:        opts,
		sampler:     newSystemSampler(),
		setPriority: setProcessPriority,
		logger:      log,
		metrics:     m,
		currentTier: PriorityNormal,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start begins the monitoring loop.
func (mo *Monitor) Start(ctx context.Context) error {
	mo.logger.Info("starting resource monitoring",
		logger.Duration("interval", mo.opts.Interval),
		logger.Float64("max_cpu_percent", mo.opts.MaxCPUPercent),
		logger.Float64("max_mem_percent", mo.opts.MaxMemPercent))

	mo.cycle()

	ticker := time.NewTicker(mo.opts.Interval)
	go func() {
		defer ticker.Stop()
		defer close(mo.doneCh)
		for {
			select {
			case <-ticker.C:
				mo.cycle()
			case <-mo.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop cancels the loop and waits for it to exit.
func (mo *Monitor) Stop() {
	close(mo.stopCh)
	<-mo.doneCh
	mo.logger.Info("resource monitoring stopped")
}

func (mo *Monitor) cycle() {
	snap, err := mo.sampler.Sample()
	if err != nil {
		mo.logger.Error("failed to sample resources", logger.Error(err))
		return
	}

	userActive := snap.SystemCPU-snap.ProcessCPU > userActivityMargin
	level := computeLevel(snap, mo.opts.MaxCPUPercent, mo.opts.MaxMemPercent, userActive)

	state := domain.ThrottleState{
		Level:      level,
		Delay:      delayFor(level),
		UserActive: userActive,
	}

	mo.mu.Lock()
	previous := mo.state.Level
	mo.snapshot = snap
	mo.state = state
	mo.mu.Unlock()

	mo.metrics.ThrottleLevel.Set(float64(level))

	if level != previous {
		mo.logger.Info("throttle level changed",
			logger.Int("from", previous),
			logger.Int("to", level),
			logger.Bool("user_active", userActive),
			logger.Float64("system_cpu", snap.SystemCPU),
			logger.Float64("system_memory", snap.SystemMemory))
		mo.applyPriority(tierFor(level))
	}
}

// computeLevel applies the throttle rules independently and takes the
// maximum, then bumps by one (capped at 5) when the user is active and
// any rule fired.
func computeLevel(snap domain.ResourceSnapshot, maxCPU, maxMem float64, userActive bool) int {
	level := 0
	if snap.SystemCPU > 80.0 && level < 3 {
		level = 3
	}
	if snap.SystemMemory > 85.0 && level < 2 {
		level = 2
	}
	if snap.ProcessCPU > maxCPU && level < 2 {
		level = 2
	}
	if snap.ProcessMemory > maxMem && level < 1 {
		level = 1
	}

	if userActive && level > 0 {
		level++
		if level > 5 {
			level = 5
		}
	}
	return level
}

// delayFor maps a throttle level to its recommended operation delay.
func delayFor(level int) time.Duration {
	switch level {
	case 1:
		return 100 * time.Millisecond
	case 2:
		return 250 * time.Millisecond
	case 3:
		return 500 * time.Millisecond
	case 4:
		return time.Second
	case 5:
		return 2 * time.Second
	default:
		return 0
	}
}

// tierFor maps a throttle level to a scheduling priority tier.
func tierFor(level int) PriorityTier {
	switch {
	case level >= 3:
		return PriorityIdle
	case level == 2:
		return PriorityLow
	case level == 1:
		return PriorityBelowNormal
	default:
		return PriorityNormal
	}
}

func (mo *Monitor) applyPriority(tier PriorityTier) {
	mo.mu.Lock()
	if tier == mo.currentTier {
		mo.mu.Unlock()
		return
	}
	mo.currentTier = tier
	mo.mu.Unlock()

	if err := mo.setPriority(tier); err != nil {
		mo.logger.Warn("failed to set process priority",
			logger.String("tier", string(tier)),
			logger.Error(err))
		return
	}
	mo.logger.Info("process priority adjusted", logger.String("tier", string(tier)))
}

// LowerPriority drops the process one tier below normal, used by
// predictive maintenance on sustained CPU pressure.
func (mo *Monitor) LowerPriority() error {
	mo.mu.Lock()
	mo.currentTier = PriorityBelowNormal
	mo.mu.Unlock()
	return mo.setPriority(PriorityBelowNormal)
}

// Snapshot returns the latest resource snapshot.
func (mo *Monitor) Snapshot() domain.ResourceSnapshot {
	mo.mu.RLock()
	defer mo.mu.RUnlock()
	return mo.snapshot
}

// ThrottleState returns the latest throttle decision.
func (mo *Monitor) ThrottleState() domain.ThrottleState {
	mo.mu.RLock()
	defer mo.mu.RUnlock()
	return mo.state
}

// ShouldThrottle reports whether operations should add delays.
func (mo *Monitor) ShouldThrottle() bool {
	return mo.ThrottleState().Level >= 2
}

// RecommendedDelay returns the delay operations should add when
// throttled.
func (mo *Monitor) RecommendedDelay() time.Duration {
	return mo.ThrottleState().Delay
}
