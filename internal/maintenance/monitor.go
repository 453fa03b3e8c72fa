package maintenance

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/llmhub/llmhub/internal/domain"
	"github.com/llmhub/llmhub/internal/logger"
)

// Action thresholds.
const (
	memoryTrendThreshold = 5.0  // % per hour
	cpuMeanThreshold     = 80.0 // % over the last 5 minutes
	diskTrendThreshold   = 10.0 // % per day
	errorRateThreshold   = 3    // errors per hour
)

const (
	retention       = 24 * time.Hour
	cpuMeanWindow   = 5 * time.Minute
	memoryWindow    = time.Hour
	errorWindow     = time.Hour
	cleanupCooldown = time.Hour
	restartCooldown = 2 * time.Hour
	tempFileMaxAge  = 24 * time.Hour
)

// Reading is one sampled set of host metrics.
type Reading struct {
	MemoryPercent float64
	CPUPercent    float64
	DiskPercent   float64
}

// Sampler provides host metrics for trend analysis.
type Sampler interface {
	Sample() (Reading, error)
}

// Recoverer triggers an upstream connection reset.
type Recoverer interface {
	Recover(ctx context.Context) error
}

// PriorityDropper lowers the process scheduling priority one step.
type PriorityDropper interface {
	LowerPriority() error
}

// Pruner evicts cached entries to release memory.
type Pruner interface {
	Prune(ctx context.Context) error
}

// Options configures the maintenance monitor.
type Options struct {
	Interval time.Duration
	TempDir  string
}

func (o *Options) fill() {
	if o.Interval <= 0 {
		o.Interval = time.Minute
	}
	if o.TempDir == "" {
		o.TempDir = filepath.Join(os.TempDir(), "llmhub")
	}
}

// Status is a point-in-time view of the trend analysis.
type Status struct {
	MemoryTrendPerHour float64   `json:"memory_trend_per_hour"`
	CPUMean5m          float64   `json:"cpu_mean_5m"`
	DiskTrendPerDay    float64   `json:"disk_trend_per_day"`
	ErrorsLastHour     int       `json:"errors_last_hour"`
	Samples            int       `json:"samples"`
	LastCleanup        time.Time `json:"last_cleanup"`
	LastPriorityDrop   time.Time `json:"last_priority_drop"`
	LastRecovery       time.Time `json:"last_recovery"`
}

// Monitor samples host metrics on a fixed cycle, keeps 24h of history
// and runs corrective actions when a trend crosses its threshold.
// Every action is cooldown-gated so a sustained condition does not
// trigger it on every cycle.
type Monitor struct {
	opts     Options
	sampler  Sampler
	upstream Recoverer
	prio     PriorityDropper
	cache    Pruner
	log      logger.Logger

	mu      sync.Mutex
	memory  trendBuffer
	cpu     trendBuffer
	disk    trendBuffer
	errors  errorLog
	actions struct {
		lastCleanup      time.Time
		lastPriorityDrop time.Time
		lastRecovery     time.Time
	}

	now func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

func New(opts Options, sampler Sampler, upstream Recoverer, prio PriorityDropper, cache Pruner, log logger.Logger) *Monitor {
	opts.fill()
	if sampler == nil {
		sampler = newSystemSampler()
	}
	return &Monitor{
		opts:     opts,
		sampler:  sampler,
		upstream: upstream,
		prio:     prio,
		cache:    cache,
		log:      log,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs one cycle immediately, then repeats on the configured
// interval until Stop or context cancellation.
func (m *Monitor) Start(ctx context.Context) {
	m.Cycle(ctx)

	go func() {
		defer close(m.doneCh)
		ticker := time.NewTicker(m.opts.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.Cycle(ctx)
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (m *Monitor) Stop() {
	close(m.stopCh)
	<-m.doneCh
}

// RecordError feeds an upstream failure into the error history. The
// recovery manager calls this for every classified error.
func (m *Monitor) RecordError(pattern domain.ErrorPattern) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors.add(m.now(), pattern)
}

// Cycle samples metrics, trims history to the retention window and
// applies any due corrective actions.
func (m *Monitor) Cycle(ctx context.Context) {
	reading, err := m.sampler.Sample()
	if err != nil {
		m.log.Warn("maintenance sample failed", logger.Error(err))
		return
	}

	m.mu.Lock()
	now := m.now()
	cutoff := now.Add(-retention)

	m.memory.add(now, reading.MemoryPercent)
	m.cpu.add(now, reading.CPUPercent)
	m.disk.add(now, reading.DiskPercent)
	m.memory.trim(cutoff)
	m.cpu.trim(cutoff)
	m.disk.trim(cutoff)
	m.errors.trim(cutoff)

	memTrend := m.memory.trend(now, memoryWindow, PerHour)
	cpuMean := mean(m.cpu.recent(now, cpuMeanWindow))
	diskTrend := m.disk.trend(now, retention, PerDay)
	errorCount := m.errors.countSince(now.Add(-errorWindow))

	runCleanup := memTrend > memoryTrendThreshold && now.Sub(m.actions.lastCleanup) >= cleanupCooldown
	runPriorityDrop := cpuMean > cpuMeanThreshold && now.Sub(m.actions.lastPriorityDrop) >= cleanupCooldown
	runDiskCleanup := diskTrend > diskTrendThreshold && now.Sub(m.actions.lastCleanup) >= cleanupCooldown
	runRecovery := errorCount > errorRateThreshold && now.Sub(m.actions.lastRecovery) >= restartCooldown

	if runCleanup || runDiskCleanup {
		m.actions.lastCleanup = now
	}
	if runPriorityDrop {
		m.actions.lastPriorityDrop = now
	}
	if runRecovery {
		m.actions.lastRecovery = now
	}
	m.mu.Unlock()

	if runCleanup {
		m.log.Warn("memory climbing, releasing caches",
			logger.Float64("trend_per_hour", memTrend))
		m.releaseMemory(ctx)
	}
	if runPriorityDrop {
		m.log.Warn("sustained high cpu, lowering priority",
			logger.Float64("mean_5m", cpuMean))
		if m.prio != nil {
			if err := m.prio.LowerPriority(); err != nil {
				m.log.Warn("priority drop failed", logger.Error(err))
			}
		}
	}
	if runDiskCleanup {
		m.log.Warn("disk usage climbing, cleaning temp files",
			logger.Float64("trend_per_day", diskTrend))
		m.cleanTempFiles()
	}
	if runRecovery {
		m.log.Warn("elevated error rate, resetting upstream connections",
			logger.Int("errors_last_hour", errorCount))
		if m.upstream != nil {
			if err := m.upstream.Recover(ctx); err != nil {
				m.log.Warn("upstream reset failed", logger.Error(err))
			}
		}
	}
}

func (m *Monitor) releaseMemory(ctx context.Context) {
	runtime.GC()
	debug.FreeOSMemory()
	if m.cache != nil {
		if err := m.cache.Prune(ctx); err != nil {
			m.log.Warn("cache prune failed", logger.Error(err))
		}
	}
}

// cleanTempFiles removes files under the configured temp directory
// that are older than tempFileMaxAge. Only files this process owns
// are in that directory, so removal is safe.
func (m *Monitor) cleanTempFiles() {
	cutoff := m.now().Add(-tempFileMaxAge)

	entries, err := os.ReadDir(m.opts.TempDir)
	if err != nil {
		if !os.IsNotExist(err) {
			m.log.Warn("temp dir scan failed", logger.Error(err))
		}
		return
	}

	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(m.opts.TempDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			m.log.Warn("temp file removal failed",
				logger.String("path", path), logger.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		m.log.Info("temp files removed", logger.Int("count", removed))
	}
}

// Status reports current trends and action timestamps.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	return Status{
		MemoryTrendPerHour: m.memory.trend(now, memoryWindow, PerHour),
		CPUMean5m:          mean(m.cpu.recent(now, cpuMeanWindow)),
		DiskTrendPerDay:    m.disk.trend(now, retention, PerDay),
		ErrorsLastHour:     m.errors.countSince(now.Add(-errorWindow)),
		Samples:            m.memory.len(),
		LastCleanup:        m.actions.lastCleanup,
		LastPriorityDrop:   m.actions.lastPriorityDrop,
		LastRecovery:       m.actions.lastRecovery,
	}
}
