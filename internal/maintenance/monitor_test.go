package maintenance

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/llmhub/llmhub/internal/domain"
	"github.com/llmhub/llmhub/internal/logger"
)

type stubSampler struct {
	reading Reading
	err     error
}

func (s *stubSampler) Sample() (Reading, error) { return s.reading, s.err }

type stubRecoverer struct{ calls int }

func (s *stubRecoverer) Recover(ctx context.Context) error {
	s.calls++
	return nil
}

type stubDropper struct{ calls int }

func (s *stubDropper) LowerPriority() error {
	s.calls++
	return nil
}

type stubPruner struct{ calls int }

func (s *stubPruner) Prune(ctx context.Context) error {
	s.calls++
	return nil
}

type testMonitor struct {
	m       *Monitor
	sampler *stubSampler
	up      *stubRecoverer
	prio    *stubDropper
	cache   *stubPruner
	clock   time.Time
}

func newTestMonitor(t *testing.T) *testMonitor {
	t.Helper()
	tm := &testMonitor{
		sampler: &stubSampler{reading: Reading{MemoryPercent: 50, CPUPercent: 10, DiskPercent: 40}},
		up:      &stubRecoverer{},
		prio:    &stubDropper{},
		cache:   &stubPruner{},
		// Real base time: temp file cleanup compares against actual
		// file modification times.
		clock: time.Now(),
	}
	tm.m = New(Options{TempDir: t.TempDir()}, tm.sampler, tm.up, tm.prio, tm.cache, logger.Nop())
	tm.m.now = func() time.Time { return tm.clock }
	return tm
}

// run advances the clock by step and runs one cycle, repeated n times.
func (tm *testMonitor) run(n int, step time.Duration) {
	for i := 0; i < n; i++ {
		tm.clock = tm.clock.Add(step)
		tm.m.Cycle(context.Background())
	}
}

func TestMemoryTrendTriggersCleanup(t *testing.T) {
	tm := newTestMonitor(t)

	// Memory grows 1% per minute: 60%/h, far over the 5%/h threshold.
	for i := 0; i < 10; i++ {
		tm.sampler.reading.MemoryPercent = 50 + float64(i)
		tm.run(1, time.Minute)
	}

	if tm.cache.calls != 1 {
		t.Fatalf("cache pruned %d times, want 1", tm.cache.calls)
	}

	// Still climbing, but the cleanup cooldown gates a second run.
	for i := 0; i < 10; i++ {
		tm.sampler.reading.MemoryPercent = 60 + float64(i)
		tm.run(1, time.Minute)
	}
	if tm.cache.calls != 1 {
		t.Errorf("cache pruned %d times inside cooldown, want still 1", tm.cache.calls)
	}

	// Past the cooldown the action fires again.
	tm.run(60, time.Minute)
	for i := 0; i < 10; i++ {
		tm.sampler.reading.MemoryPercent = 70 + float64(i)
		tm.run(1, time.Minute)
	}
	if tm.cache.calls != 2 {
		t.Errorf("cache pruned %d times after cooldown, want 2", tm.cache.calls)
	}
}

func TestSustainedCPUDropsPriority(t *testing.T) {
	tm := newTestMonitor(t)

	tm.sampler.reading.CPUPercent = 95
	tm.run(6, time.Minute)

	if tm.prio.calls != 1 {
		t.Errorf("priority dropped %d times, want 1", tm.prio.calls)
	}
}

func TestBriefCPUSpikeDoesNotDropPriority(t *testing.T) {
	tm := newTestMonitor(t)

	tm.run(10, time.Minute)
	tm.sampler.reading.CPUPercent = 95
	tm.run(1, time.Minute)
	tm.sampler.reading.CPUPercent = 10
	tm.run(4, time.Minute)

	// One high sample inside a calm 5-minute window keeps the mean low.
	if tm.prio.calls != 0 {
		t.Errorf("priority dropped %d times on a brief spike, want 0", tm.prio.calls)
	}
}

func TestErrorRateTriggersConnectionReset(t *testing.T) {
	tm := newTestMonitor(t)

	tm.run(5, time.Minute)
	for i := 0; i < 4; i++ {
		tm.m.RecordError(domain.PatternTimeout)
	}
	tm.run(1, time.Minute)

	if tm.up.calls != 1 {
		t.Fatalf("upstream reset %d times, want 1 (4 errors in the last hour)", tm.up.calls)
	}

	// More errors inside the 2h restart cooldown stay ungated.
	for i := 0; i < 4; i++ {
		tm.m.RecordError(domain.PatternNetworkError)
	}
	tm.run(1, time.Minute)
	if tm.up.calls != 1 {
		t.Errorf("upstream reset %d times inside cooldown, want still 1", tm.up.calls)
	}
}

func TestErrorRateBelowThresholdDoesNothing(t *testing.T) {
	tm := newTestMonitor(t)

	tm.run(5, time.Minute)
	for i := 0; i < 3; i++ {
		tm.m.RecordError(domain.PatternTimeout)
	}
	tm.run(1, time.Minute)

	if tm.up.calls != 0 {
		t.Errorf("upstream reset %d times at exactly 3 errors/h, want 0", tm.up.calls)
	}
}

func TestDiskTrendCleansTempFiles(t *testing.T) {
	tm := newTestMonitor(t)

	old := filepath.Join(tm.m.opts.TempDir, "stale.tmp")
	if err := os.WriteFile(old, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Back-date past the temp file age limit.
	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatal(err)
	}
	fresh := filepath.Join(tm.m.opts.TempDir, "fresh.tmp")
	if err := os.WriteFile(fresh, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Disk grows ~1% per hour: 24%/day, over the 10%/day threshold.
	for i := 0; i < 13; i++ {
		tm.sampler.reading.DiskPercent = 40 + float64(i)
		tm.run(1, time.Hour)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("stale temp file survived cleanup")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh temp file should survive cleanup")
	}
}

func TestStatusReportsTrends(t *testing.T) {
	tm := newTestMonitor(t)

	for i := 0; i < 6; i++ {
		tm.sampler.reading.MemoryPercent = 50 + float64(i)
		tm.run(1, time.Minute)
	}
	tm.m.RecordError(domain.PatternTimeout)

	st := tm.m.Status()
	if st.Samples != 6 {
		t.Errorf("Samples = %d, want 6", st.Samples)
	}
	if st.MemoryTrendPerHour <= 5 {
		t.Errorf("MemoryTrendPerHour = %v, want > 5 while climbing", st.MemoryTrendPerHour)
	}
	if st.ErrorsLastHour != 1 {
		t.Errorf("ErrorsLastHour = %d, want 1", st.ErrorsLastHour)
	}
}
