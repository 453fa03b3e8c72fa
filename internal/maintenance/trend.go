package maintenance

import (
	"time"

	"github.com/llmhub/llmhub/internal/domain"
)

// minSamples is the minimum history length before a trend is computed.
const minSamples = 5

// Scale factors turning a per-second slope into the reported rate.
const (
	PerHour = 3600.0
	PerDay  = 86400.0
)

type sample struct {
	t time.Time
	v float64
}

// trendBuffer is an insertion-ordered metric history trimmed to the
// retention window each cycle.
type trendBuffer struct {
	samples []sample
}

func (b *trendBuffer) add(t time.Time, v float64) {
	b.samples = append(b.samples, sample{t: t, v: v})
}

func (b *trendBuffer) trim(cutoff time.Time) {
	i := 0
	for ; i < len(b.samples); i++ {
		if b.samples[i].t.After(cutoff) {
			break
		}
	}
	b.samples = b.samples[i:]
}

func (b *trendBuffer) len() int { return len(b.samples) }

// trend estimates the rate of change over the look-back window ending
// at now, scaled by scale (PerHour or PerDay). The estimate is the
// first-vs-last sample inside the window; intermediate samples are
// ignored. Fewer than minSamples in the buffer, or fewer than two in
// the window, yields 0.
func (b *trendBuffer) trend(now time.Time, window time.Duration, scale float64) float64 {
	if len(b.samples) < minSamples {
		return 0
	}

	cutoff := now.Add(-window)
	var inWindow []sample
	for _, s := range b.samples {
		if s.t.After(cutoff) {
			inWindow = append(inWindow, s)
		}
	}
	if len(inWindow) < 2 {
		return 0
	}

	first := inWindow[0]
	last := inWindow[len(inWindow)-1]
	span := last.t.Sub(first.t).Seconds()
	if span == 0 {
		return 0
	}

	return (last.v - first.v) / span * scale
}

// recent returns the values inside the look-back window ending at now.
func (b *trendBuffer) recent(now time.Time, window time.Duration) []float64 {
	cutoff := now.Add(-window)
	var values []float64
	for _, s := range b.samples {
		if s.t.After(cutoff) {
			values = append(values, s.v)
		}
	}
	return values
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

type errorEntry struct {
	t       time.Time
	pattern domain.ErrorPattern
}

// errorLog is the shared error history the recovery manager feeds and
// the maintenance monitor analyzes.
type errorLog struct {
	entries []errorEntry
}

func (l *errorLog) add(t time.Time, pattern domain.ErrorPattern) {
	l.entries = append(l.entries, errorEntry{t: t, pattern: pattern})
}

func (l *errorLog) trim(cutoff time.Time) {
	i := 0
	for ; i < len(l.entries); i++ {
		if l.entries[i].t.After(cutoff) {
			break
		}
	}
	l.entries = l.entries[i:]
}

func (l *errorLog) countSince(cutoff time.Time) int {
	n := 0
	for _, e := range l.entries {
		if e.t.After(cutoff) {
			n++
		}
	}
	return n
}

func (l *errorLog) len() int { return len(l.entries) }
