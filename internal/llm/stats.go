package llm

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	at         time.Time
	durationMs int64
}

// StatsSnapshot aggregates the latency samples inside the window.
type StatsSnapshot struct {
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// LLMStats keeps model call latencies for a rolling window.
type LLMStats struct {
	mu      sync.Mutex
	samples []sample
	window  time.Duration
}

func NewLLMStats(window time.Duration) *LLMStats {
	if window <= 0 {
		window = time.Hour
	}
	return &LLMStats{samples: make([]sample, 0, 128), window: window}
}

func (s *LLMStats) Record(durationMs int64) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropExpired(now)
	s.samples = append(s.samples, sample{at: now, durationMs: max(durationMs, 0)})
}

func (s *LLMStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	s.dropExpired(time.Now())
	values := make([]int64, len(s.samples))
	for i, sm := range s.samples {
		values[i] = sm.durationMs
	}
	s.mu.Unlock()

	if len(values) == 0 {
		return StatsSnapshot{}
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	var sum int64
	for _, v := range values {
		sum += v
	}
	return StatsSnapshot{
		Count: len(values),
		MinMs: values[0],
		MaxMs: values[len(values)-1],
		AvgMs: float64(sum) / float64(len(values)),
		P50Ms: percentile(values, 50),
		P95Ms: percentile(values, 95),
		P99Ms: percentile(values, 99),
	}
}

// dropExpired must be called with s.mu held.
func (s *LLMStats) dropExpired(now time.Time) {
	cutoff := now.Add(-s.window)
	kept := s.samples[:0]
	for _, sm := range s.samples {
		if !sm.at.Before(cutoff) {
			kept = append(kept, sm)
		}
	}
	s.samples = kept
}

// percentile interpolates linearly between the closest ranks of sorted.
func percentile(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}
	pos := float64(len(sorted)-1) * pct / 100
	lower := int(pos)
	if lower+1 >= len(sorted) {
		return float64(sorted[lower])
	}
	lo, hi := float64(sorted[lower]), float64(sorted[lower+1])
	return lo + (hi-lo)*(pos-float64(lower))
}
