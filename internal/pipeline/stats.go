package pipeline

import (
	"sort"
	"sync"
	"time"
)

const statsWindowSize = 512

// Stats tracks expansion latency and counts over a rolling window.
type Stats struct {
	mu sync.Mutex

	totalExpansions int64
	totalFailures   int64
	cacheHits       int64

	latencies []time.Duration
	next      int
	filled    bool

	startedAt time.Time
}

func NewStats() *Stats {
	return &Stats{
		latencies: make([]time.Duration, statsWindowSize),
		startedAt: time.Now(),
	}
}

// RecordExpansion records one successful document expansion.
func (s *Stats) RecordExpansion(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalExpansions++
	s.latencies[s.next] = d
	s.next++
	if s.next == len(s.latencies) {
		s.next = 0
		s.filled = true
	}
}

// RecordFailure records a failed expansion.
func (s *Stats) RecordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalFailures++
}

// RecordCacheHit records a cache hit that bypassed expansion.
func (s *Stats) RecordCacheHit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheHits++
}

// Summary is a point-in-time view of the collected stats.
type Summary struct {
	TotalExpansions int64   `json:"total_expansions"`
	TotalFailures   int64   `json:"total_failures"`
	CacheHits       int64   `json:"cache_hits"`
	LatencyP50Ms    float64 `json:"latency_p50_ms"`
	LatencyP95Ms    float64 `json:"latency_p95_ms"`
	LatencyP99Ms    float64 `json:"latency_p99_ms"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}

// Snapshot computes percentiles over the rolling window.
func (s *Stats) Snapshot() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.next
	if s.filled {
		n = len(s.latencies)
	}
	window := make([]time.Duration, n)
	copy(window, s.latencies[:n])
	sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })

	return Summary{
		TotalExpansions: s.totalExpansions,
		TotalFailures:   s.totalFailures,
		CacheHits:       s.cacheHits,
		LatencyP50Ms:    percentileMs(window, 0.50),
		LatencyP95Ms:    percentileMs(window, 0.95),
		LatencyP99Ms:    percentileMs(window, 0.99),
		UptimeSeconds:   time.Since(s.startedAt).Seconds(),
	}
}

func percentileMs(sorted []time.Duration, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return float64(sorted[idx]) / float64(time.Millisecond)
}
