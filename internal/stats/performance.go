// Package stats tracks request latency counters and samples the daemon's own
// process usage.
package stats

import (
	"time"
)

// ResetThreshold is the request count above which periodic maintenance
// starts the counters over.
const ResetThreshold = 10000

// Performance accumulates request outcomes. It is not safe for concurrent
// use; the dispatcher serializes access.
type Performance struct {
	now func() time.Time

	requests  uint64
	errors    uint64
	total     time.Duration
	max       time.Duration
	min       time.Duration
	lastReset time.Time
}

// Report is the JSON form of Performance.
type Report struct {
	RequestCount      uint64  `json:"request_count"`
	TotalDurationMs   int64   `json:"total_duration_ms"`
	AverageDurationMs int64   `json:"average_duration_ms"`
	MaxDurationMs     int64   `json:"max_duration_ms"`
	MinDurationMs     int64   `json:"min_duration_ms"`
	ErrorCount        uint64  `json:"error_count"`
	ErrorRate         float64 `json:"error_rate"`
	UptimeSeconds     uint64  `json:"uptime_seconds"`
}

// NewPerformance returns zeroed counters starting now.
func NewPerformance() *Performance {
	p := &Performance{now: time.Now}
	p.Reset()
	return p
}

// Record adds one request outcome.
func (p *Performance) Record(d time.Duration, ok bool) {
	p.requests++
	p.total += d
	if d > p.max {
		p.max = d
	}
	if p.requests == 1 || d < p.min {
		p.min = d
	}
	if !ok {
		p.errors++
	}
}

// Requests returns the number of recorded requests since the last reset.
func (p *Performance) Requests() uint64 {
	return p.requests
}

// Average returns the mean request duration.
func (p *Performance) Average() time.Duration {
	if p.requests == 0 {
		return 0
	}
	return p.total / time.Duration(p.requests)
}

// Reset zeroes the counters.
func (p *Performance) Reset() {
	p.requests = 0
	p.errors = 0
	p.total = 0
	p.max = 0
	p.min = 0
	p.lastReset = p.now()
}

// ResetIfAbove resets the counters once they exceed limit and reports
// whether it did.
func (p *Performance) ResetIfAbove(limit uint64) bool {
	if p.requests <= limit {
		return false
	}
	p.Reset()
	return true
}

// Report snapshots the counters.
func (p *Performance) Report() Report {
	r := Report{
		RequestCount:      p.requests,
		TotalDurationMs:   p.total.Milliseconds(),
		AverageDurationMs: p.Average().Milliseconds(),
		MaxDurationMs:     p.max.Milliseconds(),
		MinDurationMs:     p.min.Milliseconds(),
		ErrorCount:        p.errors,
		UptimeSeconds:     uint64(p.now().Sub(p.lastReset) / time.Second),
	}
	if p.requests > 0 {
		r.ErrorRate = float64(p.errors) / float64(p.requests)
	}
	return r
}
