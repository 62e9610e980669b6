package stats

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestReportAggregatesDurations(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &Performance{now: func() time.Time { return now }}
	p.Reset()

	p.Record(100*time.Millisecond, true)
	p.Record(300*time.Millisecond, false)
	p.Record(20*time.Millisecond, true)
	p.Record(80*time.Millisecond, true)
	now = now.Add(90 * time.Second)

	want := Report{
		RequestCount:      4,
		TotalDurationMs:   500,
		AverageDurationMs: 125,
		MaxDurationMs:     300,
		MinDurationMs:     20,
		ErrorCount:        1,
		ErrorRate:         0.25,
		UptimeSeconds:     90,
	}
	if diff := cmp.Diff(want, p.Report()); diff != "" {
		t.Fatalf("Report() mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptyReportHasNoRates(t *testing.T) {
	p := NewPerformance()
	r := p.Report()
	if r.RequestCount != 0 || r.ErrorRate != 0 || r.AverageDurationMs != 0 {
		t.Fatalf("Report() = %+v, want zero counters", r)
	}
}

func TestResetIfAbove(t *testing.T) {
	p := NewPerformance()
	for range 3 {
		p.Record(time.Millisecond, true)
	}
	if p.ResetIfAbove(3) {
		t.Fatal("ResetIfAbove(3) = true at 3 requests, want false")
	}
	p.Record(time.Millisecond, true)
	if !p.ResetIfAbove(3) {
		t.Fatal("ResetIfAbove(3) = false at 4 requests, want true")
	}
	if p.Requests() != 0 {
		t.Fatalf("Requests() = %d, want 0", p.Requests())
	}
}
