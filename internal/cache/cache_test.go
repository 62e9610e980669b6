package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(max int, ttl time.Duration) (*Cache, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	c := New(max, ttl)
	c.now = clk.now
	return c, clk
}

func TestPutGetRoundTrip(t *testing.T) {
	c, _ := newTestCache(10, 30*time.Second)
	want := map[string]any{"state": map[string]any{"mode": "act"}}
	c.Put("k", want)

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("Get() cache miss, want hit")
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Get() mismatch (-want +got):\n%s", diff)
	}
}

func TestGetReturnsIndependentCopy(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Put("k", map[string]any{"items": []any{"a"}})

	got, _ := c.Get("k")
	got.(map[string]any)["items"].([]any)[0] = "mutated"

	again, _ := c.Get("k")
	if v := again.(map[string]any)["items"].([]any)[0]; v != "a" {
		t.Fatalf("stored value = %v, want a", v)
	}
}

func TestZeroTTLNeverHits(t *testing.T) {
	c, _ := newTestCache(10, 0)
	c.Put("k", "v")
	if _, ok := c.Get("k"); ok {
		t.Fatal("Get() hit with zero ttl, want miss")
	}
}

func TestExpiredEntryIsRemovedOnRead(t *testing.T) {
	c, clk := newTestCache(10, 30*time.Second)
	c.Put("k", "v")
	clk.advance(31 * time.Second)

	if _, ok := c.Get("k"); ok {
		t.Fatal("Get() hit = true, want false for expired entry")
	}
	st := c.Stats()
	if st.Entries != 0 {
		t.Fatalf("entries = %d, want 0", st.Entries)
	}
	if st.Misses != 1 {
		t.Fatalf("misses = %d, want 1", st.Misses)
	}
}

func TestInsertBeyondCapacityEvictsLeastRecentlyAccessed(t *testing.T) {
	c, clk := newTestCache(3, time.Hour)
	for i := range 3 {
		c.Put(fmt.Sprintf("k%d", i), i)
		clk.advance(time.Second)
	}
	c.Put("k3", 3)

	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}
	if _, ok := c.Get("k0"); ok {
		t.Fatal("k0 still cached, want evicted")
	}
	for _, k := range []string{"k1", "k2", "k3"} {
		if _, ok := c.Get(k); !ok {
			t.Fatalf("%s missing, want cached", k)
		}
	}
}

func TestReadRefreshesRecency(t *testing.T) {
	c, clk := newTestCache(2, time.Hour)
	c.Put("a", 1)
	clk.advance(time.Second)
	c.Put("b", 2)
	clk.advance(time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a missing")
	}
	c.Put("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("b still cached, want evicted as least recently read")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a evicted, want kept after read")
	}
}

func TestEvictionWithIdenticalTimestamps(t *testing.T) {
	c, _ := newTestCache(2, time.Hour)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)
	if _, ok := c.Get("a"); ok {
		t.Fatal("a still cached, want evicted")
	}
}

func TestOverwriteDoesNotEvict(t *testing.T) {
	c, _ := newTestCache(2, time.Hour)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("b", 20)
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	if got, _ := c.Get("b"); got != 20 {
		t.Fatalf("Get(b) = %v, want 20", got)
	}
}

func TestCleanupExpired(t *testing.T) {
	c, clk := newTestCache(10, 10*time.Second)
	c.Put("old1", 1)
	c.Put("old2", 2)
	clk.advance(8 * time.Second)
	c.Put("fresh", 3)
	clk.advance(5 * time.Second)

	if n := c.CleanupExpired(); n != 2 {
		t.Fatalf("CleanupExpired() = %d, want 2", n)
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
}

func TestStatsHitRateAndClear(t *testing.T) {
	c, _ := newTestCache(5, 30*time.Second)
	c.Put("k", 1)
	c.Get("k")
	c.Get("k")
	c.Get("k")
	c.Get("missing")

	want := Stats{Entries: 1, MaxEntries: 5, Hits: 3, Misses: 1, HitRate: 0.75, TTLSeconds: 30}
	if diff := cmp.Diff(want, c.Stats()); diff != "" {
		t.Fatalf("Stats() mismatch (-want +got):\n%s", diff)
	}

	c.Clear()
	want = Stats{MaxEntries: 5, TTLSeconds: 30}
	if diff := cmp.Diff(want, c.Stats()); diff != "" {
		t.Fatalf("Stats() after Clear mismatch (-want +got):\n%s", diff)
	}
}

func TestFingerprintIgnoresMapOrderAndSeparatesFields(t *testing.T) {
	a := Fingerprint("stateService", "getLatestState", map[string]any{"x": 1, "y": 2})
	b := Fingerprint("stateService", "getLatestState", map[string]any{"y": 2, "x": 1})
	if a != b {
		t.Fatalf("fingerprints differ for equal payloads: %s vs %s", a, b)
	}
	if c := Fingerprint("stateService", "getLatestMcpServers", map[string]any{"x": 1, "y": 2}); c == a {
		t.Fatal("fingerprint ignores method")
	}
	if Fingerprint("ab", "c", nil) == Fingerprint("a", "bc", nil) {
		t.Fatal("fingerprint collides across service/method boundary")
	}
}
