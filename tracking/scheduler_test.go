package tracking

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestIntervalForBuckets(t *testing.T) {
	intervals := DefaultBucketIntervals()

	cases := []struct {
		speed float64
		want  time.Duration
	}{
		{-1, 600 * time.Second}, // unknown
		{0, 600 * time.Second},
		{1, 600 * time.Second},    // boundary: <=1 is idle
		{1.01, 120 * time.Second}, // just above idle
		{5, 120 * time.Second},    // boundary: <=5 is moderate
		{5.01, 60 * time.Second},
		{30, 60 * time.Second},
	}

	for _, c := range cases {
		if got := IntervalFor(c.speed, intervals); got != c.want {
			t.Errorf("IntervalFor(%v) = %v, want %v", c.speed, got, c.want)
		}
	}
}

func TestSchedulerTicksAndStops(t *testing.T) {
	var ticks int64
	intervals := BucketIntervals{Fast: 10 * time.Millisecond, Moderate: 10 * time.Millisecond, Idle: 10 * time.Millisecond}

	s := NewScheduler(intervals, func() float64 { return 0 }, func(time.Time) {
		atomic.AddInt64(&ticks, 1)
	})

	s.Start()
	s.Start() // no-op
	time.Sleep(55 * time.Millisecond)
	s.Stop()
	s.Stop() // idempotent

	n := atomic.LoadInt64(&ticks)
	if n < 3 {
		t.Errorf("expected at least 3 ticks, got %d", n)
	}

	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt64(&ticks) != n {
		t.Error("scheduler ticked after Stop")
	}
}

// Changing the speed bucket mid-run must reschedule at the new interval
// without the old cadence continuing to fire alongside it.
func TestSchedulerRestartsOnBucketChange(t *testing.T) {
	var mu sync.Mutex
	var tickTimes []time.Time
	speed := int64(0) // starts idle

	intervals := BucketIntervals{
		Fast:     10 * time.Millisecond,
		Moderate: 40 * time.Millisecond,
		Idle:     80 * time.Millisecond,
	}

	s := NewScheduler(intervals, func() float64 {
		return float64(atomic.LoadInt64(&speed))
	}, func(now time.Time) {
		mu.Lock()
		tickTimes = append(tickTimes, now)
		mu.Unlock()
	})

	s.Start()
	if got := s.CurrentInterval(); got != intervals.Idle {
		t.Fatalf("expected idle interval at start, got %v", got)
	}

	// Move to the fast bucket; after the next tick the cadence should
	// tighten to the fast interval.
	atomic.StoreInt64(&speed, 10)
	time.Sleep(100 * time.Millisecond) // one idle tick, then fast ticks

	if got := s.CurrentInterval(); got != intervals.Fast {
		t.Errorf("expected fast interval after bucket change, got %v", got)
	}

	mu.Lock()
	count := len(tickTimes)
	mu.Unlock()
	// One idle tick at ~80ms plus fast ticks every 10ms afterwards; a
	// doubled timer would roughly double this.
	if count < 2 || count > 5 {
		t.Errorf("unexpected tick count %d", count)
	}

	s.Stop()
}
