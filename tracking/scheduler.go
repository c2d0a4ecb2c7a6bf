// Package tracking implements the client-facing location-sharing
// machinery: the adaptive update scheduler, the presence/tracking state
// machine and the app-lifecycle grace-period manager. All mutation
// happens on callback boundaries (fix delivery, timer tick, lifecycle
// event) guarded by a mutex per component.
package tracking

import (
	"sync"
	"time"
)

// Speed thresholds separating the update buckets, in m/s.
const (
	FastSpeedThreshold     = 5.0
	ModerateSpeedThreshold = 1.0
)

// BucketIntervals are the heartbeat intervals per speed bucket. Faster
// movement means fresher data is worth the battery and data cost.
type BucketIntervals struct {
	Fast     time.Duration // speed > 5 m/s
	Moderate time.Duration // 1 m/s < speed <= 5 m/s
	Idle     time.Duration // speed <= 1 m/s or unknown
}

func DefaultBucketIntervals() BucketIntervals {
	return BucketIntervals{
		Fast:     60 * time.Second,
		Moderate: 120 * time.Second,
		Idle:     600 * time.Second,
	}
}

// IntervalFor returns the update interval for a speed in m/s. A
// negative speed means unknown and maps to the idle bucket.
func IntervalFor(speed float64, intervals BucketIntervals) time.Duration {
	switch {
	case speed > FastSpeedThreshold:
		return intervals.Fast
	case speed > ModerateSpeedThreshold:
		return intervals.Moderate
	default:
		return intervals.Idle
	}
}

// Scheduler re-pushes the last known position on a cadence derived from
// the current estimated speed. After every tick it re-evaluates the
// bucket; a bucket change reschedules at the new interval rather than
// letting the old cadence keep firing.
type Scheduler struct {
	intervals BucketIntervals
	speed     func() float64 // m/s, negative = unknown
	onTick    func(now time.Time)

	mu       sync.Mutex
	timer    *time.Timer
	interval time.Duration
	running  bool
}

func NewScheduler(intervals BucketIntervals, speed func() float64, onTick func(now time.Time)) *Scheduler {
	return &Scheduler{
		intervals: intervals,
		speed:     speed,
		onTick:    onTick,
	}
}

// Start begins ticking. Calling Start on a running scheduler is a
// no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.interval = IntervalFor(s.speed(), s.intervals)
	s.timer = time.AfterFunc(s.interval, s.tick)
}

// Stop cancels the timer. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// CurrentInterval returns the interval the scheduler is ticking at.
func (s *Scheduler) CurrentInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.onTick(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	// Only one timer ever exists, so a bucket change can never leave
	// the old cadence firing alongside the new one.
	s.interval = IntervalFor(s.speed(), s.intervals)
	s.timer = time.AfterFunc(s.interval, s.tick)
}
