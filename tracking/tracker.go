package tracking

import (
	"context"
	"sync"
	"time"

	"gppo/models"
	"gppo/position"
	"gppo/store"
	"gppo/utils"

	"github.com/sirupsen/logrus"
)

type TrackerState int

const (
	StateIdle TrackerState = iota
	StateAcquiring
	StateActive
	StateDegraded
)

func (s TrackerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateActive:
		return "active"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Notice is a user-facing tracking message. Transient notices expire on
// the next successful fix; permanent ones require user action.
type Notice struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Transient bool   `json:"transient"`
}

type TrackerConfig struct {
	AcquireTimeout       time.Duration
	ShortRetry           time.Duration // retry delay below the error threshold
	LongRetry            time.Duration // retry delay at or above it
	MaxConsecutiveErrors int
	StaleAfter           time.Duration // no fix for this long marks not-live
	StaleCheckInterval   time.Duration
	Intervals            BucketIntervals
}

func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		AcquireTimeout:       15 * time.Second,
		ShortRetry:           5 * time.Second,
		LongRetry:            10 * time.Second,
		MaxConsecutiveErrors: 3,
		StaleAfter:           120 * time.Second,
		StaleCheckInterval:   30 * time.Second,
		Intervals:            DefaultBucketIntervals(),
	}
}

// Tracker owns one officer's location-sharing session. It wires the
// position provider and the adaptive scheduler together, applies the
// consecutive-error backoff policy and persists position snapshots to
// the presence store. Store write failures are logged and tracking
// continues optimistically on the last known local state.
type Tracker struct {
	officerID string
	provider  position.Provider
	presence  *store.PresenceStore
	cfg       TrackerConfig
	onNotice  func(Notice) // optional, surfaced to the officer client

	mu         sync.Mutex
	state      TrackerState
	watch      position.WatchHandle
	watching   bool
	scheduler  *Scheduler
	retryTimer *time.Timer
	staleStop  chan struct{}
	errCount   int
	prevFix    *position.Fix
	lastFix    *position.Fix
	lastFixAt  time.Time
	live       bool
	notice     *Notice
}

func NewTracker(officerID string, provider position.Provider, presence *store.PresenceStore, cfg TrackerConfig, onNotice func(Notice)) *Tracker {
	return &Tracker{
		officerID: officerID,
		provider:  provider,
		presence:  presence,
		cfg:       cfg,
		onNotice:  onNotice,
	}
}

// Start transitions Idle → Acquiring → Active. Calling Start while
// already Acquiring or Active is a no-op. On acquisition failure the
// tracker stays Idle and the mapped error is returned.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.state != StateIdle {
		t.mu.Unlock()
		return nil
	}
	t.state = StateAcquiring
	t.mu.Unlock()

	fix, err := t.provider.GetOnce(ctx, position.Options{
		HighAccuracy: true,
		Timeout:      t.cfg.AcquireTimeout,
	})
	if err != nil {
		t.mu.Lock()
		if t.state == StateAcquiring {
			t.state = StateIdle
		}
		t.mu.Unlock()
		logrus.Warnf("Officer %s failed to acquire initial fix: %v", t.officerID, err)
		return err
	}

	t.mu.Lock()
	if t.state != StateAcquiring {
		// Stopped while acquiring; discard the fix.
		t.mu.Unlock()
		return nil
	}
	t.state = StateActive
	t.lastFix = fix
	t.lastFixAt = time.Now()
	t.live = true
	t.staleStop = make(chan struct{})
	t.mu.Unlock()

	if err := t.presence.StartSharing(ctx, t.officerID); err != nil {
		logrus.Warnf("Officer %s sharing flag write failed: %v", t.officerID, err)
	}
	t.writeLocation(*fix)

	t.startWatch()

	t.mu.Lock()
	t.scheduler = NewScheduler(t.cfg.Intervals, t.currentSpeed, t.schedulerTick)
	sched := t.scheduler
	stop := t.staleStop
	t.mu.Unlock()

	sched.Start()
	go t.watchStaleness(stop)

	logrus.Infof("Officer %s started location sharing", t.officerID)
	return nil
}

// Stop cancels, in order, the retry timer, the scheduler and the watch,
// then clears the stored position and the sharing flag. Safe to call
// any number of times; repeated calls perform no further writes.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.state == StateIdle {
		t.mu.Unlock()
		return
	}
	t.state = StateIdle

	if t.retryTimer != nil {
		t.retryTimer.Stop()
		t.retryTimer = nil
	}
	sched := t.scheduler
	t.scheduler = nil
	watching := t.watching
	handle := t.watch
	t.watching = false
	stop := t.staleStop
	t.staleStop = nil

	t.errCount = 0
	t.prevFix = nil
	t.lastFix = nil
	t.lastFixAt = time.Time{}
	t.live = false
	t.notice = nil
	t.mu.Unlock()

	if sched != nil {
		sched.Stop()
	}
	if watching {
		t.provider.Cancel(handle)
	}
	if stop != nil {
		close(stop)
	}

	if err := t.presence.StopSharing(context.Background(), t.officerID); err != nil {
		logrus.Warnf("Officer %s stop-sharing write failed: %v", t.officerID, err)
	}

	logrus.Infof("Officer %s stopped location sharing", t.officerID)
}

func (t *Tracker) State() TrackerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Live reports whether the last fix is recent enough to render.
func (t *Tracker) Live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

// Notice returns the currently surfaced notice, nil when none.
func (t *Tracker) Notice() *Notice {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.notice == nil {
		return nil
	}
	cp := *t.notice
	return &cp
}

func (t *Tracker) startWatch() {
	handle, err := t.provider.Watch(t.handleFix, t.handleWatchError, position.Options{HighAccuracy: true})
	if err != nil {
		t.handleWatchError(err)
		return
	}

	t.mu.Lock()
	t.watch = handle
	t.watching = true
	t.mu.Unlock()
}

func (t *Tracker) handleFix(fix position.Fix) {
	t.mu.Lock()
	if t.state != StateActive && t.state != StateDegraded {
		t.mu.Unlock()
		return
	}
	t.errCount = 0
	t.notice = nil
	t.prevFix = t.lastFix
	t.lastFix = &fix
	t.lastFixAt = time.Now()
	t.live = true
	t.state = StateActive
	t.mu.Unlock()

	t.writeLocation(fix)
}

func (t *Tracker) handleWatchError(err error) {
	t.mu.Lock()
	if t.state != StateActive && t.state != StateDegraded {
		t.mu.Unlock()
		return
	}

	t.errCount++
	t.live = false
	count := t.errCount

	if count < t.cfg.MaxConsecutiveErrors {
		t.notice = &Notice{
			Code:      "WEAK_SIGNAL",
			Message:   "GPS signal is weak. Retrying shortly.",
			Transient: true,
		}
		t.state = StateDegraded
		t.scheduleRetryLocked(t.cfg.ShortRetry)
		notice := *t.notice
		t.mu.Unlock()
		t.emit(notice)
		return
	}

	if utils.IsCode(err, utils.ErrCodePermissionDenied) {
		t.notice = &Notice{
			Code:      utils.ErrCodePermissionDenied,
			Message:   "Location permission was revoked. Re-enable location access to resume sharing.",
			Transient: false,
		}
		notice := *t.notice
		t.mu.Unlock()
		t.emit(notice)
		logrus.Warnf("Officer %s tracking force-stopped: permission denied", t.officerID)
		t.Stop()
		return
	}

	// Intent is still "sharing"; keep retrying at the longer delay.
	t.notice = &Notice{
		Code:      "RETRYING",
		Message:   "Unable to get a position fix. Still retrying.",
		Transient: true,
	}
	t.state = StateDegraded
	t.scheduleRetryLocked(t.cfg.LongRetry)
	notice := *t.notice
	t.mu.Unlock()
	t.emit(notice)
}

// scheduleRetryLocked replaces any pending retry. Caller holds t.mu.
func (t *Tracker) scheduleRetryLocked(delay time.Duration) {
	if t.retryTimer != nil {
		t.retryTimer.Stop()
	}
	t.retryTimer = time.AfterFunc(delay, t.retryWatch)
}

func (t *Tracker) retryWatch() {
	t.mu.Lock()
	if t.state != StateActive && t.state != StateDegraded {
		t.mu.Unlock()
		return
	}
	watching := t.watching
	handle := t.watch
	t.watching = false
	t.mu.Unlock()

	if watching {
		t.provider.Cancel(handle)
	}
	t.startWatch()
}

// schedulerTick re-pushes the last known position so observers keep a
// fresh timestamp between fixes.
func (t *Tracker) schedulerTick(now time.Time) {
	t.mu.Lock()
	active := t.state == StateActive || t.state == StateDegraded
	fix := t.lastFix
	t.mu.Unlock()

	if !active || fix == nil {
		return
	}
	t.writeLocationAt(*fix, now)
}

// currentSpeed estimates speed in m/s for bucket selection. Falls back
// to deriving speed from the last two fixes when the provider does not
// report it; -1 means unknown.
func (t *Tracker) currentSpeed() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lastFix == nil {
		return -1
	}
	if t.lastFix.Speed >= 0 {
		return t.lastFix.Speed
	}
	if t.prevFix != nil && t.lastFix.Timestamp.After(t.prevFix.Timestamp) {
		return utils.CalculateSpeed(
			t.prevFix.Latitude, t.prevFix.Longitude, t.prevFix.Timestamp.Unix(),
			t.lastFix.Latitude, t.lastFix.Longitude, t.lastFix.Timestamp.Unix(),
		)
	}
	return -1
}

// watchStaleness marks the session not-live when no fix arrived within
// StaleAfter, independently of the error counter.
func (t *Tracker) watchStaleness(stop chan struct{}) {
	ticker := time.NewTicker(t.cfg.StaleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.mu.Lock()
			if (t.state == StateActive || t.state == StateDegraded) &&
				!t.lastFixAt.IsZero() && time.Since(t.lastFixAt) > t.cfg.StaleAfter {
				t.live = false
			}
			t.mu.Unlock()
		}
	}
}

func (t *Tracker) writeLocation(fix position.Fix) {
	t.writeLocationAt(fix, time.Now())
}

func (t *Tracker) writeLocationAt(fix position.Fix, at time.Time) {
	coords := models.Coordinates{Latitude: fix.Latitude, Longitude: fix.Longitude}
	if err := t.presence.SetLocation(context.Background(), t.officerID, coords, at); err != nil {
		// Tracking continues on local state; the next write may succeed.
		logrus.Warnf("Officer %s position write failed: %v", t.officerID, err)
	}
}

func (t *Tracker) emit(notice Notice) {
	if t.onNotice != nil {
		t.onNotice(notice)
	}
}
