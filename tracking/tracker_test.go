package tracking

import (
	"context"
	"sync"
	"testing"
	"time"

	"gppo/models"
	"gppo/position"
	"gppo/store"
	"gppo/utils"
)

// countingStore wraps a Store and counts Update calls so tests can
// assert that repeated Stop performs no further writes.
type countingStore struct {
	store.Store
	mu      sync.Mutex
	updates int
}

func (cs *countingStore) Update(ctx context.Context, key string, fields store.Fields) error {
	cs.mu.Lock()
	cs.updates++
	cs.mu.Unlock()
	return cs.Store.Update(ctx, key, fields)
}

func (cs *countingStore) updateCount() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.updates
}

func testConfig() TrackerConfig {
	return TrackerConfig{
		AcquireTimeout:       200 * time.Millisecond,
		ShortRetry:           50 * time.Millisecond,
		LongRetry:            50 * time.Millisecond,
		MaxConsecutiveErrors: 3,
		StaleAfter:           60 * time.Millisecond,
		StaleCheckInterval:   15 * time.Millisecond,
		Intervals:            BucketIntervals{Fast: time.Hour, Moderate: time.Hour, Idle: time.Hour},
	}
}

func newTestTracker(t *testing.T, cfg TrackerConfig) (*Tracker, *position.Feed, *store.PresenceStore, *countingStore) {
	t.Helper()

	cs := &countingStore{Store: store.NewMemoryStore()}
	presence := store.NewPresenceStore(cs)
	if err := presence.Register(context.Background(), models.OfficerPresence{OfficerID: "off-1", Name: "Dela Cruz"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	feed := position.NewFeed()
	provider := position.NewBackgroundProvider(feed, position.NewPermissionGate(nil))
	tracker := NewTracker("off-1", provider, presence, cfg, nil)
	return tracker, feed, presence, cs
}

func startTracking(t *testing.T, tracker *Tracker, feed *position.Feed) {
	t.Helper()

	go func() {
		time.Sleep(10 * time.Millisecond)
		feed.Publish(position.Fix{Latitude: 10.625, Longitude: 122.584, Accuracy: 5, Speed: 0})
	}()
	if err := tracker.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func TestStartWritesPresenceAndIsIdempotent(t *testing.T) {
	tracker, feed, presence, _ := newTestTracker(t, testConfig())
	defer tracker.Stop()

	startTracking(t, tracker, feed)

	if tracker.State() != StateActive {
		t.Fatalf("expected active state, got %v", tracker.State())
	}

	p, err := presence.Get(context.Background(), "off-1")
	if err != nil {
		t.Fatalf("get presence: %v", err)
	}
	if !p.Sharing {
		t.Error("expected sharing=true")
	}
	if p.Coordinates == nil || p.Coordinates.Latitude != 10.625 {
		t.Errorf("expected coordinates written, got %+v", p.Coordinates)
	}
	if p.LastUpdated == nil {
		t.Error("expected lastUpdated written")
	}

	// A second Start while Active is a no-op.
	if err := tracker.Start(context.Background()); err != nil {
		t.Errorf("concurrent Start should be a no-op, got %v", err)
	}
	if tracker.State() != StateActive {
		t.Error("state changed on concurrent Start")
	}
}

func TestStartFailsWithoutFix(t *testing.T) {
	tracker, _, presence, _ := newTestTracker(t, testConfig())

	err := tracker.Start(context.Background())
	if !utils.IsCode(err, utils.ErrCodePositionTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if tracker.State() != StateIdle {
		t.Errorf("expected idle after failed acquire, got %v", tracker.State())
	}

	p, _ := presence.Get(context.Background(), "off-1")
	if p.Sharing {
		t.Error("failed acquire must not mark sharing")
	}
}

func TestStopClearsPresenceAndIsIdempotent(t *testing.T) {
	tracker, feed, presence, cs := newTestTracker(t, testConfig())

	startTracking(t, tracker, feed)
	tracker.Stop()

	p, _ := presence.Get(context.Background(), "off-1")
	if p.Sharing || p.Coordinates != nil || p.LastUpdated != nil {
		t.Errorf("expected cleared presence, got %+v", p)
	}

	writes := cs.updateCount()
	tracker.Stop()
	tracker.Stop()
	if cs.updateCount() != writes {
		t.Error("repeated Stop must perform no further writes")
	}

	// Fixes arriving after Stop must not write stale data.
	feed.Publish(position.Fix{Latitude: 99, Longitude: 99})
	time.Sleep(20 * time.Millisecond)
	p, _ = presence.Get(context.Background(), "off-1")
	if p.Coordinates != nil {
		t.Error("late fix wrote after Stop")
	}
}

func TestConsecutiveUnavailableKeepsTracking(t *testing.T) {
	tracker, feed, presence, _ := newTestTracker(t, testConfig())
	defer tracker.Stop()

	var mu sync.Mutex
	var notices []Notice
	tracker.onNotice = func(n Notice) {
		mu.Lock()
		notices = append(notices, n)
		mu.Unlock()
	}

	startTracking(t, tracker, feed)

	unavailable := utils.NewServiceError(utils.ErrCodePositionUnavailable, "no fix")
	for i := 0; i < 3; i++ {
		feed.Fail(unavailable)
		time.Sleep(5 * time.Millisecond)
	}

	if tracker.State() != StateDegraded {
		t.Errorf("expected degraded, got %v", tracker.State())
	}
	if tracker.Live() {
		t.Error("expected not-live after errors")
	}

	notice := tracker.Notice()
	if notice == nil || notice.Code != "RETRYING" {
		t.Errorf("expected RETRYING notice, got %+v", notice)
	}

	// Intent is still sharing; presence must not be cleared.
	p, _ := presence.Get(context.Background(), "off-1")
	if !p.Sharing {
		t.Error("three unavailable errors must not stop sharing")
	}

	mu.Lock()
	if len(notices) != 3 {
		t.Errorf("expected 3 surfaced notices, got %d", len(notices))
	}
	weak := notices[0]
	mu.Unlock()
	if weak.Code != "WEAK_SIGNAL" || !weak.Transient {
		t.Errorf("expected transient weak-signal notice first, got %+v", weak)
	}

	// Recovery: a fix clears the notice and restores Active.
	feed.Publish(position.Fix{Latitude: 10.63, Longitude: 122.59, Accuracy: 5})
	time.Sleep(5 * time.Millisecond)
	if tracker.State() != StateActive || !tracker.Live() {
		t.Error("fix should restore active/live")
	}
	if tracker.Notice() != nil {
		t.Error("fix should clear the surfaced notice")
	}
}

func TestPermissionDeniedOnThirdErrorForcesStop(t *testing.T) {
	tracker, feed, presence, _ := newTestTracker(t, testConfig())

	startTracking(t, tracker, feed)

	unavailable := utils.NewServiceError(utils.ErrCodePositionUnavailable, "no fix")
	feed.Fail(unavailable)
	feed.Fail(unavailable)
	feed.Fail(utils.NewServiceError(utils.ErrCodePermissionDenied, "revoked"))
	time.Sleep(20 * time.Millisecond)

	if tracker.State() != StateIdle {
		t.Errorf("expected idle after permission denial, got %v", tracker.State())
	}

	p, _ := presence.Get(context.Background(), "off-1")
	if p.Sharing {
		t.Error("permission denial must force sharing=false")
	}
	if p.Coordinates != nil {
		t.Error("permission denial must clear coordinates")
	}
}

func TestStalenessMarksNotLive(t *testing.T) {
	tracker, feed, _, _ := newTestTracker(t, testConfig())
	defer tracker.Stop()

	startTracking(t, tracker, feed)

	if !tracker.Live() {
		t.Fatal("expected live right after start")
	}

	// No fixes arrive; staleness detection flips live independently of
	// the error counter.
	time.Sleep(120 * time.Millisecond)
	if tracker.Live() {
		t.Error("expected not-live after staleness window")
	}
	if tracker.State() == StateIdle {
		t.Error("staleness must not stop tracking")
	}
}
