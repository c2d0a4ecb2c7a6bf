package tracking

import (
	"context"
	"testing"
	"time"

	"gppo/models"
	"gppo/store"
)

func newLifecycleFixture(t *testing.T, window time.Duration) (*LifecycleManager, *store.PresenceStore) {
	t.Helper()

	presence := store.NewPresenceStore(store.NewMemoryStore())
	ctx := context.Background()
	if err := presence.Register(ctx, models.OfficerPresence{OfficerID: "off-1", Name: "Dela Cruz"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := presence.StartSharing(ctx, "off-1"); err != nil {
		t.Fatalf("start sharing: %v", err)
	}
	coords := models.Coordinates{Latitude: 10.7, Longitude: 122.56}
	if err := presence.SetLocation(ctx, "off-1", coords, time.Now()); err != nil {
		t.Fatalf("set location: %v", err)
	}

	m := NewLifecycleManager("off-1", presence, window)
	t.Cleanup(m.Close)
	return m, presence
}

func TestForegroundReturnWithinWindowLeavesPresenceIntact(t *testing.T) {
	m, presence := newLifecycleFixture(t, time.Hour)
	ctx := context.Background()

	if err := m.AppBackgrounded(ctx); err != nil {
		t.Fatalf("background: %v", err)
	}
	p, _ := presence.Get(ctx, "off-1")
	if p.AppClosedAt == nil {
		t.Fatal("expected appClosedAt set while backgrounded")
	}

	if err := m.AppForegrounded(ctx); err != nil {
		t.Fatalf("foreground: %v", err)
	}

	p, _ = presence.Get(ctx, "off-1")
	if p.AppClosedAt != nil {
		t.Error("foreground return must clear appClosedAt")
	}
	if !p.Sharing || p.Coordinates == nil || p.LastUpdated == nil {
		t.Errorf("presence must be untouched after return, got %+v", p)
	}
	if p.GracePeriodExpired {
		t.Error("gracePeriodExpired must not be set on return")
	}
}

func TestGraceWindowExpiryClearsPresence(t *testing.T) {
	m, presence := newLifecycleFixture(t, 20*time.Millisecond)
	ctx := context.Background()

	if err := m.AppBackgrounded(ctx); err != nil {
		t.Fatalf("background: %v", err)
	}
	time.Sleep(60 * time.Millisecond)

	p, _ := presence.Get(ctx, "off-1")
	if p.Sharing {
		t.Error("expired grace period must mark sharing=false")
	}
	if p.Coordinates != nil || p.LastUpdated != nil {
		t.Error("expired grace period must clear position fields")
	}
	if p.AppClosedAt != nil {
		t.Error("expired grace period must clear appClosedAt")
	}
	if !p.GracePeriodExpired {
		t.Error("expected gracePeriodExpired marker")
	}
}

func TestBackgroundedSkipsWhenNotSharing(t *testing.T) {
	m, presence := newLifecycleFixture(t, 20*time.Millisecond)
	ctx := context.Background()

	if err := presence.StopSharing(ctx, "off-1"); err != nil {
		t.Fatalf("stop sharing: %v", err)
	}
	if err := m.AppBackgrounded(ctx); err != nil {
		t.Fatalf("background: %v", err)
	}

	p, _ := presence.Get(ctx, "off-1")
	if p.AppClosedAt != nil {
		t.Error("non-sharing officer must not enter a grace window")
	}
}

func TestForegroundAfterTimerFiredDoesNotResurrect(t *testing.T) {
	m, presence := newLifecycleFixture(t, 15*time.Millisecond)
	ctx := context.Background()

	if err := m.AppBackgrounded(ctx); err != nil {
		t.Fatalf("background: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	// Late foreground after expiry: nothing left to reverse.
	if err := m.AppForegrounded(ctx); err != nil {
		t.Fatalf("foreground: %v", err)
	}

	p, _ := presence.Get(ctx, "off-1")
	if p.Sharing {
		t.Error("late foreground must not restore sharing")
	}
	if !p.GracePeriodExpired {
		t.Error("expiry marker must survive a late foreground")
	}
}

func TestReconcileExpiresStaleWindow(t *testing.T) {
	m, presence := newLifecycleFixture(t, 50*time.Millisecond)
	ctx := context.Background()

	// Simulate a marker written before a process restart, older than
	// the window.
	if err := presence.SetAppClosedAt(ctx, "off-1", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("set appClosedAt: %v", err)
	}

	if err := m.Reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	p, _ := presence.Get(ctx, "off-1")
	if p.Sharing || !p.GracePeriodExpired {
		t.Errorf("stale marker must expire immediately, got %+v", p)
	}
}

func TestReconcileResumesYoungWindow(t *testing.T) {
	m, presence := newLifecycleFixture(t, 40*time.Millisecond)
	ctx := context.Background()

	if err := presence.SetAppClosedAt(ctx, "off-1", time.Now().Add(-10*time.Millisecond)); err != nil {
		t.Fatalf("set appClosedAt: %v", err)
	}

	if err := m.Reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	// Still inside the window right after reconcile.
	p, _ := presence.Get(ctx, "off-1")
	if !p.Sharing {
		t.Fatal("window must not expire before its remainder elapses")
	}

	// The resumed timer covers only the remainder, then expires.
	time.Sleep(80 * time.Millisecond)
	p, _ = presence.Get(ctx, "off-1")
	if p.Sharing || !p.GracePeriodExpired {
		t.Errorf("resumed window must expire, got %+v", p)
	}
}

func TestReconcileWithoutMarkerIsNoop(t *testing.T) {
	m, presence := newLifecycleFixture(t, 20*time.Millisecond)
	ctx := context.Background()

	if err := m.Reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	p, _ := presence.Get(ctx, "off-1")
	if !p.Sharing {
		t.Error("reconcile without a marker must not start a window")
	}
}
