package services

import (
	"context"
	"testing"
	"time"

	"gppo/models"
	"gppo/store"
	"gppo/tracking"
	"gppo/utils"
)

func newTrackingFixture(t *testing.T) (*TrackingService, *store.PresenceStore) {
	t.Helper()
	presence := store.NewPresenceStore(store.NewMemoryStore())
	if err := presence.Register(context.Background(), models.OfficerPresence{OfficerID: "off-1", Name: "Dela Cruz"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	cfg := TrackingServiceConfig{
		BackgroundCapable: true,
		GraceWindow:       time.Hour,
		Tracker: tracking.TrackerConfig{
			AcquireTimeout:       200 * time.Millisecond,
			ShortRetry:           50 * time.Millisecond,
			LongRetry:            50 * time.Millisecond,
			MaxConsecutiveErrors: 3,
			StaleAfter:           time.Hour,
			StaleCheckInterval:   time.Hour,
			Intervals:            tracking.BucketIntervals{Fast: time.Hour, Moderate: time.Hour, Idle: time.Hour},
		},
	}
	ts := NewTrackingService(presence, NoopBroadcaster{}, cfg)
	t.Cleanup(ts.Close)
	return ts, presence
}

func TestStartTrackingConsumesIngestedFixes(t *testing.T) {
	ts, presence := newTrackingFixture(t)
	ctx := context.Background()

	go func() {
		time.Sleep(10 * time.Millisecond)
		ts.IngestFix("off-1", models.WSPositionFix{
			Latitude:  10.625,
			Longitude: 122.584,
			Accuracy:  8,
			Timestamp: time.Now(),
		})
	}()

	if err := ts.StartTracking(ctx, "off-1"); err != nil {
		t.Fatalf("StartTracking: %v", err)
	}

	p, err := presence.Get(ctx, "off-1")
	if err != nil {
		t.Fatalf("get presence: %v", err)
	}
	if !p.Sharing || p.Coordinates == nil {
		t.Errorf("expected sharing presence with coordinates, got %+v", p)
	}

	ts.StopTracking("off-1")
	p, _ = presence.Get(ctx, "off-1")
	if p.Sharing || p.Coordinates != nil {
		t.Errorf("expected cleared presence after stop, got %+v", p)
	}
	// Stopping again with no session left is a no-op.
	ts.StopTracking("off-1")
}

func TestStartTrackingUnknownOfficer(t *testing.T) {
	ts, _ := newTrackingFixture(t)

	err := ts.StartTracking(context.Background(), "nobody")
	if !utils.IsCode(err, utils.ErrCodeNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestIngestFixRejectsInvalidCoordinates(t *testing.T) {
	ts, _ := newTrackingFixture(t)

	err := ts.IngestFix("off-1", models.WSPositionFix{Latitude: 95, Longitude: 200})
	if !utils.IsCode(err, utils.ErrCodeInvalidLocation) {
		t.Fatalf("expected InvalidLocation, got %v", err)
	}
}

func TestIngestedPermissionDenialFailsStartFast(t *testing.T) {
	ts, _ := newTrackingFixture(t)
	ctx := context.Background()

	ts.IngestError("off-1", models.WSPositionError{Code: utils.ErrCodePermissionDenied, Message: "revoked on device"})

	start := time.Now()
	err := ts.StartTracking(ctx, "off-1")
	if !utils.IsCode(err, utils.ErrCodePermissionDenied) {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("denied permission must fail before the acquire timeout")
	}

	// The device granting permission again unblocks tracking.
	ts.PermissionGranted("off-1")
	go func() {
		time.Sleep(10 * time.Millisecond)
		ts.IngestFix("off-1", models.WSPositionFix{Latitude: 10.625, Longitude: 122.584, Timestamp: time.Now()})
	}()
	if err := ts.StartTracking(ctx, "off-1"); err != nil {
		t.Fatalf("StartTracking after grant: %v", err)
	}
}

func TestReconcileResumesGraceWindows(t *testing.T) {
	ts, presence := newTrackingFixture(t)
	ctx := context.Background()

	if err := presence.StartSharing(ctx, "off-1"); err != nil {
		t.Fatalf("share: %v", err)
	}
	// Marker older than the window, as left behind by a crashed process.
	if err := presence.SetAppClosedAt(ctx, "off-1", time.Now().Add(-2*time.Hour)); err != nil {
		t.Fatalf("set marker: %v", err)
	}

	if err := ts.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	p, _ := presence.Get(ctx, "off-1")
	if p.Sharing || !p.GracePeriodExpired {
		t.Errorf("stale grace window must expire on reconcile, got %+v", p)
	}
}
