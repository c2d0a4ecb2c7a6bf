package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"gppo/models"
)

func TestStopSharingClearsLocation(t *testing.T) {
	ctx := context.Background()
	ps := NewPresenceStore(NewMemoryStore())

	if err := ps.Register(ctx, models.OfficerPresence{OfficerID: "off-1", Name: "Dela Cruz"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := ps.StartSharing(ctx, "off-1"); err != nil {
		t.Fatalf("start sharing: %v", err)
	}
	if err := ps.SetLocation(ctx, "off-1", models.Coordinates{Latitude: 10.625, Longitude: 122.584}, time.Now()); err != nil {
		t.Fatalf("set location: %v", err)
	}

	if err := ps.StopSharing(ctx, "off-1"); err != nil {
		t.Fatalf("stop sharing: %v", err)
	}

	p, err := ps.Get(ctx, "off-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Sharing {
		t.Error("expected sharing=false")
	}
	if p.Coordinates != nil {
		t.Error("expected coordinates cleared")
	}
	if p.LastUpdated != nil {
		t.Error("expected lastUpdated cleared")
	}
	if p.Name != "Dela Cruz" {
		t.Error("stop sharing must not touch profile fields")
	}
}

// The tracker and the lifecycle manager write to the same record from
// different goroutines. Merged updates must preserve the fields each
// writer does not own.
func TestConcurrentWritersPreserveFields(t *testing.T) {
	ctx := context.Background()
	ps := NewPresenceStore(NewMemoryStore())

	if err := ps.Register(ctx, models.OfficerPresence{OfficerID: "off-1", Name: "Dela Cruz", Phone: "+63917"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			ps.SetLocation(ctx, "off-1", models.Coordinates{Latitude: 10.6, Longitude: 122.5}, time.Now())
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			ps.SetAppClosedAt(ctx, "off-1", time.Now())
			ps.ClearAppClosedAt(ctx, "off-1")
		}
	}()
	wg.Wait()

	// One final write per owner so the end state is deterministic.
	ps.SetAppClosedAt(ctx, "off-1", time.Now())

	p, err := ps.Get(ctx, "off-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Coordinates == nil || p.LastUpdated == nil {
		t.Error("lifecycle writes must not wipe tracker-owned fields")
	}
	if p.AppClosedAt == nil {
		t.Error("tracker writes must not wipe lifecycle-owned fields")
	}
	if p.Name != "Dela Cruz" || p.Phone != "+63917" {
		t.Error("neither writer may touch profile fields")
	}
}

func TestExpireGracePeriod(t *testing.T) {
	ctx := context.Background()
	ps := NewPresenceStore(NewMemoryStore())

	ps.Register(ctx, models.OfficerPresence{OfficerID: "off-1", Name: "Dela Cruz"})
	ps.StartSharing(ctx, "off-1")
	ps.SetLocation(ctx, "off-1", models.Coordinates{Latitude: 10.6, Longitude: 122.5}, time.Now())
	ps.SetAppClosedAt(ctx, "off-1", time.Now())

	if err := ps.ExpireGracePeriod(ctx, "off-1"); err != nil {
		t.Fatalf("expire: %v", err)
	}

	p, _ := ps.Get(ctx, "off-1")
	if p.Coordinates != nil || p.LastUpdated != nil || p.Sharing || p.AppClosedAt != nil {
		t.Errorf("expected cleared presence, got %+v", p)
	}
	if !p.GracePeriodExpired {
		t.Error("expected gracePeriodExpired marker")
	}

	// Next start clears the marker.
	ps.StartSharing(ctx, "off-1")
	p, _ = ps.Get(ctx, "off-1")
	if p.GracePeriodExpired {
		t.Error("StartSharing should clear gracePeriodExpired")
	}
}

func TestSubscribeDeliversChanges(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()
	ps := NewPresenceStore(ms)

	var mu sync.Mutex
	var got []models.OfficerPresence
	unsubscribe := ps.Subscribe("off-1", func(p models.OfficerPresence) {
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	})

	ps.StartSharing(ctx, "off-1")
	ps.SetLocation(ctx, "off-1", models.Coordinates{Latitude: 1, Longitude: 2}, time.Now())

	mu.Lock()
	n := len(got)
	last := got[n-1]
	mu.Unlock()

	if n != 2 {
		t.Fatalf("expected 2 change events, got %d", n)
	}
	if last.Coordinates == nil || last.Coordinates.Latitude != 1 {
		t.Errorf("unexpected last event: %+v", last)
	}

	unsubscribe()
	unsubscribe() // idempotent
	ps.StopSharing(ctx, "off-1")

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Error("unsubscribed callback must not fire")
	}
}

func TestVisibilityOverride(t *testing.T) {
	ctx := context.Background()
	ps := NewPresenceStore(NewMemoryStore())
	ps.Register(ctx, models.OfficerPresence{OfficerID: "off-1"})

	hidden := false
	ps.SetVisibilityOverride(ctx, "off-1", &hidden)
	p, _ := ps.Get(ctx, "off-1")
	if !p.HiddenFromDispatch() {
		t.Error("override=false should hide the officer")
	}

	ps.SetVisibilityOverride(ctx, "off-1", nil)
	p, _ = ps.Get(ctx, "off-1")
	if p.HiddenFromDispatch() {
		t.Error("cleared override should unhide the officer")
	}
}
