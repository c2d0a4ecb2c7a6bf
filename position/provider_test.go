package position

import (
	"context"
	"sync"
	"testing"
	"time"

	"gppo/utils"
)

func TestGetOnceReturnsPublishedFix(t *testing.T) {
	feed := NewFeed()
	p := NewForegroundProvider(feed, NewPermissionGate(nil))

	go func() {
		time.Sleep(20 * time.Millisecond)
		feed.Publish(Fix{Latitude: 10.625, Longitude: 122.584, Accuracy: 10})
	}()

	fix, err := p.GetOnce(context.Background(), Options{HighAccuracy: true, Timeout: time.Second})
	if err != nil {
		t.Fatalf("GetOnce: %v", err)
	}
	if fix.Latitude != 10.625 {
		t.Errorf("unexpected fix %+v", fix)
	}
}

func TestGetOnceTimesOut(t *testing.T) {
	feed := NewFeed()
	p := NewForegroundProvider(feed, NewPermissionGate(nil))

	_, err := p.GetOnce(context.Background(), Options{Timeout: 30 * time.Millisecond})
	if !utils.IsCode(err, utils.ErrCodePositionTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestGetOnceRetriesAtLowAccuracy(t *testing.T) {
	feed := NewFeed()
	p := NewForegroundProvider(feed, NewPermissionGate(nil))

	// Only a coarse fix is available; the high-accuracy pass must time
	// out and the low-accuracy retry must accept it.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				feed.Publish(Fix{Latitude: 1, Longitude: 2, Accuracy: 500})
			}
		}
	}()

	fix, err := p.GetOnce(context.Background(), Options{HighAccuracy: true, Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("expected low-accuracy retry to succeed, got %v", err)
	}
	if fix.Accuracy != 500 {
		t.Errorf("unexpected fix %+v", fix)
	}
}

func TestPermissionDeniedBlocksOperations(t *testing.T) {
	feed := NewFeed()
	gate := NewPermissionGate(func() bool { return false })
	p := NewBackgroundProvider(feed, gate)

	if _, err := p.GetOnce(context.Background(), Options{Timeout: 10 * time.Millisecond}); !utils.IsCode(err, utils.ErrCodePermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if _, err := p.Watch(func(Fix) {}, nil, Options{}); !utils.IsCode(err, utils.ErrCodePermissionDenied) {
		t.Fatalf("expected watch to fail, got %v", err)
	}

	// External grant unblocks without re-prompting.
	gate.SetState(PermissionGranted)
	if _, err := p.Watch(func(Fix) {}, nil, Options{}); err != nil {
		t.Fatalf("expected watch to succeed after grant, got %v", err)
	}
}

func TestWatchDeliversInOrderAndCancelIsIdempotent(t *testing.T) {
	feed := NewFeed()
	p := NewBackgroundProvider(feed, NewPermissionGate(nil))

	var mu sync.Mutex
	var lats []float64
	handle, err := p.Watch(func(fix Fix) {
		mu.Lock()
		lats = append(lats, fix.Latitude)
		mu.Unlock()
	}, nil, Options{})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	feed.Publish(Fix{Latitude: 1})
	feed.Publish(Fix{Latitude: 2})
	feed.Publish(Fix{Latitude: 3})

	mu.Lock()
	if len(lats) != 3 || lats[0] != 1 || lats[1] != 2 || lats[2] != 3 {
		t.Errorf("fixes out of order: %v", lats)
	}
	mu.Unlock()

	p.Cancel(handle)
	p.Cancel(handle)         // already cancelled
	p.Cancel(WatchHandle(99)) // unknown

	feed.Publish(Fix{Latitude: 4})
	mu.Lock()
	defer mu.Unlock()
	if len(lats) != 3 {
		t.Error("cancelled watch must not receive fixes")
	}
}

func TestForegroundProviderSuppressesFixesWhileHidden(t *testing.T) {
	feed := NewFeed()
	p := NewForegroundProvider(feed, NewPermissionGate(nil))

	var mu sync.Mutex
	count := 0
	p.Watch(func(Fix) {
		mu.Lock()
		count++
		mu.Unlock()
	}, nil, Options{})

	feed.Publish(Fix{Latitude: 1})
	p.SetVisible(false)
	feed.Publish(Fix{Latitude: 2})
	p.SetVisible(true)
	feed.Publish(Fix{Latitude: 3})

	mu.Lock()
	defer mu.Unlock()
	if count != 2 {
		t.Errorf("expected 2 delivered fixes, got %d", count)
	}
}

func TestNewProviderPicksVariant(t *testing.T) {
	feed := NewFeed()
	gate := NewPermissionGate(nil)

	if _, ok := NewProvider(feed, gate, Capabilities{BackgroundCapable: true}).(*BackgroundProvider); !ok {
		t.Error("expected background provider")
	}
	if _, ok := NewProvider(feed, gate, Capabilities{}).(*ForegroundProvider); !ok {
		t.Error("expected foreground fallback")
	}
}

func TestWatchErrorDelivery(t *testing.T) {
	feed := NewFeed()
	p := NewBackgroundProvider(feed, NewPermissionGate(nil))

	var mu sync.Mutex
	var got error
	p.Watch(func(Fix) {}, func(err error) {
		mu.Lock()
		got = err
		mu.Unlock()
	}, Options{})

	feed.Fail(errUnavailable("no satellites"))

	mu.Lock()
	defer mu.Unlock()
	if !utils.IsCode(got, utils.ErrCodePositionUnavailable) {
		t.Errorf("expected unavailable error, got %v", got)
	}
}
