package position

import (
	"context"
	"sync"
	"time"

	"gppo/utils"
)

// feedProvider implements Provider on top of a Feed. The foreground
// variant drops fixes while the UI is hidden; the background variant
// delivers regardless.
type feedProvider struct {
	feed *Feed
	gate *PermissionGate

	// foreground only: deliver watch fixes only while visible
	foregroundOnly bool

	mu         sync.Mutex
	visible    bool
	nextHandle WatchHandle
	watches    map[WatchHandle]func() // detach funcs
}

type ForegroundProvider struct{ feedProvider }

type BackgroundProvider struct{ feedProvider }

func NewForegroundProvider(feed *Feed, gate *PermissionGate) *ForegroundProvider {
	return &ForegroundProvider{feedProvider{
		feed:           feed,
		gate:           gate,
		foregroundOnly: true,
		visible:        true,
		watches:        make(map[WatchHandle]func()),
	}}
}

func NewBackgroundProvider(feed *Feed, gate *PermissionGate) *BackgroundProvider {
	return &BackgroundProvider{feedProvider{
		feed:    feed,
		gate:    gate,
		visible: true,
		watches: make(map[WatchHandle]func()),
	}}
}

// SetVisible tells the foreground provider whether the UI is visible.
// While hidden it suppresses watch delivery, matching browser-style
// geolocation behavior.
func (p *ForegroundProvider) SetVisible(visible bool) {
	p.mu.Lock()
	p.visible = visible
	p.mu.Unlock()
}

func (p *feedProvider) deliverable() bool {
	if !p.foregroundOnly {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

func (p *feedProvider) GetOnce(ctx context.Context, opts Options) (*Fix, error) {
	if err := p.gate.Ensure(); err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}

	// A cached fix fresh enough for the caller avoids waiting at all.
	if opts.MaximumAge > 0 {
		if last, at := p.feed.Last(); last != nil && time.Since(at) <= opts.MaximumAge {
			return last, nil
		}
	}

	fix, err := p.waitForFix(ctx, timeout, opts.HighAccuracy)
	if err == nil {
		return fix, nil
	}
	if ctx.Err() != nil {
		return nil, errTimeout()
	}
	if !utils.IsCode(err, utils.ErrCodePositionTimeout) {
		return nil, err
	}

	// Retry once at low accuracy before giving up.
	if opts.HighAccuracy {
		if fix, err = p.waitForFix(ctx, timeout, false); err == nil {
			return fix, nil
		}
	}
	return nil, errTimeout()
}

func (p *feedProvider) waitForFix(ctx context.Context, timeout time.Duration, highAccuracy bool) (*Fix, error) {
	result := make(chan Fix, 1)
	errs := make(chan error, 1)

	detach := p.feed.attach(func(fix Fix) {
		if highAccuracy && fix.Accuracy > highAccuracyThreshold {
			return
		}
		select {
		case result <- fix:
		default:
		}
	}, func(err error) {
		select {
		case errs <- err:
		default:
		}
	})
	defer detach()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case fix := <-result:
		return &fix, nil
	case err := <-errs:
		return nil, err
	case <-timer.C:
		return nil, errTimeout()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *feedProvider) Watch(onFix func(Fix), onErr func(error), opts Options) (WatchHandle, error) {
	if err := p.gate.Ensure(); err != nil {
		return 0, err
	}

	detach := p.feed.attach(func(fix Fix) {
		if !p.deliverable() {
			return
		}
		onFix(fix)
	}, func(err error) {
		if onErr != nil {
			onErr(err)
		}
	})

	p.mu.Lock()
	p.nextHandle++
	handle := p.nextHandle
	p.watches[handle] = detach
	p.mu.Unlock()

	return handle, nil
}

func (p *feedProvider) Cancel(handle WatchHandle) {
	p.mu.Lock()
	detach, ok := p.watches[handle]
	if ok {
		delete(p.watches, handle)
	}
	p.mu.Unlock()

	if ok {
		detach()
	}
}
