package position

import (
	"sync"
	"time"
)

// Feed is the source both provider variants draw from. In the server it
// is filled by the websocket ingest path with fixes reported by the
// officer's device; tests publish into it directly.
type Feed struct {
	mu       sync.Mutex
	nextID   int64
	watchers map[int64]feedWatcher
	last     *Fix
	lastAt   time.Time
}

type feedWatcher struct {
	onFix func(Fix)
	onErr func(error)
}

func NewFeed() *Feed {
	return &Feed{watchers: make(map[int64]feedWatcher)}
}

// Publish delivers a fix to every watcher, in registration order is not
// guaranteed but each watcher sees fixes in publish order.
func (f *Feed) Publish(fix Fix) {
	if fix.Timestamp.IsZero() {
		fix.Timestamp = time.Now()
	}

	f.mu.Lock()
	f.last = &fix
	f.lastAt = time.Now()
	targets := make([]func(Fix), 0, len(f.watchers))
	for _, w := range f.watchers {
		if w.onFix != nil {
			targets = append(targets, w.onFix)
		}
	}
	f.mu.Unlock()

	for _, fn := range targets {
		fn(fix)
	}
}

// Fail delivers a provider error to every watcher.
func (f *Feed) Fail(err error) {
	f.mu.Lock()
	targets := make([]func(error), 0, len(f.watchers))
	for _, w := range f.watchers {
		if w.onErr != nil {
			targets = append(targets, w.onErr)
		}
	}
	f.mu.Unlock()

	for _, fn := range targets {
		fn(err)
	}
}

// Last returns the most recent fix and when it was published.
func (f *Feed) Last() (*Fix, time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		return nil, time.Time{}
	}
	cp := *f.last
	return &cp, f.lastAt
}

func (f *Feed) attach(onFix func(Fix), onErr func(error)) func() {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.watchers[id] = feedWatcher{onFix: onFix, onErr: onErr}
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.watchers, id)
			f.mu.Unlock()
		})
	}
}
