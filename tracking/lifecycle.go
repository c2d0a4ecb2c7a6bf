package tracking

import (
	"context"
	"sync"
	"time"

	"gppo/store"

	"github.com/sirupsen/logrus"
)

// DefaultGraceWindow is how long a backgrounded or closed app keeps its
// presence before being treated as no longer sharing.
const DefaultGraceWindow = 5 * time.Minute

// LifecycleManager defers marking an officer offline when the app is
// briefly backgrounded. It owns the appClosedAt and gracePeriodExpired
// presence fields and never touches the fields the tracker owns; both
// sides write through field-merging updates.
type LifecycleManager struct {
	officerID string
	presence  *store.PresenceStore
	window    time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
}

func NewLifecycleManager(officerID string, presence *store.PresenceStore, window time.Duration) *LifecycleManager {
	if window <= 0 {
		window = DefaultGraceWindow
	}
	return &LifecycleManager{
		officerID: officerID,
		presence:  presence,
		window:    window,
	}
}

// AppBackgrounded starts (or restarts) the grace window. Does nothing
// when the officer is not sharing.
func (m *LifecycleManager) AppBackgrounded(ctx context.Context) error {
	p, err := m.presence.Get(ctx, m.officerID)
	if err != nil {
		return err
	}
	if !p.Sharing {
		return nil
	}

	if err := m.presence.SetAppClosedAt(ctx, m.officerID, time.Now()); err != nil {
		return err
	}

	m.startTimer(m.window)
	logrus.Debugf("Officer %s backgrounded, grace window started", m.officerID)
	return nil
}

// AppForegrounded reverses a pending grace window. Presence is left
// exactly as it was.
func (m *LifecycleManager) AppForegrounded(ctx context.Context) error {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.pending = false
	m.mu.Unlock()

	p, err := m.presence.Get(ctx, m.officerID)
	if err != nil {
		return err
	}
	if p.AppClosedAt == nil {
		return nil
	}

	logrus.Debugf("Officer %s foregrounded, grace window cancelled", m.officerID)
	return m.presence.ClearAppClosedAt(ctx, m.officerID)
}

// Reconcile handles process restart: an appClosedAt older than the
// window is expired immediately, a younger one resumes a timer for the
// remaining duration.
func (m *LifecycleManager) Reconcile(ctx context.Context) error {
	p, err := m.presence.Get(ctx, m.officerID)
	if err != nil {
		return err
	}
	if p.AppClosedAt == nil {
		return nil
	}

	elapsed := time.Since(*p.AppClosedAt)
	if elapsed >= m.window {
		return m.expireNow(ctx)
	}

	m.startTimer(m.window - elapsed)
	logrus.Debugf("Officer %s grace window resumed with %s remaining", m.officerID, m.window-elapsed)
	return nil
}

// Close cancels any pending timer without touching presence.
func (m *LifecycleManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.pending = false
}

func (m *LifecycleManager) startTimer(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
	}
	m.pending = true
	m.timer = time.AfterFunc(d, m.expire)
}

func (m *LifecycleManager) expire() {
	m.mu.Lock()
	if !m.pending {
		m.mu.Unlock()
		return
	}
	m.pending = false
	m.timer = nil
	m.mu.Unlock()

	if err := m.expireNow(context.Background()); err != nil {
		logrus.Warnf("Officer %s grace-period expiry failed: %v", m.officerID, err)
	}
}

func (m *LifecycleManager) expireNow(ctx context.Context) error {
	// A foreground return may have cleared appClosedAt after the timer
	// was already past Stop; expiry only fires while it is still set.
	p, err := m.presence.Get(ctx, m.officerID)
	if err != nil {
		return err
	}
	if p.AppClosedAt == nil {
		return nil
	}

	logrus.Infof("Officer %s grace period expired, clearing presence", m.officerID)
	return m.presence.ExpireGracePeriod(ctx, m.officerID)
}
