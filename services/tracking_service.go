package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"gppo/models"
	"gppo/position"
	"gppo/store"
	"gppo/tracking"
	"gppo/utils"
)

// TrackingServiceConfig carries the tunables for officer tracking
// sessions. Zero values fall back to the defaults used in production.
type TrackingServiceConfig struct {
	BackgroundCapable bool
	GraceWindow       time.Duration
	Tracker           tracking.TrackerConfig
}

// trackingSession is the per-officer machinery: the fix feed the
// websocket layer publishes into, the provider in front of it, the
// tracker state machine and the grace-period manager.
type trackingSession struct {
	feed      *position.Feed
	gate      *position.PermissionGate
	provider  position.Provider
	tracker   *tracking.Tracker
	lifecycle *tracking.LifecycleManager
}

// TrackingService manages one tracking session per officer. Client
// devices stream fixes and errors in over the websocket; the session
// turns them into presence writes.
type TrackingService struct {
	presence    *store.PresenceStore
	broadcaster Broadcaster
	cfg         TrackingServiceConfig

	mu       sync.Mutex
	sessions map[string]*trackingSession
}

func NewTrackingService(presence *store.PresenceStore, broadcaster Broadcaster, cfg TrackingServiceConfig) *TrackingService {
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = tracking.DefaultGraceWindow
	}
	if cfg.Tracker.AcquireTimeout <= 0 {
		cfg.Tracker = tracking.DefaultTrackerConfig()
	}
	return &TrackingService{
		presence:    presence,
		broadcaster: broadcaster,
		cfg:         cfg,
		sessions:    make(map[string]*trackingSession),
	}
}

// session returns the officer's session, creating it on first use.
// Creation wires the feed, provider variant, tracker and lifecycle
// manager but starts nothing.
func (ts *TrackingService) session(officerID string) *trackingSession {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if s, ok := ts.sessions[officerID]; ok {
		return s
	}

	feed := position.NewFeed()
	gate := position.NewPermissionGate(nil)
	provider := position.NewProvider(feed, gate, position.Capabilities{
		BackgroundCapable: ts.cfg.BackgroundCapable,
	})

	s := &trackingSession{
		feed:     feed,
		gate:     gate,
		provider: provider,
		lifecycle: tracking.NewLifecycleManager(officerID, ts.presence, ts.cfg.GraceWindow),
	}
	s.tracker = tracking.NewTracker(officerID, provider, ts.presence, ts.cfg.Tracker, func(n tracking.Notice) {
		ts.onNotice(officerID, n)
	})

	ts.sessions[officerID] = s
	return s
}

// =================== SESSION CONTROL ===================

// StartTracking begins location sharing for an officer. It blocks until
// the first fix arrives or acquisition times out, so callers should not
// hold a message loop while waiting.
func (ts *TrackingService) StartTracking(ctx context.Context, officerID string) error {
	if _, err := ts.presence.Get(ctx, officerID); err != nil {
		return err
	}
	s := ts.session(officerID)
	if err := s.tracker.Start(ctx); err != nil {
		logrus.Warnf("Officer %s tracking start failed: %v", officerID, err)
		return err
	}
	logrus.Infof("Officer %s tracking started", officerID)
	return nil
}

// StopTracking ends the officer's sharing session. Safe to call with no
// session running.
func (ts *TrackingService) StopTracking(officerID string) {
	ts.mu.Lock()
	s, ok := ts.sessions[officerID]
	ts.mu.Unlock()
	if !ok {
		return
	}
	s.tracker.Stop()
	logrus.Infof("Officer %s tracking stopped", officerID)
}

// =================== CLIENT INPUT ===================

// IngestFix feeds one device position sample into the session.
func (ts *TrackingService) IngestFix(officerID string, payload models.WSPositionFix) error {
	if !utils.IsValidCoordinate(payload.Latitude, payload.Longitude) {
		return utils.NewInvalidLocationError("fix outside valid coordinate range")
	}

	ts.session(officerID).feed.Publish(position.Fix{
		Latitude:  payload.Latitude,
		Longitude: payload.Longitude,
		Accuracy:  payload.Accuracy,
		Speed:     payload.Speed,
		Heading:   payload.Heading,
		Timestamp: payload.Timestamp,
	})
	return nil
}

// IngestError feeds a device-side provider failure into the session. A
// permission denial also flips the session's permission gate so later
// acquisition attempts fail fast.
func (ts *TrackingService) IngestError(officerID string, payload models.WSPositionError) {
	s := ts.session(officerID)
	if payload.Code == utils.ErrCodePermissionDenied {
		s.gate.SetState(position.PermissionDenied)
	}
	s.feed.Fail(utils.NewServiceError(payload.Code, payload.Message))
}

// PermissionGranted reopens the gate after the officer re-enabled
// location access on the device.
func (ts *TrackingService) PermissionGranted(officerID string) {
	ts.session(officerID).gate.SetState(position.PermissionGranted)
}

// SetVisible mirrors the client UI visibility for foreground-only
// sessions; a background-capable session ignores it.
func (ts *TrackingService) SetVisible(officerID string, visible bool) {
	s := ts.session(officerID)
	if fg, ok := s.provider.(*position.ForegroundProvider); ok {
		fg.SetVisible(visible)
	}
}

// =================== APP LIFECYCLE ===================

func (ts *TrackingService) AppBackgrounded(ctx context.Context, officerID string) error {
	return ts.session(officerID).lifecycle.AppBackgrounded(ctx)
}

func (ts *TrackingService) AppForegrounded(ctx context.Context, officerID string) error {
	return ts.session(officerID).lifecycle.AppForegrounded(ctx)
}

// Reconcile resumes or expires grace windows left over from before a
// process restart. Called once at startup.
func (ts *TrackingService) Reconcile(ctx context.Context) error {
	all, err := ts.presence.List(ctx)
	if err != nil {
		return err
	}
	for _, p := range all {
		if p.AppClosedAt == nil {
			continue
		}
		if err := ts.session(p.OfficerID).lifecycle.Reconcile(ctx); err != nil {
			logrus.Warnf("Officer %s grace-window reconcile failed: %v", p.OfficerID, err)
		}
	}
	return nil
}

// Close stops every session on shutdown so no presence record is left
// claiming a live stream nobody is feeding.
func (ts *TrackingService) Close() {
	ts.mu.Lock()
	sessions := ts.sessions
	ts.sessions = make(map[string]*trackingSession)
	ts.mu.Unlock()

	for _, s := range sessions {
		s.tracker.Stop()
		s.lifecycle.Close()
	}
}

func (ts *TrackingService) onNotice(officerID string, n tracking.Notice) {
	ts.broadcaster.BroadcastToOfficer(officerID, models.WSMessage{
		Type: models.WSTypeTrackingNotice,
		Data: models.WSTrackingNotice{
			OfficerID: officerID,
			Code:      n.Code,
			Message:   n.Message,
			Transient: n.Transient,
			Timestamp: time.Now(),
		},
		OfficerID: officerID,
		Timestamp: time.Now(),
	})
}
