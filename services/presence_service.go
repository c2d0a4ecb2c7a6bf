package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"gppo/models"
	"gppo/store"
	"gppo/utils"
)

// PresenceService owns the officer presence records: registration,
// status, operator visibility overrides, and the dashboard read side.
// Position and lifecycle fields are written by the tracking service,
// never from here.
type PresenceService struct {
	presence    *store.PresenceStore
	broadcaster Broadcaster
	validator   *utils.ValidationService

	unsubscribe func()
}

func NewPresenceService(presence *store.PresenceStore, broadcaster Broadcaster) *PresenceService {
	ps := &PresenceService{
		presence:    presence,
		broadcaster: broadcaster,
		validator:   utils.NewValidationService(),
	}

	// Every store change, whichever writer produced it, fans out to the
	// dashboards as one presence:update.
	ps.unsubscribe = presence.SubscribeAll(ps.onPresenceChange)
	return ps
}

// Close detaches the store subscription.
func (ps *PresenceService) Close() {
	if ps.unsubscribe != nil {
		ps.unsubscribe()
	}
}

// =================== REGISTRATION & PROFILE ===================

func (ps *PresenceService) Register(ctx context.Context, req models.RegisterOfficerRequest) (*models.OfficerPresence, error) {
	if validationErrors := ps.validator.ValidateStruct(req); len(validationErrors) > 0 {
		return nil, utils.NewServiceError(utils.ErrCodeValidation, validationErrors[0].Message)
	}

	p := models.OfficerPresence{
		OfficerID:   req.OfficerID,
		Name:        req.Name,
		BadgeNumber: req.BadgeNumber,
		Phone:       req.Phone,
		DeviceToken: req.DeviceToken,
		Status:      models.OfficerStatusAvailable,
	}
	if err := ps.presence.Register(ctx, p); err != nil {
		return nil, err
	}

	logrus.Infof("Officer %s registered", req.OfficerID)
	return &p, nil
}

func (ps *PresenceService) SetStatus(ctx context.Context, officerID string, req models.UpdateStatusRequest) error {
	if validationErrors := ps.validator.ValidateStruct(req); len(validationErrors) > 0 {
		return utils.NewServiceError(utils.ErrCodeValidation, validationErrors[0].Message)
	}
	return ps.presence.SetStatus(ctx, officerID, req.Status)
}

// SetVisibilityOverride hides or reveals an officer on the dispatch
// side. Passing nil clears the override entirely.
func (ps *PresenceService) SetVisibilityOverride(ctx context.Context, officerID string, visible *bool) error {
	if err := ps.presence.SetVisibilityOverride(ctx, officerID, visible); err != nil {
		return err
	}
	if visible != nil && !*visible {
		logrus.Infof("Officer %s hidden from dispatch by operator override", officerID)
	}
	return nil
}

// =================== READ SIDE ===================

func (ps *PresenceService) GetPresence(ctx context.Context, officerID string) (*models.PresenceSnapshot, error) {
	p, err := ps.presence.Get(ctx, officerID)
	if err != nil {
		return nil, err
	}
	return &models.PresenceSnapshot{Presence: *p, Live: p.IsLive(time.Now())}, nil
}

// ListPresences returns every officer for the dashboard. Officers under
// a hiding override are filtered out unless includeHidden is set (the
// operator's own admin view).
func (ps *PresenceService) ListPresences(ctx context.Context, includeHidden bool) ([]models.PresenceSnapshot, error) {
	all, err := ps.presence.List(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	snapshots := make([]models.PresenceSnapshot, 0, len(all))
	for _, p := range all {
		if !includeHidden && p.HiddenFromDispatch() {
			continue
		}
		snapshots = append(snapshots, models.PresenceSnapshot{Presence: p, Live: p.IsLive(now)})
	}
	return snapshots, nil
}

func (ps *PresenceService) onPresenceChange(p models.OfficerPresence) {
	ps.broadcaster.BroadcastToAll(models.WSMessage{
		Type: models.WSTypePresenceUpdate,
		Data: models.WSPresenceUpdate{
			OfficerID: p.OfficerID,
			Presence:  p,
			Live:      p.IsLive(time.Now()),
			Timestamp: time.Now(),
		},
		OfficerID: p.OfficerID,
		Timestamp: time.Now(),
	})
}
