package store

import (
	"context"
	"encoding/json"
	"time"

	"gppo/models"
	"gppo/utils"

	"github.com/sirupsen/logrus"
)

// Presence record field names. Field ownership: the tracking session
// owns coordinates, lastUpdated and sharing; the lifecycle manager owns
// appClosedAt and gracePeriodExpired; operators own visibilityOverride
// and status; the profile side owns the identity fields. Writers merge
// only their own fields.
const (
	fieldOfficerID          = "officerId"
	fieldName               = "name"
	fieldBadgeNumber        = "badgeNumber"
	fieldPhone              = "phone"
	fieldDeviceToken        = "deviceToken"
	fieldStatus             = "status"
	fieldCoordinates        = "coordinates"
	fieldLastUpdated        = "lastUpdated"
	fieldSharing            = "sharing"
	fieldEmergency          = "emergency"
	fieldAppClosedAt        = "appClosedAt"
	fieldGracePeriodExpired = "gracePeriodExpired"
	fieldVisibilityOverride = "visibilityOverride"
)

// PresenceStore maps typed officer presence onto the generic store.
type PresenceStore struct {
	store Store
}

func NewPresenceStore(s Store) *PresenceStore {
	return &PresenceStore{store: s}
}

// Get returns the presence record for one officer.
func (ps *PresenceStore) Get(ctx context.Context, officerID string) (*models.OfficerPresence, error) {
	fields, err := ps.store.Read(ctx, officerID)
	if err != nil {
		return nil, utils.NewServiceErrorWithCause(utils.ErrCodeStoreWriteFailed, "presence read failed", err)
	}
	if fields == nil {
		return nil, utils.NewNotFoundError("officer presence")
	}
	return decodePresence(officerID, fields), nil
}

// List returns every presence record.
func (ps *PresenceStore) List(ctx context.Context) ([]models.OfficerPresence, error) {
	keys, err := ps.store.Keys(ctx)
	if err != nil {
		return nil, utils.NewServiceErrorWithCause(utils.ErrCodeStoreWriteFailed, "presence list failed", err)
	}

	presences := make([]models.OfficerPresence, 0, len(keys))
	for _, key := range keys {
		fields, err := ps.store.Read(ctx, key)
		if err != nil {
			logrus.Warnf("Failed to read presence %s: %v", key, err)
			continue
		}
		if fields == nil {
			continue
		}
		presences = append(presences, *decodePresence(key, fields))
	}
	return presences, nil
}

// Register writes the profile-owned fields. Tracking and lifecycle
// fields are left untouched, so re-registering never drops a live
// position.
func (ps *PresenceStore) Register(ctx context.Context, p models.OfficerPresence) error {
	fields := Fields{
		fieldOfficerID:   encode(p.OfficerID),
		fieldName:        encode(p.Name),
		fieldBadgeNumber: encode(p.BadgeNumber),
		fieldPhone:       encode(p.Phone),
		fieldDeviceToken: encode(p.DeviceToken),
	}
	if p.Status != "" {
		fields[fieldStatus] = encode(p.Status)
	}
	return ps.update(ctx, p.OfficerID, fields)
}

// SetLocation writes a position snapshot with its timestamp.
func (ps *PresenceStore) SetLocation(ctx context.Context, officerID string, coords models.Coordinates, at time.Time) error {
	return ps.update(ctx, officerID, Fields{
		fieldCoordinates: encode(coords),
		fieldLastUpdated: encode(at),
	})
}

// StartSharing marks the officer as sharing and clears any previous
// grace-period expiry marker.
func (ps *PresenceStore) StartSharing(ctx context.Context, officerID string) error {
	return ps.update(ctx, officerID, Fields{
		fieldSharing:            encode(true),
		fieldGracePeriodExpired: nil,
	})
}

// StopSharing clears the position and marks sharing off in a single
// merge, so the record is never left with sharing=false and stale
// coordinates.
func (ps *PresenceStore) StopSharing(ctx context.Context, officerID string) error {
	return ps.update(ctx, officerID, Fields{
		fieldSharing:     encode(false),
		fieldCoordinates: nil,
		fieldLastUpdated: nil,
	})
}

// SetAppClosedAt starts the grace window.
func (ps *PresenceStore) SetAppClosedAt(ctx context.Context, officerID string, at time.Time) error {
	return ps.update(ctx, officerID, Fields{
		fieldAppClosedAt: encode(at),
	})
}

// ClearAppClosedAt reverses a grace window after the app returned to
// the foreground. No other field changes.
func (ps *PresenceStore) ClearAppClosedAt(ctx context.Context, officerID string) error {
	return ps.update(ctx, officerID, Fields{
		fieldAppClosedAt: nil,
	})
}

// ExpireGracePeriod performs the one-shot clearing after the grace
// window elapsed without the app returning.
func (ps *PresenceStore) ExpireGracePeriod(ctx context.Context, officerID string) error {
	return ps.update(ctx, officerID, Fields{
		fieldCoordinates:        nil,
		fieldLastUpdated:        nil,
		fieldSharing:            encode(false),
		fieldAppClosedAt:        nil,
		fieldGracePeriodExpired: encode(true),
	})
}

// SetEmergency flags the officer as in an emergency.
func (ps *PresenceStore) SetEmergency(ctx context.Context, officerID string, triggeredAt time.Time) error {
	return ps.update(ctx, officerID, Fields{
		fieldEmergency: encode(models.EmergencyState{TriggeredAt: triggeredAt}),
		fieldStatus:    encode(models.OfficerStatusEmergency),
	})
}

// ClearEmergency removes the emergency flag, triggeredAt included, and
// restores normal status.
func (ps *PresenceStore) ClearEmergency(ctx context.Context, officerID string) error {
	return ps.update(ctx, officerID, Fields{
		fieldEmergency: nil,
		fieldStatus:    encode(models.OfficerStatusAvailable),
	})
}

// SetStatus sets the officer's availability status.
func (ps *PresenceStore) SetStatus(ctx context.Context, officerID, status string) error {
	return ps.update(ctx, officerID, Fields{
		fieldStatus: encode(status),
	})
}

// SetVisibilityOverride sets or clears (visible == nil) the operator
// override.
func (ps *PresenceStore) SetVisibilityOverride(ctx context.Context, officerID string, visible *bool) error {
	if visible == nil {
		return ps.update(ctx, officerID, Fields{fieldVisibilityOverride: nil})
	}
	return ps.update(ctx, officerID, Fields{fieldVisibilityOverride: encode(*visible)})
}

// Subscribe delivers the decoded presence after every change to one
// officer's record.
func (ps *PresenceStore) Subscribe(officerID string, onChange func(models.OfficerPresence)) func() {
	return ps.store.Subscribe(officerID, func(key string, fields Fields) {
		if fields == nil {
			return
		}
		onChange(*decodePresence(key, fields))
	})
}

// SubscribeAll delivers every presence change.
func (ps *PresenceStore) SubscribeAll(onChange func(models.OfficerPresence)) func() {
	return ps.store.SubscribeAll(func(key string, fields Fields) {
		if fields == nil {
			return
		}
		onChange(*decodePresence(key, fields))
	})
}

func (ps *PresenceStore) update(ctx context.Context, officerID string, fields Fields) error {
	if err := ps.store.Update(ctx, officerID, fields); err != nil {
		return utils.NewServiceErrorWithCause(utils.ErrCodeStoreWriteFailed, "presence write failed", err)
	}
	return nil
}

func encode(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		logrus.Errorf("Failed to encode presence field: %v", err)
		return []byte("null")
	}
	return data
}

func decodePresence(officerID string, fields Fields) *models.OfficerPresence {
	p := &models.OfficerPresence{OfficerID: officerID}

	decode(fields, fieldName, &p.Name)
	decode(fields, fieldBadgeNumber, &p.BadgeNumber)
	decode(fields, fieldPhone, &p.Phone)
	decode(fields, fieldDeviceToken, &p.DeviceToken)
	decode(fields, fieldStatus, &p.Status)
	decode(fields, fieldCoordinates, &p.Coordinates)
	decode(fields, fieldLastUpdated, &p.LastUpdated)
	decode(fields, fieldSharing, &p.Sharing)
	decode(fields, fieldEmergency, &p.Emergency)
	decode(fields, fieldAppClosedAt, &p.AppClosedAt)
	decode(fields, fieldGracePeriodExpired, &p.GracePeriodExpired)
	decode(fields, fieldVisibilityOverride, &p.VisibilityOverride)

	return p
}

func decode(fields Fields, name string, out interface{}) {
	data, ok := fields[name]
	if !ok || len(data) == 0 {
		return
	}
	if err := json.Unmarshal(data, out); err != nil {
		logrus.Warnf("Failed to decode presence field %s: %v", name, err)
	}
}
