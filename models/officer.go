package models

import (
	"time"
)

// Officer status constants
const (
	OfficerStatusAvailable   = "available"
	OfficerStatusUnavailable = "unavailable"
	OfficerStatusEmergency   = "emergency"
)

// FreshnessWindow is how recent a position write must be for the officer
// to be rendered as live on the dashboard.
const FreshnessWindow = 5 * time.Minute

type Coordinates struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
}

// EmergencyState flags an officer as currently in an emergency. Its
// presence overrides normal status semantics; clearing the emergency
// removes the whole object, TriggeredAt included.
type EmergencyState struct {
	TriggeredAt time.Time `json:"triggeredAt"`
}

// OfficerPresence is the per-officer record in the presence store. The
// tracking session and the lifecycle manager both write to it, each
// touching only the fields it owns, so every write has to be a
// field-level merge rather than a full replace.
type OfficerPresence struct {
	OfficerID string `json:"officerId"`

	// Profile snapshot, written at registration and owned by the
	// profile/admin side.
	Name        string `json:"name,omitempty"`
	BadgeNumber string `json:"badgeNumber,omitempty"`
	Phone       string `json:"phone,omitempty"`
	DeviceToken string `json:"deviceToken,omitempty"`
	Status      string `json:"status,omitempty"`

	// Tracking state, owned by the tracking session.
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	LastUpdated *time.Time   `json:"lastUpdated,omitempty"`
	Sharing     bool         `json:"sharing"`

	Emergency *EmergencyState `json:"emergency,omitempty"`

	// Lifecycle state, owned by the grace-period manager.
	AppClosedAt        *time.Time `json:"appClosedAt,omitempty"`
	GracePeriodExpired bool       `json:"gracePeriodExpired,omitempty"`

	// Operator override: nil means no override, false hides the
	// officer from the dashboard and from dispatch.
	VisibilityOverride *bool `json:"visibilityOverride,omitempty"`
}

// IsLive reports whether the presence data is fresh enough to render as
// current.
func (p *OfficerPresence) IsLive(now time.Time) bool {
	if p.LastUpdated == nil || p.Coordinates == nil {
		return false
	}
	return now.Sub(*p.LastUpdated) < FreshnessWindow
}

// HiddenFromDispatch reports whether an operator has hidden this
// officer. Hidden officers never receive emergency assignments.
func (p *OfficerPresence) HiddenFromDispatch() bool {
	return p.VisibilityOverride != nil && !*p.VisibilityOverride
}

// InEmergency reports whether the officer has an active emergency flag.
func (p *OfficerPresence) InEmergency() bool {
	return p.Emergency != nil
}

// ==================== REQUEST MODELS ====================

type RegisterOfficerRequest struct {
	OfficerID   string `json:"officerId" validate:"required"`
	Name        string `json:"name" validate:"required"`
	BadgeNumber string `json:"badgeNumber,omitempty"`
	Phone       string `json:"phone,omitempty"`
	DeviceToken string `json:"deviceToken,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=available unavailable"`
}

type VisibilityOverrideRequest struct {
	Visible *bool `json:"visible"` // nil clears the override
}

type PresenceSnapshot struct {
	Presence OfficerPresence `json:"presence"`
	Live     bool            `json:"live"`
}
