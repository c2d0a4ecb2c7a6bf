// models/websocket.go
package models

import (
	"time"
)

// WebSocket Message Types
type WSMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	OfficerID string      `json:"officerId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"requestId,omitempty"`
}

// Inbound message types (officer clients)
const (
	WSTypeTrackingStart = "tracking:start"
	WSTypeTrackingStop  = "tracking:stop"
	WSTypePositionFix   = "position:fix"
	WSTypePositionError = "position:error"
	WSTypeAppBackground = "app:background"
	WSTypeAppForeground = "app:foreground"
	WSTypePing          = "ping"
)

// Outbound message types (dashboard and officer clients)
const (
	WSTypePresenceUpdate  = "presence:update"
	WSTypeTrackingNotice  = "tracking:notice"
	WSTypeIncidentCreated = "incident:created"
	WSTypeIncidentUpdated = "incident:updated"
	WSTypeEmergencyAlert  = "emergency:alert"
	WSTypeError           = "error"
	WSTypePong            = "pong"
)

// WSPositionFix is the payload of a position:fix message from an
// officer client. Speed is in m/s; a negative value means unknown.
type WSPositionFix struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Speed     float64   `json:"speed,omitempty"`
	Heading   float64   `json:"heading,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WSPositionError reports a provider failure from an officer client.
type WSPositionError struct {
	Code    string `json:"code"` // PERMISSION_DENIED, POSITION_UNAVAILABLE, POSITION_TIMEOUT
	Message string `json:"message,omitempty"`
}

type WSPresenceUpdate struct {
	OfficerID string          `json:"officerId"`
	Presence  OfficerPresence `json:"presence"`
	Live      bool            `json:"live"`
	Timestamp time.Time       `json:"timestamp"`
}

// WSTrackingNotice surfaces tracker state to the owning officer client:
// transient weak-signal notices, retrying notices, and the permanent
// permission-denied error.
type WSTrackingNotice struct {
	OfficerID string    `json:"officerId"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Transient bool      `json:"transient"`
	Timestamp time.Time `json:"timestamp"`
}

type WSEmergencyAlert struct {
	EventID              string      `json:"eventId"`
	EmergencyOfficerID   string      `json:"emergencyOfficerId"`
	EmergencyOfficerName string      `json:"emergencyOfficerName"`
	Origin               Coordinates `json:"origin"`
	Timestamp            time.Time   `json:"timestamp"`
}

type WSIncidentUpdate struct {
	Incident  EmergencyIncident `json:"incident"`
	Timestamp time.Time         `json:"timestamp"`
}
