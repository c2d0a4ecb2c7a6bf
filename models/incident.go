package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Incident status constants. Transitions only move forward through this
// sequence; anything else is rejected.
const (
	IncidentStatusPending      = "pending"
	IncidentStatusAcknowledged = "acknowledged"
	IncidentStatusResponding   = "responding"
	IncidentStatusCompleted    = "completed"
)

// incidentStatusRank orders the statuses for monotonicity checks.
var incidentStatusRank = map[string]int{
	IncidentStatusPending:      0,
	IncidentStatusAcknowledged: 1,
	IncidentStatusResponding:   2,
	IncidentStatusCompleted:    3,
}

// IncidentStatusRank returns the position of a status in the forward
// sequence, or -1 for an unknown status.
func IncidentStatusRank(status string) int {
	if rank, ok := incidentStatusRank[status]; ok {
		return rank
	}
	return -1
}

// EmergencyIncident is one emergency event as addressed to one notified
// officer. An event that notifies three officers produces three
// independent records sharing the same EventID. The snapshot fields
// (origin, names, distance, ETA) are set at creation and never change;
// only the addressed officer's actions move Status.
type EmergencyIncident struct {
	ID      primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	EventID string             `json:"eventId" bson:"eventId"`

	EmergencyOfficerID   string      `json:"emergencyOfficerId" bson:"emergencyOfficerId"`
	EmergencyOfficerName string      `json:"emergencyOfficerName" bson:"emergencyOfficerName"`
	EmergencyOrigin      Coordinates `json:"emergencyOrigin" bson:"emergencyOrigin"`

	NotifiedOfficerID string  `json:"notifiedOfficerId" bson:"notifiedOfficerId"`
	IsClosest         bool    `json:"isClosest" bson:"isClosest"`
	DistanceMeters    float64 `json:"distanceMeters" bson:"distanceMeters"`
	EstimatedMinutes  int     `json:"estimatedMinutes" bson:"estimatedMinutes"`

	Status         string     `json:"status" bson:"status"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty" bson:"acknowledgedAt,omitempty"`
	RespondingAt   *time.Time `json:"respondingAt,omitempty" bson:"respondingAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty" bson:"completedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// ==================== REQUEST MODELS ====================

type TriggerEmergencyRequest struct {
	Location *Coordinates `json:"location,omitempty"`
}

type IncidentListResponse struct {
	Incidents []EmergencyIncident `json:"incidents"`
	Total     int                 `json:"total"`
}
