package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gppo/dispatch"
	"gppo/models"
	"gppo/store"
	"gppo/utils"
)

// IncidentStore is the persistence surface the emergency service needs.
// dispatch.IncidentRepository implements it over MongoDB.
type IncidentStore interface {
	Create(ctx context.Context, incidents []models.EmergencyIncident) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.EmergencyIncident, error)
	ListByEvent(ctx context.Context, eventID string) ([]models.EmergencyIncident, error)
	ListForOfficer(ctx context.Context, officerID string, activeOnly bool) ([]models.EmergencyIncident, error)
	Transition(ctx context.Context, id primitive.ObjectID, action dispatch.IncidentAction) (*models.EmergencyIncident, error)
}

// DefaultNotifyCount is how many nearby officers one emergency notifies
// when the deployment does not configure its own count.
const DefaultNotifyCount = 3

// EmergencyService turns an officer's emergency trigger into per-officer
// incident records, device notifications and dashboard broadcasts, and
// moves those records through their response sequence.
type EmergencyService struct {
	presence      *store.PresenceStore
	incidents     IncidentStore
	estimator     *dispatch.Estimator
	notifications *utils.NotificationService
	broadcaster   Broadcaster
	notifyCount   int
}

func NewEmergencyService(
	presence *store.PresenceStore,
	incidents IncidentStore,
	estimator *dispatch.Estimator,
	notifications *utils.NotificationService,
	broadcaster Broadcaster,
	notifyCount int,
) *EmergencyService {
	if notifyCount <= 0 {
		notifyCount = DefaultNotifyCount
	}
	return &EmergencyService{
		presence:      presence,
		incidents:     incidents,
		estimator:     estimator,
		notifications: notifications,
		broadcaster:   broadcaster,
		notifyCount:   notifyCount,
	}
}

// =================== TRIGGER ===================

// Trigger flags the officer as in emergency, selects the nearest
// eligible officers and creates one pending incident record for each.
// Route estimation failures degrade to distance-only data; an incident
// is never dropped because routing failed.
func (es *EmergencyService) Trigger(ctx context.Context, officerID string, req models.TriggerEmergencyRequest) (*models.IncidentListResponse, error) {
	p, err := es.presence.Get(ctx, officerID)
	if err != nil {
		return nil, err
	}

	origin, err := es.resolveOrigin(p, req.Location)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := es.presence.SetEmergency(ctx, officerID, now); err != nil {
		return nil, err
	}

	candidates, err := es.presence.List(ctx)
	if err != nil {
		return nil, err
	}
	ranked := dispatch.SelectNearestN(*origin, officerID, candidates, es.notifyCount)
	if len(ranked) == 0 {
		logrus.Warnf("Officer %s emergency at (%f,%f): no eligible officer to notify", officerID, origin.Latitude, origin.Longitude)
	}

	eventID := uuid.New().String()
	incidents := make([]models.EmergencyIncident, 0, len(ranked))
	for i, r := range ranked {
		incident := models.EmergencyIncident{
			ID:                   primitive.NewObjectID(),
			EventID:              eventID,
			EmergencyOfficerID:   officerID,
			EmergencyOfficerName: p.Name,
			EmergencyOrigin:      *origin,
			NotifiedOfficerID:    r.Presence.OfficerID,
			IsClosest:            i == 0,
			DistanceMeters:       r.DistanceMeters,
			Status:               models.IncidentStatusPending,
			CreatedAt:            now,
			UpdatedAt:            now,
		}

		est, err := es.estimator.EstimateRoute(ctx, *r.Presence.Coordinates, *origin)
		if err != nil {
			incident.EstimatedMinutes = dispatch.EtaMinutes(r.DistanceMeters, dispatch.DefaultResponseSpeedKmh)
			logrus.Warnf("Route estimate for officer %s failed, keeping distance-only incident: %v", r.Presence.OfficerID, err)
		} else {
			incident.EstimatedMinutes = est.EtaMinutes
		}

		incidents = append(incidents, incident)
	}

	if err := es.incidents.Create(ctx, incidents); err != nil {
		return nil, utils.NewServiceErrorWithCause(utils.ErrCodeStoreWriteFailed, "failed to record emergency incidents", err)
	}

	logrus.Infof("Officer %s emergency %s: %d officers notified", officerID, eventID, len(incidents))

	go es.fanOut(eventID, p.Name, officerID, *origin, ranked, incidents)

	return &models.IncidentListResponse{Incidents: incidents, Total: len(incidents)}, nil
}

// Resolve clears the officer's emergency flag once the situation is
// over. Open incident records for the event stay independent.
func (es *EmergencyService) Resolve(ctx context.Context, officerID string) error {
	if err := es.presence.ClearEmergency(ctx, officerID); err != nil {
		return err
	}
	logrus.Infof("Officer %s emergency resolved", officerID)
	return nil
}

func (es *EmergencyService) resolveOrigin(p *models.OfficerPresence, reported *models.Coordinates) (*models.Coordinates, error) {
	if reported != nil {
		if !utils.IsValidCoordinate(reported.Latitude, reported.Longitude) {
			return nil, utils.NewInvalidLocationError("reported emergency location is out of range")
		}
		return reported, nil
	}
	if p.Coordinates != nil && utils.IsValidCoordinate(p.Coordinates.Latitude, p.Coordinates.Longitude) {
		return p.Coordinates, nil
	}
	return nil, utils.NewInvalidLocationError("officer has no known position to anchor the emergency")
}

// =================== RESPONSE SEQUENCE ===================

func (es *EmergencyService) Acknowledge(ctx context.Context, officerID, incidentID string) (*models.EmergencyIncident, error) {
	return es.transition(ctx, officerID, incidentID, dispatch.ActionAcknowledge)
}

func (es *EmergencyService) Respond(ctx context.Context, officerID, incidentID string) (*models.EmergencyIncident, error) {
	return es.transition(ctx, officerID, incidentID, dispatch.ActionRespond)
}

func (es *EmergencyService) Complete(ctx context.Context, officerID, incidentID string) (*models.EmergencyIncident, error) {
	updated, err := es.transition(ctx, officerID, incidentID, dispatch.ActionComplete)
	if err != nil {
		return nil, err
	}

	// Records for the same emergency stay independent, but open siblings
	// are worth surfacing to operators.
	if siblings, lerr := es.incidents.ListByEvent(ctx, updated.EventID); lerr == nil {
		open := 0
		for _, sib := range siblings {
			if sib.ID != updated.ID && sib.Status != models.IncidentStatusCompleted {
				open++
			}
		}
		if open > 0 {
			logrus.Debugf("Incident %s completed with %d sibling record(s) still open for event %s", incidentID, open, updated.EventID)
		}
	}

	return updated, nil
}

func (es *EmergencyService) transition(ctx context.Context, officerID, incidentID string, action dispatch.IncidentAction) (*models.EmergencyIncident, error) {
	id, err := primitive.ObjectIDFromHex(incidentID)
	if err != nil {
		return nil, utils.NewNotFoundError("Incident")
	}

	// Only the addressed officer may move their record.
	current, err := es.incidents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.NotifiedOfficerID != officerID {
		return nil, utils.NewForbiddenError("incident is addressed to another officer")
	}

	updated, err := es.incidents.Transition(ctx, id, action)
	if err != nil {
		return nil, err
	}

	es.broadcaster.BroadcastToAll(models.WSMessage{
		Type:      models.WSTypeIncidentUpdated,
		Data:      models.WSIncidentUpdate{Incident: *updated, Timestamp: time.Now()},
		OfficerID: officerID,
		Timestamp: time.Now(),
	})

	logrus.Infof("Incident %s %s by officer %s", incidentID, updated.Status, officerID)
	return updated, nil
}

// =================== READ SIDE ===================

func (es *EmergencyService) ListForOfficer(ctx context.Context, officerID string, activeOnly bool) (*models.IncidentListResponse, error) {
	incidents, err := es.incidents.ListForOfficer(ctx, officerID, activeOnly)
	if err != nil {
		return nil, err
	}
	return &models.IncidentListResponse{Incidents: incidents, Total: len(incidents)}, nil
}

func (es *EmergencyService) ListByEvent(ctx context.Context, eventID string) (*models.IncidentListResponse, error) {
	incidents, err := es.incidents.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return &models.IncidentListResponse{Incidents: incidents, Total: len(incidents)}, nil
}

// =================== NOTIFICATION FAN-OUT ===================

// fanOut delivers the emergency to the notified officers' devices and
// pushes the alert to dashboards. Runs detached so a slow provider
// never delays the trigger path.
func (es *EmergencyService) fanOut(eventID, officerName, officerID string, origin models.Coordinates, ranked []dispatch.Ranked, incidents []models.EmergencyIncident) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	es.broadcaster.BroadcastToAll(models.WSMessage{
		Type: models.WSTypeEmergencyAlert,
		Data: models.WSEmergencyAlert{
			EventID:              eventID,
			EmergencyOfficerID:   officerID,
			EmergencyOfficerName: officerName,
			Origin:               origin,
			Timestamp:            time.Now(),
		},
		OfficerID: officerID,
		Timestamp: time.Now(),
	})

	for i, r := range ranked {
		incident := incidents[i]

		es.broadcaster.BroadcastToOfficer(r.Presence.OfficerID, models.WSMessage{
			Type:      models.WSTypeIncidentCreated,
			Data:      models.WSIncidentUpdate{Incident: incident, Timestamp: time.Now()},
			OfficerID: r.Presence.OfficerID,
			Timestamp: time.Now(),
		})

		if es.notifications == nil {
			continue
		}

		body := fmt.Sprintf("%s needs assistance %.0fm from you (about %d min away).",
			officerName, incident.DistanceMeters, incident.EstimatedMinutes)

		if r.Presence.DeviceToken != "" {
			result, err := es.notifications.SendPushNotification(ctx, r.Presence.DeviceToken, utils.PushNotification{
				Title: "EMERGENCY: Officer needs backup",
				Body:  body,
				Sound: "emergency_alarm",
				Data: map[string]string{
					"type":       "emergency",
					"eventId":    eventID,
					"incidentId": incident.ID.Hex(),
				},
			})
			if err == nil && result.Success {
				continue
			}
			logrus.Warnf("Push to officer %s failed, trying SMS: %v", r.Presence.OfficerID, err)
		}

		if r.Presence.Phone != "" {
			if _, err := es.notifications.SendSMS(ctx, utils.SMSMessage{
				To:      r.Presence.Phone,
				Message: "EMERGENCY: " + body,
			}); err != nil {
				logrus.Errorf("SMS to officer %s failed: %v", r.Presence.OfficerID, err)
			}
		}
	}
}
