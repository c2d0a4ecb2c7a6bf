package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gppo/models"
	"gppo/utils"
)

// IncidentAction is an officer's response to a notified incident.
type IncidentAction string

const (
	ActionAcknowledge IncidentAction = "acknowledge"
	ActionRespond     IncidentAction = "respond"
	ActionComplete    IncidentAction = "complete"
)

// transitionRule names the statuses an action may start from and the
// status it lands on. Status only ever moves forward.
type transitionRule struct {
	from []string
	to   string
}

var transitionRules = map[IncidentAction]transitionRule{
	ActionAcknowledge: {from: []string{models.IncidentStatusPending}, to: models.IncidentStatusAcknowledged},
	ActionRespond:     {from: []string{models.IncidentStatusPending, models.IncidentStatusAcknowledged}, to: models.IncidentStatusResponding},
	ActionComplete:    {from: []string{models.IncidentStatusResponding}, to: models.IncidentStatusCompleted},
}

// ApplyTransition moves an incident through its response sequence in
// place. An out-of-order action fails with an InvalidTransition error
// and leaves the record untouched.
func ApplyTransition(incident *models.EmergencyIncident, action IncidentAction, now time.Time) error {
	rule, ok := transitionRules[action]
	if !ok {
		return utils.NewInvalidTransitionError(incident.Status, string(action))
	}

	allowed := false
	for _, from := range rule.from {
		if incident.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return utils.NewInvalidTransitionError(incident.Status, rule.to)
	}

	incident.Status = rule.to
	incident.UpdatedAt = now
	switch rule.to {
	case models.IncidentStatusAcknowledged:
		incident.AcknowledgedAt = &now
	case models.IncidentStatusResponding:
		incident.RespondingAt = &now
	case models.IncidentStatusCompleted:
		incident.CompletedAt = &now
	}
	return nil
}

// stampField returns the timestamp field written alongside a status.
func stampField(status string) string {
	switch status {
	case models.IncidentStatusAcknowledged:
		return "acknowledgedAt"
	case models.IncidentStatusResponding:
		return "respondingAt"
	case models.IncidentStatusCompleted:
		return "completedAt"
	}
	return ""
}

// IncidentRepository persists emergency incidents in MongoDB.
type IncidentRepository struct {
	collection *mongo.Collection
}

func NewIncidentRepository(db *mongo.Database) *IncidentRepository {
	return &IncidentRepository{collection: db.Collection("emergency_incidents")}
}

// Create inserts the batch of per-officer incident records produced by
// one emergency trigger.
func (r *IncidentRepository) Create(ctx context.Context, incidents []models.EmergencyIncident) error {
	if len(incidents) == 0 {
		return nil
	}
	docs := make([]interface{}, len(incidents))
	for i := range incidents {
		docs[i] = incidents[i]
	}
	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("inserting incidents: %w", err)
	}
	return nil
}

func (r *IncidentRepository) Get(ctx context.Context, id primitive.ObjectID) (*models.EmergencyIncident, error) {
	var incident models.EmergencyIncident
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&incident)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewNotFoundError("Incident")
	}
	if err != nil {
		return nil, fmt.Errorf("finding incident: %w", err)
	}
	return &incident, nil
}

// ListByEvent returns every notified officer's record for one emergency
// event, nearest first.
func (r *IncidentRepository) ListByEvent(ctx context.Context, eventID string) ([]models.EmergencyIncident, error) {
	opts := options.Find().SetSort(bson.D{{Key: "distanceMeters", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"eventId": eventID}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing incidents by event: %w", err)
	}
	defer cursor.Close(ctx)

	var incidents []models.EmergencyIncident
	if err := cursor.All(ctx, &incidents); err != nil {
		return nil, fmt.Errorf("decoding incidents: %w", err)
	}
	return incidents, nil
}

// ListForOfficer returns incidents addressed to one officer, newest
// first. With activeOnly, completed incidents are filtered out.
func (r *IncidentRepository) ListForOfficer(ctx context.Context, officerID string, activeOnly bool) ([]models.EmergencyIncident, error) {
	filter := bson.M{"notifiedOfficerId": officerID}
	if activeOnly {
		filter["status"] = bson.M{"$ne": models.IncidentStatusCompleted}
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("listing incidents for officer: %w", err)
	}
	defer cursor.Close(ctx)

	var incidents []models.EmergencyIncident
	if err := cursor.All(ctx, &incidents); err != nil {
		return nil, fmt.Errorf("decoding incidents: %w", err)
	}
	return incidents, nil
}

// Transition applies an action atomically: the status precondition is
// part of the update filter, so a concurrent or out-of-order call can
// never overwrite a further-along record.
func (r *IncidentRepository) Transition(ctx context.Context, id primitive.ObjectID, action IncidentAction) (*models.EmergencyIncident, error) {
	rule, ok := transitionRules[action]
	if !ok {
		return nil, utils.NewInvalidTransitionError("unknown", string(action))
	}

	now := time.Now()
	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": rule.from},
	}
	set := bson.M{
		"status":    rule.to,
		"updatedAt": now,
	}
	if field := stampField(rule.to); field != "" {
		set[field] = now
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.EmergencyIncident
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		// Distinguish a missing record from a status that does not
		// admit this action.
		current, getErr := r.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, utils.NewInvalidTransitionError(current.Status, rule.to)
	}
	if err != nil {
		return nil, fmt.Errorf("updating incident: %w", err)
	}
	return &updated, nil
}
