package services

import "gppo/models"

// Broadcaster pushes server events to connected clients. The websocket
// hub implements it; services depend only on this interface so the hub
// can sit above them.
type Broadcaster interface {
	// BroadcastToAll delivers to every connected client (dashboards).
	BroadcastToAll(message models.WSMessage)

	// BroadcastToOfficer delivers to one officer's connections only.
	BroadcastToOfficer(officerID string, message models.WSMessage)
}

// NoopBroadcaster drops every message. Used in tests and in tools that
// run services without a websocket layer.
type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastToAll(models.WSMessage)              {}
func (NoopBroadcaster) BroadcastToOfficer(string, models.WSMessage)  {}
