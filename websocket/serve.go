package websocket

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"gppo/services"
)

// ServeWS upgrades an authenticated HTTP request to a websocket
// connection and attaches it to the hub. An officer connecting counts
// as a foreground return, reversing any pending grace window.
func ServeWS(hub *Hub, tracking *services.TrackingService, role, officerID string, w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := NewClient(conn, hub, tracking, role, officerID)
	hub.register <- client

	go client.WritePump()
	go client.ReadPump()

	if role == RoleOfficer {
		if err := tracking.AppForegrounded(hub.ctx, officerID); err != nil {
			logrus.Warnf("Officer %s reconnect foregrounding failed: %v", officerID, err)
		}
	}
	return nil
}
