package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gppo/services"
	"gppo/utils"
	"gppo/websocket"
)

type WebSocketController struct {
	hub             *websocket.Hub
	trackingService *services.TrackingService
}

func NewWebSocketController(hub *websocket.Hub, trackingService *services.TrackingService) *WebSocketController {
	return &WebSocketController{
		hub:             hub,
		trackingService: trackingService,
	}
}

// HandleConnection upgrades an authenticated request. Officers get a
// bidirectional tracking channel; operators get the read-only dashboard
// feed.
func (wc *WebSocketController) HandleConnection(c *gin.Context) {
	officerID := c.GetString("officerId")
	role := websocket.RoleOfficer
	if c.GetString("role") == "operator" {
		role = websocket.RoleDashboard
	}
	if role == websocket.RoleOfficer && officerID == "" {
		utils.ErrorResponse(c, 401, "Officer not authenticated", nil)
		return
	}

	if err := websocket.ServeWS(wc.hub, wc.trackingService, role, officerID, c.Writer, c.Request); err != nil {
		logrus.Errorf("WebSocket upgrade failed: %v", err)
	}
}

// Stats exposes hub counters for the health dashboard.
func (wc *WebSocketController) Stats(c *gin.Context) {
	utils.SuccessResponse(c, "Hub statistics", wc.hub.Stats())
}
