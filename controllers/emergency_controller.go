package controllers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gppo/models"
	"gppo/services"
	"gppo/utils"
)

type EmergencyController struct {
	emergencyService *services.EmergencyService
}

func NewEmergencyController(emergencyService *services.EmergencyService) *EmergencyController {
	return &EmergencyController{
		emergencyService: emergencyService,
	}
}

// =================== TRIGGER ===================

// Trigger raises an emergency for the authenticated officer and
// notifies the nearest eligible officers.
func (ec *EmergencyController) Trigger(c *gin.Context) {
	officerID := c.GetString("officerId")
	if officerID == "" {
		utils.ErrorResponse(c, 401, "Officer not authenticated", nil)
		return
	}

	var req models.TriggerEmergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		utils.ErrorResponse(c, 400, "Invalid request body", nil)
		return
	}

	resp, err := ec.emergencyService.Trigger(c.Request.Context(), officerID, req)
	if err != nil {
		logrus.Errorf("Emergency trigger by officer %s failed: %v", officerID, err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "Emergency triggered", resp)
}

// Resolve clears the authenticated officer's emergency flag.
func (ec *EmergencyController) Resolve(c *gin.Context) {
	officerID := c.GetString("officerId")
	if officerID == "" {
		utils.ErrorResponse(c, 401, "Officer not authenticated", nil)
		return
	}

	if err := ec.emergencyService.Resolve(c.Request.Context(), officerID); err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Emergency resolved", nil)
}

// =================== RESPONSE SEQUENCE ===================

func (ec *EmergencyController) Acknowledge(c *gin.Context) {
	ec.transition(c, ec.emergencyService.Acknowledge)
}

func (ec *EmergencyController) Respond(c *gin.Context) {
	ec.transition(c, ec.emergencyService.Respond)
}

func (ec *EmergencyController) Complete(c *gin.Context) {
	ec.transition(c, ec.emergencyService.Complete)
}

func (ec *EmergencyController) transition(c *gin.Context, apply func(ctx context.Context, officerID, incidentID string) (*models.EmergencyIncident, error)) {
	officerID := c.GetString("officerId")
	if officerID == "" {
		utils.ErrorResponse(c, 401, "Officer not authenticated", nil)
		return
	}
	incidentID := c.Param("incidentId")

	incident, err := apply(c.Request.Context(), officerID, incidentID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Incident updated", incident)
}

// =================== READ SIDE ===================

// ListMine returns the authenticated officer's incidents, active ones
// by default.
func (ec *EmergencyController) ListMine(c *gin.Context) {
	officerID := c.GetString("officerId")
	if officerID == "" {
		utils.ErrorResponse(c, 401, "Officer not authenticated", nil)
		return
	}
	activeOnly := c.DefaultQuery("active", "true") == "true"

	resp, err := ec.emergencyService.ListForOfficer(c.Request.Context(), officerID, activeOnly)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Incidents retrieved successfully", resp)
}

// ListEvent returns every notified officer's record for one emergency
// event. Operator view.
func (ec *EmergencyController) ListEvent(c *gin.Context) {
	eventID := c.Param("eventId")

	resp, err := ec.emergencyService.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Incidents retrieved successfully", resp)
}
