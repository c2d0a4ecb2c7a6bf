package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gppo/models"
	"gppo/services"
	"gppo/utils"
)

type PresenceController struct {
	presenceService *services.PresenceService
}

func NewPresenceController(presenceService *services.PresenceService) *PresenceController {
	return &PresenceController{
		presenceService: presenceService,
	}
}

// =================== REGISTRATION ===================

// Register creates or refreshes an officer's presence profile.
func (pc *PresenceController) Register(c *gin.Context) {
	var req models.RegisterOfficerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, 400, "Invalid request body", nil)
		return
	}

	presence, err := pc.presenceService.Register(c.Request.Context(), req)
	if err != nil {
		logrus.Errorf("Officer registration failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, "Officer registered successfully", presence)
}

// =================== READ SIDE ===================

// GetPresence returns one officer's presence snapshot.
func (pc *PresenceController) GetPresence(c *gin.Context) {
	officerID := c.Param("officerId")

	snapshot, err := pc.presenceService.GetPresence(c.Request.Context(), officerID)
	if err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Presence retrieved successfully", snapshot)
}

// ListPresences returns the dashboard presence list. Operators see
// hidden officers too.
func (pc *PresenceController) ListPresences(c *gin.Context) {
	includeHidden := c.GetString("role") == "operator" && c.Query("includeHidden") == "true"

	snapshots, err := pc.presenceService.ListPresences(c.Request.Context(), includeHidden)
	if err != nil {
		logrus.Errorf("Presence list failed: %v", err)
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Presences retrieved successfully", snapshots)
}

// =================== STATUS & VISIBILITY ===================

// SetStatus updates the officer's duty status.
func (pc *PresenceController) SetStatus(c *gin.Context) {
	officerID := c.Param("officerId")
	if c.GetString("officerId") != officerID && c.GetString("role") != "operator" {
		utils.ErrorResponse(c, 403, "Cannot change another officer's status", nil)
		return
	}

	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, 400, "Invalid request body", nil)
		return
	}

	if err := pc.presenceService.SetStatus(c.Request.Context(), officerID, req); err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Status updated successfully", nil)
}

// SetVisibilityOverride hides or reveals an officer on the dispatch
// side. Operator only.
func (pc *PresenceController) SetVisibilityOverride(c *gin.Context) {
	officerID := c.Param("officerId")

	var req models.VisibilityOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, 400, "Invalid request body", nil)
		return
	}

	if err := pc.presenceService.SetVisibilityOverride(c.Request.Context(), officerID, req.Visible); err != nil {
		utils.ServiceErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, "Visibility override updated successfully", nil)
}
