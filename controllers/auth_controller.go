package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gppo/services"
	"gppo/utils"
)

type AuthController struct {
	presenceService *services.PresenceService
	jwtService      *utils.JWTService
	operatorKey     string
}

func NewAuthController(presenceService *services.PresenceService, jwtService *utils.JWTService, operatorKey string) *AuthController {
	return &AuthController{
		presenceService: presenceService,
		jwtService:      jwtService,
		operatorKey:     operatorKey,
	}
}

type officerLoginRequest struct {
	OfficerID   string `json:"officerId" binding:"required"`
	BadgeNumber string `json:"badgeNumber" binding:"required"`
}

type operatorLoginRequest struct {
	OperatorID string `json:"operatorId" binding:"required"`
	AccessKey  string `json:"accessKey" binding:"required"`
}

type tokenResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// OfficerLogin issues an access token for a registered officer. The
// badge number must match the registered profile.
func (ac *AuthController) OfficerLogin(c *gin.Context) {
	var req officerLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, 400, "Invalid request body", nil)
		return
	}

	snapshot, err := ac.presenceService.GetPresence(c.Request.Context(), req.OfficerID)
	if err != nil {
		// Same response for unknown officer and wrong badge.
		utils.ErrorResponse(c, 401, "Invalid credentials", nil)
		return
	}
	if snapshot.Presence.BadgeNumber == "" || snapshot.Presence.BadgeNumber != req.BadgeNumber {
		utils.ErrorResponse(c, 401, "Invalid credentials", nil)
		return
	}

	token, err := ac.jwtService.GenerateToken(req.OfficerID, "officer")
	if err != nil {
		logrus.Errorf("Token generation failed for officer %s: %v", req.OfficerID, err)
		utils.ErrorResponse(c, 500, "Failed to issue token", nil)
		return
	}

	utils.SuccessResponse(c, "Login successful", tokenResponse{Token: token, Role: "officer"})
}

// OperatorLogin issues an operator token against the deployment's
// shared access key.
func (ac *AuthController) OperatorLogin(c *gin.Context) {
	var req operatorLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, 400, "Invalid request body", nil)
		return
	}

	if ac.operatorKey == "" || req.AccessKey != ac.operatorKey {
		utils.ErrorResponse(c, 401, "Invalid credentials", nil)
		return
	}

	token, err := ac.jwtService.GenerateToken(req.OperatorID, "operator")
	if err != nil {
		logrus.Errorf("Token generation failed for operator %s: %v", req.OperatorID, err)
		utils.ErrorResponse(c, 500, "Failed to issue token", nil)
		return
	}

	utils.SuccessResponse(c, "Login successful", tokenResponse{Token: token, Role: "operator"})
}
