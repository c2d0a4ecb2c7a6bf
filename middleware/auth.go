package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gppo/models"
	"gppo/utils"
)

type AuthMiddleware struct {
	jwtService *utils.JWTService
}

func NewAuthMiddleware(jwtService *utils.JWTService) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
	}
}

// RequireAuth validates the JWT and puts the officer id and role into
// the request context.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		token := am.extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "UNAUTHORIZED",
				Message: "Authentication token required",
				Code:    utils.ErrCodeUnauthorized,
			})
			c.Abort()
			return
		}

		claims, err := am.jwtService.ValidateToken(token)
		if err != nil {
			logrus.Warnf("Invalid token: %v", err)
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "UNAUTHORIZED",
				Message: "Invalid authentication token",
				Code:    utils.ErrCodeUnauthorized,
			})
			c.Abort()
			return
		}

		c.Set("officerId", claims.OfficerID)
		c.Set("role", claims.Role)
		c.Next()
	})
}

// RequireOperator allows only operator tokens through. Must run after
// RequireAuth.
func (am *AuthMiddleware) RequireOperator() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		if c.GetString("role") != "operator" {
			c.JSON(http.StatusForbidden, models.ErrorResponse{
				Error:   "FORBIDDEN",
				Message: "Operator access required",
				Code:    utils.ErrCodeForbidden,
			})
			c.Abort()
			return
		}
		c.Next()
	})
}

// extractToken reads the bearer token from the Authorization header,
// falling back to the token query parameter for websocket upgrades.
func (am *AuthMiddleware) extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}
