package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"gppo/models"
	"gppo/utils"
)

// ErrorHandler provides centralized panic recovery and rendering of
// errors attached to the gin context.
type ErrorHandler struct {
	environment string
	logger      *logrus.Logger
}

func NewErrorHandler(environment string, logger *logrus.Logger) *ErrorHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ErrorHandler{
		environment: environment,
		logger:      logger,
	}
}

// Handle returns the error handling middleware
func (eh *ErrorHandler) Handle() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				eh.handlePanic(c, err)
			}
		}()

		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			eh.renderError(c, c.Errors.Last().Err)
		}
	})
}

func (eh *ErrorHandler) handlePanic(c *gin.Context, err interface{}) {
	eh.logger.WithFields(logrus.Fields{
		"panic":      err,
		"stack":      string(debug.Stack()),
		"request_id": c.GetString("request_id"),
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"officer_id": c.GetString("officerId"),
	}).Error("Panic recovered")

	message := "Internal server error"
	if eh.environment == "development" {
		if e, ok := err.(error); ok {
			message = e.Error()
		}
	}

	c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "INTERNAL_ERROR",
		Message: message,
		Code:    utils.ErrCodeInternal,
	})
}

func (eh *ErrorHandler) renderError(c *gin.Context, err error) {
	if serviceErr, ok := utils.GetServiceError(err); ok {
		status := serviceErr.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}
		c.JSON(status, models.ErrorResponse{
			Error:   serviceErr.Code,
			Message: serviceErr.Message,
			Code:    serviceErr.Code,
		})
		return
	}

	eh.logger.WithField("request_id", c.GetString("request_id")).Errorf("Unhandled error: %v", err)
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "INTERNAL_ERROR",
		Message: "Internal server error",
		Code:    utils.ErrCodeInternal,
	})
}
