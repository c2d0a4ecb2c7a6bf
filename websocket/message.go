package websocket

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"gppo/models"
	"gppo/utils"
)

// handleMessage routes one inbound client message. Position data and
// lifecycle events are only accepted from officer connections.
func (c *Client) handleMessage(message models.WSMessage) {
	switch message.Type {
	case models.WSTypePing:
		c.sendMessage(models.WSMessage{Type: models.WSTypePong, RequestID: message.RequestID})
		return
	}

	if c.role != RoleOfficer {
		c.sendError(message.RequestID, utils.ErrCodeForbidden, "only officer clients may send "+message.Type)
		return
	}

	switch message.Type {
	case models.WSTypeTrackingStart:
		// Start blocks until the first fix arrives over this same
		// connection, so it cannot run on the read loop.
		go func() {
			if err := c.tracking.StartTracking(c.hub.ctx, c.officerID); err != nil {
				c.sendServiceError(message.RequestID, err)
			}
		}()

	case models.WSTypeTrackingStop:
		c.tracking.StopTracking(c.officerID)

	case models.WSTypePositionFix:
		var fix models.WSPositionFix
		if !c.decodePayload(message, &fix) {
			return
		}
		if fix.Timestamp.IsZero() {
			fix.Timestamp = time.Now()
		}
		if err := c.tracking.IngestFix(c.officerID, fix); err != nil {
			c.sendServiceError(message.RequestID, err)
		}

	case models.WSTypePositionError:
		var perr models.WSPositionError
		if !c.decodePayload(message, &perr) {
			return
		}
		c.tracking.IngestError(c.officerID, perr)

	case models.WSTypeAppBackground:
		if err := c.tracking.AppBackgrounded(c.hub.ctx, c.officerID); err != nil {
			c.sendServiceError(message.RequestID, err)
		}

	case models.WSTypeAppForeground:
		if err := c.tracking.AppForegrounded(c.hub.ctx, c.officerID); err != nil {
			c.sendServiceError(message.RequestID, err)
		}

	default:
		logrus.Debugf("Unknown websocket message type %q from officer %s", message.Type, c.officerID)
		c.sendError(message.RequestID, utils.ErrCodeValidation, "unknown message type "+message.Type)
	}
}

// decodePayload re-decodes the generic Data field into a typed payload.
func (c *Client) decodePayload(message models.WSMessage, out interface{}) bool {
	raw, err := json.Marshal(message.Data)
	if err == nil {
		err = json.Unmarshal(raw, out)
	}
	if err != nil {
		c.sendError(message.RequestID, utils.ErrCodeValidation, "malformed "+message.Type+" payload")
		return false
	}
	return true
}

func (c *Client) sendServiceError(requestID string, err error) {
	if svcErr, ok := utils.GetServiceError(err); ok {
		c.sendError(requestID, svcErr.Code, svcErr.Message)
		return
	}
	c.sendError(requestID, utils.ErrCodeInternal, "internal error")
}
