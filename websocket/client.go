package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"gppo/models"
	"gppo/services"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Buffer size for client send channel
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by the CORS middleware in front.
		return true
	},
}

// Client roles. Officer clients stream position data in and get their
// own notices back; dashboard clients only observe.
const (
	RoleOfficer   = "officer"
	RoleDashboard = "dashboard"
)

type Client struct {
	conn *websocket.Conn

	role      string
	officerID string

	connectedAt  time.Time
	lastActivity time.Time

	// Buffered channel of outbound messages
	send chan models.WSMessage

	hub      *Hub
	tracking *services.TrackingService
}

func NewClient(conn *websocket.Conn, hub *Hub, tracking *services.TrackingService, role, officerID string) *Client {
	return &Client{
		conn:         conn,
		role:         role,
		officerID:    officerID,
		connectedAt:  time.Now(),
		lastActivity: time.Now(),
		send:         make(chan models.WSMessage, sendBufferSize),
		hub:          hub,
		tracking:     tracking,
	}
}

// ReadPump reads client messages until the connection drops. An officer
// disconnect backgrounds the session rather than stopping it: the grace
// window decides whether the officer is really gone.
func (c *Client) ReadPump() {
	defer func() {
		if c.role == RoleOfficer {
			if err := c.tracking.AppBackgrounded(c.hub.ctx, c.officerID); err != nil {
				logrus.Warnf("Officer %s disconnect backgrounding failed: %v", c.officerID, err)
			}
		}
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var message models.WSMessage
		if err := c.conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.Warnf("WebSocket read error (officer=%s): %v", c.officerID, err)
			}
			return
		}
		c.lastActivity = time.Now()
		c.handleMessage(message)
	}
}

// WritePump writes queued messages and keeps the connection alive with
// pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				logrus.Warnf("WebSocket write error (officer=%s): %v", c.officerID, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendMessage(message models.WSMessage) {
	message.Timestamp = time.Now()
	select {
	case c.send <- message:
	default:
		logrus.Warnf("Client send buffer full, dropping %s (officer=%s)", message.Type, c.officerID)
	}
}

func (c *Client) sendError(requestID, code, message string) {
	c.sendMessage(models.WSMessage{
		Type:      models.WSTypeError,
		Data:      models.APIError{Code: code, Message: message},
		RequestID: requestID,
	})
}
