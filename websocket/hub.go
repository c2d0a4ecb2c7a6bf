package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"gppo/models"
)

// Hub fans server events out to connected clients. Officer apps connect
// with their officer id and receive direct messages; dashboard clients
// receive everything. The hub implements services.Broadcaster.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Officer to clients mapping for direct messaging; one officer may
	// hold several connections (phone and car terminal).
	officerClients map[string]map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Broadcast to every connected client
	broadcast chan models.WSMessage

	// Direct message to one officer's connections
	direct chan directMessage

	stats HubStats

	mutex sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

type directMessage struct {
	OfficerID string
	Message   models.WSMessage
}

type HubStats struct {
	TotalConnections  int64
	ActiveConnections int
	MessagesSent      int64
	StartTime         time.Time

	mutex sync.RWMutex
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:        make(map[*Client]bool),
		officerClients: make(map[string]map[*Client]bool),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan models.WSMessage, 64),
		direct:         make(chan directMessage, 64),
		stats:          HubStats{StartTime: time.Now()},
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Run processes hub events until Shutdown. Call it in its own
// goroutine.
func (h *Hub) Run() {
	logrus.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case message := <-h.broadcast:
			h.broadcastToAll(message)
		case dm := <-h.direct:
			h.sendToOfficer(dm.OfficerID, dm.Message)
		}
	}
}

// Shutdown stops the hub loop and closes every connection.
func (h *Hub) Shutdown() {
	h.cancel()
}

// =================== services.Broadcaster ===================

func (h *Hub) BroadcastToAll(message models.WSMessage) {
	select {
	case h.broadcast <- message:
	case <-h.ctx.Done():
	}
}

func (h *Hub) BroadcastToOfficer(officerID string, message models.WSMessage) {
	select {
	case h.direct <- directMessage{OfficerID: officerID, Message: message}:
	case <-h.ctx.Done():
	}
}

// =================== INTERNAL ===================

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	h.clients[client] = true
	if client.officerID != "" {
		if h.officerClients[client.officerID] == nil {
			h.officerClients[client.officerID] = make(map[*Client]bool)
		}
		h.officerClients[client.officerID][client] = true
	}
	h.mutex.Unlock()

	h.stats.mutex.Lock()
	h.stats.TotalConnections++
	h.stats.ActiveConnections++
	h.stats.mutex.Unlock()

	logrus.Infof("WebSocket client connected: role=%s officer=%s", client.role, client.officerID)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client)
	if client.officerID != "" {
		if conns := h.officerClients[client.officerID]; conns != nil {
			delete(conns, client)
			if len(conns) == 0 {
				delete(h.officerClients, client.officerID)
			}
		}
	}
	h.mutex.Unlock()

	close(client.send)

	h.stats.mutex.Lock()
	h.stats.ActiveConnections--
	h.stats.mutex.Unlock()

	logrus.Infof("WebSocket client disconnected: role=%s officer=%s", client.role, client.officerID)
}

func (h *Hub) broadcastToAll(message models.WSMessage) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.clients {
		h.deliver(client, message)
	}
}

func (h *Hub) sendToOfficer(officerID string, message models.WSMessage) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.officerClients[officerID] {
		h.deliver(client, message)
	}
}

// deliver drops the message when the client's buffer is full rather
// than blocking the hub loop on one slow reader.
func (h *Hub) deliver(client *Client, message models.WSMessage) {
	select {
	case client.send <- message:
		h.stats.mutex.Lock()
		h.stats.MessagesSent++
		h.stats.mutex.Unlock()
	default:
		logrus.Warnf("Dropping message to slow client (officer=%s)", client.officerID)
	}
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[*Client]bool)
	h.officerClients = make(map[string]map[*Client]bool)
	logrus.Info("WebSocket hub stopped")
}

// Stats returns a copy of the hub counters for the health endpoint.
func (h *Hub) Stats() HubStats {
	h.stats.mutex.RLock()
	defer h.stats.mutex.RUnlock()
	return HubStats{
		TotalConnections:  h.stats.TotalConnections,
		ActiveConnections: h.stats.ActiveConnections,
		MessagesSent:      h.stats.MessagesSent,
		StartTime:         h.stats.StartTime,
	}
}
