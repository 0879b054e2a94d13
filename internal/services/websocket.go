package services

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Client represents a WebSocket client
type Client struct {
	ID   uint
	Role string
	Conn *websocket.Conn
	Send chan []byte
	Hub  *Hub
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			log.Printf("Client %d connected", client.ID)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mutex.Unlock()
			log.Printf("Client %d disconnected", client.ID)
		}
	}
}

// BroadcastToUser sends a message to a specific user. Clients whose send
// buffer is full are dropped; eviction happens after the read lock is
// released so concurrent broadcasts never mutate the map mid-iteration.
func (h *Hub) BroadcastToUser(userID uint, message []byte) {
	h.mutex.RLock()
	var stale []*Client
	for client := range h.clients {
		if client.ID == userID {
			select {
			case client.Send <- message:
			default:
				stale = append(stale, client)
			}
		}
	}
	h.mutex.RUnlock()

	for _, client := range stale {
		h.evict(client)
	}
}

// evict removes a client under the write lock. The membership check keeps
// the send channel from being closed twice when eviction races with
// unregistration or another broadcast.
func (h *Hub) evict(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
	}
}

// GetConnectedClients returns the number of connected clients
func (h *Hub) GetConnectedClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// WebSocket message types
type WebSocketMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// BookingStatusUpdate notifies a party that a booking changed state.
type BookingStatusUpdate struct {
	BookingID uint   `json:"bookingId"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

// TripLocationUpdate carries the assigned driver's live position.
type TripLocationUpdate struct {
	BookingID uint    `json:"bookingId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// HandleWebSocket handles WebSocket connections
func HandleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request, userID uint, role string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		ID:   userID,
		Role: role,
		Conn: conn,
		Send: make(chan []byte, 256),
		Hub:  hub,
	}

	client.Hub.register <- client

	// Start goroutines for reading and writing
	go client.writePump()
	go client.readPump()
}

// readPump drains the connection so close frames and pings are processed.
// Clients only receive; inbound payloads are ignored.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("WebSocket write error: %v", err)
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// SendBookingStatus pushes a booking status change to one user.
func (h *Hub) SendBookingStatus(userID uint, update BookingStatusUpdate) {
	message := WebSocketMessage{
		Type: "booking_status",
		Data: update,
	}

	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling booking status update: %v", err)
		return
	}

	h.BroadcastToUser(userID, data)
}

// SendTripLocation pushes the live trip position to one user.
func (h *Hub) SendTripLocation(userID uint, update TripLocationUpdate) {
	message := WebSocketMessage{
		Type: "trip_location",
		Data: update,
	}

	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling trip location update: %v", err)
		return
	}

	h.BroadcastToUser(userID, data)
}
