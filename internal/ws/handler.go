package ws

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin is checked by middleware.WebSocketCORSCheck
	},
}

const (
	RoleView       = "view"
	RoleController = "controller"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

type frame struct {
	kind int
	data []byte
}

// Client represents a connected WebSocket client
type Client struct {
	conn         *websocket.Conn
	id           string
	role         string
	sessionToken string
	send         chan frame
	done         chan struct{}
	closeOnce    sync.Once
}

func newClient(conn *websocket.Conn, role, sessionToken string) *Client {
	b := make([]byte, 6)
	rand.Read(b)
	return &Client{
		conn:         conn,
		id:           role + "_" + hex.EncodeToString(b),
		role:         role,
		sessionToken: sessionToken,
		send:         make(chan frame, 64),
		done:         make(chan struct{}),
	}
}

// trySend queues a frame without blocking; a full buffer drops it.
func (c *Client) trySend(kind int, data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame{kind: kind, data: data}:
		return true
	default:
		log.Printf("[WS] send buffer full for %s in session %s, dropping frame", c.id, c.sessionToken)
		return false
	}
}

func (c *Client) sendJSON(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] Error marshaling message: %v", err)
		return
	}
	c.trySend(websocket.TextMessage, data)
}

// sendError sends an error message to the client
func (c *Client) sendError(message string) {
	c.sendJSON(map[string]interface{}{
		"type":    "error",
		"message": message,
	})
}

func (c *Client) stop() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Hub maintains the set of active clients grouped by session.
type Hub struct {
	clients    map[string]*Client            // clientID -> Client
	rooms      map[string]map[string]*Client // sessionToken -> clientID -> Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// SessionHub is the single hub for all sessions.
var SessionHub *Hub

func init() {
	SessionHub = NewHub()
	go SessionHub.run()
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.add(client)
		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	if _, ok := h.rooms[c.sessionToken]; !ok {
		h.rooms[c.sessionToken] = make(map[string]*Client)
	}
	h.rooms[c.sessionToken][c.id] = c
	log.Printf("[WS] %s connected to session %s (room_size=%d)", c.id, c.sessionToken, len(h.rooms[c.sessionToken]))
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[c.id]; !ok || cur != c {
		return
	}
	delete(h.clients, c.id)
	if room, ok := h.rooms[c.sessionToken]; ok {
		delete(room, c.id)
		if len(room) == 0 {
			delete(h.rooms, c.sessionToken)
		}
	}
	c.stop()
	log.Printf("[WS] %s disconnected from session %s", c.id, c.sessionToken)
}

// RoomSize reports how many clients are attached to a session.
func (h *Hub) RoomSize(sessionToken string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionToken])
}

// Broadcast sends a raw text frame to every client of a session with the
// given role, or to all of them when role is empty.
func (h *Hub) Broadcast(sessionToken, role string, data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, c := range h.rooms[sessionToken] {
		if role != "" && c.role != role {
			continue
		}
		if c.trySend(websocket.TextMessage, data) {
			n++
		}
	}
	return n
}

// BroadcastToSession marshals message and sends it to every client of a session.
func (h *Hub) BroadcastToSession(sessionToken string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] Error marshaling message: %v", err)
		return
	}
	h.Broadcast(sessionToken, "", data)
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case f := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(f.kind, f.data); err != nil {
				log.Printf("[WS] write error for %s: %v", c.id, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[WS] ping error for %s: %v", c.id, err)
				return
			}
		}
	}
}

// readLoop reads frames until the connection fails, handing each to handle.
func (c *Client) readLoop(h *Hub, handle func(kind int, data []byte)) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		kind, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] unexpected close for %s: %v", c.id, err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		handle(kind, message)
	}
}

// Message types
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}
