package utility

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// RefreshMessage tells a dashboard client to reload its data.
const RefreshMessage = "REFRESH"

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow CORS for development
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub holds the open dashboard connections of every session. A session may
// have several tabs open at once.
type Hub struct {
	mu      sync.Mutex
	clients map[string]map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*websocket.Conn]struct{})}
}

// RegisterClient adds a connection for the session.
func (h *Hub) RegisterClient(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.clients[sessionID]
	if !ok {
		conns = make(map[*websocket.Conn]struct{})
		h.clients[sessionID] = conns
	}
	conns[conn] = struct{}{}
	log.Info().Str("session_id", sessionID).Int("connections", len(conns)).Msg("WebSocket Client Connected")
}

// UnregisterClient removes a connection (when the tab closes).
func (h *Hub) UnregisterClient(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(sessionID, conn)
}

func (h *Hub) remove(sessionID string, conn *websocket.Conn) {
	conns, ok := h.clients[sessionID]
	if !ok {
		return
	}
	if _, ok := conns[conn]; !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.clients, sessionID)
	}
	log.Info().Str("session_id", sessionID).Msg("WebSocket Client Disconnected")
}

// Count returns the number of open connections for the session.
func (h *Hub) Count(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[sessionID])
}

// TriggerDashboardUpdate notifies every open dashboard of the session to
// refresh. Connections that fail the write are closed and dropped.
func (h *Hub) TriggerDashboardUpdate(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients[sessionID] {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(RefreshMessage)); err != nil {
			log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to send WS message, removing client")
			conn.Close()
			h.remove(sessionID, conn)
		}
	}
}
