package gateway

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles upgrade requests for room connections.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{connectionManager: cm}
}

// HandleRoomConnection upgrades a client connection addressed by roomId and
// participantId query parameters. The connection is rejected if either is
// missing or malformed.
func (h *WebSocketHandler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(r.URL.Query().Get("roomId"))
	if err != nil {
		http.Error(w, "roomId is required", http.StatusBadRequest)
		return
	}
	participantID, err := uuid.Parse(r.URL.Query().Get("participantId"))
	if err != nil {
		http.Error(w, "participantId is required", http.StatusBadRequest)
		return
	}

	ws, err := h.connectionManager.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an error response.
		log.Error().
			Err(err).
			Str("room_id", roomID.String()).
			Msg("failed to upgrade websocket connection")
		return
	}

	h.connectionManager.Register(roomID, participantID, ws)
}

// HandleConnectionStats reports live connection counts.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	total, activeRooms := h.connectionManager.ConnectionStats()

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"total_connections":%d,"active_rooms":%d}`, total, activeRooms)
}

// RegisterRoutes registers the WebSocket routes with an HTTP mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleRoomConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
