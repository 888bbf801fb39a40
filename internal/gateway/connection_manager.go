package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/pointroom/pointroom/internal/models"
)

// StateProvider defines what the gateway needs from the room registry. The
// gateway never mutates room state beyond connection presence; every other
// mutation reaches it only as a broadcast trigger.
type StateProvider interface {
	State(roomID uuid.UUID) (models.RoomState, *models.VoteStats, error)
	UpdateConnectionStatus(roomID, participantID uuid.UUID, connected bool) (models.RoomState, error)
}

// ConnectionManager maintains the table of live WebSocket connections per
// room and fans room-state snapshots out to them. Broadcast payloads are
// derived from a fresh snapshot taken after the triggering mutation, so every
// recipient sees a fully-applied state.
type ConnectionManager struct {
	rooms StateProvider

	// roomID -> participantID -> connection
	roomConnections map[uuid.UUID]map[uuid.UUID]*Connection
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
}

// Connection represents one live WebSocket connection to a client.
type Connection struct {
	RoomID        uuid.UUID
	ParticipantID uuid.UUID
	Conn          *websocket.Conn
	Send          chan []byte
	ConnectedAt   time.Time

	manager *ConnectionManager
}

// ConnectionConfig holds transport-level settings for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a connection manager backed by the given
// state provider.
func NewConnectionManager(config ConnectionConfig, rooms StateProvider) *ConnectionManager {
	return &ConnectionManager{
		rooms:           rooms,
		roomConnections: make(map[uuid.UUID]map[uuid.UUID]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
	}
}

// Register inserts a connection into the room's table, marks the participant
// connected, and broadcasts the updated snapshot to every connection in the
// room, the new one included. A previous connection for the same participant
// is displaced.
func (cm *ConnectionManager) Register(roomID, participantID uuid.UUID, ws *websocket.Conn) *Connection {
	conn := &Connection{
		RoomID:        roomID,
		ParticipantID: participantID,
		Conn:          ws,
		Send:          make(chan []byte, 256),
		ConnectedAt:   time.Now(),
		manager:       cm,
	}

	cm.mu.Lock()
	if cm.roomConnections[roomID] == nil {
		cm.roomConnections[roomID] = make(map[uuid.UUID]*Connection)
	}
	if old, ok := cm.roomConnections[roomID][participantID]; ok {
		close(old.Send)
		old.Conn.Close()
	}
	cm.roomConnections[roomID][participantID] = conn
	cm.mu.Unlock()

	go conn.writePump()
	go conn.readPump()

	if _, err := cm.rooms.UpdateConnectionStatus(roomID, participantID, true); err != nil {
		log.Debug().Err(err).Str("room_id", roomID.String()).Msg("presence update on register")
	}

	log.Info().
		Str("room_id", roomID.String()).
		Str("participant_id", participantID.String()).
		Msg("websocket connection established")

	cm.BroadcastRoomUpdate(roomID)
	return conn
}

// unregister removes a connection from the table, marks the participant
// disconnected and broadcasts to the remaining connections. Called from the
// pumps on transport failure as well as on orderly close, so a failed send
// heals itself without surfacing to mutation callers. A connection that has
// already been displaced by a newer one for the same participant is left
// alone.
func (cm *ConnectionManager) unregister(conn *Connection) {
	cm.mu.Lock()
	connections, ok := cm.roomConnections[conn.RoomID]
	if !ok || connections[conn.ParticipantID] != conn {
		cm.mu.Unlock()
		return
	}
	delete(connections, conn.ParticipantID)
	close(conn.Send)
	if len(connections) == 0 {
		delete(cm.roomConnections, conn.RoomID)
	}
	cm.mu.Unlock()

	if _, err := cm.rooms.UpdateConnectionStatus(conn.RoomID, conn.ParticipantID, false); err != nil {
		log.Debug().Err(err).Str("room_id", conn.RoomID.String()).Msg("presence update on unregister")
	}

	log.Info().
		Str("room_id", conn.RoomID.String()).
		Str("participant_id", conn.ParticipantID.String()).
		Msg("websocket connection closed")

	cm.BroadcastRoomUpdate(conn.RoomID)
}

// Dispatch routes an inbound client message by its type tag. Unrecognized
// types are logged and otherwise ignored.
func (cm *ConnectionManager) Dispatch(roomID, participantID uuid.UUID, msg InboundMessage) {
	switch msg.Type {
	case MessageTypePing:
		cm.sendToParticipant(roomID, participantID, OutboundMessage{Type: MessageTypePong})
	case MessageTypeRequestRoomState:
		state, stats, err := cm.rooms.State(roomID)
		if err != nil {
			log.Debug().Err(err).Str("room_id", roomID.String()).Msg("room state request for unknown room")
			return
		}
		cm.sendToParticipant(roomID, participantID, OutboundMessage{
			Type:    MessageTypeRoomState,
			Payload: RoomPayload{Room: state, Stats: stats},
		})
	default:
		log.Warn().
			Str("type", string(msg.Type)).
			Str("participant_id", participantID.String()).
			Msg("unknown websocket message type")
	}
}

// BroadcastRoomUpdate fetches the current snapshot plus stats and sends the
// same payload to every live connection in the room. Every mutating action
// invokes this after a successful registry call; the registry itself knows
// nothing about transport.
func (cm *ConnectionManager) BroadcastRoomUpdate(roomID uuid.UUID) {
	state, stats, err := cm.rooms.State(roomID)
	if err != nil {
		// Room already deleted; nothing left to tell anyone.
		return
	}

	cm.broadcast(roomID, OutboundMessage{
		Type:    MessageTypeRoomStateUpdate,
		Payload: RoomPayload{Room: state, Stats: stats},
	})
}

// broadcast marshals the message once and hands it to every connection in
// the room. A dead or slow connection is dropped without aborting delivery
// to the others.
func (cm *ConnectionManager) broadcast(roomID uuid.UUID, msg OutboundMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal broadcast message")
		return
	}

	cm.mu.RLock()
	targets := make([]*Connection, 0, len(cm.roomConnections[roomID]))
	for _, conn := range cm.roomConnections[roomID] {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		conn.trySend(data)
	}

	log.Debug().
		Str("type", string(msg.Type)).
		Str("room_id", roomID.String()).
		Int("connections", len(targets)).
		Msg("room update broadcast")
}

// sendToParticipant unicasts a message to one connection in a room; a no-op
// if the participant has no live connection.
func (cm *ConnectionManager) sendToParticipant(roomID, participantID uuid.UUID, msg OutboundMessage) {
	cm.mu.RLock()
	conn := cm.roomConnections[roomID][participantID]
	cm.mu.RUnlock()
	if conn == nil {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal unicast message")
		return
	}
	conn.trySend(data)
}

// ConnectionStats reports the number of live connections and rooms with at
// least one connection.
func (cm *ConnectionManager) ConnectionStats() (total int, activeRooms int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	for _, connections := range cm.roomConnections {
		total += len(connections)
	}
	return total, len(cm.roomConnections)
}

// trySend queues data for the write pump. A full send buffer means the
// client stopped draining; the connection is closed and cleaned up.
func (c *Connection) trySend(data []byte) {
	defer func() {
		// Send may race with close(c.Send) during unregistration; a send on
		// the closed channel is treated the same as a full buffer.
		if recover() != nil {
			c.Conn.Close()
		}
	}()

	select {
	case c.Send <- data:
	default:
		log.Warn().
			Str("participant_id", c.ParticipantID.String()).
			Msg("connection send buffer full, dropping connection")
		c.manager.unregister(c)
		c.Conn.Close()
	}
}

// writePump serializes all writes to the WebSocket and keeps the transport
// alive with periodic ping frames.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.manager.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().
					Err(err).
					Str("participant_id", c.ParticipantID.String()).
					Msg("failed to write to websocket")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads client frames, decodes them fails-closed and routes them
// through Dispatch. Any read error tears the connection down.
func (c *Connection) readPump() {
	defer func() {
		c.manager.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Debug().
					Err(err).
					Str("participant_id", c.ParticipantID.String()).
					Msg("unexpected websocket close")
			}
			return
		}

		msg, err := decodeInbound(data)
		if err != nil {
			log.Warn().
				Err(err).
				Str("participant_id", c.ParticipantID.String()).
				Msg("dropping malformed client message")
			continue
		}

		c.manager.Dispatch(c.RoomID, c.ParticipantID, msg)
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	}
}
