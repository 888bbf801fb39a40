package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/pointroom/pointroom/internal/models"
)

// MessageType tags every envelope crossing the websocket, in both
// directions. The inbound set is closed; anything else is logged and
// dropped.
type MessageType string

const (
	// Inbound (client -> server)
	MessageTypePing             MessageType = "ping"
	MessageTypeRequestRoomState MessageType = "requestRoomState"

	// Outbound (server -> client)
	MessageTypePong            MessageType = "pong"
	MessageTypeRoomState       MessageType = "roomState"
	MessageTypeRoomStateUpdate MessageType = "roomStateUpdate"
)

// InboundMessage is the envelope for client messages.
type InboundMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OutboundMessage is the envelope for server messages.
type OutboundMessage struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// RoomPayload carries a room snapshot plus its derived stats; it is the
// payload of both roomState and roomStateUpdate envelopes. Stats is null
// while the room is not revealed.
type RoomPayload struct {
	Room  models.RoomState  `json:"room"`
	Stats *models.VoteStats `json:"stats"`
}

// decodeInbound parses a client message, fails-closed: an unparseable or
// untagged frame is an error, never a crash.
func decodeInbound(data []byte) (InboundMessage, error) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return InboundMessage{}, fmt.Errorf("failed to decode message: %w", err)
	}
	if msg.Type == "" {
		return InboundMessage{}, fmt.Errorf("message has no type tag")
	}
	return msg, nil
}
