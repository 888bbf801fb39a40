package models

import (
	"time"

	"github.com/google/uuid"
)

// ParticipantRole represents the role of a participant in a room
type ParticipantRole string

const (
	RoleVoter   ParticipantRole = "voter"
	RoleWatcher ParticipantRole = "watcher"
)

// Valid reports whether the role is one of the closed set of roles.
func (r ParticipantRole) Valid() bool {
	return r == RoleVoter || r == RoleWatcher
}

// Participant represents a member of a room. The role is fixed for the
// lifetime of the participant; IsConnected is maintained by the gateway.
type Participant struct {
	ID          uuid.UUID       `json:"id"`
	DisplayName string          `json:"displayName"`
	Role        ParticipantRole `json:"role"`
	IsConnected bool            `json:"isConnected"`
	JoinedAt    time.Time       `json:"joinedAt"`
}
