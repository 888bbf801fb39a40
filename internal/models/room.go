package models

import (
	"time"

	"github.com/google/uuid"
)

// Room is the authoritative in-memory state of a voting session. Participants
// and Votes are keyed by participant ID; Order preserves join order for
// stable display. A room with zero participants does not exist.
type Room struct {
	ID           uuid.UUID
	Code         string
	CreatedAt    time.Time
	Participants map[uuid.UUID]*Participant
	Votes        map[uuid.UUID]*Vote
	Order        []uuid.UUID
	IsRevealed   bool
	StoryTitle   string
}

// RoomState is the externally shareable projection of a Room: participants
// and votes as join-ordered sequences rather than maps.
type RoomState struct {
	ID           uuid.UUID     `json:"id"`
	Code         string        `json:"code"`
	Participants []Participant `json:"participants"`
	Votes        []Vote        `json:"votes"`
	IsRevealed   bool          `json:"isRevealed"`
	StoryTitle   string        `json:"storyTitle,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}
