package api

import (
	"github.com/google/uuid"

	"github.com/pointroom/pointroom/internal/models"
)

// CreateRoomRequest creates a room and joins the creator in one call.
type CreateRoomRequest struct {
	DisplayName string                 `json:"displayName"`
	Role        models.ParticipantRole `json:"role"`
}

type CreateRoomResponse struct {
	Room        models.RoomState   `json:"room"`
	Participant models.Participant `json:"participant"`
	JoinURL     string             `json:"joinUrl"`
}

// JoinRoomRequest joins an existing room by its 6-digit code.
type JoinRoomRequest struct {
	Code        string                 `json:"code"`
	DisplayName string                 `json:"displayName"`
	Role        models.ParticipantRole `json:"role"`
}

type JoinRoomResponse struct {
	Room        models.RoomState   `json:"room"`
	Participant models.Participant `json:"participant"`
}

type GetRoomStateRequest struct {
	RoomID uuid.UUID `json:"roomId"`
}

type GetRoomStateResponse struct {
	Room  models.RoomState  `json:"room"`
	Stats *models.VoteStats `json:"stats"`
}

type CastVoteRequest struct {
	RoomID        uuid.UUID `json:"roomId"`
	ParticipantID uuid.UUID `json:"participantId"`
	Value         string    `json:"value"`
}

type RevealVotesRequest struct {
	RoomID uuid.UUID `json:"roomId"`
}

type ResetVotesRequest struct {
	RoomID     uuid.UUID `json:"roomId"`
	StoryTitle string    `json:"storyTitle,omitempty"`
}

type LeaveRoomRequest struct {
	RoomID        uuid.UUID `json:"roomId"`
	ParticipantID uuid.UUID `json:"participantId"`
}

type LeaveRoomResponse struct {
	Success bool `json:"success"`
}
