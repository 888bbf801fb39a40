package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pointroom/pointroom/internal/models"
	"github.com/pointroom/pointroom/internal/room"
)

// RoomRegistry defines what the api layer needs from the room registry.
type RoomRegistry interface {
	CreateRoom() models.RoomState
	AddParticipant(roomID uuid.UUID, displayName string, role models.ParticipantRole) (models.Participant, models.RoomState, error)
	RemoveParticipant(roomID, participantID uuid.UUID) (models.RoomState, bool, error)
	CastVote(roomID, participantID uuid.UUID, value string) (models.RoomState, error)
	RevealVotes(roomID uuid.UUID) (models.RoomState, error)
	ResetVotes(roomID uuid.UUID, storyTitle string) (models.RoomState, error)
	GetRoomByCode(code string) (models.RoomState, error)
	State(roomID uuid.UUID) (models.RoomState, *models.VoteStats, error)
}

// Broadcaster defines what the api layer needs from the connection gateway.
// Every successful mutation ends with a broadcast of the fresh snapshot; the
// registry and the gateway stay decoupled through this one call.
type Broadcaster interface {
	BroadcastRoomUpdate(roomID uuid.UUID)
}

// Service exposes the room procedures over JSON HTTP.
type Service struct {
	registry  RoomRegistry
	gateway   Broadcaster
	clientURL string
}

// NewService creates the room procedure service. clientURL is the base URL
// join links are composed from.
func NewService(registry RoomRegistry, gateway Broadcaster, clientURL string) *Service {
	return &Service{
		registry:  registry,
		gateway:   gateway,
		clientURL: clientURL,
	}
}

// RegisterRoutes registers every procedure with the HTTP mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /rpc/createRoom", s.handleCreateRoom)
	mux.HandleFunc("POST /rpc/joinRoom", s.handleJoinRoom)
	mux.HandleFunc("POST /rpc/getRoomState", s.handleGetRoomState)
	mux.HandleFunc("POST /rpc/castVote", s.handleCastVote)
	mux.HandleFunc("POST /rpc/revealVotes", s.handleRevealVotes)
	mux.HandleFunc("POST /rpc/resetVotes", s.handleResetVotes)
	mux.HandleFunc("POST /rpc/leaveRoom", s.handleLeaveRoom)
}

func (s *Service) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if !decode(w, r, &req) {
		return
	}
	if err := validateDisplayName(req.DisplayName); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Role.Valid() {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}

	created := s.registry.CreateRoom()
	participant, state, err := s.registry.AddParticipant(created.ID, req.DisplayName, req.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "room creation failed")
		return
	}

	writeJSON(w, http.StatusOK, CreateRoomResponse{
		Room:        state,
		Participant: participant,
		JoinURL:     fmt.Sprintf("%s/room/%s", s.clientURL, state.Code),
	})
}

func (s *Service) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	var req JoinRoomRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Code) != 6 {
		writeError(w, http.StatusBadRequest, "code must be 6 digits")
		return
	}
	if err := validateDisplayName(req.DisplayName); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Role.Valid() {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}

	found, err := s.registry.GetRoomByCode(req.Code)
	if err != nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	participant, state, err := s.registry.AddParticipant(found.ID, req.DisplayName, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, room.ErrDuplicateName):
			writeError(w, http.StatusConflict, "display name already taken")
		case errors.Is(err, room.ErrRoomNotFound):
			writeError(w, http.StatusNotFound, "room not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to join room")
		}
		return
	}

	s.gateway.BroadcastRoomUpdate(state.ID)

	writeJSON(w, http.StatusOK, JoinRoomResponse{Room: state, Participant: participant})
}

func (s *Service) handleGetRoomState(w http.ResponseWriter, r *http.Request) {
	var req GetRoomStateRequest
	if !decode(w, r, &req) {
		return
	}

	state, stats, err := s.registry.State(req.RoomID)
	if err != nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	writeJSON(w, http.StatusOK, GetRoomStateResponse{Room: state, Stats: stats})
}

func (s *Service) handleCastVote(w http.ResponseWriter, r *http.Request) {
	var req CastVoteRequest
	if !decode(w, r, &req) {
		return
	}

	state, err := s.registry.CastVote(req.RoomID, req.ParticipantID, req.Value)
	if err != nil {
		log.Debug().Err(err).Str("room_id", req.RoomID.String()).Msg("vote rejected")
		writeError(w, http.StatusConflict, "unable to cast vote")
		return
	}

	s.gateway.BroadcastRoomUpdate(req.RoomID)

	writeJSON(w, http.StatusOK, state)
}

func (s *Service) handleRevealVotes(w http.ResponseWriter, r *http.Request) {
	var req RevealVotesRequest
	if !decode(w, r, &req) {
		return
	}

	if _, err := s.registry.RevealVotes(req.RoomID); err != nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	state, stats, err := s.registry.State(req.RoomID)
	if err != nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	s.gateway.BroadcastRoomUpdate(req.RoomID)

	writeJSON(w, http.StatusOK, GetRoomStateResponse{Room: state, Stats: stats})
}

func (s *Service) handleResetVotes(w http.ResponseWriter, r *http.Request) {
	var req ResetVotesRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.StoryTitle) > 100 {
		writeError(w, http.StatusBadRequest, "story title too long")
		return
	}

	state, err := s.registry.ResetVotes(req.RoomID, req.StoryTitle)
	if err != nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	s.gateway.BroadcastRoomUpdate(req.RoomID)

	writeJSON(w, http.StatusOK, state)
}

// handleLeaveRoom never fails: leaving an unknown room or as an absent
// participant is a no-op.
func (s *Service) handleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	var req LeaveRoomRequest
	if !decode(w, r, &req) {
		return
	}

	_, deleted, err := s.registry.RemoveParticipant(req.RoomID, req.ParticipantID)
	if err == nil && !deleted {
		s.gateway.BroadcastRoomUpdate(req.RoomID)
	}

	writeJSON(w, http.StatusOK, LeaveRoomResponse{Success: true})
}

func validateDisplayName(name string) error {
	if name == "" {
		return errors.New("display name is required")
	}
	if len(name) > 50 {
		return errors.New("display name too long")
	}
	return nil
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
