package room

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/pointroom/pointroom/internal/models"
)

// Registry owns all room, participant and vote state for the process. It is
// created once at startup and passed explicitly to every component that
// mutates rooms. All operations are computation-only and guarded by a single
// mutex, so a mutation never interleaves with another on the same room.
//
// Mutating operations return a fresh RoomState snapshot taken before the lock
// is released, so callers always observe a fully-applied state.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[uuid.UUID]*models.Room
	byCode map[string]uuid.UUID
	clock  clockwork.Clock

	genCode func() string
}

// NewRegistry creates an empty registry. The clock is injected so tests can
// control timestamps and staleness.
func NewRegistry(clock clockwork.Clock) *Registry {
	return &Registry{
		rooms:   make(map[uuid.UUID]*models.Room),
		byCode:  make(map[string]uuid.UUID),
		clock:   clock,
		genCode: randomCode,
	}
}

// randomCode generates a 6-digit numeric room code.
func randomCode() string {
	return strconv.Itoa(100_000 + rand.IntN(900_000))
}

// CreateRoom allocates a new room with a code unique among live rooms.
func (r *Registry) CreateRoom() models.RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()

	var code string
	for {
		code = r.genCode()
		if _, taken := r.byCode[code]; !taken {
			break
		}
	}

	rm := &models.Room{
		ID:           uuid.New(),
		Code:         code,
		CreatedAt:    r.clock.Now(),
		Participants: make(map[uuid.UUID]*models.Participant),
		Votes:        make(map[uuid.UUID]*models.Vote),
	}
	r.rooms[rm.ID] = rm
	r.byCode[code] = rm.ID

	log.Info().
		Str("room_id", rm.ID.String()).
		Str("code", code).
		Msg("room created")

	return r.snapshotLocked(rm)
}

// AddParticipant adds a participant to a room. Display names are unique
// within a room, compared case-insensitively. Voters get an empty vote entry
// immediately so that the voter/vote pairing invariant holds.
func (r *Registry) AddParticipant(roomID uuid.UUID, displayName string, role models.ParticipantRole) (models.Participant, models.RoomState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return models.Participant{}, models.RoomState{}, ErrRoomNotFound
	}

	for _, p := range rm.Participants {
		if strings.EqualFold(p.DisplayName, displayName) {
			return models.Participant{}, models.RoomState{}, ErrDuplicateName
		}
	}

	p := &models.Participant{
		ID:          uuid.New(),
		DisplayName: displayName,
		Role:        role,
		IsConnected: true,
		JoinedAt:    r.clock.Now(),
	}
	rm.Participants[p.ID] = p
	rm.Order = append(rm.Order, p.ID)

	if role == models.RoleVoter {
		rm.Votes[p.ID] = &models.Vote{ParticipantID: p.ID}
	}

	log.Debug().
		Str("room_id", roomID.String()).
		Str("participant_id", p.ID.String()).
		Str("role", string(role)).
		Msg("participant joined")

	return *p, r.snapshotLocked(rm), nil
}

// RemoveParticipant deletes a participant and their vote. Removing the last
// participant deletes the room itself, reported via the deleted flag; the
// returned state is zero in that case and callers must stop addressing the
// room. Removing an absent participant is a no-op.
func (r *Registry) RemoveParticipant(roomID, participantID uuid.UUID) (models.RoomState, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return models.RoomState{}, false, ErrRoomNotFound
	}

	delete(rm.Participants, participantID)
	delete(rm.Votes, participantID)
	for i, id := range rm.Order {
		if id == participantID {
			rm.Order = append(rm.Order[:i], rm.Order[i+1:]...)
			break
		}
	}

	if len(rm.Participants) == 0 {
		r.deleteRoomLocked(rm)
		return models.RoomState{}, true, nil
	}

	return r.snapshotLocked(rm), false, nil
}

// UpdateConnectionStatus sets a participant's live-connection presence. The
// gateway is the sole caller. A participant that has already left the room
// is a no-op, not an error.
func (r *Registry) UpdateConnectionStatus(roomID, participantID uuid.UUID, connected bool) (models.RoomState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return models.RoomState{}, ErrRoomNotFound
	}

	if p, ok := rm.Participants[participantID]; ok {
		p.IsConnected = connected
	}

	return r.snapshotLocked(rm), nil
}

// CastVote records a voter's estimate. Votes are last-write-wins; no history
// is kept. Rejected while the room is revealed, for absent participants, for
// watchers, and for values outside the deck.
func (r *Registry) CastVote(roomID, participantID uuid.UUID, value string) (models.RoomState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return models.RoomState{}, ErrRoomNotFound
	}
	if rm.IsRevealed {
		return models.RoomState{}, ErrVotesRevealed
	}

	p, ok := rm.Participants[participantID]
	if !ok {
		return models.RoomState{}, ErrParticipantNotFound
	}
	if p.Role != models.RoleVoter {
		return models.RoomState{}, ErrNotAVoter
	}
	if !models.IsDeckValue(value) {
		return models.RoomState{}, ErrInvalidVoteValue
	}

	if v, ok := rm.Votes[participantID]; ok {
		now := r.clock.Now()
		v.Value = value
		v.VotedAt = &now
	}

	return r.snapshotLocked(rm), nil
}

// RevealVotes exposes the room's vote values. Idempotent: revealing an
// already-revealed room returns the unchanged room.
func (r *Registry) RevealVotes(roomID uuid.UUID) (models.RoomState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return models.RoomState{}, ErrRoomNotFound
	}

	rm.IsRevealed = true
	return r.snapshotLocked(rm), nil
}

// ResetVotes clears every vote, hides values again and replaces the story
// title for the next round. Idempotent and convergent.
func (r *Registry) ResetVotes(roomID uuid.UUID, storyTitle string) (models.RoomState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return models.RoomState{}, ErrRoomNotFound
	}

	for _, v := range rm.Votes {
		v.Value = ""
		v.VotedAt = nil
	}
	rm.IsRevealed = false
	rm.StoryTitle = storyTitle

	return r.snapshotLocked(rm), nil
}

// GetRoom retrieves a room snapshot by ID.
func (r *Registry) GetRoom(roomID uuid.UUID) (models.RoomState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return models.RoomState{}, ErrRoomNotFound
	}
	return r.snapshotLocked(rm), nil
}

// GetRoomByCode retrieves a room snapshot by its 6-digit join code.
func (r *Registry) GetRoomByCode(code string) (models.RoomState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byCode[code]
	if !ok {
		return models.RoomState{}, ErrRoomNotFound
	}
	return r.snapshotLocked(r.rooms[id]), nil
}

// State returns the room snapshot together with its derived statistics.
// Stats are nil while the room is not revealed. This is the payload source
// for every broadcast and room-state response.
func (r *Registry) State(roomID uuid.UUID) (models.RoomState, *models.VoteStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return models.RoomState{}, nil, ErrRoomNotFound
	}
	return r.snapshotLocked(rm), computeStats(rm), nil
}

// SweepStale deletes every room older than maxAge and returns how many were
// removed. Invoked periodically by the Sweeper; never self-triggered.
func (r *Registry) SweepStale(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.clock.Now().Add(-maxAge)
	removed := 0
	for _, rm := range r.rooms {
		if rm.CreatedAt.Before(cutoff) {
			r.deleteRoomLocked(rm)
			removed++
		}
	}

	if removed > 0 {
		log.Info().Int("removed", removed).Msg("swept stale rooms")
	}
	return removed
}

// RoomCount returns the number of live rooms.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) deleteRoomLocked(rm *models.Room) {
	delete(r.rooms, rm.ID)
	delete(r.byCode, rm.Code)
	log.Info().
		Str("room_id", rm.ID.String()).
		Str("code", rm.Code).
		Msg("room deleted")
}

// snapshotLocked projects the room into a RoomState. Participants and votes
// come out in join order. Callers must hold at least a read lock.
func (r *Registry) snapshotLocked(rm *models.Room) models.RoomState {
	state := models.RoomState{
		ID:           rm.ID,
		Code:         rm.Code,
		Participants: make([]models.Participant, 0, len(rm.Participants)),
		Votes:        make([]models.Vote, 0, len(rm.Votes)),
		IsRevealed:   rm.IsRevealed,
		StoryTitle:   rm.StoryTitle,
		CreatedAt:    rm.CreatedAt,
	}
	for _, id := range rm.Order {
		if p, ok := rm.Participants[id]; ok {
			state.Participants = append(state.Participants, *p)
		}
		if v, ok := rm.Votes[id]; ok {
			state.Votes = append(state.Votes, *v)
		}
	}
	return state
}
