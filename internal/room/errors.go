package room

import "errors"

// ErrRoomNotFound is returned when a room ID or code resolves to no live room
var ErrRoomNotFound = errors.New("room not found")

// ErrParticipantNotFound is returned when a participant is absent from a room
var ErrParticipantNotFound = errors.New("participant not found")

// ErrDuplicateName is returned when a display name is already taken in a room,
// compared case-insensitively
var ErrDuplicateName = errors.New("display name already taken")

// ErrVotesRevealed is returned when a vote is cast while the room is revealed
var ErrVotesRevealed = errors.New("votes already revealed")

// ErrNotAVoter is returned when a watcher attempts to cast a vote
var ErrNotAVoter = errors.New("participant is not a voter")

// ErrInvalidVoteValue is returned when a vote value is outside the deck
var ErrInvalidVoteValue = errors.New("invalid vote value")
