package models

import (
	"time"

	"github.com/google/uuid"
)

// FibonacciDeck is the closed set of legal vote values.
var FibonacciDeck = []string{"1", "2", "3", "5", "8", "13", "21"}

// IsDeckValue reports whether value is a member of the Fibonacci deck.
func IsDeckValue(value string) bool {
	for _, v := range FibonacciDeck {
		if v == value {
			return true
		}
	}
	return false
}

// Vote holds the current estimate of a single voter. An empty Value means
// the voter has not cast yet; VotedAt is nil in that case.
type Vote struct {
	ParticipantID uuid.UUID  `json:"participantId"`
	Value         string     `json:"value,omitempty"`
	VotedAt       *time.Time `json:"votedAt,omitempty"`
}

// VoteStats is derived from a revealed room's votes. It is computed on
// demand and never stored. Min, Max and Average are nil when no votes
// carry a value.
type VoteStats struct {
	Min          *string        `json:"min"`
	Max          *string        `json:"max"`
	Average      *float64       `json:"average"`
	HasConsensus bool           `json:"hasConsensus"`
	Distribution map[string]int `json:"distribution"`
}
