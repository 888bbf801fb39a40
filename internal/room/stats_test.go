package room

import (
	"testing"

	"github.com/pointroom/pointroom/internal/models"
)

func setupVotedRoom(t *testing.T, r *Registry, values []string) models.RoomState {
	t.Helper()
	state := r.CreateRoom()
	for i, value := range values {
		name := string(rune('a' + i))
		p, _, err := r.AddParticipant(state.ID, name, models.RoleVoter)
		if err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
		if _, err := r.CastVote(state.ID, p.ID, value); err != nil {
			t.Fatalf("cast %s: %v", value, err)
		}
	}
	return state
}

func TestStatsNilWhileHidden(t *testing.T) {
	r := newTestRegistry()
	state := setupVotedRoom(t, r, []string{"5"})

	_, stats, err := r.State(state.ID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if stats != nil {
		t.Fatalf("expected nil stats before reveal, got %+v", stats)
	}
}

func TestStatsMixedVotes(t *testing.T) {
	r := newTestRegistry()
	state := setupVotedRoom(t, r, []string{"5", "8", "5"})
	r.RevealVotes(state.ID)

	_, stats, err := r.State(state.ID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if stats == nil {
		t.Fatal("expected stats after reveal")
	}
	if *stats.Min != "5" || *stats.Max != "8" {
		t.Fatalf("expected min=5 max=8, got min=%s max=%s", *stats.Min, *stats.Max)
	}
	if *stats.Average != 6.0 {
		t.Fatalf("expected average 6.0, got %f", *stats.Average)
	}
	if stats.HasConsensus {
		t.Fatal("expected no consensus for mixed votes")
	}
	if stats.Distribution["5"] != 2 || stats.Distribution["8"] != 1 {
		t.Fatalf("unexpected distribution %+v", stats.Distribution)
	}
}

func TestStatsConsensus(t *testing.T) {
	r := newTestRegistry()
	state := setupVotedRoom(t, r, []string{"8", "8"})
	r.RevealVotes(state.ID)

	_, stats, _ := r.State(state.ID)
	if stats == nil || !stats.HasConsensus {
		t.Fatalf("expected consensus for identical votes, got %+v", stats)
	}
}

func TestStatsNoValuesCast(t *testing.T) {
	r := newTestRegistry()
	state := r.CreateRoom()
	r.AddParticipant(state.ID, "alice", models.RoleVoter)
	r.RevealVotes(state.ID)

	_, stats, _ := r.State(state.ID)
	if stats == nil {
		t.Fatal("expected empty stats, not nil, for a revealed room")
	}
	if stats.Min != nil || stats.Max != nil || stats.Average != nil {
		t.Fatalf("expected nil min/max/average, got %+v", stats)
	}
	if stats.HasConsensus {
		t.Fatal("expected no consensus without votes")
	}
	if len(stats.Distribution) != 0 {
		t.Fatalf("expected empty distribution, got %+v", stats.Distribution)
	}
}

func TestStatsIgnoresWatchersAndEmptyVotes(t *testing.T) {
	r := newTestRegistry()
	state := r.CreateRoom()
	alice, _, _ := r.AddParticipant(state.ID, "alice", models.RoleVoter)
	r.AddParticipant(state.ID, "bob", models.RoleVoter) // never votes
	r.AddParticipant(state.ID, "carol", models.RoleWatcher)
	r.CastVote(state.ID, alice.ID, "13")
	r.RevealVotes(state.ID)

	_, stats, _ := r.State(state.ID)
	if *stats.Min != "13" || *stats.Max != "13" || *stats.Average != 13.0 {
		t.Fatalf("expected single 13 vote in stats, got %+v", stats)
	}
	if !stats.HasConsensus {
		t.Fatal("a single distinct token is consensus")
	}
}
