package main

import (
	"errors"
	"testing"
)

func TestReceiveVoteValidation(t *testing.T) {
	roster, phases, rng := newTestResolvers(t, 5, 1)
	vm := NewVoteManager(roster, phases, rng, false)
	players := roster.Players()
	a, b := players[0], players[1]

	// Still pre phase.
	if err := vm.ReceiveVote(a.ID, b.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("vote during pre = %v, want ErrValidation", err)
	}

	phases.Advance() // day 1

	if err := vm.ReceiveVote(a.ID, a.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("self vote = %v, want ErrValidation", err)
	}

	roster.Kill(b.ID)
	if err := vm.ReceiveVote(a.ID, b.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("vote for dead player = %v, want ErrValidation", err)
	}
	if err := vm.ReceiveVote(b.ID, a.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("vote by dead player = %v, want ErrValidation", err)
	}

	c := players[2]
	if err := vm.ReceiveVote(a.ID, c.ID); err != nil {
		t.Fatalf("valid vote rejected: %v", err)
	}
}

func TestReceiveVoteSelfVoteConfigurable(t *testing.T) {
	roster, phases, rng := newTestResolvers(t, 5, 1)
	vm := NewVoteManager(roster, phases, rng, true)
	phases.Advance()

	voter := roster.Players()[0]
	if err := vm.ReceiveVote(voter.ID, voter.ID); err != nil {
		t.Fatalf("self vote with allowSelfVote = %v", err)
	}
}

func TestReceiveVoteOverwrites(t *testing.T) {
	roster, phases, rng := newTestResolvers(t, 5, 1)
	vm := NewVoteManager(roster, phases, rng, false)
	phases.Advance()

	players := roster.Players()
	a, b, c := players[0], players[1], players[2]

	if err := vm.ReceiveVote(a.ID, b.ID); err != nil {
		t.Fatal(err)
	}
	if err := vm.ReceiveVote(a.ID, c.ID); err != nil {
		t.Fatal(err)
	}

	counts, err := vm.Tally()
	if err != nil {
		t.Fatal(err)
	}
	if counts[b.ID] != 0 || counts[c.ID] != 1 {
		t.Errorf("tally after overwrite = %v, want only 1 vote for %s", counts, c.ID)
	}
}

func TestTallyEmpty(t *testing.T) {
	roster, phases, rng := newTestResolvers(t, 5, 1)
	vm := NewVoteManager(roster, phases, rng, false)

	if _, err := vm.Tally(); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty tally = %v, want ErrValidation", err)
	}
}

func TestExecutionTargetMajority(t *testing.T) {
	roster, phases, rng := newTestResolvers(t, 5, 1)
	vm := NewVoteManager(roster, phases, rng, false)
	phases.Advance()

	players := roster.Players()
	target := players[0]
	for _, voter := range players[1:4] {
		if err := vm.ReceiveVote(voter.ID, target.ID); err != nil {
			t.Fatal(err)
		}
	}
	if err := vm.ReceiveVote(target.ID, players[1].ID); err != nil {
		t.Fatal(err)
	}

	if got := vm.ExecutionTarget(); got != target.ID {
		t.Errorf("execution target = %s, want %s", got, target.ID)
	}
}

func TestExecutionTargetNoVotes(t *testing.T) {
	roster, phases, rng := newTestResolvers(t, 5, 1)
	vm := NewVoteManager(roster, phases, rng, false)

	if got := vm.ExecutionTarget(); got != "" {
		t.Errorf("execution target with no votes = %q, want empty", got)
	}
}

func TestExecutionTargetTieBreakStaysWithinTied(t *testing.T) {
	roster, phases, rng := newTestResolvers(t, 5, 3)
	vm := NewVoteManager(roster, phases, rng, false)
	phases.Advance()

	players := roster.Players()
	a, b := players[0], players[1]
	if err := vm.ReceiveVote(players[2].ID, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := vm.ReceiveVote(players[3].ID, b.ID); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 20; i++ {
		got := vm.ExecutionTarget()
		if got != a.ID && got != b.ID {
			t.Fatalf("tie-break picked %s, outside the tied set {%s, %s}", got, a.ID, b.ID)
		}
	}
}

func TestRecordHistoryFoldsAndClears(t *testing.T) {
	roster, phases, rng := newTestResolvers(t, 5, 1)
	vm := NewVoteManager(roster, phases, rng, false)
	phases.Advance()

	players := roster.Players()
	target := players[0]
	if err := vm.ReceiveVote(players[1].ID, target.ID); err != nil {
		t.Fatal(err)
	}
	if err := vm.ReceiveVote(players[2].ID, target.ID); err != nil {
		t.Fatal(err)
	}

	vm.RecordHistory()

	history := vm.History()
	voters := history[1][target.ID]
	if len(voters) != 2 {
		t.Fatalf("day 1 history for %s has %d voters, want 2", target.ID, len(voters))
	}
	if _, err := vm.Tally(); !errors.Is(err, ErrValidation) {
		t.Fatal("live votes survived RecordHistory")
	}
}
