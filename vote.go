package main

import (
	"fmt"
	"log"
	"math/rand"
	"sort"
)

// VoteManager collects the day votes of one session. Votes are overwrite
// semantics per voter; the live map is cleared into a day-indexed history
// when the day resolves.
type VoteManager struct {
	roster        *Roster
	phases        *PhaseMachine
	rng           *rand.Rand
	allowSelfVote bool

	votes   map[string]string           // voter id -> votee id
	history map[int]map[string][]string // day -> votee id -> voter ids
}

func NewVoteManager(roster *Roster, phases *PhaseMachine, rng *rand.Rand, allowSelfVote bool) *VoteManager {
	return &VoteManager{
		roster:        roster,
		phases:        phases,
		rng:           rng,
		allowSelfVote: allowSelfVote,
		votes:         make(map[string]string),
		history:       make(map[int]map[string][]string),
	}
}

// ReceiveVote records or overwrites the voter's vote for today.
func (vm *VoteManager) ReceiveVote(voterID, voteeID string) error {
	if _, phase := vm.phases.Current(); phase != PhaseDay {
		return fmt.Errorf("%w: voting only allowed during day phase", ErrValidation)
	}
	if !vm.roster.Alive(voterID) {
		return fmt.Errorf("%w: dead players cannot vote", ErrValidation)
	}
	if !vm.roster.Alive(voteeID) {
		return fmt.Errorf("%w: cannot vote for a dead player", ErrValidation)
	}
	if !vm.allowSelfVote && voterID == voteeID {
		return fmt.Errorf("%w: cannot vote for yourself", ErrValidation)
	}
	vm.votes[voterID] = voteeID
	return nil
}

// Tally counts the live votes per votee. Fails when nobody has voted.
func (vm *VoteManager) Tally() (map[string]int, error) {
	if len(vm.votes) == 0 {
		return nil, fmt.Errorf("%w: no votes cast", ErrValidation)
	}
	counts := make(map[string]int)
	for _, votee := range vm.votes {
		counts[votee]++
	}
	return counts, nil
}

// ExecutionTarget returns the votee with the most votes, breaking ties
// uniformly at random. Returns "" when no votes were cast, which abandons
// the village.
func (vm *VoteManager) ExecutionTarget() string {
	counts, err := vm.Tally()
	if err != nil {
		return ""
	}
	max := 0
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	var tied []string
	for votee, c := range counts {
		if c == max {
			tied = append(tied, votee)
		}
	}
	sort.Strings(tied) // map order is random; keep the draw reproducible under a seeded rng
	if len(tied) > 1 {
		log.Printf("Execution vote tied between %d candidates, drawing at random", len(tied))
	}
	return tied[vm.rng.Intn(len(tied))]
}

// RecordHistory folds the live vote map into today's target -> voters entry
// and clears the live map for the next day.
func (vm *VoteManager) RecordHistory() {
	day, _ := vm.phases.Current()
	entry := make(map[string][]string)
	for voter, votee := range vm.votes {
		entry[votee] = append(entry[votee], voter)
	}
	vm.history[day] = entry
	vm.votes = make(map[string]string)
}

// History returns the recorded day-indexed votes. Vote history is public
// record, so there is no viewer restriction.
func (vm *VoteManager) History() map[int]map[string][]string {
	return vm.history
}
