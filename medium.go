package main

import "fmt"

// MediumManager records, per day, the alignment of the player executed by
// the village, as revealed to a living medium.
type MediumManager struct {
	roster  *Roster
	phases  *PhaseMachine
	history map[int]Alignment
}

func NewMediumManager(roster *Roster, phases *PhaseMachine) *MediumManager {
	return &MediumManager{
		roster:  roster,
		phases:  phases,
		history: make(map[int]Alignment),
	}
}

// Reveal records the executed player's alignment for today. Nothing is
// recorded when the medium is dead or the configuration has none.
func (mm *MediumManager) Reveal(targetID string) {
	medium, err := mm.roster.FindByRole(RoleMedium)
	if err != nil || medium.Status != StatusAlive {
		return
	}
	target, ok := mm.roster.Get(targetID)
	if !ok {
		return
	}
	result := AlignVillagers
	if target.Role.WerewolfSide() {
		result = AlignWerewolves
	}
	day, _ := mm.phases.Current()
	mm.history[day] = result
}

// Result returns the reveal history. Only the medium may read it, dead or
// alive, and not before the session has left the pre phase.
func (mm *MediumManager) Result(viewerID string) (map[int]Alignment, error) {
	if _, phase := mm.phases.Current(); phase == PhasePre {
		return nil, fmt.Errorf("%w: medium results are not available before the session starts", ErrAuthorization)
	}
	viewer, ok := mm.roster.Get(viewerID)
	if !ok || viewer.Role != RoleMedium {
		return nil, fmt.Errorf("%w: only the medium can read reveal results", ErrAuthorization)
	}
	return mm.history, nil
}
