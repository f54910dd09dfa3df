package main

import (
	"fmt"
	"math/rand"
)

// Alignment is what the seer and the medium learn about a player.
type Alignment string

const (
	AlignVillagers  Alignment = "villagers"
	AlignWerewolves Alignment = "werewolves"
)

// DivineRecord is one night's resolved divination.
type DivineRecord struct {
	TargetID string    `json:"target_id"`
	Result   Alignment `json:"result"`
}

// DivineManager holds the seer's pending request and resolved history for
// one session. At most one request is pending per night; a later valid
// request overwrites it.
type DivineManager struct {
	roster  *Roster
	phases  *PhaseMachine
	rng     *rand.Rand
	request string // pending target id, "" when none
	history map[int]DivineRecord
}

func NewDivineManager(roster *Roster, phases *PhaseMachine, rng *rand.Rand) *DivineManager {
	return &DivineManager{
		roster:  roster,
		phases:  phases,
		rng:     rng,
		history: make(map[int]DivineRecord),
	}
}

// ReceiveRequest validates and stores the seer's divination target.
func (dm *DivineManager) ReceiveRequest(actorID, targetID string) error {
	if _, phase := dm.phases.Current(); phase != PhaseNight {
		return fmt.Errorf("%w: divination only allowed during night phase", ErrValidation)
	}
	actor, ok := dm.roster.Get(actorID)
	if !ok || actor.Role != RoleSeer {
		return fmt.Errorf("%w: only the seer can divine", ErrValidation)
	}
	if actor.Status != StatusAlive {
		return fmt.Errorf("%w: dead players cannot act", ErrValidation)
	}
	target, ok := dm.roster.Get(targetID)
	if !ok || target.Status != StatusAlive {
		return fmt.Errorf("%w: cannot divine a dead player", ErrValidation)
	}
	if target.Role == RoleSeer {
		return fmt.Errorf("%w: the seer cannot divine themself", ErrValidation)
	}
	dm.request = targetID
	return nil
}

// Resolve records tonight's divination and reports whether it cursed the
// fox. A dead seer divines nothing. With no pending request a living seer
// divines a random living non-seer.
func (dm *DivineManager) Resolve() bool {
	seer, err := dm.roster.FindByRole(RoleSeer)
	if err != nil || seer.Status != StatusAlive {
		dm.request = ""
		return false
	}

	targetID := dm.request
	dm.request = ""
	if targetID == "" {
		target := pickRandom(dm.rng, dm.roster.Living(RoleSeer))
		if target == nil {
			return false
		}
		targetID = target.ID
	}

	target, ok := dm.roster.Get(targetID)
	if !ok {
		return false
	}

	result := AlignVillagers
	if target.Role.WerewolfSide() {
		result = AlignWerewolves
	}
	day, _ := dm.phases.Current()
	dm.history[day] = DivineRecord{TargetID: targetID, Result: result}

	return target.Role == RoleFox
}

// Result returns the divination history. Only the seer may read it, dead or
// alive.
func (dm *DivineManager) Result(viewerID string) (map[int]DivineRecord, error) {
	viewer, ok := dm.roster.Get(viewerID)
	if !ok || viewer.Role != RoleSeer {
		return nil, fmt.Errorf("%w: only the seer can read divination results", ErrAuthorization)
	}
	return dm.history, nil
}
