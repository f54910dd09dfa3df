package main

import (
	"fmt"
	"log"
	"math/rand"
)

// AttackManager holds the werewolves' pending attack request and resolved
// history for one session. The pack shares one request slot: any living
// werewolf may overwrite it until the night resolves.
type AttackManager struct {
	roster  *Roster
	phases  *PhaseMachine
	rng     *rand.Rand
	guards  *GuardManager
	request string
	history map[int]string // day -> attacked player id, recorded even when the attack fails
}

func NewAttackManager(roster *Roster, phases *PhaseMachine, rng *rand.Rand, guards *GuardManager) *AttackManager {
	return &AttackManager{
		roster:  roster,
		phases:  phases,
		rng:     rng,
		guards:  guards,
		history: make(map[int]string),
	}
}

// ReceiveRequest validates and stores the pack's attack target.
func (am *AttackManager) ReceiveRequest(actorID, targetID string) error {
	if _, phase := am.phases.Current(); phase != PhaseNight {
		return fmt.Errorf("%w: attacking only allowed during night phase", ErrValidation)
	}
	actor, ok := am.roster.Get(actorID)
	if !ok || actor.Role != RoleWerewolf {
		return fmt.Errorf("%w: only werewolves can attack", ErrValidation)
	}
	if actor.Status != StatusAlive {
		return fmt.Errorf("%w: dead players cannot act", ErrValidation)
	}
	target, ok := am.roster.Get(targetID)
	if !ok || target.Status != StatusAlive {
		return fmt.Errorf("%w: cannot attack a dead player", ErrValidation)
	}
	if target.Role == RoleWerewolf {
		return fmt.Errorf("%w: werewolves cannot attack their own", ErrValidation)
	}
	am.request = targetID
	return nil
}

// Resolve picks tonight's target (requested, or a random living
// non-werewolf), records it, and carries out the kill unless the target is
// the fox (immune) or the hunter covered them. Returns the killed player id,
// or "" when nobody died.
func (am *AttackManager) Resolve() string {
	targetID := am.request
	am.request = ""
	if targetID == "" {
		target := pickRandom(am.rng, am.roster.Living(RoleWerewolf))
		if target == nil {
			return ""
		}
		targetID = target.ID
	}

	// The chosen target goes into history whether or not the attack lands.
	day, _ := am.phases.Current()
	am.history[day] = targetID

	target, ok := am.roster.Get(targetID)
	if !ok {
		return ""
	}

	if target.Role == RoleFox {
		log.Printf("Attack on %s failed: the fox shrugs it off", target.DisplayName)
		return ""
	}

	if am.guards.ResolveAgainst(targetID) {
		log.Printf("Attack on %s failed: the hunter stood guard", target.DisplayName)
		return ""
	}

	am.roster.Kill(targetID)
	log.Printf("Werewolves killed %s", target.DisplayName)
	return targetID
}

// History returns the attack history. Only werewolves may read it, dead or
// alive, and not before the session has left the pre phase.
func (am *AttackManager) History(viewerID string) (map[int]string, error) {
	if _, phase := am.phases.Current(); phase == PhasePre {
		return nil, fmt.Errorf("%w: attack history is not available before the session starts", ErrAuthorization)
	}
	viewer, ok := am.roster.Get(viewerID)
	if !ok || viewer.Role != RoleWerewolf {
		return nil, fmt.Errorf("%w: only werewolves can read attack history", ErrAuthorization)
	}
	return am.history, nil
}
