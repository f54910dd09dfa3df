package main

import (
	"fmt"
	"math/rand"
)

// GuardManager holds the hunter's pending guard request and resolved history
// for one session.
type GuardManager struct {
	roster  *Roster
	phases  *PhaseMachine
	rng     *rand.Rand
	request string
	history map[int]string // day -> guarded player id
}

func NewGuardManager(roster *Roster, phases *PhaseMachine, rng *rand.Rand) *GuardManager {
	return &GuardManager{
		roster:  roster,
		phases:  phases,
		rng:     rng,
		history: make(map[int]string),
	}
}

// ReceiveRequest validates and stores the hunter's guard target. The hunter
// cannot guard themself.
func (gm *GuardManager) ReceiveRequest(actorID, targetID string) error {
	if _, phase := gm.phases.Current(); phase != PhaseNight {
		return fmt.Errorf("%w: guarding only allowed during night phase", ErrValidation)
	}
	actor, ok := gm.roster.Get(actorID)
	if !ok || actor.Role != RoleHunter {
		return fmt.Errorf("%w: only the hunter can guard", ErrValidation)
	}
	if actor.Status != StatusAlive {
		return fmt.Errorf("%w: dead players cannot act", ErrValidation)
	}
	target, ok := gm.roster.Get(targetID)
	if !ok || target.Status != StatusAlive {
		return fmt.Errorf("%w: cannot guard a dead player", ErrValidation)
	}
	if target.Role == RoleHunter {
		return fmt.Errorf("%w: the hunter cannot guard themself", ErrValidation)
	}
	gm.request = targetID
	return nil
}

// ResolveAgainst resolves tonight's guard and reports whether it covered the
// attack target. A dead hunter guards nobody and leaves no history. With no
// pending request a living hunter guards a random living non-hunter.
func (gm *GuardManager) ResolveAgainst(attackTargetID string) bool {
	hunter, err := gm.roster.FindByRole(RoleHunter)
	if err != nil || hunter.Status != StatusAlive {
		gm.request = ""
		return false
	}

	targetID := gm.request
	gm.request = ""
	if targetID == "" {
		target := pickRandom(gm.rng, gm.roster.Living(RoleHunter))
		if target == nil {
			return false
		}
		targetID = target.ID
	}

	day, _ := gm.phases.Current()
	gm.history[day] = targetID

	return targetID == attackTargetID
}

// Discard drops a pending request the night left unresolved, such as when
// the attack failed before the guard was consulted. Requests never carry
// over between nights.
func (gm *GuardManager) Discard() {
	gm.request = ""
}

// History returns the guard history. Only the hunter may read it, dead or
// alive, and not before the session has left the pre phase.
func (gm *GuardManager) History(viewerID string) (map[int]string, error) {
	if _, phase := gm.phases.Current(); phase == PhasePre {
		return nil, fmt.Errorf("%w: guard history is not available before the session starts", ErrAuthorization)
	}
	viewer, ok := gm.roster.Get(viewerID)
	if !ok || viewer.Role != RoleHunter {
		return nil, fmt.Errorf("%w: only the hunter can read guard history", ErrAuthorization)
	}
	return gm.history, nil
}
