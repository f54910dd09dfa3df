package main

import (
	"fmt"
	"math/rand"
)

type PlayerStatus string

const (
	StatusAlive PlayerStatus = "alive"
	StatusDead  PlayerStatus = "dead"
)

// Player is one seated participant. Role is assigned once at session start
// and never changes; status only ever moves alive -> dead.
type Player struct {
	ID          string
	DisplayName string
	Status      PlayerStatus
	Role        Role
}

// User identifies a chat-group member joining a session, before any role
// exists for them.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"name"`
}

// PlayerState is the per-viewer projection of a player's own seat. Unknown
// viewers get the spectator projection instead of an error.
type PlayerState struct {
	Status    string   `json:"status"`
	Role      string   `json:"role"`
	Teammates []string `json:"teammates,omitempty"`
}

// Roster holds the seated players of one session.
type Roster struct {
	players []*Player
	byID    map[string]*Player
	rng     *rand.Rand
}

func NewRoster(rng *rand.Rand) *Roster {
	return &Roster{byID: make(map[string]*Player), rng: rng}
}

// AssignRoles seats the given users with a shuffled role list for their
// count. Fails when no role table exists for the count.
func (ro *Roster) AssignRoles(users []User) error {
	roles, err := rolesForCount(len(users))
	if err != nil {
		return err
	}
	ro.rng.Shuffle(len(roles), func(i, j int) {
		roles[i], roles[j] = roles[j], roles[i]
	})
	for i, u := range users {
		p := &Player{ID: u.ID, DisplayName: u.DisplayName, Status: StatusAlive, Role: roles[i]}
		ro.players = append(ro.players, p)
		ro.byID[p.ID] = p
	}
	return nil
}

// Kill marks the given players dead. Already-dead and unknown ids are
// ignored, so callers can re-kill without checking first.
func (ro *Roster) Kill(ids ...string) {
	for _, id := range ids {
		if p, ok := ro.byID[id]; ok {
			p.Status = StatusDead
		}
	}
}

// Get returns the seated player for an id.
func (ro *Roster) Get(id string) (*Player, bool) {
	p, ok := ro.byID[id]
	return p, ok
}

// Alive reports whether id is seated and still alive.
func (ro *Roster) Alive(id string) bool {
	p, ok := ro.byID[id]
	return ok && p.Status == StatusAlive
}

// ProjectState returns what the viewer may know about their own seat.
// Teammate ids are attached only for the roles defined to have teammates:
// werewolves see the pack, freemasons see each other, the immoralist sees
// the fox.
func (ro *Roster) ProjectState(viewerID string) PlayerState {
	p, ok := ro.byID[viewerID]
	if !ok {
		return PlayerState{Status: "spectator", Role: "spectator"}
	}
	state := PlayerState{Status: string(p.Status), Role: string(p.Role)}
	switch p.Role {
	case RoleWerewolf:
		state.Teammates = ro.idsWithRole(RoleWerewolf, p.ID)
	case RoleFreemason:
		state.Teammates = ro.idsWithRole(RoleFreemason, p.ID)
	case RoleImmoralist:
		state.Teammates = ro.idsWithRole(RoleFox, "")
	}
	return state
}

func (ro *Roster) idsWithRole(role Role, excludeID string) []string {
	var ids []string
	for _, p := range ro.players {
		if p.Role == role && p.ID != excludeID {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// FindByRole returns the holder of a role, dead or alive. Optional roles are
// absent in smaller configurations, which is a not-found condition rather
// than a bug.
func (ro *Roster) FindByRole(role Role) (*Player, error) {
	for _, p := range ro.players {
		if p.Role == role {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: no player holds role %s", ErrNotFound, role)
}

// Living returns the living players, skipping any excluded roles. Resolvers
// use this for random fallback targeting.
func (ro *Roster) Living(exclude ...Role) []*Player {
	var out []*Player
	for _, p := range ro.players {
		if p.Status != StatusAlive {
			continue
		}
		excluded := false
		for _, r := range exclude {
			if p.Role == r {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, p)
		}
	}
	return out
}

// Players returns every seat with roles visible. Only broadcast once the
// session has concluded.
func (ro *Roster) Players() []Player {
	out := make([]Player, 0, len(ro.players))
	for _, p := range ro.players {
		out = append(out, *p)
	}
	return out
}

// PlayersRedacted returns every seat with the role stripped, for mid-game
// broadcasts.
func (ro *Roster) PlayersRedacted() []Player {
	out := make([]Player, 0, len(ro.players))
	for _, p := range ro.players {
		c := *p
		c.Role = ""
		out = append(out, c)
	}
	return out
}

// pickRandom selects one player uniformly from candidates, or nil when the
// set is empty.
func pickRandom(rng *rand.Rand, candidates []*Player) *Player {
	if len(candidates) == 0 {
		return nil
	}
	return candidates[rng.Intn(len(candidates))]
}
