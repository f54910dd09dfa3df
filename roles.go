package main

import "fmt"

// Role is a player's hidden role for the whole session.
type Role string

const (
	RoleVillager   Role = "villager"
	RoleSeer       Role = "seer"
	RoleMedium     Role = "medium"
	RoleHunter     Role = "hunter"
	RoleFreemason  Role = "freemason"
	RoleWerewolf   Role = "werewolf"
	RoleMadman     Role = "madman"
	RoleFanatic    Role = "fanatic"
	RoleFox        Role = "fox"
	RoleImmoralist Role = "immoralist"
)

// WerewolfSide reports how the role shows up to the seer and the medium.
// Madman and fanatic side with the wolves but divine as villagers; the fox
// divines as a villager too.
func (r Role) WerewolfSide() bool {
	return r == RoleWerewolf
}

// roleTables maps player count to the fixed role multiset for that count.
// Role assignment shuffles one of these lists; counts without an entry
// cannot start a session.
var roleTables = map[int][]Role{
	5:  {RoleWerewolf, RoleSeer, RoleVillager, RoleVillager, RoleVillager},
	6:  {RoleWerewolf, RoleSeer, RoleMadman, RoleVillager, RoleVillager, RoleVillager},
	7:  {RoleWerewolf, RoleSeer, RoleMedium, RoleMadman, RoleVillager, RoleVillager, RoleVillager},
	8:  {RoleWerewolf, RoleSeer, RoleMedium, RoleHunter, RoleMadman, RoleVillager, RoleVillager, RoleVillager},
	9:  {RoleWerewolf, RoleWerewolf, RoleSeer, RoleMedium, RoleHunter, RoleMadman, RoleVillager, RoleVillager, RoleVillager},
	10: {RoleWerewolf, RoleWerewolf, RoleSeer, RoleMedium, RoleHunter, RoleMadman, RoleFox, RoleVillager, RoleVillager, RoleVillager},
	11: {RoleWerewolf, RoleWerewolf, RoleSeer, RoleMedium, RoleHunter, RoleMadman, RoleFox, RoleImmoralist, RoleVillager, RoleVillager, RoleVillager},
	12: {RoleWerewolf, RoleWerewolf, RoleSeer, RoleMedium, RoleHunter, RoleFreemason, RoleFreemason, RoleMadman, RoleFox, RoleImmoralist, RoleVillager, RoleVillager},
	13: {RoleWerewolf, RoleWerewolf, RoleWerewolf, RoleSeer, RoleMedium, RoleHunter, RoleFreemason, RoleFreemason, RoleMadman, RoleFox, RoleImmoralist, RoleVillager, RoleVillager},
	14: {RoleWerewolf, RoleWerewolf, RoleWerewolf, RoleSeer, RoleMedium, RoleHunter, RoleFreemason, RoleFreemason, RoleMadman, RoleFanatic, RoleFox, RoleImmoralist, RoleVillager, RoleVillager},
	15: {RoleWerewolf, RoleWerewolf, RoleWerewolf, RoleSeer, RoleMedium, RoleHunter, RoleFreemason, RoleFreemason, RoleMadman, RoleFanatic, RoleFox, RoleImmoralist, RoleVillager, RoleVillager, RoleVillager},
}

// rolesForCount returns the role list for a player count, copied so the
// caller can shuffle it in place.
func rolesForCount(n int) ([]Role, error) {
	table, ok := roleTables[n]
	if !ok {
		return nil, fmt.Errorf("%w: no role configuration for %d players", ErrValidation, n)
	}
	roles := make([]Role, len(table))
	copy(roles, table)
	return roles, nil
}
