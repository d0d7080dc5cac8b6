package game

import "strings"

// Faction identifies which side of the hidden split a role serves.
type Faction string

const (
	// FactionHarvest is the hidden minority trying to thin the flock.
	FactionHarvest Faction = "harvest"
	// FactionLamb is the majority trying to root the harvest out.
	FactionLamb Faction = "lamb"
)

// Role is the fixed enumeration of character roles. Roles never change at
// runtime except for the one-time heretic awakening, which rewrites the
// dormant heretic into the risen role.
type Role string

const (
	// RoleMarked carries the nightly collective kill. Harvest.
	RoleMarked Role = "marked"
	// RoleHeretic is dormant: it counts for the lambs until it awakens.
	RoleHeretic Role = "heretic"
	// RoleRisen is the awakened heretic. Harvest, but it never joins the
	// marked channel and the marked never learn who it is.
	RoleRisen Role = "risen"
	// RoleListener checks one living player each night.
	RoleListener Role = "listener"
	// RoleGuard protects one living player each night.
	RoleGuard Role = "guard"
	// RoleCoroner passively examines the previous day's sacrifice.
	RoleCoroner Role = "coroner"
	// RoleTwin knows the identity of its partner and nothing else.
	RoleTwin Role = "twin"
	// RoleShepherd has no ability. Lamb.
	RoleShepherd Role = "shepherd"
)

// Faction reports which side the role currently serves. The dormant heretic
// counts as a lamb until awakened.
func (r Role) Faction() Faction {
	switch r {
	case RoleMarked, RoleRisen:
		return FactionHarvest
	default:
		return FactionLamb
	}
}

// HasNightAbility reports whether the role takes an active night turn.
func (r Role) HasNightAbility() bool {
	switch r {
	case RoleMarked, RoleListener, RoleGuard:
		return true
	default:
		return false
	}
}

// ParseRole converts a config string to a Role.
func ParseRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	switch role {
	case RoleMarked, RoleHeretic, RoleRisen, RoleListener, RoleGuard, RoleCoroner, RoleTwin, RoleShepherd:
		return role, true
	}
	return "", false
}

// Player is one roster member. Dead players remain in the roster for the
// transcript and the prompts; only Alive flips.
type Player struct {
	Name    string `json:"name"`
	Role    Role   `json:"role"`
	Alive   bool   `json:"alive"`
	Persona string `json:"persona,omitempty"`
	Mood    string `json:"mood,omitempty"`
}

// Faction reports the player's current faction.
func (p Player) Faction() Faction {
	return p.Role.Faction()
}
