// Package roles validates and applies each role's special action against the
// aggregate. A resolver either commits an ability record plus a narrator
// message, or commits nothing and narrates the rejection.
package roles

import (
	"fmt"

	"github.com/marrowfield/vigil/internal/game"
)

// Listen resolves the listener's nightly check. The target must be living;
// the recorded boolean is clean exactly when the target's role sits outside
// the harvest faction. The outcome is visible on the listener channel only.
func Listen(s *game.State, actor game.Player, target string) bool {
	p, ok := s.PlayerByName(target)
	if !ok || !p.Alive {
		s.Append(game.NarratorName,
			fmt.Sprintf("%s strains to listen, but %q is beyond hearing.", actor.Name, target),
			game.MessageNarration, game.ChannelOnly(game.RoleListener))
		return false
	}
	isClean := p.Faction() != game.FactionHarvest
	s.RecordCheck(p.Name, isClean)
	verdict := "clean"
	if !isClean {
		verdict = "impure"
	}
	s.Append(game.NarratorName,
		fmt.Sprintf("%s listens at %s's door and hears something %s.", actor.Name, p.Name, verdict),
		game.MessageNarration, game.ChannelOnly(game.RoleListener))
	return true
}

// Protect resolves the guard's nightly protection. The target must be
// living, must not be the guard, and must differ from the previous round's
// guarded target. Violations narrate a failed protection and record nothing.
func Protect(s *game.State, actor game.Player, target string) bool {
	reject := func(reason string) bool {
		s.Append(game.NarratorName,
			fmt.Sprintf("%s's watch fails: %s.", actor.Name, reason),
			game.MessageNarration, game.ChannelOnly(game.RoleGuard))
		return false
	}
	p, ok := s.PlayerByName(target)
	if !ok || !p.Alive {
		return reject(fmt.Sprintf("%q is not among the living", target))
	}
	if p.Name == actor.Name {
		return reject("the guard cannot stand watch over themself")
	}
	if p.Name == s.LastGuarded {
		return reject(fmt.Sprintf("%s was already watched last night", p.Name))
	}
	s.RecordGuard(p.Name)
	s.Append(game.NarratorName,
		fmt.Sprintf("%s stands watch over %s until dawn.", actor.Name, p.Name),
		game.MessageNarration, game.ChannelOnly(game.RoleGuard))
	return true
}

// ValidKillTarget reports whether the marked may direct their kill at the
// named player: living, and outside the harvest faction.
func ValidKillTarget(s *game.State, target string) bool {
	p, ok := s.PlayerByName(target)
	return ok && p.Alive && p.Faction() != game.FactionHarvest
}

// GuardedThisRound reports whether the name is under the current round's
// protection.
func GuardedThisRound(s *game.State, name string) bool {
	for _, rec := range s.Guards {
		if rec.Round == s.Round && rec.Target == name {
			return true
		}
	}
	return false
}

// ApplyKill lands the resolved night kill, honoring the guard's protection.
// It returns the name of the victim, or empty when the protection held.
func ApplyKill(s *game.State, target string) string {
	if GuardedThisRound(s, target) {
		s.Narrate(fmt.Sprintf("A scream in the dark, then silence. %s is shaken but unharmed.", target))
		return ""
	}
	if !s.Kill(target) {
		return ""
	}
	s.Narrate(fmt.Sprintf("Dawn finds %s cold in the frost.", target))
	return target
}

// Examine resolves the coroner's passive reveal. It fires only when a
// sacrifice occurred the prior day, takes no input, and is visible on the
// coroner channel only.
func Examine(s *game.State) bool {
	if s.LastSacrificed == "" || s.SacrificedRound != s.Round {
		return false
	}
	p, ok := s.PlayerByName(s.LastSacrificed)
	if !ok {
		return false
	}
	isClean := p.Faction() != game.FactionHarvest
	s.RecordReport(p.Name, isClean)
	verdict := "clean"
	if !isClean {
		verdict = "impure"
	}
	s.Append(game.NarratorName,
		fmt.Sprintf("The coroner turns %s's body over and finds it %s.", p.Name, verdict),
		game.MessageNarration, game.ChannelOnly(game.RoleCoroner))
	return true
}

// AnnounceTwins privately reveals the pairing to both members at setup.
func AnnounceTwins(s *game.State) {
	if len(s.TwinPair) != 2 {
		return
	}
	a, b := s.TwinPair[0], s.TwinPair[1]
	s.Append(game.NarratorName,
		fmt.Sprintf("You were born under the same moon as %s. Trust them.", b),
		game.MessageNarration, game.PlayerOnly(a))
	s.Append(game.NarratorName,
		fmt.Sprintf("You were born under the same moon as %s. Trust them.", a),
		game.MessageNarration, game.PlayerOnly(b))
}

// Awaken fires the one-time heretic conversion: the dormant heretic is
// relabeled into the risen minority role, learns it privately, and the
// harvest channel learns only that a hidden ally exists. Neither side learns
// the other's membership.
func Awaken(s *game.State) bool {
	if s.HereticAwakened {
		return false
	}
	var heretic *game.Player
	for i := range s.Players {
		if s.Players[i].Role == game.RoleHeretic && s.Players[i].Alive {
			heretic = &s.Players[i]
			break
		}
	}
	s.HereticAwakened = true
	if heretic == nil {
		return false
	}
	heretic.Role = game.RoleRisen
	s.Append(game.NarratorName,
		"Something old stirs in you. You serve the harvest now, alone and unseen.",
		game.MessageNarration, game.PlayerOnly(heretic.Name))
	s.Append(game.NarratorName,
		"A hidden ally walks among the flock. You will never know their face.",
		game.MessageNarration, game.ChannelOnly(game.RoleMarked))
	return true
}
