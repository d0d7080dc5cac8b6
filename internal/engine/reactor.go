package engine

import "github.com/marrowfield/vigil/internal/game"

// Reactor receives death notifications and adjusts the roster's emotional
// tags. It is the only collaborator allowed to touch Player.Mood.
type Reactor interface {
	OnDeath(s *game.State, victim string)
}

// MoodReactor is the default Reactor: the survivors grow uneasy, and a twin
// who loses their partner grieves.
type MoodReactor struct{}

// OnDeath implements Reactor.
func (MoodReactor) OnDeath(s *game.State, victim string) {
	partner, isTwin := s.TwinPartner(victim)
	for _, p := range s.Living() {
		switch {
		case isTwin && p.Name == partner:
			s.SetMood(p.Name, "grieving")
		default:
			s.SetMood(p.Name, "uneasy")
		}
	}
}

// NopReactor ignores deaths. Useful in tests.
type NopReactor struct{}

// OnDeath implements Reactor.
func (NopReactor) OnDeath(*game.State, string) {}
