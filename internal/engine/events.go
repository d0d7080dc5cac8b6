package engine

import (
	"fmt"

	"github.com/marrowfield/vigil/internal/game"
)

// eventBeats is the pool of once-per-round narrative beats. Selection is
// state-dependent rather than random so that replays of a saved game read
// the same way.
var eventBeats = []string{
	"A cold wind worries the shutters. Nobody sleeps soundly tonight.",
	"The church bell tolls once, though no hand pulled the rope.",
	"Crows gather on the granary roof, watching the square in silence.",
	"Someone has left a wreath of dry wheat on the well. No one claims it.",
	"Frost creeps further up the chapel windows than the season allows.",
}

// resolveEvent emits the round's narrative beat and advances unconditionally.
func (c *Controller) resolveEvent(s *game.State) {
	idx := (s.Round + len(s.Living())) % len(eventBeats)
	s.Narrate(eventBeats[idx])
	if s.LastSacrificed != "" && s.SacrificedRound == s.Round {
		s.Narrate(fmt.Sprintf("The village keeps its distance from %s's empty chair.", s.LastSacrificed))
	}
}
