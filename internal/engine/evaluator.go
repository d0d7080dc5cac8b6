package engine

import "github.com/marrowfield/vigil/internal/game"

// Evaluator decides whether a faction has won given the current roster. The
// controller consults it at the start of every step and freezes the game the
// moment it returns a faction.
type Evaluator interface {
	Winner(roster []game.Player) (game.Faction, bool)
}

// EvaluatorFunc adapts a function into an Evaluator.
type EvaluatorFunc func(roster []game.Player) (game.Faction, bool)

// Winner executes f(roster).
func (f EvaluatorFunc) Winner(roster []game.Player) (game.Faction, bool) {
	return f(roster)
}

// StandardEvaluator applies the usual parity rules: the lambs win once no
// living harvest member remains; the harvest wins once it matches or
// outnumbers the living lambs.
type StandardEvaluator struct{}

// Winner implements Evaluator.
func (StandardEvaluator) Winner(roster []game.Player) (game.Faction, bool) {
	harvest, lambs := 0, 0
	for _, p := range roster {
		if !p.Alive {
			continue
		}
		if p.Faction() == game.FactionHarvest {
			harvest++
		} else {
			lambs++
		}
	}
	if harvest == 0 {
		return game.FactionLamb, true
	}
	if harvest >= lambs {
		return game.FactionHarvest, true
	}
	return "", false
}
