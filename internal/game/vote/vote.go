// Package vote tallies ballots and applies the tie rules for day
// eliminations and night kills.
package vote

import (
	"sort"

	"github.com/marrowfield/vigil/internal/game"
)

// Decision is the outcome class of a ballot resolution.
type Decision string

const (
	// DecisionEliminate removes the target from play (day vote).
	DecisionEliminate Decision = "eliminate"
	// DecisionRevote forces one constrained re-discussion and fresh vote.
	DecisionRevote Decision = "revote"
	// DecisionNoElimination ends the day vote with nobody removed.
	DecisionNoElimination Decision = "no_elimination"
	// DecisionKill applies the night kill to the target.
	DecisionKill Decision = "kill"
	// DecisionRediscuss sends the marked back to their discussion.
	DecisionRediscuss Decision = "rediscuss"
	// DecisionNoKill ends the night with nobody killed.
	DecisionNoKill Decision = "no_kill"
)

// Outcome is a resolved ballot set: the decision, the unique target when one
// exists, and the top-tied names otherwise.
type Outcome struct {
	Decision Decision
	Target   string
	Tied     []string
}

// Tally counts ballots per target.
func Tally(ballots []game.Vote) map[string]int {
	counts := make(map[string]int, len(ballots))
	for _, b := range ballots {
		if b.Target == "" {
			continue
		}
		counts[b.Target]++
	}
	return counts
}

// Leaders returns the names tied for the highest count, sorted for
// deterministic output, along with that count. An empty tally yields nil.
func Leaders(counts map[string]int) ([]string, int) {
	best := 0
	for _, n := range counts {
		if n > best {
			best = n
		}
	}
	if best == 0 {
		return nil, 0
	}
	var leaders []string
	for name, n := range counts {
		if n == best {
			leaders = append(leaders, name)
		}
	}
	sort.Strings(leaders)
	return leaders, best
}

// ResolveDay applies the day-vote rules: a unique plurality eliminates its
// target; the first tie forces exactly one revote; a tie during the revote
// eliminates nobody. An empty ballot set also eliminates nobody.
func ResolveDay(ballots []game.Vote, isRevote bool) Outcome {
	leaders, _ := Leaders(Tally(ballots))
	switch {
	case len(leaders) == 0:
		return Outcome{Decision: DecisionNoElimination}
	case len(leaders) == 1:
		return Outcome{Decision: DecisionEliminate, Target: leaders[0]}
	case isRevote:
		return Outcome{Decision: DecisionNoElimination, Tied: leaders}
	default:
		return Outcome{Decision: DecisionRevote, Tied: leaders}
	}
}

// ResolveNight applies the kill-vote rules: a unique plurality kills its
// target; a tie sends the marked back to discussion until the revote cap,
// after which nobody is killed. An empty ballot set kills nobody.
func ResolveNight(ballots []game.Vote, revotes, maxRevotes int) Outcome {
	leaders, _ := Leaders(Tally(ballots))
	switch {
	case len(leaders) == 0:
		return Outcome{Decision: DecisionNoKill}
	case len(leaders) == 1:
		return Outcome{Decision: DecisionKill, Target: leaders[0]}
	case revotes >= maxRevotes:
		return Outcome{Decision: DecisionNoKill, Tied: leaders}
	default:
		return Outcome{Decision: DecisionRediscuss, Tied: leaders}
	}
}
