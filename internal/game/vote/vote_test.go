package vote

import (
	"reflect"
	"testing"

	"github.com/marrowfield/vigil/internal/game"
)

func ballots(pairs ...[2]string) []game.Vote {
	out := make([]game.Vote, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, game.Vote{From: p[0], Target: p[1]})
	}
	return out
}

func TestResolveDayPluralityEliminates(t *testing.T) {
	got := ResolveDay(ballots(
		[2]string{"Abel", "Oswin"},
		[2]string{"Mirren", "Oswin"},
		[2]string{"Oswin", "Abel"},
	), false)
	if got.Decision != DecisionEliminate || got.Target != "Oswin" {
		t.Fatalf("expected Oswin eliminated, got %+v", got)
	}
}

func TestResolveDayFirstTieForcesRevote(t *testing.T) {
	got := ResolveDay(ballots(
		[2]string{"Abel", "Oswin"},
		[2]string{"Mirren", "Petra"},
	), false)
	if got.Decision != DecisionRevote {
		t.Fatalf("expected revote, got %+v", got)
	}
	if !reflect.DeepEqual(got.Tied, []string{"Oswin", "Petra"}) {
		t.Fatalf("expected sorted tied pair, got %+v", got.Tied)
	}
}

func TestResolveDaySecondTieEliminatesNobody(t *testing.T) {
	got := ResolveDay(ballots(
		[2]string{"Abel", "Oswin"},
		[2]string{"Mirren", "Petra"},
	), true)
	if got.Decision != DecisionNoElimination {
		t.Fatalf("expected no elimination on revote tie, got %+v", got)
	}
}

func TestResolveDayEmptyBallotsEliminateNobody(t *testing.T) {
	if got := ResolveDay(nil, false); got.Decision != DecisionNoElimination {
		t.Fatalf("expected no elimination, got %+v", got)
	}
}

func TestResolveNightPluralityKills(t *testing.T) {
	got := ResolveNight(ballots(
		[2]string{"Oswin", "Abel"},
		[2]string{"Petra", "Abel"},
	), 0, 3)
	if got.Decision != DecisionKill || got.Target != "Abel" {
		t.Fatalf("expected Abel killed, got %+v", got)
	}
}

func TestResolveNightTieRediscussesUntilCap(t *testing.T) {
	tied := ballots(
		[2]string{"Oswin", "Abel"},
		[2]string{"Petra", "Mirren"},
	)
	for revotes := 0; revotes < 3; revotes++ {
		if got := ResolveNight(tied, revotes, 3); got.Decision != DecisionRediscuss {
			t.Fatalf("revote %d: expected rediscuss, got %+v", revotes, got)
		}
	}
	if got := ResolveNight(tied, 3, 3); got.Decision != DecisionNoKill {
		t.Fatalf("expected no kill at the cap, got %+v", got)
	}
}

func TestResolveNightEmptyBallotsKillNobody(t *testing.T) {
	if got := ResolveNight(nil, 0, 3); got.Decision != DecisionNoKill {
		t.Fatalf("expected no kill, got %+v", got)
	}
}

func TestLeadersIgnoresBlankTargets(t *testing.T) {
	counts := Tally([]game.Vote{
		{From: "Abel", Target: ""},
		{From: "Mirren", Target: "Oswin"},
	})
	leaders, best := Leaders(counts)
	if best != 1 || !reflect.DeepEqual(leaders, []string{"Oswin"}) {
		t.Fatalf("unexpected leaders: %+v best=%d", leaders, best)
	}
}
