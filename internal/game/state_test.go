package game

import (
	"testing"
	"time"
)

func testRoster() []Player {
	return []Player{
		{Name: "Abel", Role: RoleShepherd},
		{Name: "Mirren", Role: RoleListener},
		{Name: "Tobias", Role: RoleGuard},
		{Name: "Greta", Role: RoleCoroner},
		{Name: "Casper", Role: RoleTwin},
		{Name: "Liesel", Role: RoleTwin},
		{Name: "Oswin", Role: RoleMarked},
		{Name: "Petra", Role: RoleMarked},
		{Name: "Edric", Role: RoleHeretic},
	}
}

func newTestState(t *testing.T) *State {
	t.Helper()
	s := NewState(testRoster())
	s.SetClock(func() time.Time { return time.Date(2026, 1, 10, 20, 0, 0, 0, time.UTC) })
	return s
}

func TestNewStateStartsAtThePrologue(t *testing.T) {
	s := newTestState(t)
	if s.Phase != PhasePrologue {
		t.Fatalf("expected prologue, got %s", s.Phase)
	}
	if s.Round != 1 {
		t.Fatalf("expected round 1, got %d", s.Round)
	}
	for _, p := range s.Players {
		if !p.Alive {
			t.Fatalf("expected %s alive at setup", p.Name)
		}
	}
}

func TestNewStatePairsTwins(t *testing.T) {
	s := newTestState(t)
	partner, ok := s.TwinPartner("Casper")
	if !ok || partner != "Liesel" {
		t.Fatalf("expected Casper paired with Liesel, got %q ok=%v", partner, ok)
	}
	partner, ok = s.TwinPartner("Liesel")
	if !ok || partner != "Casper" {
		t.Fatalf("expected Liesel paired with Casper, got %q ok=%v", partner, ok)
	}
	if _, ok := s.TwinPartner("Abel"); ok {
		t.Fatalf("Abel is not a twin")
	}
}

func TestKillMarksDeadButKeepsRosterEntry(t *testing.T) {
	s := newTestState(t)
	if !s.Kill("Abel") {
		t.Fatalf("expected kill to succeed")
	}
	if s.Kill("Abel") {
		t.Fatalf("expected second kill of the same player to fail")
	}
	p, ok := s.PlayerByName("Abel")
	if !ok {
		t.Fatalf("roster entry should survive death")
	}
	if p.Alive {
		t.Fatalf("expected Abel dead")
	}
	if got := len(s.Living()); got != 8 {
		t.Fatalf("expected 8 living, got %d", got)
	}
}

func TestArchiveBallotsStampsRoundAndClearsWorkingList(t *testing.T) {
	s := newTestState(t)
	s.Round = 3
	s.CastBallot("Abel", "Oswin")
	s.CastBallot("Mirren", "Oswin")
	before := len(s.BallotHistory)

	s.ArchiveBallots()

	if len(s.Ballots) != 0 {
		t.Fatalf("expected working ballots cleared, got %d", len(s.Ballots))
	}
	if len(s.BallotHistory) != before+2 {
		t.Fatalf("expected history to grow by 2, got %d", len(s.BallotHistory)-before)
	}
	for _, b := range s.BallotHistory {
		if b.Round != 3 {
			t.Fatalf("expected round stamp 3, got %d", b.Round)
		}
	}

	// Archival on an empty list must not shrink history.
	s.ArchiveBallots()
	if len(s.BallotHistory) != before+2 {
		t.Fatalf("history must be monotonic, got %d", len(s.BallotHistory))
	}
}

func TestRecordGuardMovesLastGuardedPointer(t *testing.T) {
	s := newTestState(t)
	s.RecordGuard("Abel")
	if s.LastGuarded != "Abel" {
		t.Fatalf("expected last guarded Abel, got %q", s.LastGuarded)
	}
	s.Round = 2
	s.RecordGuard("Mirren")
	if s.LastGuarded != "Mirren" {
		t.Fatalf("expected last guarded Mirren, got %q", s.LastGuarded)
	}
	if len(s.Guards) != 2 {
		t.Fatalf("expected 2 guard records, got %d", len(s.Guards))
	}
}

func TestEnterRevoteSilencesTiedPlayers(t *testing.T) {
	s := newTestState(t)
	s.CastBallot("Abel", "Oswin")
	s.EnterRevote([]string{"Oswin", "Petra"})

	if !s.IsRevote {
		t.Fatalf("expected revote flag set")
	}
	if len(s.Ballots) != 0 {
		t.Fatalf("expected working ballots cleared on revote")
	}
	if !s.IsTied("Oswin") || !s.IsTied("Petra") {
		t.Fatalf("expected both tied players silenced")
	}
	if s.IsTied("Abel") {
		t.Fatalf("Abel is not tied")
	}

	s.ClearRevote()
	if s.IsRevote || s.IsTied("Oswin") {
		t.Fatalf("expected revote tracking reset")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := newTestState(t)
	s.Narrate("the first frost")
	s.CastBallot("Abel", "Oswin")
	s.RecordCheck("Oswin", false)
	s.Meeting = &SecretMeeting{Timing: MeetingBeforeDiscussion}

	clone := s.Clone()
	clone.Kill("Abel")
	clone.Narrate("only in the clone")
	clone.CastBallot("Mirren", "Petra")
	clone.Meeting.Participants = []string{"Abel", "Mirren"}
	clone.Players[1].Mood = "uneasy"

	if p, _ := s.PlayerByName("Abel"); !p.Alive {
		t.Fatalf("kill in clone leaked into original")
	}
	if len(s.Log) != 1 {
		t.Fatalf("expected original log untouched, got %d entries", len(s.Log))
	}
	if len(s.Ballots) != 1 {
		t.Fatalf("expected original ballots untouched, got %d", len(s.Ballots))
	}
	if len(s.Meeting.Participants) != 0 {
		t.Fatalf("meeting mutation leaked into original")
	}
	if s.Players[1].Mood != "" {
		t.Fatalf("mood mutation leaked into original")
	}
}

func TestFinishFreezesTheGame(t *testing.T) {
	s := newTestState(t)
	s.Night = NightGuard
	s.Finish(FactionLamb)
	if !s.Over || s.Winner != FactionLamb {
		t.Fatalf("expected lamb win recorded, got over=%v winner=%s", s.Over, s.Winner)
	}
	if s.Phase != PhaseEnd || s.Night != NightNone {
		t.Fatalf("expected end phase with no night step, got %s/%s", s.Phase, s.Night)
	}
}

func TestMarkSacrificedNotesRound(t *testing.T) {
	s := newTestState(t)
	s.Round = 2
	s.MarkSacrificed("Abel")
	if s.LastSacrificed != "Abel" || s.SacrificedRound != 2 {
		t.Fatalf("unexpected sacrifice record: %q round %d", s.LastSacrificed, s.SacrificedRound)
	}
}
