package game

import (
	"time"
)

// Phase is the coarse position in the game loop.
type Phase string

const (
	PhasePrologue      Phase = "prologue"
	PhaseSecretMeeting Phase = "secret_meeting"
	PhaseDay           Phase = "day"
	PhaseVoting        Phase = "voting"
	PhaseNight         Phase = "night"
	PhaseEvent         Phase = "event"
	PhaseEnd           Phase = "end"
)

// NightStep is the per-role sub-phase inside the night.
type NightStep string

const (
	NightNone          NightStep = ""
	NightListener      NightStep = "listener"
	NightMarkedDiscuss NightStep = "marked_discuss"
	NightMarkedVote    NightStep = "marked_vote"
	NightGuard         NightStep = "guard"
	NightCoroner       NightStep = "coroner"
)

// Vote is one ballot: a day elimination vote or a night kill vote.
type Vote struct {
	From   string `json:"from"`
	Target string `json:"target"`
	Round  int    `json:"round"`
}

// ListenerCheck records one nightly check, listener channel only.
type ListenerCheck struct {
	Round   int    `json:"round"`
	Target  string `json:"target"`
	IsClean bool   `json:"is_clean"`
}

// CoronerReport records one passive examination, coroner channel only.
type CoronerReport struct {
	Round   int    `json:"round"`
	Target  string `json:"target"`
	IsClean bool   `json:"is_clean"`
}

// GuardRecord records one successful protection, guard channel only.
type GuardRecord struct {
	Round  int    `json:"round"`
	Target string `json:"target"`
}

// RetryEntry records one failed-and-retried turn attempt.
type RetryEntry struct {
	Round   int           `json:"round"`
	Actor   string        `json:"actor"`
	Attempt int           `json:"attempt"`
	Delay   time.Duration `json:"delay"`
	Reason  string        `json:"reason"`
}

// MeetingTiming tags when a secret meeting is scheduled relative to the day.
type MeetingTiming string

const (
	// MeetingBeforeDiscussion precedes the day discussion.
	MeetingBeforeDiscussion MeetingTiming = "before_discussion"
	// MeetingAfterSacrifice follows the day's vote resolution.
	MeetingAfterSacrifice MeetingTiming = "after_sacrifice"
)

// SecretMeeting is a pending or resolved two-person exchange. The operator
// either names the participants or skips the meeting outright.
type SecretMeeting struct {
	Timing       MeetingTiming `json:"timing"`
	Participants []string      `json:"participants,omitempty"`
	Skipped      bool          `json:"skipped"`
}

// Resolved reports whether the operator has decided the meeting.
func (m *SecretMeeting) Resolved() bool {
	return m != nil && (m.Skipped || len(m.Participants) == 2)
}

// State is the aggregate root: the single unit of persistence, rollback, and
// phase transition. All mutation funnels through its named methods; there is
// no ambient singleton.
type State struct {
	Phase Phase     `json:"phase"`
	Night NightStep `json:"night,omitempty"`
	Round int       `json:"round"`

	Players []Player  `json:"players"`
	Log     []Message `json:"log"`

	Ballots       []Vote `json:"ballots"`
	BallotHistory []Vote `json:"ballot_history"`

	Checks  []ListenerCheck `json:"checks"`
	Reports []CoronerReport `json:"reports"`
	Guards  []GuardRecord   `json:"guards"`

	TwinPair []string `json:"twin_pair,omitempty"`

	LastGuarded     string `json:"last_guarded,omitempty"`
	LastSacrificed  string `json:"last_sacrificed,omitempty"`
	SacrificedRound int    `json:"sacrificed_round,omitempty"`

	// PendingKill holds the resolved night-kill target until the night ends;
	// the guard sub-phase runs in between and may void it.
	PendingKill string `json:"pending_kill,omitempty"`

	IsRevote     bool     `json:"is_revote"`
	TiedPlayers  []string `json:"tied_players,omitempty"`
	RevoteRound  int      `json:"revote_round,omitempty"`
	NightRevotes int      `json:"night_revotes,omitempty"`

	HereticAwakened bool `json:"heretic_awakened"`

	Meeting *SecretMeeting `json:"meeting,omitempty"`

	RetryLog []RetryEntry `json:"retry_log,omitempty"`

	Cursor int     `json:"cursor"`
	Winner Faction `json:"winner,omitempty"`
	Over   bool    `json:"over"`

	clock func() time.Time
}

// NewState builds a fresh aggregate at the prologue with the given roster.
func NewState(roster []Player) *State {
	s := &State{
		Phase:   PhasePrologue,
		Round:   1,
		Players: append([]Player(nil), roster...),
	}
	for i := range s.Players {
		s.Players[i].Alive = true
	}
	s.pairTwins()
	return s
}

// SetClock injects a deterministic clock, primarily for tests.
func (s *State) SetClock(clock func() time.Time) {
	s.clock = clock
}

func (s *State) now() time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return time.Now().UTC()
}

func (s *State) pairTwins() {
	var twins []string
	for _, p := range s.Players {
		if p.Role == RoleTwin {
			twins = append(twins, p.Name)
		}
	}
	if len(twins) == 2 {
		s.TwinPair = twins
	}
}

// TwinPartner returns the partner of a twin, if the named player is one.
func (s *State) TwinPartner(name string) (string, bool) {
	if len(s.TwinPair) != 2 {
		return "", false
	}
	switch name {
	case s.TwinPair[0]:
		return s.TwinPair[1], true
	case s.TwinPair[1]:
		return s.TwinPair[0], true
	}
	return "", false
}

// PlayerByName finds a roster member by exact name.
func (s *State) PlayerByName(name string) (*Player, bool) {
	for i := range s.Players {
		if s.Players[i].Name == name {
			return &s.Players[i], true
		}
	}
	return nil, false
}

// Living returns the living roster members in roster order.
func (s *State) Living() []Player {
	var out []Player
	for _, p := range s.Players {
		if p.Alive {
			out = append(out, p)
		}
	}
	return out
}

// LivingNames returns the names of the living roster members.
func (s *State) LivingNames() []string {
	living := s.Living()
	names := make([]string, len(living))
	for i, p := range living {
		names[i] = p.Name
	}
	return names
}

// LivingWithRole returns the living holders of one role.
func (s *State) LivingWithRole(role Role) []Player {
	var out []Player
	for _, p := range s.Players {
		if p.Alive && p.Role == role {
			out = append(out, p)
		}
	}
	return out
}

// Kill marks a player dead. The roster entry survives for display and audit.
func (s *State) Kill(name string) bool {
	p, ok := s.PlayerByName(name)
	if !ok || !p.Alive {
		return false
	}
	p.Alive = false
	return true
}

// SetMood updates a player's transient emotional tag.
func (s *State) SetMood(name, mood string) {
	if p, ok := s.PlayerByName(name); ok {
		p.Mood = mood
	}
}

// CastBallot appends a ballot to the working list for the current scope.
func (s *State) CastBallot(from, target string) {
	s.Ballots = append(s.Ballots, Vote{From: from, Target: target, Round: s.Round})
}

// ArchiveBallots copies the working ballots into history, stamped with the
// current round, and clears the working list. Archival happens on every
// resolution, whether or not anyone was eliminated.
func (s *State) ArchiveBallots() {
	for _, b := range s.Ballots {
		b.Round = s.Round
		s.BallotHistory = append(s.BallotHistory, b)
	}
	s.Ballots = nil
}

// RecordCheck appends a listener check for the current round.
func (s *State) RecordCheck(target string, isClean bool) {
	s.Checks = append(s.Checks, ListenerCheck{Round: s.Round, Target: target, IsClean: isClean})
}

// RecordReport appends a coroner report for the current round.
func (s *State) RecordReport(target string, isClean bool) {
	s.Reports = append(s.Reports, CoronerReport{Round: s.Round, Target: target, IsClean: isClean})
}

// RecordGuard appends a guard record and moves the last-guarded pointer.
func (s *State) RecordGuard(target string) {
	s.Guards = append(s.Guards, GuardRecord{Round: s.Round, Target: target})
	s.LastGuarded = target
}

// RecordRetry appends one retry-log entry for a failed turn attempt.
func (s *State) RecordRetry(actor string, attempt int, delay time.Duration, reason string) {
	s.RetryLog = append(s.RetryLog, RetryEntry{
		Round:   s.Round,
		Actor:   actor,
		Attempt: attempt,
		Delay:   delay,
		Reason:  reason,
	})
}

// MarkSacrificed notes the day's elimination for the coroner's next pass.
func (s *State) MarkSacrificed(name string) {
	s.LastSacrificed = name
	s.SacrificedRound = s.Round
}

// ClearRevote resets the day-vote tie tracking.
func (s *State) ClearRevote() {
	s.IsRevote = false
	s.TiedPlayers = nil
	s.RevoteRound = 0
}

// EnterRevote flags the constrained re-discussion after a day-vote tie. The
// tied players are silenced for the revote and the working ballots cleared.
func (s *State) EnterRevote(tied []string) {
	s.IsRevote = true
	s.TiedPlayers = append([]string(nil), tied...)
	s.RevoteRound = s.Round
	s.Ballots = nil
}

// IsTied reports whether the named player is silenced by the current revote.
func (s *State) IsTied(name string) bool {
	if !s.IsRevote {
		return false
	}
	for _, t := range s.TiedPlayers {
		if t == name {
			return true
		}
	}
	return false
}

// Finish freezes the game with the winning faction.
func (s *State) Finish(winner Faction) {
	s.Winner = winner
	s.Over = true
	s.Phase = PhaseEnd
	s.Night = NightNone
}

// Clone returns an independent whole-state deep copy. Clones are the unit of
// turn rollback and of persistence.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := *s
	out.Players = append([]Player(nil), s.Players...)
	out.Log = cloneMessages(s.Log)
	out.Ballots = append([]Vote(nil), s.Ballots...)
	out.BallotHistory = append([]Vote(nil), s.BallotHistory...)
	out.Checks = append([]ListenerCheck(nil), s.Checks...)
	out.Reports = append([]CoronerReport(nil), s.Reports...)
	out.Guards = append([]GuardRecord(nil), s.Guards...)
	out.TwinPair = append([]string(nil), s.TwinPair...)
	out.TiedPlayers = append([]string(nil), s.TiedPlayers...)
	out.RetryLog = append([]RetryEntry(nil), s.RetryLog...)
	if s.Meeting != nil {
		meeting := *s.Meeting
		meeting.Participants = append([]string(nil), s.Meeting.Participants...)
		out.Meeting = &meeting
	}
	return &out
}

func cloneMessages(log []Message) []Message {
	if log == nil {
		return nil
	}
	out := make([]Message, len(log))
	for i, msg := range log {
		msg.Visibility.Players = append([]string(nil), msg.Visibility.Players...)
		out[i] = msg
	}
	return out
}
