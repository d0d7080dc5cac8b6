// Package engine owns the phase state machine: it sequences phases and
// per-role sub-phases, invokes the ability and vote resolvers at the right
// points, and raises the win check before every step.
package engine

import (
	"fmt"
	"strings"

	"github.com/marrowfield/vigil/internal/game"
	"github.com/marrowfield/vigil/internal/game/roles"
	"github.com/marrowfield/vigil/internal/game/vote"
)

const prologueText = "First frost. The village of Marrowfield gathers its lamps " +
	"against the long dark, knowing that something in the flock is not a lamb."

// defaultNightRevoteCap bounds kill-vote rediscussions so a pathological tie
// sequence cannot loop the night forever.
const defaultNightRevoteCap = 3

// Controller is the top-level state machine. It never acts for a player; it
// only resolves phase boundaries and hands the turn executor an actor list.
type Controller struct {
	eval           Evaluator
	reactor        Reactor
	nightRevoteCap int
	awakenRound    int
}

// Option customizes the controller.
type Option func(*Controller)

// WithEvaluator injects the win-condition collaborator.
func WithEvaluator(eval Evaluator) Option {
	return func(c *Controller) {
		if eval != nil {
			c.eval = eval
		}
	}
}

// WithReactor injects the death-reaction collaborator.
func WithReactor(r Reactor) Option {
	return func(c *Controller) {
		if r != nil {
			c.reactor = r
		}
	}
}

// WithNightRevoteCap overrides the bound on kill-vote rediscussions.
func WithNightRevoteCap(cap int) Option {
	return func(c *Controller) {
		if cap > 0 {
			c.nightRevoteCap = cap
		}
	}
}

// New builds a controller with the standard evaluator and mood reactor.
func New(opts ...Option) *Controller {
	c := &Controller{
		eval:           StandardEvaluator{},
		reactor:        MoodReactor{},
		nightRevoteCap: defaultNightRevoteCap,
		awakenRound:    2,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Actors returns the scope-filtered actor list for the current phase, in
// roster order. An empty list means the phase is exhausted or passive.
func (c *Controller) Actors(s *game.State) []game.Player {
	switch s.Phase {
	case game.PhaseDay:
		var out []game.Player
		for _, p := range s.Living() {
			if !s.IsTied(p.Name) {
				out = append(out, p)
			}
		}
		return out
	case game.PhaseVoting:
		return s.Living()
	case game.PhaseSecretMeeting:
		if s.Meeting == nil || !s.Meeting.Resolved() || s.Meeting.Skipped {
			return nil
		}
		var out []game.Player
		for _, name := range s.Meeting.Participants {
			if p, ok := s.PlayerByName(name); ok && p.Alive {
				out = append(out, *p)
			}
		}
		return out
	case game.PhaseNight:
		switch s.Night {
		case game.NightListener:
			return s.LivingWithRole(game.RoleListener)
		case game.NightMarkedDiscuss, game.NightMarkedVote:
			return s.LivingWithRole(game.RoleMarked)
		case game.NightGuard:
			return s.LivingWithRole(game.RoleGuard)
		}
	}
	return nil
}

// Current returns the actor at the turn cursor, if the phase still has one.
func (c *Controller) Current(s *game.State) (game.Player, bool) {
	actors := c.Actors(s)
	if s.Cursor < len(actors) {
		return actors[s.Cursor], true
	}
	return game.Player{}, false
}

// WaitingOnOperator reports whether the machine is paused for a secret
// meeting decision.
func (c *Controller) WaitingOnOperator(s *game.State) bool {
	return s.Phase == game.PhaseSecretMeeting && s.Meeting != nil && !s.Meeting.Resolved()
}

// CheckWin consults the evaluator and freezes the game on a verdict.
func (c *Controller) CheckWin(s *game.State) bool {
	if s.Over {
		return true
	}
	winner, ok := c.eval.Winner(s.Players)
	if !ok {
		return false
	}
	s.Finish(winner)
	switch winner {
	case game.FactionHarvest:
		s.Narrate("The harvest has thinned the flock past saving. The village belongs to it now.")
	default:
		s.Narrate("The last of the harvest is rooted out. The lambs keep their village.")
	}
	return true
}

// Advance moves the machine past the current phase boundary. It is an
// explicit loop, never recursive: auto-resolving phases (event, coroner,
// empty sub-phases) are consumed until the machine reaches an actor, an
// operator decision, or the end.
func (c *Controller) Advance(s *game.State) error {
	for {
		if c.CheckWin(s) {
			return nil
		}
		switch s.Phase {
		case game.PhasePrologue:
			s.Narrate(prologueText)
			roles.AnnounceTwins(s)
			c.scheduleMeeting(s, game.MeetingBeforeDiscussion)
			return nil

		case game.PhaseSecretMeeting:
			timing := game.MeetingBeforeDiscussion
			if s.Meeting != nil {
				timing = s.Meeting.Timing
			}
			s.Meeting = nil
			if timing == game.MeetingBeforeDiscussion {
				c.enterDay(s)
				if len(c.Actors(s)) > 0 {
					return nil
				}
				continue
			}
			s.Phase = game.PhaseEvent
			s.Cursor = 0
			continue

		case game.PhaseDay:
			c.enterVoting(s)
			if len(c.Actors(s)) > 0 {
				return nil
			}
			continue

		case game.PhaseVoting:
			c.resolveDayVote(s)
			if len(c.Actors(s)) > 0 || c.WaitingOnOperator(s) {
				return nil
			}
			continue

		case game.PhaseEvent:
			c.resolveEvent(s)
			c.enterNight(s)
			if len(c.Actors(s)) > 0 {
				return nil
			}
			continue

		case game.PhaseNight:
			if c.advanceNight(s) {
				return nil
			}
			continue

		case game.PhaseEnd:
			return nil

		default:
			return fmt.Errorf("engine: unknown phase %q", s.Phase)
		}
	}
}

// ResolveMeeting names the two participants of the pending secret meeting.
func (c *Controller) ResolveMeeting(s *game.State, a, b string) error {
	if !c.WaitingOnOperator(s) {
		return fmt.Errorf("engine: no pending secret meeting")
	}
	if a == b {
		return fmt.Errorf("engine: a meeting needs two distinct participants")
	}
	for _, name := range []string{a, b} {
		p, ok := s.PlayerByName(name)
		if !ok || !p.Alive {
			return fmt.Errorf("engine: %q cannot attend a meeting", name)
		}
	}
	s.Meeting.Participants = []string{a, b}
	s.Cursor = 0
	s.Append(game.NarratorName,
		fmt.Sprintf("%s and %s slip away from the others to speak where no one can hear.", a, b),
		game.MessageNarration, game.PairOnly(a, b))
	return nil
}

// SkipMeeting cancels the pending secret meeting by operator decision.
func (c *Controller) SkipMeeting(s *game.State) error {
	if !c.WaitingOnOperator(s) {
		return fmt.Errorf("engine: no pending secret meeting")
	}
	s.Meeting.Skipped = true
	return nil
}

func (c *Controller) scheduleMeeting(s *game.State, timing game.MeetingTiming) {
	s.Meeting = &game.SecretMeeting{Timing: timing}
	s.Phase = game.PhaseSecretMeeting
	s.Cursor = 0
}

func (c *Controller) enterDay(s *game.State) {
	s.Phase = game.PhaseDay
	s.Night = game.NightNone
	s.Cursor = 0
	s.Narrate(fmt.Sprintf("Round %d. The village gathers in the grey morning light.", s.Round))
}

func (c *Controller) enterVoting(s *game.State) {
	s.Phase = game.PhaseVoting
	s.Cursor = 0
	s.Narrate("Talk runs dry. The village must point its finger.")
}

func (c *Controller) enterNight(s *game.State) {
	s.Phase = game.PhaseNight
	s.Night = game.NightListener
	s.Cursor = 0
	s.Narrate("Night falls over Marrowfield. The lamps go out one by one.")
}

func (c *Controller) resolveDayVote(s *game.State) {
	outcome := vote.ResolveDay(s.Ballots, s.IsRevote)
	s.ArchiveBallots()
	switch outcome.Decision {
	case vote.DecisionEliminate:
		s.ClearRevote()
		s.Kill(outcome.Target)
		s.MarkSacrificed(outcome.Target)
		s.Narrate(fmt.Sprintf("The village has chosen. %s is given to the rite.", outcome.Target))
		c.reactor.OnDeath(s, outcome.Target)
		c.scheduleMeeting(s, game.MeetingAfterSacrifice)
	case vote.DecisionRevote:
		s.EnterRevote(outcome.Tied)
		s.Narrate(fmt.Sprintf("The vote splits between %s. They must hold their tongues while the village reconsiders.",
			strings.Join(outcome.Tied, " and ")))
		s.Phase = game.PhaseDay
		s.Cursor = 0
	case vote.DecisionNoElimination:
		s.ClearRevote()
		s.Narrate("The village cannot agree. No one is given to the rite today.")
		c.scheduleMeeting(s, game.MeetingAfterSacrifice)
	}
}

// advanceNight moves one night boundary. It returns true when control should
// go back to the caller (an actor is ready); false asks the outer loop to
// keep advancing.
func (c *Controller) advanceNight(s *game.State) bool {
	switch s.Night {
	case game.NightListener:
		s.Night = game.NightMarkedDiscuss
		s.Cursor = 0
		if len(c.Actors(s)) > 0 {
			s.Append(game.NarratorName,
				"The marked find each other in the dark. Choose tonight's lamb.",
				game.MessageNarration, game.ChannelOnly(game.RoleMarked))
			return true
		}
		return false

	case game.NightMarkedDiscuss:
		s.Night = game.NightMarkedVote
		s.Cursor = 0
		return len(c.Actors(s)) > 0

	case game.NightMarkedVote:
		outcome := vote.ResolveNight(s.Ballots, s.NightRevotes, c.nightRevoteCap)
		s.ArchiveBallots()
		switch outcome.Decision {
		case vote.DecisionKill:
			s.PendingKill = outcome.Target
			s.Night = game.NightGuard
		case vote.DecisionRediscuss:
			s.NightRevotes++
			s.Night = game.NightMarkedDiscuss
			s.Append(game.NarratorName,
				fmt.Sprintf("The marked cannot agree between %s. Talk again.", strings.Join(outcome.Tied, " and ")),
				game.MessageNarration, game.ChannelOnly(game.RoleMarked))
		case vote.DecisionNoKill:
			if len(outcome.Tied) > 0 {
				s.Append(game.NarratorName,
					"The marked squabble until the sky pales. No lamb is taken.",
					game.MessageNarration, game.ChannelOnly(game.RoleMarked))
			}
			s.Night = game.NightGuard
		}
		s.Cursor = 0
		return len(c.Actors(s)) > 0

	case game.NightGuard:
		s.Night = game.NightCoroner
		s.Cursor = 0
		return false

	case game.NightCoroner:
		roles.Examine(s)
		c.endNight(s)
		return len(c.Actors(s)) > 0
	}
	return false
}

func (c *Controller) endNight(s *game.State) {
	if s.PendingKill != "" {
		if victim := roles.ApplyKill(s, s.PendingKill); victim != "" {
			c.reactor.OnDeath(s, victim)
		}
		s.PendingKill = ""
	} else {
		s.Narrate("The night passes without a death. Nobody trusts the quiet.")
	}
	s.NightRevotes = 0
	s.Night = game.NightNone
	s.Round++
	if !s.HereticAwakened && s.Round >= c.awakenRound {
		roles.Awaken(s)
	}
	c.enterDay(s)
}
