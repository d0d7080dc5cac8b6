// Package turn drives one agent's turn at a time: build the private context,
// call the provider, parse the reply, commit messages and ballots, advance
// the cursor. Failures roll the aggregate back to its pre-turn snapshot and
// feed the retry policy; a committed turn is never retried.
package turn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/marrowfield/vigil/internal/engine"
	"github.com/marrowfield/vigil/internal/game"
	"github.com/marrowfield/vigil/internal/game/roles"
	"github.com/marrowfield/vigil/internal/prompt"
	"github.com/marrowfield/vigil/internal/provider"
)

// Logger matches the logbook's signature.
type Logger interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Result reports what one Step accomplished.
type Result string

const (
	// ResultActed means one agent turn committed.
	ResultActed Result = "acted"
	// ResultAdvanced means a phase boundary was consumed instead of a turn.
	ResultAdvanced Result = "advanced"
	// ResultWaiting means the machine is paused on an operator decision.
	ResultWaiting Result = "waiting"
	// ResultGameOver means a faction has won and the machine is frozen.
	ResultGameOver Result = "game_over"
)

// ErrNoPreviousTurn is returned by RetryPrevious before any turn commits.
var ErrNoPreviousTurn = errors.New("turn: no committed turn to roll back")

// Executor owns the live aggregate and the resilient execution loop.
// Execution is strictly sequential: at most one turn is in flight, and the
// only suspension point is the provider call.
type Executor struct {
	state      *game.State
	controller *engine.Controller
	builder    prompt.Builder
	generator  provider.Generator
	log        Logger

	maxAttempts  uint
	initialDelay time.Duration
	maxDelay     time.Duration

	// prev snapshots the aggregate before the last committed turn so the
	// operator can roll exactly one turn back.
	prev *game.State
}

// Option customizes the executor.
type Option func(*Executor)

// WithLogger injects the progress log.
func WithLogger(log Logger) Option {
	return func(e *Executor) {
		if log != nil {
			e.log = log
		}
	}
}

// WithRetryPolicy overrides the attempt ceiling and backoff bounds.
func WithRetryPolicy(maxAttempts uint, initial, max time.Duration) Option {
	return func(e *Executor) {
		if maxAttempts > 0 {
			e.maxAttempts = maxAttempts
		}
		if initial > 0 {
			e.initialDelay = initial
		}
		if max > 0 {
			e.maxDelay = max
		}
	}
}

// New wires an executor to the aggregate and its collaborators.
func New(state *game.State, controller *engine.Controller, builder prompt.Builder, generator provider.Generator, opts ...Option) (*Executor, error) {
	if state == nil {
		return nil, fmt.Errorf("turn: state is required")
	}
	if controller == nil {
		return nil, fmt.Errorf("turn: controller is required")
	}
	if builder == nil {
		return nil, fmt.Errorf("turn: prompt builder is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("turn: generator is required")
	}
	e := &Executor{
		state:        state,
		controller:   controller,
		builder:      builder,
		generator:    generator,
		log:          nopLogger{},
		maxAttempts:  4,
		initialDelay: 500 * time.Millisecond,
		maxDelay:     10 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// State exposes the live aggregate. The pointer is stable across rollbacks.
func (e *Executor) State() *game.State {
	return e.state
}

// Controller exposes the phase controller for operator actions.
func (e *Executor) Controller() *engine.Controller {
	return e.controller
}

// Replace swaps in a loaded aggregate, discarding rollback history.
func (e *Executor) Replace(state *game.State) {
	*e.state = *state
	e.prev = nil
}

// Step performs one unit of progress: the win check, then either an agent
// turn, a phase advancement, or a pause report.
func (e *Executor) Step(ctx context.Context) (Result, error) {
	if e.controller.CheckWin(e.state) {
		return ResultGameOver, nil
	}
	if e.controller.WaitingOnOperator(e.state) {
		return ResultWaiting, nil
	}
	actor, ok := e.controller.Current(e.state)
	if !ok {
		if err := e.controller.Advance(e.state); err != nil {
			return "", err
		}
		if e.state.Over {
			return ResultGameOver, nil
		}
		return ResultAdvanced, nil
	}
	if err := e.runTurn(ctx, actor); err != nil {
		return "", err
	}
	return ResultActed, nil
}

// Run repeatedly steps until the game pauses or finishes. Between steps it
// yields briefly so cancellation is observed before the next turn begins;
// a turn already in flight is never interrupted by the stop signal.
func (e *Executor) Run(ctx context.Context, yield time.Duration) (Result, error) {
	for {
		result, err := e.Step(context.WithoutCancel(ctx))
		if err != nil {
			return result, err
		}
		if result == ResultWaiting || result == ResultGameOver {
			return result, nil
		}
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(yield):
		}
	}
}

// RetryPrevious rolls back exactly one committed turn and redoes it.
func (e *Executor) RetryPrevious(ctx context.Context) (Result, error) {
	if e.prev == nil {
		return "", ErrNoPreviousTurn
	}
	restore := e.prev.Clone()
	*e.state = *restore
	e.prev = nil
	e.log.Info("turn: rolled back one committed turn")
	return e.Step(ctx)
}

// runTurn executes one actor's turn under the retry policy. Every failed
// attempt restores the pre-turn snapshot before the next try, so retries are
// idempotent; exhausting the ceiling restores and surfaces a terminal error.
func (e *Executor) runTurn(ctx context.Context, actor game.Player) error {
	pre := e.state.Clone()
	attempt := 0

	operation := func() (struct{}, error) {
		attempt++
		err := e.attemptTurn(ctx, actor)
		if err == nil {
			return struct{}{}, nil
		}
		if !retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	notify := func(err error, delay time.Duration) {
		// Restore the pre-turn snapshot but keep the retry log accumulating
		// across attempts.
		retryLog := e.state.RetryLog
		*e.state = *pre.Clone()
		e.state.RetryLog = retryLog
		e.state.RecordRetry(actor.Name, attempt, delay, err.Error())
		e.log.Warn("turn: %s attempt %d failed, retrying in %s: %v", actor.Name, attempt, delay, err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.initialDelay
	policy.MaxInterval = e.maxDelay
	policy.RandomizationFactor = 0

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(e.maxAttempts),
		backoff.WithNotify(notify),
	)
	if err != nil {
		retryLog := e.state.RetryLog
		*e.state = *pre.Clone()
		e.state.RetryLog = retryLog
		e.log.Error("turn: %s failed after %d attempt(s): %v", actor.Name, attempt, err)
		return fmt.Errorf("turn: %s: %w", actor.Name, err)
	}
	e.prev = pre
	e.log.Info("turn: %s acted (%s %s)", actor.Name, e.state.Phase, e.state.Night)
	return nil
}

// attemptTurn is one attempt: render, generate, parse, commit. Any error
// leaves commit-side effects to the caller's rollback.
func (e *Executor) attemptTurn(ctx context.Context, actor game.Player) error {
	rendered, err := e.builder.Render(e.state, actor)
	if err != nil {
		return err
	}
	resp, err := e.generator.Generate(ctx, provider.Request{Prompt: rendered})
	if err != nil {
		return err
	}
	reasoning, statement := prompt.SplitReply(resp.Text)
	if statement == "" {
		return &provider.Error{Retryable: true, Err: errors.New("reply had no statement")}
	}
	e.commit(actor, reasoning, statement)
	return nil
}

// commit writes the turn's messages and resolves the statement into a ballot
// or ability action where the phase calls for one. An unresolvable target is
// a semantic error: the statement still lands as free text, no record is
// created, and the turn commits.
func (e *Executor) commit(actor game.Player, reasoning, statement string) {
	s := e.state
	if reasoning != "" {
		s.Append(actor.Name, reasoning, game.MessageThinking, game.PlayerOnly(actor.Name))
	}

	switch s.Phase {
	case game.PhaseDay:
		s.Append(actor.Name, statement, game.MessageSpeech, game.VisibleToAll())

	case game.PhaseSecretMeeting:
		vis := game.VisibleToAll()
		if s.Meeting != nil && len(s.Meeting.Participants) == 2 {
			vis = game.PairOnly(s.Meeting.Participants[0], s.Meeting.Participants[1])
		}
		s.Append(actor.Name, statement, game.MessageSpeech, vis)

	case game.PhaseVoting:
		s.Append(actor.Name, statement, game.MessageSpeech, game.VisibleToAll())
		if match := e.resolveTarget(actor, statement); match.Ok {
			s.CastBallot(actor.Name, match.Name)
		}

	case game.PhaseNight:
		e.commitNight(actor, statement)
	}
	s.Cursor++
}

func (e *Executor) commitNight(actor game.Player, statement string) {
	s := e.state
	switch s.Night {
	case game.NightListener:
		s.Append(actor.Name, statement, game.MessageSpeech, game.ChannelOnly(game.RoleListener))
		if match := e.resolveTarget(actor, statement); match.Ok {
			roles.Listen(s, actor, match.Name)
		}
	case game.NightMarkedDiscuss:
		s.Append(actor.Name, statement, game.MessageSpeech, game.ChannelOnly(game.RoleMarked))
	case game.NightMarkedVote:
		s.Append(actor.Name, statement, game.MessageSpeech, game.ChannelOnly(game.RoleMarked))
		if match := e.resolveTarget(actor, statement); match.Ok {
			if roles.ValidKillTarget(s, match.Name) {
				s.CastBallot(actor.Name, match.Name)
			} else {
				s.Append(game.NarratorName,
					fmt.Sprintf("%s is no lamb for the taking.", match.Name),
					game.MessageNarration, game.ChannelOnly(game.RoleMarked))
			}
		}
	case game.NightGuard:
		s.Append(actor.Name, statement, game.MessageSpeech, game.ChannelOnly(game.RoleGuard))
		if match := e.resolveTarget(actor, statement); match.Ok {
			roles.Protect(s, actor, match.Name)
		}
	}
}

func (e *Executor) resolveTarget(actor game.Player, statement string) game.MatchResult {
	match := game.MatchName(statement, e.state.LivingNames())
	if !match.Ok {
		e.log.Warn("turn: %s statement resolved to no target: %s", actor.Name, match.Reason)
	}
	return match
}

func retryable(err error) bool {
	return provider.Retryable(err)
}
