package turn

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/marrowfield/vigil/internal/engine"
	"github.com/marrowfield/vigil/internal/game"
	"github.com/marrowfield/vigil/internal/prompt"
	"github.com/marrowfield/vigil/internal/provider"
)

// scriptedGenerator plays back a fixed sequence of replies and errors. The
// last entry repeats once the script runs out.
type scriptedGenerator struct {
	script []scriptEntry
	calls  int
}

type scriptEntry struct {
	text string
	err  error
}

func (g *scriptedGenerator) Generate(context.Context, provider.Request) (provider.Response, error) {
	idx := g.calls
	if idx >= len(g.script) {
		idx = len(g.script) - 1
	}
	g.calls++
	entry := g.script[idx]
	if entry.err != nil {
		return provider.Response{}, entry.err
	}
	return provider.Response{Text: entry.text}, nil
}

func serverError() error {
	return &provider.Error{Status: http.StatusInternalServerError, Retryable: true, Err: errors.New("upstream boom")}
}

func terminalError() error {
	return &provider.Error{Status: http.StatusBadRequest, Retryable: false, Err: errors.New("rejected")}
}

func testRoster() []game.Player {
	return []game.Player{
		{Name: "Abel", Role: game.RoleShepherd},
		{Name: "Mirren", Role: game.RoleListener},
		{Name: "Tobias", Role: game.RoleGuard},
		{Name: "Greta", Role: game.RoleCoroner},
		{Name: "Casper", Role: game.RoleTwin},
		{Name: "Liesel", Role: game.RoleTwin},
		{Name: "Oswin", Role: game.RoleMarked},
		{Name: "Petra", Role: game.RoleMarked},
		{Name: "Edric", Role: game.RoleHeretic},
	}
}

func newExecutorHarness(t *testing.T, script ...scriptEntry) (*Executor, *game.State, *scriptedGenerator) {
	t.Helper()
	if len(script) == 0 {
		script = []scriptEntry{{text: "[THINKING] quiet [STATEMENT] I keep my own counsel."}}
	}
	state := game.NewState(testRoster())
	gen := &scriptedGenerator{script: script}
	exec, err := New(state, engine.New(), prompt.Renderer{}, gen,
		WithRetryPolicy(4, time.Millisecond, 10*time.Millisecond))
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	return exec, state, gen
}

// intoDay steps the machine through the prologue and the skipped opening
// meeting so the next Step runs a real turn.
func intoDay(t *testing.T, exec *Executor, state *game.State) {
	t.Helper()
	ctx := context.Background()
	if result, err := exec.Step(ctx); err != nil || result != ResultAdvanced {
		t.Fatalf("prologue step: %v %v", result, err)
	}
	if result, err := exec.Step(ctx); err != nil || result != ResultWaiting {
		t.Fatalf("expected the opening meeting pause: %v %v", result, err)
	}
	if err := exec.Controller().SkipMeeting(state); err != nil {
		t.Fatalf("skip meeting: %v", err)
	}
	if result, err := exec.Step(ctx); err != nil || result != ResultAdvanced {
		t.Fatalf("expected advance into the day: %v %v", result, err)
	}
	if state.Phase != game.PhaseDay {
		t.Fatalf("expected day, got %s", state.Phase)
	}
}

func TestStepCommitsOneTurn(t *testing.T) {
	exec, state, _ := newExecutorHarness(t)
	intoDay(t, exec, state)

	result, err := exec.Step(context.Background())
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if result != ResultActed {
		t.Fatalf("expected an acted turn, got %v", result)
	}
	if state.Cursor != 1 {
		t.Fatalf("expected cursor 1, got %d", state.Cursor)
	}

	last := state.Log[len(state.Log)-1]
	if last.From != "Abel" || last.Type != game.MessageSpeech {
		t.Fatalf("expected Abel's statement, got %+v", last)
	}
	thinking := state.Log[len(state.Log)-2]
	if thinking.Type != game.MessageThinking || thinking.Visibility.Scope != game.ScopePlayer {
		t.Fatalf("expected private thinking entry, got %+v", thinking)
	}
}

func TestMeetingTurnsAreVisibleOnlyToTheParticipants(t *testing.T) {
	exec, state, _ := newExecutorHarness(t,
		scriptEntry{text: "[STATEMENT] Keep your voice down. I trust no one out there."})
	ctx := context.Background()
	if result, err := exec.Step(ctx); err != nil || result != ResultAdvanced {
		t.Fatalf("prologue step: %v %v", result, err)
	}
	if result, err := exec.Step(ctx); err != nil || result != ResultWaiting {
		t.Fatalf("expected the opening meeting pause: %v %v", result, err)
	}
	if err := exec.Controller().ResolveMeeting(state, "Abel", "Mirren"); err != nil {
		t.Fatalf("resolve meeting: %v", err)
	}

	abel, _ := state.PlayerByName("Abel")
	mirren, _ := state.PlayerByName("Mirren")
	oswin, _ := state.PlayerByName("Oswin")
	for _, want := range []string{"Abel", "Mirren"} {
		result, err := exec.Step(ctx)
		if err != nil || result != ResultActed {
			t.Fatalf("%s's meeting turn: %v %v", want, result, err)
		}
		last := state.Log[len(state.Log)-1]
		if last.From != want || last.Type != game.MessageSpeech {
			t.Fatalf("expected %s's statement, got %+v", want, last)
		}
		if last.Visibility.Scope != game.ScopePair {
			t.Fatalf("a meeting statement must be pair-scoped, got %+v", last.Visibility)
		}
		if !last.Visibility.Includes(*abel) || !last.Visibility.Includes(*mirren) {
			t.Fatalf("both participants must see the statement, got %+v", last.Visibility)
		}
		if last.Visibility.Includes(*oswin) {
			t.Fatalf("a bystander must not overhear the meeting")
		}
	}

	// An opening meeting spills into the day once both have spoken.
	if result, err := exec.Step(ctx); err != nil || result != ResultAdvanced {
		t.Fatalf("expected advance out of the meeting: %v %v", result, err)
	}
	if state.Phase != game.PhaseDay {
		t.Fatalf("expected the day after the opening meeting, got %s", state.Phase)
	}
}

func TestAfterSacrificeMeetingLeadsIntoTheNight(t *testing.T) {
	exec, state, _ := newExecutorHarness(t,
		scriptEntry{text: "[STATEMENT] That vote was no accident. Watch the shepherd."})
	state.Phase = game.PhaseSecretMeeting
	state.Meeting = &game.SecretMeeting{Timing: game.MeetingAfterSacrifice}
	state.Cursor = 0
	ctx := context.Background()

	if err := exec.Controller().ResolveMeeting(state, "Casper", "Liesel"); err != nil {
		t.Fatalf("resolve meeting: %v", err)
	}
	for i := 0; i < 2; i++ {
		if result, err := exec.Step(ctx); err != nil || result != ResultActed {
			t.Fatalf("meeting turn %d: %v %v", i, result, err)
		}
	}

	if result, err := exec.Step(ctx); err != nil || result != ResultAdvanced {
		t.Fatalf("expected advance out of the meeting: %v %v", result, err)
	}
	if state.Phase != game.PhaseNight || state.Night != game.NightListener {
		t.Fatalf("an evening meeting leads into the night, got %s %s", state.Phase, state.Night)
	}
}

func TestStepRetriesServerErrorsThenCommits(t *testing.T) {
	exec, state, gen := newExecutorHarness(t,
		scriptEntry{err: serverError()},
		scriptEntry{err: serverError()},
		scriptEntry{err: serverError()},
		scriptEntry{text: "[STATEMENT] I was only fetching water."},
	)
	intoDay(t, exec, state)
	logLen := len(state.Log)

	result, err := exec.Step(context.Background())
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if result != ResultActed {
		t.Fatalf("expected a committed turn, got %v", result)
	}
	if gen.calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", gen.calls)
	}
	if len(state.Log) != logLen+1 {
		t.Fatalf("expected exactly one committed statement, got %d new entries", len(state.Log)-logLen)
	}
	if len(state.RetryLog) != 3 {
		t.Fatalf("expected 3 retry entries, got %d", len(state.RetryLog))
	}
	for i, entry := range state.RetryLog {
		if entry.Actor != "Abel" || entry.Attempt != i+1 {
			t.Fatalf("retry %d: unexpected entry %+v", i, entry)
		}
		if i > 0 && entry.Delay <= state.RetryLog[i-1].Delay {
			t.Fatalf("retry delays must increase: %v then %v", state.RetryLog[i-1].Delay, entry.Delay)
		}
	}
}

func TestFailedTurnRollsBackCompletely(t *testing.T) {
	exec, state, _ := newExecutorHarness(t, scriptEntry{err: terminalError()})
	intoDay(t, exec, state)
	before := state.Clone()

	_, err := exec.Step(context.Background())
	if err == nil {
		t.Fatalf("expected the terminal error to surface")
	}
	if len(state.Log) != len(before.Log) {
		t.Fatalf("failed turn must leave the log untouched")
	}
	if len(state.Ballots) != len(before.Ballots) || state.Cursor != before.Cursor {
		t.Fatalf("failed turn must leave ballots and cursor untouched")
	}
	if len(state.RetryLog) != 0 {
		t.Fatalf("a terminal first attempt retries nothing, got %d entries", len(state.RetryLog))
	}
}

func TestExhaustedRetriesRollBackButKeepTheRetryLog(t *testing.T) {
	exec, state, gen := newExecutorHarness(t, scriptEntry{err: serverError()})
	intoDay(t, exec, state)
	logLen := len(state.Log)

	_, err := exec.Step(context.Background())
	if err == nil {
		t.Fatalf("expected failure after the attempt ceiling")
	}
	if gen.calls != 4 {
		t.Fatalf("expected the full attempt ceiling, got %d calls", gen.calls)
	}
	if len(state.Log) != logLen {
		t.Fatalf("no partial turn may remain after rollback")
	}
	if len(state.RetryLog) != 3 {
		t.Fatalf("the retry audit survives the rollback, got %d entries", len(state.RetryLog))
	}
}

func TestEmptyStatementIsRetried(t *testing.T) {
	exec, state, gen := newExecutorHarness(t,
		scriptEntry{text: "[THINKING] all reasoning, no voice"},
		scriptEntry{text: "[STATEMENT] Forgive me, I lost my tongue."},
	)
	intoDay(t, exec, state)

	result, err := exec.Step(context.Background())
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if result != ResultActed || gen.calls != 2 {
		t.Fatalf("expected a retried commit, got %v after %d calls", result, gen.calls)
	}
}

func TestVotingStatementCastsABallot(t *testing.T) {
	exec, state, _ := newExecutorHarness(t,
		scriptEntry{text: "[STATEMENT] It must be Oswin. I saw him by the well."})
	intoDay(t, exec, state)
	state.Phase = game.PhaseVoting
	state.Cursor = 0

	if _, err := exec.Step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	if len(state.Ballots) != 1 {
		t.Fatalf("expected one ballot, got %d", len(state.Ballots))
	}
	if b := state.Ballots[0]; b.From != "Abel" || b.Target != "Oswin" {
		t.Fatalf("unexpected ballot %+v", b)
	}
}

func TestAmbiguousVoteCommitsWithoutABallot(t *testing.T) {
	exec, state, _ := newExecutorHarness(t,
		scriptEntry{text: "[STATEMENT] Either of the twins, Casper or Liesel."})
	intoDay(t, exec, state)
	state.Phase = game.PhaseVoting
	state.Cursor = 0

	result, err := exec.Step(context.Background())
	if err != nil {
		t.Fatalf("a semantic failure must still commit: %v", err)
	}
	if result != ResultActed {
		t.Fatalf("expected an acted turn, got %v", result)
	}
	if len(state.Ballots) != 0 {
		t.Fatalf("an ambiguous target must cast no ballot, got %d", len(state.Ballots))
	}
	if state.Cursor != 1 {
		t.Fatalf("the turn still advances the cursor, got %d", state.Cursor)
	}
}

func TestRetryPreviousRedoesTheLastCommittedTurn(t *testing.T) {
	exec, state, _ := newExecutorHarness(t,
		scriptEntry{text: "[STATEMENT] The frost came early this year."},
		scriptEntry{text: "[STATEMENT] I say it plain: someone here is marked."},
	)
	intoDay(t, exec, state)

	if _, err := exec.Step(context.Background()); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	first := state.Log[len(state.Log)-1].Content

	result, err := exec.RetryPrevious(context.Background())
	if err != nil {
		t.Fatalf("retry previous: %v", err)
	}
	if result != ResultActed {
		t.Fatalf("expected a redone turn, got %v", result)
	}
	redone := state.Log[len(state.Log)-1].Content
	if redone == first {
		t.Fatalf("expected a different reply after the redo")
	}
	if state.Cursor != 1 {
		t.Fatalf("the redo lands on the same cursor slot, got %d", state.Cursor)
	}
}

func TestRetryPreviousBeforeAnyTurnFails(t *testing.T) {
	exec, _, _ := newExecutorHarness(t)
	if _, err := exec.RetryPrevious(context.Background()); !errors.Is(err, ErrNoPreviousTurn) {
		t.Fatalf("expected ErrNoPreviousTurn, got %v", err)
	}
}

func TestRunStopsAtTheOperatorPause(t *testing.T) {
	exec, state, _ := newExecutorHarness(t)
	result, err := exec.Run(context.Background(), time.Millisecond)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result != ResultWaiting {
		t.Fatalf("expected the run to pause on the opening meeting, got %v", result)
	}
	if state.Phase != game.PhaseSecretMeeting {
		t.Fatalf("expected the secret meeting, got %s", state.Phase)
	}
}

func TestRunObservesCancellationBetweenTurns(t *testing.T) {
	exec, state, _ := newExecutorHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := exec.Run(ctx, time.Millisecond)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	// The step in flight still landed before the stop was observed.
	if result != ResultAdvanced {
		t.Fatalf("expected the first boundary consumed, got %v", result)
	}
	if state.Phase != game.PhaseSecretMeeting {
		t.Fatalf("expected the prologue consumed despite the stop, got %s", state.Phase)
	}
}

func TestGameOverFreezesTheExecutor(t *testing.T) {
	exec, state, _ := newExecutorHarness(t)
	state.Kill("Oswin")
	state.Kill("Petra")

	result, err := exec.Step(context.Background())
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if result != ResultGameOver {
		t.Fatalf("expected game over, got %v", result)
	}
	if result, err := exec.Step(context.Background()); err != nil || result != ResultGameOver {
		t.Fatalf("a finished game stays frozen: %v %v", result, err)
	}
}
