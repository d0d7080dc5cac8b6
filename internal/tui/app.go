// Package tui is the operator surface. It follows the Elm architecture of
// bubbletea: a model, an Update that folds messages into it, and a View.
//
// The live aggregate is only touched between turns: while a turn command is
// in flight the app renders from its last snapshot and refuses operator
// actions, so the single-threaded execution model of the engine holds.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marrowfield/vigil/internal/chronicle"
	"github.com/marrowfield/vigil/internal/config"
	"github.com/marrowfield/vigil/internal/engine/turn"
	"github.com/marrowfield/vigil/internal/game"
	"github.com/marrowfield/vigil/internal/logbook"
	"github.com/marrowfield/vigil/internal/store"
)

// appState represents which screen is showing.
type appState int

const (
	stateMainMenu appState = iota
	stateLoadMenu
	stateGame
	stateMeetingPick
)

type stepDoneMsg struct {
	result   turn.Result
	err      error
	snapshot *game.State
}

type autoTickMsg struct{}

type savedMsg struct {
	slot store.Slot
	err  error
}

type slotsMsg struct {
	slots []store.Slot
	err   error
}

type loadedMsg struct {
	state *game.State
	err   error
}

// menuItem implements list.Item for the menus.
type menuItem struct {
	title string
	desc  string
	id    string
}

func (i menuItem) Title() string       { return i.title }
func (i menuItem) Description() string { return i.desc }
func (i menuItem) FilterValue() string { return i.title }

// App is the main application model.
type App struct {
	state    appState
	config   *config.Config
	executor *turn.Executor
	saves    store.Store
	logbook  *logbook.Logbook

	// snapshot is what View renders; refreshed after every committed step
	// so rendering never races a turn in flight.
	snapshot *game.State

	mainMenu    list.Model
	loadMenu    list.Model
	meetingMenu list.Model

	// meetingFirst holds the first chosen participant while picking the second.
	meetingFirst string

	busy      bool
	autoRun   bool
	statusMsg string

	width  int
	height int
}

// NewApp wires the operator surface to its collaborators.
func NewApp(cfg *config.Config, executor *turn.Executor, saves store.Store, lb *logbook.Logbook) *App {
	mainMenu := list.New([]list.Item{
		menuItem{id: "new", title: "Begin the Vigil", desc: "Start a fresh game with the configured cast"},
		menuItem{id: "load", title: "Load Game", desc: "Resume from a save slot"},
		menuItem{id: "quit", title: "Quit", desc: "Leave the village to its fate"},
	}, list.NewDefaultDelegate(), 0, 0)
	mainMenu.Title = "VIGIL"
	mainMenu.SetShowStatusBar(false)
	mainMenu.SetFilteringEnabled(false)

	loadMenu := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	loadMenu.Title = "Save Slots"
	loadMenu.SetShowStatusBar(false)

	meetingMenu := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	meetingMenu.Title = "Choose Meeting Participants"
	meetingMenu.SetShowStatusBar(false)

	return &App{
		state:       stateMainMenu,
		config:      cfg,
		executor:    executor,
		saves:       saves,
		logbook:     lb,
		snapshot:    executor.State().Clone(),
		mainMenu:    mainMenu,
		loadMenu:    loadMenu,
		meetingMenu: meetingMenu,
		statusMsg:   "Welcome to Marrowfield.",
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.mainMenu.SetSize(max(0, msg.Width-6), max(0, msg.Height-10))
		a.loadMenu.SetSize(max(0, msg.Width-6), max(0, msg.Height-10))
		a.meetingMenu.SetSize(max(0, msg.Width-6), max(0, msg.Height-10))
		return a, nil

	case stepDoneMsg:
		return a.handleStepDone(msg)

	case autoTickMsg:
		if !a.autoRun || a.busy {
			return a, nil
		}
		return a, a.stepCmd()

	case savedMsg:
		if msg.err != nil {
			a.statusMsg = fmt.Sprintf("Save failed: %v", msg.err)
		} else {
			a.statusMsg = fmt.Sprintf("Saved as %q.", msg.slot.Name)
		}
		return a, nil

	case slotsMsg:
		if msg.err != nil {
			a.statusMsg = fmt.Sprintf("Could not list saves: %v", msg.err)
			return a, nil
		}
		items := make([]list.Item, 0, len(msg.slots))
		for _, slot := range msg.slots {
			items = append(items, menuItem{
				id:    slot.ID,
				title: slot.Name,
				desc:  fmt.Sprintf("round %d · %s · %s", slot.Round, slot.Phase, slot.SavedAt.Local().Format("Jan 2 15:04")),
			})
		}
		a.loadMenu.SetItems(items)
		return a, nil

	case loadedMsg:
		if msg.err != nil {
			a.statusMsg = fmt.Sprintf("Load failed: %v", msg.err)
			return a, nil
		}
		a.executor.Replace(msg.state)
		a.snapshot = a.executor.State().Clone()
		a.state = stateGame
		a.statusMsg = "Game loaded."
		a.logbook.Info("tui: game loaded (round %d, %s)", msg.state.Round, msg.state.Phase)
		return a, nil

	case tea.KeyMsg:
		if model, cmd, handled := a.handleKey(msg); handled {
			return model, cmd
		}
	}

	var cmd tea.Cmd
	switch a.state {
	case stateMainMenu:
		a.mainMenu, cmd = a.mainMenu.Update(msg)
	case stateLoadMenu:
		a.loadMenu, cmd = a.loadMenu.Update(msg)
	case stateMeetingPick:
		a.meetingMenu, cmd = a.meetingMenu.Update(msg)
	}
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit, true
	case "q":
		if a.state == stateMainMenu {
			return a, tea.Quit, true
		}
	case "esc":
		switch a.state {
		case stateLoadMenu, stateGame:
			if a.busy {
				a.statusMsg = "A turn is in flight; wait for it to land."
				return a, nil, true
			}
			a.autoRun = false
			a.state = stateMainMenu
			return a, nil, true
		case stateMeetingPick:
			a.meetingFirst = ""
			a.state = stateGame
			return a, nil, true
		}
	case "enter":
		switch a.state {
		case stateMainMenu:
			return a.handleMainMenuSelection()
		case stateLoadMenu:
			item, ok := a.loadMenu.SelectedItem().(menuItem)
			if !ok {
				return a, nil, true
			}
			return a, a.loadCmd(item.id), true
		case stateMeetingPick:
			return a.handleMeetingPick()
		}
	}

	if a.state != stateGame {
		return a, nil, false
	}
	return a.handleGameKey(msg.String())
}

func (a *App) handleGameKey(key string) (tea.Model, tea.Cmd, bool) {
	if a.busy && key != "s" {
		a.statusMsg = "A turn is in flight; wait for it to land."
		return a, nil, true
	}
	switch key {
	case "n":
		a.statusMsg = "Advancing one turn..."
		return a, a.stepCmd(), true
	case "a":
		a.autoRun = true
		a.statusMsg = "Auto-run started."
		a.logbook.Info("tui: auto-run started")
		return a, a.stepCmd(), true
	case "s":
		if a.autoRun {
			a.autoRun = false
			a.statusMsg = "Auto-run will stop before the next turn."
			a.logbook.Info("tui: auto-run stop requested")
		}
		return a, nil, true
	case "r":
		a.statusMsg = "Retrying the current turn..."
		return a, a.stepCmd(), true
	case "p":
		a.statusMsg = "Rolling back one committed turn..."
		return a, a.retryPreviousCmd(), true
	case "m":
		if !a.executor.Controller().WaitingOnOperator(a.snapshot) {
			a.statusMsg = "No secret meeting is pending."
			return a, nil, true
		}
		a.openMeetingPicker()
		return a, nil, true
	case "k":
		if err := a.executor.Controller().SkipMeeting(a.executor.State()); err != nil {
			a.statusMsg = err.Error()
			return a, nil, true
		}
		a.snapshot = a.executor.State().Clone()
		a.statusMsg = "Secret meeting skipped."
		a.logbook.Info("tui: secret meeting skipped")
		return a, nil, true
	case "w":
		name := fmt.Sprintf("round %d %s", a.snapshot.Round, a.snapshot.Phase)
		return a, a.saveCmd(name), true
	case "x":
		path, err := chronicle.Export(a.config.ChroniclesDir(), a.snapshot)
		if err != nil {
			a.statusMsg = fmt.Sprintf("Export failed: %v", err)
			return a, nil, true
		}
		a.statusMsg = fmt.Sprintf("Chronicle written to %s.", path)
		a.logbook.Info("tui: chronicle exported to %s", path)
		return a, nil, true
	}
	return a, nil, false
}

func (a *App) handleMainMenuSelection() (tea.Model, tea.Cmd, bool) {
	item, ok := a.mainMenu.SelectedItem().(menuItem)
	if !ok {
		return a, nil, true
	}
	// Starting or loading a game swaps the executor's aggregate, which must
	// never happen under a turn still in flight.
	if a.busy && item.id != "quit" {
		a.statusMsg = "A turn is in flight; wait for it to land."
		return a, nil, true
	}
	switch item.id {
	case "new":
		roster, err := a.config.Roster()
		if err != nil {
			a.statusMsg = err.Error()
			return a, nil, true
		}
		a.executor.Replace(game.NewState(roster))
		a.snapshot = a.executor.State().Clone()
		a.state = stateGame
		a.statusMsg = "The vigil begins. Press n to advance."
		a.logbook.Info("tui: new game with %d players", len(roster))
		return a, nil, true
	case "load":
		a.state = stateLoadMenu
		return a, a.listSlotsCmd(), true
	case "quit":
		return a, tea.Quit, true
	}
	return a, nil, true
}

func (a *App) handleMeetingPick() (tea.Model, tea.Cmd, bool) {
	item, ok := a.meetingMenu.SelectedItem().(menuItem)
	if !ok {
		return a, nil, true
	}
	if a.meetingFirst == "" {
		a.meetingFirst = item.id
		a.refreshMeetingMenu()
		a.statusMsg = fmt.Sprintf("%s will attend. Choose the second participant.", item.id)
		return a, nil, true
	}
	if err := a.executor.Controller().ResolveMeeting(a.executor.State(), a.meetingFirst, item.id); err != nil {
		a.statusMsg = err.Error()
		return a, nil, true
	}
	a.logbook.Info("tui: secret meeting between %s and %s", a.meetingFirst, item.id)
	a.statusMsg = fmt.Sprintf("%s and %s will meet in secret.", a.meetingFirst, item.id)
	a.meetingFirst = ""
	a.snapshot = a.executor.State().Clone()
	a.state = stateGame
	return a, nil, true
}

func (a *App) openMeetingPicker() {
	a.meetingFirst = ""
	a.state = stateMeetingPick
	a.refreshMeetingMenu()
}

func (a *App) refreshMeetingMenu() {
	var items []list.Item
	for _, p := range a.snapshot.Living() {
		if p.Name == a.meetingFirst {
			continue
		}
		items = append(items, menuItem{id: p.Name, title: p.Name, desc: describeMood(p)})
	}
	a.meetingMenu.SetItems(items)
	if a.meetingFirst == "" {
		a.meetingMenu.Title = "First participant (esc to cancel)"
	} else {
		a.meetingMenu.Title = fmt.Sprintf("Second participant (with %s)", a.meetingFirst)
	}
}

func describeMood(p game.Player) string {
	if p.Mood == "" {
		return "composed"
	}
	return p.Mood
}

func (a *App) handleStepDone(msg stepDoneMsg) (tea.Model, tea.Cmd) {
	a.busy = false
	a.snapshot = msg.snapshot
	if msg.err != nil {
		a.autoRun = false
		a.statusMsg = fmt.Sprintf("Turn failed: %v — press r to retry.", msg.err)
		return a, nil
	}
	switch msg.result {
	case turn.ResultActed:
		a.statusMsg = "Turn committed."
	case turn.ResultAdvanced:
		a.statusMsg = fmt.Sprintf("Phase: %s", describePhase(a.snapshot))
	case turn.ResultWaiting:
		a.autoRun = false
		a.statusMsg = "A secret meeting is pending: m to choose participants, k to skip."
	case turn.ResultGameOver:
		a.autoRun = false
		a.statusMsg = fmt.Sprintf("The game is over. The %s faction prevails.", a.snapshot.Winner)
	}
	if a.autoRun && (msg.result == turn.ResultActed || msg.result == turn.ResultAdvanced) {
		yield := a.config.AutoRunYield()
		return a, tea.Tick(yield, func(time.Time) tea.Msg { return autoTickMsg{} })
	}
	return a, nil
}

func (a *App) stepCmd() tea.Cmd {
	a.busy = true
	return func() tea.Msg {
		result, err := a.executor.Step(context.Background())
		return stepDoneMsg{result: result, err: err, snapshot: a.executor.State().Clone()}
	}
}

func (a *App) retryPreviousCmd() tea.Cmd {
	a.busy = true
	return func() tea.Msg {
		result, err := a.executor.RetryPrevious(context.Background())
		return stepDoneMsg{result: result, err: err, snapshot: a.executor.State().Clone()}
	}
}

func (a *App) saveCmd(name string) tea.Cmd {
	state := a.executor.State().Clone()
	return func() tea.Msg {
		slot, err := a.saves.Save(name, state)
		return savedMsg{slot: slot, err: err}
	}
}

func (a *App) listSlotsCmd() tea.Cmd {
	return func() tea.Msg {
		slots, err := a.saves.List()
		return slotsMsg{slots: slots, err: err}
	}
}

func (a *App) loadCmd(id string) tea.Cmd {
	return func() tea.Msg {
		state, err := a.saves.Load(id)
		return loadedMsg{state: state, err: err}
	}
}

func describePhase(s *game.State) string {
	if s.Phase == game.PhaseNight && s.Night != game.NightNone {
		return fmt.Sprintf("night · %s", strings.ReplaceAll(string(s.Night), "_", " "))
	}
	return strings.ReplaceAll(string(s.Phase), "_", " ")
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
