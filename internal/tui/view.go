package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/marrowfield/vigil/internal/game"
)

var (
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#C9A66B"))

	narratorStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("#8A8A8A"))

	speakerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))

	deadStyle = lipgloss.NewStyle().
			Strikethrough(true).
			Foreground(lipgloss.Color("#666666"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))

	dangerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
)

// transcriptLines is how many spoken entries the board shows.
const transcriptLines = 14

// View implements tea.Model.
func (a *App) View() string {
	switch a.state {
	case stateMainMenu:
		return a.mainMenu.View()
	case stateLoadMenu:
		return a.loadMenu.View()
	case stateMeetingPick:
		return a.meetingMenu.View()
	case stateGame:
		return a.viewBoard()
	}
	return ""
}

func (a *App) viewBoard() string {
	s := a.snapshot

	header := headerStyle.Render(fmt.Sprintf("VIGIL · Marrowfield · round %d · %s", s.Round, describePhase(s)))

	transcript := borderStyle.Width(max(20, a.width*2/3-4)).Render(a.transcriptPanel(s))
	side := lipgloss.JoinVertical(lipgloss.Left,
		borderStyle.Render(a.rosterPanel(s)),
		borderStyle.Render(a.logPanel()),
	)
	body := lipgloss.JoinHorizontal(lipgloss.Top, transcript, side)

	status := a.statusMsg
	if a.busy {
		status = dangerStyle.Render("● ") + status
	} else if a.autoRun {
		status = "▶ " + status
	}
	footer := statusStyle.Render(status + "\n" + a.keyHints(s))

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

// transcriptPanel shows the operator's omniscient view of recent entries,
// tagged with each message's audience so hidden channels read as hidden.
func (a *App) transcriptPanel(s *game.State) string {
	entries := s.Log
	if len(entries) > transcriptLines {
		entries = entries[len(entries)-transcriptLines:]
	}
	if len(entries) == 0 {
		return narratorStyle.Render("The village sleeps. Nothing has happened yet.")
	}
	var b strings.Builder
	for i, m := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(formatEntry(m))
	}
	return b.String()
}

func formatEntry(m game.Message) string {
	switch m.Type {
	case game.MessageNarration:
		return narratorStyle.Render("· " + m.Content)
	case game.MessageThinking:
		return narratorStyle.Render(fmt.Sprintf("(%s thinks) %s", m.From, m.Content))
	default:
		label := speakerStyle.Render(m.From)
		if tag := audienceTag(m.Visibility); tag != "" {
			label += narratorStyle.Render(" " + tag)
		}
		return fmt.Sprintf("%s: %s", label, m.Content)
	}
}

func audienceTag(v game.Visibility) string {
	switch v.Scope {
	case game.ScopeChannel:
		return fmt.Sprintf("[%s]", v.Channel)
	case game.ScopePair:
		return "[in secret]"
	case game.ScopePlayer:
		return "[private]"
	}
	return ""
}

func (a *App) rosterPanel(s *game.State) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("CAST"))
	for _, p := range s.Players {
		b.WriteString("\n")
		line := fmt.Sprintf("%s · %s", p.Name, p.Role)
		if p.Mood != "" {
			line += fmt.Sprintf(" · %s", p.Mood)
		}
		if !p.Alive {
			b.WriteString(deadStyle.Render(line))
			continue
		}
		b.WriteString(line)
	}
	return b.String()
}

func (a *App) logPanel() string {
	lines := a.logbook.Tail(6)
	if len(lines) == 0 {
		lines = []string{"(logbook empty)"}
	}
	return headerStyle.Render("LOGBOOK") + "\n" + statusStyle.Render(strings.Join(lines, "\n"))
}

func (a *App) keyHints(s *game.State) string {
	if s.Over {
		return "x export chronicle · p retry previous · w save · esc menu · ctrl+c quit"
	}
	hints := "n next · a auto · s stop · r retry · p previous · w save · x export · esc menu"
	if a.executor.Controller().WaitingOnOperator(s) {
		hints = "m resolve meeting · k skip meeting · " + hints
	}
	return hints
}
