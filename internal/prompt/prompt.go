// Package prompt assembles one agent's private context: the messages it may
// see, its role facts, and the instruction for the current phase. It also
// owns the two-section reply format shared with the reply parser.
package prompt

import (
	"fmt"
	"strings"

	"github.com/marrowfield/vigil/internal/game"
)

const (
	// ThinkingMarker opens the private reasoning section of a reply.
	ThinkingMarker = "[THINKING]"
	// StatementMarker opens the public statement section of a reply.
	StatementMarker = "[STATEMENT]"
)

// SplitReply separates a raw reply into private reasoning and public
// statement. A reply without the statement marker is treated entirely as the
// statement, with no reasoning.
func SplitReply(text string) (reasoning, statement string) {
	idx := strings.Index(text, StatementMarker)
	if idx < 0 {
		return "", strings.TrimSpace(stripMarker(text))
	}
	reasoning = strings.TrimSpace(stripMarker(text[:idx]))
	statement = strings.TrimSpace(text[idx+len(StatementMarker):])
	return reasoning, statement
}

func stripMarker(text string) string {
	return strings.ReplaceAll(text, ThinkingMarker, "")
}

// Builder renders the private context for one actor's turn.
type Builder interface {
	Render(s *game.State, actor game.Player) (string, error)
}

// Renderer is the default Builder.
type Renderer struct{}

// Render implements Builder.
func (Renderer) Render(s *game.State, actor game.Player) (string, error) {
	instruction, err := phaseInstruction(s, actor)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a villager of Marrowfield playing a hidden-role game of survival.\n", actor.Name)
	fmt.Fprintf(&b, "Your secret role: %s (%s faction).\n", actor.Role, actor.Faction())
	if actor.Persona != "" {
		fmt.Fprintf(&b, "Your temperament: %s\n", actor.Persona)
	}
	if actor.Mood != "" {
		fmt.Fprintf(&b, "Right now you feel %s.\n", actor.Mood)
	}
	writeRoleFacts(&b, s, actor)

	b.WriteString("\nWhat you have seen and heard so far:\n")
	visible := s.VisibleTo(actor)
	if len(visible) == 0 {
		b.WriteString("(nothing yet)\n")
	}
	for _, msg := range visible {
		if msg.Type == game.MessageThinking {
			fmt.Fprintf(&b, "[your thoughts, round %d] %s\n", msg.Round, msg.Content)
			continue
		}
		fmt.Fprintf(&b, "[round %d, %s] %s: %s\n", msg.Round, msg.Phase, msg.From, msg.Content)
	}

	b.WriteString("\n" + instruction + "\n")
	fmt.Fprintf(&b, "\nReply in exactly two sections. Begin your private reasoning with %s and your spoken words with %s. Only the %s section is ever heard by others.\n",
		ThinkingMarker, StatementMarker, StatementMarker)
	return b.String(), nil
}

func writeRoleFacts(b *strings.Builder, s *game.State, actor game.Player) {
	if partner, ok := s.TwinPartner(actor.Name); ok {
		fmt.Fprintf(b, "Your twin is %s; you each know the other is no part of the harvest.\n", partner)
	}
	switch actor.Role {
	case game.RoleMarked:
		var fellows []string
		for _, p := range s.LivingWithRole(game.RoleMarked) {
			if p.Name != actor.Name {
				fellows = append(fellows, p.Name)
			}
		}
		if len(fellows) > 0 {
			fmt.Fprintf(b, "Your fellow marked: %s.\n", strings.Join(fellows, ", "))
		}
	case game.RoleRisen:
		b.WriteString("You serve the harvest alone. You do not know the marked and they do not know you.\n")
	case game.RoleGuard:
		if s.LastGuarded != "" {
			fmt.Fprintf(b, "You watched over %s last night and may not watch them again tonight.\n", s.LastGuarded)
		}
	}
}

func phaseInstruction(s *game.State, actor game.Player) (string, error) {
	living := strings.Join(s.LivingNames(), ", ")
	switch s.Phase {
	case game.PhaseDay:
		if s.IsRevote {
			return "The vote was split and the village is reconsidering. Speak once more; the tied players must stay silent.", nil
		}
		return "It is the day discussion. Speak in character: share suspicions, defend yourself, or mislead as your role demands.", nil
	case game.PhaseVoting:
		return fmt.Sprintf("It is time to vote. Name exactly one living villager to give to the rite. The living are: %s.", living), nil
	case game.PhaseSecretMeeting:
		return "You are meeting in secret. Only the two of you will ever hear what is said.", nil
	case game.PhaseNight:
		switch s.Night {
		case game.NightListener:
			return fmt.Sprintf("Night. Choose one living villager to listen at their door. The living are: %s.", living), nil
		case game.NightMarkedDiscuss:
			return "Night. Confer with your fellow marked about who the harvest should take.", nil
		case game.NightMarkedVote:
			return fmt.Sprintf("Night. Name exactly one living lamb for the harvest to take. The living are: %s.", living), nil
		case game.NightGuard:
			return fmt.Sprintf("Night. Choose one living villager to stand watch over. The living are: %s.", living), nil
		}
	}
	return "", fmt.Errorf("prompt: no instruction for phase %q (%s)", s.Phase, s.Night)
}
