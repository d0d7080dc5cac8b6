package chronicle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marrowfield/vigil/internal/game"
)

// Render produces the full chronicle document for a game. The transcript is
// the operator's omniscient view: hidden channels appear tagged rather than
// filtered.
func Render(s *game.State) ([]byte, error) {
	meta := Metadata{
		GameID:    uuid.NewString(),
		Village:   "Marrowfield",
		Rounds:    s.Round,
		CreatedAt: time.Now(),
	}
	if s.Over {
		meta.Winner = string(s.Winner)
	}
	for _, p := range s.Players {
		meta.Cast = append(meta.Cast, fmt.Sprintf("%s (%s)", p.Name, p.Role))
	}
	return WriteFrontMatter(meta, []byte(renderBody(s)))
}

// Export writes the chronicle under dir and returns the file path.
func Export(dir string, s *game.State) (string, error) {
	content, err := Render(s)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("chronicle: ensure dir: %w", err)
	}
	name := fmt.Sprintf("vigil-%s-round-%d.md", time.Now().UTC().Format("20060102-150405"), s.Round)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("chronicle: write %s: %w", name, err)
	}
	return path, nil
}

func renderBody(s *game.State) string {
	var b strings.Builder
	b.WriteString("# The Vigil of Marrowfield\n\n")
	if s.Over {
		fmt.Fprintf(&b, "The %s faction prevailed after %d rounds.\n\n", s.Winner, s.Round)
	} else {
		fmt.Fprintf(&b, "The game is unresolved at round %d.\n\n", s.Round)
	}

	b.WriteString("## Cast\n\n")
	for _, p := range s.Players {
		fate := "survived"
		if !p.Alive {
			fate = "dead"
		}
		fmt.Fprintf(&b, "- %s — %s, %s\n", p.Name, p.Role, fate)
	}

	b.WriteString("\n## Transcript\n\n")
	round := -1
	for _, m := range s.Log {
		if m.Round != round {
			round = m.Round
			fmt.Fprintf(&b, "### Round %d\n\n", round)
		}
		b.WriteString(renderEntry(m))
		b.WriteString("\n")
	}
	return b.String()
}

func renderEntry(m game.Message) string {
	switch m.Type {
	case game.MessageNarration:
		return fmt.Sprintf("*%s*", m.Content)
	case game.MessageThinking:
		return fmt.Sprintf("> %s (thinking): %s", m.From, m.Content)
	default:
		tag := ""
		switch m.Visibility.Scope {
		case game.ScopeChannel:
			tag = fmt.Sprintf(" [%s]", m.Visibility.Channel)
		case game.ScopePair:
			tag = " [in secret]"
		case game.ScopePlayer:
			tag = " [private]"
		}
		return fmt.Sprintf("**%s**%s: %s", m.From, tag, m.Content)
	}
}
