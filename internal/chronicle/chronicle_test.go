package chronicle

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/marrowfield/vigil/internal/game"
)

func finishedGame() *game.State {
	s := game.NewState([]game.Player{
		{Name: "Abel", Role: game.RoleShepherd},
		{Name: "Mirren", Role: game.RoleListener},
		{Name: "Oswin", Role: game.RoleMarked},
		{Name: "Tobias", Role: game.RoleGuard},
	})
	s.Phase = game.PhaseDay
	s.Narrate("the frost came early")
	s.Append("Oswin", "we move tonight", game.MessageSpeech, game.ChannelOnly(game.RoleMarked))
	s.Round = 2
	s.Kill("Oswin")
	s.Finish(game.FactionLamb)
	return s
}

func TestFrontMatterRoundTrip(t *testing.T) {
	meta := Metadata{
		GameID:    "g-1",
		Village:   "Marrowfield",
		Rounds:    3,
		Winner:    "lamb",
		Cast:      []string{"Abel (shepherd)", "Oswin (marked)"},
		CreatedAt: time.Date(2026, 1, 10, 20, 0, 0, 0, time.UTC),
	}
	doc, err := WriteFrontMatter(meta, []byte("# body\n"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	parsed, body, err := ParseFrontMatter(doc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.GameID != meta.GameID || parsed.Village != meta.Village || parsed.Rounds != meta.Rounds {
		t.Fatalf("metadata mismatch: %+v", parsed)
	}
	if parsed.Winner != "lamb" || len(parsed.Cast) != 2 {
		t.Fatalf("verdict or cast lost: %+v", parsed)
	}
	if !parsed.CreatedAt.Equal(meta.CreatedAt) {
		t.Fatalf("timestamp mismatch: %v vs %v", parsed.CreatedAt, meta.CreatedAt)
	}
	if string(body) != "# body\n" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestParseFrontMatterErrors(t *testing.T) {
	if _, _, err := ParseFrontMatter(nil); err != ErrMissingFrontMatter {
		t.Fatalf("expected ErrMissingFrontMatter, got %v", err)
	}
	if _, _, err := ParseFrontMatter([]byte("no fences here")); err != ErrMissingFrontMatter {
		t.Fatalf("expected ErrMissingFrontMatter, got %v", err)
	}
	if _, _, err := ParseFrontMatter([]byte("---\nvigil:\n  rounds: 1\n---\nbody")); err != ErrMalformedFrontMatter {
		t.Fatalf("expected ErrMalformedFrontMatter for missing ids, got %v", err)
	}
}

func TestWriteFrontMatterRequiresGameID(t *testing.T) {
	if _, err := WriteFrontMatter(Metadata{Village: "Marrowfield"}, nil); err == nil {
		t.Fatalf("expected rejection without a game id")
	}
}

func TestRenderCarriesVerdictAndHiddenTags(t *testing.T) {
	doc, err := Render(finishedGame())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	text := string(doc)
	if !strings.Contains(text, "lamb faction prevailed") {
		t.Fatalf("expected the verdict:\n%s", text)
	}
	if !strings.Contains(text, "Oswin — marked, dead") {
		t.Fatalf("expected the cast fates:\n%s", text)
	}
	if !strings.Contains(text, "[marked]") {
		t.Fatalf("hidden channels should stay tagged:\n%s", text)
	}
	if !strings.Contains(text, "### Round 1") {
		t.Fatalf("expected round headings:\n%s", text)
	}
}

func TestExportWritesAFile(t *testing.T) {
	dir := t.TempDir()
	path, err := Export(dir, finishedGame())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if meta, _, err := ParseFrontMatter(data); err != nil || meta.Village != "Marrowfield" {
		t.Fatalf("exported file must parse back: %+v %v", meta, err)
	}
}
