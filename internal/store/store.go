// Package store persists whole-state snapshots into named save slots. The
// contract is load/save of the full aggregate keyed by an opaque id; callers
// own compatibility across versions.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/marrowfield/vigil/internal/game"
)

// ErrSlotNotFound is returned when no save exists for an id.
var ErrSlotNotFound = errors.New("store: save slot not found")

// Slot describes one named save.
type Slot struct {
	ID      string
	Name    string
	SavedAt time.Time
	Round   int
	Phase   game.Phase
}

// Store is the persistence boundary the operator surface depends on.
type Store interface {
	Save(name string, state *game.State) (Slot, error)
	Load(id string) (*game.State, error)
	List() ([]Slot, error)
	Delete(id string) error
	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS saves (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL,
	saved_at TEXT NOT NULL,
	round    INTEGER NOT NULL,
	phase    TEXT NOT NULL,
	state    BLOB NOT NULL
);`

// SQLite keeps save slots in a single sqlite file.
type SQLite struct {
	db *sql.DB
}

// Open opens (or creates) the save database at path.
func Open(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ensure schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Save snapshots the aggregate into a new slot. The snapshot is a deep copy:
// later mutation of the live state never touches a stored save.
func (s *SQLite) Save(name string, state *game.State) (Slot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Slot{}, fmt.Errorf("store: save name is required")
	}
	if state == nil {
		return Slot{}, fmt.Errorf("store: state is required")
	}
	encoded, err := json.Marshal(state.Clone())
	if err != nil {
		return Slot{}, fmt.Errorf("store: encode state: %w", err)
	}
	slot := Slot{
		ID:      uuid.NewString(),
		Name:    name,
		SavedAt: time.Now().UTC(),
		Round:   state.Round,
		Phase:   state.Phase,
	}
	_, err = s.db.Exec(
		`INSERT INTO saves (id, name, saved_at, round, phase, state) VALUES (?, ?, ?, ?, ?, ?)`,
		slot.ID, slot.Name, slot.SavedAt.Format(time.RFC3339), slot.Round, string(slot.Phase), encoded,
	)
	if err != nil {
		return Slot{}, fmt.Errorf("store: insert save: %w", err)
	}
	return slot, nil
}

// Load decodes the slot's snapshot into an independent aggregate.
func (s *SQLite) Load(id string) (*game.State, error) {
	var encoded []byte
	err := s.db.QueryRow(`SELECT state FROM saves WHERE id = ?`, id).Scan(&encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: read save %s: %w", id, err)
	}
	var state game.State
	if err := json.Unmarshal(encoded, &state); err != nil {
		return nil, fmt.Errorf("store: decode save %s: %w", id, err)
	}
	return &state, nil
}

// List returns all slots, newest first.
func (s *SQLite) List() ([]Slot, error) {
	rows, err := s.db.Query(`SELECT id, name, saved_at, round, phase FROM saves ORDER BY saved_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list saves: %w", err)
	}
	defer rows.Close()
	var slots []Slot
	for rows.Next() {
		var slot Slot
		var savedAt, phase string
		if err := rows.Scan(&slot.ID, &slot.Name, &savedAt, &slot.Round, &phase); err != nil {
			return nil, fmt.Errorf("store: scan save: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339, savedAt); err == nil {
			slot.SavedAt = ts
		}
		slot.Phase = game.Phase(phase)
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// Delete removes a slot.
func (s *SQLite) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM saves WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete save %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}
