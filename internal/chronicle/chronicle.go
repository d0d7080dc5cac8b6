// Package chronicle renders a finished (or paused) game as a markdown
// document with a YAML frontmatter envelope, so a run can be archived,
// diffed, and read back without the engine.
package chronicle

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingFrontMatter indicates the document did not start with a YAML fence.
	ErrMissingFrontMatter = errors.New("chronicle: missing frontmatter")
	// ErrMalformedFrontMatter indicates the YAML block could not be parsed.
	ErrMalformedFrontMatter = errors.New("chronicle: malformed frontmatter")
)

// Metadata describes one archived game.
type Metadata struct {
	GameID    string
	Village   string
	Rounds    int
	Winner    string
	Cast      []string
	CreatedAt time.Time
}

// ParseFrontMatter extracts the metadata block and body from a document that
// starts with `---` YAML fences.
func ParseFrontMatter(content []byte) (Metadata, []byte, error) {
	if len(content) == 0 {
		return Metadata{}, nil, ErrMissingFrontMatter
	}
	normalized := normalizeNewlines(content)
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return Metadata{}, nil, ErrMissingFrontMatter
	}
	rest := normalized[4:]
	parts := bytes.SplitN(rest, []byte("\n---\n"), 2)
	if len(parts) < 2 {
		return Metadata{}, nil, ErrMalformedFrontMatter
	}
	var envelope vigilEnvelope
	if err := yaml.Unmarshal(parts[0], &envelope); err != nil {
		return Metadata{}, nil, fmt.Errorf("chronicle: parse frontmatter: %w", err)
	}
	meta, err := envelope.toMetadata()
	if err != nil {
		return Metadata{}, nil, err
	}
	return meta, parts[1], nil
}

// WriteFrontMatter renders metadata + body with YAML fences.
func WriteFrontMatter(meta Metadata, body []byte) ([]byte, error) {
	if meta.GameID == "" {
		return nil, fmt.Errorf("chronicle: metadata missing game id")
	}
	envelope := vigilEnvelope{}
	envelope.fromMetadata(meta)
	data, err := yaml.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("chronicle: encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(bytes.TrimRight(data, "\n"))
	buf.WriteString("\n---\n\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

type vigilEnvelope struct {
	Vigil vigilMetadata `yaml:"vigil"`
}

type vigilMetadata struct {
	Game    string   `yaml:"game"`
	Village string   `yaml:"village"`
	Rounds  int      `yaml:"rounds"`
	Winner  string   `yaml:"winner,omitempty"`
	Cast    []string `yaml:"cast,omitempty"`
	Created string   `yaml:"created"`
}

func (e vigilEnvelope) toMetadata() (Metadata, error) {
	if e.Vigil.Game == "" || e.Vigil.Village == "" {
		return Metadata{}, ErrMalformedFrontMatter
	}
	created, err := parseTime(e.Vigil.Created)
	if err != nil {
		return Metadata{}, fmt.Errorf("chronicle: parse created timestamp: %w", err)
	}
	return Metadata{
		GameID:    e.Vigil.Game,
		Village:   e.Vigil.Village,
		Rounds:    e.Vigil.Rounds,
		Winner:    e.Vigil.Winner,
		Cast:      append([]string{}, e.Vigil.Cast...),
		CreatedAt: created,
	}, nil
}

func (e *vigilEnvelope) fromMetadata(meta Metadata) {
	e.Vigil.Game = meta.GameID
	e.Vigil.Village = meta.Village
	e.Vigil.Rounds = meta.Rounds
	e.Vigil.Winner = meta.Winner
	e.Vigil.Cast = append([]string{}, meta.Cast...)
	e.Vigil.Created = meta.CreatedAt.UTC().Format(timeLayout)
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func parseTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("chronicle: empty created timestamp")
	}
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func normalizeNewlines(content []byte) []byte {
	return bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
}
