package game

import (
	"time"

	"github.com/google/uuid"
)

// MessageType distinguishes what a log entry records.
type MessageType string

const (
	// MessageSpeech is a statement made in character.
	MessageSpeech MessageType = "speech"
	// MessageThinking is an agent's private reasoning, visible only to it.
	MessageThinking MessageType = "thinking"
	// MessageNarration is narrator framing or an ability outcome.
	MessageNarration MessageType = "narration"
)

// Scope selects how a message's audience is computed.
type Scope string

const (
	// ScopeEveryone makes the message public.
	ScopeEveryone Scope = "everyone"
	// ScopeChannel restricts the message to holders of one role.
	ScopeChannel Scope = "channel"
	// ScopePlayer restricts the message to a single named player.
	ScopePlayer Scope = "player"
	// ScopePair restricts the message to two named players.
	ScopePair Scope = "pair"
)

// Visibility tags a message with its audience. Channel visibility follows the
// role, not the player: a player sees channel messages only while holding the
// channel's role.
type Visibility struct {
	Scope   Scope    `json:"scope"`
	Channel Role     `json:"channel,omitempty"`
	Players []string `json:"players,omitempty"`
}

// VisibleToAll returns public visibility.
func VisibleToAll() Visibility {
	return Visibility{Scope: ScopeEveryone}
}

// ChannelOnly returns visibility restricted to holders of role.
func ChannelOnly(role Role) Visibility {
	return Visibility{Scope: ScopeChannel, Channel: role}
}

// PlayerOnly returns visibility restricted to one named player.
func PlayerOnly(name string) Visibility {
	return Visibility{Scope: ScopePlayer, Players: []string{name}}
}

// PairOnly returns visibility restricted to two named players.
func PairOnly(a, b string) Visibility {
	return Visibility{Scope: ScopePair, Players: []string{a, b}}
}

// Includes reports whether the visibility admits the given player.
func (v Visibility) Includes(p Player) bool {
	switch v.Scope {
	case ScopeEveryone:
		return true
	case ScopeChannel:
		return p.Role == v.Channel
	case ScopePlayer, ScopePair:
		for _, name := range v.Players {
			if name == p.Name {
				return true
			}
		}
	}
	return false
}

// NarratorName is the From field for engine-authored messages.
const NarratorName = "narrator"

// Message is one immutable entry of the append-only log. Entries are never
// edited; a failed turn removes its own entries wholesale during rollback.
type Message struct {
	ID         string      `json:"id"`
	Type       MessageType `json:"type"`
	From       string      `json:"from"`
	Content    string      `json:"content"`
	Timestamp  time.Time   `json:"timestamp"`
	Round      int         `json:"round"`
	Phase      Phase       `json:"phase"`
	Visibility Visibility  `json:"visibility"`
}

// Append stamps and appends a message to the log, returning the stored entry.
func (s *State) Append(from, content string, t MessageType, vis Visibility) Message {
	msg := Message{
		ID:         uuid.NewString(),
		Type:       t,
		From:       from,
		Content:    content,
		Timestamp:  s.now(),
		Round:      s.Round,
		Phase:      s.Phase,
		Visibility: vis,
	}
	s.Log = append(s.Log, msg)
	return msg
}

// Narrate appends a public narrator message.
func (s *State) Narrate(content string) Message {
	return s.Append(NarratorName, content, MessageNarration, VisibleToAll())
}

// VisibleTo filters the log down to what the given player may read. The
// filter is pure: it never mutates the log and repeated calls agree. A
// player always sees its own thinking entries regardless of tagging.
func (s *State) VisibleTo(p Player) []Message {
	var out []Message
	for _, msg := range s.Log {
		if msg.Type == MessageThinking && msg.From == p.Name {
			out = append(out, msg)
			continue
		}
		if msg.Visibility.Includes(p) {
			out = append(out, msg)
		}
	}
	return out
}
