package session

import (
	"strings"

	"github.com/roleplayabyss/abyss/internal/character"
	"github.com/roleplayabyss/abyss/internal/errors"
)

// Role attributes a turn to one side of the conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance in a conversation. Turns are kept strictly in
// insertion order and never reordered.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Session holds one bound character and the append-only turn history for a
// single conversation. A session has exactly one logical writer; concurrent
// conversations each own an independent Session.
//
// Turn alternation is not enforced: turns are accepted in whatever order
// the caller appends them.
type Session struct {
	char  *character.Character
	turns []Turn
}

// New returns an empty session with no character bound.
func New() *Session {
	return &Session{}
}

// Bind replaces the active character and clears the turn history.
func (s *Session) Bind(c character.Character) error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.NewInvalidState("cannot bind a character without a name")
	}
	bound := c
	s.char = &bound
	s.turns = nil
	return nil
}

// Bound reports whether a character is currently bound.
func (s *Session) Bound() bool {
	return s.char != nil
}

// Character returns a copy of the bound character.
// Returns INVALID_STATE if no character is bound.
func (s *Session) Character() (character.Character, error) {
	if s.char == nil {
		return character.Character{}, errors.NewInvalidState("no character bound to session")
	}
	return *s.char, nil
}

// RecordUserTurn appends a user turn. The text must be non-empty after
// trimming whitespace; the trimmed text is what gets recorded.
func (s *Session) RecordUserTurn(text string) error {
	if s.char == nil {
		return errors.NewInvalidState("no character bound to session")
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return errors.NewInvalidState("user turn must not be empty")
	}
	s.turns = append(s.turns, Turn{Role: RoleUser, Content: trimmed})
	return nil
}

// RecordAssistantTurn appends an assistant turn with already-generated
// text. Placeholder replies from a failed generation are recorded like any
// real reply, keeping the transcript consistent.
func (s *Session) RecordAssistantTurn(text string) error {
	if s.char == nil {
		return errors.NewInvalidState("no character bound to session")
	}
	s.turns = append(s.turns, Turn{Role: RoleAssistant, Content: text})
	return nil
}

// BuildPrompt flattens character memory and the turn history into the
// plain-text continuation prompt sent to the generation backend:
//
//	<memory>\n            (only when memory is non-empty)
//	You: <user turn>      (per turn, insertion order)
//	<name>: <assistant turn>
//	<name>[ [safe]]:      (open-ended continuation cue)
//
// No delimiter escaping is performed; turn content containing newlines is
// emitted verbatim. That means adversarial input can inject fake speaker
// labels, an accepted limitation carried over from the transcript format.
func (s *Session) BuildPrompt() (string, error) {
	if s.char == nil {
		return "", errors.NewInvalidState("no character bound to session")
	}

	var b strings.Builder
	if s.char.Memory != "" {
		b.WriteString(s.char.Memory)
		b.WriteString("\n")
	}
	for _, turn := range s.turns {
		if turn.Role == RoleUser {
			b.WriteString("You: ")
		} else {
			b.WriteString(s.char.Name)
			b.WriteString(": ")
		}
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}
	b.WriteString(s.char.Name)
	if !s.char.NSFW {
		b.WriteString(" [safe]")
	}
	b.WriteString(":")
	return b.String(), nil
}

// Turns returns a copy of the turn history.
func (s *Session) Turns() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// LastUserText returns the content of the most recent user turn, or the
// empty string if none exists.
func (s *Session) LastUserText() string {
	for i := len(s.turns) - 1; i >= 0; i-- {
		if s.turns[i].Role == RoleUser {
			return s.turns[i].Content
		}
	}
	return ""
}
