package character

import (
	"regexp"
	"strings"

	"github.com/roleplayabyss/abyss/internal/errors"
)

// Character represents a persisted chat persona. Field names and JSON tags
// match the on-disk record format: one JSON object per character, keyed by
// name. Unknown extra fields in stored records are ignored on load.
type Character struct {
	// Name uniquely identifies the character and doubles as the storage
	// key, so it must be filename-safe.
	Name string `json:"name"`

	// Description is free text, typically filled by enrichment for new
	// characters. May be empty.
	Description string `json:"description"`

	// Memory is the personality/backstory text injected verbatim at the
	// top of every prompt.
	Memory string `json:"memory"`

	// NSFW disables the " [safe]" tag on the prompt continuation cue.
	NSFW bool `json:"nsfw"`

	// Avatar is an optional path to an image resource. The engine never
	// validates that the file exists.
	Avatar string `json:"avatar"`
}

// nameRegex permits letters, digits, spaces, and a few safe punctuation
// characters. Path separators and control characters are excluded so the
// name can be used directly as a file stem.
var nameRegex = regexp.MustCompile(`^[\p{L}\p{N}]([\p{L}\p{N} ._'-]*[\p{L}\p{N}._'-])?$`)

// ValidateName checks that a character name is non-empty and filename-safe.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.NewInvalidRequest("character name must not be empty")
	}
	if !nameRegex.MatchString(name) {
		return errors.NewInvalidRequest("character name must contain only letters, digits, spaces, and . _ ' -")
	}
	return nil
}
