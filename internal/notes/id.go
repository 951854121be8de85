package notes

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const canonicalUUIDLength = 36

// NoteID is a validated, lowercase UUID.
type NoteID string

// NewNoteID accepts the canonical 36-character UUID form in any letter case.
func NewNoteID(rawInput string) (NoteID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if len(trimmed) != canonicalUUIDLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidNoteID, rawInput)
	}
	parsed, err := uuid.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidNoteID, err)
	}
	if parsed.Variant() != uuid.RFC4122 || parsed.Version() < 1 || parsed.Version() > 8 {
		return "", fmt.Errorf("%w: unsupported uuid layout %q", ErrInvalidNoteID, rawInput)
	}
	return NoteID(parsed.String()), nil
}

func (id NoteID) String() string {
	return string(id)
}

// IDProvider allocates identifiers for new notes.
type IDProvider interface {
	NewID() (string, error)
}

type randomIDProvider struct{}

// NewUUIDProvider issues version 4 identifiers; note ids must not leak creation time.
func NewUUIDProvider() IDProvider {
	return randomIDProvider{}
}

func (randomIDProvider) NewID() (string, error) {
	value, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("notes: allocate id: %w", err)
	}
	return value.String(), nil
}
