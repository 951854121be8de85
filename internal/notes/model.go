package notes

import (
	"errors"
	"fmt"
	"time"
)

// AutoDeleteMode selects when a note is destroyed.
type AutoDeleteMode string

const (
	// AutoDeleteOff keeps the note until it is deleted explicitly.
	AutoDeleteOff AutoDeleteMode = "off"
	// AutoDelete5m expires the note five minutes after the mode was applied.
	AutoDelete5m AutoDeleteMode = "5m"
	// AutoDelete15m expires the note fifteen minutes after the mode was applied.
	AutoDelete15m AutoDeleteMode = "15m"
	// AutoDelete30m expires the note thirty minutes after the mode was applied.
	AutoDelete30m AutoDeleteMode = "30m"
	// AutoDelete60m expires the note an hour after the mode was applied.
	AutoDelete60m AutoDeleteMode = "60m"
	// AutoDelete24h expires the note a day after the mode was applied.
	AutoDelete24h AutoDeleteMode = "24h"
	// AutoDeleteOnRead deletes the note right after it has been served once.
	AutoDeleteOnRead AutoDeleteMode = "onRead"
)

type autoDeletePolicy struct {
	mode     AutoDeleteMode
	duration time.Duration
	label    string
}

// autoDeletePolicies lists every mode; a zero duration means no wall-clock deadline.
var autoDeletePolicies = []autoDeletePolicy{
	{mode: AutoDeleteOff, label: "Без автоудаления"},
	{mode: AutoDelete5m, duration: 5 * time.Minute, label: "5 мин"},
	{mode: AutoDelete15m, duration: 15 * time.Minute, label: "15 мин"},
	{mode: AutoDelete30m, duration: 30 * time.Minute, label: "30 мин"},
	{mode: AutoDelete60m, duration: 60 * time.Minute, label: "60 мин"},
	{mode: AutoDelete24h, duration: 24 * time.Hour, label: "24 часа"},
	{mode: AutoDeleteOnRead, label: "Удалить при первом прочтении"},
}

var (
	// ErrInvalidNoteID indicates that a note identifier is not a canonical UUID.
	ErrInvalidNoteID = errors.New("notes: invalid note id")
	// ErrInvalidAutoDeleteMode indicates an unknown auto-delete mode.
	ErrInvalidAutoDeleteMode = errors.New("notes: invalid auto-delete mode")
	// ErrNoteNotFound indicates that no live note exists under the identifier.
	ErrNoteNotFound = errors.New("notes: note not found")
	// ErrNoteExpired indicates that the note passed its deadline and was deleted on access.
	ErrNoteExpired = fmt.Errorf("%w: expired", ErrNoteNotFound)
	// ErrEditAccessDenied indicates a missing or wrong edit access token.
	ErrEditAccessDenied = errors.New("notes: edit access denied")
	// ErrNotCreator indicates that a messaging-channel user does not own the note.
	ErrNotCreator = errors.New("notes: requester is not the note creator")
	// ErrInvalidContent indicates a content save without ciphertext or iv.
	ErrInvalidContent = errors.New("notes: invalid content")
)

// AutoDeleteModes returns every mode in presentation order.
func AutoDeleteModes() []AutoDeleteMode {
	modes := make([]AutoDeleteMode, 0, len(autoDeletePolicies))
	for _, policy := range autoDeletePolicies {
		modes = append(modes, policy.mode)
	}
	return modes
}

// ParseAutoDeleteMode validates raw input. Mode names are case-sensitive.
func ParseAutoDeleteMode(raw string) (AutoDeleteMode, error) {
	mode := AutoDeleteMode(raw)
	if !mode.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAutoDeleteMode, raw)
	}
	return mode, nil
}

func (mode AutoDeleteMode) policy() (autoDeletePolicy, bool) {
	for _, policy := range autoDeletePolicies {
		if policy.mode == mode {
			return policy, true
		}
	}
	return autoDeletePolicy{}, false
}

// Valid reports whether the mode is one of the known values.
func (mode AutoDeleteMode) Valid() bool {
	_, ok := mode.policy()
	return ok
}

// Label returns the user-facing name of the mode.
func (mode AutoDeleteMode) Label() string {
	policy, ok := mode.policy()
	if !ok {
		return string(mode)
	}
	return policy.label
}

// Duration returns the wall-clock lifetime for timed modes and false for off and onRead.
func (mode AutoDeleteMode) Duration() (time.Duration, bool) {
	policy, ok := mode.policy()
	if !ok || policy.duration == 0 {
		return 0, false
	}
	return policy.duration, true
}

// String returns the wire value.
func (mode AutoDeleteMode) String() string {
	return string(mode)
}

// Note is the persisted record. Field names double as the stored JSON layout.
type Note struct {
	UUID            string         `json:"uuid"`
	Ciphertext      string         `json:"ciphertext"`
	IV              string         `json:"iv"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	CreatorChatID   int64          `json:"creatorChatId"`
	CreatorUserID   int64          `json:"creatorUserId"`
	AutoDelete      AutoDeleteMode `json:"autoDelete"`
	ExpiresAt       *time.Time     `json:"expiresAt"`
	OpenCount       int64          `json:"openCount"`
	EditAccessToken string         `json:"editAccessToken,omitempty"`
}

// Content is the opaque encrypted payload of a note.
type Content struct {
	Ciphertext string
	IV         string
}

// ApplyAutoDeleteMode sets the mode and derives expiresAt from now. Re-applying a timed mode
// with a later now moves the deadline forward.
func ApplyAutoDeleteMode(note *Note, mode AutoDeleteMode, now time.Time) {
	note.AutoDelete = mode
	duration, timed := mode.Duration()
	if !timed {
		note.ExpiresAt = nil
		return
	}
	expiresAt := now.UTC().Add(duration)
	note.ExpiresAt = &expiresAt
}

// IsExpired reports whether the note has a deadline at or before now.
func (note Note) IsExpired(now time.Time) bool {
	if note.ExpiresAt == nil {
		return false
	}
	return !now.Before(*note.ExpiresAt)
}

// NoteView is the client-visible projection; it never carries the edit access token.
type NoteView struct {
	UUID            string         `json:"uuid"`
	Ciphertext      string         `json:"ciphertext"`
	IV              string         `json:"iv"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	AutoDelete      AutoDeleteMode `json:"autoDelete"`
	AutoDeleteLabel string         `json:"autoDeleteLabel"`
	ExpiresAt       *time.Time     `json:"expiresAt"`
	OpenCount       int64          `json:"openCount"`
}

// View projects the note for clients.
func (note Note) View() NoteView {
	return NoteView{
		UUID:            note.UUID,
		Ciphertext:      note.Ciphertext,
		IV:              note.IV,
		CreatedAt:       note.CreatedAt,
		UpdatedAt:       note.UpdatedAt,
		AutoDelete:      note.AutoDelete,
		AutoDeleteLabel: note.AutoDelete.Label(),
		ExpiresAt:       note.ExpiresAt,
		OpenCount:       note.OpenCount,
	}
}
