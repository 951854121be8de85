package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/notes"
)

const (
	legacySetPrefix  = "auto"
	menuOpenPrefix   = "auto_menu"
	menuSelectPrefix = "auto_set"
	callbackSep      = ":"
)

// ErrInvalidCallbackParams indicates a recognized callback shape carrying a malformed uuid, mode
// or message id.
var ErrInvalidCallbackParams = errors.New("bot: invalid callback parameters")

// Callback is one of LegacySetCallback, MenuOpenCallback, MenuSelectCallback or UnknownCallback.
type Callback interface {
	callback()
}

// LegacySetCallback is auto:<uuid>:<mode>.
type LegacySetCallback struct {
	NoteID notes.NoteID
	Mode   notes.AutoDeleteMode
}

// MenuOpenCallback is auto_menu:<uuid>.
type MenuOpenCallback struct {
	NoteID notes.NoteID
}

// MenuSelectCallback is auto_set:<uuid>:<mode>:<targetMessageId>. TargetMessageID points at the
// control message whose keyboard shows the current mode.
type MenuSelectCallback struct {
	NoteID          notes.NoteID
	Mode            notes.AutoDeleteMode
	TargetMessageID int64
}

// UnknownCallback is any data that matches none of the known shapes.
type UnknownCallback struct {
	Data string
}

func (LegacySetCallback) callback()  {}
func (MenuOpenCallback) callback()   {}
func (MenuSelectCallback) callback() {}
func (UnknownCallback) callback()    {}

// ParseCallbackData classifies raw callback data by prefix and part count, then validates the
// parameters of the recognized shape.
func ParseCallbackData(data string) (Callback, error) {
	parts := strings.Split(data, callbackSep)
	switch {
	case len(parts) == 3 && parts[0] == legacySetPrefix:
		noteID, mode, err := parseNoteAndMode(parts[1], parts[2])
		if err != nil {
			return nil, err
		}
		return LegacySetCallback{NoteID: noteID, Mode: mode}, nil
	case len(parts) == 2 && parts[0] == menuOpenPrefix:
		noteID, err := notes.NewNoteID(parts[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCallbackParams, err)
		}
		return MenuOpenCallback{NoteID: noteID}, nil
	case len(parts) == 4 && parts[0] == menuSelectPrefix:
		noteID, mode, err := parseNoteAndMode(parts[1], parts[2])
		if err != nil {
			return nil, err
		}
		target, err := strconv.ParseInt(parts[3], 10, 64)
		if err != nil || target <= 0 {
			return nil, fmt.Errorf("%w: target message id %q", ErrInvalidCallbackParams, parts[3])
		}
		return MenuSelectCallback{NoteID: noteID, Mode: mode, TargetMessageID: target}, nil
	default:
		return UnknownCallback{Data: data}, nil
	}
}

func parseNoteAndMode(rawID, rawMode string) (notes.NoteID, notes.AutoDeleteMode, error) {
	noteID, err := notes.NewNoteID(rawID)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidCallbackParams, err)
	}
	mode, err := notes.ParseAutoDeleteMode(rawMode)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidCallbackParams, err)
	}
	return noteID, mode, nil
}

// Encode renders the callback back into its wire form.
func (c LegacySetCallback) Encode() string {
	return strings.Join([]string{legacySetPrefix, c.NoteID.String(), c.Mode.String()}, callbackSep)
}

func (c MenuOpenCallback) Encode() string {
	return strings.Join([]string{menuOpenPrefix, c.NoteID.String()}, callbackSep)
}

func (c MenuSelectCallback) Encode() string {
	return strings.Join([]string{
		menuSelectPrefix,
		c.NoteID.String(),
		c.Mode.String(),
		strconv.FormatInt(c.TargetMessageID, 10),
	}, callbackSep)
}
