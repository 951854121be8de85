package notes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

const noteKeyPrefix = "note:"

var errStoredNoteMismatch = errors.New("stored note does not match its key")

func storageKey(id NoteID) string {
	return noteKeyPrefix + id.String()
}

// loadNote returns nil when the key is absent or holds an unreadable record. A record without a
// well-formed edit access token receives one and is rewritten before it is returned.
func (s *Service) loadNote(ctx context.Context, operation string, id NoteID) (*Note, error) {
	raw, found, err := s.store.Get(ctx, storageKey(id))
	if err != nil {
		s.logError(operation, reasonStoreGet, err, zap.String("note_id", id.String()))
		return nil, newServiceError(operation, reasonStoreGet, err)
	}
	if !found {
		return nil, nil
	}

	note, err := decodeStoredNote(raw, id)
	if err != nil {
		s.loggerOrDefault().Warn("ignoring unreadable stored note",
			zap.String("note_id", id.String()),
			zap.Error(err))
		return nil, nil
	}

	token, generated, err := s.guard.EnsureToken(note.EditAccessToken)
	if err != nil {
		s.logError(operation, reasonTokenBackfill, err, zap.String("note_id", id.String()))
		return nil, newServiceError(operation, reasonTokenBackfill, err)
	}
	if generated {
		note.EditAccessToken = token
		if err := s.saveNote(ctx, operation, note); err != nil {
			return nil, err
		}
		s.loggerOrDefault().Info("edit access token backfilled", zap.String("note_id", id.String()))
	}
	return note, nil
}

func (s *Service) saveNote(ctx context.Context, operation string, note *Note) error {
	encoded, err := json.Marshal(note)
	if err != nil {
		s.logError(operation, reasonEncodeFailed, err, zap.String("note_id", note.UUID))
		return newServiceError(operation, reasonEncodeFailed, err)
	}
	if err := s.store.Put(ctx, noteKeyPrefix+note.UUID, encoded); err != nil {
		s.logError(operation, reasonStorePut, err, zap.String("note_id", note.UUID))
		return newServiceError(operation, reasonStorePut, err)
	}
	return nil
}

func (s *Service) deleteNote(ctx context.Context, operation string, id NoteID) error {
	if err := s.store.Delete(ctx, storageKey(id)); err != nil {
		s.logError(operation, reasonStoreDelete, err, zap.String("note_id", id.String()))
		return newServiceError(operation, reasonStoreDelete, err)
	}
	return nil
}

func decodeStoredNote(raw []byte, id NoteID) (*Note, error) {
	var note Note
	if err := json.Unmarshal(raw, &note); err != nil {
		return nil, err
	}
	if note.UUID != id.String() {
		return nil, fmt.Errorf("%w: key %s holds %q", errStoredNoteMismatch, id, note.UUID)
	}
	if !note.AutoDelete.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAutoDeleteMode, note.AutoDelete)
	}
	return &note, nil
}
