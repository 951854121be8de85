package notes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/store"
	"go.uber.org/zap"
)

var (
	errMissingStore      = errors.New("note store is required")
	errMissingGuard      = errors.New("access guard is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingFragments  = errors.New("fragment source is required")
	noOpLogger           = zap.NewNop()
)

type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew        = "notes.service.new"
	opCreate            = "notes.create"
	opRead              = "notes.read"
	opUpdate            = "notes.update"
	opChangeAutoDelete  = "notes.change_auto_delete"
	opLoadForCreator    = "notes.load_for_creator"
	opDelete            = "notes.delete"
	opAuthorize         = "notes.authorize"
	opCountNotes        = "notes.count"
	reasonIDFailed      = "id_generation_failed"
	reasonTokenFailed   = "token_generation_failed"
	reasonFragment      = "fragment_generation_failed"
	reasonStoreGet      = "store_get_failed"
	reasonStorePut      = "store_put_failed"
	reasonStoreDelete   = "store_delete_failed"
	reasonStoreList     = "store_list_failed"
	reasonEncodeFailed  = "encode_failed"
	reasonTokenBackfill = "token_backfill_failed"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

type ServiceConfig struct {
	Store      store.NoteStore
	Guard      TokenGuard
	Fragments  FragmentSource
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// TokenGuard issues edit access tokens and backfills them on legacy records.
type TokenGuard interface {
	NewToken() (string, error)
	EnsureToken(current string) (string, bool, error)
}

// FragmentSource issues URL fragment secrets.
type FragmentSource interface {
	NewFragmentSecret() (string, error)
}

// Service owns the note lifecycle: creation, reads with their bookkeeping, content saves,
// auto-delete policy changes and deletion. Every read-modify-write is a plain
// read-then-overwrite against the store, so concurrent writers to one note resolve as last
// write wins.
type Service struct {
	store      store.NoteStore
	guard      TokenGuard
	fragments  FragmentSource
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, "missing_store", errMissingStore)
	}
	if cfg.Guard == nil {
		return nil, newServiceError(opServiceNew, "missing_guard", errMissingGuard)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	if cfg.Fragments == nil {
		return nil, newServiceError(opServiceNew, "missing_fragments", errMissingFragments)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		store:      cfg.Store,
		guard:      cfg.Guard,
		fragments:  cfg.Fragments,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// CreateRequest identifies the messaging principal that owns a new note.
type CreateRequest struct {
	CreatorChatID int64
	CreatorUserID int64
}

// CreateResult carries the stored note and the fragment secret that only the client keeps.
type CreateResult struct {
	Note           Note
	FragmentSecret string
}

// Create stores an empty note with auto-delete off and a fresh edit access token.
func (s *Service) Create(ctx context.Context, request CreateRequest) (CreateResult, error) {
	rawID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, reasonIDFailed, err)
		return CreateResult{}, newServiceError(opCreate, reasonIDFailed, err)
	}
	noteID, err := NewNoteID(rawID)
	if err != nil {
		s.logError(opCreate, reasonIDFailed, err)
		return CreateResult{}, newServiceError(opCreate, reasonIDFailed, err)
	}
	token, err := s.guard.NewToken()
	if err != nil {
		s.logError(opCreate, reasonTokenFailed, err)
		return CreateResult{}, newServiceError(opCreate, reasonTokenFailed, err)
	}
	fragmentSecret, err := s.fragments.NewFragmentSecret()
	if err != nil {
		s.logError(opCreate, reasonFragment, err)
		return CreateResult{}, newServiceError(opCreate, reasonFragment, err)
	}

	now := s.now()
	note := Note{
		UUID:            noteID.String(),
		CreatedAt:       now,
		UpdatedAt:       now,
		CreatorChatID:   request.CreatorChatID,
		CreatorUserID:   request.CreatorUserID,
		AutoDelete:      AutoDeleteOff,
		EditAccessToken: token,
	}
	if err := s.saveNote(ctx, opCreate, &note); err != nil {
		return CreateResult{}, err
	}

	s.loggerOrDefault().Info("note created",
		zap.String("note_id", note.UUID),
		zap.Int64("creator_chat_id", note.CreatorChatID))
	return CreateResult{Note: note, FragmentSecret: fragmentSecret}, nil
}

// ReadResult is the state served to a reader. Note reflects the record before this read's
// bookkeeping; DeletedAfterRead reports that the record no longer exists.
type ReadResult struct {
	Note             Note
	DeletedAfterRead bool
}

// Read serves a note, increments its open counter and deletes onRead notes after serving them.
// Two concurrent reads of an onRead note may both be served.
func (s *Service) Read(ctx context.Context, id NoteID) (ReadResult, error) {
	note, err := s.loadLiveNote(ctx, opRead, id)
	if err != nil {
		return ReadResult{}, err
	}

	served := *note
	note.OpenCount++

	if note.AutoDelete == AutoDeleteOnRead {
		if err := s.deleteNote(ctx, opRead, id); err != nil {
			return ReadResult{}, err
		}
		return ReadResult{Note: served, DeletedAfterRead: true}, nil
	}

	if err := s.saveNote(ctx, opRead, note); err != nil {
		return ReadResult{}, err
	}
	return ReadResult{Note: served}, nil
}

// Update replaces the encrypted content. The auto-delete policy is left untouched.
func (s *Service) Update(ctx context.Context, id NoteID, accessToken string, content Content) (Note, error) {
	note, err := s.loadEditableNote(ctx, opUpdate, id, accessToken)
	if err != nil {
		return Note{}, err
	}
	note.Ciphertext = content.Ciphertext
	note.IV = content.IV
	note.UpdatedAt = s.now()
	if err := s.saveNote(ctx, opUpdate, note); err != nil {
		return Note{}, err
	}
	return *note, nil
}

// ChangeAutoDelete applies a mode for a caller holding the edit access token.
func (s *Service) ChangeAutoDelete(ctx context.Context, id NoteID, accessToken string, mode AutoDeleteMode) (Note, error) {
	if !mode.Valid() {
		return Note{}, fmt.Errorf("%w: %q", ErrInvalidAutoDeleteMode, mode)
	}
	note, err := s.loadEditableNote(ctx, opChangeAutoDelete, id, accessToken)
	if err != nil {
		return Note{}, err
	}
	return s.applyAutoDelete(ctx, note, mode)
}

// ChangeAutoDeleteAsCreator applies a mode on behalf of a messaging-channel user, who must be
// the note creator.
func (s *Service) ChangeAutoDeleteAsCreator(ctx context.Context, id NoteID, userID int64, mode AutoDeleteMode) (Note, error) {
	if !mode.Valid() {
		return Note{}, fmt.Errorf("%w: %q", ErrInvalidAutoDeleteMode, mode)
	}
	note, err := s.loadOwnedNote(ctx, opChangeAutoDelete, id, userID)
	if err != nil {
		return Note{}, err
	}
	return s.applyAutoDelete(ctx, note, mode)
}

// LoadForCreator returns the note when userID is its creator.
func (s *Service) LoadForCreator(ctx context.Context, id NoteID, userID int64) (Note, error) {
	note, err := s.loadOwnedNote(ctx, opLoadForCreator, id, userID)
	if err != nil {
		return Note{}, err
	}
	return *note, nil
}

// DeleteWithAccess removes the note for a caller holding the edit access token.
func (s *Service) DeleteWithAccess(ctx context.Context, id NoteID, accessToken string) error {
	if _, err := s.loadEditableNote(ctx, opDelete, id, accessToken); err != nil {
		return err
	}
	return s.Delete(ctx, id)
}

// Delete removes the note unconditionally. Deleting an absent note is not an error.
func (s *Service) Delete(ctx context.Context, id NoteID) error {
	return s.deleteNote(ctx, opDelete, id)
}

// Authorize checks the edit access token without mutating the note.
func (s *Service) Authorize(ctx context.Context, id NoteID, accessToken string) error {
	_, err := s.loadEditableNote(ctx, opAuthorize, id, accessToken)
	return err
}

// NoteCount is a best-effort count of stored notes.
type NoteCount struct {
	Count        int
	PagesScanned int
}

// CountNotes walks every page of note keys.
func (s *Service) CountNotes(ctx context.Context) (NoteCount, error) {
	var result NoteCount
	cursor := ""
	for {
		page, err := s.store.List(ctx, store.ListOptions{Prefix: noteKeyPrefix, Cursor: cursor})
		if err != nil {
			s.logError(opCountNotes, reasonStoreList, err)
			return NoteCount{}, newServiceError(opCountNotes, reasonStoreList, err)
		}
		result.Count += len(page.Keys)
		result.PagesScanned++
		if page.Complete || page.Cursor == "" {
			return result, nil
		}
		cursor = page.Cursor
	}
}

func (s *Service) applyAutoDelete(ctx context.Context, note *Note, mode AutoDeleteMode) (Note, error) {
	ApplyAutoDeleteMode(note, mode, s.now())
	if err := s.saveNote(ctx, opChangeAutoDelete, note); err != nil {
		return Note{}, err
	}
	s.loggerOrDefault().Info("auto-delete mode changed",
		zap.String("note_id", note.UUID),
		zap.String("mode", mode.String()))
	return *note, nil
}

func (s *Service) loadEditableNote(ctx context.Context, operation string, id NoteID, accessToken string) (*Note, error) {
	note, err := s.loadLiveNote(ctx, operation, id)
	if err != nil {
		return nil, err
	}
	if !auth.HasEditAccess(note.EditAccessToken, accessToken) {
		return nil, ErrEditAccessDenied
	}
	return note, nil
}

func (s *Service) loadOwnedNote(ctx context.Context, operation string, id NoteID, userID int64) (*Note, error) {
	note, err := s.loadLiveNote(ctx, operation, id)
	if err != nil {
		return nil, err
	}
	if note.CreatorUserID != userID {
		return nil, ErrNotCreator
	}
	return note, nil
}

// loadLiveNote loads the note and deletes it when its deadline has passed.
func (s *Service) loadLiveNote(ctx context.Context, operation string, id NoteID) (*Note, error) {
	note, err := s.loadNote(ctx, operation, id)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, ErrNoteNotFound
	}
	if note.IsExpired(s.clock()) {
		if err := s.deleteNote(ctx, operation, id); err != nil {
			return nil, err
		}
		s.loggerOrDefault().Info("expired note deleted on access", zap.String("note_id", id.String()))
		return nil, ErrNoteExpired
	}
	return note, nil
}

func (s *Service) now() time.Time {
	return s.clock().UTC().Truncate(time.Millisecond)
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("notes service error", attrs...)
}
