package notes

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/store"
	"go.uber.org/zap"
)

const (
	testNoteID        = "6f1c8e0a-3d7b-4c2e-9a51-0b6d2f4e8c13"
	testAccessToken   = "Abcdefghijklmnop12345678"
	testFragment      = "0123456789abcdef0123456789abcdef"
	testCreatorChatID = int64(1)
	testCreatorUserID = int64(1)
)

type stubIDProvider struct {
	ids []string
	err error
}

func (p *stubIDProvider) NewID() (string, error) {
	if p.err != nil {
		return "", p.err
	}
	if len(p.ids) == 0 {
		return "", errors.New("no ids left")
	}
	id := p.ids[0]
	p.ids = p.ids[1:]
	return id, nil
}

type stubFragments struct {
	secret string
	err    error
}

func (f stubFragments) NewFragmentSecret() (string, error) {
	return f.secret, f.err
}

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time {
	return c.now
}

func (c *manualClock) Advance(delta time.Duration) {
	c.now = c.now.Add(delta)
}

type failingStore struct {
	store.NoteStore
	getErr    error
	putErr    error
	deleteErr error
	listErr   error
}

func (s *failingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	return s.NoteStore.Get(ctx, key)
}

func (s *failingStore) Put(ctx context.Context, key string, value []byte) error {
	if s.putErr != nil {
		return s.putErr
	}
	return s.NoteStore.Put(ctx, key, value)
}

func (s *failingStore) Delete(ctx context.Context, key string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.NoteStore.Delete(ctx, key)
}

func (s *failingStore) List(ctx context.Context, options store.ListOptions) (store.ListPage, error) {
	if s.listErr != nil {
		return store.ListPage{}, s.listErr
	}
	return s.NoteStore.List(ctx, options)
}

type serviceFixture struct {
	service *Service
	store   store.NoteStore
	clock   *manualClock
}

func newServiceFixture(t *testing.T, backing store.NoteStore, logger *zap.Logger) serviceFixture {
	t.Helper()
	if backing == nil {
		backing = store.NewMemoryStore()
	}
	clock := &manualClock{now: time.Date(2024, time.March, 5, 10, 30, 0, 0, time.UTC)}
	service, err := NewService(ServiceConfig{
		Store:      backing,
		Guard:      auth.NewAccessGuard(auth.AccessGuardConfig{}),
		Fragments:  stubFragments{secret: testFragment},
		Clock:      clock.Now,
		IDProvider: &stubIDProvider{ids: []string{testNoteID}},
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return serviceFixture{service: service, store: backing, clock: clock}
}

func mustNoteID(t *testing.T, value string) NoteID {
	t.Helper()
	id, err := NewNoteID(value)
	if err != nil {
		t.Fatalf("unexpected note id error: %v", err)
	}
	return id
}

func mustCreate(t *testing.T, fixture serviceFixture) CreateResult {
	t.Helper()
	result, err := fixture.service.Create(context.Background(), CreateRequest{
		CreatorChatID: testCreatorChatID,
		CreatorUserID: testCreatorUserID,
	})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	return result
}

func putRawNote(t *testing.T, backing store.NoteStore, note Note) {
	t.Helper()
	encoded, err := json.Marshal(note)
	if err != nil {
		t.Fatalf("marshal note: %v", err)
	}
	if err := backing.Put(context.Background(), noteKeyPrefix+note.UUID, encoded); err != nil {
		t.Fatalf("put note: %v", err)
	}
}

func storedNote(t *testing.T, backing store.NoteStore, id string) (Note, bool) {
	t.Helper()
	raw, found, err := backing.Get(context.Background(), noteKeyPrefix+id)
	if err != nil {
		t.Fatalf("get note: %v", err)
	}
	if !found {
		return Note{}, false
	}
	var note Note
	if err := json.Unmarshal(raw, &note); err != nil {
		t.Fatalf("unmarshal note: %v", err)
	}
	return note, true
}
