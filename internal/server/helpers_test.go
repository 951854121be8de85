package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/background"
	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/notes"
	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/store"
	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/telegram"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	testPublicDomain  = "https://notes.example.com"
	testWebhookSecret = "hook-secret"
)

type recordingUpdates struct {
	mu      sync.Mutex
	updates []telegram.Update
	origins []string
	err     error
}

func (r *recordingUpdates) HandleUpdate(_ context.Context, update telegram.Update, origin string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update)
	r.origins = append(r.origins, origin)
	return r.err
}

type openEvent struct {
	note     notes.Note
	clientIP string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []openEvent
}

func (r *recordingNotifier) NotifyOpened(_ context.Context, note notes.Note, clientIP string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, openEvent{note: note, clientIP: clientIP})
	return nil
}

// inlineTasks runs submitted tasks on the submitting goroutine.
type inlineTasks struct {
	names []string
}

func (r *inlineTasks) Submit(name string, task background.Task) bool {
	r.names = append(r.names, name)
	_ = task(context.Background())
	return true
}

type stubWebhookProbe struct {
	info telegram.WebhookInfo
	err  error
}

func (p stubWebhookProbe) GetWebhookInfo(context.Context) (telegram.WebhookInfo, error) {
	return p.info, p.err
}

type routerFixture struct {
	handler  http.Handler
	service  *notes.Service
	store    *store.MemoryStore
	updates  *recordingUpdates
	notifier *recordingNotifier
	tasks    *inlineTasks
	now      *time.Time
}

type fixtureOption func(*Dependencies)

func newRouterFixture(t *testing.T, options ...fixtureOption) routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	now := time.Date(2024, time.March, 5, 10, 30, 0, 0, time.UTC)
	backing := store.NewMemoryStore()
	service, err := notes.NewService(notes.ServiceConfig{
		Store:      backing,
		Guard:      auth.NewAccessGuard(auth.AccessGuardConfig{}),
		Fragments:  notes.NewFragmentGenerator(notes.FragmentConfig{}),
		Clock:      func() time.Time { return now },
		IDProvider: notes.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	fixture := routerFixture{
		service:  service,
		store:    backing,
		updates:  &recordingUpdates{},
		notifier: &recordingNotifier{},
		tasks:    &inlineTasks{},
		now:      &now,
	}
	deps := Dependencies{
		NotesService:    service,
		Updates:         fixture.updates,
		Notifier:        fixture.notifier,
		Tasks:           fixture.tasks,
		WebhookProbe:    stubWebhookProbe{info: telegram.WebhookInfo{URL: testPublicDomain + "/telegram/webhook"}},
		WebhookSecret:   testWebhookSecret,
		PublicDomain:    testPublicDomain,
		TrustedPlatform: "CF-Connecting-IP",
		AllowedOrigins:  []string{"*"},
		Clock:           func() time.Time { return now },
		Logger:          zap.NewNop(),
	}
	for _, option := range options {
		option(&deps)
	}
	handler, err := NewHTTPHandler(deps)
	if err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}
	fixture.handler = handler
	return fixture
}

func (f routerFixture) do(t *testing.T, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	request := httptest.NewRequest(method, target, reader)
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		request.Header.Set(key, value)
	}
	recorder := httptest.NewRecorder()
	f.handler.ServeHTTP(recorder, request)
	return recorder
}

type createdNote struct {
	OK      bool           `json:"ok"`
	ViewURL string         `json:"viewUrl"`
	EditURL string         `json:"editUrl"`
	NoteURL string         `json:"noteUrl"`
	Note    notes.NoteView `json:"note"`
}

func (c createdNote) token(t *testing.T) string {
	t.Helper()
	start := strings.Index(c.EditURL, "access=")
	end := strings.Index(c.EditURL, "#")
	if start < 0 || end < start {
		t.Fatalf("edit url carries no access token: %s", c.EditURL)
	}
	return c.EditURL[start+len("access=") : end]
}

func (f routerFixture) createNote(t *testing.T) createdNote {
	t.Helper()
	recorder := f.do(t, http.MethodPost, "/api/notes", `{"creatorChatId":1,"creatorUserId":1}`, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected create to succeed, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var created createdNote
	decodeBody(t, recorder, &created)
	return created
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("decode body %q: %v", recorder.Body.String(), err)
	}
}

func expectError(t *testing.T, recorder *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if recorder.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, recorder.Code, recorder.Body.String())
	}
	var body struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	decodeBody(t, recorder, &body)
	if body.OK || body.Error != code {
		t.Fatalf("expected error %q, got %s", code, recorder.Body.String())
	}
}

var errProbeUnavailable = errors.New("probe unavailable")
