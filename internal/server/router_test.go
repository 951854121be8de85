package server

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/notes"
	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/telegram"
)

func TestNewHTTPHandlerRequiresDependencies(t *testing.T) {
	if _, err := NewHTTPHandler(Dependencies{}); err == nil {
		t.Fatalf("expected missing dependency error")
	}
}

func TestNoteLifecycleScenario(t *testing.T) {
	fixture := newRouterFixture(t)
	created := fixture.createNote(t)
	token := created.token(t)
	path := "/api/notes/" + created.Note.UUID

	update := fixture.do(t, http.MethodPut, path+"?access="+token, `{"ciphertext":"AAA","iv":"BBB"}`, nil)
	if update.Code != http.StatusOK {
		t.Fatalf("expected update to succeed, got %d: %s", update.Code, update.Body.String())
	}

	read := fixture.do(t, http.MethodGet, path, "", nil)
	if read.Code != http.StatusOK {
		t.Fatalf("expected read to succeed, got %d", read.Code)
	}
	var readBody struct {
		OK               bool           `json:"ok"`
		Note             notes.NoteView `json:"note"`
		DeletedAfterRead bool           `json:"deletedAfterRead"`
	}
	decodeBody(t, read, &readBody)
	if readBody.Note.Ciphertext != "AAA" || readBody.Note.IV != "BBB" || readBody.DeletedAfterRead {
		t.Fatalf("unexpected read body %s", read.Body.String())
	}

	expectError(t, fixture.do(t, http.MethodDelete, path, "", nil), http.StatusForbidden, errorCodeAccessDenied)

	deleted := fixture.do(t, http.MethodDelete, path+"?access="+token, "", nil)
	if deleted.Code != http.StatusOK || strings.TrimSpace(deleted.Body.String()) != `{"ok":true}` {
		t.Fatalf("expected delete to succeed, got %d: %s", deleted.Code, deleted.Body.String())
	}

	expectError(t, fixture.do(t, http.MethodGet, path, "", nil), http.StatusNotFound, errorCodeNoteNotFound)
}

func TestCreateNoteResponse(t *testing.T) {
	fixture := newRouterFixture(t)
	created := fixture.createNote(t)

	if _, err := notes.NewNoteID(created.Note.UUID); err != nil {
		t.Fatalf("expected uuid in response, got %q", created.Note.UUID)
	}
	fragment := created.ViewURL[strings.Index(created.ViewURL, "#")+1:]
	if !notes.IsFragmentSecret(fragment) {
		t.Fatalf("expected fragment secret in view url, got %s", created.ViewURL)
	}
	if created.ViewURL != testPublicDomain+"/view/"+created.Note.UUID+"#"+fragment {
		t.Fatalf("unexpected view url %s", created.ViewURL)
	}
	if created.NoteURL != created.ViewURL {
		t.Fatalf("expected noteUrl to equal viewUrl")
	}
	if !strings.HasSuffix(created.EditURL, "#"+fragment) {
		t.Fatalf("expected edit url to carry the same fragment, got %s", created.EditURL)
	}
	if created.Note.AutoDelete != notes.AutoDeleteOff || created.Note.AutoDeleteLabel != "Без автоудаления" {
		t.Fatalf("unexpected note projection %+v", created.Note)
	}
}

func TestCreateNoteUsesRequestOriginWithoutPublicDomain(t *testing.T) {
	fixture := newRouterFixture(t, func(deps *Dependencies) { deps.PublicDomain = "" })
	recorder := fixture.do(t, http.MethodPost, "/api/notes", `{"creatorChatId":1,"creatorUserId":2}`,
		map[string]string{"X-Forwarded-Proto": "https"})
	var created createdNote
	decodeBody(t, recorder, &created)
	if !strings.HasPrefix(created.ViewURL, "https://example.com/view/") {
		t.Fatalf("expected request origin in view url, got %s", created.ViewURL)
	}
}

func TestCreateNoteRejectsInvalidPayloads(t *testing.T) {
	fixture := newRouterFixture(t)
	for _, body := range []string{
		"",
		"{",
		`{"creatorChatId":"1","creatorUserId":1}`,
		`{"creatorChatId":1.5,"creatorUserId":1}`,
		`{"creatorChatId":1}`,
		`[]`,
	} {
		recorder := fixture.do(t, http.MethodPost, "/api/notes", body, map[string]string{"Content-Type": "application/json"})
		expectError(t, recorder, http.StatusBadRequest, errorCodeInvalidRequest)
	}
}

func TestInvalidNoteIDIsRejected(t *testing.T) {
	fixture := newRouterFixture(t)
	expectError(t, fixture.do(t, http.MethodGet, "/api/notes/not-a-uuid", "", nil), http.StatusBadRequest, errorCodeInvalidNoteID)
	expectError(t, fixture.do(t, http.MethodPost, "/api/notes/123/auto-delete", `{"mode":"5m"}`, nil), http.StatusBadRequest, errorCodeInvalidNoteID)
}

func TestReadAcceptsUppercaseID(t *testing.T) {
	fixture := newRouterFixture(t)
	created := fixture.createNote(t)
	recorder := fixture.do(t, http.MethodGet, "/api/notes/"+strings.ToUpper(created.Note.UUID), "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected uppercase id to resolve, got %d", recorder.Code)
	}
}

func TestUpdateRequiresAccessBeforeBodyValidation(t *testing.T) {
	fixture := newRouterFixture(t)
	created := fixture.createNote(t)
	path := "/api/notes/" + created.Note.UUID

	expectError(t, fixture.do(t, http.MethodPut, path, `{"ciphertext":"AAA","iv":"BBB"}`, nil), http.StatusForbidden, errorCodeAccessDenied)
	expectError(t, fixture.do(t, http.MethodPut, path+"?access=short", `not json`, nil), http.StatusForbidden, errorCodeAccessDenied)
	expectError(t, fixture.do(t, http.MethodPut, path+"?access=Wrongtoken1234567890abcd", `{"ciphertext":"AAA","iv":"BBB"}`, nil), http.StatusForbidden, errorCodeAccessDenied)

	token := created.token(t)
	expectError(t, fixture.do(t, http.MethodPut, path+"?access="+token, `{"ciphertext":1,"iv":"BBB"}`, nil), http.StatusBadRequest, errorCodeInvalidContent)
	expectError(t, fixture.do(t, http.MethodPut, path+"?access="+token, `{"ciphertext":"AAA"}`, nil), http.StatusBadRequest, errorCodeInvalidContent)

	read := fixture.do(t, http.MethodGet, path, "", nil)
	var body struct {
		Note notes.NoteView `json:"note"`
	}
	decodeBody(t, read, &body)
	if body.Note.Ciphertext != "" || body.Note.IV != "" {
		t.Fatalf("expected content untouched, got %+v", body.Note)
	}
}

func TestChangeAutoDelete(t *testing.T) {
	fixture := newRouterFixture(t)
	created := fixture.createNote(t)
	token := created.token(t)
	path := "/api/notes/" + created.Note.UUID + "/auto-delete"

	expectError(t, fixture.do(t, http.MethodPost, path, `{"mode":"5m"}`, nil), http.StatusForbidden, errorCodeAccessDenied)
	expectError(t, fixture.do(t, http.MethodPost, path+"?access="+token, `{"mode":"1y"}`, nil), http.StatusBadRequest, errorCodeInvalidMode)
	expectError(t, fixture.do(t, http.MethodPost, path+"?access="+token, `{}`, nil), http.StatusBadRequest, errorCodeInvalidMode)

	recorder := fixture.do(t, http.MethodPost, path+"?access="+token, `{"mode":"5m"}`, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected change to succeed, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var body struct {
		OK         bool                 `json:"ok"`
		AutoDelete notes.AutoDeleteMode `json:"autoDelete"`
		ExpiresAt  *time.Time           `json:"expiresAt"`
	}
	decodeBody(t, recorder, &body)
	if body.AutoDelete != notes.AutoDelete5m || body.ExpiresAt == nil {
		t.Fatalf("unexpected body %s", recorder.Body.String())
	}
	if body.ExpiresAt.Sub(created.Note.CreatedAt) != 5*time.Minute {
		t.Fatalf("expected five minute deadline, got %v", body.ExpiresAt.Sub(created.Note.CreatedAt))
	}
}

func TestTimedNoteExpiresOnAccess(t *testing.T) {
	fixture := newRouterFixture(t)
	created := fixture.createNote(t)
	token := created.token(t)
	path := "/api/notes/" + created.Note.UUID

	fixture.do(t, http.MethodPost, path+"/auto-delete?access="+token, `{"mode":"5m"}`, nil)
	*fixture.now = fixture.now.Add(5 * time.Minute)

	expectError(t, fixture.do(t, http.MethodGet, path, "", nil), http.StatusNotFound, errorCodeNoteExpired)
	expectError(t, fixture.do(t, http.MethodGet, path, "", nil), http.StatusNotFound, errorCodeNoteNotFound)
}

func TestOnReadNoteIsServedOnce(t *testing.T) {
	fixture := newRouterFixture(t)
	created := fixture.createNote(t)
	token := created.token(t)
	path := "/api/notes/" + created.Note.UUID

	fixture.do(t, http.MethodPut, path+"?access="+token, `{"ciphertext":"c2VjcmV0","iv":"aXY="}`, nil)
	fixture.do(t, http.MethodPost, path+"/auto-delete?access="+token, `{"mode":"onRead"}`, nil)

	first := fixture.do(t, http.MethodGet, path, "", nil)
	var body struct {
		Note             notes.NoteView `json:"note"`
		DeletedAfterRead bool           `json:"deletedAfterRead"`
	}
	decodeBody(t, first, &body)
	if !body.DeletedAfterRead || body.Note.Ciphertext != "c2VjcmV0" {
		t.Fatalf("unexpected first read %s", first.Body.String())
	}
	expectError(t, fixture.do(t, http.MethodGet, path, "", nil), http.StatusNotFound, errorCodeNoteNotFound)
}

func TestReadSchedulesOpenNotification(t *testing.T) {
	fixture := newRouterFixture(t)
	created := fixture.createNote(t)

	fixture.do(t, http.MethodGet, "/api/notes/"+created.Note.UUID, "", map[string]string{"CF-Connecting-IP": "203.0.113.9"})

	if len(fixture.tasks.names) != 1 || fixture.tasks.names[0] != taskNotifyOpened {
		t.Fatalf("expected one notification task, got %v", fixture.tasks.names)
	}
	if len(fixture.notifier.events) != 1 {
		t.Fatalf("expected one notification, got %d", len(fixture.notifier.events))
	}
	event := fixture.notifier.events[0]
	if event.clientIP != "203.0.113.9" || event.note.CreatorChatID != 1 {
		t.Fatalf("unexpected notification %+v", event)
	}
}

func TestMethodNotAllowedAndUnknownRoutes(t *testing.T) {
	fixture := newRouterFixture(t)
	created := fixture.createNote(t)

	expectError(t, fixture.do(t, http.MethodPatch, "/api/notes/"+created.Note.UUID, "", nil), http.StatusMethodNotAllowed, errorCodeMethodNotAllowed)
	expectError(t, fixture.do(t, http.MethodGet, "/telegram/webhook", "", nil), http.StatusMethodNotAllowed, errorCodeMethodNotAllowed)
	expectError(t, fixture.do(t, http.MethodPost, "/view/"+created.Note.UUID, "", nil), http.StatusMethodNotAllowed, errorCodeMethodNotAllowed)
	expectError(t, fixture.do(t, http.MethodPost, "/"+created.Note.UUID, "", nil), http.StatusMethodNotAllowed, errorCodeMethodNotAllowed)
	expectError(t, fixture.do(t, http.MethodGet, "/nowhere", "", nil), http.StatusNotFound, errorCodeRouteNotFound)
	expectError(t, fixture.do(t, http.MethodGet, "/view/not-a-uuid", "", nil), http.StatusNotFound, errorCodeRouteNotFound)
}

func TestResponsesCarryRequestIDAndNoStore(t *testing.T) {
	fixture := newRouterFixture(t)
	recorder := fixture.do(t, http.MethodGet, "/health", "", map[string]string{requestIDHeader: "req-42"})
	if recorder.Header().Get(requestIDHeader) != "req-42" {
		t.Fatalf("expected request id to be echoed, got %q", recorder.Header().Get(requestIDHeader))
	}
	if recorder.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("expected no-store, got %q", recorder.Header().Get("Cache-Control"))
	}

	generated := fixture.do(t, http.MethodGet, "/health", "", nil)
	if generated.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestCORSPreflight(t *testing.T) {
	fixture := newRouterFixture(t)
	recorder := fixture.do(t, http.MethodOptions, "/api/notes/6f1c8e0a-3d7b-4c2e-9a51-0b6d2f4e8c13", "", map[string]string{
		"Origin":                        "https://app.example.com",
		"Access-Control-Request-Method": http.MethodPut,
	})
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected preflight to succeed, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Header().Get("Access-Control-Allow-Methods"), http.MethodPut) {
		t.Fatalf("expected PUT to be allowed, got %q", recorder.Header().Get("Access-Control-Allow-Methods"))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	fixture := newRouterFixture(t, func(deps *Dependencies) { deps.EnableMetrics = true })
	fixture.do(t, http.MethodGet, "/health", "", nil)
	recorder := fixture.do(t, http.MethodGet, "/metrics", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected metrics endpoint, got %d", recorder.Code)
	}
}

func TestWebhookUpdateReachesHandler(t *testing.T) {
	fixture := newRouterFixture(t)
	body := `{"update_id":9,"message":{"message_id":1,"chat":{"id":5},"from":{"id":6},"text":"/start"}}`

	expectError(t, fixture.do(t, http.MethodPost, "/telegram/webhook", body, nil), http.StatusUnauthorized, errorCodeInvalidSecret)
	expectError(t, fixture.do(t, http.MethodPost, "/telegram/webhook", body, map[string]string{webhookSecretHeader: "nope"}), http.StatusUnauthorized, errorCodeInvalidSecret)
	expectError(t, fixture.do(t, http.MethodPost, "/telegram/webhook", "{", map[string]string{webhookSecretHeader: testWebhookSecret}), http.StatusBadRequest, errorCodeInvalidRequest)

	recorder := fixture.do(t, http.MethodPost, "/telegram/webhook", body, map[string]string{webhookSecretHeader: testWebhookSecret})
	if recorder.Code != http.StatusOK || strings.TrimSpace(recorder.Body.String()) != `{"ok":true}` {
		t.Fatalf("expected ok, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if len(fixture.updates.updates) != 1 {
		t.Fatalf("expected one update, got %d", len(fixture.updates.updates))
	}
	received := fixture.updates.updates[0]
	if received.UpdateID != 9 || received.Message == nil || received.Message.Text != "/start" || received.Message.From.ID != 6 {
		t.Fatalf("unexpected update %+v", received)
	}
	if fixture.updates.origins[0] != "http://example.com" {
		t.Fatalf("unexpected origin %s", fixture.updates.origins[0])
	}
}

func TestWebhookAcknowledgesFailedUpdates(t *testing.T) {
	fixture := newRouterFixture(t, func(deps *Dependencies) { deps.WebhookSecret = "" })
	fixture.updates.err = errProbeUnavailable

	recorder := fixture.do(t, http.MethodPost, "/telegram/webhook", `{"update_id":1,"callback_query":{"id":"cb","from":{"id":1},"data":"auto_menu:x"}}`, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected ok, got %d", recorder.Code)
	}
}

func TestHealthReportsProbes(t *testing.T) {
	fixture := newRouterFixture(t)
	fixture.createNote(t)
	fixture.createNote(t)

	recorder := fixture.do(t, http.MethodGet, "/health", "", nil)
	var body struct {
		OK      bool   `json:"ok"`
		Now     string `json:"now"`
		Webhook struct {
			OK  bool   `json:"ok"`
			URL string `json:"url"`
		} `json:"webhook"`
		NotesStore struct {
			OK           bool `json:"ok"`
			Count        int  `json:"count"`
			PagesScanned int  `json:"pagesScanned"`
		} `json:"notesStore"`
	}
	decodeBody(t, recorder, &body)
	if !body.OK || body.Now != "2024-03-05T10:30:00Z" {
		t.Fatalf("unexpected health header %s", recorder.Body.String())
	}
	if !body.Webhook.OK || body.Webhook.URL != testPublicDomain+"/telegram/webhook" {
		t.Fatalf("unexpected webhook state %s", recorder.Body.String())
	}
	if !body.NotesStore.OK || body.NotesStore.Count != 2 || body.NotesStore.PagesScanned != 1 {
		t.Fatalf("unexpected store state %s", recorder.Body.String())
	}
}

func TestHealthSurvivesWebhookFailure(t *testing.T) {
	fixture := newRouterFixture(t, func(deps *Dependencies) {
		deps.WebhookProbe = stubWebhookProbe{err: &telegram.APIError{Method: "getWebhookInfo", Description: "Unauthorized"}}
	})
	recorder := fixture.do(t, http.MethodGet, "/health", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), `"webhook":{"ok":false,"pendingUpdates":null,"description":"Unauthorized","info":null}`) {
		t.Fatalf("unexpected body %s", recorder.Body.String())
	}
}
