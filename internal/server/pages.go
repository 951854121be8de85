package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/notes"
	"github.com/gin-gonic/gin"
)

const (
	pageModeView = "view"
	pageModeEdit = "edit"

	templateLanding      = "landing.tmpl"
	templateNote         = "note.tmpl"
	templateAccessDenied = "access_denied.tmpl"
)

type notePage struct {
	Title  string
	NoteID string
	Mode   string
	APIURL string
}

func (h *httpHandler) handleLandingPage(c *gin.Context) {
	c.HTML(http.StatusOK, templateLanding, nil)
}

func (h *httpHandler) handleViewPage(c *gin.Context) {
	noteID, err := notes.NewNoteID(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusNotFound, errorCodeRouteNotFound)
		return
	}
	h.renderNotePage(c, noteID, pageModeView)
}

// handleEditPage checks the access token before serving the editor. A missing note still gets
// the shell so the client can report it.
func (h *httpHandler) handleEditPage(c *gin.Context) {
	noteID, err := notes.NewNoteID(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusNotFound, errorCodeRouteNotFound)
		return
	}

	err = h.notesService.Authorize(c.Request.Context(), noteID, accessToken(c))
	switch {
	case err == nil, errors.Is(err, notes.ErrNoteNotFound):
		h.renderNotePage(c, noteID, pageModeEdit)
	case errors.Is(err, notes.ErrEditAccessDenied):
		c.HTML(http.StatusForbidden, templateAccessDenied, notePage{NoteID: noteID.String()})
	default:
		h.respondServiceError(c, "render_edit_page", err)
	}
}

// handleUnmatchedRoute serves legacy /<uuid> links as the view page.
func (h *httpHandler) handleUnmatchedRoute(c *gin.Context) {
	segment := strings.Trim(c.Request.URL.Path, "/")
	if segment != "" && !strings.Contains(segment, "/") {
		if noteID, err := notes.NewNoteID(segment); err == nil {
			if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
				respondError(c, http.StatusMethodNotAllowed, errorCodeMethodNotAllowed)
				return
			}
			h.renderNotePage(c, noteID, pageModeView)
			return
		}
	}
	respondError(c, http.StatusNotFound, errorCodeRouteNotFound)
}

func (h *httpHandler) renderNotePage(c *gin.Context, noteID notes.NoteID, mode string) {
	title := "Просмотр заметки"
	if mode == pageModeEdit {
		title = "Редактор заметки"
	}
	c.HTML(http.StatusOK, templateNote, notePage{
		Title:  title,
		NoteID: noteID.String(),
		Mode:   mode,
		APIURL: "/api/notes/" + noteID.String(),
	})
}
