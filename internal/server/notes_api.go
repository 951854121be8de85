package server

import (
	"context"
	"net/http"

	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/notes"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	operationCreate     = "create_note"
	operationRead       = "read_note"
	operationUpdate     = "update_note"
	operationDelete     = "delete_note"
	operationAutoDelete = "change_auto_delete"
	taskNotifyOpened    = "notify_note_opened"
)

func (h *httpHandler) handleCreateNote(c *gin.Context) {
	request, err := decodeCreateRequest(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, errorCodeInvalidRequest)
		return
	}

	created, err := h.notesService.Create(c.Request.Context(), request)
	if err != nil {
		h.respondServiceError(c, operationCreate, err)
		return
	}

	links := notes.BuildLinks(notes.NormalizeBaseURL(h.publicDomain, requestOrigin(c)), created.Note, created.FragmentSecret)
	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"viewUrl": links.ViewURL,
		"editUrl": links.EditURL,
		"noteUrl": links.ViewURL,
		"note":    created.Note.View(),
	})
}

func (h *httpHandler) handleReadNote(c *gin.Context) {
	noteID, ok := h.noteIDParam(c)
	if !ok {
		return
	}

	result, err := h.notesService.Read(c.Request.Context(), noteID)
	if err != nil {
		h.respondServiceError(c, operationRead, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":               true,
		"note":             result.Note.View(),
		"deletedAfterRead": result.DeletedAfterRead,
	})

	note := result.Note
	clientIP := c.ClientIP()
	h.tasks.Submit(taskNotifyOpened, func(ctx context.Context) error {
		return h.notifier.NotifyOpened(ctx, note, clientIP)
	})
}

func (h *httpHandler) handleUpdateNote(c *gin.Context) {
	noteID, ok := h.noteIDParam(c)
	if !ok {
		return
	}
	token := accessToken(c)
	if err := h.notesService.Authorize(c.Request.Context(), noteID, token); err != nil {
		h.respondServiceError(c, operationUpdate, err)
		return
	}

	content, err := decodeContent(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, errorCodeInvalidContent)
		return
	}

	updated, err := h.notesService.Update(c.Request.Context(), noteID, token, content)
	if err != nil {
		h.respondServiceError(c, operationUpdate, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"updatedAt":  updated.UpdatedAt,
		"autoDelete": updated.AutoDelete,
		"expiresAt":  updated.ExpiresAt,
	})
}

func (h *httpHandler) handleDeleteNote(c *gin.Context) {
	noteID, ok := h.noteIDParam(c)
	if !ok {
		return
	}
	if err := h.notesService.DeleteWithAccess(c.Request.Context(), noteID, accessToken(c)); err != nil {
		h.respondServiceError(c, operationDelete, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *httpHandler) handleChangeAutoDelete(c *gin.Context) {
	noteID, ok := h.noteIDParam(c)
	if !ok {
		return
	}
	token := accessToken(c)
	if err := h.notesService.Authorize(c.Request.Context(), noteID, token); err != nil {
		h.respondServiceError(c, operationAutoDelete, err)
		return
	}

	mode, err := decodeAutoDeleteMode(c)
	if err != nil {
		h.logger.Debug("rejecting auto-delete payload", zap.Error(err))
		respondError(c, http.StatusBadRequest, errorCodeInvalidMode)
		return
	}

	changed, err := h.notesService.ChangeAutoDelete(c.Request.Context(), noteID, token, mode)
	if err != nil {
		h.respondServiceError(c, operationAutoDelete, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"autoDelete": changed.AutoDelete,
		"expiresAt":  changed.ExpiresAt,
	})
}

func (h *httpHandler) noteIDParam(c *gin.Context) (notes.NoteID, bool) {
	noteID, err := notes.NewNoteID(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, errorCodeInvalidNoteID)
		return "", false
	}
	return noteID, true
}
