package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/notes"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	errorCodeInvalidRequest   = "invalid_request"
	errorCodeInvalidNoteID    = "invalid_note_id"
	errorCodeInvalidMode      = "invalid_auto_delete_mode"
	errorCodeInvalidContent   = "invalid_content"
	errorCodeAccessDenied     = "access_denied"
	errorCodeNoteNotFound     = "note_not_found"
	errorCodeNoteExpired      = "note_expired"
	errorCodeRouteNotFound    = "route_not_found"
	errorCodeMethodNotAllowed = "method_not_allowed"
	errorCodeInvalidSecret    = "invalid_webhook_secret"
	errorCodeInternal         = "internal_error"
)

func respondError(c *gin.Context, status int, code string) {
	c.AbortWithStatusJSON(status, gin.H{"ok": false, "error": code})
}

// respondServiceError maps lifecycle errors onto statuses. Unexpected errors are logged and
// answered with a generic 500 carrying the service error code when there is one.
func (h *httpHandler) respondServiceError(c *gin.Context, operation string, err error) {
	switch {
	case errors.Is(err, notes.ErrInvalidNoteID):
		respondError(c, http.StatusBadRequest, errorCodeInvalidNoteID)
	case errors.Is(err, notes.ErrInvalidAutoDeleteMode):
		respondError(c, http.StatusBadRequest, errorCodeInvalidMode)
	case errors.Is(err, notes.ErrInvalidContent):
		respondError(c, http.StatusBadRequest, errorCodeInvalidContent)
	case errors.Is(err, notes.ErrEditAccessDenied), errors.Is(err, notes.ErrNotCreator):
		respondError(c, http.StatusForbidden, errorCodeAccessDenied)
	case errors.Is(err, notes.ErrNoteExpired):
		respondError(c, http.StatusNotFound, errorCodeNoteExpired)
	case errors.Is(err, notes.ErrNoteNotFound):
		respondError(c, http.StatusNotFound, errorCodeNoteNotFound)
	default:
		h.logger.Error("request failed",
			zap.String("operation", operation),
			zap.String("request_id", c.GetString(requestIDContextKey)),
			zap.Error(err))
		body := gin.H{"ok": false, "error": errorCodeInternal}
		var serviceErr *notes.ServiceError
		if errors.As(err, &serviceErr) {
			body["code"] = serviceErr.Code()
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, body)
	}
}
