package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/telegram"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const webhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// handleTelegramWebhook acknowledges every well-formed delivery with 200 so that Telegram does
// not redeliver an update whose side effects already happened.
func (h *httpHandler) handleTelegramWebhook(c *gin.Context) {
	if h.webhookSecret != "" {
		presented := c.GetHeader(webhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(h.webhookSecret)) != 1 {
			respondError(c, http.StatusUnauthorized, errorCodeInvalidSecret)
			return
		}
	}

	var update telegram.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		respondError(c, http.StatusBadRequest, errorCodeInvalidRequest)
		return
	}

	if err := h.updates.HandleUpdate(c.Request.Context(), update, requestOrigin(c)); err != nil {
		h.logger.Error("telegram update failed",
			zap.Int64("update_id", update.UpdateID),
			zap.String("request_id", c.GetString(requestIDContextKey)),
			zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
