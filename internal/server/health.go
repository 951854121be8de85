package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/telegram"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	healthProbeTimeout       = 5 * time.Second
	webhookProbeFailedText   = "Telegram API error."
	notesStoreProbeFailedTxt = "Не удалось получить количество заметок в хранилище."
)

type webhookState struct {
	OK                           bool                  `json:"ok"`
	URL                          *string               `json:"url,omitempty"`
	PendingUpdates               *int64                `json:"pendingUpdates"`
	HasCustomCertificate         bool                  `json:"hasCustomCertificate,omitempty"`
	IPAddress                    string                `json:"ipAddress,omitempty"`
	MaxConnections               *int64                `json:"maxConnections,omitempty"`
	AllowedUpdates               []string              `json:"allowedUpdates,omitempty"`
	LastErrorMessage             string                `json:"lastErrorMessage,omitempty"`
	LastErrorDate                *int64                `json:"lastErrorDate,omitempty"`
	LastErrorAt                  *string               `json:"lastErrorAt,omitempty"`
	LastSynchronizationErrorDate *int64                `json:"lastSynchronizationErrorDate,omitempty"`
	LastSynchronizationErrorAt   *string               `json:"lastSynchronizationErrorAt,omitempty"`
	Description                  string                `json:"description,omitempty"`
	Info                         *telegram.WebhookInfo `json:"info"`
}

type notesStoreState struct {
	OK           bool   `json:"ok"`
	Count        *int   `json:"count"`
	PagesScanned *int   `json:"pagesScanned"`
	Description  string `json:"description,omitempty"`
}

// handleHealth never fails as a whole: each probe reports its own state.
func (h *httpHandler) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthProbeTimeout)
	defer cancel()

	var (
		webhook webhookState
		store   notesStoreState
		group   errgroup.Group
	)
	group.Go(func() error {
		webhook = h.probeWebhook(ctx)
		return nil
	})
	group.Go(func() error {
		store = h.probeNotesStore(ctx)
		return nil
	})
	_ = group.Wait()

	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"now":        h.clock().UTC().Format(time.RFC3339Nano),
		"webhook":    webhook,
		"notesStore": store,
	})
}

func (h *httpHandler) probeWebhook(ctx context.Context) webhookState {
	info, err := h.webhookProbe.GetWebhookInfo(ctx)
	if err != nil {
		h.logger.Warn("webhook probe failed", zap.Error(err))
		description := webhookProbeFailedText
		var apiErr *telegram.APIError
		if errors.As(err, &apiErr) && apiErr.Description != "" {
			description = apiErr.Description
		}
		return webhookState{OK: false, Description: description}
	}

	state := webhookState{
		OK:                           true,
		PendingUpdates:               info.PendingUpdateCount,
		HasCustomCertificate:         info.HasCustomCertificate,
		IPAddress:                    info.IPAddress,
		MaxConnections:               info.MaxConnections,
		AllowedUpdates:               info.AllowedUpdates,
		LastErrorMessage:             info.LastErrorMessage,
		LastErrorDate:                info.LastErrorDate,
		LastErrorAt:                  unixToISO(info.LastErrorDate),
		LastSynchronizationErrorDate: info.LastSynchronizationErrorDate,
		LastSynchronizationErrorAt:   unixToISO(info.LastSynchronizationErrorDate),
		Info:                         &info,
	}
	if info.URL != "" {
		url := info.URL
		state.URL = &url
	}
	return state
}

func (h *httpHandler) probeNotesStore(ctx context.Context) notesStoreState {
	count, err := h.notesService.CountNotes(ctx)
	if err != nil {
		h.logger.Warn("notes store probe failed", zap.Error(err))
		return notesStoreState{OK: false, Description: notesStoreProbeFailedTxt}
	}
	return notesStoreState{OK: true, Count: &count.Count, PagesScanned: &count.PagesScanned}
}

func unixToISO(seconds *int64) *string {
	if seconds == nil {
		return nil
	}
	formatted := time.Unix(*seconds, 0).UTC().Format(time.RFC3339)
	return &formatted
}
