package server

import (
	"errors"
	"strings"

	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/notes"
	"github.com/gin-gonic/gin"
)

var errMissingFields = errors.New("required fields missing")

type createNotePayload struct {
	CreatorChatID *int64 `json:"creatorChatId"`
	CreatorUserID *int64 `json:"creatorUserId"`
}

type updateNotePayload struct {
	Ciphertext *string `json:"ciphertext"`
	IV         *string `json:"iv"`
}

type autoDeletePayload struct {
	Mode *string `json:"mode"`
}

func decodeCreateRequest(c *gin.Context) (notes.CreateRequest, error) {
	var payload createNotePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		return notes.CreateRequest{}, err
	}
	if payload.CreatorChatID == nil || payload.CreatorUserID == nil {
		return notes.CreateRequest{}, errMissingFields
	}
	return notes.CreateRequest{
		CreatorChatID: *payload.CreatorChatID,
		CreatorUserID: *payload.CreatorUserID,
	}, nil
}

// decodeContent accepts empty strings; both keys must be present.
func decodeContent(c *gin.Context) (notes.Content, error) {
	var payload updateNotePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		return notes.Content{}, errors.Join(notes.ErrInvalidContent, err)
	}
	if payload.Ciphertext == nil || payload.IV == nil {
		return notes.Content{}, notes.ErrInvalidContent
	}
	return notes.Content{Ciphertext: *payload.Ciphertext, IV: *payload.IV}, nil
}

func decodeAutoDeleteMode(c *gin.Context) (notes.AutoDeleteMode, error) {
	var payload autoDeletePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		return "", err
	}
	if payload.Mode == nil {
		return "", notes.ErrInvalidAutoDeleteMode
	}
	return notes.ParseAutoDeleteMode(*payload.Mode)
}

// accessToken reads ?access=; values without the token shape are treated as absent.
func accessToken(c *gin.Context) string {
	candidate := strings.TrimSpace(c.Query("access"))
	if !auth.IsValidToken(candidate) {
		return ""
	}
	return candidate
}
