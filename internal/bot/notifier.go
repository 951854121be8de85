package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/notes"
	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/telegram"
)

const unknownClientIP = "0.0.0.0"

// NotifyOpened tells the creator that the note was just served to clientIP.
func (b *Bot) NotifyOpened(ctx context.Context, note notes.Note, clientIP string) error {
	ip := strings.TrimSpace(clientIP)
	if ip == "" {
		ip = unknownClientIP
	}
	_, err := b.messenger.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID:                note.CreatorChatID,
		Text:                  fmt.Sprintf("Заметка от %s только что была открыта с IP адреса: %s", b.formatDate(note.CreatedAt), ip),
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("bot: notify opened: %w", err)
	}
	return nil
}
