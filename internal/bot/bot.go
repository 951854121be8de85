// Package bot handles Telegram updates: chat commands that create notes and the inline keyboard
// callbacks that change a note's auto-delete mode.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/notes"
	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/telegram"
	"go.uber.org/zap"
)

const (
	startCommand = "/start"

	textStart            = "Нажмите кнопку \"Создать заметку\", чтобы получить ссылку и открыть редактор."
	textControl          = "Настройка автоудаления заметки:"
	textInvalidParams    = "Некорректные параметры."
	textNoteNotFound     = "Заметка не найдена."
	textNotCreator       = "Только создатель может менять автоудаление."
	textMenuMessageGone  = "Сообщение для выбора не найдено."
	textSelectionGone    = "Сообщение с выбором не найдено."
	textMenuOpenFailed   = "Не удалось открыть список режимов."
	textMenuOpened       = "Выберите режим автоудаления."
	textKeyboardDegraded = "Режим сохранен, но кнопку обновить не удалось."
	textUnknownCommand   = "Неизвестная команда."
	textInternalError    = "Внутренняя ошибка сервера."

	dateLayout = "02.01.06, 15:04"
)

var (
	errMissingNotes     = errors.New("bot: note manager is required")
	errMissingMessenger = errors.New("bot: messenger is required")
)

// Messenger is the subset of the Bot API the bot drives.
type Messenger interface {
	SendMessage(ctx context.Context, request telegram.SendMessageRequest) (telegram.Message, error)
	EditMessageReplyMarkup(ctx context.Context, chatID, messageID int64, markup telegram.InlineKeyboardMarkup) error
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error
}

// NoteManager is the lifecycle surface available to messaging-channel users.
type NoteManager interface {
	Create(ctx context.Context, request notes.CreateRequest) (notes.CreateResult, error)
	LoadForCreator(ctx context.Context, id notes.NoteID, userID int64) (notes.Note, error)
	ChangeAutoDeleteAsCreator(ctx context.Context, id notes.NoteID, userID int64, mode notes.AutoDeleteMode) (notes.Note, error)
}

type Config struct {
	Notes        NoteManager
	Messenger    Messenger
	PublicDomain string
	Location     *time.Location
	Logger       *zap.Logger
}

type Bot struct {
	notes        NoteManager
	messenger    Messenger
	publicDomain string
	location     *time.Location
	logger       *zap.Logger
}

func New(cfg Config) (*Bot, error) {
	if cfg.Notes == nil {
		return nil, errMissingNotes
	}
	if cfg.Messenger == nil {
		return nil, errMissingMessenger
	}
	location := cfg.Location
	if location == nil {
		location = time.UTC
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		notes:        cfg.Notes,
		messenger:    cfg.Messenger,
		publicDomain: cfg.PublicDomain,
		location:     location,
		logger:       logger,
	}, nil
}

// HandleUpdate dispatches one webhook update. origin is the externally visible base of the
// request and is used for links when no public domain is configured. Messaging-API failures
// are logged and degrade replies; only failures to create a requested note are returned.
func (b *Bot) HandleUpdate(ctx context.Context, update telegram.Update, origin string) error {
	if message := update.Message; message != nil && message.Text != "" {
		chatID := message.Chat.ID
		userID := chatID
		if message.From != nil {
			userID = message.From.ID
		}
		text := strings.TrimSpace(message.Text)

		if text == startCommand {
			b.send(ctx, telegram.SendMessageRequest{ChatID: chatID, Text: textStart, ReplyMarkup: startKeyboard()})
			return nil
		}
		if strings.ToLower(text) == strings.ToLower(createNoteButtonText) {
			return b.createNote(ctx, chatID, userID, origin)
		}
	}

	if query := update.CallbackQuery; query != nil && query.Data != "" {
		b.handleCallback(ctx, *query)
	}
	return nil
}

func (b *Bot) createNote(ctx context.Context, chatID, userID int64, origin string) error {
	created, err := b.notes.Create(ctx, notes.CreateRequest{CreatorChatID: chatID, CreatorUserID: userID})
	if err != nil {
		return fmt.Errorf("bot: create note: %w", err)
	}
	note := created.Note
	links := notes.BuildLinks(notes.NormalizeBaseURL(b.publicDomain, origin), note, created.FragmentSecret)

	text := strings.Join([]string{
		fmt.Sprintf("Заметка от %s создана.", b.formatDate(note.CreatedAt)),
		"",
		"Ссылка для просмотра: " + links.ViewURL,
		"",
		"Кнопка ниже открывает webview-редактор.",
	}, "\n")
	b.send(ctx, telegram.SendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		DisableWebPagePreview: true,
		ReplyMarkup:           editorKeyboard(links.EditURL),
	})
	b.send(ctx, telegram.SendMessageRequest{
		ChatID:      chatID,
		Text:        textControl,
		ReplyMarkup: controlKeyboard(notes.NoteID(note.UUID), note.AutoDelete),
	})
	return nil
}

// handleCallback always ends with exactly one acknowledgement of the query.
func (b *Bot) handleCallback(ctx context.Context, query telegram.CallbackQuery) {
	parsed, err := ParseCallbackData(query.Data)
	if err != nil {
		b.logger.Info("rejecting callback", zap.String("data", query.Data), zap.Error(err))
		b.answer(ctx, query.ID, textInvalidParams)
		return
	}

	switch callback := parsed.(type) {
	case LegacySetCallback:
		b.answer(ctx, query.ID, b.applyLegacySet(ctx, query, callback))
	case MenuOpenCallback:
		b.answer(ctx, query.ID, b.openMenu(ctx, query, callback))
	case MenuSelectCallback:
		b.answer(ctx, query.ID, b.selectFromMenu(ctx, query, callback))
	default:
		b.answer(ctx, query.ID, textUnknownCommand)
	}
}

func (b *Bot) applyLegacySet(ctx context.Context, query telegram.CallbackQuery, callback LegacySetCallback) string {
	note, err := b.notes.ChangeAutoDeleteAsCreator(ctx, callback.NoteID, query.From.ID, callback.Mode)
	if err != nil {
		return b.lifecycleErrorText(callback.NoteID, err)
	}
	return autoDeleteAckText(note.AutoDelete)
}

func (b *Bot) openMenu(ctx context.Context, query telegram.CallbackQuery, callback MenuOpenCallback) string {
	if query.Message == nil {
		return textMenuMessageGone
	}
	note, err := b.notes.LoadForCreator(ctx, callback.NoteID, query.From.ID)
	if err != nil {
		return b.lifecycleErrorText(callback.NoteID, err)
	}

	control := query.Message
	_, err = b.messenger.SendMessage(ctx, telegram.SendMessageRequest{
		ChatID:      control.Chat.ID,
		Text:        fmt.Sprintf("Текущий режим: %s. Выберите новый режим автоудаления:", note.AutoDelete.Label()),
		ReplyMarkup: selectionKeyboard(callback.NoteID, control.MessageID),
	})
	if err != nil {
		b.logger.Warn("auto-delete menu not sent", zap.String("note_id", callback.NoteID.String()), zap.Error(err))
		return textMenuOpenFailed
	}
	return textMenuOpened
}

// selectFromMenu applies the mode before touching the UI; UI failures never roll it back.
func (b *Bot) selectFromMenu(ctx context.Context, query telegram.CallbackQuery, callback MenuSelectCallback) string {
	if query.Message == nil {
		return textSelectionGone
	}
	note, err := b.notes.ChangeAutoDeleteAsCreator(ctx, callback.NoteID, query.From.ID, callback.Mode)
	if err != nil {
		return b.lifecycleErrorText(callback.NoteID, err)
	}

	chatID := query.Message.Chat.ID
	degraded := false
	if err := b.messenger.DeleteMessage(ctx, chatID, query.Message.MessageID); err != nil {
		b.logger.Warn("auto-delete selection message not deleted",
			zap.String("note_id", callback.NoteID.String()),
			zap.Error(err))
		degraded = true
	}
	if err := b.messenger.EditMessageReplyMarkup(ctx, chatID, callback.TargetMessageID, controlKeyboard(callback.NoteID, note.AutoDelete)); err != nil {
		b.logger.Warn("auto-delete control keyboard not updated",
			zap.String("note_id", callback.NoteID.String()),
			zap.Int64("target_message_id", callback.TargetMessageID),
			zap.Error(err))
		degraded = true
	}
	if degraded {
		return textKeyboardDegraded
	}
	return autoDeleteAckText(note.AutoDelete)
}

func (b *Bot) lifecycleErrorText(noteID notes.NoteID, err error) string {
	switch {
	case errors.Is(err, notes.ErrNoteNotFound):
		return textNoteNotFound
	case errors.Is(err, notes.ErrNotCreator):
		return textNotCreator
	default:
		b.logger.Error("callback lifecycle failure", zap.String("note_id", noteID.String()), zap.Error(err))
		return textInternalError
	}
}

func (b *Bot) send(ctx context.Context, request telegram.SendMessageRequest) {
	if _, err := b.messenger.SendMessage(ctx, request); err != nil {
		b.logger.Warn("message not sent", zap.Int64("chat_id", request.ChatID), zap.Error(err))
	}
}

func (b *Bot) answer(ctx context.Context, callbackQueryID, text string) {
	if err := b.messenger.AnswerCallbackQuery(ctx, callbackQueryID, text); err != nil {
		b.logger.Warn("callback not acknowledged", zap.String("callback_query_id", callbackQueryID), zap.Error(err))
	}
}

func (b *Bot) formatDate(value time.Time) string {
	return value.In(b.location).Format(dateLayout)
}
