package bot

import (
	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/notes"
	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/telegram"
)

const createNoteButtonText = "Создать заметку"

// selectionLayout is the order of modes in the selection keyboard, two per row.
var selectionLayout = [][]notes.AutoDeleteMode{
	{notes.AutoDelete5m, notes.AutoDelete15m},
	{notes.AutoDelete30m, notes.AutoDelete60m},
	{notes.AutoDelete24h, notes.AutoDeleteOnRead},
	{notes.AutoDeleteOff},
}

func autoDeleteAckText(mode notes.AutoDeleteMode) string {
	return "Автоудаление: " + mode.Label()
}

// controlKeyboard is the single compact button that shows the current mode and opens the menu.
func controlKeyboard(noteID notes.NoteID, mode notes.AutoDeleteMode) telegram.InlineKeyboardMarkup {
	return telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{{
		{Text: autoDeleteAckText(mode), CallbackData: MenuOpenCallback{NoteID: noteID}.Encode()},
	}}}
}

// selectionKeyboard lists every mode; each button remembers the control message to update.
func selectionKeyboard(noteID notes.NoteID, targetMessageID int64) telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(selectionLayout))
	for _, layoutRow := range selectionLayout {
		row := make([]telegram.InlineKeyboardButton, 0, len(layoutRow))
		for _, mode := range layoutRow {
			row = append(row, telegram.InlineKeyboardButton{
				Text: mode.Label(),
				CallbackData: MenuSelectCallback{
					NoteID:          noteID,
					Mode:            mode,
					TargetMessageID: targetMessageID,
				}.Encode(),
			})
		}
		rows = append(rows, row)
	}
	return telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func editorKeyboard(editURL string) telegram.InlineKeyboardMarkup {
	return telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{{
		{Text: "Редактировать", WebApp: &telegram.WebAppInfo{URL: editURL}},
	}}}
}

func startKeyboard() telegram.ReplyKeyboardMarkup {
	return telegram.ReplyKeyboardMarkup{
		Keyboard:       [][]telegram.KeyboardButton{{{Text: createNoteButtonText}}},
		ResizeKeyboard: true,
		IsPersistent:   true,
	}
}
