package telegram

import "github.com/go-telegram/bot/models"

// InviteKeyboard returns a one-button keyboard opening the invite link
func InviteKeyboard(link string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{
				{Text: "Join SLC Trench Scanner", URL: link},
			},
		},
	}
}
