package middleware

import (
	"context"
	"log/slog"
	"time"

	"issue-bridge/internal/db"
	"issue-bridge/internal/models"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
)

// TrackChat records every chat the bot sees so linked repositories and
// sessions have a chat document to hang off.
func TrackChat(database *db.DB, logger *slog.Logger) func(b *gotgbot.Bot, ctx *ext.Context) error {
	return func(b *gotgbot.Bot, ctx *ext.Context) error {
		chat := ctx.EffectiveChat
		if chat == nil {
			return ext.ContinueGroups
		}

		go func() {
			c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err := database.UpsertChat(c, &models.Chat{
				ID:       chat.Id,
				ChatType: chat.Type,
				Title:    chat.Title,
			})
			if err != nil {
				logger.Debug("chat upsert failed", "chat_id", chat.Id, "err", err)
			}
		}()

		return ext.ContinueGroups
	}
}
