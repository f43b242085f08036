package callbacks

import (
	"context"
	"log/slog"
	"strings"

	"issue-bridge/internal/bot/session"
	"issue-bridge/internal/cache"
	"issue-bridge/internal/utils"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
)

// Prefix is the callback-data namespace for monitoring buttons.
const Prefix = "mon:"

type CallbackHandler struct {
	Sessions   *session.Manager
	AdminCache *cache.Cache[int64, []int64]
	Log        *slog.Logger
}

func NewCallbackHandler(sessions *session.Manager, adminCache *cache.Cache[int64, []int64], logger *slog.Logger) *CallbackHandler {
	return &CallbackHandler{
		Sessions:   sessions,
		AdminCache: adminCache,
		Log:        logger,
	}
}

// HandleMonitor answers "mon:stop:<chat>:<root>" buttons on task ack messages.
func (h *CallbackHandler) HandleMonitor(b *gotgbot.Bot, ctx *ext.Context) error {
	cb := ctx.CallbackQuery

	parts := strings.SplitN(cb.Data, ":", 3)
	if len(parts) != 3 || parts[1] != "stop" {
		_, err := cb.Answer(b, &gotgbot.AnswerCallbackQueryOpts{Text: "Unknown action."})
		return err
	}
	key := parts[2]

	chat := ctx.EffectiveChat
	if chat.Type != gotgbot.ChatTypePrivate && !utils.IsAdmin(b, chat.Id, cb.From.Id, h.AdminCache) {
		_, err := cb.Answer(b, &gotgbot.AnswerCallbackQueryOpts{
			Text:      "Only admins can stop monitoring.",
			ShowAlert: true,
		})
		return err
	}

	if !h.Sessions.Stop(context.Background(), b, key) {
		_, err := cb.Answer(b, &gotgbot.AnswerCallbackQueryOpts{Text: "Nothing is being monitored here."})
		return err
	}

	if cb.Message != nil {
		_, _, err := b.EditMessageReplyMarkup(&gotgbot.EditMessageReplyMarkupOpts{
			ChatId:    cb.Message.GetChat().Id,
			MessageId: cb.Message.GetMessageId(),
		})
		if err != nil {
			h.Log.Debug("markup edit failed", "key", key, "err", err)
		}
	}

	_, err := cb.Answer(b, &gotgbot.AnswerCallbackQueryOpts{Text: "⏹ Monitoring stopped."})
	return err
}
