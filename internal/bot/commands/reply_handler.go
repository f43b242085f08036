package commands

import (
	"context"
	"fmt"
	"log/slog"

	"issue-bridge/internal/cache"
	"issue-bridge/internal/config"
	"issue-bridge/internal/db"
	gh "issue-bridge/internal/github"
	"issue-bridge/internal/models"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
)

// ReplyHandler mirrors replies to bot-posted progress updates back to the
// tracked GitHub issue as comments.
type ReplyHandler struct {
	Config   *config.Config
	DB       *db.DB
	Factory  *gh.ClientFactory
	Contexts *cache.Cache[string, models.MessageContext]
	Log      *slog.Logger
}

func NewReplyHandler(cfg *config.Config, database *db.DB, factory *gh.ClientFactory, contexts *cache.Cache[string, models.MessageContext], logger *slog.Logger) *ReplyHandler {
	return &ReplyHandler{
		Config:   cfg,
		DB:       database,
		Factory:  factory,
		Contexts: contexts,
		Log:      logger,
	}
}

// IsReplyToBot reports whether the update is a plain-text reply to one of the
// bot's own messages.
func IsReplyToBot(botID int64) func(msg *gotgbot.Message) bool {
	return func(msg *gotgbot.Message) bool {
		if msg.Text == "" || msg.ReplyToMessage == nil {
			return false
		}
		if msg.ReplyToMessage.From == nil || msg.ReplyToMessage.From.Id != botID {
			return false
		}
		for _, e := range msg.Entities {
			if e.Type == "bot_command" && e.Offset == 0 {
				return false
			}
		}
		return true
	}
}

func (h *ReplyHandler) HandleReply(b *gotgbot.Bot, ctx *ext.Context) error {
	msg := ctx.EffectiveMessage
	chatID := ctx.EffectiveChat.Id

	key := fmt.Sprintf("%d:%d", chatID, msg.ReplyToMessage.MessageId)
	mc, ok := h.Contexts.Get(key)
	if !ok {
		// Not one of our mirrored updates, or the context expired.
		return nil
	}

	author := ctx.EffectiveUser.FirstName
	if ctx.EffectiveUser.Username != "" {
		author = "@" + ctx.EffectiveUser.Username
	}

	issue := models.IssueRef{Owner: mc.Owner, Repo: mc.Repo, Number: mc.IssueNumber}
	client := clientFor(context.Background(), h.DB, h.Factory, h.Config, ctx.EffectiveUser.Id)
	if err := gh.CreateComment(context.Background(), client, issue, author, msg.Text); err != nil {
		h.Log.Error("comment mirror failed", "issue", issue.String(), "err", err)
		_, err := msg.Reply(b, "❌ Could not post your reply to the issue.", nil)
		return err
	}

	_, err := msg.Reply(b, "💬 Posted to "+issue.String(), &gotgbot.SendMessageOpts{
		LinkPreviewOptions: &gotgbot.LinkPreviewOptions{IsDisabled: true},
	})
	return err
}
