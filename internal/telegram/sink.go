package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"issue-bridge/internal/cache"
	"issue-bridge/internal/models"

	"github.com/PaulSonOfLars/gotgbot/v2"
)

// contextTTL bounds how long a mirrored message stays reply-routable.
const contextTTL = 48 * time.Hour

// Sink delivers monitor output into a Telegram thread. One Sink is built per
// session; the bot and the message-context cache are shared.
type Sink struct {
	bot      *gotgbot.Bot
	contexts *cache.Cache[string, models.MessageContext]
	log      *slog.Logger
	issue    models.IssueRef
}

func NewSink(bot *gotgbot.Bot, contexts *cache.Cache[string, models.MessageContext], logger *slog.Logger, issue models.IssueRef) *Sink {
	return &Sink{
		bot:      bot,
		contexts: contexts,
		log:      logger,
		issue:    issue,
	}
}

func (s *Sink) Post(_ context.Context, thread models.ThreadRef, text string) (models.MessageRef, error) {
	opts := &gotgbot.SendMessageOpts{
		ParseMode: "MarkdownV2",
		LinkPreviewOptions: &gotgbot.LinkPreviewOptions{
			IsDisabled: true,
		},
	}
	if thread.TopicID != 0 {
		opts.MessageThreadId = thread.TopicID
	} else if thread.RootID != 0 {
		opts.ReplyParameters = &gotgbot.ReplyParameters{MessageId: thread.RootID}
	}

	msg, err := s.bot.SendMessage(thread.ChatID, Normalize(RenderBody(text)), opts)
	if err != nil {
		// agent output occasionally trips the MarkdownV2 parser; deliver plain
		s.log.Debug("markdown send failed, retrying plain", "chat_id", thread.ChatID, "err", err)
		opts.ParseMode = ""
		msg, err = s.bot.SendMessage(thread.ChatID, text, opts)
	}
	if err != nil {
		return models.MessageRef{}, err
	}

	ref := models.MessageRef{ChatID: thread.ChatID, MessageID: msg.MessageId}
	s.remember(ref)
	return ref, nil
}

func (s *Sink) Edit(_ context.Context, ref models.MessageRef, text string) (models.MessageRef, error) {
	opts := &gotgbot.EditMessageTextOpts{
		ChatId:    ref.ChatID,
		MessageId: ref.MessageID,
		ParseMode: "MarkdownV2",
		LinkPreviewOptions: &gotgbot.LinkPreviewOptions{
			IsDisabled: true,
		},
	}

	_, _, err := s.bot.EditMessageText(Normalize(RenderBody(text)), opts)
	if err != nil && !strings.Contains(err.Error(), "message is not modified") {
		opts.ParseMode = ""
		_, _, err = s.bot.EditMessageText(text, opts)
	}
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		err = nil
	}
	if err != nil {
		return models.MessageRef{}, err
	}

	s.remember(ref)
	return ref, nil
}

// SetIndicator marks the triggering message with the in-progress reaction.
func (s *Sink) SetIndicator(ref models.MessageRef) error {
	_, err := s.bot.SetMessageReaction(ref.ChatID, ref.MessageID, &gotgbot.SetMessageReactionOpts{
		Reaction: []gotgbot.ReactionType{gotgbot.ReactionTypeEmoji{Emoji: "⏳"}},
	})
	return err
}

// ClearIndicator removes the in-progress reaction again.
func (s *Sink) ClearIndicator(_ context.Context, ref models.MessageRef) error {
	_, err := s.bot.SetMessageReaction(ref.ChatID, ref.MessageID, &gotgbot.SetMessageReactionOpts{})
	return err
}

// remember maps the sent message back to its issue so thread replies can be
// mirrored as issue comments.
func (s *Sink) remember(ref models.MessageRef) {
	key := fmt.Sprintf("%d:%d", ref.ChatID, ref.MessageID)
	s.contexts.Set(key, models.MessageContext{
		Owner:       s.issue.Owner,
		Repo:        s.issue.Repo,
		IssueNumber: s.issue.Number,
	}, contextTTL)
}
