package commands

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"issue-bridge/internal/bot/session"
	"issue-bridge/internal/cache"
	"issue-bridge/internal/config"
	"issue-bridge/internal/db"
	gh "issue-bridge/internal/github"
	"issue-bridge/internal/models"
	"issue-bridge/internal/telegram"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
)

const maxIssueTitleLen = 80

// MentionHandler turns "@bot do something" messages into GitHub issues and
// kicks off a monitoring session for the thread.
type MentionHandler struct {
	Config   *config.Config
	DB       *db.DB
	Factory  *gh.ClientFactory
	Contexts *cache.Cache[string, models.MessageContext]
	Sessions *session.Manager
	Log      *slog.Logger
}

func NewMentionHandler(cfg *config.Config, database *db.DB, factory *gh.ClientFactory, contexts *cache.Cache[string, models.MessageContext], sessions *session.Manager, logger *slog.Logger) *MentionHandler {
	return &MentionHandler{
		Config:   cfg,
		DB:       database,
		Factory:  factory,
		Contexts: contexts,
		Sessions: sessions,
		Log:      logger,
	}
}

func (h *MentionHandler) HandleMention(b *gotgbot.Bot, ctx *ext.Context) error {
	msg := ctx.EffectiveMessage
	chatID := ctx.EffectiveChat.Id

	task := stripMention(msg.Text, b.User.Username)
	if task == "" {
		_, err := msg.Reply(b, "Tell me what to do, e.g. <i>@"+html.EscapeString(b.User.Username)+" fix the flaky login test</i>", &gotgbot.SendMessageOpts{ParseMode: "HTML"})
		return err
	}

	var topicID int64
	if msg.IsTopicMessage && msg.MessageThreadId != 0 {
		topicID = msg.MessageThreadId
	}
	rootID := msg.MessageId
	threadID := rootID
	if topicID != 0 {
		threadID = topicID
	}
	key := models.SessionKey(chatID, threadID)

	if _, err := h.DB.GetSession(context.Background(), key); err == nil {
		_, err := msg.Reply(b, "This thread is already being monitored. Use /cancel first if you want a new task.", nil)
		return err
	}

	owner, repo, err := h.resolveRepo(context.Background(), chatID)
	if err != nil {
		_, err := msg.Reply(b, "No repository configured for this chat. Link one with /link owner/repo.", nil)
		return err
	}

	title := task
	body := ""
	if line, rest, found := strings.Cut(task, "\n"); found {
		title = strings.TrimSpace(line)
		body = strings.TrimSpace(rest)
	}
	title = telegram.Truncate(title, maxIssueTitleLen)

	sender := ctx.EffectiveUser.FirstName
	if ctx.EffectiveUser.Username != "" {
		sender = "@" + ctx.EffectiveUser.Username
	}
	origin := fmt.Sprintf("Opened from Telegram chat %q by %s.", ctx.EffectiveChat.Title, sender)
	if body == "" {
		body = task + "\n\n---\n" + origin
	} else {
		body += "\n\n---\n" + origin
	}

	client := clientFor(context.Background(), h.DB, h.Factory, h.Config, ctx.EffectiveUser.Id)
	issue, issueURL, err := gh.CreateIssue(context.Background(), client, owner, repo, title, body)
	if err != nil {
		h.Log.Error("create issue failed", "chat_id", chatID, "repo", owner+"/"+repo, "err", err)
		_, err := msg.Reply(b, "❌ Failed to open the issue. Check the repository link and token permissions.", nil)
		return err
	}

	keyboard := gotgbot.InlineKeyboardMarkup{
		InlineKeyboard: [][]gotgbot.InlineKeyboardButton{{
			{Text: "View Issue", Url: issueURL},
			{Text: "⏹ Stop", CallbackData: "mon:stop:" + key},
		}},
	}
	ack := fmt.Sprintf("🛰 Opened <b>%s</b> — I'll mirror progress here until it's done.", html.EscapeString(issue.String()))
	if _, err := msg.Reply(b, ack, &gotgbot.SendMessageOpts{ParseMode: "HTML", ReplyMarkup: keyboard}); err != nil {
		h.Log.Warn("ack send failed", "chat_id", chatID, "err", err)
	}

	now := time.Now().UTC()
	sess := &models.Session{
		Key:         key,
		ChatID:      chatID,
		TopicID:     topicID,
		RootID:      rootID,
		Owner:       issue.Owner,
		Repo:        issue.Repo,
		IssueNumber: issue.Number,
		CreatedAt:   now,
		ExpiresAt:   now.Add(db.SessionLifetime),
	}
	if err := h.DB.PutSession(context.Background(), sess); err != nil {
		h.Log.Error("session persist failed", "key", key, "err", err)
		_, err := msg.Reply(b, "Issue created, but I could not start monitoring it.", nil)
		return err
	}

	sink := telegram.NewSink(b, h.Contexts, h.Log, issue)
	if err := sink.SetIndicator(models.MessageRef{ChatID: chatID, MessageID: rootID}); err != nil {
		h.Log.Debug("indicator set failed", "key", key, "err", err)
	}

	h.Sessions.Start(b, sess)
	return nil
}

func (h *MentionHandler) resolveRepo(ctx context.Context, chatID int64) (string, string, error) {
	links, err := h.DB.GetChatLinks(ctx, chatID)
	if err == nil && len(links) > 0 {
		if owner, repo, ok := splitRepo(links[0].RepoFullName); ok {
			return owner, repo, nil
		}
	}
	if owner, repo, ok := splitRepo(h.Config.DefaultRepo); ok {
		return owner, repo, nil
	}
	return "", "", fmt.Errorf("no repository linked for chat %d", chatID)
}

func stripMention(text, username string) string {
	mention := "@" + username
	idx := strings.Index(strings.ToLower(text), strings.ToLower(mention))
	if idx < 0 {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[:idx] + text[idx+len(mention):])
}
