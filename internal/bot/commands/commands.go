package commands

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"issue-bridge/internal/bot/session"
	"issue-bridge/internal/cache"
	"issue-bridge/internal/config"
	"issue-bridge/internal/db"
	gh "issue-bridge/internal/github"
	"issue-bridge/internal/models"
	"issue-bridge/internal/utils"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/google/go-github/v80/github"
)

type CommandHandler struct {
	Config     *config.Config
	DB         *db.DB
	Factory    *gh.ClientFactory
	Sessions   *session.Manager
	AdminCache *cache.Cache[int64, []int64]
	Log        *slog.Logger
}

func NewCommandHandler(cfg *config.Config, database *db.DB, factory *gh.ClientFactory, sessions *session.Manager, adminCache *cache.Cache[int64, []int64], logger *slog.Logger) *CommandHandler {
	return &CommandHandler{
		Config:     cfg,
		DB:         database,
		Factory:    factory,
		Sessions:   sessions,
		AdminCache: adminCache,
		Log:        logger,
	}
}

// clientFor returns a GitHub client using the user's stored token when one
// exists, falling back to the service token.
func clientFor(ctx context.Context, database *db.DB, factory *gh.ClientFactory, cfg *config.Config, userID int64) *github.Client {
	user, err := database.GetUserByTelegramID(ctx, userID)
	if err == nil && user.EncryptedToken != "" {
		if token, decErr := utils.Decrypt(user.EncryptedToken, cfg.EncryptionKey); decErr == nil {
			return factory.TokenClient(ctx, token)
		}
	}
	return factory.TokenClient(ctx, cfg.GitHubToken)
}

func (h *CommandHandler) Start(b *gotgbot.Bot, ctx *ext.Context) error {
	msg := `<b>Welcome to Issue Bridge!</b> 🤖

Mention me with a task in any group thread and I will open a GitHub issue for it, then mirror the issue's progress back into the thread until the task is done.

<b>Get Started:</b>
1. Use /link owner/repo to choose where issues are opened.
2. Mention me: <i>@botname fix the flaky login test</i>
3. Reply to a mirrored update to comment on the issue.

Need more? Type /help for a full list of commands.`
	_, err := ctx.EffectiveMessage.Reply(b, msg, &gotgbot.SendMessageOpts{ParseMode: "HTML"})
	return err
}

func (h *CommandHandler) Help(b *gotgbot.Bot, ctx *ext.Context) error {
	msg := `<b>Issue Bridge Commands:</b>

<b>Repositories</b>
/link owner/repo - Choose the repository this chat opens issues in
/unlink owner/repo - Remove a repository
/repos - List linked repositories

<b>Monitoring</b>
Mention me with a task to open and track an issue.
/status - Show this chat's active monitoring sessions
/cancel - Stop monitoring (use inside the thread, or reply to the task message)

<b>Account</b>
/token &lt;pat&gt; - Store a personal access token (<i>private chat only</i>)
/token clear - Forget your token
/privacy - What the bot stores`
	_, err := ctx.EffectiveMessage.Reply(b, msg, &gotgbot.SendMessageOpts{ParseMode: "HTML"})
	return err
}

func (h *CommandHandler) Privacy(b *gotgbot.Bot, ctx *ext.Context) error {
	msg := `<b>Privacy</b>

The bot stores chat ids, linked repository names, and active monitoring sessions (which expire after 30 days). Personal access tokens are stored encrypted and only used to act on GitHub on your behalf. Message contents are forwarded to GitHub only when you ask for an issue or reply to a mirrored update.`
	_, err := ctx.EffectiveMessage.Reply(b, msg, &gotgbot.SendMessageOpts{ParseMode: "HTML"})
	return err
}

func (h *CommandHandler) Link(b *gotgbot.Bot, ctx *ext.Context) error {
	if ctx.EffectiveChat.Type != gotgbot.ChatTypePrivate && !utils.IsAdmin(b, ctx.EffectiveChat.Id, ctx.EffectiveUser.Id, h.AdminCache) {
		_, err := ctx.EffectiveMessage.Reply(b, "Only admins can link repositories.", nil)
		return err
	}

	args := ctx.Args()
	if len(args) < 2 {
		_, err := ctx.EffectiveMessage.Reply(b, "Usage: /link owner/repo", nil)
		return err
	}

	repoFullName := args[1]
	owner, repo, ok := splitRepo(repoFullName)
	if !ok {
		_, err := ctx.EffectiveMessage.Reply(b, "Invalid repository format. Use owner/repo", nil)
		return err
	}

	client := clientFor(context.Background(), h.DB, h.Factory, h.Config, ctx.EffectiveUser.Id)
	_, _, getErr := client.Repositories.Get(context.Background(), owner, repo)
	if getErr != nil {
		var errResp *github.ErrorResponse
		if errors.As(getErr, &errResp) && errResp.Response.StatusCode == http.StatusNotFound {
			_, err := ctx.EffectiveMessage.Reply(b, "❌ <b>Repository not found.</b>\nPlease check the name and ensure the bot's token has access.", &gotgbot.SendMessageOpts{ParseMode: "HTML"})
			return err
		}
		_, err := ctx.EffectiveMessage.Reply(b, fmt.Sprintf("Error fetching repository: %v", getErr), nil)
		return err
	}

	if err := h.DB.AddRepoLink(context.Background(), ctx.EffectiveChat.Id, models.RepoLink{RepoFullName: repoFullName}); err != nil {
		_, err := ctx.EffectiveMessage.Reply(b, "Error linking repository.", nil)
		return err
	}

	msg := fmt.Sprintf("Repository <b>%s</b> linked. Mention me with a task to open an issue there.", html.EscapeString(repoFullName))
	_, err := ctx.EffectiveMessage.Reply(b, msg, &gotgbot.SendMessageOpts{ParseMode: "HTML"})
	return err
}

func (h *CommandHandler) Unlink(b *gotgbot.Bot, ctx *ext.Context) error {
	if ctx.EffectiveChat.Type != gotgbot.ChatTypePrivate && !utils.IsAdmin(b, ctx.EffectiveChat.Id, ctx.EffectiveUser.Id, h.AdminCache) {
		_, err := ctx.EffectiveMessage.Reply(b, "Only admins can unlink repositories.", nil)
		return err
	}

	args := ctx.Args()
	if len(args) < 2 {
		_, err := ctx.EffectiveMessage.Reply(b, "Usage: /unlink owner/repo", nil)
		return err
	}

	repoFullName := args[1]
	if err := h.DB.RemoveRepoLink(context.Background(), ctx.EffectiveChat.Id, repoFullName); err != nil {
		_, err := ctx.EffectiveMessage.Reply(b, "Error removing repository or not found.", nil)
		return err
	}

	_, err := ctx.EffectiveMessage.Reply(b, fmt.Sprintf("Repository <b>%s</b> unlinked.", html.EscapeString(repoFullName)), &gotgbot.SendMessageOpts{ParseMode: "HTML"})
	return err
}

func (h *CommandHandler) Repos(b *gotgbot.Bot, ctx *ext.Context) error {
	links, err := h.DB.GetChatLinks(context.Background(), ctx.EffectiveChat.Id)
	if err != nil {
		return err
	}

	if len(links) == 0 {
		_, err = ctx.EffectiveMessage.Reply(b, "No repositories linked. Use /link owner/repo first.", nil)
		return err
	}

	var msg strings.Builder
	msg.WriteString("<b>Linked Repositories:</b>\n")
	for _, l := range links {
		fmt.Fprintf(&msg, "• <b>%s</b>\n", html.EscapeString(l.RepoFullName))
	}
	msg.WriteString("\nIssues are opened in the first one.")

	_, err = ctx.EffectiveMessage.Reply(b, msg.String(), &gotgbot.SendMessageOpts{ParseMode: "HTML"})
	return err
}

func (h *CommandHandler) Status(b *gotgbot.Bot, ctx *ext.Context) error {
	sessions, err := h.DB.ListChatSessions(context.Background(), ctx.EffectiveChat.Id)
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		_, err = ctx.EffectiveMessage.Reply(b, "No active monitoring sessions in this chat.", nil)
		return err
	}

	running := make(map[string]bool)
	for _, key := range h.Sessions.Registry.Active() {
		running[key] = true
	}

	var msg strings.Builder
	msg.WriteString("<b>Active sessions:</b>\n")
	for i := range sessions {
		s := &sessions[i]
		state := "⏸ idle"
		if running[s.Key] {
			state = "▶️ polling"
		}
		fmt.Fprintf(&msg, "• <a href=\"%s\">%s</a> — %s, started %s ago\n",
			s.Issue().URL(), html.EscapeString(s.Issue().String()), state,
			time.Since(s.CreatedAt).Round(time.Second))
	}

	_, err = ctx.EffectiveMessage.Reply(b, msg.String(), &gotgbot.SendMessageOpts{ParseMode: "HTML"})
	return err
}

func (h *CommandHandler) Cancel(b *gotgbot.Bot, ctx *ext.Context) error {
	msg := ctx.EffectiveMessage

	var threadID int64
	switch {
	case msg.IsTopicMessage && msg.MessageThreadId != 0:
		threadID = msg.MessageThreadId
	case msg.ReplyToMessage != nil:
		threadID = msg.ReplyToMessage.MessageId
	default:
		_, err := msg.Reply(b, "Use /cancel inside the monitored thread, or reply to the task message.", nil)
		return err
	}

	key := models.SessionKey(ctx.EffectiveChat.Id, threadID)
	if !h.Sessions.Stop(context.Background(), b, key) {
		_, err := msg.Reply(b, "No monitoring session found for this thread.", nil)
		return err
	}

	_, err := msg.Reply(b, "⏹ Monitoring stopped.", nil)
	return err
}

func (h *CommandHandler) Token(b *gotgbot.Bot, ctx *ext.Context) error {
	if ctx.EffectiveChat.Type != gotgbot.ChatTypePrivate {
		_, err := ctx.EffectiveMessage.Reply(b, "⚠️ The /token command can only be used in a private chat with the bot.", nil)
		return err
	}

	args := ctx.Args()
	if len(args) < 2 {
		_, err := ctx.EffectiveMessage.Reply(b, "Usage: /token <personal access token>, or /token clear", nil)
		return err
	}

	if args[1] == "clear" {
		if err := h.DB.ClearUserToken(context.Background(), ctx.EffectiveUser.Id); err != nil {
			_, err := ctx.EffectiveMessage.Reply(b, "Failed to clear token.", nil)
			return err
		}
		_, err := ctx.EffectiveMessage.Reply(b, "Token forgotten.", nil)
		return err
	}

	token := args[1]
	client := h.Factory.TokenClient(context.Background(), token)
	u, _, err := client.Users.Get(context.Background(), "")
	if err != nil {
		_, err := ctx.EffectiveMessage.Reply(b, "That token does not work against the GitHub API.", nil)
		return err
	}

	encToken, err := utils.Encrypt(token, h.Config.EncryptionKey)
	if err != nil {
		_, err := ctx.EffectiveMessage.Reply(b, "Encryption failed.", nil)
		return err
	}

	user := &models.User{
		ID:             ctx.EffectiveUser.Id,
		GitHubUsername: u.GetLogin(),
		EncryptedToken: encToken,
	}
	if err := h.DB.UpsertUser(context.Background(), user); err != nil {
		_, err := ctx.EffectiveMessage.Reply(b, "DB error while storing the token.", nil)
		return err
	}

	msg := fmt.Sprintf("✅ Token stored for GitHub user <b>%s</b>. Issues and comments you trigger will use it.", html.EscapeString(u.GetLogin()))
	_, err = ctx.EffectiveMessage.Reply(b, msg, &gotgbot.SendMessageOpts{ParseMode: "HTML"})
	return err
}

func splitRepo(fullName string) (owner, repo string, ok bool) {
	owner, repo, found := strings.Cut(fullName, "/")
	if !found || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", false
	}
	return owner, repo, true
}
