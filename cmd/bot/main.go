package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"issue-bridge/internal/bot/callbacks"
	"issue-bridge/internal/bot/commands"
	"issue-bridge/internal/bot/middleware"
	"issue-bridge/internal/bot/session"
	"issue-bridge/internal/cache"
	"issue-bridge/internal/config"
	"issue-bridge/internal/db"
	gh "issue-bridge/internal/github"
	"issue-bridge/internal/logging"
	"issue-bridge/internal/models"
	"issue-bridge/internal/monitor"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/callbackquery"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/message"
)

func main() {
	cfg := config.Load()
	logger := logging.New(os.Stderr, logging.ParseLevel(cfg.LogLevel))

	database, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("mongodb connect: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = database.Client.Disconnect(ctx)
	}()

	b, err := gotgbot.NewBot(cfg.TelegramToken, nil)
	if err != nil {
		log.Fatalf("telegram bot init: %v", err)
	}

	contexts := cache.New[string, models.MessageContext]()
	adminCache := cache.New[int64, []int64]()
	factory := gh.NewClientFactory()
	registry := monitor.NewRegistry()
	sessions := session.NewManager(cfg, database, factory, contexts, registry, logger)

	cmdHandler := commands.NewCommandHandler(cfg, database, factory, sessions, adminCache, logger)
	mentionHandler := commands.NewMentionHandler(cfg, database, factory, contexts, sessions, logger)
	replyHandler := commands.NewReplyHandler(cfg, database, factory, contexts, logger)
	cbHandler := callbacks.NewCallbackHandler(sessions, adminCache, logger)

	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(b *gotgbot.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			logger.Error("update handling failed", "err", err)
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})
	updater := ext.NewUpdater(dispatcher, nil)

	dispatcher.AddHandlerToGroup(handlers.NewMessage(message.All, middleware.TrackChat(database, logger)), -1)

	dispatcher.AddHandler(handlers.NewCommand("start", cmdHandler.Start))
	dispatcher.AddHandler(handlers.NewCommand("help", cmdHandler.Help))
	dispatcher.AddHandler(handlers.NewCommand("privacy", cmdHandler.Privacy))
	dispatcher.AddHandler(handlers.NewCommand("link", cmdHandler.Link))
	dispatcher.AddHandler(handlers.NewCommand("unlink", cmdHandler.Unlink))
	dispatcher.AddHandler(handlers.NewCommand("repos", cmdHandler.Repos))
	dispatcher.AddHandler(handlers.NewCommand("status", cmdHandler.Status))
	dispatcher.AddHandler(handlers.NewCommand("cancel", cmdHandler.Cancel))
	dispatcher.AddHandler(handlers.NewCommand("token", cmdHandler.Token))
	dispatcher.AddHandler(handlers.NewCallback(callbackquery.Prefix(callbacks.Prefix), cbHandler.HandleMonitor))

	// Mentions outrank the reply mirror: a reply that also mentions the bot is
	// a new task, not a comment.
	mentionFilter := func(msg *gotgbot.Message) bool {
		return msg.Text != "" && strings.Contains(msg.Text, "@"+b.User.Username)
	}
	dispatcher.AddHandler(handlers.NewMessage(mentionFilter, mentionHandler.HandleMention))
	dispatcher.AddHandler(handlers.NewMessage(commands.IsReplyToBot(b.User.Id), replyHandler.HandleReply))

	err = updater.StartPolling(b, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &gotgbot.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &gotgbot.RequestOpts{
				Timeout: 10 * time.Second,
			},
		},
	})
	if err != nil {
		log.Fatalf("start polling: %v", err)
	}
	logger.Info("bot started", "username", b.User.Username)

	sessions.Resume(context.Background(), b)

	go func() {
		http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, "issue-bridge is running as @%s", b.User.Username)
		})
		logger.Info("health endpoint up", "port", cfg.Port)
		if err := http.ListenAndServe(":"+cfg.Port, nil); err != nil {
			logger.Error("health server stopped", "err", err)
		}
	}()

	updater.Idle()
}
