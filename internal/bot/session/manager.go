// Package session owns the lifecycle glue around monitoring sessions:
// starting a runner for a persisted session, stopping it early, and resuming
// everything after a restart.
package session

import (
	"context"
	"log/slog"
	"time"

	"issue-bridge/internal/cache"
	"issue-bridge/internal/config"
	"issue-bridge/internal/db"
	gh "issue-bridge/internal/github"
	"issue-bridge/internal/models"
	"issue-bridge/internal/monitor"
	"issue-bridge/internal/telegram"

	"github.com/PaulSonOfLars/gotgbot/v2"
)

type Manager struct {
	Config   *config.Config
	DB       *db.DB
	Factory  *gh.ClientFactory
	Contexts *cache.Cache[string, models.MessageContext]
	Registry *monitor.Registry
	Log      *slog.Logger
}

func NewManager(cfg *config.Config, database *db.DB, factory *gh.ClientFactory, contexts *cache.Cache[string, models.MessageContext], registry *monitor.Registry, logger *slog.Logger) *Manager {
	return &Manager{
		Config:   cfg,
		DB:       database,
		Factory:  factory,
		Contexts: contexts,
		Registry: registry,
		Log:      logger,
	}
}

// Start spins up the polling runner for a persisted session. The duplicate
// check against the store happens before the session is persisted; by the
// time Start runs, this thread owns its key.
func (m *Manager) Start(b *gotgbot.Bot, sess *models.Session) {
	issue := sess.Issue()
	sink := telegram.NewSink(b, m.Contexts, m.Log, issue)
	source := gh.NewCommentSource(m.Factory.TokenClient(context.Background(), m.Config.GitHubToken))
	engine := monitor.NewEngine(source, sink, m.Log)
	runner := monitor.NewRunner(engine, m.Config.PollInterval, m.Log)

	ctx, cancel := context.WithCancel(context.Background())
	m.Registry.Add(sess.Key, cancel)

	st := monitor.State{
		Issue:     issue,
		Thread:    sess.Thread(),
		Original:  models.MessageRef{ChatID: sess.ChatID, MessageID: sess.RootID},
		StartedAt: sess.CreatedAt,
	}

	key := sess.Key
	go func() {
		defer cancel()
		runner.Run(ctx, st)

		m.Registry.Remove(key)
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cleanupCancel()
		if err := m.DB.DeleteSession(cleanupCtx, key); err != nil {
			m.Log.Warn("failed to delete session record", "key", key, "err", err)
		}
	}()

	m.Log.Info("monitoring started", "issue", issue.String(), "key", key)
}

// Stop cancels a running session and clears its in-progress indicator.
// Returns false when the thread has no session here.
func (m *Manager) Stop(ctx context.Context, b *gotgbot.Bot, key string) bool {
	sess, err := m.DB.GetSession(ctx, key)

	cancelled := m.Registry.Cancel(key)
	if err != nil {
		return cancelled
	}

	sink := telegram.NewSink(b, m.Contexts, m.Log, sess.Issue())
	if err := sink.ClearIndicator(ctx, models.MessageRef{ChatID: sess.ChatID, MessageID: sess.RootID}); err != nil {
		m.Log.Warn("failed to clear indicator on stop", "key", key, "err", err)
	}
	if err := m.DB.DeleteSession(ctx, key); err != nil {
		m.Log.Warn("failed to delete session record", "key", key, "err", err)
	}

	return true
}

// Resume restarts monitoring for every unexpired session record, keeping the
// original started-at so the 30-minute ceiling still binds. A session
// resumed close to its deadline simply times out on its first cycle.
func (m *Manager) Resume(ctx context.Context, b *gotgbot.Bot) {
	sessions, err := m.DB.ListSessions(ctx)
	if err != nil {
		m.Log.Error("failed to list sessions for resume", "err", err)
		return
	}

	for i := range sessions {
		m.Start(b, &sessions[i])
	}

	if len(sessions) > 0 {
		m.Log.Info("resumed monitoring sessions", "count", len(sessions))
	}
}
