// Package monitor implements the progress-monitoring engine: the polling
// state machine that mirrors GitHub issue activity into a chat thread until
// the task behind the issue finishes, fails, or times out.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"issue-bridge/internal/models"
)

const (
	// maxSessionAge is the hard ceiling on a monitoring session. Checked
	// before any comment processing, every cycle.
	maxSessionAge = 30 * time.Minute

	// telegramMessageLimit is Telegram's hard cap per message.
	telegramMessageLimit = 4096

	// metadataReserve leaves headroom for markdown escaping and message
	// decoration added below the engine.
	metadataReserve = 196

	// ChunkLimit is the transport-safe chunk size handed to the segmenter.
	ChunkLimit = telegramMessageLimit - metadataReserve
)

// Comment is the engine's read-only view of one issue comment. IDs are
// unique and ordered by creation.
type Comment struct {
	ID        int64
	Author    string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
	URL       string
}

// CommentSource fetches the comments of an issue in creation order. An empty
// slice means "no comments yet" and is not an error.
type CommentSource interface {
	Fetch(ctx context.Context, issue models.IssueRef) ([]Comment, error)
}

// Sink delivers notifications into a chat thread. Failures are recoverable:
// the engine logs them and carries on.
type Sink interface {
	Post(ctx context.Context, thread models.ThreadRef, text string) (models.MessageRef, error)
	Edit(ctx context.Context, ref models.MessageRef, text string) (models.MessageRef, error)
	ClearIndicator(ctx context.Context, ref models.MessageRef) error
}

// State carries one session between cycles. It is passed by value: the
// engine never holds onto it, and nothing survives termination.
type State struct {
	Issue    models.IssueRef
	Thread   models.ThreadRef
	Original models.MessageRef // triggering message, carries the in-progress indicator

	Attempts      int
	LastCommentID int64
	LastMessage   *models.MessageRef // edit target for in-place comment updates
	StartedAt     time.Time
	FinalPass     bool // one last cycle after completion was detected
}

// Engine decides, once per cycle, whether to post, edit, or stop. It does no
// scheduling of its own; a Runner re-invokes Step until it signals done.
type Engine struct {
	source CommentSource
	sink   Sink
	log    *slog.Logger

	limit  int
	maxAge time.Duration
	now    func() time.Time
}

func NewEngine(source CommentSource, sink Sink, logger *slog.Logger) *Engine {
	return &Engine{
		source: source,
		sink:   sink,
		log:    logger,
		limit:  ChunkLimit,
		maxAge: maxSessionAge,
		now:    time.Now,
	}
}

// Step runs one monitoring cycle and returns the next state plus whether the
// session is over. Exactly one of the two outcomes holds: done=false means
// the caller should schedule another cycle with the returned state.
func (e *Engine) Step(ctx context.Context, st State) (State, bool) {
	if st.Issue.Owner == "" || st.Issue.Repo == "" || st.Issue.Number == 0 || st.Thread.ChatID == 0 {
		e.log.Error("aborting session with malformed state",
			"issue", st.Issue.String(), "chat_id", st.Thread.ChatID)
		return st, true
	}

	if e.now().Sub(st.StartedAt) > e.maxAge {
		e.notify(ctx, st.Thread, fmt.Sprintf(
			"⏱ Stopped watching %s after %s without a completion signal. The issue stays open: %s",
			st.Issue, e.maxAge, st.Issue.URL()))
		e.clearIndicator(ctx, st.Original)
		return st, true
	}

	comments, err := e.source.Fetch(ctx, st.Issue)
	if err != nil {
		// a fetch error is terminal for the session, not transient
		e.log.Error("comment fetch failed, ending session",
			"issue", st.Issue.String(), "err", err)
		e.notify(ctx, st.Thread, fmt.Sprintf(
			"⚠️ Lost track of %s (could not fetch comments). Monitoring stopped.", st.Issue))
		e.clearIndicator(ctx, st.Original)
		return st, true
	}

	st.Attempts++

	if len(comments) == 0 {
		return st, st.FinalPass
	}

	// id ordering is authoritative; the source returns creation order but
	// the highest id wins regardless
	latest := comments[0]
	for _, c := range comments[1:] {
		if c.ID > latest.ID {
			latest = c
		}
	}

	isNew := st.LastCommentID == 0 || latest.ID > st.LastCommentID
	edited := !isNew && latest.ID == st.LastCommentID && latest.UpdatedAt.After(latest.CreatedAt)

	if !isNew && !edited {
		return st, st.FinalPass
	}

	e.emit(ctx, &st, latest, edited)

	if st.FinalPass {
		return st, true
	}

	if IsFinished(latest.Body) {
		// clear the indicator now, but give a last-moment edit of the
		// completion comment one more cycle to land
		e.clearIndicator(ctx, st.Original)
		st.FinalPass = true
	}

	return st, false
}

// emit segments the comment body and delivers it. A brand-new comment is
// always posted as new message(s); only an in-place edit of the previously
// seen comment targets the stored message ref. The ref of the first chunk
// becomes the new edit target.
func (e *Engine) emit(ctx context.Context, st *State, c Comment, edited bool) {
	link := c.URL
	if link == "" {
		link = st.Issue.URL()
	}

	var first *models.MessageRef
	for i, chunk := range Segment(c.Body, link, e.limit) {
		var (
			ref models.MessageRef
			err error
		)

		if i == 0 && edited && st.LastMessage != nil {
			ref, err = e.sink.Edit(ctx, *st.LastMessage, chunk)
		} else {
			ref, err = e.sink.Post(ctx, st.Thread, chunk)
		}

		if err != nil {
			e.log.Warn("notification delivery failed",
				"issue", st.Issue.String(), "chunk", i, "err", err)
			continue
		}

		if first == nil {
			r := ref
			first = &r
		}
	}

	if first != nil {
		st.LastMessage = first
	}
	st.LastCommentID = c.ID
}

func (e *Engine) notify(ctx context.Context, thread models.ThreadRef, text string) {
	if _, err := e.sink.Post(ctx, thread, text); err != nil {
		e.log.Warn("notice delivery failed", "chat_id", thread.ChatID, "err", err)
	}
}

func (e *Engine) clearIndicator(ctx context.Context, ref models.MessageRef) {
	if err := e.sink.ClearIndicator(ctx, ref); err != nil {
		e.log.Warn("failed to clear in-progress indicator",
			"chat_id", ref.ChatID, "message_id", ref.MessageID, "err", err)
	}
}
