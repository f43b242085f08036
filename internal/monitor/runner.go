package monitor

import (
	"context"
	"log/slog"
	"time"
)

// Runner is the scheduler adapter: it re-invokes the engine's transition
// function after a fixed delay until the engine terminates the session or
// the context is cancelled. The decision of when to stop lives in the
// engine; the Runner only provides the clockwork.
type Runner struct {
	engine   *Engine
	interval time.Duration
	log      *slog.Logger
}

func NewRunner(engine *Engine, interval time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		engine:   engine,
		interval: interval,
		log:      logger,
	}
}

// Run drives the session to completion. It blocks; callers run it in a
// goroutine, one per session. Cycles never overlap: the next one is
// scheduled only after the previous one returned.
func (r *Runner) Run(ctx context.Context, st State) {
	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for {
		next, done := r.engine.Step(ctx, st)
		st = next
		if done {
			r.log.Info("monitoring session ended",
				"issue", st.Issue.String(), "attempts", st.Attempts)
			return
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(r.interval)

		select {
		case <-ctx.Done():
			r.log.Info("monitoring session cancelled",
				"issue", st.Issue.String(), "attempts", st.Attempts)
			return
		case <-timer.C:
		}
	}
}
