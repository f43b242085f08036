package monitor

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"issue-bridge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	comments []Comment
	err      error
	calls    int
}

func (f *fakeSource) Fetch(_ context.Context, _ models.IssueRef) ([]Comment, error) {
	f.calls++
	return f.comments, f.err
}

type fakeSink struct {
	posts   []string
	edits   []string
	cleared []models.MessageRef
	nextID  int64
	postErr error
	editErr error
}

func (f *fakeSink) Post(_ context.Context, thread models.ThreadRef, text string) (models.MessageRef, error) {
	if f.postErr != nil {
		return models.MessageRef{}, f.postErr
	}
	f.nextID++
	f.posts = append(f.posts, text)
	return models.MessageRef{ChatID: thread.ChatID, MessageID: f.nextID}, nil
}

func (f *fakeSink) Edit(_ context.Context, ref models.MessageRef, text string) (models.MessageRef, error) {
	if f.editErr != nil {
		return models.MessageRef{}, f.editErr
	}
	f.edits = append(f.edits, text)
	return ref, nil
}

func (f *fakeSink) ClearIndicator(_ context.Context, ref models.MessageRef) error {
	f.cleared = append(f.cleared, ref)
	return nil
}

func testEngine(source CommentSource, sink Sink) *Engine {
	return NewEngine(source, sink, slog.New(slog.DiscardHandler))
}

func testState() State {
	return State{
		Issue:     models.IssueRef{Owner: "acme", Repo: "widgets", Number: 7},
		Thread:    models.ThreadRef{ChatID: -100123, RootID: 42},
		Original:  models.MessageRef{ChatID: -100123, MessageID: 42},
		StartedAt: time.Now(),
	}
}

func comment(id int64, body string, edited bool) Comment {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Minute)
	updated := created
	if edited {
		updated = created.Add(5 * time.Minute)
	}
	return Comment{
		ID:        id,
		Author:    "agent",
		Body:      body,
		CreatedAt: created,
		UpdatedAt: updated,
		URL:       "https://github.com/acme/widgets/issues/7#issuecomment-1",
	}
}

func TestStepNoComments(t *testing.T) {
	source := &fakeSource{}
	sink := &fakeSink{}
	engine := testEngine(source, sink)

	st := testState()
	next, done := engine.Step(context.Background(), st)

	assert.False(t, done)
	assert.Equal(t, 1, next.Attempts)
	assert.Empty(t, sink.posts)
	assert.Empty(t, sink.edits)
}

func TestStepNewComment(t *testing.T) {
	source := &fakeSource{comments: []Comment{comment(10, "working on it", false)}}
	sink := &fakeSink{}
	engine := testEngine(source, sink)

	next, done := engine.Step(context.Background(), testState())

	assert.False(t, done)
	assert.Equal(t, int64(10), next.LastCommentID)
	require.Len(t, sink.posts, 1)
	assert.Contains(t, sink.posts[0], "working on it")
	require.NotNil(t, next.LastMessage)
	assert.Empty(t, sink.edits)
}

func TestStepIdempotentOnUnchanged(t *testing.T) {
	source := &fakeSource{comments: []Comment{comment(10, "working on it", false)}}
	sink := &fakeSink{}
	engine := testEngine(source, sink)

	st, done := engine.Step(context.Background(), testState())
	require.False(t, done)
	require.Len(t, sink.posts, 1)

	next, done := engine.Step(context.Background(), st)

	assert.False(t, done)
	assert.Len(t, sink.posts, 1, "unchanged comment must not notify again")
	assert.Equal(t, st.LastCommentID, next.LastCommentID)
	assert.Equal(t, st.Attempts+1, next.Attempts)
}

func TestStepEditedInPlace(t *testing.T) {
	source := &fakeSource{comments: []Comment{comment(10, "working on it", false)}}
	sink := &fakeSink{}
	engine := testEngine(source, sink)

	st, _ := engine.Step(context.Background(), testState())
	require.NotNil(t, st.LastMessage)
	firstRef := *st.LastMessage

	source.comments = []Comment{comment(10, "working on it, halfway there", true)}
	next, done := engine.Step(context.Background(), st)

	assert.False(t, done)
	require.Len(t, sink.edits, 1)
	assert.Contains(t, sink.edits[0], "halfway there")
	assert.Len(t, sink.posts, 1, "an in-place edit must not post a new message")
	require.NotNil(t, next.LastMessage)
	assert.Equal(t, firstRef, *next.LastMessage)
}

func TestStepIdentifierOrderingWins(t *testing.T) {
	// a higher id is always "new", even when timestamps look like an edit
	source := &fakeSource{comments: []Comment{comment(5, "first", false)}}
	sink := &fakeSink{}
	engine := testEngine(source, sink)

	st, _ := engine.Step(context.Background(), testState())
	require.Equal(t, int64(5), st.LastCommentID)

	c := comment(6, "second", false)
	require.Equal(t, c.CreatedAt, c.UpdatedAt)
	source.comments = []Comment{comment(5, "first", false), c}

	next, done := engine.Step(context.Background(), st)

	assert.False(t, done)
	assert.Equal(t, int64(6), next.LastCommentID)
	assert.Len(t, sink.posts, 2, "a new comment is posted, never edited in place")
	assert.Empty(t, sink.edits)
}

func TestStepLastSeenNeverDecreases(t *testing.T) {
	source := &fakeSource{comments: []Comment{comment(10, "latest", false)}}
	sink := &fakeSink{}
	engine := testEngine(source, sink)

	st, _ := engine.Step(context.Background(), testState())
	require.Equal(t, int64(10), st.LastCommentID)

	// source regression: only an older comment visible
	source.comments = []Comment{comment(4, "stale", false)}
	next, done := engine.Step(context.Background(), st)

	assert.False(t, done)
	assert.Equal(t, int64(10), next.LastCommentID)
	assert.Len(t, sink.posts, 1)
}

func TestStepCompletionRunsExactlyOneFinalPass(t *testing.T) {
	source := &fakeSource{comments: []Comment{comment(10, "Implementation complete, all tests pass.", false)}}
	sink := &fakeSink{}
	engine := testEngine(source, sink)

	st, done := engine.Step(context.Background(), testState())

	require.False(t, done, "completion schedules one more cycle instead of terminating")
	assert.True(t, st.FinalPass)
	assert.Len(t, sink.cleared, 1, "indicator cleared as soon as completion is detected")

	// final pass terminates even though IsFinished still matches
	next, done := engine.Step(context.Background(), st)
	assert.True(t, done)
	assert.Equal(t, st.LastCommentID, next.LastCommentID)
	assert.Len(t, sink.cleared, 1, "indicator is not cleared twice")
}

func TestStepFinalPassCapturesLastEdit(t *testing.T) {
	source := &fakeSource{comments: []Comment{comment(10, "Task completed.", false)}}
	sink := &fakeSink{}
	engine := testEngine(source, sink)

	st, done := engine.Step(context.Background(), testState())
	require.False(t, done)
	require.True(t, st.FinalPass)

	source.comments = []Comment{comment(10, "Task completed. PR: https://github.com/acme/widgets/pull/8", true)}
	_, done = engine.Step(context.Background(), st)

	assert.True(t, done)
	require.Len(t, sink.edits, 1)
	assert.Contains(t, sink.edits[0], "pull/8")
}

func TestStepDeadline(t *testing.T) {
	source := &fakeSource{comments: []Comment{comment(10, "still going", false)}}
	sink := &fakeSink{}
	engine := testEngine(source, sink)

	st := testState()
	st.StartedAt = time.Now().Add(-31 * time.Minute)

	next, done := engine.Step(context.Background(), st)

	assert.True(t, done)
	assert.Equal(t, 0, source.calls, "deadline is checked before any comment processing")
	require.Len(t, sink.posts, 1)
	assert.Contains(t, sink.posts[0], "⏱")
	assert.Len(t, sink.cleared, 1)
	assert.Equal(t, st.LastCommentID, next.LastCommentID)
}

func TestStepFetchErrorIsTerminal(t *testing.T) {
	source := &fakeSource{err: errors.New("api: 502")}
	sink := &fakeSink{}
	engine := testEngine(source, sink)

	_, done := engine.Step(context.Background(), testState())

	assert.True(t, done)
	require.Len(t, sink.posts, 1)
	assert.Contains(t, sink.posts[0], "Monitoring stopped")
	assert.Len(t, sink.cleared, 1)
}

func TestStepSinkFailureKeepsStateAndSession(t *testing.T) {
	source := &fakeSource{comments: []Comment{comment(10, "progress", false)}}
	sink := &fakeSink{postErr: errors.New("telegram: 429")}
	engine := testEngine(source, sink)

	next, done := engine.Step(context.Background(), testState())

	assert.False(t, done, "a sink failure does not abort the cycle")
	assert.Nil(t, next.LastMessage, "lastMessageRef carries forward unchanged")
	assert.Equal(t, int64(10), next.LastCommentID)
}

func TestStepMalformedStateAborts(t *testing.T) {
	source := &fakeSource{}
	sink := &fakeSink{}
	engine := testEngine(source, sink)

	st := testState()
	st.Issue.Repo = ""

	_, done := engine.Step(context.Background(), st)

	assert.True(t, done)
	assert.Equal(t, 0, source.calls)
	assert.Empty(t, sink.posts)
}

func TestStepOversizedCommentSpansMessages(t *testing.T) {
	body := strings.Repeat("The limiter keeps every mirrored message under the transport cap. ", 160)
	source := &fakeSource{comments: []Comment{comment(10, body, false)}}
	sink := &fakeSink{}
	engine := testEngine(source, sink)

	next, done := engine.Step(context.Background(), testState())

	assert.False(t, done)
	require.Greater(t, len(sink.posts), 1)
	for _, p := range sink.posts {
		assert.LessOrEqual(t, len(p), ChunkLimit)
	}
	require.NotNil(t, next.LastMessage)
	assert.Equal(t, int64(1), next.LastMessage.MessageID, "first chunk becomes the edit target")
}
