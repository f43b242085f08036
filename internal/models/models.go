package models

import (
	"fmt"
	"time"
)

// User represents a Telegram user with an optional GitHub token on file
type User struct {
	ID             int64  `bson:"_id" json:"telegram_id"`
	GitHubUsername string `bson:"github_username,omitempty" json:"github_username,omitempty"`
	EncryptedToken string `bson:"encrypted_token,omitempty" json:"-"`
}

// RepoLink represents a repository a chat can open issues in
type RepoLink struct {
	RepoFullName string `bson:"repo_full_name" json:"repo_full_name"`
}

// Chat represents a Telegram chat (group, channel, or private)
type Chat struct {
	ID       int64      `bson:"_id" json:"chat_id"`
	ChatType string     `bson:"chat_type" json:"chat_type"`
	Title    string     `bson:"title" json:"title"`
	Links    []RepoLink `bson:"links" json:"links"`
}

// IssueRef identifies a single GitHub issue.
type IssueRef struct {
	Owner  string
	Repo   string
	Number int
}

func (r IssueRef) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

func (r IssueRef) URL() string {
	return fmt.Sprintf("https://github.com/%s/%s/issues/%d", r.Owner, r.Repo, r.Number)
}

// ThreadRef locates the chat thread a session reports into. TopicID is the
// forum topic when the chat uses topics; RootID is the message that started
// the thread and is used as the reply target otherwise.
type ThreadRef struct {
	ChatID  int64
	TopicID int64
	RootID  int64
}

// MessageRef points at one sent Telegram message.
type MessageRef struct {
	ChatID    int64
	MessageID int64
}

// Session is the persisted record of one issue-to-thread monitoring
// lifecycle. Mongo expires it via the TTL index on expires_at.
type Session struct {
	Key         string    `bson:"_id" json:"key"`
	ChatID      int64     `bson:"chat_id" json:"chat_id"`
	TopicID     int64     `bson:"topic_id,omitempty" json:"topic_id,omitempty"`
	RootID      int64     `bson:"root_id" json:"root_id"`
	Owner       string    `bson:"owner" json:"owner"`
	Repo        string    `bson:"repo" json:"repo"`
	IssueNumber int       `bson:"issue_number" json:"issue_number"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	ExpiresAt   time.Time `bson:"expires_at" json:"expires_at"`
}

// SessionKey derives the session identity from the chat and the thread root.
// At most one live session per thread key.
func SessionKey(chatID, rootID int64) string {
	return fmt.Sprintf("%d:%d", chatID, rootID)
}

func (s *Session) Issue() IssueRef {
	return IssueRef{Owner: s.Owner, Repo: s.Repo, Number: s.IssueNumber}
}

func (s *Session) Thread() ThreadRef {
	return ThreadRef{ChatID: s.ChatID, TopicID: s.TopicID, RootID: s.RootID}
}

// MessageContext stores the GitHub issue behind a mirrored Telegram message,
// keyed by "chat_id:message_id", so thread replies can be routed back.
type MessageContext struct {
	Owner       string
	Repo        string
	IssueNumber int
}
