package github

import (
	"context"
	"fmt"

	"issue-bridge/internal/models"

	"github.com/google/go-github/v80/github"
)

// CreateIssue opens a tracking issue for a chat-thread task and returns its
// reference and HTML URL.
func CreateIssue(ctx context.Context, client *github.Client, owner, repo, title, body string) (models.IssueRef, string, error) {
	req := &github.IssueRequest{
		Title: github.String(title),
		Body:  github.String(body),
	}

	issue, _, err := client.Issues.Create(ctx, owner, repo, req)
	if err != nil {
		return models.IssueRef{}, "", err
	}

	ref := models.IssueRef{Owner: owner, Repo: repo, Number: issue.GetNumber()}
	return ref, issue.GetHTMLURL(), nil
}

// CreateComment mirrors a chat reply onto the issue, signing it so the
// comment source can tell the bridge's own comments apart.
func CreateComment(ctx context.Context, client *github.Client, issue models.IssueRef, author, text string) error {
	body := fmt.Sprintf("**%s**: %s\n\n%s", author, text, MirrorSignature)
	comment := &github.IssueComment{Body: github.String(body)}
	_, _, err := client.Issues.CreateComment(ctx, issue.Owner, issue.Repo, issue.Number, comment)
	return err
}
