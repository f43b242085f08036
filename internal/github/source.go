package github

import (
	"context"
	"strings"

	"issue-bridge/internal/models"
	"issue-bridge/internal/monitor"

	"github.com/google/go-github/v80/github"
)

// MirrorSignature is appended to every comment the bridge posts on behalf of
// a chat user. The comment source skips bodies carrying it, so mirrored
// replies never echo back into the thread.
const MirrorSignature = "_mirrored from Telegram_"

// CommentSource adapts the GitHub issues API to the monitor's contract:
// comments in creation order, an empty slice for "no comments yet".
type CommentSource struct {
	client *github.Client
}

func NewCommentSource(client *github.Client) *CommentSource {
	return &CommentSource{client: client}
}

func (s *CommentSource) Fetch(ctx context.Context, issue models.IssueRef) ([]monitor.Comment, error) {
	opts := &github.IssueListCommentsOptions{
		Sort:        github.String("created"),
		Direction:   github.String("asc"),
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var out []monitor.Comment
	for {
		comments, resp, err := s.client.Issues.ListComments(ctx, issue.Owner, issue.Repo, issue.Number, opts)
		if err != nil {
			return nil, err
		}

		for _, c := range comments {
			body := c.GetBody()
			if strings.Contains(body, MirrorSignature) {
				continue
			}

			out = append(out, monitor.Comment{
				ID:        c.GetID(),
				Author:    c.GetUser().GetLogin(),
				Body:      body,
				CreatedAt: c.GetCreatedAt().Time,
				UpdatedAt: c.GetUpdatedAt().Time,
				URL:       c.GetHTMLURL(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return out, nil
}
