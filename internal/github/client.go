package github

import (
	"context"

	"github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
)

type ClientFactory struct{}

func NewClientFactory() *ClientFactory {
	return &ClientFactory{}
}

// TokenClient returns a GitHub client authenticated with a personal access
// token (the service token or a user's own).
func (f *ClientFactory) TokenClient(ctx context.Context, accessToken string) *github.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	tc := oauth2.NewClient(ctx, ts)
	return github.NewClient(tc)
}
