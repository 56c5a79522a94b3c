package gh

import (
	"context"
)

// NewNoopFactory returns a Factory whose clients perform no GitHub calls. All
// methods succeed without side effects, useful for dry-run scenarios.
func NewNoopFactory() Factory {
	return &noopFactory{}
}

type noopFactory struct{}

func (f *noopFactory) New(ctx context.Context, token string) (Client, error) {
	return &noopClient{}, nil
}

type noopClient struct{}

func (c *noopClient) FindOpenPullRequestForBranch(ctx context.Context, owner, repo, branch string) (*PullRequest, error) {
	return nil, nil
}

func (c *noopClient) CommentOnPullRequest(ctx context.Context, owner, repo string, number int, body string) error {
	return nil
}

func (c *noopClient) ListPullRequestComments(ctx context.Context, owner, repo string, number int) ([]IssueComment, error) {
	return nil, nil
}

func (c *noopClient) UpdateComment(ctx context.Context, owner, repo string, commentID int64, body string) error {
	return nil
}
