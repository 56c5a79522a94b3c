package gh

import (
	"context"
	"errors"
)

// PullRequest identifies the open pull request whose head is the synced branch.
type PullRequest struct {
	Number  int
	URL     string
	Title   string
	HeadRef string
	BaseRef string
}

// IssueComment represents a GitHub issue or pull request comment.
type IssueComment struct {
	ID   int64
	Body string
}

// Client exposes the GitHub operations required to notify a pull request about
// a sync outcome.
type Client interface {
	FindOpenPullRequestForBranch(ctx context.Context, owner, repo, branch string) (*PullRequest, error)
	CommentOnPullRequest(ctx context.Context, owner, repo string, number int, body string) error
	ListPullRequestComments(ctx context.Context, owner, repo string, number int) ([]IssueComment, error)
	UpdateComment(ctx context.Context, owner, repo string, commentID int64, body string) error
}

// Factory builds concrete GitHub clients (e.g., REST-backed) for the runner.
type Factory interface {
	New(ctx context.Context, token string) (Client, error)
}

// retryableError marks an error that may succeed if the operation is retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	if e == nil || e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// IsRetryable reports whether the supplied error resulted from a retryable GitHub
// API failure (for example, a transient network problem or rate-limited request).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var target *retryableError
	return errors.As(err, &target)
}
