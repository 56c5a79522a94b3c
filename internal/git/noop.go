package git

import (
	"context"
)

// NewNoopRepository returns a Repository that performs no actual git operations.
// The tree always reports clean, the remote always exists, and merges always
// succeed without conflicts, useful for testing and dry-run scenarios.
func NewNoopRepository(branch string) Repository {
	return &noopRepository{branch: branch}
}

type noopRepository struct {
	branch string
}

func (r *noopRepository) IsClean(ctx context.Context) (bool, error) {
	return true, nil
}

func (r *noopRepository) HasRemote(ctx context.Context, name string) (bool, error) {
	return true, nil
}

func (r *noopRepository) CurrentBranch(ctx context.Context) (string, error) {
	if r.branch == "" {
		return "main", nil
	}
	return r.branch, nil
}

func (r *noopRepository) Fetch(ctx context.Context, remote string) error {
	return nil
}

func (r *noopRepository) Checkout(ctx context.Context, branch string) error {
	return nil
}

func (r *noopRepository) PullFastForward(ctx context.Context, remote, branch string) error {
	return nil
}

func (r *noopRepository) MergeBranch(ctx context.Context, ref string) error {
	return nil
}

func (r *noopRepository) UnmergedPaths(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (r *noopRepository) TakeOurs(ctx context.Context, path string) error {
	return nil
}

func (r *noopRepository) Add(ctx context.Context, path string) error {
	return nil
}

func (r *noopRepository) Commit(ctx context.Context, message string) error {
	return nil
}
