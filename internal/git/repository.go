package git

import (
	"context"
	"errors"
)

// Repository exposes the git primitives required by the resolver. Implementations
// may shell out to git or use a pure Go library. All methods operate on a single
// local checkout; the resolver assumes exclusive access to it.
type Repository interface {
	// IsClean reports whether the working tree has no staged, unstaged, or
	// conflicted changes.
	IsClean(ctx context.Context) (bool, error)

	// HasRemote reports whether a remote with the given name is configured.
	// Only configuration is checked, not network reachability.
	HasRemote(ctx context.Context, name string) (bool, error)

	// CurrentBranch returns the symbolic name of HEAD, or "" when detached.
	CurrentBranch(ctx context.Context) (string, error)

	// Fetch downloads all refs from the named remote.
	Fetch(ctx context.Context, remote string) error

	// Checkout switches the working tree to the named branch.
	Checkout(ctx context.Context, branch string) error

	// PullFastForward updates the current branch from the remote, refusing to
	// create a merge commit. ErrNotFastForward is returned (possibly wrapped)
	// when the local branch has diverged.
	PullFastForward(ctx context.Context, remote, branch string) error

	// MergeBranch merges ref into the current branch. ErrMergeConflict is
	// returned (possibly wrapped) when the merge stops on unresolved conflicts;
	// any other failure is reported as-is.
	MergeBranch(ctx context.Context, ref string) error

	// UnmergedPaths returns the paths currently in an unmerged state.
	UnmergedPaths(ctx context.Context) ([]string, error)

	// TakeOurs resolves a conflicted path by keeping the current branch's
	// version, discarding the incoming change.
	TakeOurs(ctx context.Context, path string) error

	// Add stages the given path.
	Add(ctx context.Context, path string) error

	// Commit records the staged changes with the given message.
	Commit(ctx context.Context, message string) error
}

// ErrMergeConflict indicates a merge stopped with unresolved conflicts in the
// working tree. The conflicted paths stay exactly as git left them.
var ErrMergeConflict = errors.New("git: merge stopped on unresolved conflicts")

// ErrNotFastForward indicates the local branch and its upstream have diverged,
// so a fast-forward-only pull is impossible.
var ErrNotFastForward = errors.New("git: branch cannot be fast-forwarded")
