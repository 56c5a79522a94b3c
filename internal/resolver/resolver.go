// Package resolver implements the branch synchronization state machine: sync a
// pull-request branch with its remote, merge the mainline into it, and apply
// the single-file ours policy when the conflict shape allows it.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codemaphq/branch-sync/internal/git"
	"github.com/codemaphq/branch-sync/internal/refs"
)

// Outcome describes the terminal state of a resolver run.
type Outcome string

const (
	// OutcomeClean means the mainline merged without conflicts.
	OutcomeClean Outcome = "clean"

	// OutcomeAutoResolved means the merge conflicted only in the configured
	// file and was resolved by keeping the branch's version.
	OutcomeAutoResolved Outcome = "auto_resolved"

	// OutcomeConflictPending means the merge stopped on conflicts that require
	// a human; the working tree is left exactly as git produced it.
	OutcomeConflictPending Outcome = "conflict_pending"
)

// ExitCode maps an outcome onto the process exit code contract.
func (o Outcome) ExitCode() int {
	if o == OutcomeConflictPending {
		return ExitConflictPending
	}
	return ExitOK
}

// Result captures the outcome of a single resolver run.
type Result struct {
	Outcome       Outcome
	Branch        string
	MainlineRef   string
	UnmergedPaths []string
	Reason        string
}

// Resolver drives the sequential sync-merge-classify-resolve workflow against
// an injected Repository.
type Resolver struct {
	cfg  Config
	repo git.Repository
	log  *slog.Logger
}

// New returns a configured Resolver instance.
func New(cfg Config, repo git.Repository, logger *slog.Logger) *Resolver {
	return &Resolver{cfg: cfg, repo: repo, log: logger}
}

// Run executes the workflow for the given branch. When branch is empty the
// currently checked-out branch is used. Side effects are strictly ordered and
// no rollback is attempted: every step that completes is an ordinary,
// re-runnable git operation.
func (r *Resolver) Run(ctx context.Context, branch string) (Result, error) {
	if r.repo == nil {
		return Result{}, fmt.Errorf("git repository is required")
	}

	branch, err := r.resolveBranch(ctx, branch)
	if err != nil {
		return Result{}, err
	}

	if err := r.checkPreconditions(ctx); err != nil {
		return Result{}, err
	}

	remote := r.cfg.remote()
	mainline := r.cfg.mainlineRef()

	if r.log != nil {
		r.log.Info("starting branch sync", "branch", branch, "remote", remote, "mainline", mainline, "auto_ours", r.cfg.AutoOurs)
	}

	if err := r.repo.Fetch(ctx, remote); err != nil {
		return Result{}, fmt.Errorf("fetch %s: %w", remote, err)
	}

	if err := r.repo.Checkout(ctx, branch); err != nil {
		return Result{}, &CheckoutError{Branch: branch, Err: err}
	}

	if err := r.repo.PullFastForward(ctx, remote, branch); err != nil {
		if errors.Is(err, git.ErrNotFastForward) {
			return Result{}, &DivergedBranchError{Branch: branch, Err: err}
		}
		return Result{}, fmt.Errorf("pull %s: %w", branch, err)
	}

	mergeErr := r.repo.MergeBranch(ctx, mainline)
	if mergeErr == nil {
		if r.log != nil {
			r.log.Info("merge completed cleanly", "branch", branch, "mainline", mainline)
		}
		return Result{
			Outcome:     OutcomeClean,
			Branch:      branch,
			MainlineRef: mainline,
			Reason:      fmt.Sprintf("merged %s without conflicts; push %s when ready", mainline, branch),
		}, nil
	}

	if !errors.Is(mergeErr, git.ErrMergeConflict) {
		return Result{}, fmt.Errorf("merge %s: %w", mainline, mergeErr)
	}

	return r.classifyAndResolve(ctx, branch, mainline)
}

func (r *Resolver) resolveBranch(ctx context.Context, branch string) (string, error) {
	branch = refs.NormalizeBranch(branch)
	if branch == "" {
		current, err := r.repo.CurrentBranch(ctx)
		if err != nil {
			return "", fmt.Errorf("determine current branch: %w", err)
		}
		if current == "" {
			return "", &UsageError{Reason: "no branch given and HEAD is detached; pass a branch name"}
		}
		branch = current
	}

	if err := refs.ValidateBranch(branch); err != nil {
		return "", &UsageError{Reason: fmt.Sprintf("invalid branch %q: %v", branch, err)}
	}

	return branch, nil
}

// checkPreconditions verifies the tree and remote before any mutation is
// attempted. Each failure is a hard stop.
func (r *Resolver) checkPreconditions(ctx context.Context) error {
	clean, err := r.repo.IsClean(ctx)
	if err != nil {
		return fmt.Errorf("inspect working tree: %w", err)
	}
	if !clean {
		return &PreconditionError{Reason: "working tree has uncommitted changes; commit or stash them first"}
	}

	remote := r.cfg.remote()
	hasRemote, err := r.repo.HasRemote(ctx, remote)
	if err != nil {
		return fmt.Errorf("inspect remote %s: %w", remote, err)
	}
	if !hasRemote {
		return &PreconditionError{Reason: fmt.Sprintf("remote %q is not configured", remote)}
	}

	return nil
}

// classifyAndResolve takes a single snapshot of the conflicted paths and
// applies the ours policy only when the set is exactly the configured
// singleton. Anything else falls through untouched; there is no partial
// resolution of a subset.
func (r *Resolver) classifyAndResolve(ctx context.Context, branch, mainline string) (Result, error) {
	paths, err := r.repo.UnmergedPaths(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list unmerged paths: %w", err)
	}

	conflictFile := r.cfg.conflictFile()

	if !r.cfg.AutoOurs || len(paths) != 1 || paths[0] != conflictFile {
		if r.log != nil {
			r.log.Warn("merge conflicts require manual resolution", "branch", branch, "paths", strings.Join(paths, ", "), "auto_ours", r.cfg.AutoOurs)
		}
		return Result{
			Outcome:       OutcomeConflictPending,
			Branch:        branch,
			MainlineRef:   mainline,
			UnmergedPaths: paths,
			Reason:        manualGuidance(paths, conflictFile, r.cfg.AutoOurs),
		}, nil
	}

	if err := r.repo.TakeOurs(ctx, conflictFile); err != nil {
		return Result{}, fmt.Errorf("take ours for %s: %w", conflictFile, err)
	}

	if err := r.repo.Add(ctx, conflictFile); err != nil {
		return Result{}, fmt.Errorf("stage %s: %w", conflictFile, err)
	}

	message := fmt.Sprintf("Merge %s into %s, keeping %s from %s", mainline, branch, conflictFile, branch)
	if err := r.repo.Commit(ctx, message); err != nil {
		return Result{}, fmt.Errorf("commit resolution: %w", err)
	}

	if r.log != nil {
		r.log.Info("auto-resolved single-file conflict", "branch", branch, "path", conflictFile)
	}

	return Result{
		Outcome:       OutcomeAutoResolved,
		Branch:        branch,
		MainlineRef:   mainline,
		UnmergedPaths: paths,
		Reason:        fmt.Sprintf("kept %s version of %s and committed; push %s when ready", branch, conflictFile, branch),
	}, nil
}

func manualGuidance(paths []string, conflictFile string, autoOurs bool) string {
	var builder strings.Builder
	builder.WriteString("merge stopped on conflicts that need a human: ")
	builder.WriteString(strings.Join(paths, ", "))
	builder.WriteString(". Resolve each file, then run: git add <file> && git commit.")
	if autoOurs {
		builder.WriteString(fmt.Sprintf(" Automatic resolution only applies when %s is the sole conflict.", conflictFile))
	}
	return builder.String()
}
