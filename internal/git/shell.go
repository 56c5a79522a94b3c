package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ShellRepository operates on an existing local checkout by shelling out to the
// system git binary.
type ShellRepository struct {
	// Dir is the path to the checkout. When empty, the process working
	// directory is used.
	Dir string

	// Git is the git binary to execute. Defaults to "git" when empty.
	Git string

	// NetworkRetries controls how many additional attempts should be made for
	// network oriented git commands (fetch, pull). When zero, a default of 2
	// retries is used.
	NetworkRetries int

	// NetworkRetryDelay controls the initial backoff delay between retries.
	// When zero, a default of 1 second is used. Backoff grows exponentially
	// per attempt.
	NetworkRetryDelay time.Duration

	// NetworkTimeout bounds network commands that would otherwise inherit an
	// unbounded context. When zero, a default of 2 minutes is used.
	NetworkTimeout time.Duration
}

// NewShellRepository returns a Repository backed by system git commands running
// against the checkout at dir.
func NewShellRepository(dir string) *ShellRepository {
	return &ShellRepository{Dir: dir}
}

func (r *ShellRepository) gitBinary() string {
	if r.Git == "" {
		return "git"
	}
	return r.Git
}

func (r *ShellRepository) IsClean(ctx context.Context) (bool, error) {
	out, err := r.capture(ctx, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("git status: %w", err)
	}
	return strings.TrimSpace(out) == "", nil
}

func (r *ShellRepository) HasRemote(ctx context.Context, name string) (bool, error) {
	err := r.run(ctx, "remote", "get-url", name)
	if err == nil {
		return true, nil
	}
	var gitErr *GitError
	if errors.As(err, &gitErr) {
		return false, nil
	}
	return false, err
}

func (r *ShellRepository) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.capture(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse HEAD: %w", err)
	}
	branch := strings.TrimSpace(out)
	if branch == "HEAD" {
		// Detached HEAD has no branch name.
		return "", nil
	}
	return branch, nil
}

func (r *ShellRepository) Fetch(ctx context.Context, remote string) error {
	if err := r.run(ctx, "fetch", remote); err != nil {
		return fmt.Errorf("git fetch %s: %w", remote, err)
	}
	return nil
}

func (r *ShellRepository) Checkout(ctx context.Context, branch string) error {
	if err := r.run(ctx, "checkout", branch); err != nil {
		return fmt.Errorf("git checkout %s: %w", branch, err)
	}
	return nil
}

func (r *ShellRepository) PullFastForward(ctx context.Context, remote, branch string) error {
	err := r.run(ctx, "pull", "--ff-only", remote, branch)
	if err == nil {
		return nil
	}
	if isDivergedOutput(err) {
		return fmt.Errorf("git pull --ff-only %s %s: %w", remote, branch, ErrNotFastForward)
	}
	return fmt.Errorf("git pull --ff-only %s %s: %w", remote, branch, err)
}

func (r *ShellRepository) MergeBranch(ctx context.Context, ref string) error {
	err := r.run(ctx, "merge", "--no-edit", ref)
	if err == nil {
		return nil
	}

	if isConflictOutput(err) {
		return fmt.Errorf("git merge %s: %w", ref, ErrMergeConflict)
	}

	// Output matching is best effort; fall back on the index state when git's
	// wording changes between versions.
	if paths, pathsErr := r.UnmergedPaths(ctx); pathsErr == nil && len(paths) > 0 {
		return fmt.Errorf("git merge %s: %w", ref, ErrMergeConflict)
	}

	return fmt.Errorf("git merge %s: %w", ref, err)
}

func (r *ShellRepository) UnmergedPaths(ctx context.Context) ([]string, error) {
	out, err := r.capture(ctx, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, fmt.Errorf("git diff --diff-filter=U: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(out, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			paths = append(paths, trimmed)
		}
	}
	return paths, nil
}

func (r *ShellRepository) TakeOurs(ctx context.Context, path string) error {
	if err := r.run(ctx, "checkout", "--ours", "--", path); err != nil {
		return fmt.Errorf("git checkout --ours %s: %w", path, err)
	}
	return nil
}

func (r *ShellRepository) Add(ctx context.Context, path string) error {
	if err := r.run(ctx, "add", "--", path); err != nil {
		return fmt.Errorf("git add %s: %w", path, err)
	}
	return nil
}

func (r *ShellRepository) Commit(ctx context.Context, message string) error {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return fmt.Errorf("commit message cannot be empty")
	}
	if err := r.run(ctx, "commit", "-m", msg); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}
	return nil
}

func (r *ShellRepository) run(ctx context.Context, args ...string) error {
	return r.runGit(ctx, r.withDir(args)...)
}

func (r *ShellRepository) capture(ctx context.Context, args ...string) (string, error) {
	return r.captureGitOutput(ctx, r.withDir(args)...)
}

func (r *ShellRepository) withDir(args []string) []string {
	if r.Dir == "" {
		return args
	}
	return append([]string{"-C", r.Dir}, args...)
}

func (r *ShellRepository) captureGitOutput(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.gitBinary(), args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &GitError{Args: args, Output: string(output), Err: err}
	}
	return string(output), nil
}

func (r *ShellRepository) runGit(ctx context.Context, args ...string) error {
	primary := primaryGitCommand(args)
	isNetwork := isNetworkCommand(primary)

	retries := 0
	if isNetwork {
		retries = r.networkRetriesValue()
	}

	delay := r.networkRetryDelayValue()
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		attemptCtx, cancel := r.applyNetworkTimeout(ctx, isNetwork)
		err := r.runGitOnce(attemptCtx, args...)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err

		if !isNetwork {
			break
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
		if attempt == retries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if delay < time.Second {
			delay = time.Second
		}
		delay *= 2
	}

	return lastErr
}

func (r *ShellRepository) runGitOnce(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, r.gitBinary(), args...)
	setProcessGroup(cmd)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Start(); err != nil {
		return &GitError{Args: args, Output: output.String(), Err: err}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		terminateProcessGroup(cmd)
		<-done
		return ctx.Err()
	case err := <-done:
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &GitError{Args: args, Output: output.String(), Err: err}
		}
	}

	return nil
}

func primaryGitCommand(args []string) string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			if i+1 < len(args) {
				return args[i+1]
			}
			return ""
		}
		if strings.HasPrefix(arg, "-") {
			switch arg {
			case "-C", "--git-dir", "-c":
				i++
			}
			continue
		}
		return arg
	}
	return ""
}

func isNetworkCommand(cmd string) bool {
	switch cmd {
	case "fetch", "pull", "push", "remote":
		return true
	default:
		return false
	}
}

func (r *ShellRepository) networkRetriesValue() int {
	if r.NetworkRetries < 0 {
		return 0
	}
	if r.NetworkRetries == 0 {
		return 2
	}
	return r.NetworkRetries
}

func (r *ShellRepository) networkRetryDelayValue() time.Duration {
	if r.NetworkRetryDelay <= 0 {
		return time.Second
	}
	return r.NetworkRetryDelay
}

func (r *ShellRepository) networkTimeoutValue() time.Duration {
	if r.NetworkTimeout <= 0 {
		return 2 * time.Minute
	}
	return r.NetworkTimeout
}

func (r *ShellRepository) applyNetworkTimeout(ctx context.Context, network bool) (context.Context, context.CancelFunc) {
	if !network {
		return ctx, func() {}
	}
	if deadline, ok := ctx.Deadline(); ok && !deadline.IsZero() {
		return ctx, func() {}
	}
	timeout := r.networkTimeoutValue()
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// GitError wraps failures when invoking the git binary.
type GitError struct {
	Args   []string
	Output string
	Err    error
}

func (e *GitError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("git %s: %v\n%s", strings.Join(e.Args, " "), e.Err, e.Output)
}

func (e *GitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func isDivergedOutput(err error) bool {
	var gitErr *GitError
	if !errors.As(err, &gitErr) {
		return false
	}
	out := strings.ToLower(gitErr.Output)
	return strings.Contains(out, "not possible to fast-forward") ||
		strings.Contains(out, "have diverged") ||
		strings.Contains(out, "need to specify how to reconcile")
}

func isConflictOutput(err error) bool {
	var gitErr *GitError
	if !errors.As(err, &gitErr) {
		return false
	}
	out := gitErr.Output
	return strings.Contains(out, "CONFLICT") ||
		strings.Contains(out, "Automatic merge failed")
}
