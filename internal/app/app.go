package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/codemaphq/branch-sync/internal/event"
	"github.com/codemaphq/branch-sync/internal/git"
	gh "github.com/codemaphq/branch-sync/internal/github"
	"github.com/codemaphq/branch-sync/internal/resolver"
)

// Runner glues together the resolver and supporting services to execute a
// branch sync run.
type Runner struct {
	cfg       Config
	log       *slog.Logger
	repo      git.Repository
	ghFactory gh.Factory
	stdout    io.Writer
}

// NewRunner constructs a Runner with the supplied configuration. Diagnostics go
// to stdout as human-readable lines; the structured log shares the stream.
func NewRunner(cfg Config) (*Runner, error) {
	logger, err := NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	var repo git.Repository
	if cfg.DryRun {
		repo = git.NewNoopRepository(cfg.Branch)
	} else {
		repo = git.NewShellRepository(cfg.WorkDir)
	}

	return &Runner{
		cfg:       cfg,
		log:       logger,
		repo:      repo,
		ghFactory: gh.NewRESTFactory(cfg.GitHubBaseURL, cfg.GitHubUploadURL),
		stdout:    os.Stdout,
	}, nil
}

// NewRunnerWithDeps constructs a Runner with injected dependencies for testing.
func NewRunnerWithDeps(cfg Config, log *slog.Logger, repo git.Repository, ghFactory gh.Factory, stdout io.Writer) *Runner {
	return &Runner{cfg: cfg, log: log, repo: repo, ghFactory: ghFactory, stdout: stdout}
}

// Run executes the sync and reports the terminal state. The returned error is
// non-nil only for failure states; ConflictPending is a non-exceptional result
// distinguished by its exit code.
func (r *Runner) Run(ctx context.Context) (resolver.Result, error) {
	if r.log != nil {
		r.log.Info("starting branch sync run", "dry_run", r.cfg.DryRun, "auto_ours", r.cfg.AutoOurs, "conflict_file", r.cfg.ConflictFile)
	}

	branch := r.cfg.Branch
	if branch == "" {
		branch = r.branchFromEventPayload()
	}

	res := resolver.New(resolver.Config{
		Remote:       r.cfg.Remote,
		MainlineRef:  r.cfg.MainlineRef,
		ConflictFile: r.cfg.ConflictFile,
		AutoOurs:     r.cfg.AutoOurs,
	}, r.repo, r.log)

	result, err := res.Run(ctx, branch)
	if err != nil {
		return resolver.Result{}, err
	}

	r.printOutcome(result)

	if err := r.writeStepSummary(result); err != nil && r.log != nil {
		r.log.Warn("failed to write step summary", "error", err)
	}

	if err := r.writeOutputs(result); err != nil && r.log != nil {
		r.log.Warn("failed to write outputs", "error", err)
	}

	if r.cfg.NotifyPR {
		if err := r.notifyPullRequest(ctx, result); err != nil && r.log != nil {
			r.log.Warn("failed to post pull request comment", "error", err, "retryable", gh.IsRetryable(err))
		}
	}

	return result, nil
}

// branchFromEventPayload derives the branch from the GitHub Actions event
// payload when running in CI. Fork heads are ignored: the branch does not
// exist in the base repository's remote.
func (r *Runner) branchFromEventPayload() string {
	eventName := strings.TrimSpace(os.Getenv("GITHUB_EVENT_NAME"))
	if eventName != "pull_request" && eventName != "pull_request_target" {
		return ""
	}

	eventPath := strings.TrimSpace(os.Getenv("GITHUB_EVENT_PATH"))
	if eventPath == "" {
		return ""
	}

	payload, err := event.ParsePullRequestEventFile(eventPath)
	if err != nil {
		if r.log != nil {
			r.log.Warn("failed to parse pull request event payload", "error", err)
		}
		return ""
	}

	if payload.PullRequest.IsFromFork {
		if r.log != nil {
			r.log.Warn("ignoring event branch from a fork", "head_ref", payload.PullRequest.HeadRef)
		}
		return ""
	}

	if r.log != nil && payload.PullRequest.HeadRef != "" {
		r.log.Debug("derived branch from event payload", "branch", payload.PullRequest.HeadRef)
	}

	return payload.PullRequest.HeadRef
}

func (r *Runner) printOutcome(result resolver.Result) {
	if r.stdout == nil {
		return
	}

	switch result.Outcome {
	case resolver.OutcomeClean:
		fmt.Fprintf(r.stdout, "Merged %s into %s without conflicts.\n", result.MainlineRef, result.Branch)
		fmt.Fprintf(r.stdout, "Review the result and push: git push %s %s\n", r.cfg.Remote, result.Branch)
	case resolver.OutcomeAutoResolved:
		fmt.Fprintf(r.stdout, "Auto-resolved %s by keeping the %s version and committed.\n", r.cfg.ConflictFile, result.Branch)
		fmt.Fprintf(r.stdout, "Review the result and push: git push %s %s\n", r.cfg.Remote, result.Branch)
	case resolver.OutcomeConflictPending:
		fmt.Fprintf(r.stdout, "Merge of %s into %s stopped on conflicts:\n", result.MainlineRef, result.Branch)
		for _, path := range result.UnmergedPaths {
			fmt.Fprintf(r.stdout, "  %s\n", path)
		}
		fmt.Fprintf(r.stdout, "Resolve each file, then: git add <file> && git commit\n")
	}
}

func (r *Runner) notifyPullRequest(ctx context.Context, result resolver.Result) error {
	if r.ghFactory == nil {
		return nil
	}

	client, err := r.ghFactory.New(ctx, r.cfg.GitHubToken)
	if err != nil {
		return fmt.Errorf("initialize github client: %w", err)
	}

	pr, err := client.FindOpenPullRequestForBranch(ctx, r.cfg.RepoOwner, r.cfg.RepoName, result.Branch)
	if err != nil {
		return fmt.Errorf("find pull request for %s: %w", result.Branch, err)
	}

	if pr == nil {
		if r.log != nil {
			r.log.Info("no open pull request for branch, skipping notification", "branch", result.Branch)
		}
		return nil
	}

	return r.upsertSummaryComment(ctx, client, r.cfg.RepoOwner, r.cfg.RepoName, pr.Number, result)
}
