package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codemaphq/branch-sync/internal/app"
	"github.com/codemaphq/branch-sync/internal/resolver"
)

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var result resolver.Result

	cmd := newRootCommand(&result)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "branch-sync: %v\n", err)
		if resolver.IsUsage(err) {
			fmt.Fprintln(stderr, cmd.UsageString())
		}
		return resolver.ExitCodeForError(err)
	}

	return result.Outcome.ExitCode()
}

func newRootCommand(result *resolver.Result) *cobra.Command {
	var (
		cfg  app.Config
		repo string
	)

	cmd := &cobra.Command{
		Use:   "branch-sync [branch]",
		Short: "Sync a pull-request branch with mainline, auto-resolving the known single-file conflict",
		Long: `branch-sync fetches the remote, fast-forwards the given branch (or the current
one), and merges the mainline ref into it. When the merge conflicts only in the
configured file, the branch's own version is kept and committed; any other
conflict shape is left untouched for manual resolution and signalled with exit
code 2.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				cfg.Branch = args[0]
			}

			owner, name, err := app.ParseRepo(repo)
			if err != nil {
				return err
			}
			if owner != "" {
				cfg.RepoOwner = owner
				cfg.RepoName = name
			}

			if err := cfg.Normalize(); err != nil {
				return err
			}

			runner, err := app.NewRunner(cfg)
			if err != nil {
				return fmt.Errorf("create runner: %w", err)
			}

			res, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}

			*result = res
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&cfg.AutoOurs, "auto-ours", true, "resolve a conflict automatically when the configured file is the only conflicted path")
	flags.StringVar(&cfg.Remote, "remote", envOr("BRANCH_SYNC_REMOTE", "origin"), "name of the configured remote")
	flags.StringVar(&cfg.MainlineRef, "mainline", envOr("BRANCH_SYNC_MAINLINE", "origin/main"), "reference merged into the branch")
	flags.StringVar(&cfg.ConflictFile, "conflict-file", envOr("BRANCH_SYNC_CONFLICT_FILE", "app.py"), "the single path the auto-resolution policy may resolve")
	flags.StringVarP(&cfg.WorkDir, "dir", "C", "", "path to the checkout (defaults to the working directory)")
	flags.BoolVar(&cfg.DryRun, "dry-run", false, "log the plan without touching the repository")
	flags.BoolVar(&cfg.NotifyPR, "notify-pr", false, "post a sticky summary comment on the branch's open pull request")
	flags.StringVar(&repo, "repo", "", "repository in owner/name form for PR notifications (defaults to GITHUB_REPOSITORY)")
	flags.StringVar(&cfg.GitHubToken, "github-token", "", "token for PR notifications (defaults to GITHUB_TOKEN)")
	flags.StringVar(&cfg.GitHubBaseURL, "github-base-url", "", "GitHub Enterprise API base URL")
	flags.StringVar(&cfg.GitHubUploadURL, "github-upload-url", "", "GitHub Enterprise upload URL")
	flags.StringVar(&cfg.LogLevel, "log-level", envOr("BRANCH_SYNC_LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	flags.StringVar(&cfg.LogFormat, "log-format", envOr("BRANCH_SYNC_LOG_FORMAT", "text"), "log format (text, json)")

	return cmd
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
