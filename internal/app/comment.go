package app

import (
	"context"
	"fmt"
	"strings"

	gh "github.com/codemaphq/branch-sync/internal/github"
	"github.com/codemaphq/branch-sync/internal/resolver"
)

const summaryCommentMarker = "<!-- branch-sync-summary -->"

// upsertSummaryComment posts the run summary as a PR comment, editing the
// previous summary in place when one exists so repeated runs do not pile up.
func (r *Runner) upsertSummaryComment(ctx context.Context, client gh.Client, owner, repo string, number int, result resolver.Result) error {
	if client == nil {
		return nil
	}

	body := buildSummaryComment(result)

	comments, err := client.ListPullRequestComments(ctx, owner, repo, number)
	if err != nil {
		return fmt.Errorf("list pull request comments: %w", err)
	}

	for _, comment := range comments {
		if !strings.Contains(comment.Body, summaryCommentMarker) {
			continue
		}
		if err := client.UpdateComment(ctx, owner, repo, comment.ID, body); err != nil {
			return fmt.Errorf("update summary comment: %w", err)
		}
		return nil
	}

	if err := client.CommentOnPullRequest(ctx, owner, repo, number, body); err != nil {
		return fmt.Errorf("create summary comment: %w", err)
	}

	return nil
}

func buildSummaryComment(result resolver.Result) string {
	var builder strings.Builder
	builder.WriteString(summaryCommentMarker)
	builder.WriteString("\n")

	switch result.Outcome {
	case resolver.OutcomeClean:
		builder.WriteString(fmt.Sprintf("✅ Synced `%s` with `%s`: merged without conflicts.\n", result.Branch, result.MainlineRef))
	case resolver.OutcomeAutoResolved:
		builder.WriteString(fmt.Sprintf("✅ Synced `%s` with `%s`: the known single-file conflict was resolved by keeping the branch's version and committed.\n", result.Branch, result.MainlineRef))
	case resolver.OutcomeConflictPending:
		builder.WriteString(fmt.Sprintf("⚠️ Syncing `%s` with `%s` stopped on conflicts that need a human:\n\n", result.Branch, result.MainlineRef))
		for _, path := range result.UnmergedPaths {
			builder.WriteString(fmt.Sprintf("- `%s`\n", path))
		}
		builder.WriteString("\nResolve each file in a local checkout, then `git add` and `git commit`.\n")
	}

	if result.Reason != "" {
		builder.WriteString("\n")
		builder.WriteString(result.Reason)
		builder.WriteString("\n")
	}

	return builder.String()
}
