package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/codemaphq/branch-sync/internal/resolver"
)

func (r *Runner) writeStepSummary(result resolver.Result) error {
	path := strings.TrimSpace(os.Getenv("GITHUB_STEP_SUMMARY"))
	if path == "" {
		return nil
	}

	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			fmt.Fprintf(os.Stderr, "warning: could not create summary directory: %v\n", mkErr)
		}
	}

	var builder strings.Builder
	builder.WriteString("## Branch sync summary\n\n")
	builder.WriteString(renderResultDetails(result))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open step summary: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "failed to close step summary file: %v\n", closeErr)
		}
	}()

	if _, err := file.WriteString(builder.String()); err != nil {
		return fmt.Errorf("write step summary: %w", err)
	}

	if !strings.HasSuffix(builder.String(), "\n") {
		if _, err := file.WriteString("\n"); err != nil {
			return fmt.Errorf("terminate step summary: %w", err)
		}
	}

	return nil
}

func (r *Runner) writeOutputs(result resolver.Result) error {
	path := strings.TrimSpace(os.Getenv("GITHUB_OUTPUT"))
	if path == "" {
		return nil
	}

	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			fmt.Fprintf(os.Stderr, "warning: could not create outputs directory: %v\n", mkErr)
		}
	}

	paths := result.UnmergedPaths
	if paths == nil {
		paths = []string{}
	}

	pathsJSON, err := json.Marshal(paths)
	if err != nil {
		return fmt.Errorf("marshal unmerged_paths: %w", err)
	}

	summary := struct {
		Outcome  string `json:"outcome"`
		Branch   string `json:"branch"`
		Mainline string `json:"mainline"`
		Reason   string `json:"reason"`
		ExitCode int    `json:"exit_code"`
	}{
		Outcome:  string(result.Outcome),
		Branch:   result.Branch,
		Mainline: result.MainlineRef,
		Reason:   result.Reason,
		ExitCode: result.Outcome.ExitCode(),
	}

	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal run_summary: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open github output: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "failed to close github output file: %v\n", closeErr)
		}
	}()

	if err := writeMultilineOutput(file, "outcome", string(result.Outcome)); err != nil {
		return err
	}

	if err := writeMultilineOutput(file, "unmerged_paths", string(pathsJSON)); err != nil {
		return err
	}

	if err := writeMultilineOutput(file, "run_summary", string(summaryJSON)); err != nil {
		return err
	}

	return nil
}

func renderResultDetails(result resolver.Result) string {
	var builder strings.Builder

	builder.WriteString("| Branch | Mainline | Outcome | Details |\n")
	builder.WriteString("| --- | --- | --- | --- |\n")
	builder.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
		sanitizeMarkdownCell(result.Branch),
		sanitizeMarkdownCell(result.MainlineRef),
		sanitizeMarkdownCell(string(result.Outcome)),
		sanitizeMarkdownCell(result.Reason),
	))

	if len(result.UnmergedPaths) > 0 {
		builder.WriteString("\nConflicted paths:\n\n")
		for _, path := range result.UnmergedPaths {
			builder.WriteString(fmt.Sprintf("- `%s`\n", path))
		}
	}

	return builder.String()
}

func writeMultilineOutput(file *os.File, key, value string) error {
	if _, err := fmt.Fprintf(file, "%s<<EOF\n%s\nEOF\n", key, value); err != nil {
		return fmt.Errorf("write output %s: %w", key, err)
	}
	return nil
}

func sanitizeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "|", "\\|")
	value = strings.ReplaceAll(value, "\n", "<br>")
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return value
}
