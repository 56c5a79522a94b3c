// Package refs holds branch-name normalization and validation shared by the
// CLI layer and the resolver.
package refs

import (
	"errors"
	"fmt"
	"strings"
)

// NormalizeBranch trims whitespace, removes leading/trailing slashes, and strips
// refs/heads prefixes from a branch name. It returns an empty string when the
// normalized branch would otherwise be empty.
func NormalizeBranch(branch string) string {
	branch = strings.TrimSpace(branch)
	branch = strings.Trim(branch, "/")

	if len(branch) >= len("refs/heads/") && strings.EqualFold(branch[:len("refs/heads/")], "refs/heads/") {
		branch = branch[len("refs/heads/"):]
	}

	branch = strings.TrimSpace(branch)
	branch = strings.Trim(branch, "/")

	return strings.TrimSpace(branch)
}

// ValidateBranch ensures a branch name conforms to simple safety checks before
// it is handed to git on a command line.
func ValidateBranch(branch string) error {
	if branch == "" {
		return errors.New("branch cannot be empty")
	}

	if strings.ContainsAny(branch, " \t\n\r") {
		return errors.New("branch cannot contain whitespace")
	}

	if strings.Contains(branch, "..") {
		return errors.New("branch cannot contain '..'")
	}

	if strings.HasPrefix(branch, "-") {
		return errors.New("branch cannot start with '-'")
	}

	if strings.ContainsAny(branch, "~^:?*[]@{\\") {
		return errors.New("branch contains forbidden git characters")
	}

	return nil
}

// ValidateRelativePath ensures a repository-relative file path is safe to pass
// to git and cannot escape the checkout.
func ValidateRelativePath(path string) error {
	if path == "" {
		return errors.New("path cannot be empty")
	}

	if strings.HasPrefix(path, "/") {
		return fmt.Errorf("path %q must be relative to the repository root", path)
	}

	if strings.HasPrefix(path, "-") {
		return fmt.Errorf("path %q cannot start with '-'", path)
	}

	for _, segment := range strings.Split(path, "/") {
		if segment == ".." {
			return fmt.Errorf("path %q cannot contain '..'", path)
		}
	}

	if strings.ContainsAny(path, " \t\n\r") {
		return fmt.Errorf("path %q cannot contain whitespace", path)
	}

	return nil
}
