package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/codemaphq/branch-sync/internal/refs"
)

const (
	defaultRemote       = "origin"
	defaultMainlineRef  = "origin/main"
	defaultConflictFile = "app.py"
	defaultLogLevel     = "info"
	defaultLogFormat    = "text"
)

// Config captures runtime options sourced from CLI flags, with environment
// fallbacks for values GitHub Actions and CI systems conventionally provide.
type Config struct {
	// Branch is the pull-request branch to sync. Empty means "use the branch
	// derived from the CI event payload, else the current checkout".
	Branch string

	// AutoOurs enables automatic single-file resolution. One documented
	// default: enabled.
	AutoOurs bool

	Remote       string
	MainlineRef  string
	ConflictFile string
	WorkDir      string

	DryRun bool

	// NotifyPR posts a sticky summary comment on the open pull request for the
	// synced branch. Requires a token and a repository.
	NotifyPR        bool
	RepoOwner       string
	RepoName        string
	GitHubToken     string
	GitHubBaseURL   string
	GitHubUploadURL string

	LogLevel  string
	LogFormat string
}

// Normalize applies defaults, environment fallbacks, and validation. It is
// called once after flag parsing.
func (c *Config) Normalize() error {
	c.Branch = refs.NormalizeBranch(c.Branch)
	c.Remote = strings.TrimSpace(c.Remote)
	c.MainlineRef = strings.TrimSpace(c.MainlineRef)
	c.ConflictFile = strings.TrimSpace(c.ConflictFile)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))

	if c.Remote == "" {
		c.Remote = defaultRemote
	}
	if c.MainlineRef == "" {
		c.MainlineRef = defaultMainlineRef
	}
	if c.ConflictFile == "" {
		c.ConflictFile = defaultConflictFile
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = defaultLogFormat
	}

	if c.GitHubToken == "" {
		c.GitHubToken = strings.TrimSpace(os.Getenv("GITHUB_TOKEN"))
	}

	if c.RepoOwner == "" && c.RepoName == "" {
		if repo := strings.TrimSpace(os.Getenv("GITHUB_REPOSITORY")); repo != "" {
			parts := strings.SplitN(repo, "/", 2)
			if len(parts) == 2 {
				c.RepoOwner = strings.TrimSpace(parts[0])
				c.RepoName = strings.TrimSpace(parts[1])
			}
		}
	}

	if c.Branch != "" {
		if err := refs.ValidateBranch(c.Branch); err != nil {
			return fmt.Errorf("invalid branch %q: %w", c.Branch, err)
		}
	}

	if err := refs.ValidateRelativePath(c.ConflictFile); err != nil {
		return fmt.Errorf("invalid conflict file: %w", err)
	}

	if err := refs.ValidateBranch(c.MainlineRef); err != nil {
		return fmt.Errorf("invalid mainline ref %q: %w", c.MainlineRef, err)
	}

	if (c.GitHubBaseURL == "") != (c.GitHubUploadURL == "") {
		return fmt.Errorf("github base URL and upload URL must both be set for GitHub Enterprise")
	}

	if c.NotifyPR {
		if c.GitHubToken == "" {
			return fmt.Errorf("PR notification requires a github token (set --github-token or GITHUB_TOKEN)")
		}
		if c.RepoOwner == "" || c.RepoName == "" {
			return fmt.Errorf("PR notification requires a repository (set --repo or GITHUB_REPOSITORY)")
		}
	}

	supportedFormats := map[string]struct{}{"text": {}, "json": {}}
	if _, ok := supportedFormats[c.LogFormat]; !ok {
		return fmt.Errorf("unsupported log format %q", c.LogFormat)
	}

	return nil
}

// ParseRepo splits an "owner/name" value into its parts.
func ParseRepo(raw string) (owner, name string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", nil
	}
	parts := strings.SplitN(raw, "/", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return "", "", fmt.Errorf("repository must be in owner/name form, got %q", raw)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}
