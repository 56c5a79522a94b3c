// Package event decodes the GitHub Actions pull_request payload so a CI run can
// derive the branch and repository without explicit flags.
package event

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/go-github/v55/github"
)

// PullRequestPayload captures the subset of GitHub pull_request event data used
// to seed a sync run.
type PullRequestPayload struct {
	Action      string
	Repository  Repository
	PullRequest PullRequest
}

// Repository identifies the owner/name of the repository where the event originated.
type Repository struct {
	Owner string
	Name  string
}

// PullRequest includes the metadata needed to locate the branch being synced.
type PullRequest struct {
	Number     int
	HeadRef    string
	BaseRef    string
	IsFromFork bool
}

// ParsePullRequestEvent decodes a GitHub pull_request event payload from the provided reader.
func ParsePullRequestEvent(r io.Reader) (PullRequestPayload, error) {
	var raw github.PullRequestEvent

	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return PullRequestPayload{}, fmt.Errorf("decode pull_request event: %w", err)
	}

	payload := PullRequestPayload{
		Action: strings.ToLower(strings.TrimSpace(raw.GetAction())),
		Repository: Repository{
			Owner: strings.TrimSpace(raw.GetRepo().GetOwner().GetLogin()),
			Name:  strings.TrimSpace(raw.GetRepo().GetName()),
		},
		PullRequest: PullRequest{
			Number: raw.GetPullRequest().GetNumber(),
		},
	}

	if head := raw.GetPullRequest().GetHead(); head != nil {
		payload.PullRequest.HeadRef = strings.TrimSpace(head.GetRef())
		if headRepo := head.GetRepo(); headRepo != nil {
			owner := headRepo.GetOwner().GetLogin()
			if owner != "" && !strings.EqualFold(owner, payload.Repository.Owner) {
				payload.PullRequest.IsFromFork = true
			}
		}
	}

	if base := raw.GetPullRequest().GetBase(); base != nil {
		payload.PullRequest.BaseRef = strings.TrimSpace(base.GetRef())
	}

	return payload, nil
}

// ParsePullRequestEventFile reads the event JSON from disk.
func ParsePullRequestEventFile(path string) (PullRequestPayload, error) {
	f, err := os.Open(path)
	if err != nil {
		return PullRequestPayload{}, fmt.Errorf("open event file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "failed to close event file: %v\n", closeErr)
		}
	}()

	return ParsePullRequestEvent(f)
}
