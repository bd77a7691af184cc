// Package platform implements the hosted-platform PR client (A5/§6.4):
// opening a pull request on whichever forge a repo's origin remote points
// at, GitHub or Forgejo, behind one small interface.
//
// Grounded on internal/git/client.go's Client.CreatePR, which shells out to
// `gh pr create` and scrapes the PR URL from its stdout; generalized here
// into a Client interface with a GitHub and a Forgejo implementation,
// selected by a remote-URL substring match per §4.5.
package platform

import (
	"context"
	"strings"
)

// CreatePullRequestParams is one createPullRequest invocation (§4.5 step 3).
type CreatePullRequestParams struct {
	Title      string
	Body       string
	BaseBranch string
	HeadBranch string
	Dir        string // repo or worktree directory to run the host CLI from
}

// CreatePullRequestResult is createPullRequest's outcome. "Already exists"
// is reported via AlreadyExists, not Error: per §4.5, it is not a failure.
type CreatePullRequestResult struct {
	Success       bool
	URL           string
	AlreadyExists bool
}

// Client opens pull requests on one hosted-platform's CLI.
type Client interface {
	Name() string
	CreatePullRequest(ctx context.Context, p CreatePullRequestParams) (CreatePullRequestResult, error)
}

// knownForgejoHosts supplements the literal "forgejo" substring check with
// well-known public Forgejo instances that don't carry the word in their
// domain.
var knownForgejoHosts = []string{"codeberg.org", "git.sr.ht"}

// DetectHost classifies a repo's origin remote URL into "forgejo" or
// "github" per §4.5: the literal substring "forgejo", or any known-host
// match, selects Forgejo; everything else defaults to GitHub.
func DetectHost(remoteURL string) string {
	lower := strings.ToLower(remoteURL)
	if strings.Contains(lower, "forgejo") {
		return "forgejo"
	}
	for _, host := range knownForgejoHosts {
		if strings.Contains(lower, host) {
			return "forgejo"
		}
	}
	return "github"
}

// For returns the Client implementation for a detected host name.
func For(host string) Client {
	if host == "forgejo" {
		return ForgejoClient{}
	}
	return GitHubClient{}
}

// ForRemote is the common-case helper: detect the host from a remote URL
// and return its Client directly.
func ForRemote(remoteURL string) Client {
	return For(DetectHost(remoteURL))
}
