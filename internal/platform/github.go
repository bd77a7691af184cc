package platform

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// GitHubClient opens pull requests via the `gh` CLI.
type GitHubClient struct{}

func (GitHubClient) Name() string { return "github" }

func (GitHubClient) CreatePullRequest(ctx context.Context, p CreatePullRequestParams) (CreatePullRequestResult, error) {
	args := []string{"pr", "create"}
	if p.Title != "" {
		args = append(args, "--title", p.Title)
	}
	if p.Body != "" {
		args = append(args, "--body", p.Body)
	} else {
		args = append(args, "--fill")
	}
	if p.BaseBranch != "" {
		args = append(args, "--base", p.BaseBranch)
	}
	if p.HeadBranch != "" {
		args = append(args, "--head", p.HeadBranch)
	}

	cmd := exec.CommandContext(ctx, "gh", args...)
	cmd.Dir = p.Dir
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	combined := out.String() + errBuf.String()
	if alreadyExists(combined) {
		return CreatePullRequestResult{Success: true, AlreadyExists: true}, nil
	}
	if runErr != nil {
		return CreatePullRequestResult{}, fmt.Errorf("gh pr create: %w: %s", runErr, strings.TrimSpace(errBuf.String()))
	}

	return CreatePullRequestResult{Success: true, URL: lastNonEmptyLine(out.String())}, nil
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

func alreadyExists(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "already exists")
}
