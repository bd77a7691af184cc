package platform

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ForgejoClient opens pull requests via the `tea` CLI (Gitea/Forgejo's
// official client), for repos whose origin resolves to a Forgejo host.
type ForgejoClient struct{}

func (ForgejoClient) Name() string { return "forgejo" }

func (ForgejoClient) CreatePullRequest(ctx context.Context, p CreatePullRequestParams) (CreatePullRequestResult, error) {
	args := []string{"pr", "create"}
	if p.Title != "" {
		args = append(args, "--title", p.Title)
	}
	if p.Body != "" {
		args = append(args, "--description", p.Body)
	}
	if p.BaseBranch != "" {
		args = append(args, "--base", p.BaseBranch)
	}
	if p.HeadBranch != "" {
		args = append(args, "--head", p.HeadBranch)
	}

	cmd := exec.CommandContext(ctx, "tea", args...)
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
		return CreatePullRequestResult{}, fmt.Errorf("tea pr create: %w: %s", runErr, strings.TrimSpace(errBuf.String()))
	}

	return CreatePullRequestResult{Success: true, URL: lastNonEmptyLine(out.String())}, nil
}
