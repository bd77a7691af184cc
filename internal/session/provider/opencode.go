package provider

import (
	"context"
	"os/exec"
)

// OpenCode drives the `opencode` CLI's non-interactive run command.
type OpenCode struct{}

func (OpenCode) Name() string { return "opencode" }

func (OpenCode) BuildCommand(ctx context.Context, p Params) (*exec.Cmd, error) {
	args := []string{"run", "--json"}
	if p.ResumeSessionID != "" {
		args = append(args, "--session", p.ResumeSessionID)
	}

	cmd := baseCmd(ctx, "opencode", args, p.WorkingDir)
	stdinPrompt(cmd, p.SystemPrompt, p.UserPrompt)
	return cmd, nil
}

func (OpenCode) RejectsResumeID(exitCode int, stderr string) bool {
	return exitCode != 0 && looksLikeRejectedResume(stderr)
}
