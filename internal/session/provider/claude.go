package provider

import (
	"context"
	"os/exec"
)

// Claude drives Anthropic's `claude` CLI in non-interactive streaming mode.
type Claude struct{}

func (Claude) Name() string { return "claude" }

func (Claude) BuildCommand(ctx context.Context, p Params) (*exec.Cmd, error) {
	args := []string{"--print", "--output-format", "stream-json", "--verbose"}
	if p.SystemPrompt != "" {
		args = append(args, "--append-system-prompt", p.SystemPrompt)
	}
	if p.ResumeSessionID != "" {
		args = append(args, "--resume", p.ResumeSessionID)
	}

	cmd := baseCmd(ctx, "claude", args, p.WorkingDir)
	cmd.Stdin = nil
	cmd.Args = append(cmd.Args, p.UserPrompt)
	return cmd, nil
}

func (Claude) RejectsResumeID(exitCode int, stderr string) bool {
	return exitCode != 0 && looksLikeRejectedResume(stderr)
}
