package provider

import (
	"context"
	"os/exec"
)

// Cursor drives the `cursor-agent` CLI.
type Cursor struct{}

func (Cursor) Name() string { return "cursor" }

func (Cursor) BuildCommand(ctx context.Context, p Params) (*exec.Cmd, error) {
	args := []string{"--print", "--output-format", "stream-json"}
	if p.ResumeSessionID != "" {
		args = append(args, "--resume", p.ResumeSessionID)
	}

	cmd := baseCmd(ctx, "cursor-agent", args, p.WorkingDir)
	stdinPrompt(cmd, p.SystemPrompt, p.UserPrompt)
	return cmd, nil
}

func (Cursor) RejectsResumeID(exitCode int, stderr string) bool {
	return exitCode != 0 && looksLikeRejectedResume(stderr)
}
