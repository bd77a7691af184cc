package provider

import (
	"context"
	"os/exec"
)

// Goose drives Block's `goose` CLI in headless run mode.
type Goose struct{}

func (Goose) Name() string { return "goose" }

func (Goose) BuildCommand(ctx context.Context, p Params) (*exec.Cmd, error) {
	args := []string{"run", "--no-session-ui", "--output-format", "jsonl"}
	if p.SystemPrompt != "" {
		args = append(args, "--system", p.SystemPrompt)
	}
	if p.ResumeSessionID != "" {
		args = append(args, "--resume-session", p.ResumeSessionID)
	}
	args = append(args, "--text", "-")

	cmd := baseCmd(ctx, "goose", args, p.WorkingDir)
	stdinPrompt(cmd, "", p.UserPrompt)
	return cmd, nil
}

func (Goose) RejectsResumeID(exitCode int, stderr string) bool {
	return exitCode != 0 && looksLikeRejectedResume(stderr)
}
