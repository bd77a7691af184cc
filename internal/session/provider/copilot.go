package provider

import (
	"context"
	"os/exec"
)

// Copilot drives GitHub's `copilot` CLI.
type Copilot struct{}

func (Copilot) Name() string { return "copilot" }

func (Copilot) BuildCommand(ctx context.Context, p Params) (*exec.Cmd, error) {
	args := []string{"--stream-json", "--allow-all-tools"}
	if p.ResumeSessionID != "" {
		args = append(args, "--resume", p.ResumeSessionID)
	}

	cmd := baseCmd(ctx, "copilot", args, p.WorkingDir)
	stdinPrompt(cmd, p.SystemPrompt, p.UserPrompt)
	return cmd, nil
}

func (Copilot) RejectsResumeID(exitCode int, stderr string) bool {
	return exitCode != 0 && looksLikeRejectedResume(stderr)
}
