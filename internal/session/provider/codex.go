package provider

import (
	"context"
	"os/exec"
)

// Codex drives OpenAI's `codex` CLI in non-interactive exec mode.
type Codex struct{}

func (Codex) Name() string { return "codex" }

func (Codex) BuildCommand(ctx context.Context, p Params) (*exec.Cmd, error) {
	args := []string{"exec", "--json", "--full-auto"}
	if p.ResumeSessionID != "" {
		args = append(args, "resume", p.ResumeSessionID)
	} else {
		args = append(args, p.UserPrompt)
	}

	cmd := baseCmd(ctx, "codex", args, p.WorkingDir)
	if p.ResumeSessionID != "" {
		stdinPrompt(cmd, "", p.UserPrompt)
	} else if p.SystemPrompt != "" {
		cmd.Env = append(cmd.Env, "CODEX_SYSTEM_PROMPT="+p.SystemPrompt)
	}
	return cmd, nil
}

func (Codex) RejectsResumeID(exitCode int, stderr string) bool {
	return exitCode != 0 && looksLikeRejectedResume(stderr)
}
