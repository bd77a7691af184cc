// Package provider translates Bloom-level run parameters into one external
// agent CLI's invocation convention. Each file here is grounded on the
// teacher's internal/agent/*_cli.go wrappers (exec.Command, cmd.Dir, prompt
// over stdin, inherited environment) but builds the *exec.Cmd only — the
// session manager owns streaming stdout and lifecycle, where the teacher's
// CLI wrappers buffered full output.
package provider

import (
	"context"
	"os"
	"os/exec"
	"strings"
)

// Params are the Bloom-level parameters every provider must translate.
type Params struct {
	WorkingDir      string
	SystemPrompt    string
	UserPrompt      string
	ResumeSessionID string
}

// Provider builds the subprocess invocation for one agent CLI.
type Provider interface {
	// Name is the provider's registry key (claude, copilot, goose,
	// opencode, codex, cursor).
	Name() string

	// BuildCommand constructs the subprocess to run. The returned Cmd's
	// Stdout/Stderr are left unset for the caller to pipe; BuildCommand
	// only sets Dir, Env, Args, and Stdin where the CLI expects the prompt
	// on stdin.
	BuildCommand(ctx context.Context, p Params) (*exec.Cmd, error)

	// RejectsResumeID reports whether a subprocess failure looks like the
	// CLI refusing a stale/unknown --resume id (vs. an unrelated error),
	// driving the scheduler's session:corrupted retry.
	RejectsResumeID(exitCode int, stderr string) bool
}

// ByName is the provider registry `bloom run` and cmd/bloom-agent-probe
// select from; the session manager receives the chosen Provider in Params.
var ByName = map[string]Provider{
	"claude":   Claude{},
	"copilot":  Copilot{},
	"goose":    Goose{},
	"opencode": OpenCode{},
	"codex":    Codex{},
	"cursor":   Cursor{},
}

func baseCmd(ctx context.Context, bin string, args []string, workingDir string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, bin, args...)
	if workingDir != "" {
		cmd.Dir = workingDir
	}
	cmd.Env = os.Environ()
	return cmd
}

func stdinPrompt(cmd *exec.Cmd, systemPrompt, userPrompt string) {
	var b strings.Builder
	if systemPrompt != "" {
		b.WriteString(systemPrompt)
		b.WriteString("\n\n")
	}
	b.WriteString(userPrompt)
	cmd.Stdin = strings.NewReader(b.String())
}

// resumeRejectionPhrases are substrings commonly emitted by these CLIs when
// a --resume/--session id no longer exists server-side or locally.
var resumeRejectionPhrases = []string{
	"no such session",
	"session not found",
	"unknown session",
	"invalid session id",
	"could not resume",
	"failed to resume",
}

func looksLikeRejectedResume(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, phrase := range resumeRejectionPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
