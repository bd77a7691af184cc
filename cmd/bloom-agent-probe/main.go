// Command bloom-agent-probe runs one agent provider once against a prompt
// and prints the normalized event stream Bloom's scheduler would see, for
// diagnosing a CLI integration without standing up a full workspace.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bloom/internal/events"
	"bloom/internal/queue"
	"bloom/internal/session"
	"bloom/internal/session/provider"
)

func main() {
	providerName := flag.String("provider", "claude", "provider to probe (claude, copilot, goose, opencode, codex, cursor)")
	prompt := flag.String("prompt", "", "prompt to send")
	workdir := flag.String("workdir", ".", "working directory the subprocess runs in")
	resumeID := flag.String("resume", "", "session id to resume, if the provider supports it")
	flag.Parse()

	if *prompt == "" {
		fmt.Fprintln(os.Stderr, "bloom-agent-probe: -prompt is required")
		os.Exit(1)
	}

	p, ok := provider.ByName[*providerName]
	if !ok {
		fmt.Fprintf(os.Stderr, "bloom-agent-probe: unknown provider %q\n", *providerName)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.New()
	sub := bus.Subscribe()

	q, err := queue.New(*workdir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bloom-agent-probe: %v\n", err)
		os.Exit(1)
	}
	mgr := session.New(bus, q)

	done := make(chan struct{})
	go func() {
		defer close(done)
		enc := json.NewEncoder(os.Stdout)
		for ev := range sub.C {
			enc.Encode(ev)
		}
	}()

	result, err := mgr.Run(ctx, session.Params{
		AgentName:       "probe",
		WorkingDir:      *workdir,
		UserPrompt:      *prompt,
		ResumeSessionID: *resumeID,
		Provider:        p,
	})
	sub.Close()
	<-done

	if err != nil {
		fmt.Fprintf(os.Stderr, "bloom-agent-probe: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "exit=%d session=%s reason=%s\n", result.ExitCode, result.SessionID, result.Reason)
	os.Exit(result.ExitCode)
}
