package main

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"bloom/internal/queue"
)

func init() {
	interjectCmd := &cobra.Command{
		Use:   "interject <agentName> [message]",
		Short: "Queue a steering message an agent picks up before its next turn",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runInterject,
	}
	interjectCmd.AddCommand(&cobra.Command{
		Use:   "resume <id>",
		Short: "Mark a queued interjection as delivered",
		Args:  cobra.ExactArgs(1),
		RunE:  runInterjectResume,
	})
	interjectCmd.AddCommand(&cobra.Command{
		Use:   "dismiss <id>",
		Short: "Dismiss a queued interjection without delivering it",
		Args:  cobra.ExactArgs(1),
		RunE:  runInterjectDismiss,
	})
	rootCmd.AddCommand(interjectCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "interjections",
		Short: "List queued interjections, oldest first",
		Args:  cobra.NoArgs,
		RunE:  runInterjections,
	})
}

func runInterject(cmd *cobra.Command, args []string) error {
	agentName := args[0]

	message := ""
	if len(args) == 2 {
		message = args[1]
	} else if isInteractive() {
		if err := survey.AskOne(&survey.Input{Message: "Message for " + agentName + ":"}, &message); err != nil {
			return err
		}
	} else {
		return fmt.Errorf("interject: no message given and stdin is not a terminal")
	}
	if message == "" {
		return fmt.Errorf("interject: message must not be empty")
	}

	ws, err := workspaceDir()
	if err != nil {
		return err
	}
	q, err := queue.New(ws)
	if err != nil {
		return err
	}

	it, err := q.CreateInterjection(agentName, message)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), it.ID)
	return nil
}

func runInterjections(cmd *cobra.Command, args []string) error {
	ws, err := workspaceDir()
	if err != nil {
		return err
	}
	q, err := queue.New(ws)
	if err != nil {
		return err
	}

	list, err := q.ListInterjections()
	if err != nil {
		return err
	}
	for _, it := range list {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", it.ID, it.AgentName, it.Status, it.Message)
	}
	return nil
}

func runInterjectResume(cmd *cobra.Command, args []string) error {
	ws, err := workspaceDir()
	if err != nil {
		return err
	}
	q, err := queue.New(ws)
	if err != nil {
		return err
	}
	return q.MarkResumed(args[0])
}

func runInterjectDismiss(cmd *cobra.Command, args []string) error {
	ws, err := workspaceDir()
	if err != nil {
		return err
	}
	q, err := queue.New(ws)
	if err != nil {
		return err
	}
	return q.DismissInterjection(args[0])
}
