package main

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"bloom/internal/queue"
)

var askOnYes, askOnNo string

func init() {
	askCmd := &cobra.Command{
		Use:   "ask <agentName> <taskId> [prompt]",
		Short: "Raise a blocking question for a human operator",
		Args:  cobra.RangeArgs(2, 3),
		RunE:  runAsk,
	}
	askCmd.Flags().StringVar(&askOnYes, "on-yes", "", "task status to apply automatically if the answer is yes")
	askCmd.Flags().StringVar(&askOnNo, "on-no", "", "task status to apply automatically if the answer is no")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	agentName, taskID := args[0], args[1]

	prompt := ""
	if len(args) == 3 {
		prompt = args[2]
	} else if isInteractive() {
		if err := survey.AskOne(&survey.Input{Message: "Question for the operator:"}, &prompt); err != nil {
			return err
		}
	} else {
		return fmt.Errorf("ask: no prompt given and stdin is not a terminal")
	}
	if prompt == "" {
		return fmt.Errorf("ask: prompt must not be empty")
	}

	ws, err := workspaceDir()
	if err != nil {
		return err
	}
	q, err := queue.New(ws)
	if err != nil {
		return err
	}

	question, err := q.CreateQuestion(taskID, agentName, prompt, askOnYes, askOnNo)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), question.ID)
	return nil
}
