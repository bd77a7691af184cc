package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"bloom/internal/queue"
)

const waitAnswerPollInterval = 2 * time.Second

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "wait-answer <questionId>",
		Short: "Block until a question is answered or dismissed, then print the answer",
		Args:  cobra.ExactArgs(1),
		RunE:  runWaitAnswer,
	})
}

func runWaitAnswer(cmd *cobra.Command, args []string) error {
	ws, err := workspaceDir()
	if err != nil {
		return err
	}
	q, err := queue.New(ws)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	ticker := time.NewTicker(waitAnswerPollInterval)
	defer ticker.Stop()

	for {
		question, err := q.GetQuestion(args[0])
		if err != nil {
			return fmt.Errorf("wait-answer: %w", err)
		}

		switch question.Status {
		case queue.QuestionAnswered:
			fmt.Fprintln(cmd.OutOrStdout(), question.Answer)
			return nil
		case queue.QuestionDismissed:
			return fmt.Errorf("question %s was dismissed without an answer", args[0])
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
