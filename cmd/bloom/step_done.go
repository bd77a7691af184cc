package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bloom/internal/task"
)

func init() {
	stepCmd := &cobra.Command{
		Use:   "step",
		Short: "Step-level operations an agent invokes against its own task",
	}
	stepCmd.AddCommand(&cobra.Command{
		Use:   "done <stepId>",
		Short: "Mark a step done (stepId form: <taskId>.<n>)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tp, err := tasksPath()
			if err != nil {
				return err
			}
			store, err := task.Load(tp)
			if err != nil {
				return err
			}
			if err := store.UpdateStepStatus(args[0], task.StepDone); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "step %s marked done\n", args[0])
			return nil
		},
	})
	rootCmd.AddCommand(stepCmd)
}
