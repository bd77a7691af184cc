package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bloom/internal/task"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "block <taskId>",
		Short: "Mark a task blocked",
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
			if err := store.UpdateStatus(args[0], task.StatusBlocked); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "task %s marked blocked\n", args[0])
			return nil
		},
	})
}
