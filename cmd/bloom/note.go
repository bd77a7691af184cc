package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bloom/internal/task"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "note <taskId> <text>...",
		Short: "Append a note to a task's ai_notes field",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tp, err := tasksPath()
			if err != nil {
				return err
			}
			store, err := task.Load(tp)
			if err != nil {
				return err
			}
			note := strings.Join(args[1:], " ")
			if err := store.AppendNote(args[0], note); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "note appended to %s\n", args[0])
			return nil
		},
	})
}
