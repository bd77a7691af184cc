package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bloom/internal/task"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "done <taskId>",
		Short: "Mark a task's own work done; the git pipeline takes it from here",
		Args:  cobra.ExactArgs(1),
		RunE:  runDone,
	})
}

// runDone implements the agent-facing `bloom done <taskId>` entrypoint
// (§4.2 step 8). A task with a merge_into target goes to
// done_pending_merge first, since the git pipeline's mergeIntoTarget step
// expects to set that status itself (task.isValidTransition only allows
// moving forward through the lifecycle, so done can't be set first and
// backed up to done_pending_merge later); a task with no merge target goes
// straight to done.
func runDone(cmd *cobra.Command, args []string) error {
	taskID := args[0]
	tp, err := tasksPath()
	if err != nil {
		return err
	}
	store, err := task.Load(tp)
	if err != nil {
		return err
	}
	t, ok := store.Get(taskID)
	if !ok {
		return fmt.Errorf("unknown task %q", taskID)
	}

	to := task.StatusDone
	if t.MergeInto != "" {
		to = task.StatusDonePendingMerge
	}
	if err := store.UpdateStatus(taskID, to); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "task %s marked %s\n", taskID, to)
	return nil
}
