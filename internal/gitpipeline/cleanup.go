package gitpipeline

import (
	"bloom/internal/events"
	"bloom/internal/task"
)

// cleanup implements §4.5 step 5: delete the task's source branch locally
// and remotely and remove its worktree. Individual failures are collected
// rather than aborting the sequence, since cleanup runs after the task's
// work has already landed; git:cleanup reports which operations succeeded
// and which didn't.
func (p *Pipeline) cleanup(t task.Task, worktreeDir, originRemote string) {
	var succeeded, failed []string

	record := func(op string, err error) {
		if err != nil {
			failed = append(failed, op)
			return
		}
		succeeded = append(succeeded, op)
	}

	record("worktree_remove", p.Git.WorktreeRemove(p.repoDir(t.Repo), worktreeDir, true))
	record("delete_local_branch", p.Git.DeleteLocalBranch(p.repoDir(t.Repo), t.Branch))
	record("delete_remote_branch", p.Git.DeleteRemoteBranch(p.repoDir(t.Repo), originRemote, t.Branch))

	p.publish(events.Event{
		Kind:   events.KindGitCleanup,
		TaskID: t.ID,
		Repo:   t.Repo,
		Branch: t.Branch,
		Data: map[string]string{
			"succeeded": joinOrNone(succeeded),
			"failed":    joinOrNone(failed),
		},
	})
}

func joinOrNone(ops []string) string {
	if len(ops) == 0 {
		return ""
	}
	out := ops[0]
	for _, op := range ops[1:] {
		out += "," + op
	}
	return out
}
