package gitpipeline

import (
	"context"
	"fmt"

	"bloom/internal/events"
	"bloom/internal/session"
	"bloom/internal/task"
)

// commitRetryPrompt is the resume prompt sent to the agent when its
// worktree is left dirty after a task reaches task:completed (§4.5 step 1).
const commitRetryPrompt = "Your working tree has uncommitted changes. Commit them now with a descriptive message, then finish."

// resolveUncommittedChanges implements §4.5 step 1: if the task's worktree
// has uncommitted changes, resume the agent up to maxAttempts times with a
// commit-instructing prompt. If the tree is still dirty after the last
// attempt, the task is blocked rather than pushed or merged.
func (p *Pipeline) resolveUncommittedChanges(ctx context.Context, rp Params, t task.Task, worktreeDir string) error {
	for attempt := 1; attempt <= p.maxAttempts(); attempt++ {
		dirty, err := p.Git.HasUncommittedChanges(worktreeDir)
		if err != nil {
			return fmt.Errorf("check uncommitted changes for %s: %w", t.ID, err)
		}
		if !dirty {
			return nil
		}

		p.publish(events.Event{
			Kind:      events.KindGitUncommitted,
			TaskID:    t.ID,
			AgentName: rp.AgentName,
			Repo:      t.Repo,
			Branch:    t.Branch,
		})
		p.publish(events.Event{
			Kind:      events.KindCommitRetry,
			TaskID:    t.ID,
			AgentName: rp.AgentName,
			Data:      map[string]string{"attempt": fmt.Sprint(attempt)},
		})

		if _, err := p.Sessions.Run(ctx, session.Params{
			AgentName:       rp.AgentName,
			TaskID:          t.ID,
			WorkingDir:      worktreeDir,
			UserPrompt:      commitRetryPrompt,
			Provider:        rp.Provider,
			Sandbox:         rp.Sandbox,
			ResumeSessionID: rp.SessionID,
		}); err != nil {
			return fmt.Errorf("resume %s to commit outstanding changes: %w", t.ID, err)
		}
	}

	dirty, err := p.Git.HasUncommittedChanges(worktreeDir)
	if err != nil {
		return fmt.Errorf("check uncommitted changes for %s: %w", t.ID, err)
	}
	if !dirty {
		return nil
	}

	p.publish(events.Event{
		Kind:      events.KindTaskBlocked,
		TaskID:    t.ID,
		AgentName: rp.AgentName,
		Reason:    "uncommitted_changes_after_retries",
	})
	return p.Store.UpdateStatus(t.ID, task.StatusBlocked)
}
