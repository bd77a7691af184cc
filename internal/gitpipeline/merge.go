package gitpipeline

import (
	"context"
	"fmt"
	"time"

	"bloom/internal/events"
	"bloom/internal/mergelock"
	"bloom/internal/session"
	"bloom/internal/task"
)

const conflictResolutionPromptFmt = "Merging %s into %s produced conflicts. Resolve them in this worktree, stage the resolution, and commit the merge."

// mergeIntoTarget implements §4.5 step 4: set done_pending_merge, acquire
// the merge lock (waiting under it with WaitWithCallback's maxWaitMs/
// onWaiting contract), ensure the target branch's worktree exists, and
// merge --no-ff. A conflict is handed back to the agent for resolution, up
// to maxAttempts times, before the task is blocked with the lock released.
func (p *Pipeline) mergeIntoTarget(ctx context.Context, rp Params, t task.Task, originRemote string) error {
	if err := p.Store.UpdateStatus(t.ID, task.StatusDonePendingMerge); err != nil {
		return fmt.Errorf("mark %s done_pending_merge: %w", t.ID, err)
	}

	if err := p.Locks.WaitWithCallback(ctx, rp.AgentName, t.Repo, t.Branch, t.MergeInto, p.mergeLockPollInterval(), p.mergeLockMaxWait(), func(holder mergelock.Lock, elapsed time.Duration) {
		p.publish(events.Event{
			Kind:    events.KindMergeLockWaiting,
			TaskID:  t.ID,
			Repo:    t.Repo,
			Branch:  t.Branch,
			Holder:  holder.AgentName,
			Elapsed: elapsed,
		})
	}); err != nil {
		p.publish(events.Event{Kind: events.KindMergeLockTimeout, TaskID: t.ID, Repo: t.Repo, Branch: t.MergeInto})
		return p.Store.UpdateStatus(t.ID, task.StatusBlocked)
	}
	p.publish(events.Event{Kind: events.KindMergeLockAcquired, TaskID: t.ID, Repo: t.Repo, Branch: t.MergeInto})
	defer p.Locks.Release(t.Repo, t.MergeInto)

	targetDir, err := p.ensureWorktree(t.Repo, t.MergeInto, originRemote)
	if err != nil {
		return err
	}

	for attempt := 1; attempt <= p.maxAttempts(); attempt++ {
		p.publish(events.Event{Kind: events.KindGitMerging, TaskID: t.ID, Repo: t.Repo, Branch: t.Branch})

		mergeErr := p.Git.Merge(targetDir, t.Branch)
		if mergeErr == nil {
			if err := p.push(t, targetDir, originRemote); err != nil {
				return err
			}
			p.publish(events.Event{Kind: events.KindGitMerged, TaskID: t.ID, Repo: t.Repo, Branch: t.MergeInto})
			return nil
		}

		conflicted, checkErr := p.Git.HasMergeConflicts(targetDir)
		if checkErr != nil {
			return fmt.Errorf("check merge conflicts for %s into %s: %w", t.Branch, t.MergeInto, checkErr)
		}
		if !conflicted {
			return fmt.Errorf("merge %s into %s: %w", t.Branch, t.MergeInto, mergeErr)
		}

		p.publish(events.Event{Kind: events.KindGitMergeConflict, TaskID: t.ID, Repo: t.Repo, Branch: t.Branch})
		p.publish(events.Event{Kind: events.KindMergeConflictRes, TaskID: t.ID, Data: map[string]string{"attempt": fmt.Sprint(attempt)}})

		if _, runErr := p.Sessions.Run(ctx, session.Params{
			AgentName:       rp.AgentName,
			TaskID:          t.ID,
			WorkingDir:      targetDir,
			UserPrompt:      fmt.Sprintf(conflictResolutionPromptFmt, t.Branch, t.MergeInto),
			Provider:        rp.Provider,
			Sandbox:         rp.Sandbox,
			ResumeSessionID: rp.SessionID,
		}); runErr != nil {
			_ = p.Git.AbortMerge(targetDir)
			return fmt.Errorf("resume %s to resolve merge conflict: %w", t.ID, runErr)
		}
		p.publish(events.Event{Kind: events.KindMergeConflictDone, TaskID: t.ID, Data: map[string]string{"attempt": fmt.Sprint(attempt)}})

		stillConflicted, checkErr := p.Git.HasMergeConflicts(targetDir)
		if checkErr != nil {
			return fmt.Errorf("recheck merge conflicts for %s into %s: %w", t.Branch, t.MergeInto, checkErr)
		}
		if !stillConflicted {
			if err := p.push(t, targetDir, originRemote); err != nil {
				return err
			}
			p.publish(events.Event{Kind: events.KindGitMerged, TaskID: t.ID, Repo: t.Repo, Branch: t.MergeInto})
			return nil
		}

		p.publish(events.Event{Kind: events.KindMergeRetry, TaskID: t.ID, Data: map[string]string{"attempt": fmt.Sprint(attempt)}})
	}

	_ = p.Git.AbortMerge(targetDir)
	p.publish(events.Event{Kind: events.KindTaskBlocked, TaskID: t.ID, Reason: "merge_conflict_unresolved"})
	return p.Store.UpdateStatus(t.ID, task.StatusBlocked)
}
