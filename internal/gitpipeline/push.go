package gitpipeline

import (
	"context"
	"fmt"

	"bloom/internal/events"
	"bloom/internal/platform"
	"bloom/internal/task"
)

// push implements §4.5 step 2: push the task's branch, retrying once after
// a fetch if the remote rejects a non-fast-forward push.
func (p *Pipeline) push(t task.Task, worktreeDir, originRemote string) error {
	p.publish(events.Event{Kind: events.KindGitPushing, TaskID: t.ID, Repo: t.Repo, Branch: t.Branch})

	err := p.Git.Push(worktreeDir, t.Branch)
	if err == nil {
		p.publish(events.Event{Kind: events.KindGitPushed, TaskID: t.ID, Repo: t.Repo, Branch: t.Branch})
		return nil
	}

	if fetchErr := p.Git.Fetch(worktreeDir, originRemote, t.Branch); fetchErr != nil {
		return fmt.Errorf("push %s/%s rejected and fetch retry failed: %w", t.Repo, t.Branch, err)
	}
	if err := p.Git.Push(worktreeDir, t.Branch); err != nil {
		return fmt.Errorf("push %s/%s: %w", t.Repo, t.Branch, err)
	}

	p.publish(events.Event{Kind: events.KindGitPushed, TaskID: t.ID, Repo: t.Repo, Branch: t.Branch})
	return nil
}

// openPR implements §4.5 step 3: open a pull request via the host detected
// from the repo's origin remote URL. An already-exists result is success,
// not an error.
func (p *Pipeline) openPR(ctx context.Context, t task.Task, worktreeDir, remoteURL string) error {
	p.publish(events.Event{Kind: events.KindGitPRCreating, TaskID: t.ID, Repo: t.Repo, Branch: t.Branch})

	resolve := p.PlatformFor
	if resolve == nil {
		resolve = platform.ForRemote
	}
	client := resolve(remoteURL)

	base := t.BaseBranch
	if base == "" {
		base = t.MergeInto
	}

	result, err := client.CreatePullRequest(ctx, platform.CreatePullRequestParams{
		Title:      t.Title,
		Body:       t.AcceptanceCriteria,
		BaseBranch: base,
		HeadBranch: t.Branch,
		Dir:        worktreeDir,
	})
	if err != nil {
		return fmt.Errorf("open PR for %s/%s via %s: %w", t.Repo, t.Branch, client.Name(), err)
	}

	e := events.Event{Kind: events.KindGitPRCreated, TaskID: t.ID, Repo: t.Repo, Branch: t.Branch, Message: result.URL}
	if result.AlreadyExists {
		e.Reason = "already_exists"
	}
	p.publish(e)
	return nil
}
