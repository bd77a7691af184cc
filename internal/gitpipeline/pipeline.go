// Package gitpipeline implements the Git Pipeline (C5): the post-task
// sequence of committing, pushing, opening a PR, merging under the merge
// lock, and cleaning up a task's branch, per §4.5.
//
// Grounded on internal/git/client.go's Client methods for every git
// operation in the sequence, internal/orchestrator/orchestrator.go's
// ticker-driven retry-with-attempt-counter idiom for CommitRetry and
// conflict resolution, and internal/mergelock + internal/platform for the
// two external-coordination points.
package gitpipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"bloom/internal/events"
	"bloom/internal/mergelock"
	"bloom/internal/platform"
	"bloom/internal/sandbox"
	"bloom/internal/session"
	"bloom/internal/session/provider"
	"bloom/internal/task"
)

// defaultMaxAttempts bounds CommitRetry and merge-conflict-resolution
// retries (§4.5 steps 1 and 4.5).
const defaultMaxAttempts = 3

// mergeLockPollInterval and mergeLockMaxWait parameterize
// mergelock.WaitWithCallback (§4.6).
const (
	mergeLockPollInterval = 5 * time.Second
	mergeLockMaxWait      = 5 * time.Minute
)

// GitClient is the subset of *git.Client the pipeline drives.
type GitClient interface {
	HasUncommittedChanges(dir string) (bool, error)
	Push(dir, branch string) error
	Fetch(dir, remote, branch string) error
	Merge(dir, branch string) error
	HasMergeConflicts(dir string) (bool, error)
	AbortMerge(dir string) error
	WorktreeAdd(repoDir, worktreeDir, branch, base string) error
	WorktreeRemove(repoDir, worktreeDir string, force bool) error
	DefaultBranch(dir, remote string) (string, error)
	LocalBranchExists(dir, branch string) (bool, error)
	DeleteLocalBranch(dir, branch string) error
	DeleteRemoteBranch(dir, remote, branch string) error
}

// SessionRunner is the subset of *session.Manager the pipeline needs to
// resume an agent for CommitRetry and conflict-resolution prompts.
type SessionRunner interface {
	Run(ctx context.Context, p session.Params) (session.Result, error)
}

// Pipeline drives §4.5's sequence for one completed task.
type Pipeline struct {
	Store    *task.Store
	Git      GitClient
	Sessions SessionRunner
	Locks    *mergelock.Manager
	Bus      *events.Bus

	// ReposDir is <workspace>/repos; each repo's bare clone and worktrees
	// live under ReposDir/<repo>/.
	ReposDir string

	// PlatformFor resolves a Client from a repo's origin remote URL.
	// Defaults to platform.ForRemote.
	PlatformFor func(remoteURL string) platform.Client

	MaxAttempts int // zero uses defaultMaxAttempts

	// MergeLockPollInterval and MergeLockMaxWait override
	// mergeLockPollInterval/mergeLockMaxWait; zero uses the package
	// default. Exposed so tests can shrink §4.6's 5s/5min defaults.
	MergeLockPollInterval time.Duration
	MergeLockMaxWait      time.Duration
}

// Params is one Run invocation: the task that just reached task:completed,
// plus the agent context needed to resume it for retries.
type Params struct {
	TaskID       string
	AgentName    string
	Provider     provider.Provider
	Sandbox      *sandbox.Instance
	SessionID    string // most recent session id for AgentName, if any, so retries resume context
	RemoteURL    string // origin URL, used for PR-host detection
	OriginRemote string // remote name for fetch/push, defaults to "origin"
}

func (p *Pipeline) maxAttempts() int {
	if p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return defaultMaxAttempts
}

func (p *Pipeline) mergeLockPollInterval() time.Duration {
	if p.MergeLockPollInterval > 0 {
		return p.MergeLockPollInterval
	}
	return mergeLockPollInterval
}

func (p *Pipeline) mergeLockMaxWait() time.Duration {
	if p.MergeLockMaxWait > 0 {
		return p.MergeLockMaxWait
	}
	return mergeLockMaxWait
}

func (p *Pipeline) publish(e events.Event) {
	if p.Bus != nil {
		p.Bus.Publish(e)
	}
}

func sanitizeBranch(branch string) string {
	return strings.ReplaceAll(branch, "/", "-")
}

func (p *Pipeline) repoDir(repo string) string {
	return filepath.Join(p.ReposDir, repo, repo+".git")
}

func (p *Pipeline) worktreeDir(repo, branch string) string {
	return filepath.Join(p.ReposDir, repo, sanitizeBranch(branch))
}

// ensureWorktree creates the worktree for an already-existing branch (the
// merge target) if it doesn't already exist, per §4.5 step 4.3.
// WorktreeAdd itself detects whether branch already exists locally and
// only falls back to creating it from base when it doesn't, so passing
// branch as its own base is safe for a target branch that's always
// expected to already exist in the bare clone.
func (p *Pipeline) ensureWorktree(repo, branch, originRemote string) (string, error) {
	dir := p.worktreeDir(repo, branch)

	p.publish(events.Event{Kind: events.KindWorktreeCreating, Repo: repo, Branch: branch})
	if err := p.Git.WorktreeAdd(p.repoDir(repo), dir, branch, branch); err != nil {
		return "", fmt.Errorf("ensure worktree for %s/%s: %w", repo, branch, err)
	}
	p.publish(events.Event{Kind: events.KindWorktreeCreated, Repo: repo, Branch: branch})
	return dir, nil
}

// Run executes §4.5's full sequence for the task identified by p.TaskID,
// which must already be task:completed.
func (p *Pipeline) Run(ctx context.Context, rp Params) error {
	originRemote := rp.OriginRemote
	if originRemote == "" {
		originRemote = "origin"
	}

	t, ok := p.Store.Get(rp.TaskID)
	if !ok {
		return fmt.Errorf("gitpipeline: unknown task %q", rp.TaskID)
	}
	worktreeDir := p.worktreeDir(t.Repo, t.Branch)

	if err := p.resolveUncommittedChanges(ctx, rp, t, worktreeDir); err != nil {
		return err
	}
	// A block decided inside resolveUncommittedChanges leaves the task
	// status as Blocked; re-read to notice and stop the sequence here.
	if t, _ = p.Store.Get(rp.TaskID); t.Status == task.StatusBlocked {
		return nil
	}

	gitCfg := p.Store.GitConfig()
	if gitCfg.PushToRemote {
		if err := p.push(t, worktreeDir, originRemote); err != nil {
			return err
		}
	}

	if t.OpenPR {
		if err := p.openPR(ctx, t, worktreeDir, rp.RemoteURL); err != nil {
			return err
		}
	}

	if t.MergeInto != "" {
		if err := p.mergeIntoTarget(ctx, rp, t, originRemote); err != nil {
			return err
		}
		if t, _ = p.Store.Get(rp.TaskID); t.Status == task.StatusBlocked {
			return nil
		}
	}

	gitCfg = p.Store.GitConfig()
	if gitCfg.AutoCleanupMerged {
		p.cleanup(t, worktreeDir, originRemote)
	}

	return p.Store.UpdateStatus(rp.TaskID, task.StatusDone)
}
