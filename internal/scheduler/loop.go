// Package scheduler implements the Scheduler / Work Loop (C2): one
// long-lived activity per agent name that picks the next runnable task,
// drives it step by step through the Session Manager (C3), and hands
// completed tasks off to the Git Pipeline (C5).
//
// Grounded on internal/orchestrator/orchestrator.go's Run method: the same
// ctx.Done/ticker select shape, generalized from "poll an external
// tracker, spawn a fire-and-forget job per item" to "poll the task store
// for this agent's next task, block on it to completion." Per §9's design
// note, each iteration re-reads tasks.yaml from disk rather than holding a
// shared in-memory graph; the trade is a little extra I/O for a much
// simpler concurrency story, so Loop itself carries almost no task state.
package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"bloom/internal/events"
	"bloom/internal/gitpipeline"
	"bloom/internal/queue"
	"bloom/internal/sandbox"
	"bloom/internal/session"
	"bloom/internal/session/provider"
	"bloom/internal/task"
)

// defaultMaxAttempts bounds step retries on agent failure before a task is
// blocked (§7's "Agent failure" policy limit). Open Question (b) in §9 is
// decided here: attempt counters are process-local and reset on restart —
// the source persists nothing across restarts either, and persisting them
// would require a schema change this spec doesn't call for.
const defaultMaxAttempts = 3

const defaultPollInterval = 5 * time.Second

// GitClient is the subset of *git.Client the scheduler drives directly
// (default-branch pulls and worktree setup; the rest of git's surface
// belongs to the Git Pipeline).
type GitClient interface {
	Pull(dir, remote, branch string) error
	DefaultBranch(dir, remote string) (string, error)
	WorktreeAdd(repoDir, worktreeDir, branch, base string) error
}

// SessionRunner is the subset of *session.Manager the scheduler drives.
type SessionRunner interface {
	Run(ctx context.Context, p session.Params) (session.Result, error)
}

// GitPipelineRunner is the subset of *gitpipeline.Pipeline the scheduler
// hands a task to once its status reaches done/done_pending_merge.
type GitPipelineRunner interface {
	Run(ctx context.Context, p gitpipeline.Params) error
}

// Loop drives one agent's work loop, parameterised exactly as §4.2
// specifies: {agentName, workspaceDir, reposDir, pollInterval,
// agentProviderOverride, streamOutputFlag (carried by Provider itself)}.
type Loop struct {
	AgentName    string
	WorkspaceDir string
	ReposDir     string
	TasksPath    string
	PollInterval time.Duration
	OriginRemote string
	RemoteURL    string // origin remote URL, passed through to the git pipeline for PR-host detection
	Provider     provider.Provider
	Sandbox      *sandbox.Instance

	Git         GitClient
	Sessions    SessionRunner
	GitPipeline GitPipelineRunner
	Queue       *queue.Manager
	Bus         *events.Bus

	MaxAttempts int

	attempts map[string]int
	lastPull map[string]time.Time
	started  bool
}

// Run loops forever, reloading tasks and driving at most one task to
// completion (or to blocked) per iteration, until ctx is canceled. The
// idle-sleep (step 4) and the blocking session call (step 7) both honor
// ctx directly, so cancellation is observed within whatever the caller's
// select/poll granularity is — no internal polling delays it further.
func (l *Loop) Run(ctx context.Context) error {
	if l.attempts == nil {
		l.attempts = map[string]int{}
	}
	if l.lastPull == nil {
		l.lastPull = map[string]time.Time{}
	}
	originRemote := l.originRemote()
	pollInterval := l.pollInterval()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		idle, err := l.iterate(ctx, originRemote)
		if err != nil {
			l.publish(events.Event{Kind: events.KindError, AgentName: l.AgentName, Err: err.Error()})
		}
		if !idle {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// iterate runs steps 1-9 of §4.2 once. idle reports whether no runnable
// task was found (step 4), so Run knows whether to sleep before the next
// call.
func (l *Loop) iterate(ctx context.Context, originRemote string) (idle bool, err error) {
	store, err := task.Load(l.TasksPath)
	if err != nil {
		return false, fmt.Errorf("reload tasks: %w", err)
	}

	if !l.started {
		l.started = true
		l.publish(events.Event{Kind: events.KindAgentStarted, AgentName: l.AgentName})
	}

	l.pullDefaultBranches(store, originRemote)

	t, ok := store.NextTaskFor(l.AgentName)
	if !ok {
		l.publish(events.Event{Kind: events.KindAgentIdle, AgentName: l.AgentName})
		return true, nil
	}

	if err := store.UpdateStatus(t.ID, task.StatusAssigned); err != nil {
		return false, fmt.Errorf("mark %s assigned: %w", t.ID, err)
	}
	if err := store.UpdateStatus(t.ID, task.StatusInProgress); err != nil {
		return false, fmt.Errorf("mark %s in_progress: %w", t.ID, err)
	}
	l.publish(events.Event{Kind: events.KindTaskFound, TaskID: t.ID, AgentName: l.AgentName, Repo: t.Repo, Branch: t.Branch})
	l.publish(events.Event{Kind: events.KindTaskStarted, TaskID: t.ID, AgentName: l.AgentName})

	worktreeDir, err := l.ensureWorktree(t, originRemote)
	if err != nil {
		return false, err
	}

	return false, l.driveSteps(ctx, t.ID, worktreeDir)
}

func (l *Loop) runGitPipeline(ctx context.Context, t task.Task) error {
	if l.GitPipeline == nil {
		return nil
	}
	return l.GitPipeline.Run(ctx, gitpipeline.Params{
		TaskID:       t.ID,
		AgentName:    l.AgentName,
		Provider:     l.Provider,
		Sandbox:      l.Sandbox,
		SessionID:    t.SessionID,
		RemoteURL:    l.RemoteURL,
		OriginRemote: l.originRemote(),
	})
}

func (l *Loop) repoDir(repo string) string {
	return filepath.Join(l.ReposDir, repo, repo+".git")
}

func (l *Loop) worktreeDir(repo, branch string) string {
	return filepath.Join(l.ReposDir, repo, sanitizeBranch(branch))
}

func sanitizeBranch(branch string) string {
	return strings.ReplaceAll(branch, "/", "-")
}

// ensureWorktree implements §4.2 step 6: create the worktree for
// task.branch from task.base_branch, falling back to the repo's default
// branch when base is unset.
func (l *Loop) ensureWorktree(t task.Task, originRemote string) (string, error) {
	base := t.BaseBranch
	if base == "" {
		def, err := l.Git.DefaultBranch(l.repoDir(t.Repo), originRemote)
		if err != nil {
			return "", fmt.Errorf("resolve default branch for %s: %w", t.Repo, err)
		}
		base = def
	}

	dir := l.worktreeDir(t.Repo, t.Branch)
	l.publish(events.Event{Kind: events.KindWorktreeCreating, TaskID: t.ID, Repo: t.Repo, Branch: t.Branch})
	if err := l.Git.WorktreeAdd(l.repoDir(t.Repo), dir, t.Branch, base); err != nil {
		return "", fmt.Errorf("ensure worktree for %s: %w", t.ID, err)
	}
	l.publish(events.Event{Kind: events.KindWorktreeCreated, TaskID: t.ID, Repo: t.Repo, Branch: t.Branch})
	return dir, nil
}

// pullDefaultBranches implements §4.2 step 2: once per iteration, pull
// each distinct repo's default branch, rate-limited to once per 60s.
func (l *Loop) pullDefaultBranches(store *task.Store, originRemote string) {
	seen := map[string]bool{}
	for _, t := range store.All() {
		if t.Repo == "" || seen[t.Repo] {
			continue
		}
		seen[t.Repo] = true

		if last, ok := l.lastPull[t.Repo]; ok && time.Since(last) < 60*time.Second {
			continue
		}

		def, err := l.Git.DefaultBranch(l.repoDir(t.Repo), originRemote)
		if err != nil {
			l.publish(events.Event{Kind: events.KindError, AgentName: l.AgentName, Repo: t.Repo, Err: err.Error()})
			continue
		}

		l.publish(events.Event{Kind: events.KindGitPulling, Repo: t.Repo, Branch: def})
		if err := l.Git.Pull(l.repoDir(t.Repo), originRemote, def); err != nil {
			l.publish(events.Event{Kind: events.KindError, AgentName: l.AgentName, Repo: t.Repo, Err: err.Error()})
			continue
		}
		l.publish(events.Event{Kind: events.KindGitPulled, Repo: t.Repo, Branch: def})
		l.lastPull[t.Repo] = time.Now()
	}
}

func (l *Loop) originRemote() string {
	if l.OriginRemote != "" {
		return l.OriginRemote
	}
	return "origin"
}

func (l *Loop) pollInterval() time.Duration {
	if l.PollInterval > 0 {
		return l.PollInterval
	}
	return defaultPollInterval
}

func (l *Loop) maxAttempts() int {
	if l.MaxAttempts > 0 {
		return l.MaxAttempts
	}
	return defaultMaxAttempts
}

func (l *Loop) publish(e events.Event) {
	if l.Bus != nil {
		l.Bus.Publish(e)
	}
}

// getTask, updateStatus, setSessionID and clearSessionID each open a
// fresh Store over tasks.yaml rather than sharing one across a driveSteps
// run, per §9's "no shared mutable task graph" note.
func (l *Loop) getTask(id string) (task.Task, bool, error) {
	s, err := task.Load(l.TasksPath)
	if err != nil {
		return task.Task{}, false, fmt.Errorf("reload tasks: %w", err)
	}
	t, ok := s.Get(id)
	return t, ok, nil
}

func (l *Loop) updateStatus(id string, to task.Status) error {
	s, err := task.Load(l.TasksPath)
	if err != nil {
		return fmt.Errorf("reload tasks: %w", err)
	}
	return s.UpdateStatus(id, to)
}

func (l *Loop) setSessionID(id, sessionID string) error {
	s, err := task.Load(l.TasksPath)
	if err != nil {
		return fmt.Errorf("reload tasks: %w", err)
	}
	return s.SetSessionID(id, sessionID)
}

func (l *Loop) clearSessionID(id string) error {
	s, err := task.Load(l.TasksPath)
	if err != nil {
		return fmt.Errorf("reload tasks: %w", err)
	}
	return s.ClearSessionID(id)
}
