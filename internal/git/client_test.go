package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// runGit runs a git command directly (not through the Client under test) to
// set up fixtures.
func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_AUTHOR_NAME=bloom-test", "GIT_AUTHOR_EMAIL=bloom-test@example.com",
		"GIT_COMMITTER_NAME=bloom-test", "GIT_COMMITTER_EMAIL=bloom-test@example.com")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
}

// newRepo creates a local repo with an initial commit on main.
func newRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init", "-b", "main")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "initial")
	return dir
}

// newBareRemote creates a bare repo and a clone of it with an initial
// commit already pushed, returning (remoteDir, cloneDir).
func newBareRemote(t *testing.T) (string, string) {
	t.Helper()
	remote := t.TempDir()
	runGit(t, remote, "init", "--bare", "-b", "main")

	origin := newRepo(t)
	runGit(t, origin, "remote", "add", "origin", remote)
	runGit(t, origin, "push", "origin", "main")
	return remote, origin
}

func TestClient_CloneAndRepoExists(t *testing.T) {
	remote, _ := newBareRemote(t)
	dest := filepath.Join(t.TempDir(), "clone")

	c := NewClient()
	if !c.RepoExists(remote) {
		// bare repos still register as a git work tree for rev-parse purposes
		t.Log("bare remote RepoExists returned false, continuing")
	}
	if c.RepoExists(dest) {
		t.Fatal("expected RepoExists to be false before clone")
	}

	if err := c.Clone(context.Background(), remote, dest); err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if !c.RepoExists(dest) {
		t.Fatal("expected RepoExists to be true after clone")
	}
}

func TestClient_Config(t *testing.T) {
	dir := newRepo(t)
	c := NewClient()

	if err := c.Config(dir, "user.email", "local@example.com"); err != nil {
		t.Fatalf("Config: %v", err)
	}
	out, err := exec.Command("git", "-C", dir, "config", "user.email").Output()
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if strings.TrimSpace(string(out)) != "local@example.com" {
		t.Fatalf("expected user.email to be set, got %q", out)
	}
}

func TestClient_CheckoutNewBranchAndCurrentBranch(t *testing.T) {
	dir := newRepo(t)
	c := NewClient()

	if err := c.CheckoutNewBranch(dir, "feature/widget"); err != nil {
		t.Fatalf("CheckoutNewBranch: %v", err)
	}
	branch, err := c.CurrentBranch(dir)
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "feature/widget" {
		t.Fatalf("expected feature/widget, got %q", branch)
	}

	exists, err := c.LocalBranchExists(dir, "feature/widget")
	if err != nil {
		t.Fatalf("LocalBranchExists: %v", err)
	}
	if !exists {
		t.Fatal("expected feature/widget to exist locally")
	}
	exists, err = c.LocalBranchExists(dir, "no-such-branch")
	if err != nil {
		t.Fatalf("LocalBranchExists: %v", err)
	}
	if exists {
		t.Fatal("expected no-such-branch to not exist")
	}
}

func TestClient_CommitAndHasUncommittedChanges(t *testing.T) {
	dir := newRepo(t)
	c := NewClient()

	has, err := c.HasUncommittedChanges(dir)
	if err != nil {
		t.Fatalf("HasUncommittedChanges: %v", err)
	}
	if has {
		t.Fatal("expected clean worktree after newRepo")
	}

	if err := os.WriteFile(filepath.Join(dir, "widget.go"), []byte("package widget\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	has, err = c.HasUncommittedChanges(dir)
	if err != nil {
		t.Fatalf("HasUncommittedChanges: %v", err)
	}
	if !has {
		t.Fatal("expected untracked file to count as uncommitted")
	}

	if err := c.Commit(dir, "add widget"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	has, err = c.HasUncommittedChanges(dir)
	if err != nil {
		t.Fatalf("HasUncommittedChanges: %v", err)
	}
	if has {
		t.Fatal("expected clean worktree after commit")
	}
}

func TestClient_PushFetchPull(t *testing.T) {
	remote, origin := newBareRemote(t)
	c := NewClient()

	if err := c.CheckoutNewBranch(origin, "feature/pushed"); err != nil {
		t.Fatalf("CheckoutNewBranch: %v", err)
	}
	if err := os.WriteFile(filepath.Join(origin, "new.txt"), []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c.Commit(origin, "add new.txt"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := c.Push(origin, "feature/pushed"); err != nil {
		t.Fatalf("Push: %v", err)
	}

	exists, err := c.RemoteBranchExists(origin, "origin", "feature/pushed")
	if err != nil {
		t.Fatalf("RemoteBranchExists: %v", err)
	}
	if !exists {
		t.Fatal("expected feature/pushed to exist on remote after push")
	}

	other := filepath.Join(t.TempDir(), "other-clone")
	if err := c.Clone(context.Background(), remote, other); err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if err := c.Fetch(other, "origin", "feature/pushed"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if err := c.Pull(other, "origin", "main"); err != nil {
		t.Fatalf("Pull: %v", err)
	}
}

func TestClient_MergeAndAbortMerge(t *testing.T) {
	dir := newRepo(t)
	c := NewClient()

	if err := c.CheckoutNewBranch(dir, "feature/a"); err != nil {
		t.Fatalf("CheckoutNewBranch: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "conflict.txt"), []byte("from feature\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c.Commit(dir, "feature change"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := c.Checkout(dir, "main"); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "conflict.txt"), []byte("from main\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c.Commit(dir, "main change"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := c.Merge(dir, "feature/a"); err == nil {
		t.Fatal("expected Merge to fail on conflicting content")
	}

	has, err := c.HasMergeConflicts(dir)
	if err != nil {
		t.Fatalf("HasMergeConflicts: %v", err)
	}
	if !has {
		t.Fatal("expected HasMergeConflicts to be true mid-conflict")
	}

	if err := c.AbortMerge(dir); err != nil {
		t.Fatalf("AbortMerge: %v", err)
	}
	has, err = c.HasMergeConflicts(dir)
	if err != nil {
		t.Fatalf("HasMergeConflicts: %v", err)
	}
	if has {
		t.Fatal("expected HasMergeConflicts to clear after AbortMerge")
	}
}

func TestClient_StashAndStashPop(t *testing.T) {
	dir := newRepo(t)
	c := NewClient()

	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("changed\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c.Stash(dir); err != nil {
		t.Fatalf("Stash: %v", err)
	}
	has, err := c.HasUncommittedChanges(dir)
	if err != nil {
		t.Fatalf("HasUncommittedChanges: %v", err)
	}
	if has {
		t.Fatal("expected clean worktree after Stash")
	}

	if err := c.StashPop(dir); err != nil {
		t.Fatalf("StashPop: %v", err)
	}
	has, err = c.HasUncommittedChanges(dir)
	if err != nil {
		t.Fatalf("HasUncommittedChanges: %v", err)
	}
	if !has {
		t.Fatal("expected uncommitted change back after StashPop")
	}
}

func TestClient_ResetHardAndClean(t *testing.T) {
	remote, origin := newBareRemote(t)
	c := NewClient()
	_ = remote

	if err := os.WriteFile(filepath.Join(origin, "untracked.txt"), []byte("junk\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(origin, "README.md"), []byte("local edit\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := c.ResetHard(origin, "origin", "main"); err != nil {
		t.Fatalf("ResetHard: %v", err)
	}
	out, err := exec.Command("git", "-C", origin, "diff", "--stat").CombinedOutput()
	if err != nil {
		t.Fatalf("git diff: %v", err)
	}
	if strings.TrimSpace(string(out)) != "" {
		t.Fatalf("expected no diff against origin/main after ResetHard, got %q", out)
	}

	if err := c.Clean(origin); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if _, err := os.Stat(filepath.Join(origin, "untracked.txt")); !os.IsNotExist(err) {
		t.Fatal("expected untracked.txt to be removed by Clean")
	}
}

func TestClient_DeleteLocalAndRemoteBranch(t *testing.T) {
	_, origin := newBareRemote(t)
	c := NewClient()

	if err := c.CheckoutNewBranch(origin, "feature/doomed"); err != nil {
		t.Fatalf("CheckoutNewBranch: %v", err)
	}
	if err := c.Push(origin, "feature/doomed"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := c.Checkout(origin, "main"); err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if err := c.DeleteLocalBranch(origin, "feature/doomed"); err != nil {
		t.Fatalf("DeleteLocalBranch: %v", err)
	}
	exists, err := c.LocalBranchExists(origin, "feature/doomed")
	if err != nil {
		t.Fatalf("LocalBranchExists: %v", err)
	}
	if exists {
		t.Fatal("expected feature/doomed gone locally")
	}

	if err := c.DeleteRemoteBranch(origin, "origin", "feature/doomed"); err != nil {
		t.Fatalf("DeleteRemoteBranch: %v", err)
	}
	exists, err = c.RemoteBranchExists(origin, "origin", "feature/doomed")
	if err != nil {
		t.Fatalf("RemoteBranchExists: %v", err)
	}
	if exists {
		t.Fatal("expected feature/doomed gone on remote")
	}
}

func TestClient_DefaultBranch(t *testing.T) {
	remote, origin := newBareRemote(t)
	c := NewClient()

	branch, err := c.DefaultBranch(origin, "origin")
	if err != nil {
		t.Fatalf("DefaultBranch: %v", err)
	}
	if branch != "main" {
		t.Fatalf("expected main, got %q", branch)
	}
	_ = remote
}

func TestClient_SetRemoteURL(t *testing.T) {
	_, origin := newBareRemote(t)
	c := NewClient()

	newURL := filepath.Join(t.TempDir(), "elsewhere.git")
	if err := c.SetRemoteURL(origin, "origin", newURL); err != nil {
		t.Fatalf("SetRemoteURL: %v", err)
	}
	out, err := exec.Command("git", "-C", origin, "remote", "get-url", "origin").Output()
	if err != nil {
		t.Fatalf("remote get-url: %v", err)
	}
	if strings.TrimSpace(string(out)) != newURL {
		t.Fatalf("expected remote url %q, got %q", newURL, out)
	}
}

func TestClient_Recover(t *testing.T) {
	dir := newRepo(t)
	lockPath := filepath.Join(dir, ".git", "index.lock")
	if err := os.WriteFile(lockPath, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewClient()
	if err := c.Recover(dir); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Fatal("expected index.lock to be removed by Recover")
	}
}
