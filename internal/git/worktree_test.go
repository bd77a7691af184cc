package git

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClient_WorktreeAddCreatesNewBranch(t *testing.T) {
	dir := newRepo(t)
	c := NewClient()

	worktreeDir := filepath.Join(t.TempDir(), "wt")
	if err := c.WorktreeAdd(dir, worktreeDir, "feature/new", "main"); err != nil {
		t.Fatalf("WorktreeAdd: %v", err)
	}
	if !c.RepoExists(worktreeDir) {
		t.Fatal("expected worktree dir to be a git work tree")
	}
	branch, err := c.CurrentBranch(worktreeDir)
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "feature/new" {
		t.Fatalf("expected feature/new, got %q", branch)
	}
}

func TestClient_WorktreeAddReusesExistingBranch(t *testing.T) {
	dir := newRepo(t)
	c := NewClient()

	if err := c.CheckoutNewBranch(dir, "feature/existing"); err != nil {
		t.Fatalf("CheckoutNewBranch: %v", err)
	}
	if err := c.Checkout(dir, "main"); err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	worktreeDir := filepath.Join(t.TempDir(), "wt")
	if err := c.WorktreeAdd(dir, worktreeDir, "feature/existing", "main"); err != nil {
		t.Fatalf("WorktreeAdd: %v", err)
	}
	branch, err := c.CurrentBranch(worktreeDir)
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "feature/existing" {
		t.Fatalf("expected feature/existing, got %q", branch)
	}
}

func TestClient_WorktreeRemove(t *testing.T) {
	dir := newRepo(t)
	c := NewClient()

	worktreeDir := filepath.Join(t.TempDir(), "wt")
	if err := c.WorktreeAdd(dir, worktreeDir, "feature/gone", "main"); err != nil {
		t.Fatalf("WorktreeAdd: %v", err)
	}
	if err := c.WorktreeRemove(dir, worktreeDir, false); err != nil {
		t.Fatalf("WorktreeRemove: %v", err)
	}
	if _, err := os.Stat(worktreeDir); !os.IsNotExist(err) {
		t.Fatal("expected worktree directory to be removed")
	}
}

func TestClient_WorktreeRemoveForcePrunesMissingDir(t *testing.T) {
	dir := newRepo(t)
	c := NewClient()

	worktreeDir := filepath.Join(t.TempDir(), "wt")
	if err := c.WorktreeAdd(dir, worktreeDir, "feature/killed", "main"); err != nil {
		t.Fatalf("WorktreeAdd: %v", err)
	}
	if err := os.RemoveAll(worktreeDir); err != nil {
		t.Fatal(err)
	}

	if err := c.WorktreeRemove(dir, worktreeDir, true); err != nil {
		t.Fatalf("WorktreeRemove after manual deletion: %v", err)
	}
}
