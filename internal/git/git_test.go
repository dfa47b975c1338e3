package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// setupTestRepo creates a temporary git repository with one commit.
func setupTestRepo(t *testing.T) string {
	t.Helper()

	repo := filepath.Join(t.TempDir(), "repo")
	if err := os.MkdirAll(repo, 0750); err != nil {
		t.Fatalf("creating repo dir: %v", err)
	}

	runGit(t, repo, "init", "-b", "main")
	runGit(t, repo, "config", "user.email", "test@example.com")
	runGit(t, repo, "config", "user.name", "Test User")

	if err := os.WriteFile(filepath.Join(repo, "README"), []byte("test\n"), 0644); err != nil {
		t.Fatalf("writing file: %v", err)
	}
	runGit(t, repo, "add", ".")
	runGit(t, repo, "commit", "-m", "initial commit")

	return repo
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
	return string(out)
}

func TestRepoRoot(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	repo := setupTestRepo(t)

	sub := filepath.Join(repo, "sub")
	if err := os.MkdirAll(sub, 0750); err != nil {
		t.Fatal(err)
	}

	root, err := RepoRoot(ctx, sub)
	if err != nil {
		t.Fatalf("RepoRoot: %v", err)
	}
	// Resolve symlinks: macOS TempDir lives under /private.
	wantRoot, _ := filepath.EvalSymlinks(repo)
	gotRoot, _ := filepath.EvalSymlinks(root)
	if gotRoot != wantRoot {
		t.Errorf("RepoRoot = %s, want %s", gotRoot, wantRoot)
	}
}

func TestRepoRootOutsideRepo(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if _, err := RepoRoot(context.Background(), t.TempDir()); err == nil {
		t.Error("RepoRoot should fail outside a repository")
	}
}

func TestBranchExists(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	repo := setupTestRepo(t)

	if !BranchExists(ctx, repo, "main") {
		t.Error("main should exist")
	}
	if BranchExists(ctx, repo, "no-such-branch") {
		t.Error("no-such-branch should not exist")
	}
}

func TestDivergence(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	repo := setupTestRepo(t)

	// Simulate a remote-tracking ref at the current tip.
	runGit(t, repo, "update-ref", "refs/remotes/origin/main", "HEAD")

	ahead, behind, err := Divergence(ctx, repo, "main", "origin")
	if err != nil {
		t.Fatalf("Divergence: %v", err)
	}
	if ahead != 0 || behind != 0 {
		t.Errorf("Divergence = (%d, %d), want (0, 0)", ahead, behind)
	}

	// One local commit ahead.
	if err := os.WriteFile(filepath.Join(repo, "a.txt"), []byte("a\n"), 0644); err != nil {
		t.Fatal(err)
	}
	runGit(t, repo, "add", ".")
	runGit(t, repo, "commit", "-m", "local commit")

	ahead, behind, err = Divergence(ctx, repo, "main", "origin")
	if err != nil {
		t.Fatalf("Divergence: %v", err)
	}
	if ahead != 1 || behind != 0 {
		t.Errorf("Divergence = (%d, %d), want (1, 0)", ahead, behind)
	}
}

func TestShowFile(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	repo := setupTestRepo(t)

	data, ok, err := ShowFile(ctx, repo, "HEAD", "README")
	if err != nil {
		t.Fatalf("ShowFile: %v", err)
	}
	if !ok {
		t.Fatal("README should exist at HEAD")
	}
	if string(data) != "test\n" {
		t.Errorf("ShowFile = %q, want %q", data, "test\n")
	}

	_, ok, err = ShowFile(ctx, repo, "HEAD", "missing.txt")
	if err != nil {
		t.Fatalf("ShowFile for missing path: %v", err)
	}
	if ok {
		t.Error("missing path should report ok=false")
	}
}

func TestMergeBase(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	repo := setupTestRepo(t)

	base, err := RevParse(ctx, repo, "HEAD")
	if err != nil {
		t.Fatalf("RevParse: %v", err)
	}

	// Two branches diverging from HEAD.
	runGit(t, repo, "checkout", "-b", "left")
	if err := os.WriteFile(filepath.Join(repo, "l.txt"), []byte("l\n"), 0644); err != nil {
		t.Fatal(err)
	}
	runGit(t, repo, "add", ".")
	runGit(t, repo, "commit", "-m", "left")

	runGit(t, repo, "checkout", "-b", "right", base)
	if err := os.WriteFile(filepath.Join(repo, "r.txt"), []byte("r\n"), 0644); err != nil {
		t.Fatal(err)
	}
	runGit(t, repo, "add", ".")
	runGit(t, repo, "commit", "-m", "right")

	got, err := MergeBase(ctx, repo, "left", "right")
	if err != nil {
		t.Fatalf("MergeBase: %v", err)
	}
	if got != base {
		t.Errorf("MergeBase = %s, want %s", got, base)
	}
}

func TestIsClean(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	repo := setupTestRepo(t)

	clean, err := IsClean(ctx, repo)
	if err != nil {
		t.Fatalf("IsClean: %v", err)
	}
	if !clean {
		t.Error("fresh repo should be clean")
	}

	if err := os.WriteFile(filepath.Join(repo, "dirty.txt"), []byte("x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	clean, err = IsClean(ctx, repo)
	if err != nil {
		t.Fatalf("IsClean: %v", err)
	}
	if clean {
		t.Error("repo with untracked file should not be clean")
	}
}

func TestListTree(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	repo := setupTestRepo(t)

	dir := filepath.Join(repo, ".tbd", "records")
	if err := os.MkdirAll(dir, 0750); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.json", "b.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	runGit(t, repo, "add", ".")
	runGit(t, repo, "commit", "-m", "records")

	paths, err := ListTree(ctx, repo, "HEAD", ".tbd/records")
	if err != nil {
		t.Fatalf("ListTree: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("ListTree = %v, want 2 paths", paths)
	}
	if paths[0] != ".tbd/records/a.json" {
		t.Errorf("ListTree[0] = %s", paths[0])
	}
}
