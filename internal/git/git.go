// Package git wraps the git CLI for the sync engine. tbd does not implement
// any of git's object model; every repository operation shells out to an
// installed git, worktree-aware via rev-parse rather than path guessing.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Run executes git with the given args in dir and returns trimmed stdout.
// Failures include the combined output so callers can diagnose without
// re-running with verbose flags.
func Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w\n%s", strings.Join(args, " "), err, output)
	}
	return strings.TrimSpace(string(output)), nil
}

// RepoRoot returns the repository root containing dir.
func RepoRoot(ctx context.Context, dir string) (string, error) {
	out, err := Run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}
	return out, nil
}

// GitDir returns the absolute .git directory for the repository at dir.
// In a worktree .git is a file pointing elsewhere, so this must go through
// rev-parse instead of joining ".git" onto a path.
func GitDir(ctx context.Context, dir string) (string, error) {
	out, err := Run(ctx, dir, "rev-parse", "--git-dir")
	if err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}
	if !filepath.IsAbs(out) {
		out = filepath.Join(dir, out)
	}
	return out, nil
}

// CurrentBranch returns the checked-out branch name, or "" for detached HEAD.
func CurrentBranch(ctx context.Context, dir string) (string, error) {
	return Run(ctx, dir, "branch", "--show-current")
}

// BranchExists reports whether a local branch ref exists.
func BranchExists(ctx context.Context, dir, branch string) bool {
	_, err := Run(ctx, dir, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

// RemoteBranchExists reports whether the remote-tracking ref exists locally.
func RemoteBranchExists(ctx context.Context, dir, remote, branch string) bool {
	_, err := Run(ctx, dir, "show-ref", "--verify", "--quiet",
		fmt.Sprintf("refs/remotes/%s/%s", remote, branch))
	return err == nil
}

// HasRemote reports whether the named remote is configured.
func HasRemote(ctx context.Context, dir, remote string) bool {
	out, err := Run(ctx, dir, "remote")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == remote {
			return true
		}
	}
	return false
}

// RevParse resolves a ref to a commit hash.
func RevParse(ctx context.Context, dir, ref string) (string, error) {
	return Run(ctx, dir, "rev-parse", "--verify", ref+"^{commit}")
}

// MergeBase returns the nearest common ancestor of two refs, or "" when the
// histories are unrelated.
func MergeBase(ctx context.Context, dir, a, b string) (string, error) {
	out, err := Run(ctx, dir, "merge-base", a, b)
	if err != nil {
		// Exit code 1 means no common ancestor; that is an answer, not a failure.
		if strings.Contains(err.Error(), "exit status 1") {
			return "", nil
		}
		return "", err
	}
	return out, nil
}

// Divergence counts commits on each side of branch...remote/branch.
// (ahead, behind) = (local-only commits, remote-only commits).
func Divergence(ctx context.Context, dir, branch, remote string) (ahead, behind int, err error) {
	out, err := Run(ctx, dir, "rev-list", "--left-right", "--count",
		fmt.Sprintf("%s...%s/%s", branch, remote, branch))
	if err != nil {
		return 0, 0, fmt.Errorf("counting divergence for %s: %w", branch, err)
	}

	fields := strings.Fields(out)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("unexpected rev-list output %q", out)
	}
	ahead, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("parsing divergence count %q: %w", out, err)
	}
	behind, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("parsing divergence count %q: %w", out, err)
	}
	return ahead, behind, nil
}

// ShowFile reads a file's content at a given commit without touching the
// working tree. A path absent from the commit returns ("", false, nil).
func ShowFile(ctx context.Context, dir, ref, path string) ([]byte, bool, error) {
	cmd := exec.CommandContext(ctx, "git", "show", ref+":"+path)
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			msg := string(ee.Stderr)
			if strings.Contains(msg, "does not exist") || strings.Contains(msg, "exists on disk, but not in") {
				return nil, false, nil
			}
			return nil, false, fmt.Errorf("git show %s:%s: %w\n%s", ref, path, err, msg)
		}
		return nil, false, fmt.Errorf("git show %s:%s: %w", ref, path, err)
	}
	return output, true, nil
}

// ListTree lists file paths under pathPrefix in the tree at ref.
func ListTree(ctx context.Context, dir, ref, pathPrefix string) ([]string, error) {
	out, err := Run(ctx, dir, "ls-tree", "-r", "--name-only", ref, "--", pathPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing tree at %s: %w", ref, err)
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// IsClean reports whether the working tree at dir has no uncommitted changes.
func IsClean(ctx context.Context, dir string) (bool, error) {
	out, err := Run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("checking working tree state: %w", err)
	}
	return out == "", nil
}
