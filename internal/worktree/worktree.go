// Package worktree owns the isolated checkout of the sync branch.
//
// The sync engine never touches the user's working tree: all commits, pulls
// and merges happen in a secondary worktree under the repository's git
// directory, sparse-checked-out to just the .tbd data directory. Every sync
// entry runs the health check here first; each unhealthy state has a defined
// repair, and any repair that would destroy uncommitted content fails with
// *CorruptError instead.
package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tbd-tracker/tbd/internal/debug"
	"github.com/tbd-tracker/tbd/internal/git"
)

// Health describes the observed state of the sync worktree.
type Health string

const (
	// HealthHealthy: worktree exists, HEAD is attached to the sync branch.
	HealthHealthy Health = "healthy"
	// HealthAbsent: worktree directory does not exist and is not registered.
	HealthAbsent Health = "absent"
	// HealthMissing: git's worktree registry references the path but the
	// directory is gone.
	HealthMissing Health = "missing-on-disk"
	// HealthDetached: worktree exists but HEAD is detached.
	HealthDetached Health = "detached"
	// HealthDiverged: worktree HEAD is attached to some other branch than
	// the sync branch (e.g. after an external git operation).
	HealthDiverged Health = "diverged"
	// HealthInvalid: the path exists but is not a usable worktree.
	HealthInvalid Health = "invalid"
)

// CorruptError reports a worktree whose repair would destroy uncommitted
// content. The engine never discards data to make itself healthy.
type CorruptError struct {
	Path   string
	Health Health
	Hint   string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("sync worktree at %s is %s with uncommitted changes: %s", e.Path, e.Health, e.Hint)
}

// Manager owns the sync worktree for one repository.
type Manager struct {
	repoRoot string
	branch   string
	remote   string
	path     string
}

// NewManager returns a manager for the sync branch's worktree. The worktree
// lives under <git-common-dir>/tbd-worktrees/<branch> so it never collides
// with the user's checkouts.
func NewManager(ctx context.Context, repoRoot, branch, remote string) (*Manager, error) {
	commonDir, err := git.Run(ctx, repoRoot, "rev-parse", "--git-common-dir")
	if err != nil {
		return nil, fmt.Errorf("locating git directory: %w", err)
	}
	if !filepath.IsAbs(commonDir) {
		commonDir = filepath.Join(repoRoot, commonDir)
	}

	return &Manager{
		repoRoot: repoRoot,
		branch:   branch,
		remote:   remote,
		path:     filepath.Join(commonDir, "tbd-worktrees", branch),
	}, nil
}

// Path returns the worktree directory.
func (m *Manager) Path() string {
	return m.path
}

// Branch returns the sync branch this worktree is bound to.
func (m *Manager) Branch() string {
	return m.branch
}

// Inspect reports the worktree's health without repairing anything.
func (m *Manager) Inspect(ctx context.Context) (Health, error) {
	onDisk := true
	if _, err := os.Stat(m.path); os.IsNotExist(err) {
		onDisk = false
	} else if err != nil {
		return "", fmt.Errorf("checking worktree path: %w", err)
	}

	registered, err := m.isRegistered(ctx)
	if err != nil {
		return "", err
	}

	if !onDisk {
		if registered {
			return HealthMissing, nil
		}
		return HealthAbsent, nil
	}

	// Directory exists: is it a usable worktree?
	if _, err := git.Run(ctx, m.path, "rev-parse", "--git-dir"); err != nil {
		return HealthInvalid, nil
	}

	current, err := git.CurrentBranch(ctx, m.path)
	if err != nil {
		return "", fmt.Errorf("reading worktree HEAD: %w", err)
	}
	switch current {
	case m.branch:
		return HealthHealthy, nil
	case "":
		return HealthDetached, nil
	default:
		return HealthDiverged, nil
	}
}

// Ensure runs the health state machine and repairs the worktree to Healthy,
// or fails. It is idempotent and safe to run on every sync invocation.
func (m *Manager) Ensure(ctx context.Context) error {
	health, err := m.Inspect(ctx)
	if err != nil {
		return err
	}
	if health != HealthHealthy {
		debug.Logf("worktree %s is %s, repairing\n", m.path, health)
	}

	switch health {
	case HealthHealthy:
		return nil

	case HealthAbsent:
		return m.create(ctx)

	case HealthMissing:
		// Registry points at a path that is gone; deregister and recreate.
		if _, err := git.Run(ctx, m.repoRoot, "worktree", "prune"); err != nil {
			return fmt.Errorf("pruning stale worktree registration: %w", err)
		}
		return m.create(ctx)

	case HealthInvalid:
		// Not a git checkout at all; nothing committable can be lost.
		if err := m.Remove(ctx); err != nil {
			return err
		}
		return m.create(ctx)

	case HealthDetached:
		clean, err := git.IsClean(ctx, m.path)
		if err != nil {
			return err
		}
		if !clean {
			return &CorruptError{
				Path:   m.path,
				Health: HealthDetached,
				Hint:   "commit or discard the changes in the worktree, or remove it and rerun sync",
			}
		}
		if _, err := git.Run(ctx, m.path, "checkout", m.branch); err != nil {
			return fmt.Errorf("re-attaching worktree to %s: %w", m.branch, err)
		}
		return nil

	case HealthDiverged:
		clean, err := git.IsClean(ctx, m.path)
		if err != nil {
			return err
		}
		if !clean {
			return &CorruptError{
				Path:   m.path,
				Health: HealthDiverged,
				Hint:   fmt.Sprintf("worktree is on another branch with local changes; checkout %s there manually", m.branch),
			}
		}
		if _, err := git.Run(ctx, m.path, "checkout", m.branch); err != nil {
			return fmt.Errorf("re-pointing worktree to %s: %w", m.branch, err)
		}
		if _, err := git.Run(ctx, m.path, "reset", "--hard", "refs/heads/"+m.branch); err != nil {
			return fmt.Errorf("resetting worktree to %s: %w", m.branch, err)
		}
		return nil
	}

	return fmt.Errorf("unknown worktree health %q", health)
}

// Recreate forces a fresh worktree: remove whatever is there and create
// anew. Used by sync --repair-worktree.
func (m *Manager) Recreate(ctx context.Context) error {
	if err := m.Remove(ctx); err != nil {
		return err
	}
	return m.create(ctx)
}

// Remove deletes the worktree. Removing a nonexistent worktree is a no-op.
// Falls back to manual cleanup when git cannot remove it (e.g. the .git
// link file was deleted).
func (m *Manager) Remove(ctx context.Context) error {
	if _, err := os.Stat(m.path); os.IsNotExist(err) {
		_, _ = git.Run(ctx, m.repoRoot, "worktree", "prune")
		return nil
	}

	if _, err := git.Run(ctx, m.repoRoot, "worktree", "remove", "--force", m.path); err != nil {
		debug.Logf("git worktree remove failed (%v), falling back to manual cleanup\n", err)
		if err := os.RemoveAll(m.path); err != nil {
			return fmt.Errorf("removing worktree directory: %w", err)
		}
		if _, err := git.Run(ctx, m.repoRoot, "worktree", "prune"); err != nil {
			return fmt.Errorf("pruning worktree registration: %w", err)
		}
	}
	return nil
}

// create makes a fresh worktree attached to the sync branch, creating the
// branch first if needed (from the remote-tracking ref when one exists,
// otherwise from HEAD). The checkout is sparse: only .tbd materializes.
func (m *Manager) create(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0750); err != nil {
		return fmt.Errorf("creating worktree parent directory: %w", err)
	}

	if !git.BranchExists(ctx, m.repoRoot, m.branch) {
		start := "HEAD"
		if git.RemoteBranchExists(ctx, m.repoRoot, m.remote, m.branch) {
			start = fmt.Sprintf("%s/%s", m.remote, m.branch)
		}
		if _, err := git.Run(ctx, m.repoRoot, "branch", m.branch, start); err != nil {
			return fmt.Errorf("creating sync branch %s: %w", m.branch, err)
		}
	}

	// --no-checkout so the sparse patterns are in place before anything
	// materializes; the host tree never hits the disk here.
	if _, err := git.Run(ctx, m.repoRoot, "worktree", "add", "--no-checkout", m.path, m.branch); err != nil {
		return fmt.Errorf("creating sync worktree: %w", err)
	}
	if err := m.configureSparseCheckout(ctx); err != nil {
		return err
	}
	if _, err := git.Run(ctx, m.path, "checkout", m.branch); err != nil {
		return fmt.Errorf("populating sync worktree: %w", err)
	}

	// Track the remote so pull/push inside the worktree need no arguments
	// beyond the remote name.
	if git.HasRemote(ctx, m.repoRoot, m.remote) {
		if _, err := git.Run(ctx, m.path, "branch",
			"--set-upstream-to", fmt.Sprintf("%s/%s", m.remote, m.branch)); err != nil {
			// No remote-tracking ref yet (branch never pushed); push sets it later.
			debug.Logf("upstream not set for %s: %v\n", m.branch, err)
		}
	}
	return nil
}

// configureSparseCheckout restricts the worktree to the .tbd directory so a
// large host repository never materializes in the sync checkout.
func (m *Manager) configureSparseCheckout(ctx context.Context) error {
	if _, err := git.Run(ctx, m.path, "sparse-checkout", "set", ".tbd"); err != nil {
		return fmt.Errorf("configuring sparse checkout: %w", err)
	}
	return nil
}

// isRegistered reports whether git's worktree registry references our path.
func (m *Manager) isRegistered(ctx context.Context) (bool, error) {
	out, err := git.Run(ctx, m.repoRoot, "worktree", "list", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("listing worktrees: %w", err)
	}
	for _, line := range strings.Split(out, "\n") {
		if path, ok := strings.CutPrefix(line, "worktree "); ok && filepath.Clean(path) == filepath.Clean(m.path) {
			return true, nil
		}
	}
	return false, nil
}
