// Package syncer drives the end-to-end sync of the record store: lock,
// verify the worktree, commit local changes, pull, resolve conflicts, push,
// update local sync metadata. All git activity happens in the dedicated sync
// worktree; the user's checkout is never touched.
package syncer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/tbd-tracker/tbd/internal/attic"
	"github.com/tbd-tracker/tbd/internal/debug"
	"github.com/tbd-tracker/tbd/internal/git"
	"github.com/tbd-tracker/tbd/internal/records"
	"github.com/tbd-tracker/tbd/internal/resolve"
	"github.com/tbd-tracker/tbd/internal/syncstate"
	"github.com/tbd-tracker/tbd/internal/telemetry"
	"github.com/tbd-tracker/tbd/internal/worktree"
)

const (
	lockFileName = ".sync.lock"

	// resolveWorkers bounds parallel per-record conflict resolution.
	resolveWorkers = 4

	// pushAttempts bounds the re-pull-and-retry loop on a rejected push.
	pushAttempts = 2
)

// Config wires a Syncer to one repository.
type Config struct {
	RepoRoot string
	TbdDir   string // defaults to <RepoRoot>/.tbd
	Branch   string // sync branch name
	Remote   string // remote name

	// MaxPullAttempts caps fetch retries on transient network failure.
	MaxPullAttempts int

	// NetworkTimeout bounds each individual fetch or push attempt.
	NetworkTimeout time.Duration
}

// Options selects a partial sync.
type Options struct {
	PushOnly            bool
	PullOnly            bool
	ForceRepairWorktree bool
}

// Result summarizes what one sync did.
type Result struct {
	Pulled              int
	Pushed              int
	ConflictsResolved   int
	AtticEntriesWritten int
}

// Status is the read-only view of sync state.
type Status struct {
	Ahead          int
	Behind         int
	WorktreeHealth worktree.Health
	LastSyncAt     time.Time
}

// Syncer orchestrates synchronization for one repository.
type Syncer struct {
	cfg     Config
	wt      *worktree.Manager
	state   *syncstate.Store
	metrics *telemetry.SyncMetrics

	// relTbd is the data directory relative to the repo root, as it appears
	// in git trees (".tbd").
	relTbd string
}

// New builds a Syncer. The worktree is located but not created; Sync's
// health check creates it on first use.
func New(ctx context.Context, cfg Config) (*Syncer, error) {
	if cfg.RepoRoot == "" {
		return nil, fmt.Errorf("syncer: repo root required")
	}
	if cfg.TbdDir == "" {
		cfg.TbdDir = filepath.Join(cfg.RepoRoot, ".tbd")
	}
	if cfg.Branch == "" {
		cfg.Branch = "tbd-sync"
	}
	if cfg.Remote == "" {
		cfg.Remote = "origin"
	}
	if cfg.MaxPullAttempts <= 0 {
		cfg.MaxPullAttempts = 3
	}
	if cfg.NetworkTimeout <= 0 {
		cfg.NetworkTimeout = 60 * time.Second
	}

	relTbd, err := filepath.Rel(cfg.RepoRoot, cfg.TbdDir)
	if err != nil || strings.HasPrefix(relTbd, "..") {
		return nil, fmt.Errorf("syncer: data dir %s is not inside repository %s", cfg.TbdDir, cfg.RepoRoot)
	}

	wt, err := worktree.NewManager(ctx, cfg.RepoRoot, cfg.Branch, cfg.Remote)
	if err != nil {
		return nil, err
	}

	return &Syncer{
		cfg:     cfg,
		wt:      wt,
		state:   syncstate.NewStore(cfg.TbdDir),
		metrics: telemetry.NewSyncMetrics(),
		relTbd:  filepath.ToSlash(relTbd),
	}, nil
}

// Sync runs the full pipeline. Returns ErrSyncInProgress without blocking
// when another invocation holds the repository lock.
func (s *Syncer) Sync(ctx context.Context, opts Options) (Result, error) {
	start := time.Now()
	res, err := s.sync(ctx, opts)
	s.metrics.RecordRun(ctx, start, err, res.ConflictsResolved, res.AtticEntriesWritten)
	return res, err
}

func (s *Syncer) sync(ctx context.Context, opts Options) (Result, error) {
	var res Result

	lock := flock.New(filepath.Join(s.cfg.TbdDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return res, fmt.Errorf("acquiring sync lock: %w", err)
	}
	if !locked {
		return res, ErrSyncInProgress
	}
	defer func() {
		_ = lock.Unlock()
	}()

	if opts.ForceRepairWorktree {
		if err := s.wt.Recreate(ctx); err != nil {
			return res, err
		}
	} else if err := s.wt.Ensure(ctx); err != nil {
		return res, err
	}

	if err := s.stageLocalChanges(ctx); err != nil {
		return res, err
	}

	hasRemote := git.HasRemote(ctx, s.cfg.RepoRoot, s.cfg.Remote)
	resolvedAt := time.Now().UTC()

	if hasRemote && !opts.PushOnly {
		if err := s.fetch(ctx); err != nil {
			return res, err
		}
		pulled, conflicts, entries, err := s.integrateRemote(ctx, resolvedAt)
		if err != nil {
			return res, err
		}
		res.Pulled = pulled
		res.ConflictsResolved += conflicts
		res.AtticEntriesWritten += entries
	}

	if hasRemote && !opts.PullOnly {
		pushed, conflicts, entries, err := s.push(ctx, resolvedAt)
		if err != nil {
			return res, err
		}
		res.Pushed = pushed
		res.ConflictsResolved += conflicts
		res.AtticEntriesWritten += entries
	}

	if err := s.copyBackFromWorktree(); err != nil {
		return res, err
	}

	err = s.state.Write(syncstate.State{
		LastSyncAt:        time.Now().UTC(),
		LastSyncBranch:    s.cfg.Branch,
		ConflictsResolved: res.ConflictsResolved,
	})
	if err != nil {
		return res, err
	}
	return res, nil
}

// Status reports divergence and worktree health without mutating anything.
// It consults the existing remote-tracking ref; it does not fetch.
func (s *Syncer) Status(ctx context.Context) (Status, error) {
	var st Status

	health, err := s.wt.Inspect(ctx)
	if err != nil {
		return st, err
	}
	st.WorktreeHealth = health

	if git.BranchExists(ctx, s.cfg.RepoRoot, s.cfg.Branch) &&
		git.RemoteBranchExists(ctx, s.cfg.RepoRoot, s.cfg.Remote, s.cfg.Branch) {
		ahead, behind, err := git.Divergence(ctx, s.cfg.RepoRoot, s.cfg.Branch, s.cfg.Remote)
		if err != nil {
			return st, err
		}
		st.Ahead, st.Behind = ahead, behind
	}

	state, err := s.state.Read()
	if err != nil {
		return st, err
	}
	st.LastSyncAt = state.LastSyncAt
	return st, nil
}

// stageLocalChanges copies the primary data directory into the worktree and
// commits whatever changed. Local-only housekeeping files (sync state, the
// lock, per-user config) stay out of the commit.
func (s *Syncer) stageLocalChanges(ctx context.Context) error {
	wtTbd := filepath.Join(s.wt.Path(), s.relTbd)
	if err := os.MkdirAll(filepath.Join(wtTbd, "records"), 0750); err != nil {
		return fmt.Errorf("preparing worktree data dir: %w", err)
	}

	// Records: mirror the primary directory, including deletions. Before the
	// first sync a record missing locally means "never seen here", not
	// "deleted here", so a never-synced clone stages additively.
	primary := filepath.Join(s.cfg.TbdDir, "records")
	st, err := s.state.Read()
	if err != nil {
		return err
	}
	if st.LastSyncAt.IsZero() {
		err = copyDirAdditive(primary, filepath.Join(wtTbd, "records"))
	} else {
		err = mirrorDir(primary, filepath.Join(wtTbd, "records"))
	}
	if err != nil {
		return fmt.Errorf("staging records: %w", err)
	}

	for _, name := range []string{"attic.jsonl", "metadata.json"} {
		src := filepath.Join(s.cfg.TbdDir, name)
		if _, err := os.Stat(src); err == nil {
			if err := copyFile(src, filepath.Join(wtTbd, name)); err != nil {
				return fmt.Errorf("staging %s: %w", name, err)
			}
		}
	}

	clean, err := git.IsClean(ctx, s.wt.Path())
	if err != nil {
		return err
	}
	if clean {
		return nil
	}

	if _, err := git.Run(ctx, s.wt.Path(), "add", "-A", s.relTbd); err != nil {
		return fmt.Errorf("staging data dir in worktree: %w", err)
	}
	// --no-verify: the worktree is internal to sync, user hooks do not apply.
	msg := fmt.Sprintf("tbd sync: %s", time.Now().Format("2006-01-02 15:04:05"))
	if _, err := git.Run(ctx, s.wt.Path(), "commit", "--no-verify", "-m", msg); err != nil {
		return fmt.Errorf("committing local changes: %w", err)
	}
	debug.Logf("committed local changes to %s\n", s.cfg.Branch)
	return nil
}

// fetch updates the remote-tracking ref, retrying transient failures with
// capped exponential backoff. Fatal failures (auth, missing remote) abort
// immediately.
func (s *Syncer) fetch(ctx context.Context) error {
	op := func() error {
		fctx, cancel := context.WithTimeout(ctx, s.cfg.NetworkTimeout)
		defer cancel()
		_, err := git.Run(fctx, s.wt.Path(), "fetch", s.cfg.Remote, s.cfg.Branch)
		if err == nil {
			return nil
		}
		// A branch the remote has never seen is fine on first sync.
		if strings.Contains(err.Error(), "couldn't find remote ref") {
			return nil
		}
		if isFatalNetworkError(err) {
			return backoff.Permanent(err)
		}
		debug.Logf("fetch failed, will retry: %v\n", err)
		return err
	}

	policy := backoff.WithMaxRetries(
		backoff.WithContext(backoff.NewExponentialBackOff(), ctx),
		uint64(s.cfg.MaxPullAttempts-1),
	)
	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("fetching %s/%s: %w", s.cfg.Remote, s.cfg.Branch, err)
	}
	return nil
}

// integrateRemote brings remote commits into the sync branch: fast-forward
// when only the remote moved, field-level reconciliation when both sides
// did. Returns the number of remote commits integrated.
func (s *Syncer) integrateRemote(ctx context.Context, resolvedAt time.Time) (pulled, conflicts, entries int, err error) {
	if !git.RemoteBranchExists(ctx, s.wt.Path(), s.cfg.Remote, s.cfg.Branch) {
		return 0, 0, 0, nil
	}

	ahead, behind, err := git.Divergence(ctx, s.wt.Path(), s.cfg.Branch, s.cfg.Remote)
	if err != nil {
		return 0, 0, 0, err
	}
	if behind == 0 {
		return 0, 0, 0, nil
	}

	remoteRef := fmt.Sprintf("%s/%s", s.cfg.Remote, s.cfg.Branch)
	if ahead == 0 {
		if _, err := git.Run(ctx, s.wt.Path(), "merge", "--ff-only", remoteRef); err != nil {
			return 0, 0, 0, fmt.Errorf("fast-forwarding to %s: %w", remoteRef, err)
		}
		return behind, 0, 0, nil
	}

	conflicts, entries, err = s.reconcile(ctx, resolvedAt)
	if err != nil {
		return 0, 0, 0, err
	}
	return behind, conflicts, entries, nil
}

// push publishes the sync branch. On a non-fast-forward rejection (the
// remote advanced during reconciliation) it re-fetches, re-reconciles once
// and retries; a second rejection surfaces as *RejectedPushError.
func (s *Syncer) push(ctx context.Context, resolvedAt time.Time) (pushed, conflicts, entries int, err error) {
	for attempt := 1; ; attempt++ {
		ahead, _, derr := git.Divergence(ctx, s.wt.Path(), s.cfg.Branch, s.cfg.Remote)
		if derr != nil {
			// No remote-tracking ref yet: count only the commits that touch
			// the data dir, not the host history the branch forked from.
			if n, err := git.Run(ctx, s.wt.Path(), "rev-list", "--count", s.cfg.Branch, "--", s.relTbd); err == nil {
				fmt.Sscanf(n, "%d", &ahead)
			}
		}

		pctx, cancel := context.WithTimeout(ctx, s.cfg.NetworkTimeout)
		_, perr := git.Run(pctx, s.wt.Path(), "push", "--set-upstream", s.cfg.Remote, s.cfg.Branch)
		cancel()
		if perr == nil {
			return ahead, conflicts, entries, nil
		}
		if isFatalNetworkError(perr) || !isRejectedPush(perr) {
			return 0, conflicts, entries, fmt.Errorf("pushing %s: %w", s.cfg.Branch, perr)
		}
		if attempt >= pushAttempts {
			return 0, conflicts, entries, &RejectedPushError{
				Remote:   s.cfg.Remote,
				Branch:   s.cfg.Branch,
				Attempts: attempt,
			}
		}

		debug.Logf("push rejected, re-pulling and re-reconciling (attempt %d)\n", attempt)
		if err := s.fetch(ctx); err != nil {
			return 0, conflicts, entries, err
		}
		_, c, e, err := s.integrateRemote(ctx, resolvedAt)
		if err != nil {
			return 0, conflicts, entries, err
		}
		// Identical re-resolutions dedup in the ledger union; only genuinely
		// new conflicts add to the counts.
		conflicts += c
		entries += e
		pushed = ahead
	}
}

// reconcile merges the remote branch into the sync branch with field-level
// conflict resolution. Record files are resolved three-way against the merge
// base; the attic ledger becomes the deduplicated union of both sides plus
// the entries this resolution produced.
func (s *Syncer) reconcile(ctx context.Context, resolvedAt time.Time) (conflicts, entries int, err error) {
	wtPath := s.wt.Path()
	remoteRef := fmt.Sprintf("%s/%s", s.cfg.Remote, s.cfg.Branch)

	localTip, err := git.RevParse(ctx, wtPath, "HEAD")
	if err != nil {
		return 0, 0, err
	}
	remoteTip, err := git.RevParse(ctx, wtPath, remoteRef)
	if err != nil {
		return 0, 0, err
	}
	base, err := git.MergeBase(ctx, wtPath, localTip, remoteTip)
	if err != nil {
		return 0, 0, err
	}

	// Open the merge first so the final commit records both parents. The
	// textual result is irrelevant; every data file is overwritten below.
	if _, err := git.Run(ctx, wtPath, "merge", "--no-ff", "--no-commit", remoteRef); err != nil {
		debug.Logf("textual merge left conflicts (expected): %v\n", err)
	}

	newEntries, conflicts, err := s.resolveRecords(ctx, base, localTip, remoteTip, resolvedAt)
	if err != nil {
		s.abortMerge(ctx)
		return 0, 0, err
	}

	// The attic must reflect every loss before the merge commit exists.
	if err := s.mergeAttic(ctx, localTip, remoteTip, newEntries); err != nil {
		s.abortMerge(ctx)
		return 0, 0, err
	}

	if err := s.resolveManifest(ctx, base, localTip, remoteTip); err != nil {
		s.abortMerge(ctx)
		return 0, 0, err
	}

	if _, err := git.Run(ctx, wtPath, "add", "-A", s.relTbd); err != nil {
		s.abortMerge(ctx)
		return 0, 0, fmt.Errorf("staging merge result: %w", err)
	}
	msg := fmt.Sprintf("tbd sync: merge %s", remoteRef)
	if _, err := git.Run(ctx, wtPath, "commit", "--no-verify", "-m", msg); err != nil {
		return 0, 0, fmt.Errorf("committing merge: %w", err)
	}

	return conflicts, len(newEntries), nil
}

func (s *Syncer) abortMerge(ctx context.Context) {
	_, _ = git.Run(ctx, s.wt.Path(), "merge", "--abort")
}

// resolveRecords three-way-merges every record file present on either tip.
// Resolution is independent per record and runs on a bounded worker pool.
func (s *Syncer) resolveRecords(ctx context.Context, base, localTip, remoteTip string, resolvedAt time.Time) ([]attic.Entry, int, error) {
	wtPath := s.wt.Path()
	recordsPrefix := s.relTbd + "/records"

	localPaths, err := git.ListTree(ctx, wtPath, localTip, recordsPrefix)
	if err != nil {
		return nil, 0, err
	}
	remotePaths, err := git.ListTree(ctx, wtPath, remoteTip, recordsPrefix)
	if err != nil {
		return nil, 0, err
	}

	paths := make(map[string]bool, len(localPaths)+len(remotePaths))
	for _, p := range localPaths {
		paths[p] = true
	}
	for _, p := range remotePaths {
		paths[p] = true
	}

	var (
		mu         sync.Mutex
		newEntries []attic.Entry
		conflicts  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveWorkers)

	for path := range paths {
		g.Go(func() error {
			result, err := s.resolveOneRecord(gctx, base, localTip, remoteTip, path, resolvedAt)
			if err != nil {
				return err
			}
			if result == nil {
				return nil
			}
			if err := writeOrRemove(filepath.Join(wtPath, filepath.FromSlash(path)), result.content); err != nil {
				return err
			}
			if len(result.entries) > 0 {
				mu.Lock()
				newEntries = append(newEntries, result.entries...)
				conflicts += result.conflicts
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return newEntries, conflicts, nil
}

// recordResolution is one record's merge outcome. A nil content means the
// record is deleted in the merge.
type recordResolution struct {
	content   []byte
	entries   []attic.Entry
	conflicts int
}

func (s *Syncer) resolveOneRecord(ctx context.Context, base, localTip, remoteTip, path string, resolvedAt time.Time) (*recordResolution, error) {
	wtPath := s.wt.Path()

	lData, lOK, err := git.ShowFile(ctx, wtPath, localTip, path)
	if err != nil {
		return nil, err
	}
	rData, rOK, err := git.ShowFile(ctx, wtPath, remoteTip, path)
	if err != nil {
		return nil, err
	}
	var aData []byte
	aOK := false
	if base != "" {
		aData, aOK, err = git.ShowFile(ctx, wtPath, base, path)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case lOK && rOK && bytes.Equal(lData, rData):
		return &recordResolution{content: lData}, nil

	case lOK && rOK:
		local, err := records.Decode(lData)
		if err != nil {
			return nil, fmt.Errorf("decoding local %s: %w", path, err)
		}
		remote, err := records.Decode(rData)
		if err != nil {
			return nil, fmt.Errorf("decoding remote %s: %w", path, err)
		}
		in := resolve.Input{
			Local:        local,
			Remote:       remote,
			LocalSource:  localTip,
			RemoteSource: remoteTip,
			ResolvedAt:   resolvedAt,
		}
		if aOK {
			ancestor, err := records.Decode(aData)
			if err != nil {
				return nil, fmt.Errorf("decoding ancestor %s: %w", path, err)
			}
			in.Ancestor = ancestor
		}
		result, err := resolve.Merge(in)
		if err != nil {
			return nil, err
		}
		merged, err := records.Encode(result.Merged)
		if err != nil {
			return nil, fmt.Errorf("encoding merged %s: %w", path, err)
		}
		conflicts := 0
		if len(result.Entries) > 0 {
			conflicts = 1
		}
		return &recordResolution{content: merged, entries: result.Entries, conflicts: conflicts}, nil

	case lOK:
		// Remote does not have it. If it existed in the ancestor unchanged,
		// the remote deleted it and the deletion carries; otherwise it is
		// new or modified locally and survives.
		if aOK && bytes.Equal(aData, lData) {
			return &recordResolution{content: nil}, nil
		}
		return &recordResolution{content: lData}, nil

	case rOK:
		if aOK && bytes.Equal(aData, rData) {
			return &recordResolution{content: nil}, nil
		}
		return &recordResolution{content: rData}, nil
	}
	return nil, nil
}

// mergeAttic rebuilds the worktree ledger as union(local, remote) plus the
// entries this resolution produced. A textual merge of the JSONL could drop
// or duplicate lines; the union cannot.
func (s *Syncer) mergeAttic(ctx context.Context, localTip, remoteTip string, newEntries []attic.Entry) error {
	wtPath := s.wt.Path()
	atticPath := s.relTbd + "/attic.jsonl"

	localData, _, err := git.ShowFile(ctx, wtPath, localTip, atticPath)
	if err != nil {
		return err
	}
	remoteData, _, err := git.ShowFile(ctx, wtPath, remoteTip, atticPath)
	if err != nil {
		return err
	}

	localEntries, err := attic.Parse(localData)
	if err != nil {
		return fmt.Errorf("local attic at %s: %w", localTip, err)
	}
	remoteEntries, err := attic.Parse(remoteData)
	if err != nil {
		return fmt.Errorf("remote attic at %s: %w", remoteTip, err)
	}

	merged := attic.Merge(attic.Merge(localEntries, remoteEntries), newEntries)
	ledger := attic.NewLedger(filepath.Join(wtPath, filepath.FromSlash(atticPath)))
	if err := ledger.WriteAll(merged); err != nil {
		return fmt.Errorf("writing merged attic: %w", err)
	}
	return nil
}

// resolveManifest merges metadata.json with whole-file three-way rules:
// an unchanged side yields, and on a true conflict the local manifest wins.
// The manifest changes rarely and field merging it is not worth the risk of
// inventing a configuration neither clone had.
func (s *Syncer) resolveManifest(ctx context.Context, base, localTip, remoteTip string) error {
	wtPath := s.wt.Path()
	manifestPath := s.relTbd + "/metadata.json"

	lData, lOK, err := git.ShowFile(ctx, wtPath, localTip, manifestPath)
	if err != nil {
		return err
	}
	rData, rOK, err := git.ShowFile(ctx, wtPath, remoteTip, manifestPath)
	if err != nil {
		return err
	}
	var aData []byte
	if base != "" {
		aData, _, err = git.ShowFile(ctx, wtPath, base, manifestPath)
		if err != nil {
			return err
		}
	}

	var content []byte
	switch {
	case lOK && rOK && bytes.Equal(lData, rData):
		content = lData
	case lOK && rOK && bytes.Equal(lData, aData):
		content = rData
	case lOK && rOK:
		content = lData
	case lOK:
		content = lData
	case rOK:
		content = rData
	default:
		return nil
	}
	return writeOrRemove(filepath.Join(wtPath, filepath.FromSlash(manifestPath)), content)
}

// copyBackFromWorktree mirrors the merged data directory back into the
// primary .tbd so the CLI reads merged records immediately.
func (s *Syncer) copyBackFromWorktree() error {
	wtTbd := filepath.Join(s.wt.Path(), s.relTbd)

	if err := mirrorDir(filepath.Join(wtTbd, "records"), filepath.Join(s.cfg.TbdDir, "records")); err != nil {
		return fmt.Errorf("copying merged records back: %w", err)
	}
	for _, name := range []string{"attic.jsonl", "metadata.json"} {
		src := filepath.Join(wtTbd, name)
		if _, err := os.Stat(src); err == nil {
			if err := copyFile(src, filepath.Join(s.cfg.TbdDir, name)); err != nil {
				return fmt.Errorf("copying %s back: %w", name, err)
			}
		}
	}
	return nil
}

// copyDirAdditive copies the regular files of src into dst without removing
// anything dst already has. Missing src is a no-op.
func copyDirAdditive(src, dst string) error {
	entries, err := os.ReadDir(src)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, 0750); err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// mirrorDir makes dst contain exactly the regular files of src. Missing src
// mirrors to an empty dst.
func mirrorDir(src, dst string) error {
	if err := os.MkdirAll(dst, 0750); err != nil {
		return err
	}

	want := make(map[string]bool)
	srcEntries, err := os.ReadDir(src)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, e := range srcEntries {
		if e.IsDir() {
			continue
		}
		want[e.Name()] = true
		if err := copyFile(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return err
		}
	}

	dstEntries, err := os.ReadDir(dst)
	if err != nil {
		return err
	}
	for _, e := range dstEntries {
		if e.IsDir() || want[e.Name()] {
			continue
		}
		if err := os.Remove(filepath.Join(dst, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src) // #nosec G304 - controlled path
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644) // #nosec G306 - shared data file
}

// writeOrRemove writes content to path, or removes the file when content is
// nil (a merged deletion).
func writeOrRemove(path string, content []byte) error {
	if content == nil {
		err := os.Remove(path)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	return os.WriteFile(path, content, 0644) // #nosec G306 - shared data file
}
