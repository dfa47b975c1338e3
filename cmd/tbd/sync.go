package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tbd-tracker/tbd/internal/config"
	"github.com/tbd-tracker/tbd/internal/debug"
	"github.com/tbd-tracker/tbd/internal/git"
	"github.com/tbd-tracker/tbd/internal/syncer"
	"github.com/tbd-tracker/tbd/internal/worktree"
)

var (
	syncPushOnly bool
	syncPullOnly bool
	syncRepair   bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize records with the remote",
	Long: `Commits local record changes to the sync branch, pulls remote changes,
resolves conflicting edits field by field, and pushes the result. Values
discarded during conflict resolution are preserved in the attic ledger
('tbd show --history').`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		tbdDir, manifest, _, err := openProject()
		if err != nil {
			return err
		}
		repoRoot, err := git.RepoRoot(ctx, filepath.Dir(tbdDir))
		if err != nil {
			return err
		}

		branch := syncBranchFor(tbdDir, manifest)
		if err := config.ValidateBranchName(branch); err != nil {
			return err
		}

		s, err := syncer.New(ctx, syncer.Config{
			RepoRoot:        repoRoot,
			TbdDir:          tbdDir,
			Branch:          branch,
			Remote:          remoteFor(tbdDir, manifest),
			MaxPullAttempts: config.GetInt("sync-retries"),
			NetworkTimeout:  config.GetDuration("sync-timeout"),
		})
		if err != nil {
			return err
		}

		res, err := s.Sync(ctx, syncer.Options{
			PushOnly:            syncPushOnly,
			PullOnly:            syncPullOnly,
			ForceRepairWorktree: syncRepair,
		})
		if err != nil {
			var corrupt *worktree.CorruptError
			switch {
			case errors.Is(err, syncer.ErrSyncInProgress):
				return fmt.Errorf("%w (try again shortly)", err)
			case errors.As(err, &corrupt):
				return fmt.Errorf("%w\nrun 'tbd sync --repair-worktree' after saving any work in it", err)
			}
			return err
		}

		if flagJSON {
			return printJSON(cmd.OutOrStdout(), res)
		}
		debug.PrintNormal("Synced: pulled %d, pushed %d, resolved %d conflicts (%d attic entries)\n",
			res.Pulled, res.Pushed, res.ConflictsResolved, res.AtticEntriesWritten)
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncPushOnly, "push-only", false, "commit and push without pulling")
	syncCmd.Flags().BoolVar(&syncPullOnly, "pull-only", false, "pull and reconcile without pushing")
	syncCmd.Flags().BoolVar(&syncRepair, "repair-worktree", false, "discard and recreate the sync worktree first")
	syncCmd.MarkFlagsMutuallyExclusive("push-only", "pull-only")
	rootCmd.AddCommand(syncCmd)
}
