package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tbd-tracker/tbd/internal/git"
	"github.com/tbd-tracker/tbd/internal/syncer"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync divergence and worktree health",
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

		s, err := syncer.New(ctx, syncer.Config{
			RepoRoot: repoRoot,
			TbdDir:   tbdDir,
			Branch:   syncBranchFor(tbdDir, manifest),
			Remote:   remoteFor(tbdDir, manifest),
		})
		if err != nil {
			return err
		}

		st, err := s.Status(ctx)
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(cmd.OutOrStdout(), st)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "sync branch: %s\n", syncBranchFor(tbdDir, manifest))
		fmt.Fprintf(out, "divergence:  %d ahead, %d behind\n", st.Ahead, st.Behind)
		fmt.Fprintf(out, "worktree:    %s\n", st.WorktreeHealth)
		if st.LastSyncAt.IsZero() {
			fmt.Fprintf(out, "last sync:   never\n")
		} else {
			fmt.Fprintf(out, "last sync:   %s\n", st.LastSyncAt.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
