package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tbd-tracker/tbd/internal/config"
	"github.com/tbd-tracker/tbd/internal/configfile"
	"github.com/tbd-tracker/tbd/internal/debug"
	"github.com/tbd-tracker/tbd/internal/git"
)

var (
	initPrefix string
	initBranch string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a tbd project in this repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		repoRoot, err := git.RepoRoot(ctx, ".")
		if err != nil {
			return fmt.Errorf("tbd requires a git repository: %w", err)
		}

		tbdDir := filepath.Join(repoRoot, ".tbd")
		if existing, err := configfile.Load(tbdDir); err == nil && existing != nil {
			return fmt.Errorf("project already initialized (%s exists)", configfile.ConfigPath(tbdDir))
		}

		if initBranch != "" {
			if err := config.ValidateBranchName(initBranch); err != nil {
				return err
			}
		}

		manifest := configfile.DefaultConfig()
		if initPrefix != "" {
			manifest.Prefix = initPrefix
		} else {
			manifest.Prefix = manifest.GetPrefix()
		}
		if initBranch != "" {
			manifest.SyncBranch = initBranch
		}

		if err := os.MkdirAll(manifest.RecordsPath(tbdDir), 0750); err != nil {
			return fmt.Errorf("creating records directory: %w", err)
		}
		if err := manifest.Save(tbdDir); err != nil {
			return err
		}

		// Local-only housekeeping never travels on the sync branch.
		gitignore := "sync_state.json\n.sync.lock\nconfig.yaml\n"
		if err := os.WriteFile(filepath.Join(tbdDir, ".gitignore"), []byte(gitignore), 0644); err != nil {
			return fmt.Errorf("writing .tbd/.gitignore: %w", err)
		}

		debug.PrintNormal("Initialized tbd project in %s (prefix %q, sync branch %q)\n",
			tbdDir, manifest.Prefix, manifest.GetSyncBranch())
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initPrefix, "prefix", "", "short-id prefix (default: repository name)")
	initCmd.Flags().StringVar(&initBranch, "sync-branch", "", "sync branch name (default: tbd-sync)")
	rootCmd.AddCommand(initCmd)
}
