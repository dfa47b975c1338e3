package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tbd-tracker/tbd/internal/config"
	"github.com/tbd-tracker/tbd/internal/configfile"
	"github.com/tbd-tracker/tbd/internal/git"
	"github.com/tbd-tracker/tbd/internal/records"
	"github.com/tbd-tracker/tbd/internal/types"
)

// findTbdDir walks up from the working directory to the nearest .tbd.
func findTbdDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for dir := cwd; ; dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, ".tbd")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		if dir == filepath.Dir(dir) {
			return "", fmt.Errorf("no .tbd directory found (run 'tbd init' first)")
		}
	}
}

// openProject loads the manifest and record store for the enclosing project.
func openProject() (string, *configfile.Config, *records.Store, error) {
	tbdDir, err := findTbdDir()
	if err != nil {
		return "", nil, nil, err
	}
	manifest, err := configfile.Load(tbdDir)
	if err != nil {
		return "", nil, nil, err
	}
	if manifest == nil {
		manifest = configfile.DefaultConfig()
	}
	return tbdDir, manifest, records.NewStore(manifest.RecordsPath(tbdDir)), nil
}

// resolveRecord finds a record by short id first, then by internal id.
func resolveRecord(store *records.Store, ref string) (*types.Record, error) {
	if rec, err := store.FindByShortID(ref); err == nil {
		return rec, nil
	}
	return store.Load(ref)
}

// actor returns the identity stamped on new records: config, then git
// user.name, then $USER.
func actor(ctx context.Context) string {
	if a := config.GetString("actor"); a != "" {
		return a
	}
	if cwd, err := os.Getwd(); err == nil {
		if name, err := git.Run(ctx, cwd, "config", "--get", "user.name"); err == nil && name != "" {
			return name
		}
	}
	return os.Getenv("USER")
}

// syncBranchFor resolves the sync branch: per-user config beats the shared
// manifest.
func syncBranchFor(tbdDir string, manifest *configfile.Config) string {
	if local := config.LoadLocalConfigWithEnv(tbdDir); local.SyncBranch != "" {
		return local.SyncBranch
	}
	return manifest.GetSyncBranch()
}

// remoteFor resolves the remote name the same way.
func remoteFor(tbdDir string, manifest *configfile.Config) string {
	if local := config.LoadLocalConfigWithEnv(tbdDir); local.Remote != "" {
		return local.Remote
	}
	return manifest.GetRemote()
}
