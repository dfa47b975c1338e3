// Package configfile reads and writes .tbd/metadata.json, the committed
// project manifest. Unlike config.yaml (per-user tuning), metadata.json
// travels on the sync branch and keeps every clone agreeing on the project
// prefix and the record layout.
package configfile

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const ConfigFileName = "metadata.json"

type Config struct {
	// Prefix is the short-id prefix for new records (e.g. "tbd" -> tbd-a1b2).
	Prefix string `json:"prefix"`

	// RecordsDir is the directory of record files relative to the tbd dir.
	RecordsDir string `json:"records_dir,omitempty"`

	// SyncBranch and Remote pin the sync target for all clones. Per-user
	// config may override them locally but the manifest is the shared default.
	SyncBranch string `json:"sync_branch,omitempty"`
	Remote     string `json:"remote,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Prefix:     "tbd",
		RecordsDir: "records",
		SyncBranch: "tbd-sync",
		Remote:     "origin",
	}
}

func ConfigPath(tbdDir string) string {
	return filepath.Join(tbdDir, ConfigFileName)
}

// Load reads the manifest from tbdDir. A missing file returns (nil, nil);
// callers decide whether that means "not initialized" or "use defaults".
func Load(tbdDir string) (*Config, error) {
	data, err := os.ReadFile(ConfigPath(tbdDir)) // #nosec G304 - controlled path
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading project manifest: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing project manifest: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Save(tbdDir string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling project manifest: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(ConfigPath(tbdDir), data, 0600); err != nil {
		return fmt.Errorf("writing project manifest: %w", err)
	}
	return nil
}

// RecordsPath returns the absolute records directory for this manifest.
func (c *Config) RecordsPath(tbdDir string) string {
	dir := c.RecordsDir
	if dir == "" {
		dir = "records"
	}
	return filepath.Join(tbdDir, dir)
}

// GetSyncBranch returns the manifest's sync branch, defaulting to tbd-sync.
func (c *Config) GetSyncBranch() string {
	if c.SyncBranch != "" {
		return c.SyncBranch
	}
	return "tbd-sync"
}

// GetRemote returns the manifest's remote, defaulting to origin.
func (c *Config) GetRemote() string {
	if c.Remote != "" {
		return c.Remote
	}
	return "origin"
}

// GetPrefix returns the configured short-id prefix, auto-detecting from the
// git remote URL when unset. Falls back to "tbd".
func (c *Config) GetPrefix() string {
	if c.Prefix != "" {
		return c.Prefix
	}
	if name := detectProjectFromGitRemote(); name != "" {
		return name
	}
	return "tbd"
}

// detectProjectFromGitRemote extracts the repository name from the origin
// URL. Returns "" if git is unavailable or no remote is configured.
func detectProjectFromGitRemote() string {
	cmd := exec.Command("git", "config", "--get", "remote.origin.url")
	output, err := cmd.Output()
	if err != nil {
		return ""
	}

	url := strings.TrimSpace(string(output))
	if url == "" {
		return ""
	}

	url = strings.TrimSuffix(url, ".git")

	// SSH URLs (git@github.com:user/repo)
	if i := strings.Index(url, ":"); i >= 0 && !strings.Contains(url, "://") {
		url = url[i+1:]
	}
	// HTTPS URLs (https://github.com/user/repo)
	if i := strings.Index(url, "://"); i >= 0 {
		url = url[i+3:]
	}

	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[i+1:]
	}
	return filepath.Base(url)
}
