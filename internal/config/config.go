// Package config holds tbd's layered configuration: built-in defaults,
// .tbd/config.yaml, then TBD_* environment variables, highest last.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize builds the viper instance. It walks up from the working
// directory looking for a .tbd/config.yaml; a missing file is fine, defaults
// and environment variables still apply. Safe to call again to re-read.
func Initialize() error {
	nv := viper.New()

	nv.SetDefault("sync-branch", "tbd-sync")
	nv.SetDefault("remote", "origin")
	nv.SetDefault("actor", "")
	nv.SetDefault("json", false)
	nv.SetDefault("sync-timeout", 60*time.Second)
	nv.SetDefault("sync-retries", 3)

	nv.SetEnvPrefix("TBD")
	nv.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	nv.AutomaticEnv()

	if dir := findConfigDir(); dir != "" {
		nv.SetConfigName("config")
		nv.SetConfigType("yaml")
		nv.AddConfigPath(dir)
		if err := nv.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("reading %s: %w", filepath.Join(dir, "config.yaml"), err)
			}
		}
	}

	v = nv
	return nil
}

// findConfigDir walks up from the working directory to the first .tbd dir.
func findConfigDir() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for dir := cwd; ; dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, ".tbd")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		if dir == filepath.Dir(dir) {
			return ""
		}
	}
}

// GetString returns a string config value, or "" before Initialize.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool returns a bool config value, or false before Initialize.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt returns an int config value, or 0 before Initialize.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration returns a duration config value, or 0 before Initialize.
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// SyncBranch returns the configured sync branch name.
func SyncBranch() string {
	return GetString("sync-branch")
}

// Remote returns the configured remote name.
func Remote() string {
	return GetString("remote")
}

var branchNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._/-]*[a-zA-Z0-9]$`)

// ValidateBranchName checks a branch name against git's naming rules before
// the engine hands it to any git subprocess.
func ValidateBranchName(name string) error {
	if name == "" {
		return fmt.Errorf("branch name cannot be empty")
	}
	if len(name) > 255 {
		return fmt.Errorf("branch name too long (max 255 characters)")
	}
	if !branchNamePattern.MatchString(name) {
		return fmt.Errorf("invalid branch name %q: must start and end with alphanumeric, can contain .-_/ in middle", name)
	}
	if name == "HEAD" || name == "." || name == ".." {
		return fmt.Errorf("invalid branch name: %s is reserved", name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("invalid branch name: cannot contain '..'")
	}
	if name[0] == '/' || name[len(name)-1] == '/' {
		return fmt.Errorf("invalid branch name: cannot start or end with '/'")
	}
	return nil
}
