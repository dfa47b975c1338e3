package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LocalConfig is the subset of config.yaml the sync engine needs when it
// must read settings for a specific data directory rather than through the
// viper singleton (the working directory may have changed, or Initialize may
// not have run yet).
type LocalConfig struct {
	SyncBranch string `yaml:"sync-branch"`
	Remote     string `yaml:"remote"`
	Actor      string `yaml:"actor"`
}

// LoadLocalConfig reads config.yaml directly from the given tbd directory.
// Returns an empty LocalConfig (not nil) when the file is missing or
// unparseable.
func LoadLocalConfig(tbdDir string) *LocalConfig {
	data, err := os.ReadFile(filepath.Join(tbdDir, "config.yaml")) // #nosec G304 - controlled path
	if err != nil {
		return &LocalConfig{}
	}

	var cfg LocalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return &LocalConfig{}
	}
	return &cfg
}

// LoadLocalConfigWithEnv reads config.yaml and applies environment overrides.
//
// Supported environment variables:
//   - TBD_SYNC_BRANCH: overrides sync-branch
//   - TBD_REMOTE: overrides remote
func LoadLocalConfigWithEnv(tbdDir string) *LocalConfig {
	cfg := LoadLocalConfig(tbdDir)

	if envBranch := os.Getenv("TBD_SYNC_BRANCH"); envBranch != "" {
		cfg.SyncBranch = envBranch
	}
	if envRemote := os.Getenv("TBD_REMOTE"); envRemote != "" {
		cfg.Remote = envRemote
	}
	return cfg
}
