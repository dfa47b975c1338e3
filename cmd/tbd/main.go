package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tbd-tracker/tbd/internal/config"
	"github.com/tbd-tracker/tbd/internal/debug"
	"github.com/tbd-tracker/tbd/internal/telemetry"
)

// Version and Build are stamped by the release workflow via -ldflags.
var (
	Version = "dev"
	Build   = "unknown"
)

var (
	flagVerbose bool
	flagQuiet   bool
	flagJSON    bool
)

var rootCmd = &cobra.Command{
	Use:   "tbd",
	Short: "tbd - git-native issue tracker",
	Long: `A lightweight issue tracker that stores records in your repository and
synchronizes them through a dedicated branch. No server, no database: every
clone carries the full tracker and conflicting edits merge field by field.`,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("tbd version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug.SetVerbose(flagVerbose)
		debug.SetQuiet(flagQuiet)

		if err := config.Initialize(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}

		if err := telemetry.Init(cmd.Context(), "tbd", Version); err != nil {
			debug.Logf("telemetry init failed: %v\n", err)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		telemetry.Shutdown(ctx)
	},
}

func init() {
	rootCmd.Flags().Bool("version", false, "print version and exit")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress non-essential output")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "machine-readable JSON output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
