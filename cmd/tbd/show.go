package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tbd-tracker/tbd/internal/attic"
)

var showHistory bool

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tbdDir, _, store, err := openProject()
		if err != nil {
			return err
		}

		rec, err := resolveRecord(store, args[0])
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(cmd.OutOrStdout(), rec)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s  %s\n", rec.ShortID, rec.Title)
		fmt.Fprintf(out, "  id:       %s\n", rec.ID)
		fmt.Fprintf(out, "  kind:     %s\n", rec.Kind)
		fmt.Fprintf(out, "  status:   %s\n", rec.Status)
		fmt.Fprintf(out, "  priority: P%d\n", rec.Priority)
		if rec.Assignee != "" {
			fmt.Fprintf(out, "  assignee: %s\n", rec.Assignee)
		}
		if len(rec.Labels) > 0 {
			fmt.Fprintf(out, "  labels:   %s\n", strings.Join(rec.Labels, ", "))
		}
		if len(rec.DependsOn) > 0 {
			fmt.Fprintf(out, "  depends:  %s\n", strings.Join(rec.DependsOn, ", "))
		}
		if rec.Parent != "" {
			fmt.Fprintf(out, "  parent:   %s\n", rec.Parent)
		}
		if rec.DueAt != nil {
			fmt.Fprintf(out, "  due:      %s\n", rec.DueAt.Format(time.RFC3339))
		}
		if rec.DeferUntil != nil {
			fmt.Fprintf(out, "  deferred: %s\n", rec.DeferUntil.Format(time.RFC3339))
		}
		fmt.Fprintf(out, "  updated:  %s (v%d)\n", rec.UpdatedAt.Format(time.RFC3339), rec.Version)
		if rec.IsClosed() && rec.CloseReason != "" {
			fmt.Fprintf(out, "  closed:   %s\n", rec.CloseReason)
		}

		if showHistory {
			ledger := attic.NewLedger(attic.DefaultPath(tbdDir))
			fmt.Fprintf(out, "\nConflict history:\n")
			count := 0
			for e, err := range ledger.ListFor(rec.ID) {
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "  %s  %s lost %s (%s)\n",
					e.Timestamp.Format(time.RFC3339), e.Field, e.LostValue, e.Context)
				count++
			}
			if count == 0 {
				fmt.Fprintf(out, "  (none)\n")
			}
		}
		return nil
	},
}

func init() {
	showCmd.Flags().BoolVar(&showHistory, "history", false, "show values lost in past conflict resolutions")
	rootCmd.AddCommand(showCmd)
}
