package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/tbd-tracker/tbd/internal/debug"
	"github.com/tbd-tracker/tbd/internal/types"
)

var closeReason string

var closeCmd = &cobra.Command{
	Use:   "close <id>...",
	Short: "Close one or more records",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, store, err := openProject()
		if err != nil {
			return err
		}

		for _, ref := range args {
			rec, err := resolveRecord(store, ref)
			if err != nil {
				return err
			}
			if rec.IsClosed() {
				debug.PrintNormal("%s already closed\n", rec.ShortID)
				continue
			}

			now := time.Now().UTC()
			rec.Status = types.StatusClosed
			rec.ClosedAt = &now
			rec.CloseReason = closeReason
			rec.UpdatedAt = now

			if err := store.Save(rec); err != nil {
				return err
			}
			debug.PrintNormal("Closed %s: %s\n", rec.ShortID, rec.Title)
		}
		return nil
	},
}

func init() {
	closeCmd.Flags().StringVarP(&closeReason, "reason", "r", "", "close reason")
	rootCmd.AddCommand(closeCmd)
}
