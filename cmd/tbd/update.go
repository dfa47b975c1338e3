package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tbd-tracker/tbd/internal/debug"
	"github.com/tbd-tracker/tbd/internal/timeparsing"
	"github.com/tbd-tracker/tbd/internal/types"
)

var (
	updateTitle    string
	updateStatus   string
	updatePriority int
	updateAssignee string
	updateLabels   []string
	updateDue      string
)

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update fields on a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, store, err := openProject()
		if err != nil {
			return err
		}

		rec, err := resolveRecord(store, args[0])
		if err != nil {
			return err
		}

		changed := false
		if cmd.Flags().Changed("title") {
			rec.Title = updateTitle
			changed = true
		}
		if cmd.Flags().Changed("status") {
			st := types.Status(updateStatus)
			if !types.ValidStatus(st) {
				return fmt.Errorf("invalid status %q", updateStatus)
			}
			rec.Status = st
			changed = true
		}
		if cmd.Flags().Changed("priority") {
			rec.Priority = updatePriority
			changed = true
		}
		if cmd.Flags().Changed("assignee") {
			rec.Assignee = updateAssignee
			changed = true
		}
		if cmd.Flags().Changed("label") {
			rec.Labels = updateLabels
			changed = true
		}
		if cmd.Flags().Changed("due") {
			if updateDue == "" {
				rec.DueAt = nil
			} else {
				due, err := timeparsing.Parse(updateDue, time.Now().UTC())
				if err != nil {
					return fmt.Errorf("--due: %w", err)
				}
				rec.DueAt = &due
			}
			changed = true
		}

		if !changed {
			return fmt.Errorf("no fields to update (see 'tbd update --help')")
		}

		rec.UpdatedAt = time.Now().UTC()
		if err := store.Save(rec); err != nil {
			return err
		}
		debug.PrintNormal("Updated %s (v%d)\n", rec.ShortID, rec.Version)
		return nil
	},
}

func init() {
	updateCmd.Flags().StringVar(&updateTitle, "title", "", "new title")
	updateCmd.Flags().StringVarP(&updateStatus, "status", "s", "", "new status")
	updateCmd.Flags().IntVarP(&updatePriority, "priority", "p", 0, "new priority")
	updateCmd.Flags().StringVarP(&updateAssignee, "assignee", "a", "", "new assignee")
	updateCmd.Flags().StringSliceVarP(&updateLabels, "label", "l", nil, "replace labels")
	updateCmd.Flags().StringVar(&updateDue, "due", "", "new due date (empty clears)")
	rootCmd.AddCommand(updateCmd)
}
