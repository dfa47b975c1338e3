package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tbd-tracker/tbd/internal/debug"
	"github.com/tbd-tracker/tbd/internal/idgen"
	"github.com/tbd-tracker/tbd/internal/timeparsing"
	"github.com/tbd-tracker/tbd/internal/types"
)

var (
	createKind     string
	createPriority int
	createAssignee string
	createLabels   []string
	createDeps     []string
	createParent   string
	createDue      string
	createDefer    string
)

var createCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new record",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		tbdDir, manifest, store, err := openProject()
		if err != nil {
			return err
		}
		_ = tbdDir

		title := strings.Join(args, " ")
		now := time.Now().UTC()
		createdBy := actor(ctx)

		id, err := idgen.NewInternalID()
		if err != nil {
			return fmt.Errorf("generating record id: %w", err)
		}

		rec := &types.Record{
			ID:        id,
			Title:     title,
			Kind:      types.Kind(createKind),
			Status:    types.StatusOpen,
			Priority:  createPriority,
			Assignee:  createAssignee,
			Labels:    createLabels,
			DependsOn: createDeps,
			Parent:    createParent,
			CreatedBy: createdBy,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if createDue != "" {
			due, err := timeparsing.Parse(createDue, now)
			if err != nil {
				return fmt.Errorf("--due: %w", err)
			}
			rec.DueAt = &due
		}
		if createDefer != "" {
			deferUntil, err := timeparsing.Parse(createDefer, now)
			if err != nil {
				return fmt.Errorf("--defer: %w", err)
			}
			rec.DeferUntil = &deferUntil
		}

		// Short ids are content-derived; bump the nonce on the rare collision.
		for nonce := 0; ; nonce++ {
			rec.ShortID = idgen.ShortID(manifest.GetPrefix(), title, createdBy, now, idgen.DefaultShortIDLength, nonce)
			if _, err := store.FindByShortID(rec.ShortID); err != nil {
				break
			}
			if nonce > 10 {
				return fmt.Errorf("could not find a free short id for %q", title)
			}
		}

		if err := store.Save(rec); err != nil {
			return err
		}

		if flagJSON {
			return printJSON(cmd.OutOrStdout(), rec)
		}
		debug.PrintNormal("Created %s: %s\n", rec.ShortID, rec.Title)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVarP(&createKind, "kind", "k", "task", "record kind (task, bug, feature, chore, epic)")
	createCmd.Flags().IntVarP(&createPriority, "priority", "p", 2, "priority (0 = critical)")
	createCmd.Flags().StringVarP(&createAssignee, "assignee", "a", "", "assignee")
	createCmd.Flags().StringSliceVarP(&createLabels, "label", "l", nil, "labels (repeatable)")
	createCmd.Flags().StringSliceVar(&createDeps, "depends-on", nil, "ids this record depends on (repeatable)")
	createCmd.Flags().StringVar(&createParent, "parent", "", "parent record id")
	createCmd.Flags().StringVar(&createDue, "due", "", "due date (+2d, 2026-05-01, \"next monday\")")
	createCmd.Flags().StringVar(&createDefer, "defer", "", "defer until (same formats as --due)")
	rootCmd.AddCommand(createCmd)
}
