package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tbd-tracker/tbd/internal/types"
)

var (
	listStatus   string
	listAssignee string
	listAll      bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List records",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, store, err := openProject()
		if err != nil {
			return err
		}

		recs, err := store.List()
		if err != nil {
			return err
		}

		var filtered []*types.Record
		for _, rec := range recs {
			if !listAll && listStatus == "" && rec.IsClosed() {
				continue
			}
			if listStatus != "" && rec.Status != types.Status(listStatus) {
				continue
			}
			if listAssignee != "" && rec.Assignee != listAssignee {
				continue
			}
			filtered = append(filtered, rec)
		}

		if flagJSON {
			return printJSON(cmd.OutOrStdout(), filtered)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, rec := range filtered {
			fmt.Fprintf(w, "%s\tP%d\t%s\t%s\t%s\n", rec.ShortID, rec.Priority, rec.Status, rec.Kind, rec.Title)
		}
		return w.Flush()
	},
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	listCmd.Flags().StringVarP(&listStatus, "status", "s", "", "filter by status")
	listCmd.Flags().StringVarP(&listAssignee, "assignee", "a", "", "filter by assignee")
	listCmd.Flags().BoolVar(&listAll, "all", false, "include closed records")
	rootCmd.AddCommand(listCmd)
}
