package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/bremcorr/internal/store"
)

func newRunsCmd() *cobra.Command {
	var (
		db     string
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded correction runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(db)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tSTARTED\tSTRATEGY\tMC\tINPUT\tOUTPUT\tIN\tOUT\tDROPPED\tSTATUS\tDURATION")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
					shortID(r.RunID),
					time.Unix(0, r.StartedAt).Format(time.DateTime),
					r.Strategy, r.IsMC, r.InputTable, r.OutputTable,
					r.RowsIn, r.RowsOut, r.RowsDropped, r.Status,
					r.Duration().Round(time.Millisecond))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&db, "db", "candidates.db", "SQLite database holding the run records")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list, 0 for all")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the runs as JSON")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
