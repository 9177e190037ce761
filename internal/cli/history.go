package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	apperrors "github.com/alejandroruanova/feed-ingestion-service/internal/pkg/errors"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent ingestion runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()

			if a.lock != nil {
				for _, collection := range a.service.Collections() {
					fields, err := a.lock.LastRun(cmd.Context(), collection)
					if err != nil {
						return err
					}
					if len(fields) == 0 {
						continue
					}
					keys := make([]string, 0, len(fields))
					for k := range fields {
						keys = append(keys, k)
					}
					sort.Strings(keys)

					fmt.Fprintf(out, "last run into %s:\n", collection)
					for _, k := range keys {
						fmt.Fprintf(out, "  %s: %s\n", k, fields[k])
					}
				}
			}

			if a.runs == nil {
				return apperrors.New(apperrors.ErrCodeStoreUnavailable, "run history requires the postgres store")
			}

			runs, err := a.runs.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tFILE\tCOLLECTION\tSTATUS\tPARSED\tINSERTED\tREMOVED")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
					run.CreatedAt.Format("2006-01-02 15:04:05"),
					run.FileName, run.Collection, run.Status,
					run.ParsedRecords, run.InsertedRecords, run.DuplicatesRemoved)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")

	return cmd
}
