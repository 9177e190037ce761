package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Ingest one file now",
		Long: `Parse one file and upsert its records.

.csv and .txt files go to CSV_COLLECTION, .xml files to XML_COLLECTION.
.xlsx sheets follow the delimited rules and land in CSV_COLLECTION.

Examples:
  # Ingest into Postgres
  ingest run feeds/items.txt

  # Parse and upsert against a throwaway in-memory store
  ingest run feeds/catalog.xml --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRun {
				opts.storeDriver = "memory"
			}

			a, err := newApp(opts, args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.service.Ingest(cmd.Context(), args[0])
			if summary != nil {
				for _, line := range summary.Lines() {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Use the in-memory store (nothing is persisted)")

	return cmd
}
