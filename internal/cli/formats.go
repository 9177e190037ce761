package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alejandroruanova/feed-ingestion-service/internal/core/domain"
	"github.com/alejandroruanova/feed-ingestion-service/internal/pkg/logger"
)

func newFormatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported file extensions and their collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			factory, err := newParserFactory(cfg, logger.Discard())
			if err != nil {
				return err
			}

			for _, ext := range factory.SupportedFormats() {
				parser, err := factory.GetParser(ext)
				if err != nil {
					return err
				}

				collection := cfg.Ingestion.CSVCollection
				if parser.Family() == domain.FamilyHierarchical {
					collection = cfg.Ingestion.XMLCollection
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-6s %-13s %s\n", ext, parser.Family(), collection)
			}
			return nil
		},
	}
}
