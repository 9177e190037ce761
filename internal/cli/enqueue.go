package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/alejandroruanova/feed-ingestion-service/internal/infrastructure/queue"
	"github.com/alejandroruanova/feed-ingestion-service/internal/pkg/logger"
)

func newEnqueueCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <file>",
		Short: "Schedule a file for ingestion by the worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			log := logger.Initialize(cfg.Environment, cfg.LogLevel)

			factory, err := newParserFactory(cfg, log)
			if err != nil {
				return err
			}
			if _, err := factory.GetParserForFile(args[0]); err != nil {
				return err
			}

			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("failed to resolve path: %w", err)
			}

			client := queue.NewAsynqClient(cfg.Cache, cfg.Queue, log)
			defer client.Close()

			info, err := client.EnqueueIngest(cmd.Context(), path)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as task %s on queue %s\n", path, info.ID, info.Queue)
			return nil
		},
	}
}
