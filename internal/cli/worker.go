package cli

import (
	"github.com/spf13/cobra"

	"github.com/alejandroruanova/feed-ingestion-service/internal/infrastructure/queue"
	"github.com/alejandroruanova/feed-ingestion-service/internal/pkg/logger"
)

func newWorkerCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Process queued ingestions one at a time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			server := queue.NewAsynqServer(a.cfg.Cache, a.cfg.Queue, logger.NewServiceLogger("worker"))
			server.Handle(queue.TaskTypeIngestFile, queue.NewIngestHandler(a.ingest, logger.NewServiceLogger("worker")))

			// Blocks until SIGINT/SIGTERM
			return server.Start()
		},
	}
}
