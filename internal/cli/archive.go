package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alejandroruanova/feed-ingestion-service/internal/infrastructure/storage"
	"github.com/alejandroruanova/feed-ingestion-service/internal/pkg/logger"
)

func newArchiveCmd(opts *rootOptions) *cobra.Command {
	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "Manage archived input files",
	}

	var olderThan time.Duration

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove run archives older than a given age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cfg.Ingestion.ArchiveDir == "" {
				return fmt.Errorf("ARCHIVE_DIR is not set")
			}

			log := logger.Initialize(cfg.Environment, cfg.LogLevel)
			archive, err := storage.NewLocalStorage(&storage.LocalStorageConfig{
				BasePath: cfg.Ingestion.ArchiveDir,
			}, log)
			if err != nil {
				return err
			}

			removed, err := archive.CleanupOldFiles(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d archive(s) removed\n", removed)
			return nil
		},
	}

	pruneCmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Minimum age of archives to remove")
	archiveCmd.AddCommand(pruneCmd)

	return archiveCmd
}
