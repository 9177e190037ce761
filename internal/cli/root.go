package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	apperrors "github.com/alejandroruanova/feed-ingestion-service/internal/pkg/errors"
	"github.com/alejandroruanova/feed-ingestion-service/internal/pkg/logger"
)

// rootOptions are the flags shared by every command
type rootOptions struct {
	storeDriver string
	xmlParser   string
	encoding    string
	logLevel    string
}

// NewRootCmd builds the ingest command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "ingest",
		Short: "Product feed ingestion",
		Long: `Ingest loads product feeds (CSV/TXT, XLSX or XML) into the document store.

Records are upserted by id: every stored document sharing an id with an
incoming record is removed before the batch is inserted, so ingesting the
same file twice leaves the store unchanged.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.storeDriver, "store", "", "Store driver override (postgres or memory)")
	root.PersistentFlags().StringVar(&opts.xmlParser, "xml-parser", "", "XML reduction strategy override (events/1 or document/2)")
	root.PersistentFlags().StringVar(&opts.encoding, "encoding", "", "Input charset override for delimited files")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(opts),
		newEnqueueCmd(opts),
		newWorkerCmd(opts),
		newFormatsCmd(opts),
		newHistoryCmd(opts),
		newArchiveCmd(opts),
	)

	return root
}

// Execute runs the root command and exits with a code derived from the error
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		logger.Get().Error("command failed", slog.Any("error", err))
		os.Exit(exitCode(err))
	}
}

// exitCode maps failure classes to distinct process exit codes
func exitCode(err error) int {
	appErr, ok := apperrors.GetAppError(err)
	if !ok {
		return 1
	}

	switch appErr.Code {
	case apperrors.ErrCodeUnsupportedFileType, apperrors.ErrCodeInvalidFile, apperrors.ErrCodeFileTooLarge:
		return 2
	case apperrors.ErrCodeSchemaMismatch, apperrors.ErrCodeMalformedRecord:
		return 3
	case apperrors.ErrCodeStoreUnavailable:
		return 4
	case apperrors.ErrCodeConflict:
		return 5
	default:
		return 1
	}
}
