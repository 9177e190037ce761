package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/alejandroruanova/feed-ingestion-service/internal/pkg/errors"
)

// LocalStorage keeps archived copies of ingested files in the local filesystem
type LocalStorage struct {
	basePath string
	logger   *slog.Logger
}

// LocalStorageConfig for local storage
type LocalStorageConfig struct {
	BasePath string // Archive root, e.g. "/var/lib/ingest/archive"
}

// FileMetadata contains information about an input file
type FileMetadata struct {
	Name        string
	Path        string
	Size        int64
	Hash        string
	ContentType string
	ModifiedAt  time.Time
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(cfg *LocalStorageConfig, logger *slog.Logger) (*LocalStorage, error) {
	if cfg == nil || cfg.BasePath == "" {
		return nil, fmt.Errorf("archive base path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(cfg.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &LocalStorage{
		basePath: cfg.BasePath,
		logger:   logger,
	}, nil
}

// Inspect returns size, SHA-256 and content type of the file at path
func Inspect(ctx context.Context, path string) (*FileMetadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.InvalidFile(err, path)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, apperrors.InvalidFile(err, path)
	}
	if info.IsDir() {
		return nil, apperrors.InvalidFile(fmt.Errorf("is a directory"), path)
	}

	hash := sha256.New()
	size, err := io.Copy(hash, &contextReader{ctx: ctx, r: file})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apperrors.InvalidFile(err, path)
	}

	return &FileMetadata{
		Name:        filepath.Base(path),
		Path:        path,
		Size:        size,
		Hash:        hex.EncodeToString(hash.Sum(nil)),
		ContentType: getContentType(path),
		ModifiedAt:  info.ModTime(),
	}, nil
}

// Archive copies the file at srcPath under <base>/<runID>/ and returns the
// metadata of the copy
func (s *LocalStorage) Archive(ctx context.Context, runID string, srcPath string) (*FileMetadata, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return nil, apperrors.InvalidFile(err, srcPath)
	}
	defer src.Close()

	runDir := filepath.Join(s.basePath, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	safeName := filepath.Base(srcPath)
	destPath := filepath.Join(runDir, safeName)

	destFile, err := os.Create(destPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create destination file: %w", err)
	}
	defer destFile.Close()

	// Calculate hash while copying
	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(destFile, hash), &contextReader{ctx: ctx, r: src})
	if err != nil {
		return nil, fmt.Errorf("failed to copy file: %w", err)
	}

	fileHash := hex.EncodeToString(hash.Sum(nil))

	s.logger.Info("file archived",
		slog.String("run_id", runID),
		slog.String("filename", safeName),
		slog.Int64("size", size),
		slog.String("hash", fileHash))

	return &FileMetadata{
		Name:        safeName,
		Path:        destPath,
		Size:        size,
		Hash:        fileHash,
		ContentType: getContentType(safeName),
		ModifiedAt:  time.Now(),
	}, nil
}

// Open returns an archived file
func (s *LocalStorage) Open(ctx context.Context, runID string, filename string) (io.ReadCloser, error) {
	filePath := filepath.Join(s.basePath, runID, filepath.Base(filename))

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("archived file not found: %s/%s", runID, filename)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Delete removes the archive of one run
func (s *LocalStorage) Delete(ctx context.Context, runID string) error {
	runDir := filepath.Join(s.basePath, runID)
	if err := os.RemoveAll(runDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete archive directory: %w", err)
	}

	s.logger.Info("archive deleted", slog.String("run_id", runID))
	return nil
}

// CleanupOldFiles removes run archives older than the specified duration
// and returns how many were removed
func (s *LocalStorage) CleanupOldFiles(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoffTime := time.Now().Add(-olderThan)

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read archive directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !entry.IsDir() {
			continue
		}

		dirPath := filepath.Join(s.basePath, entry.Name())
		info, err := entry.Info()
		if err != nil {
			s.logger.Warn("failed to get file info",
				slog.String("path", dirPath),
				slog.Any("error", err))
			continue
		}

		if info.ModTime().Before(cutoffTime) {
			if err := os.RemoveAll(dirPath); err != nil {
				s.logger.Warn("failed to remove directory",
					slog.String("path", dirPath),
					slog.Any("error", err))
				continue
			}
			removed++
			s.logger.Debug("removed old archive",
				slog.String("path", dirPath),
				slog.Time("mod_time", info.ModTime()))
		}
	}

	s.logger.Info("cleanup completed",
		slog.Duration("older_than", olderThan),
		slog.Int("removed", removed))

	return removed, nil
}

// BasePath returns the archive root
func (s *LocalStorage) BasePath() string {
	return s.basePath
}

// contextReader stops a copy once ctx is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// getContentType returns the content type based on file extension
func getContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		return "text/csv"
	case ".txt":
		return "text/plain"
	case ".xml":
		return "application/xml"
	default:
		return "application/octet-stream"
	}
}
