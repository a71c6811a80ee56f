package workdir

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bd3d/internal/fileutil"
	"bd3d/internal/logging"
)

// CleanupResult contains the outcome of a cleanup pass.
type CleanupResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a path with its removal error.
type CleanupError struct {
	Path  string
	Error error
}

// OK reports whether every path was removed.
func (r CleanupResult) OK() bool {
	return len(r.Errors) == 0
}

// RemoveFiles deletes paths, retrying each up to attempts times with delay
// in between. Missing paths are skipped. Failures are logged as warnings and
// collected; they never abort the pass.
func RemoveFiles(ctx context.Context, paths []string, attempts int, delay time.Duration, logger *slog.Logger) CleanupResult {
	result := CleanupResult{}
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if _, err := os.Lstat(path); os.IsNotExist(err) {
			continue
		}
		if err := fileutil.RemoveWithRetry(ctx, path, attempts, delay); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			logging.WarnWithContext(logger, "could not delete temporary file", "cleanup_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the file manually"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, path)
		if logger != nil {
			logger.Debug("removed temporary file", logging.String("file", filepath.Base(path)))
		}
	}
	return result
}

// RemoveDir deletes the whole work directory.
func RemoveDir(ctx context.Context, dir string, attempts int, delay time.Duration, logger *slog.Logger) CleanupResult {
	result := RemoveFiles(ctx, []string{dir}, attempts, delay, logger)
	if result.OK() && logger != nil && len(result.Removed) > 0 {
		logger.Info("removed work directory",
			logging.String("path", dir),
			logging.String(logging.FieldEventType, "workdir_cleanup"),
		)
	}
	return result
}

// Size returns the total size of regular files under path, best effort.
func Size(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
