// Package fileutil holds the file helpers the pipeline shares: stream
// concatenation, hashing, size checks, and retried removal.
package fileutil

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Size returns the size of path, or 0 when it does not exist.
func Size(path string) int64 {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return 0
	}
	return info.Size()
}

// NonEmpty reports whether path is a regular file with at least one byte.
func NonEmpty(path string) bool {
	return Size(path) > 0
}

// ConcatFiles writes the bytes of srcs, in order, to dst. The result is
// written to a temporary sibling and renamed into place so an interrupted
// concatenation never leaves a truncated dst behind.
func ConcatFiles(ctx context.Context, dst string, srcs []string) (int64, error) {
	if len(srcs) == 0 {
		return 0, errors.New("concat: no input files")
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return 0, fmt.Errorf("concat: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	var total int64
	for _, src := range srcs {
		if err := ctx.Err(); err != nil {
			_ = tmp.Close()
			return 0, err
		}
		n, err := appendFile(tmp, src)
		if err != nil {
			_ = tmp.Close()
			return 0, fmt.Errorf("concat %s: %w", filepath.Base(src), err)
		}
		total += n
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("concat: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return 0, fmt.Errorf("concat: rename: %w", err)
	}
	return total, nil
}

func appendFile(dst io.Writer, src string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	return io.Copy(dst, in)
}

// HashFile returns the hex SHA-256 digest of path.
func HashFile(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer in.Close()
	hasher := sha256.New()
	if _, err := io.Copy(hasher, in); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// RemoveWithRetry removes path, retrying up to attempts times with delay
// between tries. Missing files count as removed. Directories are removed
// recursively.
func RemoveWithRetry(ctx context.Context, path string, attempts int, delay time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = os.RemoveAll(path)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("remove %s after %d attempts: %w", path, attempts, lastErr)
}
