package selection

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"bd3d/internal/services"
)

// VideoExtensions are the source extensions accepted without --force.
var VideoExtensions = []string{".mkv", ".mp4", ".avi", ".mov", ".ts", ".m2ts"}

// OutputType is the kind of disc artifact written by the multiplexer.
type OutputType string

const (
	OutputISO  OutputType = "iso"
	OutputBDMV OutputType = "bdmv"
)

// IsISOPath reports whether path names an ISO image.
func IsISOPath(path string) bool {
	return strings.EqualFold(filepath.Ext(strings.TrimSpace(path)), ".iso")
}

// OutputTypeFor infers the output type from the path.
func OutputTypeFor(path string) OutputType {
	if IsISOPath(path) {
		return OutputISO
	}
	return OutputBDMV
}

// IsMatroska reports whether path has a Matroska extension.
func IsMatroska(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mkv", ".mk3d", ".mka":
		return true
	}
	return false
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	path = strings.TrimSpace(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// ValidateSource checks that path is a readable regular video file and
// returns its absolute form. force accepts any extension.
func ValidateSource(path string, force bool) (string, error) {
	path = ExpandHome(path)
	if path == "" {
		return "", services.Wrap(services.ErrCancelled, "select", "source", "no source file selected", nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "select", "source", "invalid path", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", services.Wrap(services.ErrNotFound, "select", "source", fmt.Sprintf("%s does not exist", abs), nil)
		}
		return "", services.Wrap(services.ErrValidation, "select", "source", "stat source", err)
	}
	if !info.Mode().IsRegular() {
		return "", services.Wrap(services.ErrValidation, "select", "source", fmt.Sprintf("%s is not a regular file", abs), nil)
	}
	if !force && !slices.Contains(VideoExtensions, strings.ToLower(filepath.Ext(abs))) {
		return "", services.Wrap(services.ErrValidation, "select", "source",
			fmt.Sprintf("%s is not a recognised video file (use --force to accept it)", filepath.Base(abs)), nil)
	}
	return abs, nil
}

// PrepareWorkDir creates the work directory and returns its absolute path.
func PrepareWorkDir(path string) (string, error) {
	path = ExpandHome(path)
	if path == "" {
		return "", services.Wrap(services.ErrCancelled, "select", "work dir", "no working directory selected", nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "select", "work dir", "invalid path", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "select", "work dir", "create working directory", err)
	}
	return abs, nil
}

// ResolveOutput normalizes the final output path for the given type. ISO
// targets gain a .iso extension when missing and their parent directory is
// created; BDMV targets are created as directories.
func ResolveOutput(path string, kind OutputType) (string, error) {
	path = ExpandHome(path)
	if path == "" {
		return "", services.Wrap(services.ErrCancelled, "select", "output", "no output selected", nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "select", "output", "invalid path", err)
	}
	dir := abs
	if kind == OutputISO {
		if !IsISOPath(abs) {
			abs += ".iso"
		}
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			return "", services.Wrap(services.ErrValidation, "select", "output", fmt.Sprintf("%s is a directory", abs), nil)
		}
		dir = filepath.Dir(abs)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "select", "output", "create output directory", err)
	}
	return abs, nil
}
