package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"bd3d/internal/deps"
	"bd3d/internal/toolexec"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckCreatableDirectory passes when path exists and is writable, or when
// its nearest existing ancestor is writable so the pipeline can create it.
func CheckCreatableDirectory(name, path string) Result {
	if _, err := os.Stat(path); err == nil {
		return CheckDirectoryAccess(name, path)
	}
	parent := filepath.Dir(path)
	for {
		if _, err := os.Stat(parent); err == nil {
			break
		}
		next := filepath.Dir(parent)
		if next == parent {
			break
		}
		parent = next
	}
	result := CheckDirectoryAccess(name, parent)
	if result.Passed {
		result.Detail = fmt.Sprintf("%s (will be created)", path)
	}
	return result
}

// CheckFreeSpace verifies that the filesystem holding path has at least need
// bytes available.
func CheckFreeSpace(name, path string, need uint64) Result {
	probe := path
	for {
		if _, err := os.Stat(probe); err == nil {
			break
		}
		next := filepath.Dir(probe)
		if next == probe {
			break
		}
		probe = next
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(probe, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", probe, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s free, %s needed", humanize.IBytes(free), humanize.IBytes(need))
	return Result{Name: name, Passed: free >= need, Detail: detail}
}

// CheckDependencies converts tool availability into preflight results.
func CheckDependencies(statuses []deps.Status) []Result {
	results := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		result := Result{Name: status.Name, Passed: status.Available, Optional: status.Optional}
		switch {
		case status.Available:
			result.Detail = status.Path
		case status.Optional:
			result.Detail = status.Detail + " (optional)"
		default:
			result.Detail = status.Detail
		}
		results = append(results, result)
	}
	return results
}

// CheckTsMuxer reports the tsMuxeR build. An unrunnable binary is a warning.
func CheckTsMuxer(ctx context.Context, runner toolexec.Runner, binary string) Result {
	status := deps.CheckTsMuxerVersion(ctx, runner, binary)
	switch status.State {
	case deps.VersionOK:
		return Result{Name: "tsMuxeR version", Passed: true, Detail: status.Detail}
	case deps.VersionUnknown:
		return Result{Name: "tsMuxeR version", Passed: true, Warning: true, Detail: status.Detail + "; make sure it is a 2023+ justdan96 build"}
	default:
		return Result{Name: "tsMuxeR version", Detail: status.Detail + "; install the latest release from github.com/justdan96/tsMuxer"}
	}
}
