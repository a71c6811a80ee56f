package preflight

import (
	"context"

	"bd3d/internal/config"
	"bd3d/internal/deps"
	"bd3d/internal/toolexec"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Warning  bool
	Detail   string
}

// Options selects which checks RunAll performs.
type Options struct {
	IncludeBench bool
	WorkDir      string
	OutputDir    string
	// WorkSpaceBytes, when set, is the scratch space the encode needs.
	WorkSpaceBytes uint64
}

// RunAll executes tool and directory checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, runner toolexec.Runner, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	statuses := deps.CheckBinaries(deps.Requirements(cfg, opts.IncludeBench))
	results := CheckDependencies(statuses)
	for _, status := range statuses {
		if status.Name == "tsMuxeR" && status.Available {
			results = append(results, CheckTsMuxer(ctx, runner, status.Path))
		}
	}

	if opts.WorkDir != "" {
		results = append(results, CheckCreatableDirectory("Work directory", opts.WorkDir))
		if opts.WorkSpaceBytes > 0 {
			results = append(results, CheckFreeSpace("Work disk space", opts.WorkDir, opts.WorkSpaceBytes))
		}
	}
	if opts.OutputDir != "" {
		results = append(results, CheckCreatableDirectory("Output directory", opts.OutputDir))
	}
	return results
}

// Failed reports whether any non-optional check failed.
func Failed(results []Result) bool {
	return len(FailedNames(results)) > 0
}

// FailedNames lists the non-optional checks that failed.
func FailedNames(results []Result) []string {
	var names []string
	for _, result := range results {
		if !result.Passed && !result.Optional {
			names = append(names, result.Name)
		}
	}
	return names
}
