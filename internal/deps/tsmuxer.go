package deps

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bd3d/internal/toolexec"
)

const (
	tsMuxerForkMarker    = "github.com/justdan96/tsMuxer"
	tsMuxerMinGitYear    = 2023
	tsMuxerMinMajor      = 2
	tsMuxerProbeDeadline = 5 * time.Second
)

var (
	tsMuxerGitPattern     = regexp.MustCompile(`git-(\d{4})`)
	tsMuxerVersionPattern = regexp.MustCompile(`(?i)version\s+(\d+)\.(\d+)`)
)

// VersionState classifies the result of a tsMuxeR version probe.
type VersionState int

const (
	// VersionUnknown means the binary could not be executed.
	VersionUnknown VersionState = iota
	VersionOK
	VersionOutdated
)

// VersionStatus is the outcome of CheckTsMuxerVersion.
type VersionStatus struct {
	State  VersionState
	Detail string
	Output string
}

// CheckTsMuxerVersion runs tsMuxeR without arguments and inspects its banner.
// Older builds and forks other than justdan96's produce discs that fail
// playback, so they are reported as outdated. A binary that cannot be run is
// reported as unknown and left to the caller to warn about.
func CheckTsMuxerVersion(ctx context.Context, runner toolexec.Runner, binary string) VersionStatus {
	if runner == nil {
		runner = toolexec.Exec{}
	}
	probeCtx, cancel := context.WithTimeout(ctx, tsMuxerProbeDeadline)
	defer cancel()

	stdout, stderr, err := runner.Output(probeCtx, binary, nil)
	output := strings.TrimSpace(string(stdout) + "\n" + string(stderr))
	if err != nil && output == "" {
		return VersionStatus{State: VersionUnknown, Detail: "could not execute " + binary + ": " + err.Error()}
	}
	return ClassifyTsMuxerBanner(output)
}

// ClassifyTsMuxerBanner decides whether a tsMuxeR banner belongs to a
// supported build.
func ClassifyTsMuxerBanner(output string) VersionStatus {
	if !strings.Contains(output, tsMuxerForkMarker) {
		return VersionStatus{State: VersionOutdated, Detail: "not the justdan96 tsMuxeR fork", Output: output}
	}
	if match := tsMuxerGitPattern.FindStringSubmatch(output); match != nil {
		year, _ := strconv.Atoi(match[1])
		if year >= tsMuxerMinGitYear {
			return VersionStatus{State: VersionOK, Detail: "git " + match[1], Output: output}
		}
		return VersionStatus{State: VersionOutdated, Detail: "git build from " + match[1] + " predates 2023", Output: output}
	}
	if match := tsMuxerVersionPattern.FindStringSubmatch(output); match != nil {
		major, _ := strconv.Atoi(match[1])
		if major >= tsMuxerMinMajor {
			return VersionStatus{State: VersionOK, Detail: "v" + match[1] + "." + match[2], Output: output}
		}
		return VersionStatus{State: VersionOutdated, Detail: "v" + match[1] + "." + match[2] + " predates 2.0", Output: output}
	}
	return VersionStatus{State: VersionOutdated, Detail: "unrecognised version banner", Output: output}
}
