package bdmv

import (
	"fmt"
	"math"
	"strings"

	"bd3d/internal/media/ffprobe"
)

// Blu-ray 3D limits for the base view.
const (
	maxLevel      = 41
	maxRefs       = 4
	maxBFrames    = 3
	stereoProfile = "Stereo High"
)

// CheckStreams inspects ffprobe's -show_streams output of the main stream.
// A 3D stream is reported either as one "Stereo High" stream or as separate
// base and dependent streams; the first one is the base view.
func CheckStreams(result ffprobe.Result, expectedRate string) []Check {
	video := result.StreamsOfType("video")
	var checks []Check
	switch {
	case len(video) == 1 && video[0].Profile == stereoProfile:
		checks = append(checks, pass("video streams", "single Stereo High stream"))
	case len(video) == 1:
		return append(checks, fail("video streams", fmt.Sprintf("single stream with profile %q, expected Stereo High", video[0].Profile)))
	case len(video) == 2:
		checks = append(checks, pass("video streams", "base and dependent view streams"))
	default:
		return append(checks, fail("video streams", fmt.Sprintf("expected 1 or 2 video streams, found %d", len(video))))
	}
	return append(checks, checkBaseView(video[0], expectedRate)...)
}

func checkBaseView(base ffprobe.Stream, expectedRate string) []Check {
	var checks []Check

	if strings.EqualFold(base.CodecName, "h264") {
		checks = append(checks, pass("base view codec", "h264"))
	} else {
		checks = append(checks, fail("base view codec", fmt.Sprintf("%q, expected h264", base.CodecName)))
	}

	switch {
	case expectedRate == "":
		checks = append(checks, warn("frame rate", base.RFrameRate+" (source rate unknown)"))
	case sameRate(base.RFrameRate, expectedRate):
		checks = append(checks, pass("frame rate", base.RFrameRate))
	default:
		checks = append(checks, fail("frame rate", fmt.Sprintf("%s, expected %s", base.RFrameRate, expectedRate)))
	}

	switch {
	case base.Level <= 0:
		checks = append(checks, warn("level", "not reported"))
	case base.Level <= maxLevel:
		checks = append(checks, pass("level", levelLabel(base.Level)))
	default:
		checks = append(checks, fail("level", fmt.Sprintf("%s exceeds 4.1", levelLabel(base.Level))))
	}

	switch sar := strings.TrimSpace(base.SampleAspectRatio); sar {
	case "", "1:1", "0:1", "N/A":
		checks = append(checks, pass("sample aspect ratio", orDefault(sar, "unset")))
	default:
		checks = append(checks, warn("sample aspect ratio", sar+", expected 1:1"))
	}

	if base.PixFmt == "yuv420p" {
		checks = append(checks, pass("pixel format", base.PixFmt))
	} else {
		checks = append(checks, fail("pixel format", fmt.Sprintf("%q, expected yuv420p", base.PixFmt)))
	}

	if base.Refs <= maxRefs {
		checks = append(checks, pass("reference frames", fmt.Sprint(base.Refs)))
	} else {
		checks = append(checks, warn("reference frames", fmt.Sprintf("%d exceeds %d", base.Refs, maxRefs)))
	}

	if base.HasBFrames <= maxBFrames {
		checks = append(checks, pass("B-frame depth", fmt.Sprint(base.HasBFrames)))
	} else {
		checks = append(checks, fail("B-frame depth", fmt.Sprintf("%d exceeds %d", base.HasBFrames, maxBFrames)))
	}
	return checks
}

// sameRate compares rationals textually first, then numerically so that
// "24/1" matches "24".
func sameRate(actual, expected string) bool {
	actual, expected = strings.TrimSpace(actual), strings.TrimSpace(expected)
	if actual == expected {
		return true
	}
	a, e := ffprobe.ParseRational(actual), ffprobe.ParseRational(expected)
	return a > 0 && math.Abs(a-e) < 1e-9
}

func levelLabel(level int) string {
	return fmt.Sprintf("%d.%d", level/10, level%10)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// CheckTiming looks for decode timestamp jumps larger than tolerance times
// the expected frame interval.
func CheckTiming(timestamps []float64, fps, tolerance float64) Check {
	const name = "timestamp continuity"
	if len(timestamps) < 2 {
		return warn(name, "not enough frames to analyze timing")
	}
	if fps <= 0 {
		return warn(name, "source frame rate unknown; skipped")
	}
	expected := 1 / fps
	limit := expected * tolerance
	jumps := 0
	for i := 1; i < len(timestamps); i++ {
		if math.Abs(timestamps[i]-timestamps[i-1]-expected) > limit {
			jumps++
		}
	}
	if jumps > 0 {
		return fail(name, fmt.Sprintf("%d timing jump(s) across %d frames", jumps, len(timestamps)))
	}
	return pass(name, fmt.Sprintf("no jumps across %d frames", len(timestamps)))
}

// CheckFrameCount compares the decoded frame count with the source.
func CheckFrameCount(actual, expected, tolerance int) Check {
	const name = "frame count"
	if expected <= 0 {
		return warn(name, fmt.Sprintf("%d frames (source count unknown)", actual))
	}
	diff := actual - expected
	if diff < 0 {
		diff = -diff
	}
	if diff > tolerance {
		return fail(name, fmt.Sprintf("found %d, expected %d", actual, expected))
	}
	return pass(name, fmt.Sprintf("found %d, expected %d", actual, expected))
}

// CheckMVC turns a stream scan into a check.
func CheckMVC(scan StreamScan) Check {
	const name = "MVC units"
	switch {
	case scan.BasePackets == 0 && scan.DependentPackets == 0:
		return fail(name, fmt.Sprintf("no video packets on PID 0x%04X or 0x%04X in %d packets", BaseVideoPID, DependentVideoPID, scan.Packets))
	case scan.HasMVC() && scan.DependentPackets > 0:
		return pass(name, fmt.Sprintf("NAL type 20 on dependent PID 0x%04X", DependentVideoPID))
	case scan.HasMVC():
		return pass(name, fmt.Sprintf("NAL type 20 on base PID 0x%04X", BaseVideoPID))
	case scan.DependentPackets > 0:
		return fail(name, fmt.Sprintf("dependent PID carries %s but no NAL type 20", scan.Dependent))
	default:
		return fail(name, "no dependent view PID and no NAL type 20 in the base view")
	}
}
