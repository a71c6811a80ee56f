package encoder

import (
	"fmt"

	"bd3d/internal/config"
	"bd3d/internal/fileutil"
	"bd3d/internal/h264"
)

// CheckStatus is the outcome of a sanity check.
type CheckStatus string

const (
	CheckPass CheckStatus = "pass"
	CheckWarn CheckStatus = "warn"
	CheckFail CheckStatus = "fail"
	CheckSkip CheckStatus = "skip"
)

// SanityCheck is one post-encode check.
type SanityCheck struct {
	Name   string
	Status CheckStatus
	Detail string
}

// SanityReport collects the post-encode checks.
type SanityReport struct {
	Checks []SanityCheck
}

// Failed reports whether any check failed.
func (r SanityReport) Failed() bool {
	for _, c := range r.Checks {
		if c.Status == CheckFail {
			return true
		}
	}
	return false
}

func (r *SanityReport) add(checks ...SanityCheck) {
	r.Checks = append(r.Checks, checks...)
}

// EyeDifference compares the SHA-256 of the left and right planes of a chunk.
// Identical planes mean the source is not really side-by-side or the crop
// selected the same half twice.
func EyeDifference(leftYUV, rightYUV string) SanityCheck {
	check := SanityCheck{Name: "eye difference"}
	left, err := fileutil.HashFile(leftYUV)
	if err != nil {
		check.Status, check.Detail = CheckFail, fmt.Sprintf("hash left eye: %v", err)
		return check
	}
	right, err := fileutil.HashFile(rightYUV)
	if err != nil {
		check.Status, check.Detail = CheckFail, fmt.Sprintf("hash right eye: %v", err)
		return check
	}
	if left == right {
		check.Status = CheckFail
		check.Detail = "left and right eye frames are identical; the source may not be side-by-side"
		return check
	}
	check.Status, check.Detail = CheckPass, "left and right eye frames differ"
	return check
}

// CheckMVCMarkers scans the first limit bytes of a base and a dependent
// chunk. The base must carry SPS and IDR units and no coded slice
// extensions; the dependent view must carry subset SPS and coded slice
// extensions.
func CheckMVCMarkers(basePath, depPath string, limit int64) []SanityCheck {
	base := SanityCheck{Name: "base view NAL units"}
	if types, err := h264.ScanFile(basePath, limit); err != nil {
		base.Status, base.Detail = CheckFail, err.Error()
	} else {
		switch {
		case !types.Has(h264.NALSPS) || !types.Has(h264.NALIDR):
			base.Status = CheckFail
			base.Detail = fmt.Sprintf("missing SPS or IDR units (found %s)", types)
		case types.Has(h264.NALSliceExt):
			base.Status = CheckFail
			base.Detail = "base view contains dependent-view slices; encoder outputs may be swapped"
		default:
			base.Status, base.Detail = CheckPass, fmt.Sprintf("types %s", types)
		}
	}

	dep := SanityCheck{Name: "dependent view MVC units"}
	if types, err := h264.ScanFile(depPath, limit); err != nil {
		dep.Status, dep.Detail = CheckFail, err.Error()
	} else if !types.IsMVCDependent() {
		dep.Status = CheckFail
		dep.Detail = fmt.Sprintf("missing subset SPS (15) or slice extension (20) units (found %s)", types)
	} else {
		dep.Status, dep.Detail = CheckPass, fmt.Sprintf("types %s", types)
	}
	return []SanityCheck{base, dep}
}

// Kbps converts a byte count over seconds into kbit/s.
func Kbps(bytes int64, seconds float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return float64(bytes) * 8 / seconds / 1000
}

// CheckBitrates tests each view's average bitrate against the configured
// window and the combined bitrate against its ceiling. Out-of-range rates
// are warnings.
func CheckBitrates(baseBytes, depBytes int64, durationSeconds float64, enc config.Encoding) []SanityCheck {
	if durationSeconds <= 0 {
		return []SanityCheck{{Name: "bitrate", Status: CheckSkip, Detail: "unknown duration"}}
	}
	view := func(name string, bytes int64) SanityCheck {
		kbps := Kbps(bytes, durationSeconds)
		check := SanityCheck{Name: name, Detail: fmt.Sprintf("%.0f kbps", kbps)}
		if kbps < float64(enc.MinViewKbps) || kbps > float64(enc.MaxViewKbps) {
			check.Status = CheckWarn
			check.Detail += fmt.Sprintf(" outside %d-%d kbps", enc.MinViewKbps, enc.MaxViewKbps)
		} else {
			check.Status = CheckPass
		}
		return check
	}
	combined := Kbps(baseBytes+depBytes, durationSeconds)
	total := SanityCheck{Name: "combined bitrate", Status: CheckPass, Detail: fmt.Sprintf("%.0f kbps", combined)}
	if combined > float64(enc.MaxCombinedKbps) {
		total.Status = CheckWarn
		total.Detail += fmt.Sprintf(" exceeds %d kbps", enc.MaxCombinedKbps)
	}
	return []SanityCheck{view("base view bitrate", baseBytes), view("dependent view bitrate", depBytes), total}
}
