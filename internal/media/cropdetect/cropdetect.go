// Package cropdetect finds letterbox bars with ffmpeg's cropdetect filter.
package cropdetect

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"bd3d/internal/toolexec"
)

// SampleSeconds is how much of the source cropdetect inspects.
const SampleSeconds = 10

var cropPattern = regexp.MustCompile(`crop=(\d+):(\d+):(\d+):(\d+)`)

// Crop is an active picture rectangle within the full frame.
type Crop struct {
	Width  int
	Height int
	X      int
	Y      int
}

// Filter renders the rectangle as an ffmpeg crop filter.
func (c Crop) Filter() string {
	return fmt.Sprintf("crop=%d:%d:%d:%d", c.Width, c.Height, c.X, c.Y)
}

// Detector runs cropdetect against a source.
type Detector struct {
	binary string
	runner toolexec.Runner
}

// New builds a Detector for the given ffmpeg binary.
func New(binary string, runner toolexec.Runner) *Detector {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	if runner == nil {
		runner = toolexec.Exec{}
	}
	return &Detector{binary: binary, runner: runner}
}

// StartOffset returns where sampling begins: a quarter of the way in for
// sources longer than 20 seconds, otherwise the start.
func StartOffset(durationSeconds float64) int {
	if durationSeconds > 20 {
		return int(durationSeconds * 0.25)
	}
	return 0
}

// Detect samples the source and returns the last crop suggestion ffmpeg
// printed. ok is false when no suggestion was found; err carries the ffmpeg
// failure, if any, for the caller to log.
func (d *Detector) Detect(ctx context.Context, path string, durationSeconds float64) (Crop, bool, error) {
	args := []string{
		"-hide_banner",
		"-ss", strconv.Itoa(StartOffset(durationSeconds)),
		"-t", strconv.Itoa(SampleSeconds),
		"-i", path,
		"-vf", "cropdetect",
		"-f", "null", "-",
	}
	var lines []string
	runErr := d.runner.Run(ctx, d.binary, args, func(line string) {
		if strings.Contains(line, "crop=") {
			lines = append(lines, line)
		}
	})
	if ctx.Err() != nil {
		return Crop{}, false, ctx.Err()
	}
	crop, ok := ParseLast(strings.Join(lines, "\n"))
	return crop, ok, runErr
}

// ParseLast returns the crop from the last line of output containing a
// well-formed crop=W:H:X:Y.
func ParseLast(output string) (Crop, bool) {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if !strings.Contains(lines[i], "crop=") {
			continue
		}
		match := cropPattern.FindStringSubmatch(lines[i])
		if match == nil {
			return Crop{}, false
		}
		var values [4]int
		for j := range values {
			values[j], _ = strconv.Atoi(match[j+1])
		}
		return Crop{Width: values[0], Height: values[1], X: values[2], Y: values[3]}, true
	}
	return Crop{}, false
}

// MatchStandardRatio returns the name of the closest standard aspect ratio
// within 2%, or a numeric label like "1.78:1".
func MatchStandardRatio(ratio float64) string {
	if ratio <= 0 || math.IsNaN(ratio) {
		return "N/A"
	}
	standards := []struct {
		name  string
		value float64
	}{
		{"4:3", 4.0 / 3.0},
		{"16:9", 16.0 / 9.0},
		{"1.85:1", 1.85},
		{"2.00:1", 2.00},
		{"2.20:1", 2.20},
		{"2.35:1", 2.35},
		{"2.39:1", 2.39},
		{"2.40:1", 2.40},
	}
	bestName := ""
	bestDist := math.MaxFloat64
	for _, s := range standards {
		if dist := math.Abs(ratio - s.value); dist < bestDist {
			bestDist = dist
			bestName = s.name
		}
	}
	if bestDist/ratio <= 0.02 {
		return bestName
	}
	return fmt.Sprintf("%.2f:1", ratio)
}
