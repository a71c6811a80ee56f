package ffprobe

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseRational converts an ffprobe rational such as "24000/1001" into a
// float. Invalid input or a zero denominator yields 0.
func ParseRational(value string) float64 {
	num, den, ok := strings.Cut(strings.TrimSpace(value), "/")
	if !ok {
		f, err := strconv.ParseFloat(num, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	}
	n, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseInt(strings.TrimSpace(den), 10, 64)
	if err != nil || d <= 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// FormatClock renders seconds as HH:MM:SS, truncating fractions.
func FormatClock(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// FormatChapterTime renders seconds as HH:MM:SS.mmm, the form tsMuxeR's
// --custom-chapters option expects.
func FormatChapterTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	millis := int64(math.Round(seconds * 1000))
	return fmt.Sprintf("%02d:%02d:%02d.%03d", millis/3600000, (millis%3600000)/60000, (millis%60000)/1000, millis%1000)
}

// ParseTimestamps parses compact ffprobe output with one timestamp per line.
// N/A entries and blank lines are skipped.
func ParseTimestamps(output string) []float64 {
	var out []float64
	for _, line := range strings.Split(output, "\n") {
		field, _, _ := strings.Cut(strings.TrimSpace(line), "|")
		field = strings.TrimSpace(field)
		if field == "" || field == "N/A" {
			continue
		}
		value, err := strconv.ParseFloat(field, 64)
		if err != nil {
			continue
		}
		out = append(out, value)
	}
	return out
}

// ParseSeconds parses a decimal seconds value, returning 0 when invalid.
func ParseSeconds(value string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}
