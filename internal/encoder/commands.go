package encoder

import (
	"fmt"
	"strconv"

	"bd3d/internal/analyzer"
	"bd3d/internal/config"
)

// ExtractArgs builds the ffmpeg invocation writing one eye of a chunk as raw
// yuv420p frames at 1920x1080.
func ExtractArgs(source string, chunk Chunk, fps float64, geometry analyzer.Geometry, right bool, output string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", strconv.FormatFloat(chunk.StartSeconds(fps), 'f', 6, 64),
		"-i", source,
		"-frames:v", strconv.Itoa(chunk.FrameCount),
		"-vf", geometry.EyeFilter(right),
		"-an", "-sn",
		"-f", "rawvideo",
		"-pix_fmt", "yuv420p",
		output,
	}
}

// EncodeArgs builds the FRIMEncode64 invocation producing the base and
// dependent view of a chunk from its two planes.
func EncodeArgs(enc config.Encoding, fps float64, gop int, leftYUV, rightYUV, baseOut, depOut string) []string {
	mode := "-sw"
	if enc.HardwareAccel {
		mode = "-hw"
	}
	return []string{
		"-i", leftYUV,
		"-i", rightYUV,
		"-viewoutput",
		"-o", baseOut,
		"-o", depOut,
		"-w", strconv.Itoa(analyzer.TargetWidth),
		"-h", strconv.Itoa(analyzer.TargetHeight),
		"-f", fmt.Sprintf("%.3f", fps),
		"-level", levelString(enc.Level),
		"-profile", "high",
		"-gop", strconv.Itoa(gop), "3", "0", "O",
		"-vbr", strconv.Itoa(enc.BitrateKbps), strconv.Itoa(enc.MaxBitrateKbps),
		"-u", strconv.Itoa(enc.Quality),
		mode,
	}
}

func levelString(level string) string {
	n, err := config.ParseLevel(level)
	if err != nil || n <= 0 {
		return "4.1"
	}
	return fmt.Sprintf("%d.%d", n/10, n%10)
}
