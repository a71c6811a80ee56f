// Package ffprobe provides a typed wrapper around ffprobe.
//
// Key types:
//   - Prober: runs ffprobe through a toolexec.Runner
//   - Result: parsed stream, format, and chapter output
//   - Stream: per-stream properties used by analysis and validation
//
// The parse helpers (ParseRational, FormatClock, FormatChapterTime,
// ParseTimestamps) are pure so callers can test against captured output.
package ffprobe
