package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateMuxing(); err != nil {
		return err
	}
	if err := c.validateValidation(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateEncoding() error {
	if err := ensurePositiveMap(map[string]int{
		"encoding.chunk_seconds":     c.Encoding.ChunkSeconds,
		"encoding.bitrate_kbps":      c.Encoding.BitrateKbps,
		"encoding.max_bitrate_kbps":  c.Encoding.MaxBitrateKbps,
		"encoding.min_view_kbps":     c.Encoding.MinViewKbps,
		"encoding.max_view_kbps":     c.Encoding.MaxViewKbps,
		"encoding.max_combined_kbps": c.Encoding.MaxCombinedKbps,
	}); err != nil {
		return err
	}
	if c.Encoding.BitrateKbps > c.Encoding.MaxBitrateKbps {
		return errors.New("encoding.bitrate_kbps must not exceed encoding.max_bitrate_kbps")
	}
	if c.Encoding.MinViewKbps >= c.Encoding.MaxViewKbps {
		return errors.New("encoding.min_view_kbps must be less than encoding.max_view_kbps")
	}
	if c.Encoding.Quality < 1 || c.Encoding.Quality > 7 {
		return errors.New("encoding.quality must be between 1 (best) and 7 (fastest)")
	}
	if c.Encoding.MaxFailedChunks < 0 {
		return errors.New("encoding.max_failed_chunks must be >= 0")
	}
	level, err := ParseLevel(c.Encoding.Level)
	if err != nil {
		return fmt.Errorf("encoding.level: %w", err)
	}
	if level > supportedBlurayLevelLimit {
		return fmt.Errorf("encoding.level %s exceeds the Blu-ray 3D limit of 4.1", c.Encoding.Level)
	}
	return nil
}

func (c *Config) validateMuxing() error {
	if c.Muxing.SubtitleWidth <= 0 || c.Muxing.SubtitleHeight <= 0 {
		return errors.New("muxing.subtitle_width and muxing.subtitle_height must be positive")
	}
	return nil
}

func (c *Config) validateValidation() error {
	if c.Validation.FrameTolerance < 0 {
		return errors.New("validation.frame_tolerance must be >= 0")
	}
	if c.Validation.TimingTolerance <= 0 || c.Validation.TimingTolerance >= 1 {
		return errors.New("validation.timing_tolerance must be between 0 and 1 (exclusive)")
	}
	if c.Validation.NALScanMiB <= 0 {
		return errors.New("validation.nal_scan_mib must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

// ParseLevel converts an H.264 level string such as "4.1" or "41" into the
// integer form ffprobe reports (41).
func ParseLevel(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, errors.New("empty level")
	}
	if major, minor, ok := strings.Cut(value, "."); ok {
		ma, err := strconv.Atoi(major)
		if err != nil {
			return 0, fmt.Errorf("invalid level %q", value)
		}
		mi, err := strconv.Atoi(minor)
		if err != nil || mi < 0 || mi > 9 {
			return 0, fmt.Errorf("invalid level %q", value)
		}
		return ma*10 + mi, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid level %q", value)
	}
	if n < 10 {
		return n * 10, nil
	}
	return n, nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
