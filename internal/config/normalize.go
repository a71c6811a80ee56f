package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeEncoding()
	c.normalizeMuxing()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("BD3D_WORK_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.WorkDir = strings.TrimSpace(value)
	}
	var err error
	if c.Paths.WorkDir, err = expandPath(strings.TrimSpace(c.Paths.WorkDir)); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() {
	if value, ok := os.LookupEnv("FRIMENCODE_PATH"); ok && strings.TrimSpace(value) != "" {
		c.Tools.FRIMEncode = value
	}
	if value, ok := os.LookupEnv("TSMUXER_PATH"); ok && strings.TrimSpace(value) != "" {
		c.Tools.TsMuxer = value
	}
	c.Tools.FFmpeg = toolOrDefault(c.Tools.FFmpeg, defaultFFmpeg)
	c.Tools.FFprobe = toolOrDefault(c.Tools.FFprobe, defaultFFprobe)
	c.Tools.FRIMEncode = toolOrDefault(c.Tools.FRIMEncode, defaultFRIMEncode)
	c.Tools.X264 = toolOrDefault(c.Tools.X264, defaultX264)
	c.Tools.TsMuxer = toolOrDefault(c.Tools.TsMuxer, defaultTsMuxer)
	c.Tools.MKVExtract = toolOrDefault(c.Tools.MKVExtract, defaultMKVExtract)
}

func toolOrDefault(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	if strings.HasPrefix(value, "~") {
		if expanded, err := expandPath(value); err == nil {
			return expanded
		}
	}
	return value
}

func (c *Config) normalizeEncoding() {
	c.Encoding.Level = strings.TrimSpace(c.Encoding.Level)
	if c.Encoding.Level == "" {
		c.Encoding.Level = defaultLevel
	}
}

func (c *Config) normalizeMuxing() {
	c.Muxing.Label = strings.TrimSpace(c.Muxing.Label)
	if c.Muxing.CleanupAttempts <= 0 {
		c.Muxing.CleanupAttempts = defaultCleanupAttempts
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
