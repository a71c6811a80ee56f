package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir   string `toml:"work_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
}

// Tools names the external executables. Bare names are resolved on PATH.
type Tools struct {
	FFmpeg     string `toml:"ffmpeg"`
	FFprobe    string `toml:"ffprobe"`
	FRIMEncode string `toml:"frimencode"`
	X264       string `toml:"x264"`
	TsMuxer    string `toml:"tsmuxer"`
	MKVExtract string `toml:"mkvextract"`
}

// Encoding contains stereoscopic encoder settings.
type Encoding struct {
	// ChunkSeconds is the nominal chunk length; chunks are aligned to GOPs.
	ChunkSeconds int `toml:"chunk_seconds"`
	// BitrateKbps and MaxBitrateKbps drive FRIMEncode's VBR mode.
	BitrateKbps    int    `toml:"bitrate_kbps"`
	MaxBitrateKbps int    `toml:"max_bitrate_kbps"`
	Level          string `toml:"level"`
	Quality        int    `toml:"quality"`
	HardwareAccel  bool   `toml:"hardware_accel"`
	// MaxFailedChunks is how many chunk failures are tolerated before the
	// remaining chunks are abandoned. Zero stops at the first failure.
	MaxFailedChunks int `toml:"max_failed_chunks"`
	// Plausibility window for each encoded view, in kbit/s.
	MinViewKbps     int `toml:"min_view_kbps"`
	MaxViewKbps     int `toml:"max_view_kbps"`
	MaxCombinedKbps int `toml:"max_combined_kbps"`
}

// Muxing contains tsMuxeR and stream extraction settings.
type Muxing struct {
	Label             string `toml:"label"`
	PreferMKVExtract  bool   `toml:"prefer_mkvextract"`
	KeepIntermediates bool   `toml:"keep_intermediates"`
	SubtitleWidth     int    `toml:"subtitle_width"`
	SubtitleHeight    int    `toml:"subtitle_height"`
	CleanupAttempts   int    `toml:"cleanup_attempts"`
}

// Validation contains thresholds for the post-mux BDMV validator.
type Validation struct {
	FrameTolerance  int     `toml:"frame_tolerance"`
	TimingTolerance float64 `toml:"timing_tolerance"`
	NALScanMiB      int     `toml:"nal_scan_mib"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for bd3d.
//
// Configuration sections by subsystem:
//   - Paths: working, output, and log directories
//   - Tools: external executables (ffmpeg, ffprobe, FRIMEncode64, x264, tsMuxeR, mkvextract)
//   - Encoding: chunking, bitrate, and plausibility limits for the MVC encode
//   - Muxing: disc label, extraction strategy, and intermediate cleanup
//   - Validation: tolerances for the BDMV validator
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Tools      Tools      `toml:"tools"`
	Encoding   Encoding   `toml:"encoding"`
	Muxing     Muxing     `toml:"muxing"`
	Validation Validation `toml:"validation"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/bd3d/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config %s: %s", resolvedPath, strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("bd3d.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log directory. Work and output directories are
// chosen per run and created by the pipeline.
func (c *Config) EnsureDirectories() error {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return nil
	}
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() (string, error) {
	var b strings.Builder
	encoder := toml.NewEncoder(&b)
	encoder.SetIndentTables(true)
	if err := encoder.Encode(c); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return b.String(), nil
}
