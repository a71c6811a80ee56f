package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"bd3d/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Muxing.CleanupAttempts = 1

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithChunkSeconds overrides the encode chunk length.
func WithChunkSeconds(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Encoding.ChunkSeconds = seconds
	}
}

// WithStubbedBinaries writes stub executables for the provided names into a
// temp bin directory and points the config's tool paths at them. If names is
// empty, every conversion tool is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe", "FRIMEncode64", "tsmuxer", "mkvextract", "x264"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
			switch name {
			case "ffmpeg":
				b.cfg.Tools.FFmpeg = target
			case "ffprobe":
				b.cfg.Tools.FFprobe = target
			case "FRIMEncode64":
				b.cfg.Tools.FRIMEncode = target
			case "tsmuxer":
				b.cfg.Tools.TsMuxer = target
			case "mkvextract":
				b.cfg.Tools.MKVExtract = target
			case "x264":
				b.cfg.Tools.X264 = target
			}
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}
