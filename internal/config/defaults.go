package config

const (
	defaultWorkDir            = "~/.local/share/bd3d/work"
	defaultOutputDir          = "~/bd3d"
	defaultLogDir             = "~/.local/share/bd3d/logs"
	defaultFFmpeg             = "ffmpeg"
	defaultFFprobe            = "ffprobe"
	defaultFRIMEncode         = "FRIMEncode64"
	defaultX264               = "x264"
	defaultTsMuxer            = "tsmuxer"
	defaultMKVExtract         = "mkvextract"
	defaultChunkSeconds       = 300
	defaultBitrateKbps        = 25000
	defaultMaxBitrateKbps     = 40000
	defaultLevel              = "4.1"
	defaultQuality            = 4
	defaultMinViewKbps        = 500
	defaultMaxViewKbps        = 40000
	defaultMaxCombinedKbps    = 48000
	defaultSubtitleWidth      = 1920
	defaultSubtitleHeight     = 1080
	defaultCleanupAttempts    = 3
	defaultFrameTolerance     = 2
	defaultTimingTolerance    = 0.10
	defaultNALScanMiB         = 16
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultPreferMKVExtract   = true
	defaultKeepIntermediates  = false
	defaultHardwareAccel      = false
	defaultMaxFailedChunks    = 0
	supportedBlurayLevelLimit = 41
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Tools: Tools{
			FFmpeg:     defaultFFmpeg,
			FFprobe:    defaultFFprobe,
			FRIMEncode: defaultFRIMEncode,
			X264:       defaultX264,
			TsMuxer:    defaultTsMuxer,
			MKVExtract: defaultMKVExtract,
		},
		Encoding: Encoding{
			ChunkSeconds:    defaultChunkSeconds,
			BitrateKbps:     defaultBitrateKbps,
			MaxBitrateKbps:  defaultMaxBitrateKbps,
			Level:           defaultLevel,
			Quality:         defaultQuality,
			HardwareAccel:   defaultHardwareAccel,
			MaxFailedChunks: defaultMaxFailedChunks,
			MinViewKbps:     defaultMinViewKbps,
			MaxViewKbps:     defaultMaxViewKbps,
			MaxCombinedKbps: defaultMaxCombinedKbps,
		},
		Muxing: Muxing{
			PreferMKVExtract:  defaultPreferMKVExtract,
			KeepIntermediates: defaultKeepIntermediates,
			SubtitleWidth:     defaultSubtitleWidth,
			SubtitleHeight:    defaultSubtitleHeight,
			CleanupAttempts:   defaultCleanupAttempts,
		},
		Validation: Validation{
			FrameTolerance:  defaultFrameTolerance,
			TimingTolerance: defaultTimingTolerance,
			NALScanMiB:      defaultNALScanMiB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
