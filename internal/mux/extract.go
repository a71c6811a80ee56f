package mux

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"bd3d/internal/analyzer"
	"bd3d/internal/language"
	"bd3d/internal/logging"
	"bd3d/internal/workdir"
)

// extraction is one selected track and where its elementary stream goes.
type extraction struct {
	track analyzer.Track
	codec string
	path  string
}

// planExtractions assigns output files to the supported tracks. Unsupported
// tracks are returned separately.
func planExtractions(layout workdir.Layout, audio, subtitles []analyzer.Track) (audioOut, subOut []extraction, skipped []analyzer.Track) {
	for _, track := range audio {
		codec, ok := TrackCodec(track.Codec)
		if !ok {
			skipped = append(skipped, track)
			continue
		}
		audioOut = append(audioOut, extraction{track: track, codec: codec, path: layout.Audio(len(audioOut), audioExtension(track.Codec))})
	}
	for _, track := range subtitles {
		codec, ok := TrackCodec(track.Codec)
		if !ok {
			skipped = append(skipped, track)
			continue
		}
		subOut = append(subOut, extraction{track: track, codec: codec, path: layout.Subtitle(len(subOut), SubtitleExtension(track.Codec))})
	}
	return audioOut, subOut, skipped
}

func audioExtension(codec string) string {
	codec = strings.ToLower(strings.TrimSpace(codec))
	return strings.NewReplacer("/", "_", " ", "_").Replace(codec)
}

// RemuxArgs builds the ffmpeg command copying the selected streams into a
// clean Matroska file, audio first, then subtitles.
func RemuxArgs(source string, tracks []analyzer.Track, output string) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", source}
	for _, track := range tracks {
		args = append(args, "-map", "0:"+strconv.Itoa(track.Index))
	}
	return append(args, "-c", "copy", output)
}

// StreamCopyArgs builds the ffmpeg command copying one stream selected by
// specifier (e.g. "0:a:1") out of input.
func StreamCopyArgs(input, specifier, output string) []string {
	return []string{"-y", "-hide_banner", "-loglevel", "error", "-i", input, "-map", specifier, "-c", "copy", output}
}

// MKVExtractArgs builds an mkvextract tracks command for the given
// extractions. Track IDs are the Matroska stream indices.
func MKVExtractArgs(source string, items []extraction) []string {
	args := []string{source, "tracks"}
	for _, item := range items {
		args = append(args, fmt.Sprintf("%d:%s", item.track.Index, item.path))
	}
	return args
}

// extractWithFFmpeg remuxes the selected streams, then copies each one out
// of the remux by its position there.
func (m *Muxer) extractWithFFmpeg(ctx context.Context, logger *slog.Logger, source string, layout workdir.Layout, audio, subs []extraction) error {
	tracks := make([]analyzer.Track, 0, len(audio)+len(subs))
	for _, item := range audio {
		tracks = append(tracks, item.track)
	}
	for _, item := range subs {
		tracks = append(tracks, item.track)
	}
	logger.Info("remuxing selected tracks", logging.Int("tracks", len(tracks)))
	if err := m.runner.Run(ctx, m.ffmpeg, RemuxArgs(source, tracks, layout.CleanRemux()), nil); err != nil {
		return fmt.Errorf("create clean remux: %w", err)
	}
	for i, item := range audio {
		if err := m.runner.Run(ctx, m.ffmpeg, StreamCopyArgs(layout.CleanRemux(), fmt.Sprintf("0:a:%d", i), item.path), nil); err != nil {
			return fmt.Errorf("extract audio track %d: %w", i, err)
		}
	}
	for i, item := range subs {
		specifier := fmt.Sprintf("0:%d", len(audio)+i)
		if err := m.runner.Run(ctx, m.ffmpeg, StreamCopyArgs(layout.CleanRemux(), specifier, item.path), nil); err != nil {
			return fmt.Errorf("extract subtitle track %d: %w", i, err)
		}
	}
	return nil
}

func (m *Muxer) extractWithMKVExtract(ctx context.Context, logger *slog.Logger, source string, audio, subs []extraction) error {
	items := append(append([]extraction(nil), audio...), subs...)
	logger.Info("extracting tracks with mkvextract", logging.Int("tracks", len(items)))
	if err := m.runner.Run(ctx, m.mkvextract, MKVExtractArgs(source, items), nil); err != nil {
		return fmt.Errorf("mkvextract: %w", err)
	}
	return nil
}

func (m *Muxer) metaTracks(audio, subs []extraction, fpsRational string) ([]MetaTrack, []MetaTrack) {
	audioLines := make([]MetaTrack, 0, len(audio))
	for _, item := range audio {
		audioLines = append(audioLines, MetaTrack{Codec: item.codec, Path: item.path, Language: language.ToISO3(item.track.Language)})
	}
	subLines := make([]MetaTrack, 0, len(subs))
	for _, item := range subs {
		line := MetaTrack{Codec: item.codec, Path: item.path, Language: language.ToISO3(item.track.Language)}
		if IsTextSubtitle(item.track.Codec) {
			line.Extra = SubtitleExtra(m.muxing.SubtitleWidth, m.muxing.SubtitleHeight, fpsRational)
		}
		subLines = append(subLines, line)
	}
	return audioLines, subLines
}
