package mux

import (
	"fmt"
	"os"
	"strings"
)

// MetaTrack is one audio or subtitle line of a meta file.
type MetaTrack struct {
	Codec    string
	Path     string
	Language string
	// Extra holds trailing options such as text subtitle geometry.
	Extra string
}

// Meta describes a tsMuxeR Blu-ray 3D job. FPS is already formatted for
// tsMuxeR video lines, e.g. "23.976".
type Meta struct {
	Label           string
	Chapters        []string
	LeftEye         string
	DependentChunks []string
	FPS             string
	Audio           []MetaTrack
	Subtitles       []MetaTrack
}

// Render produces the meta file text.
func (m Meta) Render() string {
	opts := []string{"--blu-ray-3d", "--label=" + m.Label}
	if len(m.Chapters) > 0 {
		opts = append(opts, "--custom-chapters="+strings.Join(m.Chapters, ";"))
	}
	fps := m.FPS

	quoted := make([]string, len(m.DependentChunks))
	for i, path := range m.DependentChunks {
		quoted[i] = quote(path)
	}

	lines := []string{
		"MUXOPT " + strings.Join(opts, " "),
		fmt.Sprintf("%s, %s, fps=%s, insertSEI, contSPS, ssif", CodecAVC, quote(m.LeftEye), fps),
		fmt.Sprintf("%s, %s, mvc, fps=%s", CodecAVC, strings.Join(quoted, "+"), fps),
	}
	for _, track := range append(append([]MetaTrack(nil), m.Audio...), m.Subtitles...) {
		line := fmt.Sprintf("%s, %s, lang=%s", track.Codec, quote(track.Path), track.Language)
		if track.Extra != "" {
			line += ", " + track.Extra
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n") + "\n"
}

// WriteFile writes the rendered meta to path.
func (m Meta) WriteFile(path string) error {
	if err := os.WriteFile(path, []byte(m.Render()), 0o644); err != nil {
		return fmt.Errorf("write meta file: %w", err)
	}
	return nil
}

// SubtitleExtra renders the geometry options tsMuxeR needs to rasterize a
// text subtitle track.
func SubtitleExtra(width, height int, fpsRational string) string {
	return fmt.Sprintf("video-width=%d, video-height=%d, fps=%s", width, height, fpsRational)
}

func quote(path string) string {
	return `"` + path + `"`
}
