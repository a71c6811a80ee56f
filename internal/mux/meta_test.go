package mux

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bd3d/internal/analyzer"
)

func muxerFPS(fps float64) string {
	return (&analyzer.Properties{FPS: fps}).MuxerFPS()
}

func TestMetaRender(t *testing.T) {
	meta := Meta{
		Label:           "My Movie",
		Chapters:        []string{"00:00:00.000", "00:05:12.345"},
		LeftEye:         "/w/left_eye.264",
		DependentChunks: []string{"/w/temp_chunk_0_dep.264", "/w/temp_chunk_1_dep.264"},
		FPS:             muxerFPS(24000.0 / 1001.0),
		Audio:           []MetaTrack{{Codec: CodecDTS, Path: "/w/clean_audio_0.dts", Language: "eng"}},
		Subtitles: []MetaTrack{{
			Codec:    CodecSRT,
			Path:     "/w/clean_sub_0.srt",
			Language: "ger",
			Extra:    SubtitleExtra(1920, 1080, "24000/1001"),
		}},
	}
	want := strings.Join([]string{
		`MUXOPT --blu-ray-3d --label=My Movie --custom-chapters=00:00:00.000;00:05:12.345`,
		`V_MPEG4/ISO/AVC, "/w/left_eye.264", fps=23.976, insertSEI, contSPS, ssif`,
		`V_MPEG4/ISO/AVC, "/w/temp_chunk_0_dep.264"+"/w/temp_chunk_1_dep.264", mvc, fps=23.976`,
		`A_DTS, "/w/clean_audio_0.dts", lang=eng`,
		`S_TEXT/UTF8, "/w/clean_sub_0.srt", lang=ger, video-width=1920, video-height=1080, fps=24000/1001`,
	}, "\n") + "\n"
	if got := meta.Render(); got != want {
		t.Fatalf("unexpected meta:\n%s\nwant:\n%s", got, want)
	}
}

func TestMetaRenderWithoutChaptersOrTracks(t *testing.T) {
	meta := Meta{Label: "X", LeftEye: "l", DependentChunks: []string{"d"}, FPS: muxerFPS(25)}
	lines := strings.Split(strings.TrimSuffix(meta.Render(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), lines)
	}
	if lines[0] != "MUXOPT --blu-ray-3d --label=X" {
		t.Fatalf("unexpected MUXOPT line %q", lines[0])
	}
	if !strings.Contains(lines[2], `"d", mvc, fps=25.000`) {
		t.Fatalf("unexpected dependent line %q", lines[2])
	}
}

func TestMetaWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "muxer_final.meta")
	meta := Meta{Label: "X", LeftEye: "l", DependentChunks: []string{"d"}, FPS: muxerFPS(24)}
	if err := meta.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != meta.Render() {
		t.Fatalf("file content differs from render")
	}
}

func TestTrackCodec(t *testing.T) {
	tests := []struct {
		codec string
		want  string
		ok    bool
	}{
		{"ac3", CodecAC3, true},
		{"dts", CodecDTS, true},
		{"pcm_bluray", CodecLPCM, true},
		{"EAC3", CodecAC3, true},
		{"subrip", CodecSRT, true},
		{"hdmv_pgs_subtitle", CodecPGS, true},
		{"aac", "", false},
		{"ass", "", false},
	}
	for _, tc := range tests {
		got, ok := TrackCodec(tc.codec)
		if got != tc.want || ok != tc.ok {
			t.Errorf("TrackCodec(%q) = %q, %v; want %q, %v", tc.codec, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseMuxProgress(t *testing.T) {
	if got, ok := parseMuxProgress("52.3% complete"); !ok || got != 52.3 {
		t.Fatalf("expected 52.3, got %v %v", got, ok)
	}
	if _, ok := parseMuxProgress("Muxing started"); ok {
		t.Fatal("non-progress line parsed as progress")
	}
}
