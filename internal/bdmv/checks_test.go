package bdmv

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bd3d/internal/media/ffprobe"
	"bd3d/internal/testsupport"
)

func buildDiscTree(t *testing.T, root string) {
	t.Helper()
	for _, entry := range requiredEntries {
		path := resolve(root, entry.path)
		if entry.dir {
			if err := os.MkdirAll(path, 0o755); err != nil {
				t.Fatal(err)
			}
			continue
		}
		testsupport.WriteFile(t, path, 16)
	}
	testsupport.WriteBytes(t, resolve(root, MainPlaylist), []byte("MPLS0200rest"))
}

func TestCheckStructure(t *testing.T) {
	root := t.TempDir()
	buildDiscTree(t, root)
	if check := CheckStructure(root); check.Status != StatusPass {
		t.Fatalf("expected pass, got %+v", check)
	}

	if err := os.RemoveAll(filepath.Join(root, "CERTIFICATE")); err != nil {
		t.Fatal(err)
	}
	testsupport.WriteFile(t, filepath.Join(root, "CERTIFICATE"), 1)
	if err := os.Remove(resolve(root, "BDMV/BACKUP/index.bdmv")); err != nil {
		t.Fatal(err)
	}
	check := CheckStructure(root)
	if check.Status != StatusFail {
		t.Fatalf("expected failure, got %+v", check)
	}
	if !strings.Contains(check.Detail, "CERTIFICATE") || !strings.Contains(check.Detail, "BDMV/BACKUP/index.bdmv") {
		t.Fatalf("detail should list missing entries: %q", check.Detail)
	}
	if len(RequiredPaths()) != 10 {
		t.Fatalf("expected 10 required paths, got %d", len(RequiredPaths()))
	}
}

func TestCheckPlaylist(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		data   []byte
		status Status
	}{
		{"version 0200", []byte("MPLS0200...."), StatusPass},
		{"version 0300", []byte("MPLS0300"), StatusPass},
		{"odd version", []byte("MPLS9999"), StatusWarn},
		{"bad magic", []byte("XPLS0200"), StatusFail},
		{"short", []byte("MP"), StatusFail},
	}
	for i, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, string(rune('a'+i))+".mpls")
			testsupport.WriteBytes(t, path, tc.data)
			if got := CheckPlaylist(path); got.Status != tc.status {
				t.Fatalf("CheckPlaylist = %+v, want %s", got, tc.status)
			}
		})
	}
	if got := CheckPlaylist(filepath.Join(dir, "missing.mpls")); got.Status != StatusFail {
		t.Fatalf("missing file should fail, got %+v", got)
	}
}

func baseStream() ffprobe.Stream {
	return ffprobe.Stream{
		CodecType:         "video",
		CodecName:         "h264",
		Profile:           "High",
		RFrameRate:        "24000/1001",
		Level:             41,
		SampleAspectRatio: "1:1",
		PixFmt:            "yuv420p",
		Refs:              4,
		HasBFrames:        2,
	}
}

func statusOf(checks []Check, name string) Status {
	for _, check := range checks {
		if check.Name == name {
			return check.Status
		}
	}
	return ""
}

func TestCheckStreams(t *testing.T) {
	dependent := baseStream()
	dependent.Profile = "Stereo High"
	stereo := baseStream()
	stereo.Profile = "Stereo High"
	audio := ffprobe.Stream{CodecType: "audio", CodecName: "dts"}

	checks := CheckStreams(ffprobe.Result{Streams: []ffprobe.Stream{baseStream(), dependent, audio}}, "24000/1001")
	for _, check := range checks {
		if check.Status != StatusPass {
			t.Fatalf("expected all checks to pass, got %+v", check)
		}
	}
	if len(checks) != 8 {
		t.Fatalf("expected 8 checks, got %d", len(checks))
	}

	if got := statusOf(CheckStreams(ffprobe.Result{Streams: []ffprobe.Stream{stereo}}, "24000/1001"), "video streams"); got != StatusPass {
		t.Fatalf("single Stereo High stream should pass, got %s", got)
	}
	if got := CheckStreams(ffprobe.Result{Streams: []ffprobe.Stream{baseStream()}}, "24000/1001"); len(got) != 1 || got[0].Status != StatusFail {
		t.Fatalf("single non-stereo stream should fail, got %+v", got)
	}
	if got := CheckStreams(ffprobe.Result{Streams: []ffprobe.Stream{audio}}, "24000/1001"); got[0].Status != StatusFail {
		t.Fatalf("no video should fail, got %+v", got)
	}
}

func TestCheckBaseViewLimits(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ffprobe.Stream)
		rate   string
		check  string
		status Status
	}{
		{"wrong codec", func(s *ffprobe.Stream) { s.CodecName = "hevc" }, "24000/1001", "base view codec", StatusFail},
		{"rate mismatch", func(s *ffprobe.Stream) { s.RFrameRate = "25/1" }, "24000/1001", "frame rate", StatusFail},
		{"rate equivalent", func(s *ffprobe.Stream) { s.RFrameRate = "24/1" }, "24", "frame rate", StatusPass},
		{"rate unknown", func(*ffprobe.Stream) {}, "", "frame rate", StatusWarn},
		{"level too high", func(s *ffprobe.Stream) { s.Level = 51 }, "24000/1001", "level", StatusFail},
		{"level missing", func(s *ffprobe.Stream) { s.Level = -99 }, "24000/1001", "level", StatusWarn},
		{"anamorphic", func(s *ffprobe.Stream) { s.SampleAspectRatio = "4:3" }, "24000/1001", "sample aspect ratio", StatusWarn},
		{"sar unset", func(s *ffprobe.Stream) { s.SampleAspectRatio = "" }, "24000/1001", "sample aspect ratio", StatusPass},
		{"10-bit", func(s *ffprobe.Stream) { s.PixFmt = "yuv420p10le" }, "24000/1001", "pixel format", StatusFail},
		{"many refs", func(s *ffprobe.Stream) { s.Refs = 6 }, "24000/1001", "reference frames", StatusWarn},
		{"deep b-frames", func(s *ffprobe.Stream) { s.HasBFrames = 4 }, "24000/1001", "B-frame depth", StatusFail},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stream := baseStream()
			tc.mutate(&stream)
			if got := statusOf(checkBaseView(stream, tc.rate), tc.check); got != tc.status {
				t.Fatalf("%s = %s, want %s", tc.check, got, tc.status)
			}
		})
	}
}

func TestCheckTiming(t *testing.T) {
	fps := 24000.0 / 1001.0
	step := 1 / fps
	even := []float64{0, step, 2 * step, 3 * step}
	if got := CheckTiming(even, fps, 0.10); got.Status != StatusPass {
		t.Fatalf("even timestamps should pass: %+v", got)
	}
	jumpy := []float64{0, step, 5 * step, 6 * step}
	if got := CheckTiming(jumpy, fps, 0.10); got.Status != StatusFail || !strings.HasPrefix(got.Detail, "1 timing jump") {
		t.Fatalf("expected one jump, got %+v", got)
	}
	if got := CheckTiming([]float64{0}, fps, 0.10); got.Status != StatusWarn {
		t.Fatalf("single timestamp should warn, got %+v", got)
	}
	if got := CheckTiming(even, 0, 0.10); got.Status != StatusWarn {
		t.Fatalf("unknown fps should warn, got %+v", got)
	}
}

func TestCheckFrameCount(t *testing.T) {
	tests := []struct {
		actual, expected int
		status           Status
	}{
		{1000, 1000, StatusPass},
		{998, 1000, StatusPass},
		{1002, 1000, StatusPass},
		{997, 1000, StatusFail},
		{1003, 1000, StatusFail},
		{1000, 0, StatusWarn},
	}
	for _, tc := range tests {
		if got := CheckFrameCount(tc.actual, tc.expected, 2); got.Status != tc.status {
			t.Errorf("CheckFrameCount(%d, %d) = %s, want %s", tc.actual, tc.expected, got.Status, tc.status)
		}
	}
}
