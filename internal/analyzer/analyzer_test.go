package analyzer_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bd3d/internal/analyzer"
	"bd3d/internal/services"
	"bd3d/internal/testsupport"
)

const fullSBSProbe = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264", "width": 3840, "height": 1080,
     "display_aspect_ratio": "32:9", "r_frame_rate": "24000/1001", "nb_frames": "N/A"},
    {"index": 1, "codec_type": "audio", "codec_name": "dts", "channels": 6, "tags": {"language": "eng"}},
    {"index": 2, "codec_type": "audio", "codec_name": "aac", "channels": 2},
    {"index": 3, "codec_type": "subtitle", "codec_name": "subrip", "tags": {"language": "ger"}}
  ],
  "format": {"duration": "100.000000"}
}`

func probeHandler(inspect, chapters string) testsupport.Handler {
	return func(_ context.Context, call testsupport.Call) (string, error) {
		if strings.Contains(call.Joined(), "-show_chapters") {
			if chapters == "" {
				return "", errors.New("ffprobe exited with code 1")
			}
			return chapters, nil
		}
		return inspect, nil
	}
}

func TestAnalyzeFullSBSWithBars(t *testing.T) {
	runner := testsupport.NewFakeRunner().
		Handle("ffprobe", probeHandler(fullSBSProbe, `{"chapters":[{"start_time":"0.000000"},{"start_time":"61.5"}]}`)).
		Handle("ffmpeg", func(context.Context, testsupport.Call) (string, error) {
			return "[Parsed_cropdetect_0] crop=3840:1072:0:4\n[Parsed_cropdetect_0] crop=3840:800:0:140\n", nil
		})

	props, err := analyzer.New("ffprobe", "ffmpeg", runner).Analyze(context.Background(), "/src/movie.mkv")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if props.SBS != analyzer.FullSBS {
		t.Fatalf("expected Full SBS, got %s", props.SBS)
	}
	if !props.FramesEstimated || props.TotalFrames != 2397 {
		t.Fatalf("expected estimated 2397 frames, got %d (estimated=%v)", props.TotalFrames, props.FramesEstimated)
	}
	if props.FramesDisplay() != "~2397 (estimated)" {
		t.Fatalf("unexpected frames display %q", props.FramesDisplay())
	}
	if props.Duration() != "00:01:40" {
		t.Fatalf("unexpected duration %q", props.Duration())
	}
	if !props.HasBlackBars || props.TopBar != 140 || props.BottomBar != 140 || props.ActiveHeight != 800 {
		t.Fatalf("unexpected crop: %+v", props)
	}
	if props.ActiveAspectLabel() != "4.800:1" {
		t.Fatalf("unexpected active aspect %q", props.ActiveAspectLabel())
	}
	if props.EyeRatioName() != "2.40:1" {
		t.Fatalf("unexpected eye ratio %q", props.EyeRatioName())
	}
	if props.GOP != 24 {
		t.Fatalf("unexpected GOP %d", props.GOP)
	}
	if len(props.Chapters) != 2 || props.Chapters[1] != "00:01:01.500" {
		t.Fatalf("unexpected chapters %v", props.Chapters)
	}
	if len(props.Audio) != 2 || props.Audio[0].Language != "eng" || props.Audio[1].Language != "und" {
		t.Fatalf("unexpected audio %+v", props.Audio)
	}
	if len(props.Subtitles) != 1 || props.Subtitles[0].Index != 3 {
		t.Fatalf("unexpected subtitles %+v", props.Subtitles)
	}

	crop := runner.CallsTo("ffmpeg")
	if len(crop) != 1 || testsupport.ArgAfter(crop[0].Args, "-ss") != "25" {
		t.Fatalf("expected cropdetect at 25s, got %v", crop)
	}
}

func TestAnalyzeDegradesWhenCropAndChaptersFail(t *testing.T) {
	probe := strings.Replace(fullSBSProbe, `"nb_frames": "N/A"`, `"nb_frames": "2400"`, 1)
	probe = strings.Replace(probe, `"width": 3840`, `"width": 1920`, 1)
	runner := testsupport.NewFakeRunner().
		Handle("ffprobe", probeHandler(probe, "")).
		Handle("ffmpeg", func(context.Context, testsupport.Call) (string, error) {
			return "", errors.New("ffmpeg exited with code 1")
		})

	props, err := analyzer.New("ffprobe", "ffmpeg", runner).Analyze(context.Background(), "/src/half.mkv")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if props.SBS != analyzer.HalfSBS {
		t.Fatalf("expected Half SBS, got %s", props.SBS)
	}
	if props.FramesEstimated || props.TotalFrames != 2400 {
		t.Fatalf("expected exact frame count, got %d", props.TotalFrames)
	}
	if props.HasBlackBars || props.ActiveWidth != 1920 || props.ActiveHeight != 1080 {
		t.Fatalf("expected full frame active, got %+v", props)
	}
	if len(props.Chapters) != 0 {
		t.Fatalf("expected no chapters, got %v", props.Chapters)
	}
}

func TestAnalyzeRejectsMissingResolution(t *testing.T) {
	runner := testsupport.NewFakeRunner().Handle("ffprobe", probeHandler(`{"streams":[{"codec_type":"video","r_frame_rate":"24/1"}],"format":{}}`, ""))
	_, err := analyzer.New("ffprobe", "ffmpeg", runner).Analyze(context.Background(), "/src/bad.mkv")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	runner = testsupport.NewFakeRunner().Handle("ffprobe", probeHandler(`{"streams":[{"codec_type":"audio"}],"format":{}}`, ""))
	if _, err := analyzer.New("ffprobe", "ffmpeg", runner).Analyze(context.Background(), "/src/audio.mka"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for audio-only source, got %v", err)
	}
}

func TestAnalyzeProbeFailure(t *testing.T) {
	runner := testsupport.NewFakeRunner().Handle("ffprobe", func(context.Context, testsupport.Call) (string, error) {
		return "", errors.New("ffprobe exited with code 1")
	})
	_, err := analyzer.New("ffprobe", "ffmpeg", runner).Analyze(context.Background(), "/src/x.mkv")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}
