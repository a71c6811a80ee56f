package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"bd3d/internal/language"
	"bd3d/internal/toolexec"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams  []Stream  `json:"streams"`
	Format   Format    `json:"format"`
	Chapters []Chapter `json:"chapters"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index              int               `json:"index"`
	CodecName          string            `json:"codec_name"`
	CodecType          string            `json:"codec_type"`
	Profile            string            `json:"profile"`
	Width              int               `json:"width"`
	Height             int               `json:"height"`
	DisplayAspectRatio string            `json:"display_aspect_ratio"`
	SampleAspectRatio  string            `json:"sample_aspect_ratio"`
	PixFmt             string            `json:"pix_fmt"`
	RFrameRate         string            `json:"r_frame_rate"`
	NBFrames           string            `json:"nb_frames"`
	NBReadFrames       string            `json:"nb_read_frames"`
	Level              int               `json:"level"`
	Refs               int               `json:"refs"`
	HasBFrames         int               `json:"has_b_frames"`
	Channels           int               `json:"channels"`
	Tags               map[string]string `json:"tags"`
	Disposition        map[string]int    `json:"disposition"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// Chapter is a single chapter marker.
type Chapter struct {
	ID        int64             `json:"id"`
	StartTime string            `json:"start_time"`
	EndTime   string            `json:"end_time"`
	Tags      map[string]string `json:"tags"`
}

// Prober executes ffprobe commands.
type Prober struct {
	binary string
	runner toolexec.Runner
}

// New builds a Prober. An empty binary defaults to "ffprobe" and a nil runner
// to toolexec.Exec.
func New(binary string, runner toolexec.Runner) *Prober {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if runner == nil {
		runner = toolexec.Exec{}
	}
	return &Prober{binary: binary, runner: runner}
}

const sourceEntries = "stream=index,codec_type,codec_name,profile,width,height,display_aspect_ratio," +
	"sample_aspect_ratio,pix_fmt,r_frame_rate,nb_frames,channels" +
	":stream_tags:stream_disposition=default,forced:format=duration,size,bit_rate,format_name"

// Inspect returns the stream and format entries used for source analysis.
func (p *Prober) Inspect(ctx context.Context, path string) (Result, error) {
	return p.decode(ctx, "inspect", path, "-v", "error", "-show_entries", sourceEntries, "-of", "json", path)
}

// Streams returns the full -show_streams output.
func (p *Prober) Streams(ctx context.Context, path string) (Result, error) {
	return p.decode(ctx, "streams", path, "-v", "error", "-show_streams", "-of", "json", path)
}

// Chapters returns the chapter markers of path.
func (p *Prober) Chapters(ctx context.Context, path string) ([]Chapter, error) {
	result, err := p.decode(ctx, "chapters", path, "-v", "error", "-print_format", "json", "-show_chapters", path)
	if err != nil {
		return nil, err
	}
	return result.Chapters, nil
}

// FrameTimestamps returns the decode timestamps of every frame of the first
// video stream, skipping frames without one.
func (p *Prober) FrameTimestamps(ctx context.Context, path string) ([]float64, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("ffprobe frames: empty path")
	}
	stdout, _, err := p.runner.Output(ctx, p.binary, []string{
		"-hide_banner", "-v", "error", "-select_streams", "v:0",
		"-show_frames", "-show_entries", "frame=pkt_dts_time",
		"-of", "compact=p=0:nk=1", path,
	})
	if err != nil {
		return nil, fmt.Errorf("ffprobe frames: %w", err)
	}
	return ParseTimestamps(string(stdout)), nil
}

// CountFrames decodes the first video stream and returns the frame count.
func (p *Prober) CountFrames(ctx context.Context, path string) (int, error) {
	if strings.TrimSpace(path) == "" {
		return 0, errors.New("ffprobe count: empty path")
	}
	stdout, _, err := p.runner.Output(ctx, p.binary, []string{
		"-v", "error", "-select_streams", "v:0", "-count_frames",
		"-show_entries", "stream=nb_read_frames",
		"-of", "default=noprint_wrappers=1:nokey=1", path,
	})
	if err != nil {
		return 0, fmt.Errorf("ffprobe count: %w", err)
	}
	value := strings.TrimSpace(string(stdout))
	if first, _, ok := strings.Cut(value, "\n"); ok {
		value = strings.TrimSpace(first)
	}
	count, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("ffprobe count: unexpected output %q", value)
	}
	return count, nil
}

func (p *Prober) decode(ctx context.Context, op, path string, args ...string) (Result, error) {
	if strings.TrimSpace(path) == "" {
		return Result{}, fmt.Errorf("ffprobe %s: empty path", op)
	}
	stdout, _, err := p.runner.Output(ctx, p.binary, args)
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe %s: %w", op, err)
	}
	var result Result
	if err := json.Unmarshal(stdout, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe %s parse: %w", op, err)
	}
	return result, nil
}

// FirstVideo returns the first video stream.
func (r Result) FirstVideo() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream, true
		}
	}
	return Stream{}, false
}

// StreamsOfType returns streams with the given codec_type in container order.
func (r Result) StreamsOfType(codecType string) []Stream {
	var out []Stream
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, codecType) {
			out = append(out, stream)
		}
	}
	return out
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return ParseSeconds(r.Format.Duration)
}

// Language returns the stream language tag in lower case, "und" when absent.
func (s Stream) Language() string {
	if lang := language.ExtractFromTags(s.Tags); lang != "" {
		return lang
	}
	return "und"
}

// Title returns the stream title tag.
func (s Stream) Title() string {
	return strings.TrimSpace(s.Tags["title"])
}

// IsDefault reports the default disposition flag.
func (s Stream) IsDefault() bool { return s.Disposition["default"] == 1 }

// IsForced reports the forced disposition flag.
func (s Stream) IsForced() bool { return s.Disposition["forced"] == 1 }

// FrameCount returns nb_frames when it is a positive integer.
func (s Stream) FrameCount() (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s.NBFrames))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
