package analyzer

import (
	"fmt"
	"math"
	"strconv"

	"bd3d/internal/media/cropdetect"
	"bd3d/internal/media/ffprobe"
)

// SBSType is the side-by-side packing of the source.
type SBSType string

const (
	// FullSBS packs two full-width eyes (e.g. 3840x1080).
	FullSBS SBSType = "Full SBS"
	// HalfSBS squeezes both eyes into a normal-width frame (e.g. 1920x1080).
	HalfSBS SBSType = "Half SBS"

	fullSBSAspectThreshold = 2.5
)

// ClassifySBS decides the packing from the storage aspect ratio.
func ClassifySBS(width, height int) SBSType {
	if height > 0 && float64(width)/float64(height) > fullSBSAspectThreshold {
		return FullSBS
	}
	return HalfSBS
}

// Track is an audio or subtitle stream of the source.
type Track struct {
	// Index is the absolute stream index in the source container.
	Index    int
	Codec    string
	Language string
	Title    string
	Channels int
	Default  bool
	Forced   bool
}

func trackFromStream(stream ffprobe.Stream) Track {
	return Track{
		Index:    stream.Index,
		Codec:    stream.CodecName,
		Language: stream.Language(),
		Title:    stream.Title(),
		Channels: stream.Channels,
		Default:  stream.IsDefault(),
		Forced:   stream.IsForced(),
	}
}

// Properties is the analysis result for one source.
type Properties struct {
	Source             string
	TotalWidth         int
	TotalHeight        int
	DisplayAspectRatio string
	FPS                float64
	FPSRational        string
	DurationSeconds    float64
	TotalFrames        int
	FramesEstimated    bool
	SBS                SBSType
	ActiveWidth        int
	ActiveHeight       int
	CropX              int
	TopBar             int
	BottomBar          int
	HasBlackBars       bool
	// Chapters are start times formatted HH:MM:SS.mmm.
	Chapters  []string
	Audio     []Track
	Subtitles []Track
	Geometry  Geometry
	GOP       int
}

// Duration renders the duration as HH:MM:SS.
func (p *Properties) Duration() string {
	return ffprobe.FormatClock(p.DurationSeconds)
}

// FramesDisplay renders the frame count, marking estimates.
func (p *Properties) FramesDisplay() string {
	if p.FramesEstimated {
		return fmt.Sprintf("~%d (estimated)", p.TotalFrames)
	}
	return strconv.Itoa(p.TotalFrames)
}

// ActiveAspectLabel renders the active area aspect as "%.3f:1".
func (p *Properties) ActiveAspectLabel() string {
	if p.ActiveHeight <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.3f:1", float64(p.ActiveWidth)/float64(p.ActiveHeight))
}

// EyeRatioName names the nearest standard ratio of one eye's picture.
func (p *Properties) EyeRatioName() string {
	return cropdetect.MatchStandardRatio(p.Geometry.DisplayAspect)
}

// MuxerFPS is the frame rate formatted for tsMuxeR video lines.
func (p *Properties) MuxerFPS() string {
	return fmt.Sprintf("%.3f", p.FPS)
}

// GOPLength returns round(fps), or 24 when the rate is unknown.
func GOPLength(fps float64) int {
	if fps <= 0 || math.IsNaN(fps) {
		return 24
	}
	return int(math.Round(fps))
}

// applyCrop records the active area. ok=false means no usable crop was found
// and the full frame is active.
func (p *Properties) applyCrop(crop cropdetect.Crop, ok bool) {
	if !ok || crop.Width <= 0 || crop.Height <= 0 || crop.X < 0 || crop.Y < 0 ||
		crop.X+crop.Width > p.TotalWidth || crop.Y+crop.Height > p.TotalHeight {
		p.ActiveWidth = p.TotalWidth
		p.ActiveHeight = p.TotalHeight
		p.CropX, p.TopBar, p.BottomBar = 0, 0, 0
		p.HasBlackBars = false
		return
	}
	p.ActiveWidth = crop.Width
	p.ActiveHeight = crop.Height
	p.CropX = crop.X
	p.TopBar = crop.Y
	p.BottomBar = p.TotalHeight - crop.Height - crop.Y
	p.HasBlackBars = p.TopBar > 0 || p.BottomBar > 0
}
