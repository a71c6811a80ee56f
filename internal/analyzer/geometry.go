package analyzer

import (
	"fmt"
	"math"
)

// Blu-ray 3D frame dimensions.
const (
	TargetWidth  = 1920
	TargetHeight = 1080
	// EyeFrameBytes is the size of one yuv420p frame at the target size.
	EyeFrameBytes = TargetWidth * TargetHeight * 3 / 2
)

// Geometry describes how each eye is cut from the SBS frame and fitted into
// a 1920x1080 picture.
type Geometry struct {
	// EyeWidth is the width of one eye within the active area (even).
	EyeWidth     int
	ActiveHeight int
	LeftX        int
	RightX       int
	Top          int
	// DisplayAspect is the intended aspect of one eye after un-squeezing.
	DisplayAspect float64
	ScaledWidth   int
	ScaledHeight  int
	PadX          int
	PadY          int
}

// ComputeGeometry derives per-eye crop and scaling from the active area.
// cropX is the left edge of the active area within the full frame.
func ComputeGeometry(sbs SBSType, activeWidth, activeHeight, cropX, top int) (Geometry, error) {
	if activeWidth < 4 || activeHeight <= 0 {
		return Geometry{}, fmt.Errorf("active area %dx%d too small", activeWidth, activeHeight)
	}
	eyeWidth := floorEven(activeWidth / 2)
	aspect := float64(eyeWidth) / float64(activeHeight)
	if sbs == HalfSBS {
		aspect *= 2
	}

	g := Geometry{
		EyeWidth:      eyeWidth,
		ActiveHeight:  activeHeight,
		LeftX:         cropX,
		RightX:        cropX + eyeWidth,
		Top:           top,
		DisplayAspect: aspect,
	}
	if aspect >= float64(TargetWidth)/float64(TargetHeight) {
		g.ScaledWidth = TargetWidth
		g.ScaledHeight = roundEven(float64(TargetWidth) / aspect)
	} else {
		g.ScaledHeight = TargetHeight
		g.ScaledWidth = roundEven(float64(TargetHeight) * aspect)
	}
	g.ScaledWidth = clamp(g.ScaledWidth, 2, TargetWidth)
	g.ScaledHeight = clamp(g.ScaledHeight, 2, TargetHeight)
	g.PadX = floorEven((TargetWidth - g.ScaledWidth) / 2)
	g.PadY = floorEven((TargetHeight - g.ScaledHeight) / 2)
	return g, nil
}

// EyeFilter returns the ffmpeg filter chain producing one eye.
func (g Geometry) EyeFilter(right bool) string {
	x := g.LeftX
	if right {
		x = g.RightX
	}
	return fmt.Sprintf("crop=%d:%d:%d:%d,scale=%d:%d,setsar=1,pad=%d:%d:%d:%d,format=yuv420p",
		g.EyeWidth, g.ActiveHeight, x, g.Top,
		g.ScaledWidth, g.ScaledHeight,
		TargetWidth, TargetHeight, g.PadX, g.PadY)
}

func floorEven(v int) int {
	return v &^ 1
}

func roundEven(v float64) int {
	return floorEven(int(math.Round(v)))
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
