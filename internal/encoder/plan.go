package encoder

import "math"

// Chunk is a contiguous frame range encoded in one FRIMEncode64 run.
type Chunk struct {
	Index      int
	StartFrame int
	FrameCount int
}

// EndFrame is the first frame after the chunk.
func (c Chunk) EndFrame() int {
	return c.StartFrame + c.FrameCount
}

// StartSeconds is the chunk's seek position.
func (c Chunk) StartSeconds(fps float64) float64 {
	if fps <= 0 {
		return 0
	}
	return float64(c.StartFrame) / fps
}

// FramesPerChunk returns chunkSeconds*fps rounded down to a whole number of
// GOPs, never less than one GOP.
func FramesPerChunk(fps float64, chunkSeconds, gop int) int {
	if gop <= 0 {
		gop = 24
	}
	raw := int(math.Floor(float64(chunkSeconds) * fps))
	frames := (raw / gop) * gop
	return max(frames, gop)
}

// PlanChunks covers totalFrames with GOP-aligned chunks; the last chunk
// takes the remainder.
func PlanChunks(totalFrames int, fps float64, chunkSeconds, gop int) []Chunk {
	if totalFrames <= 0 {
		return nil
	}
	per := FramesPerChunk(fps, chunkSeconds, gop)
	chunks := make([]Chunk, 0, (totalFrames+per-1)/per)
	for start := 0; start < totalFrames; start += per {
		chunks = append(chunks, Chunk{
			Index:      len(chunks),
			StartFrame: start,
			FrameCount: min(per, totalFrames-start),
		})
	}
	return chunks
}
