package encoder

// Phase names the step a progress update reports.
type Phase string

const (
	PhaseExtract Phase = "extract"
	PhaseEncode  Phase = "encode"
	PhaseResume  Phase = "resume"
	PhaseDone    Phase = "chunk done"
	PhaseFailed  Phase = "chunk failed"
	PhaseConcat  Phase = "concat"
)

// Progress is a point-in-time encode status.
type Progress struct {
	Phase       Phase
	Chunk       int
	Chunks      int
	FramesDone  int
	TotalFrames int
}

// Percent is the completed share of frames, 0-100.
func (p Progress) Percent() float64 {
	if p.TotalFrames <= 0 {
		return 0
	}
	return float64(p.FramesDone) * 100 / float64(p.TotalFrames)
}

// ProgressFunc receives progress updates. It is called on the encoding
// goroutine and must not block.
type ProgressFunc func(Progress)
