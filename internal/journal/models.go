package journal

import "time"

// RunStatus is the lifecycle state of a conversion run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// ChunkStatus is the encode state of one chunk.
type ChunkStatus string

const (
	ChunkPending ChunkStatus = "pending"
	ChunkEncoded ChunkStatus = "encoded"
	ChunkFailed  ChunkStatus = "failed"
)

// Run is one invocation of the conversion pipeline.
type Run struct {
	ID           string
	SourcePath   string
	OutputPath   string
	Status       RunStatus
	Stage        string
	ErrorMessage string
	StartedAt    time.Time
	UpdatedAt    time.Time
	FinishedAt   *time.Time
}

// Finished reports whether the run reached a terminal state.
func (r Run) Finished() bool {
	return r.Status != RunRunning
}

// Chunk records the last known state of a chunk index.
type Chunk struct {
	Index        int
	RunID        string
	StartFrame   int
	FrameCount   int
	Status       ChunkStatus
	BaseBytes    int64
	DepBytes     int64
	ErrorMessage string
	UpdatedAt    time.Time
}

// SamePlan reports whether c covers the same frame range as other.
func (c Chunk) SamePlan(startFrame, frameCount int) bool {
	return c.StartFrame == startFrame && c.FrameCount == frameCount
}
