// Package workflow drives a full SBS to Blu-ray 3D conversion: preflight,
// source analysis, track selection, the chunked encode, muxing, validation,
// and work directory cleanup.
//
// A Workspace owns one work directory for the duration of a run. It holds a
// file lock so two processes never share intermediates, opens the run
// journal, and tees logs into bd3d.log inside the directory. Stages run
// through RunStage, which logs their start and outcome and records the
// current stage in the journal.
//
// Presentation is delegated to a View so the CLI can render tables while
// tests record what would have been shown.
package workflow
