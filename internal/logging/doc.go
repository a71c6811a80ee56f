// Package logging assembles structured slog loggers for the bd3d pipeline.
//
// It owns the console and JSON handlers, level and output plumbing, and
// context-aware helpers that tag log lines with the run identifier, pipeline
// stage, and encode chunk. Each conversion run additionally tees its log into
// a JSON file inside the work directory so a failed run can be inspected
// after the terminal scrollback is gone.
package logging
