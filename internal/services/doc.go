// Package services defines shared utilities consumed by the pipeline stages
// and the external tool wrappers.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and chunk indexes for
//     logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into consistent process exit codes.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability) stays uniform across the pipeline.
package services
