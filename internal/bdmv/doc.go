// Package bdmv validates a Blu-ray 3D folder written by tsMuxeR: the
// mandatory file layout, the base and dependent video streams, timestamp
// continuity, the playlist header, the decoded frame count, and the MVC
// units inside the main transport stream.
//
// Every check produces a Check value so callers can render the full report
// even when early checks fail.
package bdmv
