// Package journal persists run and chunk bookkeeping for a work directory in
// SQLite.
//
// The journal lets `bd3d status` report what an interrupted conversion had
// finished and lets the encoder detect chunk files written under a different
// chunk plan. Files on disk stay authoritative: a chunk recorded as encoded
// whose outputs are gone is encoded again.
package journal
