// Package main hosts the bd3d CLI entrypoint and command graph.
//
// The Cobra command tree maps terminal invocations onto the conversion
// pipeline in internal/workflow and onto its individual stages (analyze,
// encode, mux, validate) for re-running one step against an existing work
// directory. Configuration is resolved lazily per invocation so commands
// such as `config init` work before a config file exists.
//
// Keep this package thin: behavior belongs in the internal packages; commands
// here parse flags, build collaborators, and render results.
package main
