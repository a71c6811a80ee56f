// Package preflight runs the checks performed before a conversion starts:
// tool availability, the tsMuxeR build, directory permissions, and scratch
// space in the work directory.
package preflight
