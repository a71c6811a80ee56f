// Package deps checks that the external tools the conversion pipeline shells
// out to are installed and, for tsMuxeR, recent enough to author Blu-ray 3D.
package deps
