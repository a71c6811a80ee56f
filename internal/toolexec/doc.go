// Package toolexec runs the external command-line tools the pipeline depends on.
//
// The Runner interface is the single seam between bd3d and ffmpeg, ffprobe,
// FRIMEncode64, x264, tsMuxeR and mkvextract. Production code uses Exec, which
// streams stdout/stderr line by line and captures a bounded tail of output for
// error messages; tests inject scripted runners so every stage can be
// exercised without the real binaries installed.
package toolexec
