// Package mux assembles the final Blu-ray 3D disc with tsMuxeR.
//
// Selected audio and subtitle tracks are first remuxed out of the source
// with ffmpeg (or pulled directly with mkvextract for Matroska sources) so
// tsMuxeR receives clean elementary streams. A meta file then lists the base
// view, the dependent-view chunks, and every extracted track, and tsMuxeR
// writes either a BDMV folder or an ISO image depending on the output name.
package mux
