// Package analyzer inspects a side-by-side source and derives everything the
// encoder and muxer need: frame rate and count, SBS layout, letterbox crop,
// per-eye scaling geometry, chapters, and the audio and subtitle tracks.
//
// Probing goes through ffprobe and ffmpeg's cropdetect. Crop and chapter
// failures are logged and degrade to "no bars" and "no chapters"; a source
// without a usable video stream is a hard error.
package analyzer
