// Package encoder produces the two H.264/MVC elementary streams of a Blu-ray
// 3D disc from a side-by-side source.
//
// The timeline is split into GOP-aligned chunks. Each chunk is extracted to
// raw left and right yuv420p planes with ffmpeg and encoded by FRIMEncode64
// into a base-view and a dependent-view chunk. Chunks whose outputs already
// exist are skipped, so an interrupted run resumes where it stopped. Base
// chunks are then concatenated into left_eye.264 while dependent chunks are
// handed to the multiplexer as a list.
//
// Sanity checks run after encoding: the two eyes of the first chunk must
// differ, the streams must carry the expected MVC NAL units, and the average
// bitrates must fall inside the configured window.
package encoder
