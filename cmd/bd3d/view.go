package main

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"bd3d/internal/analyzer"
	"bd3d/internal/bdmv"
	"bd3d/internal/encoder"
	"bd3d/internal/mux"
	"bd3d/internal/preflight"
	"bd3d/internal/tracks"
)

// terminalView renders pipeline results on a terminal. The progress bar is
// only drawn when out is a terminal.
type terminalView struct {
	out      io.Writer
	colorize bool
	bar      *progressbar.ProgressBar
}

func newTerminalView(out io.Writer) *terminalView {
	return &terminalView{out: out, colorize: shouldColorize(out)}
}

func (v *terminalView) Preflight(results []preflight.Result) {
	fmt.Fprintln(v.out, renderPreflight(results, v.colorize))
}

func (v *terminalView) Summary(props *analyzer.Properties) {
	fmt.Fprintln(v.out, renderSummary(props))
}

func (v *terminalView) Tracks(sel tracks.Selection) {
	fmt.Fprintln(v.out, renderSelection(sel))
}

func (v *terminalView) EncodeProgress(p encoder.Progress) {
	if v.bar == nil {
		v.bar = progressbar.NewOptions64(int64(p.TotalFrames),
			progressbar.OptionSetWriter(v.out),
			progressbar.OptionSetVisibility(v.colorize),
			progressbar.OptionSetDescription("Encoding"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(250*time.Millisecond),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(v.out) }),
		)
	}
	v.bar.Describe(fmt.Sprintf("Chunk %d/%d %-12s", p.Chunk+1, p.Chunks, p.Phase))
	_ = v.bar.Set64(int64(p.FramesDone))
}

func (v *terminalView) EncodeResult(result *encoder.Result) {
	v.finishBar()
	fmt.Fprintln(v.out, renderEncodeResult(result, v.colorize))
}

func (v *terminalView) MuxResult(result *mux.Result) {
	v.finishBar()
	fmt.Fprintln(v.out, renderMuxResult(result))
}

func (v *terminalView) Validation(report *bdmv.Report) {
	fmt.Fprintln(v.out, renderReport(report, v.colorize))
}

func (v *terminalView) Notice(message string) {
	v.finishBar()
	fmt.Fprintln(v.out, renderStatusLine("Notice", statusInfo, message, v.colorize))
}

func (v *terminalView) finishBar() {
	if v.bar == nil {
		return
	}
	if !v.bar.IsFinished() {
		_ = v.bar.Finish()
	}
	v.bar = nil
}
