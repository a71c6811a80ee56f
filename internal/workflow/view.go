package workflow

import (
	"bd3d/internal/analyzer"
	"bd3d/internal/bdmv"
	"bd3d/internal/encoder"
	"bd3d/internal/mux"
	"bd3d/internal/preflight"
	"bd3d/internal/tracks"
)

// View presents pipeline results to the user.
type View interface {
	Preflight(results []preflight.Result)
	Summary(props *analyzer.Properties)
	Tracks(sel tracks.Selection)
	EncodeProgress(p encoder.Progress)
	EncodeResult(result *encoder.Result)
	MuxResult(result *mux.Result)
	Validation(report *bdmv.Report)
	Notice(message string)
}

// NopView discards everything.
type NopView struct{}

func (NopView) Preflight([]preflight.Result)    {}
func (NopView) Summary(*analyzer.Properties)    {}
func (NopView) Tracks(tracks.Selection)         {}
func (NopView) EncodeProgress(encoder.Progress) {}
func (NopView) EncodeResult(*encoder.Result)    {}
func (NopView) MuxResult(*mux.Result)           {}
func (NopView) Validation(*bdmv.Report)         {}
func (NopView) Notice(string)                   {}
