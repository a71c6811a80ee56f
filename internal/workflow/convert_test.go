package workflow_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"

	"bd3d/internal/analyzer"
	"bd3d/internal/bdmv"
	"bd3d/internal/config"
	"bd3d/internal/encoder"
	"bd3d/internal/journal"
	"bd3d/internal/mux"
	"bd3d/internal/selection"
	"bd3d/internal/services"
	"bd3d/internal/testsupport"
	"bd3d/internal/workdir"
	"bd3d/internal/workflow"
)

const sourceProbe = `{"streams":[
 {"index":0,"codec_type":"video","codec_name":"h264","width":3840,"height":1080,"display_aspect_ratio":"32:9","r_frame_rate":"24/1","nb_frames":"2"},
 {"index":1,"codec_type":"audio","codec_name":"ac3","channels":6,"tags":{"language":"eng"}},
 {"index":2,"codec_type":"subtitle","codec_name":"subrip","tags":{"language":"ger"}}],
 "format":{"duration":"0.083333"}}`

const discStreams = `{"streams":[
 {"index":0,"codec_type":"video","codec_name":"h264","profile":"High","r_frame_rate":"24/1","level":41,"sample_aspect_ratio":"1:1","pix_fmt":"yuv420p","refs":4,"has_b_frames":2},
 {"index":1,"codec_type":"video","codec_name":"h264","profile":"Stereo High","r_frame_rate":"24/1","level":41,"pix_fmt":"yuv420p"}]}`

const tsMuxerBanner = "tsMuxeR version git-2024-05-01. github.com/justdan96/tsMuxer\n"

type convertFixture struct {
	cfg    *config.Config
	runner *testsupport.FakeRunner
	source string
	output string
	view   *recordingView
}

func newConvertFixture(t *testing.T) *convertFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	source := filepath.Join(testsupport.BaseDir(cfg), "media", "movie.mp4")
	testsupport.WriteFile(t, source, 1024)

	f := &convertFixture{
		cfg:    cfg,
		runner: testsupport.NewFakeRunner(),
		source: source,
		output: filepath.Join(cfg.Paths.OutputDir, "movie 3D"),
		view:   &recordingView{},
	}
	f.runner.Handle("ffprobe", f.ffprobe("2"))
	f.runner.Handle("ffmpeg", ffmpegHandler(t))
	f.runner.Handle("FRIMEncode64", frimHandler(t))
	f.runner.Handle("tsmuxer", tsmuxerHandler(t))
	return f
}

func (f *convertFixture) ffprobe(outputFrames string) testsupport.Handler {
	return func(_ context.Context, call testsupport.Call) (string, error) {
		switch {
		case slices.Contains(call.Args, "-show_chapters"):
			return `{"chapters":[]}`, nil
		case slices.Contains(call.Args, "-show_streams"):
			return discStreams, nil
		case slices.Contains(call.Args, "-show_frames"):
			return "0.000000\n0.041667\n", nil
		case slices.Contains(call.Args, "-count_frames"):
			return outputFrames + "\n", nil
		}
		return sourceProbe, nil
	}
}

func (f *convertFixture) converter(prompter *selection.Prompter) *workflow.Converter {
	if prompter == nil {
		prompter = selection.New(strings.NewReader(""), io.Discard, selection.WithInteractive(false))
	}
	return workflow.NewConverter(f.cfg, f.runner, prompter, workflow.WithView(f.view))
}

func (f *convertFixture) options() workflow.Options {
	return workflow.Options{
		Source:       f.source,
		WorkDir:      f.cfg.Paths.WorkDir,
		Output:       f.output,
		AudioSpec:    "all",
		SubtitleSpec: "all",
	}
}

// ffmpegHandler answers crop detection with nothing, writes eye planes for
// extraction calls, and writes a stub stream for every other call.
func ffmpegHandler(t *testing.T) testsupport.Handler {
	return func(_ context.Context, call testsupport.Call) (string, error) {
		out := call.Args[len(call.Args)-1]
		switch {
		case strings.Contains(call.Joined(), "cropdetect"):
			return "", nil
		case slices.Contains(call.Args, "-frames:v"):
			frames, _ := strconv.Atoi(testsupport.ArgAfter(call.Args, "-frames:v"))
			fill := byte('L')
			if strings.HasSuffix(out, "_right.yuv") {
				fill = 'R'
			}
			return "", writePlane(out, fill, int64(frames)*analyzer.EyeFrameBytes)
		}
		testsupport.WriteBytes(t, out, []byte("stream"))
		return "", nil
	}
}

// writePlane writes a sparse plane file whose first byte tells the eyes
// apart.
func writePlane(path string, fill byte, size int64) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := file.Write([]byte{fill}); err != nil {
		file.Close()
		return err
	}
	if err := file.Truncate(size); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func frimHandler(t *testing.T) testsupport.Handler {
	return func(_ context.Context, call testsupport.Call) (string, error) {
		var outputs []string
		for i := 0; i+1 < len(call.Args); i++ {
			if call.Args[i] == "-o" {
				outputs = append(outputs, call.Args[i+1])
			}
		}
		if len(outputs) != 2 {
			t.Fatalf("expected two outputs, got %v", call.Args)
		}
		testsupport.WriteBytes(t, outputs[0], testsupport.AnnexB(9, 7, 8, 5, 1))
		testsupport.WriteBytes(t, outputs[1], testsupport.AnnexB(15, 8, 20))
		return "", nil
	}
}

// tsmuxerHandler prints the version banner when run bare and otherwise
// writes a complete disc tree into the output.
func tsmuxerHandler(t *testing.T) testsupport.Handler {
	return func(_ context.Context, call testsupport.Call) (string, error) {
		if len(call.Args) == 0 {
			return tsMuxerBanner, nil
		}
		writeDisc(t, call.Args[1])
		return "100.0% complete\n", nil
	}
}

func writeDisc(t *testing.T, root string) {
	t.Helper()
	for _, rel := range bdmv.RequiredPaths() {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if rel == "CERTIFICATE" {
			if err := os.MkdirAll(path, 0o755); err != nil {
				t.Fatal(err)
			}
			continue
		}
		testsupport.WriteFile(t, path, 8)
	}
	testsupport.WriteBytes(t, filepath.Join(root, filepath.FromSlash(bdmv.MainPlaylist)), []byte("MPLS0200"))

	packet := func(pid uint16, nal int) []byte {
		p := bytes.Repeat([]byte{0xFF}, 192)
		p[4], p[5], p[6], p[7] = 0x47, byte(pid>>8)&0x1F, byte(pid), 0x10
		copy(p[8:], testsupport.AnnexB(nal))
		return p
	}
	testsupport.WriteBytes(t, filepath.Join(root, filepath.FromSlash(bdmv.MainStream)),
		append(packet(bdmv.BaseVideoPID, 5), packet(bdmv.DependentVideoPID, 20)...))
}

type recordingView struct {
	workflow.NopView
	summaries int
	notices   []string
	progress  []encoder.Progress
	mux       *mux.Result
	report    *bdmv.Report
}

func (v *recordingView) Summary(*analyzer.Properties)      { v.summaries++ }
func (v *recordingView) Notice(message string)             { v.notices = append(v.notices, message) }
func (v *recordingView) EncodeProgress(p encoder.Progress) { v.progress = append(v.progress, p) }
func (v *recordingView) MuxResult(result *mux.Result)      { v.mux = result }
func (v *recordingView) Validation(report *bdmv.Report)    { v.report = report }

func lastRun(t *testing.T, layout workdir.Layout) journal.Run {
	t.Helper()
	j, err := journal.Open(layout.Journal())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer j.Close()
	runs, err := j.Runs(context.Background(), 1)
	if err != nil || len(runs) != 1 {
		t.Fatalf("list runs: %v (%d runs)", err, len(runs))
	}
	return runs[0]
}

func TestConvertBuildsDisc(t *testing.T) {
	f := newConvertFixture(t)

	outcome, err := f.converter(nil).Convert(context.Background(), f.options())
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if outcome.Declined || outcome.ReusedEncode || outcome.WorkDirRemoved {
		t.Fatalf("unexpected outcome flags %+v", outcome)
	}
	if outcome.Props == nil || outcome.Props.SBS != analyzer.FullSBS || outcome.Props.TotalFrames != 2 {
		t.Fatalf("unexpected properties %+v", outcome.Props)
	}
	if outcome.Encode == nil || outcome.Encode.Encoded != 1 {
		t.Fatalf("unexpected encode result %+v", outcome.Encode)
	}
	if outcome.Mux == nil || outcome.Mux.Audio != 1 || outcome.Mux.Subtitles != 1 {
		t.Fatalf("unexpected mux result %+v", outcome.Mux)
	}
	if outcome.Validation == nil || !outcome.Validation.Passed() {
		t.Fatalf("expected a passing validation, got %+v", outcome.Validation)
	}
	if outcome.Output != f.output {
		t.Fatalf("output = %s, want %s", outcome.Output, f.output)
	}
	if f.view.summaries != 1 || f.view.mux != outcome.Mux || f.view.report != outcome.Validation || len(f.view.progress) == 0 {
		t.Fatalf("view not updated: %+v", f.view)
	}

	layout := workdir.New(outcome.WorkDir)
	if _, err := os.Stat(layout.LeftEye()); !os.IsNotExist(err) {
		t.Fatalf("left eye stream should be removed after a successful mux: %v", err)
	}
	run := lastRun(t, layout)
	if run.ID != outcome.RunID || run.Status != journal.RunCompleted || run.Stage != "validate" || run.OutputPath != f.output {
		t.Fatalf("unexpected journal run %+v", run)
	}
}

func TestConvertDeclinedConfirmation(t *testing.T) {
	f := newConvertFixture(t)
	prompter := selection.New(strings.NewReader("n\n"), io.Discard, selection.WithInteractive(true))

	outcome, err := f.converter(prompter).Convert(context.Background(), f.options())
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !outcome.Declined {
		t.Fatal("expected the conversion to be declined")
	}
	if len(f.runner.CallsTo("FRIMEncode64")) != 0 || len(f.runner.CallsTo("tsmuxer")) != 1 {
		t.Fatalf("no work expected after declining, got %d calls", len(f.runner.Calls()))
	}
	if _, err := os.Stat(f.cfg.Paths.WorkDir); !os.IsNotExist(err) {
		t.Fatalf("work directory should not be created: %v", err)
	}
}

func TestConvertReusesCompleteEncode(t *testing.T) {
	f := newConvertFixture(t)
	layout := workdir.New(f.cfg.Paths.WorkDir)
	testsupport.WriteBytes(t, layout.LeftEye(), testsupport.AnnexB(7, 5))
	testsupport.WriteBytes(t, layout.ChunkDep(0), testsupport.AnnexB(15, 20))

	opts := f.options()
	opts.Reuse = workflow.ReuseAlways
	outcome, err := f.converter(nil).Convert(context.Background(), opts)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !outcome.ReusedEncode || outcome.Encode != nil {
		t.Fatalf("expected the existing encode to be reused, got %+v", outcome)
	}
	if calls := f.runner.CallsTo("FRIMEncode64"); len(calls) != 0 {
		t.Fatalf("encoder ran %d times", len(calls))
	}
	if !slices.ContainsFunc(f.view.notices, func(n string) bool { return strings.Contains(n, "existing streams") }) {
		t.Fatalf("expected a reuse notice, got %v", f.view.notices)
	}
}

func TestConvertDiscardsEncodeWhenReuseRefused(t *testing.T) {
	f := newConvertFixture(t)
	f.cfg.Muxing.KeepIntermediates = true
	layout := workdir.New(f.cfg.Paths.WorkDir)
	testsupport.WriteBytes(t, layout.LeftEye(), testsupport.AnnexB(7, 5))
	testsupport.WriteBytes(t, layout.ChunkBase(4), testsupport.AnnexB(7, 5))
	testsupport.WriteBytes(t, layout.ChunkDep(4), testsupport.AnnexB(15, 20))

	opts := f.options()
	opts.Reuse = workflow.ReuseNever
	outcome, err := f.converter(nil).Convert(context.Background(), opts)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if outcome.ReusedEncode || outcome.Encode == nil || outcome.Encode.Encoded != 1 {
		t.Fatalf("expected a fresh encode, got %+v", outcome)
	}
	if _, err := os.Stat(layout.ChunkDep(4)); !os.IsNotExist(err) {
		t.Fatalf("stale chunk should be discarded: %v", err)
	}
	deps, err := layout.DependentChunks()
	if err != nil || len(deps) != 1 || deps[0] != layout.ChunkDep(0) {
		t.Fatalf("unexpected dependent chunks %v (%v)", deps, err)
	}
}

func TestConvertDiscardsEncodeOfOtherSource(t *testing.T) {
	f := newConvertFixture(t)
	ctx := context.Background()
	ws, err := workflow.OpenWorkspace(ctx, f.cfg.Paths.WorkDir, "/media/other.mkv", "info", nil)
	if err != nil {
		t.Fatalf("OpenWorkspace: %v", err)
	}
	if err := ws.Journal.RecordChunk(ctx, journal.Chunk{Index: 0, RunID: ws.Run.ID, FrameCount: 2, Status: journal.ChunkEncoded}); err != nil {
		t.Fatalf("RecordChunk: %v", err)
	}
	ws.Finish(ctx, nil)
	layout := workdir.New(f.cfg.Paths.WorkDir)
	testsupport.WriteBytes(t, layout.LeftEye(), testsupport.AnnexB(7, 5))
	testsupport.WriteBytes(t, layout.ChunkBase(0), testsupport.AnnexB(7, 5))
	testsupport.WriteBytes(t, layout.ChunkDep(0), testsupport.AnnexB(15, 20))

	opts := f.options()
	opts.Reuse = workflow.ReuseAlways
	outcome, err := f.converter(nil).Convert(ctx, opts)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if outcome.ReusedEncode || outcome.Encode == nil || outcome.Encode.Encoded != 1 {
		t.Fatalf("expected a fresh encode, got %+v", outcome)
	}
	if calls := f.runner.CallsTo("FRIMEncode64"); len(calls) != 1 {
		t.Fatalf("encoder ran %d times, want 1", len(calls))
	}
	if !slices.ContainsFunc(f.view.notices, func(n string) bool { return strings.Contains(n, "different source") }) {
		t.Fatalf("expected a foreign encode notice, got %v", f.view.notices)
	}
}

func TestConvertFailsValidation(t *testing.T) {
	f := newConvertFixture(t)
	f.runner.Handle("ffprobe", f.ffprobe("50"))

	outcome, err := f.converter(nil).Convert(context.Background(), f.options())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if code := services.ExitCode(err); code != services.ExitValidation {
		t.Fatalf("exit code = %d, want %d", code, services.ExitValidation)
	}
	if outcome.Validation == nil || outcome.Validation.Count(bdmv.StatusFail) != 1 {
		t.Fatalf("expected one failed check, got %+v", outcome.Validation)
	}
	run := lastRun(t, workdir.New(outcome.WorkDir))
	if run.Status != journal.RunFailed || run.Stage != "validate" || run.ErrorMessage == "" {
		t.Fatalf("unexpected journal run %+v", run)
	}

	opts := f.options()
	opts.SkipValidation = true
	f.view = &recordingView{}
	if _, err := f.converter(nil).Convert(context.Background(), opts); err != nil {
		t.Fatalf("Convert with validation skipped: %v", err)
	}
	if f.view.report != nil {
		t.Fatal("validation should not run when skipped")
	}
}

func TestConvertRequiresTools(t *testing.T) {
	f := newConvertFixture(t)
	f.cfg.Tools.FRIMEncode = filepath.Join(testsupport.BaseDir(f.cfg), "missing", "FRIMEncode64")

	_, err := f.converter(nil).Convert(context.Background(), f.options())
	if !errors.Is(err, services.ErrDependency) {
		t.Fatalf("expected a dependency error, got %v", err)
	}
	if !strings.Contains(err.Error(), "FRIMEncode64") {
		t.Fatalf("error should name the missing tool: %v", err)
	}
	if calls := f.runner.CallsTo("ffprobe"); len(calls) != 0 {
		t.Fatalf("analysis should not start, got %d ffprobe calls", len(calls))
	}
}

func TestConvertRejectsBadTrackSpec(t *testing.T) {
	f := newConvertFixture(t)
	opts := f.options()
	opts.AudioSpec = "7"

	_, err := f.converter(nil).Convert(context.Background(), opts)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if _, statErr := os.Stat(f.cfg.Paths.WorkDir); !os.IsNotExist(statErr) {
		t.Fatalf("work directory should not be created: %v", statErr)
	}
}
