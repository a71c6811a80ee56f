package encoder

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"bd3d/internal/analyzer"
	"bd3d/internal/config"
	"bd3d/internal/journal"
	"bd3d/internal/services"
	"bd3d/internal/testsupport"
	"bd3d/internal/workdir"
)

const testFrameBytes = 8

type encodeFixture struct {
	cfg     *config.Config
	runner  *testsupport.FakeRunner
	layout  workdir.Layout
	props   *analyzer.Properties
	journal *journal.Journal
}

func newEncodeFixture(t *testing.T) *encodeFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithChunkSeconds(1))
	if err := os.MkdirAll(cfg.Paths.WorkDir, 0o755); err != nil {
		t.Fatal(err)
	}
	geometry, err := analyzer.ComputeGeometry(analyzer.FullSBS, 3840, 1080, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	j, err := journal.Open(filepath.Join(cfg.Paths.WorkDir, workdir.JournalName))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = j.Close() })

	f := &encodeFixture{
		cfg:     cfg,
		runner:  testsupport.NewFakeRunner(),
		layout:  workdir.New(cfg.Paths.WorkDir),
		journal: j,
		props: &analyzer.Properties{
			TotalFrames: 60,
			FPS:         24,
			GOP:         24,
			Geometry:    geometry,
		},
	}
	f.runner.Handle("ffmpeg", extractHandler(t, 0))
	f.runner.Handle("FRIMEncode64", frimHandler(t, nil))
	return f
}

// extractHandler writes frames*testFrameBytes bytes, distinct per eye. short
// removes that many frames from every non-final chunk.
func extractHandler(t *testing.T, short int) testsupport.Handler {
	return func(_ context.Context, call testsupport.Call) (string, error) {
		out := call.Args[len(call.Args)-1]
		frames, _ := strconv.Atoi(testsupport.ArgAfter(call.Args, "-frames:v"))
		if short > 0 && frames == 24 {
			frames -= short
		}
		fill := byte('L')
		if strings.HasSuffix(out, "_right.yuv") {
			fill = 'R'
		}
		testsupport.WriteBytes(t, out, bytes.Repeat([]byte{fill}, frames*testFrameBytes))
		return "", nil
	}
}

// frimHandler writes a base and a dependent stream. fail, when set, decides
// per call whether the encoder exits non-zero.
func frimHandler(t *testing.T, fail func(base string) bool) testsupport.Handler {
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
		if fail != nil && fail(outputs[0]) {
			testsupport.WriteBytes(t, outputs[0], []byte{0x00})
			return "", errors.New("FRIMEncode64 exited with code 1")
		}
		testsupport.WriteBytes(t, outputs[0], testsupport.AnnexB(9, 7, 8, 5, 1))
		testsupport.WriteBytes(t, outputs[1], testsupport.AnnexB(15, 8, 20))
		return "frame 24 done\n", nil
	}
}

func (f *encodeFixture) encoder(opts ...Option) *Encoder {
	opts = append([]Option{WithJournal(f.journal)}, opts...)
	e := New(f.cfg, f.runner, opts...)
	e.frameBytes = testFrameBytes
	return e
}

func TestEncodeAssemblesStreams(t *testing.T) {
	f := newEncodeFixture(t)
	var last Progress
	result, err := f.encoder(WithProgress(func(p Progress) { last = p })).
		Encode(context.Background(), "/src/movie.mkv", f.props, f.layout)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if result.Encoded != 3 || result.Resumed != 0 || len(result.Chunks) != 3 {
		t.Fatalf("unexpected result %+v", result)
	}
	wantDeps := []string{f.layout.ChunkDep(0), f.layout.ChunkDep(1), f.layout.ChunkDep(2)}
	for i, dep := range result.DependentChunks {
		if dep != wantDeps[i] {
			t.Fatalf("dependent chunk %d = %s, want %s", i, dep, wantDeps[i])
		}
	}
	baseSize := int64(len(testsupport.AnnexB(9, 7, 8, 5, 1)))
	if result.BaseBytes != 3*baseSize {
		t.Fatalf("left eye holds %d bytes, want %d", result.BaseBytes, 3*baseSize)
	}
	if info, err := os.Stat(f.layout.LeftEye()); err != nil || info.Size() != 3*baseSize {
		t.Fatalf("left_eye.264 missing or wrong size: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := os.Stat(f.layout.LeftYUV(i)); !os.IsNotExist(err) {
			t.Fatalf("yuv planes of chunk %d not removed", i)
		}
	}
	if result.Sanity.Failed() {
		t.Fatalf("unexpected sanity failure %+v", result.Sanity)
	}
	if result.Sanity.Checks[0].Name != "eye difference" || result.Sanity.Checks[0].Status != CheckPass {
		t.Fatalf("eye check missing: %+v", result.Sanity.Checks)
	}

	extracts := f.runner.CallsTo("ffmpeg")
	if len(extracts) != 6 {
		t.Fatalf("expected 6 extractions, got %d", len(extracts))
	}
	if got := testsupport.ArgAfter(extracts[2].Args, "-ss"); got != "1.000000" {
		t.Fatalf("chunk 1 seek = %s", got)
	}
	if got := testsupport.ArgAfter(extracts[5].Args, "-frames:v"); got != "12" {
		t.Fatalf("last chunk frames = %s", got)
	}
	if !strings.HasPrefix(testsupport.ArgAfter(extracts[1].Args, "-vf"), "crop=1920:1080:1920:0,") {
		t.Fatalf("right eye filter wrong: %v", extracts[1].Args)
	}
	if len(f.runner.CallsTo("FRIMEncode64")) != 3 {
		t.Fatal("expected three encoder runs")
	}

	if last.Phase != PhaseConcat || last.Percent() != 100 {
		t.Fatalf("unexpected final progress %+v", last)
	}
	counts, _ := f.journal.ChunkCounts(context.Background())
	if counts[journal.ChunkEncoded] != 3 {
		t.Fatalf("journal counts %v", counts)
	}
}

func TestEncodeResumesFinishedChunks(t *testing.T) {
	f := newEncodeFixture(t)
	testsupport.WriteBytes(t, f.layout.ChunkBase(0), testsupport.AnnexB(7, 8, 5))
	testsupport.WriteBytes(t, f.layout.ChunkDep(0), testsupport.AnnexB(15, 20))

	result, err := f.encoder().Encode(context.Background(), "/src/movie.mkv", f.props, f.layout)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if result.Resumed != 1 || result.Encoded != 2 {
		t.Fatalf("expected 1 resumed and 2 encoded, got %+v", result)
	}
	if len(f.runner.CallsTo("FRIMEncode64")) != 2 {
		t.Fatal("resumed chunk was encoded again")
	}
}

func TestEncodeReencodesChunkFromDifferentPlan(t *testing.T) {
	f := newEncodeFixture(t)
	testsupport.WriteBytes(t, f.layout.ChunkBase(0), testsupport.AnnexB(7, 8, 5))
	testsupport.WriteBytes(t, f.layout.ChunkDep(0), testsupport.AnnexB(15, 20))
	if err := f.journal.RecordChunk(context.Background(), journal.Chunk{Index: 0, StartFrame: 0, FrameCount: 48, Status: journal.ChunkEncoded}); err != nil {
		t.Fatal(err)
	}

	result, err := f.encoder().Encode(context.Background(), "/src/movie.mkv", f.props, f.layout)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if result.Resumed != 0 || result.Encoded != 3 {
		t.Fatalf("expected full re-encode, got %+v", result)
	}
}

func TestEncodeDropsChunksBeyondPlan(t *testing.T) {
	f := newEncodeFixture(t)
	ctx := context.Background()
	testsupport.WriteBytes(t, f.layout.ChunkBase(7), testsupport.AnnexB(7, 8, 5))
	testsupport.WriteBytes(t, f.layout.ChunkDep(7), testsupport.AnnexB(15, 20))
	if err := f.journal.RecordChunk(ctx, journal.Chunk{Index: 7, StartFrame: 168, FrameCount: 24, Status: journal.ChunkEncoded}); err != nil {
		t.Fatal(err)
	}

	result, err := f.encoder().Encode(ctx, "/src/movie.mkv", f.props, f.layout)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(result.DependentChunks) != 3 {
		t.Fatalf("expected 3 dependent chunks, got %v", result.DependentChunks)
	}
	for _, path := range []string{f.layout.ChunkBase(7), f.layout.ChunkDep(7)} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Fatalf("chunk file %s outside the plan should be removed: %v", filepath.Base(path), err)
		}
	}
	onDisk, err := f.layout.DependentChunks()
	if err != nil || len(onDisk) != len(result.DependentChunks) {
		t.Fatalf("dependent chunks on disk %v do not match the plan %v (%v)", onDisk, result.DependentChunks, err)
	}
	if rec, _ := f.journal.Chunk(ctx, 7); rec != nil {
		t.Fatalf("journal still records chunk 7: %+v", rec)
	}
}

func TestEncodeChunkFailureIsolation(t *testing.T) {
	failChunkOne := func(base string) bool { return strings.Contains(base, "temp_chunk_1_") }

	t.Run("stops at first failure by default", func(t *testing.T) {
		f := newEncodeFixture(t)
		f.runner.Handle("FRIMEncode64", frimHandler(t, failChunkOne))
		_, err := f.encoder().Encode(context.Background(), "/src/movie.mkv", f.props, f.layout)
		if !errors.Is(err, services.ErrExternalTool) || !strings.Contains(err.Error(), "1 of 3 chunks failed") {
			t.Fatalf("unexpected error %v", err)
		}
		if calls := len(f.runner.CallsTo("FRIMEncode64")); calls != 2 {
			t.Fatalf("expected encoding to stop after chunk 1, got %d runs", calls)
		}
		if _, err := os.Stat(f.layout.ChunkBase(1)); !os.IsNotExist(err) {
			t.Fatal("partial output of failed chunk kept")
		}
		if _, err := os.Stat(f.layout.LeftEye()); !os.IsNotExist(err) {
			t.Fatal("left eye assembled despite failures")
		}
		rec, _ := f.journal.Chunk(context.Background(), 1)
		if rec == nil || rec.Status != journal.ChunkFailed || rec.ErrorMessage == "" {
			t.Fatalf("failed chunk not journaled: %+v", rec)
		}
	})

	t.Run("continues within the failure budget", func(t *testing.T) {
		f := newEncodeFixture(t)
		f.cfg.Encoding.MaxFailedChunks = 1
		f.runner.Handle("FRIMEncode64", frimHandler(t, failChunkOne))
		_, err := f.encoder().Encode(context.Background(), "/src/movie.mkv", f.props, f.layout)
		if err == nil {
			t.Fatal("expected failure report")
		}
		if calls := len(f.runner.CallsTo("FRIMEncode64")); calls != 3 {
			t.Fatalf("expected remaining chunks to run, got %d runs", calls)
		}
		if !f.layoutHas(f.layout.ChunkDep(2)) {
			t.Fatal("chunk after the failure was not encoded")
		}
	})
}

func (f *encodeFixture) layoutHas(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

func TestEncodeRejectsIdenticalEyes(t *testing.T) {
	f := newEncodeFixture(t)
	f.runner.Handle("ffmpeg", func(_ context.Context, call testsupport.Call) (string, error) {
		frames, _ := strconv.Atoi(testsupport.ArgAfter(call.Args, "-frames:v"))
		testsupport.WriteBytes(t, call.Args[len(call.Args)-1], bytes.Repeat([]byte{'S'}, frames*testFrameBytes))
		return "", nil
	})
	result, err := f.encoder().Encode(context.Background(), "/src/flat.mkv", f.props, f.layout)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if result == nil || !result.Sanity.Failed() {
		t.Fatal("expected failed eye check in result")
	}
	if len(f.runner.CallsTo("FRIMEncode64")) != 0 {
		t.Fatal("encoder ran on identical eyes")
	}
}

func TestEncodeDetectsMissingMVCUnits(t *testing.T) {
	f := newEncodeFixture(t)
	f.runner.Handle("FRIMEncode64", func(_ context.Context, call testsupport.Call) (string, error) {
		var outputs []string
		for i := 0; i+1 < len(call.Args); i++ {
			if call.Args[i] == "-o" {
				outputs = append(outputs, call.Args[i+1])
			}
		}
		testsupport.WriteBytes(t, outputs[0], testsupport.AnnexB(7, 8, 5))
		testsupport.WriteBytes(t, outputs[1], testsupport.AnnexB(7, 8, 1))
		return "", nil
	})
	result, err := f.encoder().Encode(context.Background(), "/src/movie.mkv", f.props, f.layout)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected sanity failure, got %v", err)
	}
	var found bool
	for _, check := range result.Sanity.Checks {
		if check.Name == "dependent view MVC units" && check.Status == CheckFail {
			found = true
		}
	}
	if !found {
		t.Fatalf("MVC check did not fail: %+v", result.Sanity.Checks)
	}
}

func TestEncodeShortExtractionFailsChunk(t *testing.T) {
	f := newEncodeFixture(t)
	f.runner.Handle("ffmpeg", extractHandler(t, 2))
	_, err := f.encoder().Encode(context.Background(), "/src/movie.mkv", f.props, f.layout)
	if err == nil || !strings.Contains(err.Error(), "expected 24") {
		t.Fatalf("expected frame count error, got %v", err)
	}
}

func TestEncodeCancelled(t *testing.T) {
	f := newEncodeFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.encoder().Encode(ctx, "/src/movie.mkv", f.props, f.layout); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestEncodeRequiresFrames(t *testing.T) {
	f := newEncodeFixture(t)
	f.props.TotalFrames = 0
	if _, err := f.encoder().Encode(context.Background(), "/src/movie.mkv", f.props, f.layout); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
