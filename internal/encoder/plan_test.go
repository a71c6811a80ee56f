package encoder

import (
	"reflect"
	"slices"
	"testing"

	"bd3d/internal/config"
)

func TestFramesPerChunk(t *testing.T) {
	tests := []struct {
		fps     float64
		seconds int
		gop     int
		want    int
	}{
		{24000.0 / 1001.0, 300, 24, 7176},
		{25, 300, 25, 7500},
		{24, 0, 24, 24},
		{24, 1, 0, 24},
		{59.94, 10, 60, 540},
	}
	for _, tt := range tests {
		if got := FramesPerChunk(tt.fps, tt.seconds, tt.gop); got != tt.want {
			t.Errorf("FramesPerChunk(%v, %d, %d) = %d, want %d", tt.fps, tt.seconds, tt.gop, got, tt.want)
		}
	}
}

func TestPlanChunks(t *testing.T) {
	got := PlanChunks(60, 24, 1, 24)
	want := []Chunk{
		{Index: 0, StartFrame: 0, FrameCount: 24},
		{Index: 1, StartFrame: 24, FrameCount: 24},
		{Index: 2, StartFrame: 48, FrameCount: 12},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("PlanChunks = %+v", got)
	}
	if PlanChunks(0, 24, 1, 24) != nil {
		t.Fatal("expected no chunks for zero frames")
	}
	if exact := PlanChunks(48, 24, 1, 24); len(exact) != 2 || exact[1].EndFrame() != 48 {
		t.Fatalf("unexpected exact plan %+v", exact)
	}
	if got := want[1].StartSeconds(24); got != 1 {
		t.Fatalf("StartSeconds = %v", got)
	}
}

func TestEncodeArgs(t *testing.T) {
	enc := config.Encoding{BitrateKbps: 25000, MaxBitrateKbps: 40000, Level: "41", Quality: 4}
	args := EncodeArgs(enc, 24000.0/1001.0, 24, "l.yuv", "r.yuv", "b.264", "d.264")
	want := []string{
		"-i", "l.yuv", "-i", "r.yuv", "-viewoutput", "-o", "b.264", "-o", "d.264",
		"-w", "1920", "-h", "1080", "-f", "23.976", "-level", "4.1", "-profile", "high",
		"-gop", "24", "3", "0", "O", "-vbr", "25000", "40000", "-u", "4", "-sw",
	}
	if !slices.Equal(args, want) {
		t.Fatalf("EncodeArgs =\n%v\nwant\n%v", args, want)
	}
	enc.HardwareAccel = true
	if args := EncodeArgs(enc, 24, 24, "l", "r", "b", "d"); args[len(args)-1] != "-hw" {
		t.Fatalf("expected -hw, got %v", args)
	}
}

func TestCheckBitrates(t *testing.T) {
	enc := config.Encoding{MinViewKbps: 500, MaxViewKbps: 40000, MaxCombinedKbps: 48000}
	// 10 s at 20 Mbit/s per view.
	checks := CheckBitrates(25_000_000, 25_000_000, 10, enc)
	for _, c := range checks {
		if c.Status != CheckPass {
			t.Fatalf("expected pass, got %+v", c)
		}
	}
	checks = CheckBitrates(100, 40_000_000, 10, enc)
	if checks[0].Status != CheckWarn || checks[1].Status != CheckPass || checks[2].Status != CheckPass {
		t.Fatalf("unexpected statuses %+v", checks)
	}
	checks = CheckBitrates(40_000_000, 40_000_000, 10, enc)
	if checks[2].Status != CheckWarn {
		t.Fatalf("combined ceiling not enforced: %+v", checks[2])
	}
	if checks := CheckBitrates(1, 1, 0, enc); len(checks) != 1 || checks[0].Status != CheckSkip {
		t.Fatalf("expected skip without duration, got %+v", checks)
	}
}
