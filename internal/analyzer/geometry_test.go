package analyzer

import "testing"

func TestComputeGeometry(t *testing.T) {
	tests := []struct {
		name          string
		sbs           SBSType
		width, height int
		cropX, top    int
		wantScaled    [2]int
		wantPad       [2]int
		wantRightX    int
		wantEyeWidth  int
	}{
		{"full sbs no bars", FullSBS, 3840, 1080, 0, 0, [2]int{1920, 1080}, [2]int{0, 0}, 1920, 1920},
		{"full sbs scope", FullSBS, 3840, 800, 0, 140, [2]int{1920, 800}, [2]int{0, 140}, 1920, 1920},
		{"half sbs no bars", HalfSBS, 1920, 1080, 0, 0, [2]int{1920, 1080}, [2]int{0, 0}, 960, 960},
		{"half sbs 4:3 pillar", HalfSBS, 1440, 1080, 240, 0, [2]int{1440, 1080}, [2]int{240, 0}, 960, 720},
		{"odd width rounds eye down", FullSBS, 3838, 1080, 0, 0, [2]int{1918, 1080}, [2]int{0, 0}, 1918, 1918},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := ComputeGeometry(tt.sbs, tt.width, tt.height, tt.cropX, tt.top)
			if err != nil {
				t.Fatalf("ComputeGeometry: %v", err)
			}
			if g.EyeWidth != tt.wantEyeWidth || g.RightX != tt.wantRightX {
				t.Fatalf("eye width/right x = %d/%d, want %d/%d", g.EyeWidth, g.RightX, tt.wantEyeWidth, tt.wantRightX)
			}
			if g.ScaledWidth != tt.wantScaled[0] || g.ScaledHeight != tt.wantScaled[1] {
				t.Fatalf("scaled = %dx%d, want %v", g.ScaledWidth, g.ScaledHeight, tt.wantScaled)
			}
			if g.PadX != tt.wantPad[0] || g.PadY != tt.wantPad[1] {
				t.Fatalf("pad = %d,%d, want %v", g.PadX, g.PadY, tt.wantPad)
			}
			if g.ScaledWidth%2 != 0 || g.ScaledHeight%2 != 0 || g.PadX%2 != 0 || g.PadY%2 != 0 {
				t.Fatalf("dimensions must be even: %+v", g)
			}
		})
	}
}

func TestEyeFilter(t *testing.T) {
	g, err := ComputeGeometry(FullSBS, 3840, 800, 0, 140)
	if err != nil {
		t.Fatal(err)
	}
	left := "crop=1920:800:0:140,scale=1920:800,setsar=1,pad=1920:1080:0:140,format=yuv420p"
	right := "crop=1920:800:1920:140,scale=1920:800,setsar=1,pad=1920:1080:0:140,format=yuv420p"
	if got := g.EyeFilter(false); got != left {
		t.Fatalf("left filter = %q", got)
	}
	if got := g.EyeFilter(true); got != right {
		t.Fatalf("right filter = %q", got)
	}
}

func TestComputeGeometryRejectsTinyArea(t *testing.T) {
	if _, err := ComputeGeometry(FullSBS, 2, 1080, 0, 0); err == nil {
		t.Fatal("expected error")
	}
}

func TestClassifySBSAndGOP(t *testing.T) {
	if ClassifySBS(3840, 1080) != FullSBS || ClassifySBS(1920, 1080) != HalfSBS || ClassifySBS(100, 0) != HalfSBS {
		t.Fatal("unexpected SBS classification")
	}
	if GOPLength(23.976) != 24 || GOPLength(0) != 24 || GOPLength(50) != 50 || GOPLength(29.97) != 30 {
		t.Fatal("unexpected GOP length")
	}
}
