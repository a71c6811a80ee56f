package selection

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"bd3d/internal/services"
)

func TestValidateSource(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "movie.MKV")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{video, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if got, err := ValidateSource(video, false); err != nil || got != video {
		t.Fatalf("expected %s, got %q %v", video, got, err)
	}
	if _, err := ValidateSource(other, false); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for .txt, got %v", err)
	}
	if _, err := ValidateSource(other, true); err != nil {
		t.Fatalf("force should accept any file: %v", err)
	}
	if _, err := ValidateSource(filepath.Join(dir, "missing.mkv"), false); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := ValidateSource(dir, true); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected directory rejection, got %v", err)
	}
	if _, err := ValidateSource("  ", false); !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("expected cancellation for empty path, got %v", err)
	}
}

func TestOutputTypeFor(t *testing.T) {
	cases := map[string]OutputType{
		"/out/Movie.ISO": OutputISO,
		"/out/movie.iso": OutputISO,
		"/out/movie":     OutputBDMV,
		"/out/iso":       OutputBDMV,
	}
	for path, want := range cases {
		if got := OutputTypeFor(path); got != want {
			t.Errorf("OutputTypeFor(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestResolveOutput(t *testing.T) {
	dir := t.TempDir()

	iso, err := ResolveOutput(filepath.Join(dir, "nested", "Movie"), OutputISO)
	if err != nil {
		t.Fatalf("ResolveOutput iso: %v", err)
	}
	if iso != filepath.Join(dir, "nested", "Movie.iso") {
		t.Fatalf("unexpected iso path %q", iso)
	}
	if info, err := os.Stat(filepath.Dir(iso)); err != nil || !info.IsDir() {
		t.Fatalf("parent directory not created: %v", err)
	}

	bdmv, err := ResolveOutput(filepath.Join(dir, "disc"), OutputBDMV)
	if err != nil {
		t.Fatalf("ResolveOutput bdmv: %v", err)
	}
	if info, err := os.Stat(bdmv); err != nil || !info.IsDir() {
		t.Fatalf("bdmv directory not created: %v", err)
	}

	if _, err := ResolveOutput(filepath.Join(dir, "disc.iso"), OutputISO); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "taken.iso"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := ResolveOutput(filepath.Join(dir, "taken.iso"), OutputISO); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected directory collision error, got %v", err)
	}
}

func TestPrepareWorkDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b")
	got, err := PrepareWorkDir(target)
	if err != nil || got != target {
		t.Fatalf("PrepareWorkDir = %q, %v", got, err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("work dir not created: %v", err)
	}
}

func TestIsMatroska(t *testing.T) {
	if !IsMatroska("/a/b.MKV") || IsMatroska("/a/b.mp4") {
		t.Fatal("unexpected Matroska detection")
	}
}
