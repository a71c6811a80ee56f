package tracks

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"bd3d/internal/analyzer"
)

func TestParseSelection(t *testing.T) {
	tests := []struct {
		input   string
		count   int
		want    []int
		wantErr error
	}{
		{"", 3, []int{0, 1, 2}, nil},
		{" ALL ", 2, []int{0, 1}, nil},
		{"none", 3, []int{}, nil},
		{"3,1", 3, []int{2, 0}, nil},
		{" 2 , 2 ,1", 3, []int{1, 0}, nil},
		{"0", 3, nil, ErrOutOfRange},
		{"4", 3, nil, ErrOutOfRange},
		{"1,x", 3, nil, ErrInvalidFormat},
		{"1,,2", 3, nil, ErrInvalidFormat},
	}
	for _, tt := range tests {
		got, err := ParseSelection(tt.input, tt.count)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseSelection(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSelection(%q): %v", tt.input, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseSelection(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

var sampleAudio = []analyzer.Track{
	{Index: 1, Codec: "eac3", Language: "eng", Channels: 6},
	{Index: 2, Codec: "ac3", Language: "spa"},
	{Index: 3, Codec: "aac", Language: "fre"},
}

var sampleSubs = []analyzer.Track{
	{Index: 4, Codec: "subrip", Language: "eng"},
	{Index: 5, Codec: "hdmv_pgs_subtitle", Language: "spa"},
}

func TestChooseRepromptsUntilValid(t *testing.T) {
	var out bytes.Buffer
	got, err := Choose(strings.NewReader("9\nabc\n2\n"), &out, Audio, sampleAudio)
	if err != nil {
		t.Fatalf("Choose: %v", err)
	}
	if len(got) != 1 || got[0].Index != 2 {
		t.Fatalf("unexpected selection %+v", got)
	}
	text := out.String()
	if strings.Count(text, "[x]") != 2 {
		t.Fatalf("expected two error lines, got:\n%s", text)
	}
	if !strings.Contains(text, "[1] - Codec: eac3, Language: eng (English), Channels: 6") {
		t.Fatalf("missing track listing:\n%s", text)
	}
	if !strings.Contains(text, "unsupported by tsMuxeR") {
		t.Fatalf("aac track should be flagged:\n%s", text)
	}
}

func TestChooseEmptyList(t *testing.T) {
	var out bytes.Buffer
	got, err := Choose(strings.NewReader("1\n"), &out, Subtitle, nil)
	if err != nil || got != nil {
		t.Fatalf("expected no tracks, got %v %v", got, err)
	}
	if !strings.Contains(out.String(), "No subtitle streams found.") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestInteractiveSharesReaderAndSkipsUnsupported(t *testing.T) {
	var out bytes.Buffer
	sel, err := Interactive(strings.NewReader("3,1\nnone\n"), &out, sampleAudio, sampleSubs)
	if err != nil {
		t.Fatalf("Interactive: %v", err)
	}
	if len(sel.Audio) != 1 || sel.Audio[0].Index != 1 {
		t.Fatalf("unexpected audio %+v", sel.Audio)
	}
	if len(sel.Skipped) != 1 || sel.Skipped[0].Codec != "aac" {
		t.Fatalf("unexpected skipped %+v", sel.Skipped)
	}
	if len(sel.Subtitles) != 0 {
		t.Fatalf("expected no subtitles, got %+v", sel.Subtitles)
	}
}

func TestInteractiveEOFSelectsAll(t *testing.T) {
	sel, err := Interactive(strings.NewReader(""), &bytes.Buffer{}, sampleAudio[:2], sampleSubs)
	if err != nil {
		t.Fatalf("Interactive: %v", err)
	}
	if len(sel.Audio) != 2 || len(sel.Subtitles) != 2 {
		t.Fatalf("expected all tracks, got %+v", sel)
	}
}

func TestFromSpecs(t *testing.T) {
	sel, err := FromSpecs("2", "all", sampleAudio, sampleSubs)
	if err != nil {
		t.Fatalf("FromSpecs: %v", err)
	}
	if len(sel.Audio) != 1 || sel.Audio[0].Language != "spa" || len(sel.Subtitles) != 2 {
		t.Fatalf("unexpected selection %+v", sel)
	}
	if _, err := FromSpecs("7", "", sampleAudio, sampleSubs); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected range error, got %v", err)
	}
	if _, err := FromSpecs("", "x", sampleAudio, sampleSubs); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected format error, got %v", err)
	}
}
