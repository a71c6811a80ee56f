// Package tracks chooses which audio and subtitle streams of the source are
// carried onto the disc.
package tracks

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"bd3d/internal/analyzer"
	"bd3d/internal/language"
	"bd3d/internal/mux"
	"bd3d/internal/selection"
)

// Kind names a stream category.
type Kind string

const (
	Audio    Kind = "Audio"
	Subtitle Kind = "Subtitle"
)

func (k Kind) lower() string { return strings.ToLower(string(k)) }

// Selection errors.
var (
	ErrInvalidFormat = errors.New("invalid selection format")
	ErrOutOfRange    = errors.New("track number out of range")
)

// Selection is the chosen tracks, in mux order.
type Selection struct {
	Audio     []analyzer.Track
	Subtitles []analyzer.Track
	// Skipped holds chosen tracks whose codec the multiplexer cannot carry.
	Skipped []analyzer.Track
}

// ParseSelection interprets a selection for count tracks and returns
// zero-based indices. "" and "all" select every track, "none" selects none,
// and a comma list of 1-based numbers selects those tracks in the given
// order; repeated numbers are kept once.
func ParseSelection(input string, count int) ([]int, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	switch input {
	case "", "all":
		all := make([]int, count)
		for i := range all {
			all[i] = i
		}
		return all, nil
	case "none":
		return []int{}, nil
	}
	seen := make(map[int]bool)
	var out []int
	for _, part := range strings.Split(input, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("%w: enter numbers separated by commas (e.g. 1,2)", ErrInvalidFormat)
		}
		if n < 1 || n > count {
			return nil, fmt.Errorf("%w: use numbers from 1 to %d", ErrOutOfRange, count)
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n-1)
	}
	return out, nil
}

// Pick returns the tracks at indices.
func Pick(list []analyzer.Track, indices []int) []analyzer.Track {
	out := make([]analyzer.Track, 0, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(list) {
			out = append(out, list[i])
		}
	}
	return out
}

// Choose lists the tracks of one kind on out and reads selections from in
// until one parses. Empty lists return none without reading.
func Choose(in io.Reader, out io.Writer, kind Kind, list []analyzer.Track) ([]analyzer.Track, error) {
	if len(list) == 0 {
		fmt.Fprintf(out, "  [i] No %s streams found.\n", kind.lower())
		return nil, nil
	}
	reader := selection.LineReader(in)
	fmt.Fprintf(out, "\n--- Select %s Tracks to Include ---\n", kind)
	for i, track := range list {
		fmt.Fprintf(out, "  [%d] - %s\n", i+1, Describe(track))
	}
	for {
		fmt.Fprintf(out, "Enter the numbers of the %s tracks to include (e.g. '1,3'), 'all', or 'none'.\nPress Enter for default (all): ", kind.lower())
		line, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return list, nil
			}
			return nil, err
		}
		indices, parseErr := ParseSelection(line, len(list))
		if parseErr != nil {
			fmt.Fprintf(out, "  [x] %v\n", parseErr)
			continue
		}
		switch len(indices) {
		case len(list):
			fmt.Fprintf(out, "  [ok] Including %d %s track(s).\n", len(indices), kind.lower())
		case 0:
			fmt.Fprintf(out, "  [ok] Including no %s tracks.\n", kind.lower())
		default:
			fmt.Fprintf(out, "  [ok] Selected %s tracks: %s\n", kind.lower(), numbers(indices))
		}
		return Pick(list, indices), nil
	}
}

// Interactive asks for audio then subtitle tracks.
func Interactive(in io.Reader, out io.Writer, audio, subtitles []analyzer.Track) (Selection, error) {
	reader := selection.LineReader(in)
	fmt.Fprintln(out, "\n--- Optional: Select Audio and Subtitle Tracks ---")
	chosenAudio, err := Choose(reader, out, Audio, audio)
	if err != nil {
		return Selection{}, err
	}
	chosenSubs, err := Choose(reader, out, Subtitle, subtitles)
	if err != nil {
		return Selection{}, err
	}
	return Partition(chosenAudio, chosenSubs), nil
}

// FromSpecs applies command-line selections such as "1,3" or "none".
func FromSpecs(audioSpec, subtitleSpec string, audio, subtitles []analyzer.Track) (Selection, error) {
	audioIdx, err := ParseSelection(audioSpec, len(audio))
	if err != nil {
		return Selection{}, fmt.Errorf("--audio: %w", err)
	}
	subIdx, err := ParseSelection(subtitleSpec, len(subtitles))
	if err != nil {
		return Selection{}, fmt.Errorf("--subs: %w", err)
	}
	return Partition(Pick(audio, audioIdx), Pick(subtitles, subIdx)), nil
}

// Partition splits chosen tracks into muxable ones and skipped ones.
func Partition(audio, subtitles []analyzer.Track) Selection {
	var sel Selection
	for _, track := range audio {
		if mux.Supported(track.Codec) {
			sel.Audio = append(sel.Audio, track)
		} else {
			sel.Skipped = append(sel.Skipped, track)
		}
	}
	for _, track := range subtitles {
		if mux.Supported(track.Codec) {
			sel.Subtitles = append(sel.Subtitles, track)
		} else {
			sel.Skipped = append(sel.Skipped, track)
		}
	}
	return sel
}

// Describe renders a one-line track summary.
func Describe(track analyzer.Track) string {
	parts := []string{
		"Codec: " + orNA(track.Codec),
		"Language: " + orNA(track.Language),
	}
	if name := language.DisplayName(track.Language); name != "" && !strings.EqualFold(name, track.Language) {
		parts[1] += " (" + name + ")"
	}
	if track.Channels > 0 {
		parts = append(parts, fmt.Sprintf("Channels: %d", track.Channels))
	}
	if track.Title != "" {
		parts = append(parts, "Title: "+track.Title)
	}
	if track.Forced {
		parts = append(parts, "forced")
	}
	if !mux.Supported(track.Codec) {
		parts = append(parts, "unsupported by tsMuxeR")
	}
	return strings.Join(parts, ", ")
}

func numbers(indices []int) string {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.Itoa(idx + 1)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func orNA(value string) string {
	if strings.TrimSpace(value) == "" {
		return "N/A"
	}
	return value
}
