// Package workdir names the files a conversion keeps in its working
// directory and cleans them up afterwards.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"bd3d/internal/fileutil"
)

// Fixed file names inside a work directory.
const (
	LeftEyeName    = "left_eye.264"
	MetaName       = "muxer_final.meta"
	CleanRemuxName = "clean_remux_for_audio.mkv"
	JournalName    = "bd3d-journal.db"
	LockName       = ".bd3d.lock"

	chunkPrefix = "temp_chunk_"
)

var (
	depChunkPattern  = regexp.MustCompile(`^temp_chunk_(\d+)_dep\.264$`)
	baseChunkPattern = regexp.MustCompile(`^temp_chunk_(\d+)_base\.264$`)
	anyChunkPattern  = regexp.MustCompile(`^temp_chunk_(\d+)_`)
)

// Layout resolves paths inside one work directory.
type Layout struct {
	Dir string
}

// New returns the layout rooted at dir.
func New(dir string) Layout {
	return Layout{Dir: dir}
}

// Path joins name onto the work directory.
func (l Layout) Path(name string) string {
	return filepath.Join(l.Dir, name)
}

func (l Layout) LeftEye() string    { return l.Path(LeftEyeName) }
func (l Layout) Meta() string       { return l.Path(MetaName) }
func (l Layout) CleanRemux() string { return l.Path(CleanRemuxName) }
func (l Layout) Journal() string    { return l.Path(JournalName) }
func (l Layout) Lock() string       { return l.Path(LockName) }

// ChunkBase is the base-view output of chunk i.
func (l Layout) ChunkBase(i int) string {
	return l.Path(fmt.Sprintf("%s%d_base.264", chunkPrefix, i))
}

// ChunkDep is the dependent-view output of chunk i.
func (l Layout) ChunkDep(i int) string {
	return l.Path(fmt.Sprintf("%s%d_dep.264", chunkPrefix, i))
}

// LeftYUV is the raw left-eye plane file of chunk i.
func (l Layout) LeftYUV(i int) string {
	return l.Path(fmt.Sprintf("%s%d_left.yuv", chunkPrefix, i))
}

// RightYUV is the raw right-eye plane file of chunk i.
func (l Layout) RightYUV(i int) string {
	return l.Path(fmt.Sprintf("%s%d_right.yuv", chunkPrefix, i))
}

// Audio is the extracted elementary stream of the i-th selected audio track.
func (l Layout) Audio(i int, codec string) string {
	return l.Path(fmt.Sprintf("clean_audio_%d.%s", i, codec))
}

// Subtitle is the extracted stream of the i-th selected subtitle track.
func (l Layout) Subtitle(i int, ext string) string {
	return l.Path(fmt.Sprintf("clean_sub_%d.%s", i, ext))
}

// DependentChunks lists the dependent-view chunk files sorted by chunk number.
func (l Layout) DependentChunks() ([]string, error) {
	return l.chunks(depChunkPattern)
}

// BaseChunks lists the base-view chunk files sorted by chunk number.
func (l Layout) BaseChunks() ([]string, error) {
	return l.chunks(baseChunkPattern)
}

// ChunkFilesFrom lists every chunk file (streams and raw planes) whose chunk
// number is at least first.
func (l Layout) ChunkFilesFrom(first int) ([]string, error) {
	found, err := l.numbered(anyChunkPattern)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range found {
		if f.n >= first {
			out = append(out, f.path)
		}
	}
	return out, nil
}

func (l Layout) chunks(pattern *regexp.Regexp) ([]string, error) {
	found, err := l.numbered(pattern)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(found))
	for i, f := range found {
		out[i] = f.path
	}
	return out, nil
}

type numberedFile struct {
	n    int
	path string
}

func (l Layout) numbered(pattern *regexp.Regexp) ([]numberedFile, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var found []numberedFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := pattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		found = append(found, numberedFile{n: n, path: l.Path(entry.Name())})
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].n < found[j].n })
	return found, nil
}

// EncodeState classifies leftover encoder output in a work directory.
type EncodeState int

const (
	// EncodeNone means no encoder output exists.
	EncodeNone EncodeState = iota
	// EncodeComplete means a non-empty left_eye.264 and dependent chunks exist.
	EncodeComplete
	// EncodePartial means some output exists but cannot be reused as is.
	EncodePartial
)

func (s EncodeState) String() string {
	switch s {
	case EncodeComplete:
		return "complete"
	case EncodePartial:
		return "partial"
	default:
		return "none"
	}
}

// ExistingEncode inspects the directory for a previous encode. Base-view
// chunks that were never concatenated count as partial output.
func (l Layout) ExistingEncode() EncodeState {
	deps, _ := l.DependentChunks()
	bases, _ := l.BaseChunks()
	leftExists := false
	if _, err := os.Stat(l.LeftEye()); err == nil {
		leftExists = true
	}
	switch {
	case fileutil.NonEmpty(l.LeftEye()) && len(deps) > 0:
		return EncodeComplete
	case leftExists || len(deps) > 0 || len(bases) > 0:
		return EncodePartial
	default:
		return EncodeNone
	}
}

// Intermediates lists every pipeline file present in the work directory,
// excluding the journal, lock, and run log.
func (l Layout) Intermediates() ([]string, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		switch {
		case name == LeftEyeName, name == MetaName, name == CleanRemuxName,
			strings.HasPrefix(name, chunkPrefix),
			strings.HasPrefix(name, "clean_audio_"),
			strings.HasPrefix(name, "clean_sub_"):
			out = append(out, l.Path(name))
		}
	}
	sort.Strings(out)
	return out, nil
}
