// Package h264 scans Annex-B H.264 byte streams for NAL unit types. It is
// used to prove that encoded chunks and muxed discs carry the MVC
// dependent-view units a 3D player needs.
package h264

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
)

// NAL unit types of interest.
const (
	NALSlice        = 1
	NALIDR          = 5
	NALSEI          = 6
	NALSPS          = 7
	NALPPS          = 8
	NALAUD          = 9
	NALPrefix       = 14
	NALSubsetSPS    = 15
	NALSliceExt     = 20
	nalTypeMask     = 0x1F
	scanBufferBytes = 1 << 20
)

// TypeSet records which NAL unit types were seen.
type TypeSet [32]bool

// Has reports whether t was seen.
func (s TypeSet) Has(t int) bool {
	return t >= 0 && t < len(s) && s[t]
}

// Add marks t as seen.
func (s *TypeSet) Add(t int) {
	if t >= 0 && t < len(s) {
		s[t] = true
	}
}

// Merge adds every type present in other.
func (s *TypeSet) Merge(other TypeSet) {
	for i, ok := range other {
		if ok {
			s[i] = true
		}
	}
}

// Types lists the seen types in ascending order.
func (s TypeSet) Types() []int {
	var out []int
	for i, ok := range s {
		if ok {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

// IsMVCDependent reports whether the set carries the subset SPS and coded
// slice extension units of an MVC dependent view.
func (s TypeSet) IsMVCDependent() bool {
	return s.Has(NALSubsetSPS) && s.Has(NALSliceExt)
}

// String renders the set for log output.
func (s TypeSet) String() string {
	return fmt.Sprint(s.Types())
}

// ScanBytes returns the NAL unit types found after each 3- or 4-byte start
// code in data.
func ScanBytes(data []byte) TypeSet {
	var set TypeSet
	pos := 0
	for {
		idx, size := findStartCode(data, pos)
		if idx < 0 {
			return set
		}
		header := idx + size
		if header >= len(data) {
			return set
		}
		set.Add(int(data[header] & nalTypeMask))
		pos = header
	}
}

// Scanner accumulates NAL unit types over a stream delivered in pieces.
// Start codes split across Write calls are still recognized.
type Scanner struct {
	set   TypeSet
	carry []byte
}

// Write feeds the next piece of the stream. It never fails.
func (s *Scanner) Write(p []byte) (int, error) {
	buf := append(s.carry, p...)
	s.set.Merge(ScanBytes(buf))
	// A start code may straddle the boundary; re-seeing one already counted
	// is harmless because the result is a set.
	keep := min(4, len(buf))
	s.carry = append(s.carry[:0], buf[len(buf)-keep:]...)
	return len(p), nil
}

// Types returns the set of types seen so far.
func (s *Scanner) Types() TypeSet {
	return s.set
}

// ScanFile scans up to limit bytes of an Annex-B file. A limit <= 0 scans
// the whole file.
func ScanFile(path string, limit int64) (TypeSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return TypeSet{}, err
	}
	defer file.Close()

	var reader io.Reader = bufio.NewReaderSize(file, scanBufferBytes)
	if limit > 0 {
		reader = io.LimitReader(reader, limit)
	}
	var scanner Scanner
	if _, err := io.Copy(&scanner, reader); err != nil {
		return TypeSet{}, fmt.Errorf("scan %s: %w", path, err)
	}
	return scanner.Types(), nil
}

func findStartCode(data []byte, start int) (int, int) {
	for i := start; i+2 < len(data); i++ {
		if data[i] != 0x00 || data[i+1] != 0x00 {
			continue
		}
		if data[i+2] == 0x01 {
			return i, 3
		}
		if i+3 < len(data) && data[i+2] == 0x00 && data[i+3] == 0x01 {
			return i, 4
		}
	}
	return -1, 0
}
