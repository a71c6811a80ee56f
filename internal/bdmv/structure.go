package bdmv

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Paths inside a disc root.
const (
	MainStream   = "BDMV/STREAM/00000.m2ts"
	MainPlaylist = "BDMV/PLAYLIST/00000.mpls"
)

type requiredEntry struct {
	path string
	dir  bool
}

var requiredEntries = []requiredEntry{
	{path: "BDMV/index.bdmv"},
	{path: "BDMV/MovieObject.bdmv"},
	{path: "BDMV/CLIPINF/00000.clpi"},
	{path: MainPlaylist},
	{path: MainStream},
	{path: "CERTIFICATE", dir: true},
	{path: "BDMV/BACKUP/index.bdmv"},
	{path: "BDMV/BACKUP/MovieObject.bdmv"},
	{path: "BDMV/BACKUP/CLIPINF/00000.clpi"},
	{path: "BDMV/BACKUP/PLAYLIST/00000.mpls"},
}

// RequiredPaths lists the entries a Blu-ray 3D root must contain.
func RequiredPaths() []string {
	out := make([]string, len(requiredEntries))
	for i, entry := range requiredEntries {
		out[i] = entry.path
	}
	return out
}

func resolve(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}

// CheckStructure verifies the mandatory files and folders under root.
func CheckStructure(root string) Check {
	const name = "file structure"
	var missing []string
	for _, entry := range requiredEntries {
		info, err := os.Stat(resolve(root, entry.path))
		if err != nil || info.IsDir() != entry.dir {
			missing = append(missing, entry.path)
		}
	}
	if len(missing) > 0 {
		return fail(name, "missing: "+strings.Join(missing, ", "))
	}
	return pass(name, fmt.Sprintf("all %d required entries present", len(requiredEntries)))
}

var mplsMagic = []byte("MPLS")

// CheckPlaylist verifies the MPLS magic and reports the version field.
func CheckPlaylist(path string) Check {
	const name = "MPLS playlist"
	file, err := os.Open(path)
	if err != nil {
		return fail(name, fmt.Sprintf("cannot open %s: %v", filepath.Base(path), err))
	}
	defer file.Close()

	header := make([]byte, 8)
	n, err := io.ReadFull(file, header)
	if err != nil && n < len(mplsMagic) {
		return fail(name, fmt.Sprintf("header too short (%d bytes)", n))
	}
	if !bytes.Equal(header[:4], mplsMagic) {
		return fail(name, fmt.Sprintf("invalid magic %q, expected \"MPLS\"", header[:4]))
	}
	version := strings.TrimRight(string(header[4:n]), "\x00")
	switch version {
	case "0100", "0200", "0300":
		return pass(name, "version "+version)
	default:
		return warn(name, fmt.Sprintf("unexpected version %q", version))
	}
}
