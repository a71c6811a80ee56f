package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"bd3d/internal/config"
)

// Requirement defines an external tool bd3d relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Path        string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// InstallHint is shown when a required tool is missing.
const InstallHint = "install the missing tools and restart your terminal so PATH changes take effect"

// Requirements lists the tools a conversion needs. x264 is only required for
// the benchmark.
func Requirements(cfg *config.Config, includeBench bool) []Requirement {
	reqs := []Requirement{
		{Name: "ffprobe", Command: cfg.Tools.FFprobe, Description: "Source inspection and output validation"},
		{Name: "ffmpeg", Command: cfg.Tools.FFmpeg, Description: "Crop detection, YUV extraction, stream remux"},
		{Name: "FRIMEncode64", Command: cfg.Tools.FRIMEncode, Description: "H.264 MVC stereoscopic encoder"},
		{Name: "tsMuxeR", Command: cfg.Tools.TsMuxer, Description: "Blu-ray 3D multiplexer"},
		{Name: "mkvextract", Command: cfg.Tools.MKVExtract, Description: "Track extraction for Matroska sources", Optional: true},
	}
	if includeBench {
		reqs = append(reqs, Requirement{Name: "x264", Command: cfg.Tools.X264, Description: "Two-view encoder benchmark"})
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Path = resolved
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the names of unavailable non-optional tools.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status.Name)
		}
	}
	return missing
}
