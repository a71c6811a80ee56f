package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"bd3d/internal/analyzer"
	"bd3d/internal/bdmv"
	"bd3d/internal/encoder"
	"bd3d/internal/mux"
	"bd3d/internal/preflight"
	"bd3d/internal/tracks"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func preflightKind(result preflight.Result) statusKind {
	switch {
	case result.Passed && result.Warning:
		return statusWarn
	case result.Passed:
		return statusOK
	case result.Optional:
		return statusWarn
	default:
		return statusError
	}
}

func renderPreflight(results []preflight.Result, colorize bool) string {
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		rows = append(rows, []string{result.Name, colorStatus(preflightKind(result), colorize), result.Detail})
	}
	return renderTable("Dependency Check", []string{"Check", "Status", "Detail"}, rows, nil)
}

// colorStatus renders a bare status label, coloured on terminals.
func colorStatus(kind statusKind, colorize bool) string {
	return paint(kind, statusKindLabel(kind), colorize)
}

func paint(kind statusKind, text string, colorize bool) string {
	if colorize {
		return statusKindColor(kind) + text + ansiReset
	}
	return text
}

func renderSummary(props *analyzer.Properties) string {
	bars := "None detected"
	if props.HasBlackBars {
		bars = fmt.Sprintf("Top: %dpx, Bottom: %dpx", props.TopBar, props.BottomBar)
	}
	chapters := "None"
	if len(props.Chapters) > 0 {
		chapters = strconv.Itoa(len(props.Chapters))
	}
	return renderProperties("Video Analysis", [][2]string{
		{"Source", props.Source},
		{"Resolution", fmt.Sprintf("%dx%d", props.TotalWidth, props.TotalHeight)},
		{"SBS type", string(props.SBS)},
		{"Frame rate", fmt.Sprintf("%s (%.3f fps)", props.FPSRational, props.FPS)},
		{"Duration", props.Duration()},
		{"Frames", props.FramesDisplay()},
		{"Black bars", bars},
		{"Active area", fmt.Sprintf("%dx%d (%s)", props.ActiveWidth, props.ActiveHeight, props.ActiveAspectLabel())},
		{"Eye aspect", props.EyeRatioName()},
		{"Eye output", fmt.Sprintf("%dx%d padded to 1920x1080", props.Geometry.ScaledWidth, props.Geometry.ScaledHeight)},
		{"Chapters", chapters},
	})
}

func renderSelection(sel tracks.Selection) string {
	var rows [][]string
	add := func(kind string, list []analyzer.Track, status string) {
		for _, track := range list {
			rows = append(rows, []string{kind, strconv.Itoa(track.Index), tracks.Describe(track), status})
		}
	}
	add("Audio", sel.Audio, "include")
	add("Subtitle", sel.Subtitles, "include")
	add("-", sel.Skipped, "skip")
	if len(rows) == 0 {
		return "No audio or subtitle tracks selected."
	}
	return renderTable("Tracks", []string{"Type", "Stream", "Details", "Action"}, rows, []columnAlignment{alignLeft, alignRight})
}

func sanityKind(status encoder.CheckStatus) statusKind {
	switch status {
	case encoder.CheckPass:
		return statusOK
	case encoder.CheckWarn:
		return statusWarn
	case encoder.CheckFail:
		return statusError
	default:
		return statusInfo
	}
}

func renderEncodeResult(result *encoder.Result, colorize bool) string {
	rows := make([][]string, 0, len(result.Sanity.Checks))
	for _, check := range result.Sanity.Checks {
		rows = append(rows, []string{check.Name, colorStatus(sanityKind(check.Status), colorize), check.Detail})
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Encoded %d chunk(s), resumed %d. Base view %s, dependent view %s.\n",
		result.Encoded, result.Resumed,
		humanize.IBytes(uint64(result.BaseBytes)), humanize.IBytes(uint64(result.DepBytes)))
	if len(rows) > 0 {
		b.WriteString(renderTable("Encode Checks", []string{"Check", "Status", "Detail"}, rows, nil))
	}
	return b.String()
}

func renderMuxResult(result *mux.Result) string {
	pairs := [][2]string{
		{"Output", result.Output},
		{"Type", string(result.Type)},
		{"Disc label", result.Label},
		{"Audio tracks", strconv.Itoa(result.Audio)},
		{"Subtitle tracks", strconv.Itoa(result.Subtitles)},
		{"Size", humanize.IBytes(uint64(result.Size))},
	}
	if len(result.Skipped) > 0 {
		pairs = append(pairs, [2]string{"Skipped tracks", strconv.Itoa(len(result.Skipped))})
	}
	return renderProperties("Mux Result", pairs)
}

func reportKind(status bdmv.Status) statusKind {
	switch status {
	case bdmv.StatusPass:
		return statusOK
	case bdmv.StatusWarn:
		return statusWarn
	default:
		return statusError
	}
}

func renderReport(report *bdmv.Report, colorize bool) string {
	rows := make([][]string, 0, len(report.Checks))
	for _, check := range report.Checks {
		rows = append(rows, []string{check.Name, colorStatus(reportKind(check.Status), colorize), check.Detail})
	}
	var b strings.Builder
	b.WriteString(renderTable("Blu-ray 3D Validation", []string{"Check", "Status", "Detail"}, rows, nil))
	b.WriteString("\n")
	kind, verdict := statusOK, "all checks passed"
	switch {
	case !report.Passed():
		kind, verdict = statusError, fmt.Sprintf("%d check(s) failed", report.Count(bdmv.StatusFail))
	case report.Count(bdmv.StatusWarn) > 0:
		kind, verdict = statusWarn, fmt.Sprintf("passed with %d warning(s)", report.Count(bdmv.StatusWarn))
	}
	b.WriteString(renderStatusLine("Validation", kind, verdict, colorize))
	return b.String()
}
