package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultDiscLabel is used when a name has no usable characters.
const DefaultDiscLabel = "BLURAY_3D_DISC"

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// DiscLabel derives a disc label from an output path: the base name without
// extension, with accents folded, keeping letters, digits, spaces,
// underscores, and hyphens.
func DiscLabel(outputPath string) string {
	base := outputPath
	if idx := strings.LastIndexAny(base, `/\`); idx >= 0 {
		base = base[idx+1:]
	}
	if dot := strings.LastIndex(base, "."); dot > 0 {
		base = base[:dot]
	}
	return SanitizeLabel(base)
}

// SanitizeLabel filters a free-form label down to characters tsMuxeR accepts.
func SanitizeLabel(value string) string {
	folded, _, err := transform.String(stripMarks, value)
	if err != nil {
		folded = value
	}
	var b strings.Builder
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	label := strings.TrimSpace(b.String())
	if label == "" {
		return DefaultDiscLabel
	}
	return label
}
