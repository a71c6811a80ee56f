package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Undetermined is the ISO 639-2 code for an unknown language.
const Undetermined = "und"

// bibliographic lists ISO 639-2/B codes that sources commonly carry and that
// x/text does not parse.
var bibliographic = map[string]string{
	"fre": "fra",
	"ger": "deu",
	"chi": "zho",
	"dut": "nld",
	"cze": "ces",
	"gre": "ell",
	"per": "fas",
	"rum": "ron",
	"slo": "slk",
	"ice": "isl",
	"alb": "sqi",
	"arm": "hye",
	"baq": "eus",
	"bur": "mya",
	"geo": "kat",
	"mac": "mkd",
	"mao": "mri",
	"may": "msa",
	"tib": "bod",
	"wel": "cym",
}

// words maps full English names some muxers write instead of codes.
var words = map[string]string{
	"english":    "eng",
	"spanish":    "spa",
	"french":     "fra",
	"german":     "deu",
	"italian":    "ita",
	"portuguese": "por",
	"japanese":   "jpn",
	"korean":     "kor",
	"chinese":    "zho",
	"russian":    "rus",
}

// ToISO3 converts a language tag (ISO 639-1, 639-2/T or /B, BCP 47, or a
// common English name) to ISO 639-2. Unrecognized input yields "und".
func ToISO3(code string) string {
	code = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(code, "\u0000", "")))
	if code == "" || code == Undetermined {
		return Undetermined
	}
	if mapped, ok := bibliographic[code]; ok {
		return mapped
	}
	if mapped, ok := words[code]; ok {
		return mapped
	}
	tag, err := language.Parse(code)
	if err != nil {
		return Undetermined
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return Undetermined
	}
	if iso3 := base.ISO3(); iso3 != "" {
		return iso3
	}
	return Undetermined
}

// DisplayName returns the English name of a language code, "Unknown" for
// empty or undetermined input, or the uppercased code when unrecognized.
func DisplayName(code string) string {
	iso3 := ToISO3(code)
	if iso3 == Undetermined {
		if strings.TrimSpace(code) == "" || strings.EqualFold(strings.TrimSpace(code), Undetermined) {
			return "Unknown"
		}
		return strings.ToUpper(strings.TrimSpace(code))
	}
	base, err := language.ParseBase(iso3)
	if err != nil {
		return strings.ToUpper(iso3)
	}
	if name := display.English.Languages().Name(base); name != "" {
		return name
	}
	return strings.ToUpper(iso3)
}

// ExtractFromTags returns the language from stream metadata tags, checking
// the key spellings different muxers use.
func ExtractFromTags(tags map[string]string) string {
	for _, key := range []string{"language", "LANGUAGE", "Language", "language_ietf", "lang", "LANG"} {
		if value, ok := tags[key]; ok {
			value = strings.TrimSpace(strings.ReplaceAll(value, "\u0000", ""))
			if value != "" {
				return strings.ToLower(value)
			}
		}
	}
	return ""
}
