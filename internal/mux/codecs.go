package mux

import "strings"

// tsMuxeR stream type identifiers.
const (
	CodecAVC     = "V_MPEG4/ISO/AVC"
	CodecAC3     = "A_AC3"
	CodecDTS     = "A_DTS"
	CodecLPCM    = "A_LPCM"
	CodecSRT     = "S_TEXT/UTF8"
	CodecPGS     = "S_HDMV/PGS"
	subripCodec  = "subrip"
	pgsSubCodec  = "hdmv_pgs_subtitle"
	srtExtension = "srt"
	supExtension = "sup"
)

// The tsMuxeR fork carries E-AC3 and TrueHD under A_AC3.
var codecMap = map[string]string{
	"ac3":        CodecAC3,
	"eac3":       CodecAC3,
	"truehd":     CodecAC3,
	"dts":        CodecDTS,
	"dca":        CodecDTS,
	"dts-hd_ma":  CodecDTS,
	"dts-hd_hra": CodecDTS,
	"pcm_bluray": CodecLPCM,
	subripCodec:  CodecSRT,
	pgsSubCodec:  CodecPGS,
}

// TrackCodec maps an ffprobe codec name to the tsMuxeR stream type.
func TrackCodec(codec string) (string, bool) {
	id, ok := codecMap[strings.ToLower(strings.TrimSpace(codec))]
	return id, ok
}

// Supported reports whether tsMuxeR can carry codec.
func Supported(codec string) bool {
	_, ok := TrackCodec(codec)
	return ok
}

// SubtitleExtension is the extension of an extracted subtitle stream.
func SubtitleExtension(codec string) string {
	if strings.EqualFold(codec, subripCodec) {
		return srtExtension
	}
	return supExtension
}

// IsTextSubtitle reports whether codec is a text subtitle that needs the
// video geometry on its meta line.
func IsTextSubtitle(codec string) bool {
	return strings.EqualFold(codec, subripCodec)
}
