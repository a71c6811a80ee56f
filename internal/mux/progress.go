package mux

import (
	"regexp"
	"strconv"
)

// tsMuxeR prints lines such as "52.3% complete".
var muxProgressPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)% complete`)

func parseMuxProgress(line string) (float64, bool) {
	match := muxProgressPattern.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
