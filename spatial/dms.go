// Copyright 2025 The RevGeo Authors
//
// SPDX-License-Identifier: Apache-2.0
package spatial

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformedCoordinate is returned when a coordinate is neither in the
// sexagesimal sidecar format nor a plain decimal number.
var ErrMalformedCoordinate = errors.New("malformed coordinate")

// Axis tells latitudes (N/S) from longitudes (E/W).
type Axis int

const (
	Latitude Axis = iota
	Longitude
)

var sexagesimalRe = regexp.MustCompile(`^(\d+),(\d+\.\d+)([NESW])$`)

// DecimalToSexagesimal converts a signed decimal degree into the XMP GPS
// format "{degrees},{minutes.fraction}{hemisphere}", e.g. "35,40.0281N".
func DecimalToSexagesimal(value float64, axis Axis) string {
	abs := math.Abs(value)
	degrees := math.Trunc(abs)
	minutes := math.Round((abs-degrees)*60*1e10) / 1e10

	var hemisphere byte

	switch axis {
	case Longitude:
		hemisphere = 'E'
		if value < 0 {
			hemisphere = 'W'
		}
	default:
		hemisphere = 'N'
		if value < 0 {
			hemisphere = 'S'
		}
	}

	return fmt.Sprintf("%d,%s%c", int64(degrees), FormatDecimal(minutes), hemisphere)
}

// SexagesimalToDecimal converts the XMP GPS format into a decimal degree
// string. Anything that does not look like the sexagesimal format is
// returned unchanged, so calling it on an already decimal value is a no-op.
func SexagesimalToDecimal(text string) string {
	value, ok := parseSexagesimal(text)
	if !ok {
		return text
	}

	return FormatDecimal(value)
}

// ParseCoordinate accepts either representation and returns the signed
// decimal degree.
func ParseCoordinate(text string) (float64, error) {
	if value, ok := parseSexagesimal(text); ok {
		return value, nil
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %q", ErrMalformedCoordinate, text)
	}

	return value, nil
}

// FormatDecimal renders a float with the shortest exact representation,
// always keeping a decimal point ("35" becomes "35.0").
func FormatDecimal(value float64) string {
	s := strconv.FormatFloat(value, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}

	return s
}

func parseSexagesimal(text string) (float64, bool) {
	m := sexagesimalRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}

	degrees, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}

	minutes, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, false
	}

	value := degrees + minutes/60
	if m[3] == "S" || m[3] == "W" {
		value = -value
	}

	return value, true
}
