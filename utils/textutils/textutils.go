// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

// Package textutils formats text for terminal output.
package textutils

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// LowerASCIIFolding normalizes a string by removing accents, lowercasing, and trimming spaces.
func LowerASCIIFolding(s string) string {
	s, _, _ = transform.String(
		transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		),
		strings.TrimSpace(strings.ToLower(s)),
	)

	return s
}

// FormatInt formats an integer with commas for human readability.
func FormatInt(n int64) string {
	in := strconv.FormatInt(n, 10)

	numOfDigits := len(in)
	if n < 0 {
		numOfDigits-- // First character is the - sign (not a digit)
	}

	numOfCommas := (numOfDigits - 1) / 3

	out := make([]byte, len(in)+numOfCommas)
	if n < 0 {
		in, out[0] = in[1:], '-'
	}

	for i, j, k := len(in)-1, len(out)-1, 0; ; i, j = i-1, j-1 {
		out[j] = in[i]
		if i == 0 {
			return string(out)
		}

		if k++; k == 3 {
			j, k = j-1, 0
			out[j] = ','
		}
	}
}

func runeWidth(r rune) int {
	if unicode.Is(unicode.Mn, r) || unicode.IsControl(r) {
		return 0
	}

	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	default:
		return 1
	}
}

// Width returns how many terminal columns s takes. Wide and fullwidth
// East Asian characters count as two.
func Width(s string) int {
	w := 0
	for _, r := range s {
		w += runeWidth(r)
	}

	return w
}

// Shorten truncates s to at most columns terminal columns, ending it with
// an ellipsis when something was cut.
func Shorten(s string, columns int) string {
	if columns <= 0 {
		return ""
	}

	if Width(s) <= columns {
		return s
	}

	var b strings.Builder

	used := 0
	for _, r := range s {
		w := runeWidth(r)
		if used+w > columns-1 {
			break
		}

		b.WriteRune(r)
		used += w
	}

	b.WriteString("…")

	return b.String()
}

// Pad right-pads s with spaces up to columns terminal columns, truncating
// it first if needed.
func Pad(s string, columns int) string {
	s = Shorten(s, columns)
	if w := Width(s); w < columns {
		s += strings.Repeat(" ", columns-w)
	}

	return s
}
