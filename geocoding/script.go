// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/runenames"
)

// ScriptPredicate decides whether a candidate value is acceptable as is.
// Rejected candidates are only used as a fallback.
type ScriptPredicate func(candidate string) bool

// OnlyLatin accepts strings whose letters all have LATIN in their Unicode
// character name. Non-letters (digits, spaces, punctuation) are ignored.
func OnlyLatin(candidate string) bool {
	for _, r := range candidate {
		if unicode.IsLetter(r) && !strings.Contains(runenames.Name(r), "LATIN") {
			return false
		}
	}

	return true
}

// AnyScript accepts every candidate.
func AnyScript(string) bool {
	return true
}
