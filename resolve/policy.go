// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"
)

// Policy tokens.
const (
	TokenOverwrite   = "overwrite"
	TokenLocation    = "location"
	TokenCity        = "city"
	TokenState       = "state"
	TokenCountry     = "country"
	TokenCountryCode = "countrycode"
)

// ValidTokens lists the accepted policy tokens.
var ValidTokens = []string{
	TokenOverwrite,
	TokenLocation,
	TokenCity,
	TokenState,
	TokenCountry,
	TokenCountryCode,
}

// ErrUnknownToken is returned by NewPolicy for tokens outside ValidTokens.
var ErrUnknownToken = eris.New("resolve: unknown field token")

// Policy decides which fields may be written. The zero value is the
// default policy: only fill fields that are empty.
type Policy struct {
	tokens map[string]struct{}
}

// NewPolicy builds a policy from field tokens, case insensitively.
func NewPolicy(tokens []string) (Policy, error) {
	p := Policy{tokens: make(map[string]struct{}, len(tokens))}

	for _, t := range tokens {
		t = strings.ToLower(strings.TrimSpace(t))
		if !slices.Contains(ValidTokens, t) {
			return Policy{}, eris.Wrapf(ErrUnknownToken, "%q (valid: %s)", t, strings.Join(ValidTokens, ", "))
		}

		p.tokens[t] = struct{}{}
	}

	return p, nil
}

func (p Policy) has(token string) bool {
	_, ok := p.tokens[token]

	return ok
}

func (p Policy) onlyOverwrite() bool {
	return len(p.tokens) == 1 && p.has(TokenOverwrite)
}

// PermitsWrite reports whether a new value may replace current for f.
// current must be the value read from the sidecar, before any merge.
func (p Policy) PermitsWrite(current string, f Field) bool {
	token := f.Token()

	if current == "" {
		return len(p.tokens) == 0 || p.onlyOverwrite() || p.has(token)
	}

	return p.onlyOverwrite() || (p.has(token) && p.has(TokenOverwrite))
}

// Tokens returns the policy tokens, sorted.
func (p Policy) Tokens() []string {
	out := make([]string, 0, len(p.tokens))
	for t := range p.tokens {
		out = append(out, t)
	}

	slices.Sort(out)

	return out
}

func (p Policy) String() string {
	if len(p.tokens) == 0 {
		return "fill-empty"
	}

	return strings.Join(p.Tokens(), ",")
}
