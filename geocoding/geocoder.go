// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/jcodagnone/revgeo/spatial"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Provider is a reverse geocoding backend.
//
// Resolve never returns a Go error: failures are reported through an
// ERROR record so a single bad coordinate never aborts a batch.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, longitude, latitude string) LocationRecord
}

// Kind selects a Provider implementation.
type Kind string

const (
	KindGoogle        Kind = "google"
	KindOpenStreetMap Kind = "openstreetmap"
)

// Credentials for the providers. At most one of them is expected to be set.
type Credentials struct {
	GoogleAPIKey string
	Email        string
}

// Options shared by the providers.
type Options struct {
	// Logger receives request and response traces at debug level.
	Logger *zap.Logger

	// Verbose also logs the raw response bodies.
	Verbose bool

	// Script decides whether a Google candidate is preferred. Defaults to OnlyLatin.
	Script ScriptPredicate
}

// NewProvider builds the provider for kind.
func NewProvider(kind Kind, creds Credentials, client *http.Client, opts Options) (Provider, error) {
	if client == nil {
		client = NewHTTPClient(nil)
	}

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	if opts.Script == nil {
		opts.Script = OnlyLatin
	}

	switch kind {
	case KindGoogle:
		return NewGoogleMapsGeocoder(creds.GoogleAPIKey, client, opts), nil
	case KindOpenStreetMap:
		return NewNominatimGeocoder(creds.Email, client, opts), nil
	default:
		return nil, eris.Errorf("geocoding: unknown provider %q", kind)
	}
}

// ParseKind validates a provider name.
func ParseKind(name string) (Kind, error) {
	switch Kind(name) {
	case KindGoogle, KindOpenStreetMap:
		return Kind(name), nil
	default:
		return "", eris.Errorf("geocoding: unknown provider %q (want %q or %q)", name, KindGoogle, KindOpenStreetMap)
	}
}

var decimalRe = regexp.MustCompile(`^-?\d+\.\d+$`)

// normalizeInput converts both coordinates to decimal strings and checks
// they look like decimal degrees.
func normalizeInput(longitude, latitude string) (string, string, error) {
	lng := spatial.SexagesimalToDecimal(longitude)
	lat := spatial.SexagesimalToDecimal(latitude)

	if !decimalRe.MatchString(lng) || !decimalRe.MatchString(lat) {
		return "", "", &GeocodingError{
			Type:    ErrorTypeInvalidRequest,
			Message: fmt.Sprintf("latitude %q or longitude %q are not valid", latitude, longitude),
			Err:     spatial.ErrMalformedCoordinate,
		}
	}

	return lng, lat, nil
}
