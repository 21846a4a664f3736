// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const googleGeocodePath = "maps.googleapis.com/maps/api/geocode/json"

// GoogleMapsGeocoder uses the Google Maps Geocoding API.
type GoogleMapsGeocoder struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	verbose    bool
	script     ScriptPredicate
}

// NewGoogleMapsGeocoder creates a new Google Maps geocoder. Requests go over
// HTTPS when an API key is set.
func NewGoogleMapsGeocoder(apiKey string, client *http.Client, opts Options) *GoogleMapsGeocoder {
	scheme := "http://"
	if apiKey != "" {
		scheme = "https://"
	}

	script := opts.Script
	if script == nil {
		script = OnlyLatin
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &GoogleMapsGeocoder{
		apiKey:     apiKey,
		endpoint:   scheme + googleGeocodePath,
		httpClient: client,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		logger:     logger,
		verbose:    opts.Verbose,
		script:     script,
	}
}

type googleAddressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

type googleResult struct {
	AddressComponents []googleAddressComponent `json:"address_components"`
	FormattedAddress  string                   `json:"formatted_address"`
	Types             []string                 `json:"types"`
}

type googleMapsResponse struct {
	Results      []googleResult `json:"results"`
	Status       string         `json:"status"` // OK, ZERO_RESULTS, etc.
	ErrorMessage string         `json:"error_message"`
}

// Only results of these types are addressable enough to be merged.
var googleResultTypes = []string{"premise", "route", "street_address", "sublocality"}

// Component types per canonical field, in priority order.
var googleTypeMap = []struct {
	field LocationField
	types []string
}{
	{FieldCountryCode, []string{"country"}},
	{FieldCountry, []string{"country"}},
	{FieldState, []string{"administrative_area_level_1", "administrative_area_level_2"}},
	{FieldCity, []string{"locality", "administrative_area_level_3"}},
	{FieldLocation, []string{"sublocality_level_1", "sublocality_level_2", "route"}},
}

func (g *GoogleMapsGeocoder) Name() string {
	return string(KindGoogle)
}

func (g *GoogleMapsGeocoder) Resolve(ctx context.Context, longitude, latitude string) LocationRecord {
	lng, lat, err := normalizeInput(longitude, latitude)
	if err != nil {
		return errorRecord(err)
	}

	params := url.Values{}
	params.Set("latlng", lat+","+lng)
	params.Set("language", "en")

	if g.apiKey != "" {
		params.Set("key", g.apiKey)
	}

	body, err := fetchJSON(ctx, g.httpClient, g.limiter, g.logger, g.endpoint, params)
	if err != nil {
		return errorRecord(err)
	}

	if g.verbose {
		g.logger.Debug("google response", zap.ByteString("body", body))
	}

	var gmResp googleMapsResponse
	if err := json.Unmarshal(body, &gmResp); err != nil {
		return errorRecord(&GeocodingError{Type: ErrorTypeUnknown, Message: "decoding google response", Err: err})
	}

	if gmResp.Status != "OK" {
		geoErr := classifyGoogleStatus(gmResp.Status, gmResp.ErrorMessage)
		g.logger.Warn("google request failed",
			zap.String("status", gmResp.Status),
			zap.String("error_message", gmResp.ErrorMessage))

		record := errorRecord(geoErr)
		if gmResp.ErrorMessage != "" {
			record.ErrorMessage = gmResp.ErrorMessage
		}

		return record
	}

	record := mergeGoogleResults(gmResp.Results, g.script)
	record.Status = StatusOK

	return record
}

// mergeGoogleResults walks the addressable results and fills each field
// from the first matching component, by type priority. Candidates refused
// by prefer are kept aside and only used for fields left empty.
func mergeGoogleResults(results []googleResult, prefer ScriptPredicate) LocationRecord {
	var record, shadow LocationRecord

	for _, result := range results {
		if !slices.ContainsFunc(result.Types, func(t string) bool {
			return slices.Contains(googleResultTypes, t)
		}) {
			continue
		}

		for _, mapping := range googleTypeMap {
			for _, componentType := range mapping.types {
				for _, component := range result.AddressComponents {
					if record.Get(mapping.field) != "" || !slices.Contains(component.Types, componentType) {
						continue
					}

					value := component.LongName
					if mapping.field == FieldCountryCode {
						value = component.ShortName
					}

					if prefer(value) {
						record.Set(mapping.field, value)
					} else if shadow.Get(mapping.field) == "" {
						shadow.Set(mapping.field, value)
					}
				}
			}
		}
	}

	for _, field := range LocationFields {
		if record.Get(field) == "" {
			record.Set(field, shadow.Get(field))
		}
	}

	return record
}
