// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const nominatimReverseURL = "https://nominatim.openstreetmap.org/reverse"

// NominatimGeocoder uses the OpenStreetMap Nominatim reverse API.
//
// The public instance allows at most one request per second.
type NominatimGeocoder struct {
	email      string
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	verbose    bool
}

// NewNominatimGeocoder creates a new Nominatim geocoder. The email is sent
// along as contact information when set.
func NewNominatimGeocoder(email string, client *http.Client, opts Options) *NominatimGeocoder {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NominatimGeocoder{
		email:      email,
		endpoint:   nominatimReverseURL,
		httpClient: client,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		logger:     logger,
		verbose:    opts.Verbose,
	}
}

// Address keys per canonical field, in priority order.
var nominatimTypeMap = []struct {
	field LocationField
	keys  []string
}{
	{FieldCountryCode, []string{"country_code"}},
	{FieldCountry, []string{"country"}},
	{FieldState, []string{"state"}},
	{FieldCity, []string{"city", "city_district", "state_district"}},
	{FieldLocation, []string{"county", "town", "suburb", "hamlet", "neighbourhood", "road"}},
}

func (n *NominatimGeocoder) Name() string {
	return string(KindOpenStreetMap)
}

func (n *NominatimGeocoder) Resolve(ctx context.Context, longitude, latitude string) LocationRecord {
	lng, lat, err := normalizeInput(longitude, latitude)
	if err != nil {
		return errorRecord(err)
	}

	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", lat)
	params.Set("lon", lng)
	params.Set("accept-language", "en-US,en")

	if n.email != "" {
		params.Set("email", n.email)
	}

	body, err := fetchJSON(ctx, n.httpClient, n.limiter, n.logger, n.endpoint, params)
	if err != nil {
		return errorRecord(err)
	}

	if n.verbose {
		n.logger.Debug("openstreetmap response", zap.ByteString("body", body))
	}

	if !gjson.ValidBytes(body) {
		return errorRecord(&GeocodingError{Type: ErrorTypeUnknown, Message: "decoding openstreetmap response: invalid JSON"})
	}

	parsed := gjson.ParseBytes(body)
	if e := parsed.Get("error"); e.Exists() {
		msg := e.String()
		if e.IsObject() {
			msg = e.Get("message").String()
		}

		n.logger.Warn("openstreetmap request failed", zap.String("error", msg))

		return LocationRecord{
			Status:       StatusError,
			ErrorMessage: msg,
			Err:          &GeocodingError{Type: ErrorTypeNotFound, Message: msg},
		}
	}

	return mergeNominatimAddress(parsed.Get("address"))
}

// mergeNominatimAddress fills each field from the first present key.
func mergeNominatimAddress(address gjson.Result) LocationRecord {
	record := LocationRecord{Status: StatusOK}

	for _, mapping := range nominatimTypeMap {
		for _, key := range mapping.keys {
			if record.Get(mapping.field) != "" {
				break
			}

			if v := address.Get(key); v.Exists() {
				record.Set(mapping.field, v.String())
			}
		}
	}

	return record
}
