// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

// Status of a reverse geocoding lookup.
type Status string

const (
	StatusOK    Status = "OK"
	StatusError Status = "ERROR"
)

// LocationField names one of the canonical location attributes.
type LocationField int

const (
	FieldCountryCode LocationField = iota
	FieldCountry
	FieldState
	FieldCity
	FieldLocation
)

// LocationFields lists the canonical fields in merge order.
var LocationFields = []LocationField{
	FieldCountryCode,
	FieldCountry,
	FieldState,
	FieldCity,
	FieldLocation,
}

func (f LocationField) String() string {
	switch f {
	case FieldCountryCode:
		return "CountryCode"
	case FieldCountry:
		return "Country"
	case FieldState:
		return "State"
	case FieldCity:
		return "City"
	case FieldLocation:
		return "Location"
	default:
		return "Unknown"
	}
}

// LocationRecord is the canonical result of a reverse geocoding lookup.
// Empty strings mean unset.
type LocationRecord struct {
	CountryCode  string `json:"country_code"`
	Country      string `json:"country"`
	State        string `json:"state"`
	City         string `json:"city"`
	Location     string `json:"location"`
	Status       Status `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`

	// Err keeps the typed failure behind an ERROR status, if any.
	Err error `json:"-"`
}

// Get returns the value of a canonical field.
func (r *LocationRecord) Get(f LocationField) string {
	switch f {
	case FieldCountryCode:
		return r.CountryCode
	case FieldCountry:
		return r.Country
	case FieldState:
		return r.State
	case FieldCity:
		return r.City
	case FieldLocation:
		return r.Location
	default:
		return ""
	}
}

// Set assigns the value of a canonical field.
func (r *LocationRecord) Set(f LocationField, value string) {
	switch f {
	case FieldCountryCode:
		r.CountryCode = value
	case FieldCountry:
		r.Country = value
	case FieldState:
		r.State = value
	case FieldCity:
		r.City = value
	case FieldLocation:
		r.Location = value
	}
}

// Usable reports whether the record carries enough to be written back:
// at least the country has to be known.
func (r *LocationRecord) Usable() bool {
	return r.Country != ""
}

// errorRecord builds an ERROR record from a failure.
func errorRecord(err error) LocationRecord {
	return LocationRecord{
		Status:       StatusError,
		ErrorMessage: err.Error(),
		Err:          err,
	}
}
