// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"github.com/jcodagnone/revgeo/geocoding"
	"github.com/jcodagnone/revgeo/sidecar"
)

// Field is one of the sidecar properties revgeo reads and writes.
type Field int

const (
	FieldGPSLatitude Field = iota
	FieldGPSLongitude
	FieldLocation
	FieldCity
	FieldState
	FieldCountry
	FieldCountryCode
)

// Fields lists every property, GPS first.
var Fields = []Field{
	FieldGPSLatitude,
	FieldGPSLongitude,
	FieldLocation,
	FieldCity,
	FieldState,
	FieldCountry,
	FieldCountryCode,
}

// LocationFields are the place-name properties a geocoder can fill.
var LocationFields = []Field{
	FieldLocation,
	FieldCity,
	FieldState,
	FieldCountry,
	FieldCountryCode,
}

// String returns the XMP property name.
func (f Field) String() string {
	switch f {
	case FieldGPSLatitude:
		return "GPSLatitude"
	case FieldGPSLongitude:
		return "GPSLongitude"
	case FieldLocation:
		return "Location"
	case FieldCity:
		return "City"
	case FieldState:
		return "State"
	case FieldCountry:
		return "Country"
	case FieldCountryCode:
		return "CountryCode"
	default:
		return "Unknown"
	}
}

// Token is the name used to select the field in an overwrite policy.
func (f Field) Token() string {
	switch f {
	case FieldGPSLatitude:
		return "gpslatitude"
	case FieldGPSLongitude:
		return "gpslongitude"
	case FieldLocation:
		return TokenLocation
	case FieldCity:
		return TokenCity
	case FieldState:
		return TokenState
	case FieldCountry:
		return TokenCountry
	case FieldCountryCode:
		return TokenCountryCode
	default:
		return ""
	}
}

// Namespace is the XMP namespace holding the property.
func (f Field) Namespace() string {
	switch f {
	case FieldGPSLatitude, FieldGPSLongitude:
		return sidecar.NamespaceExif
	case FieldLocation, FieldCountryCode:
		return sidecar.NamespaceIptcCore
	default:
		return sidecar.NamespacePhotoshop
	}
}

func (f Field) locationField() (geocoding.LocationField, bool) {
	switch f {
	case FieldLocation:
		return geocoding.FieldLocation, true
	case FieldCity:
		return geocoding.FieldCity, true
	case FieldState:
		return geocoding.FieldState, true
	case FieldCountry:
		return geocoding.FieldCountry, true
	case FieldCountryCode:
		return geocoding.FieldCountryCode, true
	default:
		return 0, false
	}
}

// FieldSet holds the working values of one sidecar. Empty means unset.
type FieldSet struct {
	GPSLatitude  string
	GPSLongitude string
	Location     string
	City         string
	State        string
	Country      string
	CountryCode  string
}

// Get returns the value of f.
func (s *FieldSet) Get(f Field) string {
	switch f {
	case FieldGPSLatitude:
		return s.GPSLatitude
	case FieldGPSLongitude:
		return s.GPSLongitude
	case FieldLocation:
		return s.Location
	case FieldCity:
		return s.City
	case FieldState:
		return s.State
	case FieldCountry:
		return s.Country
	case FieldCountryCode:
		return s.CountryCode
	default:
		return ""
	}
}

// Set assigns the value of f.
func (s *FieldSet) Set(f Field, value string) {
	switch f {
	case FieldGPSLatitude:
		s.GPSLatitude = value
	case FieldGPSLongitude:
		s.GPSLongitude = value
	case FieldLocation:
		s.Location = value
	case FieldCity:
		s.City = value
	case FieldState:
		s.State = value
	case FieldCountry:
		s.Country = value
	case FieldCountryCode:
		s.CountryCode = value
	}
}

// LoadFieldSet reads every field from doc. Absent properties are empty.
func LoadFieldSet(doc sidecar.Document) FieldSet {
	var s FieldSet

	for _, f := range Fields {
		if doc.Exists(f.Namespace(), f.String()) {
			s.Set(f, doc.Get(f.Namespace(), f.String()))
		}
	}

	return s
}
