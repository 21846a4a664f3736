// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

package sidecar

import (
	"sort"
	"strings"

	"github.com/barasher/go-exiftool"
	"github.com/jcodagnone/revgeo/spatial"
	"github.com/rotisserie/eris"
)

// gpsAxes are the properties exiftool reads and writes as signed decimals.
var gpsAxes = map[string]spatial.Axis{
	"GPSLatitude":  spatial.Latitude,
	"GPSLongitude": spatial.Longitude,
}

// ExifToolStore reads and writes sidecars through a long running exiftool
// process.
type ExifToolStore struct {
	et *exiftool.Exiftool
}

// NewExifToolStore starts exiftool. Close must be called to stop it.
func NewExifToolStore() (*ExifToolStore, error) {
	et, err := exiftool.NewExiftool(exiftool.NoPrintConversion())
	if err != nil {
		return nil, eris.Wrap(err, "sidecar: starting exiftool")
	}

	return &ExifToolStore{et: et}, nil
}

// Close stops the exiftool process.
func (s *ExifToolStore) Close() error {
	return eris.Wrap(s.et.Close(), "sidecar: stopping exiftool")
}

// Open extracts the metadata of path.
func (s *ExifToolStore) Open(path string) (Document, error) {
	metadata := s.et.ExtractMetadata(path)
	if len(metadata) != 1 {
		return nil, eris.Errorf("sidecar: exiftool returned %d entries for %s", len(metadata), path)
	}

	if metadata[0].Err != nil {
		return nil, eris.Wrapf(metadata[0].Err, "sidecar: reading %s", path)
	}

	return &exifToolDocument{
		et:      s.et,
		path:    path,
		fields:  metadata[0],
		changes: make(map[string]string),
	}, nil
}

type exifToolDocument struct {
	et      *exiftool.Exiftool
	path    string
	fields  exiftool.FileMetadata
	changes map[string]string
}

func (d *exifToolDocument) Path() string {
	return d.path
}

// lookupKey finds the key exiftool used, which carries the group only when
// it was asked to print group names.
func (d *exifToolDocument) lookupKey(namespace, key string) (string, bool) {
	for _, k := range []string{qualified(namespace, key), key} {
		if _, ok := d.fields.Fields[k]; ok {
			return k, true
		}
	}

	return "", false
}

func (d *exifToolDocument) Exists(namespace, key string) bool {
	if _, ok := d.changes[qualified(namespace, key)]; ok {
		return true
	}

	_, ok := d.lookupKey(namespace, key)

	return ok
}

func (d *exifToolDocument) Get(namespace, key string) string {
	if v, ok := d.changes[qualified(namespace, key)]; ok {
		return v
	}

	k, ok := d.lookupKey(namespace, key)
	if !ok {
		return ""
	}

	if axis, isGPS := gpsAxes[key]; isGPS {
		v, err := d.fields.GetFloat(k)
		if err != nil {
			s, _ := d.fields.GetString(k)

			return s
		}

		return spatial.DecimalToSexagesimal(v, axis)
	}

	v, err := d.fields.GetString(k)
	if err != nil {
		return ""
	}

	return v
}

func (d *exifToolDocument) Set(namespace, key, value string) {
	d.changes[qualified(namespace, key)] = value
}

// Save writes only the changed properties. Writing back everything that was
// extracted would also rewrite file system tags such as FileName.
func (d *exifToolDocument) Save() error {
	if len(d.changes) == 0 {
		return nil
	}

	update := exiftool.EmptyFileMetadata()
	update.File = d.path

	keys := make([]string, 0, len(d.changes))
	for k := range d.changes {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		value := d.changes[k]

		_, key, _ := strings.Cut(k, ":")
		if _, isGPS := gpsAxes[key]; isGPS && value != "" {
			f, err := spatial.ParseCoordinate(value)
			if err != nil {
				return eris.Wrapf(err, "sidecar: writing %s to %s", k, d.path)
			}

			update.SetFloat(k, f)

			continue
		}

		update.SetString(k, value)
	}

	metadata := []exiftool.FileMetadata{update}
	d.et.WriteMetadata(metadata)

	if metadata[0].Err != nil {
		return eris.Wrapf(metadata[0].Err, "sidecar: writing %s", d.path)
	}

	for k, v := range d.changes {
		d.fields.Fields[k] = v
	}

	d.changes = make(map[string]string)

	return nil
}
