// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

// Package catalog looks up photos in a Lightroom catalog.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

var (
	// ErrNotFound is returned when no image matches the sidecar.
	ErrNotFound = eris.New("catalog: no matching image")

	// ErrAmbiguous is returned when more than one image matches.
	ErrAmbiguous = eris.New("catalog: more than one matching image")

	// ErrNoCatalog is returned when a folder holds no .lrcat file.
	ErrNoCatalog = eris.New("catalog: no .lrcat file found")
)

// Extension of Lightroom catalog files.
const Extension = ".lrcat"

// Record is what the catalog knows about one image. GPS coordinates are
// signed decimal degrees.
type Record struct {
	ImageID      int64
	BaseName     string
	GPSLatitude  sql.NullFloat64
	GPSLongitude sql.NullFloat64
	Location     string
	City         string
	State        string
	Country      string
	CountryCode  string
}

// Catalog answers lookups by sidecar path.
type Catalog interface {
	Lookup(ctx context.Context, sidecarPath string) (*Record, error)
	Close() error
}

const lookupQuery = `
SELECT Adobe_images.id_local,
       AgLibraryFile.baseName,
       AgHarvestedExifMetadata.gpsLatitude,
       AgHarvestedExifMetadata.gpsLongitude,
       AgInternedIptcLocation.value,
       AgInternedIptcCity.value,
       AgInternedIptcState.value,
       AgInternedIptcCountry.value,
       AgInternedIptcIsoCountryCode.value
FROM AgLibraryFile, AgHarvestedExifMetadata, AgLibraryFolder, AgLibraryRootFolder, Adobe_images
LEFT JOIN AgHarvestedIptcMetadata ON Adobe_images.id_local = AgHarvestedIptcMetadata.image
LEFT JOIN AgInternedIptcLocation ON AgHarvestedIptcMetadata.locationRef = AgInternedIptcLocation.id_local
LEFT JOIN AgInternedIptcCity ON AgHarvestedIptcMetadata.cityRef = AgInternedIptcCity.id_local
LEFT JOIN AgInternedIptcState ON AgHarvestedIptcMetadata.stateRef = AgInternedIptcState.id_local
LEFT JOIN AgInternedIptcCountry ON AgHarvestedIptcMetadata.countryRef = AgInternedIptcCountry.id_local
LEFT JOIN AgInternedIptcIsoCountryCode ON AgHarvestedIptcMetadata.isoCountryCodeRef = AgInternedIptcIsoCountryCode.id_local
WHERE Adobe_images.rootFile = AgLibraryFile.id_local
  AND Adobe_images.id_local = AgHarvestedExifMetadata.image
  AND AgLibraryFile.folder = AgLibraryFolder.id_local
  AND AgLibraryFolder.rootFolder = AgLibraryRootFolder.id_local
  AND AgLibraryFile.baseName = ?`

// Lightroom stores folders with a trailing slash, split between the root
// folder and the path below it.
const strictClause = `
  AND AgLibraryRootFolder.absolutePath || AgLibraryFolder.pathFromRoot = ?`

// Lightroom is a Catalog backed by a .lrcat SQLite database.
type Lightroom struct {
	db     *sql.DB
	path   string
	strict bool
}

// NewLightroom wraps an open catalog database. With strict set, images
// must also live in the sidecar's folder.
func NewLightroom(db *sql.DB, strict bool) *Lightroom {
	return &Lightroom{db: db, strict: strict}
}

// FindCatalog returns the first .lrcat file in folder, in name order.
func FindCatalog(folder string) (string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return "", eris.Wrapf(err, "catalog: reading %s", folder)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), Extension) {
			names = append(names, e.Name())
		}
	}

	if len(names) == 0 {
		return "", eris.Wrap(ErrNoCatalog, folder)
	}

	sort.Strings(names)

	return filepath.Join(folder, names[0]), nil
}

// OpenLightroom opens, read only, the first catalog found in folder.
func OpenLightroom(folder string, strict bool) (*Lightroom, error) {
	path, err := FindCatalog(folder)
	if err != nil {
		return nil, err
	}

	dsn := (&url.URL{Scheme: "file", Path: path, RawQuery: "mode=ro"}).String()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: opening %s", path)
	}

	if err := db.Ping(); err != nil {
		db.Close()

		return nil, eris.Wrapf(err, "catalog: opening %s", path)
	}

	lr := NewLightroom(db, strict)
	lr.path = path

	return lr, nil
}

// Path of the catalog file, when opened with OpenLightroom.
func (l *Lightroom) Path() string {
	return l.path
}

// Close closes the database.
func (l *Lightroom) Close() error {
	return eris.Wrap(l.db.Close(), "catalog: closing")
}

// Lookup finds the image the sidecar belongs to, by base name and, in
// strict mode, by folder.
func (l *Lightroom) Lookup(ctx context.Context, sidecarPath string) (*Record, error) {
	base := filepath.Base(sidecarPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	query := lookupQuery
	args := []any{base}

	if l.strict {
		dir, err := filepath.Abs(filepath.Dir(sidecarPath))
		if err != nil {
			return nil, eris.Wrapf(err, "catalog: resolving %s", sidecarPath)
		}

		query += strictClause
		args = append(args, strings.TrimSuffix(filepath.ToSlash(dir), "/")+"/")
	}

	rows, err := l.db.QueryContext(ctx, query+"\nLIMIT 2", args...)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: looking up %s", base)
	}
	defer rows.Close()

	var records []*Record

	for rows.Next() {
		var (
			r                                           Record
			location, city, state, country, countryCode sql.NullString
		)

		if err := rows.Scan(
			&r.ImageID, &r.BaseName, &r.GPSLatitude, &r.GPSLongitude,
			&location, &city, &state, &country, &countryCode,
		); err != nil {
			return nil, eris.Wrapf(err, "catalog: scanning %s", base)
		}

		r.Location = location.String
		r.City = city.String
		r.State = state.String
		r.Country = country.String
		r.CountryCode = countryCode.String

		records = append(records, &r)
	}

	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(err, "catalog: looking up %s", base)
	}

	switch len(records) {
	case 0:
		return nil, eris.Wrap(ErrNotFound, base)
	case 1:
		return records[0], nil
	default:
		return nil, eris.Wrap(ErrAmbiguous, base)
	}
}
