// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

// Package resolve fills the location fields of XMP sidecars from their GPS
// coordinates, using a Lightroom catalog, a cache, and a geocoder.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jcodagnone/revgeo/catalog"
	"github.com/jcodagnone/revgeo/geocoding"
	"github.com/jcodagnone/revgeo/sidecar"
	"github.com/jcodagnone/revgeo/spatial"
	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Catalog is the lookup side of catalog.Catalog.
type Catalog interface {
	Lookup(ctx context.Context, sidecarPath string) (*catalog.Record, error)
}

// Status is the final state of one sidecar.
type Status int

const (
	StatusSkipped Status = iota
	StatusUpdated
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusUpdated:
		return "UPDATED"
	case StatusFailed:
		return "FAILED"
	default:
		return "SKIP"
	}
}

// Origin tells where the location used for a sidecar came from.
type Origin int

const (
	OriginNone Origin = iota
	OriginProvider
	OriginCache
	OriginFuzzyCache
)

func (o Origin) String() string {
	switch o {
	case OriginProvider:
		return "provider"
	case OriginCache:
		return "cache"
	case OriginFuzzyCache:
		return "fuzzy-cache"
	default:
		return "none"
	}
}

// Outcome describes what happened to one sidecar.
type Outcome struct {
	Path        string
	Status      Status
	Origin      Origin
	CatalogUsed bool
	Fields      FieldSet // values after the merge
	Written     []Field  // fields set on the sidecar
	Backup      string   // backup path, if one was made
	Reason      string   // why it failed
	Err         error
	Metrics     Metrics
}

// Options configures a Resolver.
type Options struct {
	// Catalog enriches sidecars before geocoding. Optional.
	Catalog Catalog

	// Cache is shared across runs when set, otherwise each Resolver gets its own.
	Cache *geocoding.Cache

	// Fs is where backups are made. Defaults to the OS file system.
	Fs afero.Fs

	// Out receives the per file status lines. Defaults to stdout.
	Out io.Writer

	// Logger defaults to zap.L().
	Logger *zap.Logger

	// DryRun reports what would be written without touching any file.
	DryRun bool

	// NoBackup skips the numbered backup before writing.
	NoBackup bool

	// FuzzyRadius enables fuzzy cache lookups within this many meters.
	FuzzyRadius float64

	// Progress shows a progress bar on stderr.
	Progress bool
}

// Resolver runs the per sidecar resolution.
type Resolver struct {
	store    sidecar.Store
	provider geocoding.Provider
	policy   Policy
	catalog  Catalog
	cache    *geocoding.Cache
	fs       afero.Fs
	out      io.Writer
	logger   *zap.Logger
	options  Options
}

// NewResolver creates a Resolver.
func NewResolver(store sidecar.Store, provider geocoding.Provider, policy Policy, options *Options) *Resolver {
	if options == nil {
		options = &Options{}
	}

	r := &Resolver{
		store:    store,
		provider: provider,
		policy:   policy,
		catalog:  options.Catalog,
		cache:    options.Cache,
		fs:       options.Fs,
		out:      options.Out,
		logger:   options.Logger,
		options:  *options,
	}

	if r.cache == nil {
		r.cache = geocoding.NewCache()
	}

	if r.fs == nil {
		r.fs = afero.NewOsFs()
	}

	if r.out == nil {
		r.out = os.Stdout
	}

	if r.logger == nil {
		r.logger = zap.L()
	}

	return r
}

// Cache returns the location cache.
func (r *Resolver) Cache() *geocoding.Cache {
	return r.cache
}

// Run processes files in order. Only a cancelled context stops it early.
func (r *Resolver) Run(ctx context.Context, files []string) (*Report, error) {
	report := &Report{Outcomes: make([]Outcome, 0, len(files))}

	var bar *progressbar.ProgressBar
	if r.options.Progress {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription("Resolving"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return report, eris.Wrap(err, "resolve: run interrupted")
		}

		outcome := r.Process(ctx, path)
		if err := ctx.Err(); err != nil && outcome.Status == StatusFailed {
			// the failure is most likely the interruption itself
			return report, eris.Wrapf(err, "resolve: run interrupted at %s", path)
		}

		r.printOutcome(&outcome)

		report.Outcomes = append(report.Outcomes, outcome)
		report.Merge(&outcome.Metrics)

		if outcome.Status == StatusFailed {
			report.FailedFiles = append(report.FailedFiles, path)
		}

		if bar != nil {
			if err := bar.Add(1); err != nil {
				r.logger.Debug("updating progress bar", zap.Error(err))
			}
		}
	}

	return report, nil
}

func (r *Resolver) printOutcome(o *Outcome) {
	var b strings.Builder

	fmt.Fprintf(&b, "---> %s: ", o.Path)

	if o.Status == StatusFailed && o.Reason != "" {
		fmt.Fprintf(&b, "(!) %s ", o.Reason)
	}

	if o.Status == StatusUpdated && r.options.DryRun {
		parts := make([]string, 0, len(o.Written))
		for _, f := range o.Written {
			parts = append(parts, f.String()+"="+o.Fields.Get(f))
		}

		fmt.Fprintf(&b, "[TEST] Would write %s ", strings.Join(parts, ", "))
	}

	fmt.Fprintf(&b, "[%s]\n", o.Status)

	if _, err := io.WriteString(r.out, b.String()); err != nil {
		r.logger.Warn("writing status line", zap.Error(err))
	}
}

// Process resolves a single sidecar. Every failure is reported in the
// Outcome.
func (r *Resolver) Process(ctx context.Context, path string) Outcome {
	outcome := Outcome{Path: path, Metrics: Metrics{All: 1}}
	logger := r.logger.With(zap.String("file", path))

	fail := func(reason string, err error) Outcome {
		outcome.Status = StatusFailed
		outcome.Reason = reason
		outcome.Err = err
		outcome.Metrics.Failed++

		logger.Warn("sidecar failed", zap.String("reason", reason), zap.Error(err))

		return outcome
	}

	doc, err := r.store.Open(path)
	if err != nil {
		return fail("could not read sidecar", err)
	}

	current := LoadFieldSet(doc)
	original := current

	catalogOK := r.mergeCatalog(ctx, path, &current, &outcome, logger)

	dirty := false
	failed := false
	geocoded := false

	set := func(f Field, value string) {
		current.Set(f, value)
		doc.Set(f.Namespace(), f.String(), value)
		outcome.Written = append(outcome.Written, f)
		dirty = true
	}

	if r.needsLookup(&current) {
		record, origin := r.lookup(ctx, current.GPSLongitude, current.GPSLatitude, &outcome.Metrics, logger)
		outcome.Origin = origin

		if record.Usable() {
			for _, f := range LocationFields {
				lf, _ := f.locationField()

				value := record.Get(lf)
				if value == "" || value == original.Get(f) || !r.policy.PermitsWrite(original.Get(f), f) {
					continue
				}

				set(f, value)
			}

			geocoded = dirty
		} else {
			failed = true
			outcome.Reason = "could not geolocate"

			if cause := countFailure(record.Err, &outcome.Metrics); cause != "" {
				outcome.Reason += " (" + cause + ")"
			}

			if record.ErrorMessage != "" {
				outcome.Reason += ": " + record.ErrorMessage
			}

			outcome.Err = record.Err
		}
	}

	if !dirty && !failed && catalogOK {
		for _, f := range Fields {
			if current.Get(f) != original.Get(f) && r.policy.PermitsWrite(original.Get(f), f) {
				set(f, current.Get(f))
			}
		}

	}

	outcome.Fields = current

	switch {
	case dirty:
		if !r.options.DryRun {
			if err := r.save(doc, &outcome); err != nil {
				outcome.Written = nil

				return fail("could not write sidecar", err)
			}
		}

		outcome.Status = StatusUpdated
		outcome.Metrics.Changed++

		if geocoded {
			outcome.Metrics.Geocoded++
		} else {
			outcome.Metrics.Catalog++
		}
	case failed:
		outcome.Status = StatusFailed
		outcome.Metrics.Failed++

		logger.Warn("sidecar failed", zap.String("reason", outcome.Reason))
	default:
		outcome.Status = StatusSkipped
		outcome.Metrics.Skipped++
	}

	return outcome
}

// countFailure records provider failures that deserve their own summary
// line and returns a short description of them.
func countFailure(err error, m *Metrics) string {
	switch {
	case geocoding.IsQuotaExceededError(err):
		m.QuotaExceeded++

		return "quota exceeded"
	case geocoding.IsRateLimitError(err):
		m.RateLimited++

		return "rate limited"
	case geocoding.IsTimeoutError(err):
		m.TimedOut++

		return "timed out"
	default:
		return ""
	}
}

func (r *Resolver) save(doc sidecar.Document, outcome *Outcome) error {
	if !r.options.NoBackup {
		backup, err := Backup(r.fs, doc.Path())
		if err != nil {
			return err
		}

		outcome.Backup = backup
	}

	return eris.Wrapf(doc.Save(), "resolve: saving %s", doc.Path())
}

// mergeCatalog fills the empty fields of current from the catalog. It
// reports whether a unique catalog image was found.
func (r *Resolver) mergeCatalog(
	ctx context.Context,
	path string,
	current *FieldSet,
	outcome *Outcome,
	logger *zap.Logger,
) bool {
	if r.catalog == nil {
		return false
	}

	rec, err := r.catalog.Lookup(ctx, path)

	switch {
	case errors.Is(err, catalog.ErrAmbiguous):
		outcome.Metrics.CatalogAmbiguous++
		logger.Info("catalog returned more than one image")

		return false
	case errors.Is(err, catalog.ErrNotFound):
		outcome.Metrics.CatalogNotFound++
		logger.Info("no catalog data")

		return false
	case err != nil:
		outcome.Metrics.CatalogNotFound++
		logger.Warn("catalog lookup failed", zap.Error(err))

		return false
	}

	outcome.CatalogUsed = true

	if rec.GPSLatitude.Valid && current.GPSLatitude == "" {
		current.GPSLatitude = spatial.DecimalToSexagesimal(rec.GPSLatitude.Float64, spatial.Latitude)
	}

	if rec.GPSLongitude.Valid && current.GPSLongitude == "" {
		current.GPSLongitude = spatial.DecimalToSexagesimal(rec.GPSLongitude.Float64, spatial.Longitude)
	}

	fromCatalog := FieldSet{
		Location:    rec.Location,
		City:        rec.City,
		State:       rec.State,
		Country:     rec.Country,
		CountryCode: rec.CountryCode,
	}

	for _, f := range LocationFields {
		if v := fromCatalog.Get(f); v != "" && current.Get(f) == "" {
			current.Set(f, v)
			logger.Debug("catalog value", zap.Stringer("field", f), zap.String("value", v))
		}
	}

	return true
}

func (r *Resolver) needsLookup(current *FieldSet) bool {
	for _, f := range LocationFields {
		if r.policy.PermitsWrite(current.Get(f), f) {
			return true
		}
	}

	return false
}

// lookup resolves a coordinate through the cache, then the provider. The
// result is cached whatever its origin, errors included, unless ctx was
// cancelled during the request.
func (r *Resolver) lookup(
	ctx context.Context,
	longitude, latitude string,
	metrics *Metrics,
	logger *zap.Logger,
) (geocoding.LocationRecord, Origin) {
	key := geocoding.Key(longitude, latitude)

	if record, ok := r.cache.Get(key); ok {
		metrics.CacheHits++
		logger.Debug("cache hit", zap.String("key", key))

		return record, OriginCache
	}

	if r.options.FuzzyRadius > 0 {
		if record, matched, ok := r.cache.GetFuzzy(longitude, latitude, r.options.FuzzyRadius); ok {
			metrics.FuzzyCacheHits++
			logger.Debug("fuzzy cache hit", zap.String("key", key), zap.String("matched", matched))

			return record, OriginFuzzyCache
		}
	}

	metrics.Lookups++

	record := r.provider.Resolve(ctx, longitude, latitude)
	if ctx.Err() == nil {
		r.cache.Put(key, record)
	}

	logger.Debug("geocoded",
		zap.String("provider", r.provider.Name()),
		zap.String("key", key),
		zap.String("status", string(record.Status)),
		zap.String("country", record.Country))

	return record, OriginProvider
}
