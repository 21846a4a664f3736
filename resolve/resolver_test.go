// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"bytes"
	"context"
	"database/sql"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jcodagnone/revgeo/catalog"
	"github.com/jcodagnone/revgeo/geocoding"
	"github.com/jcodagnone/revgeo/sidecar"
	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	records  map[string]geocoding.LocationRecord
	fallback geocoding.LocationRecord
	calls    []string

	// onResolve runs before answering, to simulate side effects of a request
	onResolve func()
}

func (p *fakeProvider) Name() string {
	return "fake"
}

func (p *fakeProvider) Resolve(_ context.Context, longitude, latitude string) geocoding.LocationRecord {
	key := geocoding.Key(longitude, latitude)
	p.calls = append(p.calls, key)

	if p.onResolve != nil {
		p.onResolve()
	}

	if r, ok := p.records[key]; ok {
		return r
	}

	return p.fallback
}

// brokenSaveStore hands out documents that cannot be saved.
type brokenSaveStore struct {
	*sidecar.MemoryStore
}

type brokenSaveDocument struct {
	sidecar.Document
}

func (s brokenSaveStore) Open(path string) (sidecar.Document, error) {
	doc, err := s.MemoryStore.Open(path)
	if err != nil {
		return nil, err
	}

	return brokenSaveDocument{doc}, nil
}

func (brokenSaveDocument) Save() error {
	return eris.New("disk full")
}

type fakeCatalog struct {
	records map[string]*catalog.Record
	errs    map[string]error
}

func (c *fakeCatalog) Lookup(_ context.Context, path string) (*catalog.Record, error) {
	if err, ok := c.errs[path]; ok {
		return nil, err
	}

	if r, ok := c.records[path]; ok {
		return r, nil
	}

	return nil, eris.Wrap(catalog.ErrNotFound, path)
}

var shibuya = geocoding.LocationRecord{
	Country:     "Japan",
	City:        "Shibuya",
	CountryCode: "JP",
	Status:      geocoding.StatusOK,
}

type fixture struct {
	store    *sidecar.MemoryStore
	fs       afero.Fs
	out      *bytes.Buffer
	provider *fakeProvider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	return &fixture{
		store:    sidecar.NewMemoryStore(),
		fs:       afero.NewMemMapFs(),
		out:      &bytes.Buffer{},
		provider: &fakeProvider{fallback: shibuya},
	}
}

// add registers a sidecar both in the store and on the file system.
func (f *fixture) add(t *testing.T, path string, fields FieldSet) {
	t.Helper()

	props := make(map[string]string)

	for _, field := range Fields {
		if v := fields.Get(field); v != "" {
			props[sidecar.Key(field.Namespace(), field.String())] = v
		}
	}

	f.store.Add(path, props)
	require.NoError(t, afero.WriteFile(f.fs, path, []byte("<xmp/>"), 0o644))
}

func (f *fixture) stored(path string) FieldSet {
	props := f.store.Properties(path)

	var s FieldSet
	for _, field := range Fields {
		s.Set(field, props[sidecar.Key(field.Namespace(), field.String())])
	}

	return s
}

func (f *fixture) resolver(t *testing.T, tokens []string, opts Options) *Resolver {
	t.Helper()

	policy, err := NewPolicy(tokens)
	require.NoError(t, err)

	opts.Fs = f.fs
	opts.Out = f.out
	opts.Logger = zap.NewNop()

	return NewResolver(f.store, f.provider, policy, &opts)
}

func TestResolver_FillsEmptyFields(t *testing.T) {
	f := newFixture(t)
	f.add(t, "/photos/IMG_0001.xmp", FieldSet{GPSLatitude: "35,39.57N", GPSLongitude: "139,42.03E"})

	r := f.resolver(t, nil, Options{})

	outcome := r.Process(context.Background(), "/photos/IMG_0001.xmp")

	assert.Equal(t, StatusUpdated, outcome.Status)
	assert.Equal(t, OriginProvider, outcome.Origin)
	assert.Equal(t, []Field{FieldCity, FieldCountry, FieldCountryCode}, outcome.Written)
	assert.Equal(t, "/photos/IMG_0001.BK.1.xmp", outcome.Backup)

	want := FieldSet{
		GPSLatitude:  "35,39.57N",
		GPSLongitude: "139,42.03E",
		City:         "Shibuya",
		Country:      "Japan",
		CountryCode:  "JP",
	}
	if diff := cmp.Diff(want, f.stored("/photos/IMG_0001.xmp")); diff != "" {
		t.Errorf("stored fields mismatch (-want +got):\n%s", diff)
	}

	exists, err := afero.Exists(f.fs, "/photos/IMG_0001.BK.1.xmp")
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Equal(t, []string{"139,42.03E#35,39.57N"}, f.provider.calls)
	assert.Equal(t, Metrics{All: 1, Changed: 1, Geocoded: 1, Lookups: 1}, outcome.Metrics)
}

func TestResolver_OverwriteWithFieldToken(t *testing.T) {
	f := newFixture(t)
	f.provider.fallback = geocoding.LocationRecord{Country: "France (alt)", City: "Paris", Status: geocoding.StatusOK}
	f.add(t, "/photos/paris.xmp", FieldSet{GPSLatitude: "48,51.636N", GPSLongitude: "2,20.184E", Country: "France"})

	r := f.resolver(t, []string{"overwrite", "country"}, Options{})

	outcome := r.Process(context.Background(), "/photos/paris.xmp")

	assert.Equal(t, StatusUpdated, outcome.Status)
	assert.Equal(t, []Field{FieldCountry}, outcome.Written)
	assert.Equal(t, "France (alt)", f.stored("/photos/paris.xmp").Country)
	assert.Empty(t, f.stored("/photos/paris.xmp").City)
}

func TestResolver_EmptyCountryFails(t *testing.T) {
	f := newFixture(t)
	f.provider.fallback = geocoding.LocationRecord{City: "Nowhere", Status: geocoding.StatusOK}
	f.add(t, "/photos/sea.xmp", FieldSet{GPSLatitude: "0,1.0N", GPSLongitude: "160,1.0W"})

	r := f.resolver(t, nil, Options{})

	report, err := r.Run(context.Background(), []string{"/photos/sea.xmp"})
	require.NoError(t, err)

	assert.Equal(t, []string{"/photos/sea.xmp"}, report.FailedFiles)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, StatusFailed, report.Outcomes[0].Status)
	assert.Equal(t, 0, f.store.Saves("/photos/sea.xmp"))
	assert.Empty(t, f.stored("/photos/sea.xmp").City)

	exists, _ := afero.Exists(f.fs, "/photos/sea.BK.1.xmp")
	assert.False(t, exists)

	assert.Contains(t, f.out.String(), "---> /photos/sea.xmp: (!) could not geolocate [FAILED]\n")
}

func TestResolver_ProviderErrorFails(t *testing.T) {
	f := newFixture(t)
	f.provider.fallback = geocoding.LocationRecord{
		Status:       geocoding.StatusError,
		ErrorMessage: "REQUEST_DENIED",
		Err:          &geocoding.GeocodingError{Type: geocoding.ErrorTypeInvalidRequest, Message: "REQUEST_DENIED"},
	}
	f.add(t, "/photos/a.xmp", FieldSet{GPSLatitude: "35,39.57N", GPSLongitude: "139,42.03E"})

	outcome := f.resolver(t, nil, Options{}).Process(context.Background(), "/photos/a.xmp")

	assert.Equal(t, StatusFailed, outcome.Status)
	assert.Equal(t, "could not geolocate: REQUEST_DENIED", outcome.Reason)
	assert.Equal(t, geocoding.ErrorTypeInvalidRequest, geocoding.TypeOf(outcome.Err))
}

func TestResolver_CacheAvoidsSecondLookup(t *testing.T) {
	f := newFixture(t)
	f.add(t, "/photos/a.xmp", FieldSet{GPSLatitude: "35,39.57N", GPSLongitude: "139,42.03E"})
	f.add(t, "/photos/b.xmp", FieldSet{GPSLatitude: "35,39.57N", GPSLongitude: "139,42.03E"})

	r := f.resolver(t, nil, Options{})

	report, err := r.Run(context.Background(), []string{"/photos/a.xmp", "/photos/b.xmp"})
	require.NoError(t, err)

	assert.Len(t, f.provider.calls, 1)
	assert.Equal(t, 1, report.CacheHits)
	assert.Equal(t, 2, report.Changed)
	assert.Equal(t, OriginCache, report.Outcomes[1].Origin)
	assert.Equal(t, "Shibuya", f.stored("/photos/b.xmp").City)
}

func TestResolver_FuzzyCache(t *testing.T) {
	tests := []struct {
		name      string
		secondLat string
		wantCalls int
		wantFuzzy int
	}{
		{"5 meters away hits", "35,39.5727N", 1, 1},
		{"50 meters away misses", "35,39.597N", 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.add(t, "/photos/a.xmp", FieldSet{GPSLatitude: "35,39.57N", GPSLongitude: "139,42.03E"})
			f.add(t, "/photos/b.xmp", FieldSet{GPSLatitude: tt.secondLat, GPSLongitude: "139,42.03E"})

			r := f.resolver(t, nil, Options{FuzzyRadius: 10})

			report, err := r.Run(context.Background(), []string{"/photos/a.xmp", "/photos/b.xmp"})
			require.NoError(t, err)

			assert.Len(t, f.provider.calls, tt.wantCalls)
			assert.Equal(t, tt.wantFuzzy, report.FuzzyCacheHits)

			_, ok := r.Cache().Get(geocoding.Key("139,42.03E", tt.secondLat))
			assert.True(t, ok)
		})
	}
}

func TestResolver_CatalogOnly(t *testing.T) {
	f := newFixture(t)
	f.add(t, "/photos/IMG_0002.xmp", FieldSet{
		Location:    "Dogenzaka",
		State:       "Tokyo",
		Country:     "Japan",
		CountryCode: "JP",
	})

	cat := &fakeCatalog{records: map[string]*catalog.Record{
		"/photos/IMG_0002.xmp": {
			GPSLatitude:  sql.NullFloat64{Float64: 35.6595, Valid: true},
			GPSLongitude: sql.NullFloat64{Float64: 139.7005, Valid: true},
			City:         "Shibuya",
			Country:      "Nippon",
		},
	}}

	r := f.resolver(t, nil, Options{Catalog: cat})

	outcome := r.Process(context.Background(), "/photos/IMG_0002.xmp")

	assert.Equal(t, StatusUpdated, outcome.Status)
	assert.True(t, outcome.CatalogUsed)
	assert.Equal(t, OriginNone, outcome.Origin)
	assert.Empty(t, f.provider.calls)
	assert.Equal(t, []Field{FieldGPSLatitude, FieldGPSLongitude, FieldCity}, outcome.Written)
	assert.Equal(t, 1, outcome.Metrics.Catalog)

	got := f.stored("/photos/IMG_0002.xmp")
	assert.Equal(t, "35,39.57N", got.GPSLatitude)
	assert.Equal(t, "139,42.03E", got.GPSLongitude)
	assert.Equal(t, "Shibuya", got.City)
	assert.Equal(t, "Japan", got.Country)
}

func TestResolver_CatalogGPSFeedsGeocoder(t *testing.T) {
	f := newFixture(t)
	f.add(t, "/photos/IMG_0003.xmp", FieldSet{})

	cat := &fakeCatalog{records: map[string]*catalog.Record{
		"/photos/IMG_0003.xmp": {
			GPSLatitude:  sql.NullFloat64{Float64: 35.6595, Valid: true},
			GPSLongitude: sql.NullFloat64{Float64: 139.7005, Valid: true},
		},
	}}

	outcome := f.resolver(t, nil, Options{Catalog: cat}).Process(context.Background(), "/photos/IMG_0003.xmp")

	assert.Equal(t, StatusUpdated, outcome.Status)
	assert.Equal(t, []string{"139,42.03E#35,39.57N"}, f.provider.calls)
	assert.Equal(t, "Japan", f.stored("/photos/IMG_0003.xmp").Country)
}

func TestResolver_CatalogCounters(t *testing.T) {
	f := newFixture(t)
	full := FieldSet{
		GPSLatitude: "1,0.0N", GPSLongitude: "1,0.0E",
		Location: "L", City: "C", State: "S", Country: "K", CountryCode: "KK",
	}
	f.add(t, "/photos/missing.xmp", full)
	f.add(t, "/photos/twice.xmp", full)

	cat := &fakeCatalog{errs: map[string]error{
		"/photos/twice.xmp": eris.Wrap(catalog.ErrAmbiguous, "twice"),
	}}

	report, err := f.resolver(t, nil, Options{Catalog: cat}).Run(context.Background(), []string{"/photos/missing.xmp", "/photos/twice.xmp"})
	require.NoError(t, err)

	assert.Equal(t, 1, report.CatalogNotFound)
	assert.Equal(t, 1, report.CatalogAmbiguous)
	assert.Equal(t, 2, report.Skipped)
	assert.Empty(t, f.provider.calls)
}

func TestResolver_DryRun(t *testing.T) {
	f := newFixture(t)
	f.add(t, "/photos/a.xmp", FieldSet{GPSLatitude: "35,39.57N", GPSLongitude: "139,42.03E"})

	report, err := f.resolver(t, nil, Options{DryRun: true}).Run(context.Background(), []string{"/photos/a.xmp"})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Changed)
	assert.Equal(t, 0, f.store.Saves("/photos/a.xmp"))
	assert.Empty(t, f.stored("/photos/a.xmp").Country)

	exists, _ := afero.Exists(f.fs, "/photos/a.BK.1.xmp")
	assert.False(t, exists)

	assert.Equal(t,
		"---> /photos/a.xmp: [TEST] Would write City=Shibuya, Country=Japan, CountryCode=JP [UPDATED]\n",
		f.out.String())
}

func TestResolver_NoBackup(t *testing.T) {
	f := newFixture(t)
	f.add(t, "/photos/a.xmp", FieldSet{GPSLatitude: "35,39.57N", GPSLongitude: "139,42.03E"})

	outcome := f.resolver(t, nil, Options{NoBackup: true}).Process(context.Background(), "/photos/a.xmp")

	assert.Equal(t, StatusUpdated, outcome.Status)
	assert.Empty(t, outcome.Backup)
	assert.Equal(t, 1, f.store.Saves("/photos/a.xmp"))

	exists, _ := afero.Exists(f.fs, "/photos/a.BK.1.xmp")
	assert.False(t, exists)
}

func TestResolver_SkipsCompleteSidecar(t *testing.T) {
	f := newFixture(t)
	f.add(t, "/photos/a.xmp", FieldSet{
		GPSLatitude: "35,39.57N", GPSLongitude: "139,42.03E",
		Location: "Dogenzaka", City: "Shibuya", State: "Tokyo", Country: "Japan", CountryCode: "JP",
	})

	outcome := f.resolver(t, nil, Options{}).Process(context.Background(), "/photos/a.xmp")

	assert.Equal(t, StatusSkipped, outcome.Status)
	assert.Empty(t, f.provider.calls)
	assert.Equal(t, 0, f.store.Saves("/photos/a.xmp"))
}

func TestResolver_UnreadableSidecar(t *testing.T) {
	f := newFixture(t)

	report, err := f.resolver(t, nil, Options{}).Run(context.Background(), []string{"/photos/ghost.xmp"})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{"/photos/ghost.xmp"}, report.FailedFiles)
}

func TestResolver_Cancelled(t *testing.T) {
	f := newFixture(t)
	f.add(t, "/photos/a.xmp", FieldSet{GPSLatitude: "35,39.57N", GPSLongitude: "139,42.03E"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.resolver(t, nil, Options{}).Run(ctx, []string{"/photos/a.xmp"})
	require.Error(t, err)
	assert.Empty(t, report.Outcomes)
}

func TestReport_PrintSummary(t *testing.T) {
	report := &Report{
		Metrics:     Metrics{All: 1234, Changed: 1000, Skipped: 200, Failed: 34, CatalogNotFound: 3},
		FailedFiles: []string{"/a.xmp", "/b.xmp"},
	}

	var buf bytes.Buffer
	report.PrintSummary(&buf, true)

	out := buf.String()
	assert.Contains(t, out, "XMP Files found             :   1,234\n")
	assert.Contains(t, out, "Updated                     :   1,000\n")
	assert.Contains(t, out, "No Lightroom data found     :       3\n")
	assert.Contains(t, out, "Files that failed to update:\n/a.xmp, /b.xmp\n")

	buf.Reset()
	(&Report{}).PrintSummary(&buf, false)
	assert.NotContains(t, buf.String(), "Lightroom")
	assert.NotContains(t, buf.String(), "failed to update")
}

func TestMetrics_Merge(t *testing.T) {
	m := &Metrics{All: 1, Changed: 1, Lookups: 1}
	m.Merge(&Metrics{All: 2, Failed: 1, CacheHits: 3, QuotaExceeded: 1}).Merge(nil)

	assert.Equal(t, Metrics{All: 3, Changed: 1, Failed: 1, Lookups: 1, CacheHits: 3, QuotaExceeded: 1}, *m)
}

func TestResolver_SaveFailureIsNotCountedAsUpdate(t *testing.T) {
	tests := []struct {
		name    string
		fields  FieldSet
		catalog *fakeCatalog
	}{
		{
			name:   "geocoded",
			fields: FieldSet{GPSLatitude: "35,39.57N", GPSLongitude: "139,42.03E"},
		},
		{
			name: "catalog only",
			fields: FieldSet{
				GPSLatitude: "35,39.57N", GPSLongitude: "139,42.03E",
				Location: "Dogenzaka", State: "Tokyo", Country: "Japan", CountryCode: "JP",
			},
			catalog: &fakeCatalog{records: map[string]*catalog.Record{
				"/photos/a.xmp": {City: "Shibuya"},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.add(t, "/photos/a.xmp", tt.fields)

			opts := &Options{Fs: f.fs, Out: f.out, Logger: zap.NewNop()}
			if tt.catalog != nil {
				opts.Catalog = tt.catalog
			}

			r := NewResolver(brokenSaveStore{f.store}, f.provider, Policy{}, opts)

			report, err := r.Run(context.Background(), []string{"/photos/a.xmp"})
			require.NoError(t, err)

			assert.Equal(t, Metrics{
				All:      1,
				Failed:   1,
				Lookups:  len(f.provider.calls),
				Geocoded: 0,
				Catalog:  0,
			}, report.Metrics)
			assert.Equal(t, "could not write sidecar", report.Outcomes[0].Reason)
			assert.Empty(t, report.Outcomes[0].Written)
			assert.Equal(t, []string{"/photos/a.xmp"}, report.FailedFiles)
		})
	}
}

func TestResolver_ProviderFailureCauses(t *testing.T) {
	tests := []struct {
		name       string
		record     geocoding.LocationRecord
		wantReason string
		want       Metrics
	}{
		{
			name: "quota",
			record: geocoding.LocationRecord{
				Status:       geocoding.StatusError,
				ErrorMessage: "You have exceeded your daily request quota.",
				Err:          &geocoding.GeocodingError{Type: geocoding.ErrorTypeQuotaExceeded, Message: "OVER_DAILY_LIMIT"},
			},
			wantReason: "could not geolocate (quota exceeded): You have exceeded your daily request quota.",
			want:       Metrics{All: 1, Failed: 1, Lookups: 1, QuotaExceeded: 1},
		},
		{
			name: "rate limit",
			record: geocoding.LocationRecord{
				Status: geocoding.StatusError,
				Err:    geocoding.ClassifyHTTPError(429, ""),
			},
			wantReason: "could not geolocate (rate limited)",
			want:       Metrics{All: 1, Failed: 1, Lookups: 1, RateLimited: 1},
		},
		{
			name: "timeout",
			record: geocoding.LocationRecord{
				Status: geocoding.StatusError,
				Err:    eris.Wrap(&geocoding.GeocodingError{Type: geocoding.ErrorTypeTimeout}, "fetch"),
			},
			wantReason: "could not geolocate (timed out)",
			want:       Metrics{All: 1, Failed: 1, Lookups: 1, TimedOut: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.provider.fallback = tt.record
			f.add(t, "/photos/a.xmp", FieldSet{GPSLatitude: "35,39.57N", GPSLongitude: "139,42.03E"})

			outcome := f.resolver(t, nil, Options{}).Process(context.Background(), "/photos/a.xmp")

			assert.Equal(t, StatusFailed, outcome.Status)
			assert.Equal(t, tt.wantReason, outcome.Reason)
			assert.Equal(t, tt.want, outcome.Metrics)
		})
	}
}

func TestResolver_InterruptedLookupIsDropped(t *testing.T) {
	f := newFixture(t)
	f.add(t, "/photos/a.xmp", FieldSet{GPSLatitude: "35,39.57N", GPSLongitude: "139,42.03E"})
	f.add(t, "/photos/b.xmp", FieldSet{GPSLatitude: "35,39.57N", GPSLongitude: "139,42.03E"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.provider.onResolve = cancel
	f.provider.fallback = geocoding.LocationRecord{
		Status: geocoding.StatusError,
		Err:    &geocoding.GeocodingError{Type: geocoding.ErrorTypeNetworkError, Err: context.Canceled},
	}

	r := f.resolver(t, nil, Options{})

	report, err := r.Run(ctx, []string{"/photos/a.xmp", "/photos/b.xmp"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Empty(t, report.Outcomes)
	assert.Empty(t, report.FailedFiles)
	assert.Equal(t, 0, report.Failed)
	assert.Empty(t, f.out.String())
	assert.Equal(t, 0, r.Cache().Len())
	assert.Len(t, f.provider.calls, 1)
}

func TestReport_PrintSummaryFailureCauses(t *testing.T) {
	var buf bytes.Buffer
	(&Report{Metrics: Metrics{Failed: 3, QuotaExceeded: 2, TimedOut: 1}}).PrintSummary(&buf, false)

	out := buf.String()
	assert.Contains(t, out, "  quota exceeded            :       2\n")
	assert.Contains(t, out, "  timed out                 :       1\n")
	assert.NotContains(t, out, "rate limited")
}
