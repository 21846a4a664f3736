// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"fmt"
	"io"
	"strings"

	"github.com/jcodagnone/revgeo/utils/textutils"
)

// Metrics tracks what happened during a run.
type Metrics struct {
	All     int // sidecars processed
	Changed int // sidecars written (or that would be, in dry-run)
	Skipped int // nothing to write
	Failed  int // no usable location, or I/O failure

	Geocoded       int // sidecars updated from a geocoded location
	Lookups        int // provider requests
	CacheHits      int // exact cache hits
	FuzzyCacheHits int // cache hits within the fuzzy radius

	RateLimited   int // failed because the provider asked to slow down
	QuotaExceeded int // failed because the provider quota ran out
	TimedOut      int // failed because the provider did not answer in time

	Catalog          int // sidecars updated from catalog data alone
	CatalogNotFound  int // no catalog image for the sidecar
	CatalogAmbiguous int // more than one catalog image for the sidecar
}

// Merge combines two Metrics.
func (m *Metrics) Merge(o *Metrics) *Metrics {
	if o == nil {
		return m
	}

	m.All += o.All
	m.Changed += o.Changed
	m.Skipped += o.Skipped
	m.Failed += o.Failed
	m.Geocoded += o.Geocoded
	m.Lookups += o.Lookups
	m.CacheHits += o.CacheHits
	m.FuzzyCacheHits += o.FuzzyCacheHits
	m.RateLimited += o.RateLimited
	m.QuotaExceeded += o.QuotaExceeded
	m.TimedOut += o.TimedOut
	m.Catalog += o.Catalog
	m.CatalogNotFound += o.CatalogNotFound
	m.CatalogAmbiguous += o.CatalogAmbiguous

	return m
}

// Report is the result of a batch run.
type Report struct {
	Metrics
	Outcomes    []Outcome
	FailedFiles []string
}

const summaryWidth = 37

// PrintSummary writes the end of run statistics.
func (r *Report) PrintSummary(w io.Writer, withCatalog bool) {
	line := func(label string, n int) {
		fmt.Fprintf(w, "%-28s: %7s\n", label, textutils.FormatInt(int64(n)))
	}

	fmt.Fprintln(w, strings.Repeat("=", summaryWidth))
	line("XMP Files found", r.All)
	line("Updated", r.Changed)
	line("Skipped", r.Skipped)
	line("New GeoLocation", r.Geocoded)
	line("Provider lookups", r.Lookups)
	line("GeoLocation from Cache", r.CacheHits)
	line("GeoLocation from Fuzzy Cache", r.FuzzyCacheHits)
	line("Failed reverse GeoLocate", r.Failed)

	for _, c := range []struct {
		label string
		n     int
	}{
		{"  rate limited", r.RateLimited},
		{"  quota exceeded", r.QuotaExceeded},
		{"  timed out", r.TimedOut},
	} {
		if c.n > 0 {
			line(c.label, c.n)
		}
	}

	if withCatalog {
		line("GeoLocation from Lightroom", r.Catalog)
		line("No Lightroom data found", r.CatalogNotFound)
		line("More than one found in LR", r.CatalogAmbiguous)
	}

	if len(r.FailedFiles) > 0 {
		fmt.Fprintln(w, strings.Repeat("-", summaryWidth))
		fmt.Fprintln(w, "Files that failed to update:")
		fmt.Fprintln(w, strings.Join(r.FailedFiles, ", "))
	}
}
