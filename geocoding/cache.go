// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/jcodagnone/revgeo/spatial"
	"github.com/uber/h3-go/v4"
)

// keySeparator joins longitude and latitude in cache keys.
const keySeparator = "#"

// Key builds the exact cache key for a coordinate pair, as stored in the
// sidecar (no rounding).
func Key(longitude, latitude string) string {
	return longitude + keySeparator + latitude
}

// Fuzzy lookups only look at the ring-1 disk around the query cell. A
// resolution can be used when the radius is below half its average edge
// length, which keeps every point within the radius inside that disk.
var h3Resolutions = []struct {
	resolution int
	maxRadius  float64 // meters
}{
	{10, 32},
	{9, 87},
	{8, 230},
	{7, 610},
	{6, 1614},
	{5, 4272},
}

type cacheEntry struct {
	key    string
	record LocationRecord
	point  spatial.Point
	valid  bool // the key parses as a coordinate pair
}

// Cache remembers resolved locations for the lifetime of a run. Entries are
// never evicted and keep their insertion order, which decides ties between
// equidistant fuzzy matches.
type Cache struct {
	mu      sync.Mutex
	byKey   map[string]int
	entries []*cacheEntry
	cells   map[int]map[h3.Cell][]int
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		byKey: make(map[string]int),
		cells: make(map[int]map[h3.Cell][]int),
	}
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Get returns the record stored under key.
func (c *Cache) Get(key string) (LocationRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.byKey[key]
	if !ok {
		return LocationRecord{}, false
	}

	return c.entries[i].record, true
}

// Put stores record under key, replacing any previous value.
func (c *Cache) Put(key string, record LocationRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.put(key, record)
}

// GetFuzzy returns the record of the nearest cached coordinate within
// radiusMeters of the query, and stores it under the query key so the next
// identical lookup is exact. matched is the key of the entry that was used.
func (c *Cache) GetFuzzy(longitude, latitude string, radiusMeters float64) (record LocationRecord, matched string, ok bool) {
	query, err := spatial.ParsePoint(longitude, latitude)
	if err != nil || radiusMeters < 0 || math.IsNaN(radiusMeters) {
		return LocationRecord{}, "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	best := -1
	bestDistance := math.Inf(1)

	for _, i := range c.candidates(query, radiusMeters) {
		e := c.entries[i]
		if !e.valid {
			continue
		}

		if d := spatial.DistanceMeters(query, e.point); d < bestDistance {
			best, bestDistance = i, d
		}
	}

	if best < 0 || bestDistance > radiusMeters {
		return LocationRecord{}, "", false
	}

	hit := c.entries[best]
	c.put(Key(longitude, latitude), hit.record)

	return hit.record, hit.key, true
}

func (c *Cache) put(key string, record LocationRecord) {
	if i, ok := c.byKey[key]; ok {
		c.entries[i].record = record

		return
	}

	e := &cacheEntry{key: key, record: record}

	if lng, lat, found := strings.Cut(key, keySeparator); found {
		if p, err := spatial.ParsePoint(lng, lat); err == nil {
			e.point, e.valid = p, true
		}
	}

	i := len(c.entries)
	c.entries = append(c.entries, e)
	c.byKey[key] = i

	if e.valid {
		c.index(i, e.point)
	}
}

func (c *Cache) index(i int, p spatial.Point) {
	latLng := h3.NewLatLng(p.Lat, p.Lng)

	for _, r := range h3Resolutions {
		cell, err := h3.LatLngToCell(latLng, r.resolution)
		if err != nil {
			continue
		}

		byCell, ok := c.cells[r.resolution]
		if !ok {
			byCell = make(map[h3.Cell][]int)
			c.cells[r.resolution] = byCell
		}

		byCell[cell] = append(byCell[cell], i)
	}
}

// candidates returns the entry indexes worth measuring, in insertion order.
func (c *Cache) candidates(query spatial.Point, radiusMeters float64) []int {
	if all := c.allIndexes(); len(all) <= 32 {
		return all
	}

	for _, r := range h3Resolutions {
		if radiusMeters > r.maxRadius {
			continue
		}

		cell, err := h3.LatLngToCell(h3.NewLatLng(query.Lat, query.Lng), r.resolution)
		if err != nil {
			break
		}

		disk, err := h3.GridDisk(cell, 1)
		if err != nil {
			break
		}

		var out []int
		for _, neighbor := range disk {
			out = append(out, c.cells[r.resolution][neighbor]...)
		}

		slices.Sort(out)

		return out
	}

	return c.allIndexes()
}

func (c *Cache) allIndexes() []int {
	out := make([]int, len(c.entries))
	for i := range out {
		out[i] = i
	}

	return out
}
