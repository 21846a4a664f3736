// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

package sidecar

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	s.Add("/photos/a.xmp", map[string]string{
		Key(NamespacePhotoshop, "City"): "Shibuya",
	})

	doc, err := s.Open("/photos/a.xmp")
	require.NoError(t, err)

	assert.Equal(t, "/photos/a.xmp", doc.Path())
	assert.True(t, doc.Exists(NamespacePhotoshop, "City"))
	assert.False(t, doc.Exists(NamespacePhotoshop, "Country"))
	assert.Equal(t, "Shibuya", doc.Get(NamespacePhotoshop, "City"))
	assert.Equal(t, "", doc.Get(NamespacePhotoshop, "Country"))

	doc.Set(NamespacePhotoshop, "Country", "Japan")
	assert.NotContains(t, s.Properties("/photos/a.xmp"), Key(NamespacePhotoshop, "Country"))

	require.NoError(t, doc.Save())
	assert.Equal(t, "Japan", s.Properties("/photos/a.xmp")[Key(NamespacePhotoshop, "Country")])
	assert.Equal(t, 1, s.Saves("/photos/a.xmp"))

	_, err = s.Open("/photos/missing.xmp")
	assert.True(t, errors.Is(err, ErrNoSidecar))
}

func TestCollectFiles(t *testing.T) {
	afs := afero.NewMemMapFs()

	for _, name := range []string{
		"/photos/2024/b.xmp",
		"/photos/2024/a.xmp",
		"/photos/2024/a.BK.1.xmp",
		"/photos/2024/a.jpg",
		"/photos/2025/trip/c.XMP",
		"/loose/d.xmp",
	} {
		require.NoError(t, afero.WriteFile(afs, name, []byte("<x/>"), 0o644))
	}

	got, err := CollectFiles(afs, []string{"/photos", "/loose/d.xmp", "/photos/2024/a.xmp"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/photos/2024/a.xmp",
		"/photos/2024/b.xmp",
		"/photos/2025/trip/c.XMP",
		"/loose/d.xmp",
	}, got)

	_, err = CollectFiles(afs, []string{"/nowhere"})
	assert.Error(t, err)
}

func TestIsBackup(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"a.BK.1.xmp", true},
		{"/x/IMG_0001.BK.12.xmp", true},
		{"a.xmp", false},
		{"a.BK.xmp", false},
		{"a.BK.x1.xmp", false},
		{"BK.2024.trip.xmp", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBackup(tt.path))
		})
	}
}

const sampleXMP = `<?xpacket begin="" id="W5M0MpCehiHzreSzNTczkc9d"?>
<x:xmpmeta xmlns:x="adobe:ns:meta/">
 <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
  <rdf:Description rdf:about=""
    xmlns:exif="http://ns.adobe.com/exif/1.0/"
    xmlns:photoshop="http://ns.adobe.com/photoshop/1.0/"
   exif:GPSLatitude="35,39.57N"
   exif:GPSLongitude="139,42.03E"
   photoshop:City="Shibuya"/>
 </rdf:RDF>
</x:xmpmeta>
<?xpacket end="w"?>`

func TestExifToolStore(t *testing.T) {
	store, err := NewExifToolStore()
	if err != nil {
		t.Skipf("exiftool not available: %v", err)
	}

	defer store.Close()

	path := filepath.Join(t.TempDir(), "IMG_0001.xmp")
	require.NoError(t, os.WriteFile(path, []byte(sampleXMP), 0o644))

	doc, err := store.Open(path)
	require.NoError(t, err)

	assert.Equal(t, "35,39.57N", doc.Get(NamespaceExif, "GPSLatitude"))
	assert.Equal(t, "139,42.03E", doc.Get(NamespaceExif, "GPSLongitude"))
	assert.Equal(t, "Shibuya", doc.Get(NamespacePhotoshop, "City"))
	assert.False(t, doc.Exists(NamespacePhotoshop, "Country"))

	doc.Set(NamespacePhotoshop, "Country", "Japan")
	doc.Set(NamespaceIptcCore, "CountryCode", "JP")
	require.NoError(t, doc.Save())

	reopened, err := store.Open(path)
	require.NoError(t, err)

	assert.Equal(t, "Japan", reopened.Get(NamespacePhotoshop, "Country"))
	assert.Equal(t, "JP", reopened.Get(NamespaceIptcCore, "CountryCode"))
	assert.Equal(t, "Shibuya", reopened.Get(NamespacePhotoshop, "City"))
	assert.Equal(t, "35,39.57N", reopened.Get(NamespaceExif, "GPSLatitude"))
}
