// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

// Package sidecar reads and writes the XMP properties revgeo cares about.
package sidecar

// XMP namespaces (exiftool family 1 group names).
const (
	NamespaceExif      = "XMP-exif"
	NamespaceIptcCore  = "XMP-iptcCore"
	NamespacePhotoshop = "XMP-photoshop"
)

// Document is an opened sidecar. Properties are addressed by namespace
// and key, e.g. ("XMP-photoshop", "City").
//
// GPS coordinates are exposed in the sidecar notation "35,39.57N",
// whatever the underlying store keeps.
type Document interface {
	Path() string
	Exists(namespace, key string) bool
	Get(namespace, key string) string
	Set(namespace, key, value string)

	// Save persists the properties set since the document was opened.
	Save() error
}

// Store opens sidecar documents.
type Store interface {
	Open(path string) (Document, error)
}

func qualified(namespace, key string) string {
	return namespace + ":" + key
}
