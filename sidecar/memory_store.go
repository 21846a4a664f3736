// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

package sidecar

import (
	"maps"
	"sync"

	"github.com/rotisserie/eris"
)

// ErrNoSidecar is returned by MemoryStore.Open for unknown paths.
var ErrNoSidecar = eris.New("sidecar: no such sidecar")

// MemoryStore keeps sidecar properties in memory, keyed by
// "namespace:key". Documents only become visible to other Open calls once
// saved.
type MemoryStore struct {
	mu    sync.Mutex
	files map[string]map[string]string
	saves map[string]int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files: make(map[string]map[string]string),
		saves: make(map[string]int),
	}
}

// Add registers a sidecar with the given properties.
func (s *MemoryStore) Add(path string, properties map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files[path] = maps.Clone(properties)
	if s.files[path] == nil {
		s.files[path] = make(map[string]string)
	}
}

// Properties returns a copy of what is stored for path.
func (s *MemoryStore) Properties(path string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return maps.Clone(s.files[path])
}

// Saves reports how many times path was saved.
func (s *MemoryStore) Saves(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saves[path]
}

func (s *MemoryStore) Open(path string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	props, ok := s.files[path]
	if !ok {
		return nil, eris.Wrap(ErrNoSidecar, path)
	}

	return &memoryDocument{store: s, path: path, props: maps.Clone(props)}, nil
}

// Key builds the property key used by MemoryStore.
func Key(namespace, key string) string {
	return qualified(namespace, key)
}

type memoryDocument struct {
	store *MemoryStore
	path  string
	props map[string]string
}

func (d *memoryDocument) Path() string {
	return d.path
}

func (d *memoryDocument) Exists(namespace, key string) bool {
	_, ok := d.props[qualified(namespace, key)]

	return ok
}

func (d *memoryDocument) Get(namespace, key string) string {
	return d.props[qualified(namespace, key)]
}

func (d *memoryDocument) Set(namespace, key, value string) {
	d.props[qualified(namespace, key)] = value
}

func (d *memoryDocument) Save() error {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()

	d.store.files[d.path] = maps.Clone(d.props)
	d.store.saves[d.path]++

	return nil
}
