// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

package sidecar

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
)

// Extension of the sidecar files picked up from directories.
const Extension = ".xmp"

// CollectFiles expands sources into the list of sidecars to process.
// Directories are walked recursively for *.xmp files; anything else is
// taken as given. Duplicates are dropped and the first-seen order kept.
func CollectFiles(afs afero.Fs, sources []string) ([]string, error) {
	var files []string

	seen := make(map[string]struct{})
	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}

		seen[path] = struct{}{}
		files = append(files, path)
	}

	for _, source := range sources {
		info, err := afs.Stat(source)
		if err != nil {
			return nil, eris.Wrapf(err, "sidecar: reading %s", source)
		}

		if !info.IsDir() {
			add(source)

			continue
		}

		err = afero.Walk(afs, source, func(path string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}

			if !info.IsDir() && strings.EqualFold(filepath.Ext(path), Extension) && !IsBackup(path) {
				add(path)
			}

			return nil
		})
		if err != nil {
			return nil, eris.Wrapf(err, "sidecar: walking %s", source)
		}
	}

	return files, nil
}

// IsBackup reports whether path looks like a "{base}.BK.{N}.xmp" backup.
func IsBackup(path string) bool {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	i := strings.LastIndex(stem, ".BK.")
	if i < 0 {
		return false
	}

	n := stem[i+len(".BK."):]
	if n == "" {
		return false
	}

	for _, r := range n {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}
