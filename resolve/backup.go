// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
)

// NextBackupPath returns "{base}.BK.{N}{ext}" next to path, with N one more
// than the highest backup number already present.
func NextBackupPath(afs afero.Fs, path string) (string, error) {
	dir, name := filepath.Split(path)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	re := regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `\.BK\.(\d+)` + regexp.QuoteMeta(ext) + `$`)

	listDir := dir
	if listDir == "" {
		listDir = "."
	}

	entries, err := afero.ReadDir(afs, listDir)
	if err != nil {
		return "", eris.Wrapf(err, "resolve: listing backups in %s", listDir)
	}

	highest := 0

	for _, e := range entries {
		m := re.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}

		if n, err := strconv.Atoi(m[1]); err == nil && n > highest {
			highest = n
		}
	}

	return filepath.Join(dir, fmt.Sprintf("%s.BK.%d%s", base, highest+1, ext)), nil
}

// Backup copies path to its next backup name and returns that name.
func Backup(afs afero.Fs, path string) (string, error) {
	target, err := NextBackupPath(afs, path)
	if err != nil {
		return "", err
	}

	src, err := afs.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "resolve: opening %s", path)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return "", eris.Wrapf(err, "resolve: reading %s", path)
	}

	dst, err := afs.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return "", eris.Wrapf(err, "resolve: creating %s", target)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()

		return "", eris.Wrapf(err, "resolve: copying %s", path)
	}

	if err := dst.Close(); err != nil {
		return "", eris.Wrapf(err, "resolve: closing %s", target)
	}

	return target, nil
}
