// Copyright 2025 The RevGeo Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jcodagnone/revgeo/catalog"
	"github.com/jcodagnone/revgeo/resolve"
	"github.com/jcodagnone/revgeo/sidecar"
	"github.com/jcodagnone/revgeo/utils/textutils"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type listOptions struct {
	Sources   []string
	Lightroom string
	Strict    bool
}

var listOpts = &listOptions{}

type listRow struct {
	Path    string
	Fields  resolve.FieldSet
	Catalog string
	Err     error
}

type listColumn struct {
	title string
	width int
	value func(*listRow) string
}

var listColumns = []listColumn{
	{"File", 28, func(r *listRow) string { return filepath.Base(r.Path) }},
	{"Latitude", 13, func(r *listRow) string { return r.Fields.GPSLatitude }},
	{"Longitude", 14, func(r *listRow) string { return r.Fields.GPSLongitude }},
	{"Location", 20, func(r *listRow) string { return r.Fields.Location }},
	{"City", 16, func(r *listRow) string { return r.Fields.City }},
	{"State", 16, func(r *listRow) string { return r.Fields.State }},
	{"Country", 14, func(r *listRow) string { return r.Fields.Country }},
	{"CC", 2, func(r *listRow) string { return r.Fields.CountryCode }},
}

var catalogColumn = listColumn{"LR", 4, func(r *listRow) string { return r.Catalog }}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists the location fields of XMP sidecars",
	Long: `Prints a table with the GPS and location fields of every sidecar, sorted by
country, state and city. Nothing is written.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		files, err := sidecar.CollectFiles(afero.NewOsFs(), listOpts.Sources)
		if err != nil {
			return err
		}

		var lr *catalog.Lightroom
		if listOpts.Lightroom != "" {
			if lr, err = catalog.OpenLightroom(listOpts.Lightroom, listOpts.Strict); err != nil {
				return err
			}
			defer lr.Close()
		}

		store, err := sidecar.NewExifToolStore()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		rows := make([]*listRow, 0, len(files))

		for _, path := range files {
			row := &listRow{Path: path}

			doc, err := store.Open(path)
			if err != nil {
				zap.L().Warn("reading sidecar", zap.String("path", path), zap.Error(err))
				row.Err = err
			} else {
				row.Fields = resolve.LoadFieldSet(doc)
			}

			if lr != nil {
				row.Catalog = catalogState(ctx, lr, path)
			}

			rows = append(rows, row)
		}

		sortListRows(rows)

		return writeListTable(os.Stdout, rows, lr != nil)
	},
}

func catalogState(ctx context.Context, c resolve.Catalog, path string) string {
	_, err := c.Lookup(ctx, path)

	switch {
	case err == nil:
		return "yes"
	case errors.Is(err, catalog.ErrNotFound):
		return "no"
	case errors.Is(err, catalog.ErrAmbiguous):
		return "many"
	default:
		zap.L().Warn("catalog lookup", zap.String("path", path), zap.Error(err))

		return "err"
	}
}

// sortListRows orders by country, state, city and path, ignoring case and
// accents.
func sortListRows(rows []*listRow) {
	key := func(r *listRow) []string {
		return []string{
			textutils.LowerASCIIFolding(r.Fields.Country),
			textutils.LowerASCIIFolding(r.Fields.State),
			textutils.LowerASCIIFolding(r.Fields.City),
			r.Path,
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := key(rows[i]), key(rows[j])
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}

		return false
	})
}

func writeListTable(w io.Writer, rows []*listRow, withCatalog bool) error {
	columns := listColumns
	if withCatalog {
		columns = append(columns[:len(columns):len(columns)], catalogColumn)
	}

	border := func(left, mid, right string) string {
		parts := make([]string, len(columns))
		for i, c := range columns {
			parts[i] = strings.Repeat("─", c.width+2)
		}

		return left + strings.Join(parts, mid) + right + "\n"
	}

	line := func(value func(c listColumn) string) string {
		parts := make([]string, len(columns))
		for i, c := range columns {
			parts[i] = " " + textutils.Pad(value(c), c.width) + " "
		}

		return "│" + strings.Join(parts, "│") + "│\n"
	}

	var b strings.Builder

	b.WriteString(border("╭", "┬", "╮"))
	b.WriteString(line(func(c listColumn) string { return c.title }))
	b.WriteString(border("├", "┼", "┤"))

	for _, r := range rows {
		b.WriteString(line(func(c listColumn) string {
			if r.Err != nil && c.title != "File" {
				return "?"
			}

			return c.value(r)
		}))
	}

	b.WriteString(border("╰", "┴", "╯"))
	fmt.Fprintf(&b, "%s sidecars\n", textutils.FormatInt(int64(len(rows))))

	_, err := io.WriteString(w, b.String())

	return err
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringArrayVarP(
		&listOpts.Sources,
		"xmp",
		"x",
		nil,
		"Sidecar file or folder to list, repeatable",
	)
	listCmd.Flags().StringVarP(
		&listOpts.Lightroom,
		"lightroom",
		"l",
		"",
		"Folder holding the Lightroom catalog (.lrcat)",
	)
	listCmd.Flags().BoolVarP(
		&listOpts.Strict,
		"strict",
		"s",
		false,
		"Only match catalog images in the same folder as the sidecar",
	)

	_ = listCmd.MarkFlagRequired("xmp")
}
